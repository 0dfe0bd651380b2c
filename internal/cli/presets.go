package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/artemshloyda/tempobench/internal/config"
)

// newPresetsCmd создаёт команду для управления пресетами.
func newPresetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "Управление именованными пресетами конфигурации",
		Long: `Управление именованными пресетами конфигурации.

Пресеты хранятся в ~/.config/tempobench/presets/ и позволяют
сохранять и загружать настройки для разных наборов файлов.

Примеры:
  # Сохранить текущие настройки как пресет
  tempobench run --in ./wav --pitch 1.5 --scale 1 --save-preset fifth-up

  # Загрузить пресет и запустить прогон
  tempobench run --load-preset fifth-up

  # Список пресетов
  tempobench presets list

  # Удалить пресет
  tempobench presets delete fifth-up`,
	}

	cmd.AddCommand(newPresetsListCmd())
	cmd.AddCommand(newPresetsDeleteCmd())
	cmd.AddCommand(newPresetsShowCmd())

	return cmd
}

// newPresetsListCmd создаёт команду для списка пресетов.
func newPresetsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Показать встроенные профили и сохранённые пресеты",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("🎚️  Встроенные профили (--preset):")
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, name := range config.ValidPresets() {
				p := config.Presets[config.Preset(name)]
				fmt.Fprintf(w, "   %s\tpitch=%g\tscale=%g\n", name, p.PitchRatio, p.TimeScale)
			}
			w.Flush()
			fmt.Println()

			store, err := config.DefaultPresetStore()
			if err != nil {
				return err
			}

			presets, err := store.List()
			if err != nil {
				return fmt.Errorf("ошибка получения списка пресетов: %w", err)
			}

			if len(presets) == 0 {
				fmt.Println("Сохранённые пресеты не найдены.")
				fmt.Println()
				fmt.Println("Сохраните пресет командой:")
				fmt.Println("  tempobench run --in ./wav --pitch 1.5 --save-preset my-set")
				return nil
			}

			fmt.Printf("📦 Сохранённые пресеты (%d):\n\n", len(presets))

			w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ИМЯ\tPITCH\tSCALE\tФОРМАТ\tПУТЬ")
			fmt.Fprintln(w, "---\t-----\t-----\t------\t----")

			for _, p := range presets {
				pitch, scale, format := "-", "-", "-"
				if p.Config != nil && p.Config.Conversion != nil {
					if p.Config.Conversion.PitchRatio > 0 {
						pitch = fmt.Sprintf("%g", p.Config.Conversion.PitchRatio)
					}
					if p.Config.Conversion.TimeScale > 0 {
						scale = fmt.Sprintf("%g", p.Config.Conversion.TimeScale)
					}
				}
				if p.Config != nil && p.Config.Output != nil && p.Config.Output.Format != "" {
					format = p.Config.Output.Format
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Name, pitch, scale, format, p.Path)
			}
			w.Flush()

			return nil
		},
	}
}

// newPresetsDeleteCmd создаёт команду для удаления пресета.
func newPresetsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [name]",
		Short: "Удалить пресет",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			store, err := config.DefaultPresetStore()
			if err != nil {
				return err
			}

			if !store.Exists(name) {
				return fmt.Errorf("пресет '%s' не найден", name)
			}

			if err := store.Delete(name); err != nil {
				return fmt.Errorf("ошибка удаления пресета: %w", err)
			}

			fmt.Printf("✅ Пресет '%s' удалён\n", name)
			return nil
		},
	}
}

// newPresetsShowCmd создаёт команду для отображения пресета.
func newPresetsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [name]",
		Short: "Показать содержимое пресета",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			store, err := config.DefaultPresetStore()
			if err != nil {
				return err
			}

			fc, path, err := store.Load(name)
			if err != nil {
				return err
			}

			fmt.Printf("📦 Пресет: %s\n", name)
			fmt.Printf("📁 Путь: %s\n\n", path)

			if fc.Input != nil {
				fmt.Println("Input:")
				if fc.Input.Dir != "" {
					fmt.Printf("  dir: %s\n", fc.Input.Dir)
				}
				if len(fc.Input.Extensions) > 0 {
					fmt.Printf("  extensions: %s\n", strings.Join(fc.Input.Extensions, ", "))
				}
				if fc.Input.Recursive != nil {
					fmt.Printf("  recursive: %t\n", *fc.Input.Recursive)
				}
			}

			if fc.Output != nil {
				fmt.Println("Output:")
				if fc.Output.Dir != "" {
					fmt.Printf("  dir: %s\n", fc.Output.Dir)
				}
				if fc.Output.Format != "" {
					fmt.Printf("  format: %s\n", fc.Output.Format)
				}
				if fc.Output.Report != "" {
					fmt.Printf("  report: %s (%s)\n", fc.Output.Report, fc.Output.ReportFormat)
				}
			}

			if fc.Conversion != nil {
				fmt.Println("Conversion:")
				if fc.Conversion.Preset != "" {
					fmt.Printf("  preset: %s\n", fc.Conversion.Preset)
				}
				if fc.Conversion.PitchRatio > 0 {
					fmt.Printf("  pitch_ratio: %g\n", fc.Conversion.PitchRatio)
				}
				if fc.Conversion.TimeScale > 0 {
					fmt.Printf("  time_scale: %g\n", fc.Conversion.TimeScale)
				}
			}

			if fc.Processing != nil {
				fmt.Println("Processing:")
				if fc.Processing.Workers > 0 {
					fmt.Printf("  workers: %d\n", fc.Processing.Workers)
				}
				if len(fc.Processing.Schemes) > 0 {
					fmt.Printf("  schemes: %s\n", strings.Join(fc.Processing.Schemes, ", "))
				}
				if fc.Processing.Timeout != "" {
					fmt.Printf("  timeout: %s\n", fc.Processing.Timeout)
				}
			}

			return nil
		},
	}
}
