// Package cli содержит CLI интерфейс приложения.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/artemshloyda/tempobench/internal/config"
)

var (
	// Version будет установлена при сборке.
	Version = "dev"

	// BuildTime будет установлена при сборке.
	BuildTime = "unknown"
)

const examples = `Примеры:
  # Прогнать все WAV из ./wav через все доступные схемы (+2 полутона, темп 1/0.993)
  tempobench --in ./wav --out ./converted

  # Только ffmpeg-схемы, 24 бита, отчёт в CSV
  tempobench run --in ./wav --schemes ffmpeg-rubberband,ffmpeg-atempo --format pcm24 --report bench.csv --report-format csv

  # Встроенный профиль и уточнение длительности
  tempobench run --in ./wav --preset semitone-up --scale 1.05

  # Dry run (показать команды без запуска движков)
  tempobench run --in ./wav --dry-run`

// NewRootCmd создаёт корневую команду CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tempobench",
		Short: "Пакетное растяжение WAV разными движками с замером времени",
		Long: `tempobench - CLI утилита для пакетного изменения темпа и высоты тона WAV файлов.

Каждый файл обрабатывается всеми доступными схемами: фильтрами ffmpeg
(rubberband, atempo, scaletempo), утилитой rubberband (движки R2 и R3)
и встроенным Go движком. Для каждого задания замеряется время и пропускная
способность, итоговый отчёт сравнивает схемы между собой.

` + examples,
		SilenceUsage: true,
	}

	// Корневая команда без подкоманды выполняет run
	bindRun(rootCmd)

	runCmd := &cobra.Command{
		Use:          "run",
		Short:        "Прогнать файлы через схемы и вывести отчёт",
		Long:         "Прогнать файлы через все выбранные схемы и вывести сравнительный отчёт.\n\n" + examples,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}
	bindRun(runCmd)

	// Подкоманды
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSchemesCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newPresetsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// bindRun регистрирует флаги запуска и RunE на команде.
func bindRun(cmd *cobra.Command) {
	rf := newRunFlags()
	rf.register(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		presets, err := config.DefaultPresetStore()
		if err != nil {
			return err
		}

		cfg, err := rf.resolve(cmd.Flags(), presets)
		if err != nil {
			return fmt.Errorf("ошибка конфигурации: %w", err)
		}

		if rf.savePreset != "" {
			path, err := presets.Save(rf.savePreset, cfg)
			if err != nil {
				return err
			}
			fmt.Printf("💾 Пресет '%s' сохранён: %s\n", rf.savePreset, path)
		}

		ctx, cancel := signalContext()
		defer cancel()

		return runBenchmark(ctx, cfg)
	}
}

// signalContext отменяет контекст по SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Println("\n⚠️  Получен сигнал завершения, останавливаем...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// newVersionCmd создаёт команду version.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tempobench %s (built %s)\n", Version, BuildTime)
		},
	}
}

// newConfigCmd создаёт команду config.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Работа с конфигурационным файлом",
	}

	var output string
	var force bool

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Создать пример конфигурационного файла",
		Long: `Создать пример конфигурационного файла.

Без --output пример выводится в stdout:
  tempobench config init > tempobench.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			example := config.GenerateExampleConfig()
			if output == "" {
				fmt.Print(example)
				return nil
			}

			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("файл %s уже существует (используйте --force)", output)
			}
			if err := os.WriteFile(output, []byte(example), 0644); err != nil {
				return fmt.Errorf("не удалось записать %s: %w", output, err)
			}

			fmt.Printf("✅ Конфигурация записана: %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "", "Путь к создаваемому файлу")
	initCmd.Flags().BoolVar(&force, "force", false, "Перезаписать существующий файл")

	cmd.AddCommand(initCmd)
	return cmd
}

// Execute запускает CLI.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		// Не выводим ошибку, cobra уже вывела
		os.Exit(1)
	}
}

/*
Возможные расширения:
- Добавить команду compare для сравнения двух запусков из истории
- Добавить флаг --json для команд schemes и history
*/
