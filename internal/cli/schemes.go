package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/artemshloyda/tempobench/internal/config"
	"github.com/artemshloyda/tempobench/internal/scheme"
)

// newSchemesCmd создаёт команду schemes.
func newSchemesCmd() *cobra.Command {
	defaults := config.DefaultConfig()
	cfg := &config.Config{}
	var format string

	cmd := &cobra.Command{
		Use:   "schemes",
		Short: "Проверить доступность схем обработки",
		Long: `Проверить, какие схемы обработки доступны на этой машине.

Схема доступна, если найден нужный инструмент, ffmpeg собран с нужным фильтром
и запрошенный формат сэмплов поддерживается движком.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.OutputFormat = config.SampleFormat(format)
			if !cfg.OutputFormat.Valid() {
				return fmt.Errorf("%w: %s", config.ErrInvalidFormat, format)
			}

			tools := discoverTools(cmd.Context(), cfg, cfg.Verbose)
			fmt.Println()

			registry := scheme.NewRegistryFrom(scheme.Builtin()...)
			registry.Probe(tools.capabilities(cfg.OutputFormat))

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "СХЕМА\tСТАТУС\tПРИЧИНА")
			fmt.Fprintln(w, "-----\t------\t-------")

			available := 0
			for _, st := range registry.Status() {
				status, reason := "✅ доступна", "-"
				if st.Available {
					available++
				} else {
					status, reason = "⚪ недоступна", st.Reason
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", st.Name, status, reason)
			}
			w.Flush()

			fmt.Printf("\nДоступно схем: %d из %d (формат %s)\n", available, len(registry.All()), cfg.OutputFormat)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&format, "format", string(defaults.OutputFormat), "Формат сэмплов: "+joinStrings(config.ValidFormats()))
	flags.StringVar(&cfg.FFmpegPath, "ffmpeg-path", "", "Путь к ffmpeg")
	flags.StringVar(&cfg.FFprobePath, "ffprobe-path", "", "Путь к ffprobe")
	flags.StringVar(&cfg.RubberbandPath, "rubberband-path", "", "Путь к rubberband")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Подробный вывод")

	return cmd
}
