package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/artemshloyda/tempobench/internal/config"
	"github.com/artemshloyda/tempobench/internal/storage"
)

type historyFlags struct {
	dbPath    string
	outputDir string
	runID     string
	scheme    string
	limit     int
}

// path возвращает путь к базе: --db или база внутри --out.
func (hf *historyFlags) path() string {
	if hf.dbPath != "" {
		return hf.dbPath
	}
	return config.DefaultDBPath(hf.outputDir)
}

// open открывает существующую базу истории.
func (hf *historyFlags) open() (*storage.Storage, error) {
	path := hf.path()
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("база истории не найдена: %s (укажите --db или --out)", path)
	}

	store, err := storage.New(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть БД: %w", err)
	}
	return store, nil
}

// newHistoryCmd создаёт команду history.
func newHistoryCmd() *cobra.Command {
	hf := &historyFlags{}
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Показать историю запусков",
		Long: `Показать историю запусков из SQLite базы.

Примеры:
  # Последние запуски
  tempobench history --out ./converted

  # Подробности запуска (достаточно префикса ID)
  tempobench history --out ./converted --run 3f2a

  # Динамика одной схемы по запускам
  tempobench history --out ./converted --scheme rubberband-r3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := hf.open()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			switch {
			case hf.runID != "":
				return showRun(ctx, store, hf.runID)
			case hf.scheme != "":
				return showSchemeHistory(ctx, store, hf.scheme, hf.limit)
			default:
				return listRuns(ctx, store, hf.limit)
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&hf.dbPath, "db", "", "Путь к SQLite базе истории")
	flags.StringVar(&hf.outputDir, "out", defaults.OutputDir, "Выходная директория прогона (база в <out>/.tempobench)")
	cmd.Flags().StringVar(&hf.runID, "run", "", "Показать подробности запуска")
	cmd.Flags().StringVar(&hf.scheme, "scheme", "", "Показать историю схемы")
	cmd.Flags().IntVar(&hf.limit, "limit", 20, "Максимум строк (0 = все)")

	cmd.AddCommand(newHistoryDeleteCmd(hf))

	return cmd
}

// newHistoryDeleteCmd создаёт команду удаления запуска.
func newHistoryDeleteCmd(hf *historyFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [run-id]",
		Short: "Удалить запуск из истории",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := hf.open()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := store.DeleteRun(cmd.Context(), run.ID); err != nil {
				return err
			}

			fmt.Printf("✅ Запуск %s удалён\n", run.ID)
			return nil
		},
	}
}

func listRuns(ctx context.Context, store *storage.Storage, limit int) error {
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	total, jobs, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("не удалось получить статистику: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("История пуста.")
		return nil
	}

	fmt.Printf("📊 Запусков: %d, заданий: %d\n\n", total, jobs)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tНАЧАЛО\tPITCH\tSCALE\tФОРМАТ\tФАЙЛОВ\tУСПЕШНО\tОШИБОК\tВРЕМЯ\tMB/s")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%g\t%g\t%s\t%d\t%d\t%d\t%.2fs\t%.2f\n",
			shortID(r.ID), r.Started().Format(time.DateTime), r.PitchRatio, r.TimeScale, r.Format,
			r.FilesProcessed, r.Succeeded, r.Failed, r.WallSeconds, r.ThroughputMBps)
	}
	return w.Flush()
}

func showRun(ctx context.Context, store *storage.Storage, id string) error {
	run, err := store.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			return fmt.Errorf("запуск не найден: %s", id)
		}
		return err
	}

	jobs, err := store.RunJobs(ctx, run.ID)
	if err != nil {
		return err
	}
	skipped, err := store.RunSkipped(ctx, run.ID)
	if err != nil {
		return err
	}

	fmt.Printf("🗄️  Запуск %s\n", run.ID)
	fmt.Printf("   Начало: %s\n", run.Started().Format(time.DateTime))
	fmt.Printf("   Вход: %s\n", run.InputDir)
	fmt.Printf("   Выход: %s\n", run.OutputDir)
	fmt.Printf("   pitch=%g scale=%g формат=%s\n", run.PitchRatio, run.TimeScale, run.Format)
	fmt.Printf("   Схемы: %s\n", strings.Join(run.SchemeList(), ", "))
	fmt.Printf("   Воркеров: %d, заданий: %d (успешно %d, ошибок %d)\n", run.Workers, run.Jobs, run.Succeeded, run.Failed)
	fmt.Printf("   Время: %.2fs, %.2f MB/s\n\n", run.WallSeconds, run.ThroughputMBps)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ФАЙЛ\tСХЕМА\tСТАТУС\tВРЕМЯ\tMB/s\tОШИБКА")
	for _, j := range jobs {
		status := "✅"
		if !j.Success {
			status = "❌"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.3fs\t%.2f\t%s\n",
			j.File, j.Scheme, status, j.ElapsedSeconds, j.ThroughputMBps, firstLine(j.Error))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(skipped) > 0 {
		fmt.Printf("\n⏭️  Пропущено файлов: %d\n", len(skipped))
		for _, s := range skipped {
			fmt.Printf("   %s: %s\n", s.File, s.Reason)
		}
	}

	return nil
}

func showSchemeHistory(ctx context.Context, store *storage.Storage, name string, limit int) error {
	history, err := store.SchemeHistory(ctx, name, limit)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Printf("Для схемы %s нет записей.\n", name)
		return nil
	}

	fmt.Printf("📈 Схема %s (%d запусков)\n\n", name, len(history))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ЗАПУСК\tНАЧАЛО\tЗАПРОС\tУСПЕШНО\tОШИБОК\tСРЕДНЕЕ\tMB/s")
	for _, h := range history {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.3fs\t%.2f\n",
			shortID(h.RunID), h.Started().Format(time.DateTime), h.RequestHash,
			h.Succeeded, h.Failed, h.AverageSeconds, h.ThroughputMBps)
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
