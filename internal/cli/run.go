package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/artemshloyda/tempobench/internal/config"
	"github.com/artemshloyda/tempobench/internal/derive"
	"github.com/artemshloyda/tempobench/internal/progress"
	"github.com/artemshloyda/tempobench/internal/report"
	"github.com/artemshloyda/tempobench/internal/runner"
	"github.com/artemshloyda/tempobench/internal/scanner"
	"github.com/artemshloyda/tempobench/internal/scheme"
	"github.com/artemshloyda/tempobench/internal/storage"
	"github.com/artemshloyda/tempobench/internal/watcher"
	"github.com/artemshloyda/tempobench/internal/worker"
)

// ErrNoSchemes возвращается, если ни одна схема не доступна.
var ErrNoSchemes = errors.New("нет доступных схем обработки")

// session - всё, что нужно для прогона пакетов файлов через схемы.
type session struct {
	cfg     *config.Config
	params  derive.Params
	schemes []scheme.Scheme
	names   []string
	pool    *worker.Pool
	store   *storage.Storage
	claims  *scheme.OutputClaims
}

// newSession проверяет инструменты и схемы. Ошибки здесь - ошибки настройки.
func newSession(ctx context.Context, cfg *config.Config) (*session, *scanner.Scanner, error) {
	params, err := derive.Derive(cfg.PitchRatio, cfg.TimeScale)
	if err != nil {
		return nil, nil, err
	}

	tools := discoverTools(ctx, cfg, cfg.Verbose)

	registry, err := scheme.NewRegistry(cfg.Schemes)
	if err != nil {
		return nil, nil, err
	}
	registry.Probe(tools.capabilities(cfg.OutputFormat))
	printSchemeStatus(registry.Status())

	enabled := registry.Enabled()
	if len(enabled) == 0 {
		return nil, nil, fmt.Errorf("%w: установите ffmpeg или rubberband либо выберите целочисленный формат для algodsp", ErrNoSchemes)
	}

	prober, err := tools.prober(cfg.Probe)
	if err != nil {
		return nil, nil, err
	}

	run := runner.New(tools.programs())
	run.SetTimeout(cfg.Timeout)
	run.SetDryRun(cfg.DryRun)

	s := &session{
		cfg:     cfg,
		params:  params,
		schemes: enabled,
		pool:    worker.New(run, cfg, params),
		claims:  scheme.NewOutputClaims(cfg.Request()),
	}
	for _, sc := range enabled {
		s.names = append(s.names, sc.Name())
	}

	if cfg.DryRun {
		s.pool.OnResult(func(res runner.JobResult) {
			fmt.Printf("🔄 [dry-run] %s\n", res.Command)
		})
	}

	return s, scanner.New(cfg, prober), nil
}

// openHistory открывает базу истории. Ошибка не прерывает запуск.
func (s *session) openHistory() {
	if s.cfg.NoHistory || s.cfg.DryRun {
		return
	}
	store, err := storage.New(s.cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  История отключена: %v\n", err)
		return
	}
	s.store = store
}

func (s *session) close() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

// runBatch прогоняет файлы через все схемы, печатает и сохраняет отчёт.
func (s *session) runBatch(ctx context.Context, files []scanner.File, skipped []scanner.Entry, showProgress bool) *report.RunReport {
	started := time.Now()

	var bar *progress.Bar
	if showProgress {
		bar = progress.New(progress.Options{
			Total:       int64(len(files) * len(s.schemes)),
			Description: "Прогон",
			Disabled:    s.cfg.NoProgress || s.cfg.DryRun,
		})
	}
	s.pool.SetProgressBar(bar)

	results := s.pool.RunAll(ctx, files, s.schemes)
	if bar != nil {
		bar.Finish()
		succeeded, failed := bar.Stats()
		fmt.Printf("⏱️  Заданий: %d из %d (ошибок: %d) за %s\n",
			succeeded+failed, bar.Total(), failed, bar.Duration().Round(time.Millisecond))
	}

	rep := report.Aggregate(report.Input{
		RunID:     uuid.NewString(),
		StartedAt: started,
		Request:   s.cfg.Request(),
		Schemes:   s.names,
		Files:     files,
		Skipped:   skipped,
		Results:   results,
		Wall:      time.Since(started),
	})

	if err := report.WriteText(os.Stdout, rep); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Не удалось вывести отчёт: %v\n", err)
	}

	if s.cfg.ReportPath != "" {
		if err := report.Save(s.cfg.ReportPath, s.cfg.ReportFormat, rep); err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  %v\n", err)
		} else {
			fmt.Printf("\n💾 Отчёт сохранён: %s\n", s.cfg.ReportPath)
		}
	}

	if s.store != nil {
		if run, err := s.saveHistory(ctx, rep); err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Не удалось сохранить историю: %v\n", err)
		} else if s.cfg.Verbose {
			fmt.Printf("🗄️  Запуск %s сохранён в %s\n", run.ID, s.cfg.DBPath)
		}
	}

	return rep
}

// saveHistory записывает отчёт в историю. Частичный прогон после Ctrl+C
// тоже сохраняется, поэтому отмена ctx не прерывает запись.
func (s *session) saveHistory(ctx context.Context, rep *report.RunReport) (storage.Run, error) {
	return s.store.SaveRun(context.WithoutCancel(ctx), rep, storage.Meta{
		InputDir:    s.cfg.InputDir,
		Workers:     s.pool.Workers(),
		RequestHash: s.cfg.RequestHash(),
		FinishedAt:  time.Now(),
	})
}

// runBenchmark выполняет основную логику: сканирование, прогон, отчёт.
func runBenchmark(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("ошибка конфигурации: %w", err)
	}

	sess, scan, err := newSession(ctx, cfg)
	if err != nil {
		return err
	}
	sess.openHistory()
	defer sess.close()

	// Считаем файлы для отображения прогресса
	if cfg.Verbose {
		count, _ := scan.CountFiles()
		fmt.Printf("📁 Найдено кандидатов: %d\n", count)
	}

	catalog, err := scan.Collect(ctx)
	if err != nil {
		return fmt.Errorf("не удалось просканировать %s: %w", cfg.InputDir, err)
	}

	// Индексы файлов из наблюдения продолжают нумерацию каталога
	nextIndex := len(catalog.Files)

	files, duplicates := sess.claims.Filter(catalog.Files)
	catalog.Files = files
	catalog.Skipped = append(catalog.Skipped, duplicates...)

	for _, e := range catalog.Skipped {
		fmt.Printf("⏭️  Пропущен: %s (%s)\n", e.RelPath, e.Reason)
	}

	if len(catalog.Files) == 0 && !cfg.Watch {
		return fmt.Errorf("%w в %s (расширения: %s)", scanner.ErrNoInputFiles, cfg.InputDir, strings.Join(cfg.InputExtensions, ", "))
	}

	printPlan(cfg, sess, catalog.Files)

	if len(catalog.Files) > 0 {
		sess.runBatch(ctx, catalog.Files, catalog.Skipped, true)
	}

	if cfg.Watch {
		return watch(ctx, cfg, sess, scan, nextIndex)
	}

	return nil
}

// watch обрабатывает новые файлы по мере появления до отмены ctx.
func watch(ctx context.Context, cfg *config.Config, sess *session, scan *scanner.Scanner, startIndex int) error {
	w, err := watcher.New(cfg, scan, startIndex)
	if err != nil {
		return err
	}

	entries, err := w.Watch(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("\n👀 Слежение за %s (Ctrl+C для выхода)\n", cfg.InputDir)

	for entry := range entries {
		if entry.Skipped {
			fmt.Printf("⏭️  Пропущен: %s (%s)\n", entry.RelPath, entry.Reason)
			continue
		}
		if owner, ok := sess.claims.Claim(entry.File); !ok {
			fmt.Printf("⏭️  Пропущен: %s (результат совпадает с файлом %s)\n", entry.RelPath, owner)
			continue
		}
		fmt.Printf("\n🆕 %s (%.2f MiB)\n", entry.RelPath, entry.SizeMB())
		sess.runBatch(ctx, []scanner.File{entry.File}, nil, false)
	}

	return nil
}

func printPlan(cfg *config.Config, sess *session, files []scanner.File) {
	var total int64
	for _, f := range files {
		total += f.Size
	}

	fmt.Printf("\n🚀 Запуск:\n")
	fmt.Printf("   Вход: %s\n", cfg.InputDir)
	fmt.Printf("   Выход: %s\n", cfg.OutputDir)
	fmt.Printf("   pitch=%s scale=%s (tempo=%s, tempo после asetrate=%s)\n",
		derive.FormatRatio(sess.params.PitchRatio), derive.FormatRatio(sess.params.TimeScale),
		derive.FormatRatio(sess.params.TempoTarget), derive.FormatRatio(sess.params.TempoFix))
	fmt.Printf("   Формат: %s\n", cfg.OutputFormat)
	fmt.Printf("   Схемы: %s\n", strings.Join(sess.names, ", "))
	fmt.Printf("   Файлов: %d (%s), заданий: %d, воркеров: %d\n",
		len(files), worker.FormatBytes(total), len(files)*len(sess.names), sess.pool.Workers())
	if limiter := sess.pool.MemoryLimiter(); limiter.IsEnabled() {
		fmt.Printf("   Лимит памяти: %s\n", worker.FormatBytes(int64(limiter.MaxMemory())))
	}
	if cfg.DryRun {
		fmt.Println("   ⚠️  Dry-run режим (движки не запускаются)")
	}
	fmt.Println()
}

func printSchemeStatus(statuses []scheme.Status) {
	for _, st := range statuses {
		if st.Available {
			fmt.Printf("   ✅ %s\n", st.Name)
		} else {
			fmt.Printf("   ⚪ %s: %s\n", st.Name, st.Reason)
		}
	}
}
