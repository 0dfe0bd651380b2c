// Package worker распределяет задания (файл x схема) по пулу воркеров.
package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/artemshloyda/tempobench/internal/config"
	"github.com/artemshloyda/tempobench/internal/derive"
	"github.com/artemshloyda/tempobench/internal/progress"
	"github.com/artemshloyda/tempobench/internal/runner"
	"github.com/artemshloyda/tempobench/internal/scanner"
	"github.com/artemshloyda/tempobench/internal/scheme"
)

// JobRunner выполняет одно задание.
type JobRunner interface {
	Run(ctx context.Context, file scanner.File, s scheme.Scheme, params derive.Params, req config.Request) runner.JobResult
}

// FormatBytes форматирует байты в человекочитаемый формат.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

type job struct {
	file        scanner.File
	scheme      scheme.Scheme
	schemeIndex int
}

// Pool управляет пулом воркеров.
type Pool struct {
	runner        JobRunner
	workers       int
	params        derive.Params
	req           config.Request
	verbose       bool
	progress      *progress.Bar
	memoryLimiter *MemoryLimiter
	onResult      func(runner.JobResult)
}

// New создаёт пул воркеров.
func New(r JobRunner, cfg *config.Config, params derive.Params) *Pool {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		runner:        r,
		workers:       workers,
		params:        params,
		req:           cfg.Request(),
		verbose:       cfg.Verbose,
		memoryLimiter: NewMemoryLimiter(cfg.MaxMemoryMB),
	}
}

// SetProgressBar устанавливает прогресс-бар.
func (p *Pool) SetProgressBar(bar *progress.Bar) {
	p.progress = bar
}

// OnResult задаёт обработчик, вызываемый для каждого результата.
// Вызывается из одной горутины-сборщика.
func (p *Pool) OnResult(fn func(runner.JobResult)) {
	p.onResult = fn
}

// MemoryLimiter возвращает ограничитель памяти пула.
func (p *Pool) MemoryLimiter() *MemoryLimiter {
	return p.memoryLimiter
}

// Workers возвращает размер пула.
func (p *Pool) Workers() int {
	return p.workers
}

// RunAll выполняет все пары файл x схема и возвращает по одному результату на пару,
// отсортированные по (FileID, порядок схемы). Ошибка одного задания не влияет
// на остальные. После отмены ctx оставшиеся задания не запускаются и
// записываются как неуспешные.
func (p *Pool) RunAll(ctx context.Context, files []scanner.File, schemes []scheme.Scheme) []runner.JobResult {
	total := len(files) * len(schemes)
	if total == 0 {
		return nil
	}

	jobs := make(chan job)
	results := make(chan runner.JobResult)

	go func() {
		defer close(jobs)
		for _, f := range files {
			for i, s := range schemes {
				jobs <- job{file: f, scheme: s, schemeIndex: i}
			}
		}
	}()

	var wg sync.WaitGroup
	workers := p.workers
	if workers > total {
		workers = total
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- p.runJob(ctx, j)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// Единственный владелец собранных результатов
	collected := make([]runner.JobResult, 0, total)
	for res := range results {
		collected = append(collected, res)
		p.report(res)
	}

	sort.SliceStable(collected, func(i, j int) bool {
		if collected[i].FileID != collected[j].FileID {
			return collected[i].FileID < collected[j].FileID
		}
		return collected[i].SchemeIndex < collected[j].SchemeIndex
	})

	return collected
}

// runJob выполняет одно задание.
func (p *Pool) runJob(ctx context.Context, j job) runner.JobResult {
	if err := ctx.Err(); err != nil {
		return cancelled(j, err)
	}

	release, err := p.memoryLimiter.Acquire(ctx, j.file.Size)
	if err != nil {
		return cancelled(j, fmt.Errorf("memory limiter: %w", err))
	}
	defer release()

	res := p.runner.Run(ctx, j.file, j.scheme, p.params, p.req)
	res.SchemeIndex = j.schemeIndex
	return res
}

// report вызывается только из сборщика.
func (p *Pool) report(res runner.JobResult) {
	if p.progress != nil {
		p.progress.Done(res.Success)
	}

	if !res.Success {
		p.progress.Errorf("❌ %s [%s]: %s\n", res.File, res.Scheme, res.Error)
	} else if p.verbose {
		p.progress.Printf("✅ %s [%s] %.2fs, %.2f MiB/s\n", res.File, res.Scheme, res.ElapsedSeconds, res.ThroughputMBps)
	}

	if p.onResult != nil {
		p.onResult(res)
	}
}

func cancelled(j job, err error) runner.JobResult {
	jobErr := &runner.JobError{Scheme: j.scheme.Name(), File: j.file.RelPath, Err: err}
	return runner.JobResult{
		FileID:      j.file.Index,
		File:        j.file.RelPath,
		Scheme:      j.scheme.Name(),
		SchemeIndex: j.schemeIndex,
		SizeBytes:   j.file.Size,
		Err:         jobErr,
		Error:       jobErr.Error(),
	}
}

/*
Возможные расширения:
- Повторять задание, упавшее по таймауту, с увеличенным таймаутом
- Прогревочный прогон каждой схемы перед замером
*/
