// Package progress показывает ход прогона заданий (файл x схема) с ETA.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Bar - прогресс-бар по заданиям.
type Bar struct {
	bar *progressbar.ProgressBar

	// mu защищает счётчики и вывод.
	mu sync.Mutex

	disabled bool
	total    int64

	succeeded int64
	failed    int64

	startTime time.Time

	// writer - куда выводить (по умолчанию os.Stderr).
	writer io.Writer
}

// Options содержит настройки прогресс-бара.
type Options struct {
	// Total - общее количество заданий.
	Total int64

	// Description - подпись слева от бара.
	Description string

	// Disabled - только текстовый вывод.
	Disabled bool

	// Writer - куда выводить (по умолчанию os.Stderr).
	Writer io.Writer
}

// New создаёт прогресс-бар.
func New(opts Options) *Bar {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	b := &Bar{
		disabled:  opts.Disabled,
		total:     opts.Total,
		startTime: time.Now(),
		writer:    writer,
	}

	if !opts.Disabled && opts.Total > 0 {
		description := opts.Description
		if description == "" {
			description = "Прогон"
		}

		b.bar = progressbar.NewOptions64(
			opts.Total,
			progressbar.OptionSetWriter(writer),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(false),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("job"),
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]█[reset]",
				SaucerHead:    "[green]▓[reset]",
				SaucerPadding: "░",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(writer)
			}),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	return b
}

// Done отмечает завершённое задание.
func (b *Bar) Done(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.succeeded++
	} else {
		b.failed++
	}

	if b.bar != nil {
		_ = b.bar.Add(1)
	}
}

// Finish завершает прогресс-бар.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar != nil {
		_ = b.bar.Finish()
	}
}

// Stats возвращает счётчики успешных и неуспешных заданий.
func (b *Bar) Stats() (succeeded, failed int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.succeeded, b.failed
}

// Total возвращает общее количество заданий.
func (b *Bar) Total() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Duration возвращает время с начала прогона.
func (b *Bar) Duration() time.Duration {
	return time.Since(b.startTime)
}

// IsDisabled возвращает true, если бар не рисуется.
func (b *Bar) IsDisabled() bool {
	return b.disabled || b.bar == nil
}

// WriteMessage выводит сообщение, временно скрывая бар.
func (b *Bar) WriteMessage(format string, args ...interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar != nil {
		_ = b.bar.Clear()
	}

	fmt.Fprintf(b.writer, format, args...)

	if b.bar != nil {
		_ = b.bar.RenderBlank()
	}
}

// Printf пишет через бар, если он активен, иначе в stdout.
// Безопасен для nil.
func (b *Bar) Printf(format string, args ...interface{}) {
	if b != nil && !b.IsDisabled() {
		b.WriteMessage(format, args...)
		return
	}
	fmt.Printf(format, args...)
}

// Errorf пишет через бар, если он активен, иначе в stderr.
// Безопасен для nil.
func (b *Bar) Errorf(format string, args ...interface{}) {
	if b != nil && !b.IsDisabled() {
		b.WriteMessage(format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}
