// Package runner выполняет одно задание: файл через одну схему.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/artemshloyda/tempobench/internal/config"
	"github.com/artemshloyda/tempobench/internal/derive"
	"github.com/artemshloyda/tempobench/internal/scanner"
	"github.com/artemshloyda/tempobench/internal/scheme"
)

const (
	// MinElapsed - нижняя граница времени для расчёта пропускной способности.
	MinElapsed = 1e-6

	// stderrTail - сколько байт stderr сохраняется в результате.
	stderrTail = 512

	bytesPerMB = 1024 * 1024
)

var (
	// ErrToolMissing возвращается, если путь к программе схемы не известен.
	ErrToolMissing = errors.New("инструмент не найден")

	// ErrNoOutput возвращается, если движок завершился успешно, но файл не создан или пуст.
	ErrNoOutput = errors.New("движок не создал выходной файл")
)

// JobError - ошибка конкретного задания.
type JobError struct {
	Scheme string
	File   string
	Stderr string
	Err    error
}

func (e *JobError) Error() string {
	msg := fmt.Sprintf("%s [%s]: %v", e.File, e.Scheme, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// JobResult - итог одного задания. Создаётся один раз и больше не меняется.
type JobResult struct {
	// FileID - индекс файла в каталоге.
	FileID int `json:"file_id" yaml:"file_id"`

	// File - относительный путь входного файла.
	File string `json:"file" yaml:"file"`

	// Scheme - имя схемы.
	Scheme string `json:"scheme" yaml:"scheme"`

	// SchemeIndex - позиция схемы в порядке объявления.
	SchemeIndex int `json:"-" yaml:"-"`

	// Success - код возврата 0 и непустой выходной файл.
	Success bool `json:"success" yaml:"success"`

	// ElapsedSeconds - время выполнения движка.
	ElapsedSeconds float64 `json:"elapsed_seconds" yaml:"elapsed_seconds"`

	// ThroughputMBps - МиБ входа в секунду (0 для неуспешных).
	ThroughputMBps float64 `json:"throughput_mbps" yaml:"throughput_mbps"`

	// SizeBytes - размер входного файла.
	SizeBytes int64 `json:"size_bytes" yaml:"size_bytes"`

	// Output - путь результата.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// Command - вызов движка в текстовом виде.
	Command string `json:"command,omitempty" yaml:"command,omitempty"`

	// Error - текст ошибки.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// Err - исходная ошибка.
	Err error `json:"-" yaml:"-"`
}

// Elapsed возвращает время выполнения как time.Duration.
func (r JobResult) Elapsed() time.Duration {
	return time.Duration(r.ElapsedSeconds * float64(time.Second))
}

// Throughput считает МиБ в секунду с нижней границей времени MinElapsed.
func Throughput(sizeBytes int64, elapsed time.Duration) float64 {
	seconds := elapsed.Seconds()
	if seconds < MinElapsed {
		seconds = MinElapsed
	}
	return float64(sizeBytes) / bytesPerMB / seconds
}

// Runner запускает схемы. Безопасен для одновременного использования.
type Runner struct {
	// tools - логическое имя программы -> путь к бинарнику.
	tools map[string]string

	// timeout - таймаут на одно задание.
	timeout time.Duration

	// dryRun - только строить вызовы, не выполнять.
	dryRun bool
}

// New создаёт Runner. tools сопоставляет Invocation.Program с путём к бинарнику.
func New(tools map[string]string) *Runner {
	copied := make(map[string]string, len(tools))
	for k, v := range tools {
		copied[k] = v
	}
	return &Runner{
		tools:   copied,
		timeout: 10 * time.Minute,
	}
}

// SetTimeout устанавливает таймаут на задание (0 - без таймаута).
func (r *Runner) SetTimeout(d time.Duration) {
	r.timeout = d
}

// SetDryRun включает режим без выполнения.
func (r *Runner) SetDryRun(v bool) {
	r.dryRun = v
}

// Run выполняет файл через схему. Ошибки не возвращаются, а записываются в результат.
func (r *Runner) Run(ctx context.Context, file scanner.File, s scheme.Scheme, params derive.Params, req config.Request) JobResult {
	result := JobResult{
		FileID:    file.Index,
		File:      file.RelPath,
		Scheme:    s.Name(),
		SizeBytes: file.Size,
	}

	inv, err := s.Build(file, params, req)
	if err != nil {
		return result.fail(s.Name(), file, "", fmt.Errorf("не удалось построить вызов: %w", err))
	}
	result.Output = inv.Output
	result.Command = inv.CommandLine()

	if r.dryRun {
		result.Success = true
		return result
	}

	dstDir := filepath.Dir(inv.Output)
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return result.fail(s.Name(), file, "", fmt.Errorf("не удалось создать директорию %s: %w", dstDir, err))
	}

	// Остаток прерванного запуска
	_ = os.Remove(inv.WorkPath)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	stderr, err := r.invoke(ctx, inv)
	elapsed := time.Since(start)
	result.ElapsedSeconds = elapsed.Seconds()

	if err != nil {
		_ = os.Remove(inv.WorkPath)
		if ctx.Err() != nil {
			err = fmt.Errorf("%w (%v)", err, ctx.Err())
		}
		return result.fail(s.Name(), file, stderr, err)
	}

	info, err := os.Stat(inv.WorkPath)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(inv.WorkPath)
		return result.fail(s.Name(), file, stderr, ErrNoOutput)
	}

	if err := os.Rename(inv.WorkPath, inv.Output); err != nil {
		_ = os.Remove(inv.WorkPath)
		return result.fail(s.Name(), file, "",
			fmt.Errorf("не удалось переименовать %s -> %s: %w", inv.WorkPath, inv.Output, err))
	}

	result.Success = true
	result.ThroughputMBps = Throughput(file.Size, elapsed)
	return result
}

// invoke запускает внешний процесс или встроенный движок. Возвращает хвост stderr.
func (r *Runner) invoke(ctx context.Context, inv scheme.Invocation) (string, error) {
	if inv.InProcess != nil {
		return "", inv.InProcess(ctx)
	}

	path := r.tools[inv.Program]
	if path == "" {
		return "", fmt.Errorf("%w: %s", ErrToolMissing, inv.Program)
	}

	cmd := exec.CommandContext(ctx, path, inv.Args...)

	// Вывод движка не должен попадать в отчёт
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return tail(stderr.String()), err
}

func (r JobResult) fail(schemeName string, file scanner.File, stderr string, err error) JobResult {
	jobErr := &JobError{
		Scheme: schemeName,
		File:   file.RelPath,
		Stderr: stderr,
		Err:    err,
	}
	r.Success = false
	r.ThroughputMBps = 0
	r.Err = jobErr
	r.Error = jobErr.Error()
	return r
}

// tail обрезает stderr до последних stderrTail байт.
func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= stderrTail {
		return s
	}
	return "..." + s[len(s)-stderrTail:]
}

/*
Возможные расширения:
- Сохранять полный stderr в файл рядом с результатом при --verbose
- Замерять пиковое потребление памяти внешнего процесса (rusage)
*/
