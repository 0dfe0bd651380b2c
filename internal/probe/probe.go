// Package probe определяет частоту дискретизации аудиофайлов.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/go-audio/wav"
)

// ErrNoSampleRate возвращается, когда частоту определить не удалось.
var ErrNoSampleRate = errors.New("частота дискретизации не определена")

// Prober возвращает частоту дискретизации файла в Гц.
type Prober interface {
	SampleRate(ctx context.Context, path string) (int, error)
}

// FFprobe определяет частоту через внешний ffprobe.
type FFprobe struct {
	// Path - путь к бинарнику ffprobe.
	Path string
}

// NewFFprobe создаёт FFprobe.
func NewFFprobe(path string) *FFprobe {
	return &FFprobe{Path: path}
}

// SampleRate запускает ffprobe и читает sample_rate первого аудиопотока.
func (p *FFprobe) SampleRate(ctx context.Context, path string) (int, error) {
	// #nosec G204 - путь к ffprobe из конфигурации
	cmd := exec.CommandContext(ctx, p.Path,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate",
		"-of", "csv=p=0",
		path,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if stderr.Len() > 0 {
			return 0, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	return parseSampleRate(string(output))
}

// parseSampleRate разбирает вывод ffprobe вида "44100\n".
func parseSampleRate(output string) (int, error) {
	line := strings.TrimSpace(output)
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	line = strings.TrimSuffix(line, ",")
	if line == "" {
		return 0, ErrNoSampleRate
	}

	rate, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNoSampleRate, line)
	}
	if rate <= 0 {
		return 0, ErrNoSampleRate
	}
	return rate, nil
}

// WAVHeader читает частоту из заголовка RIFF/WAVE без внешних процессов.
type WAVHeader struct{}

// SampleRate читает заголовок WAV файла.
func (WAVHeader) SampleRate(ctx context.Context, path string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("не удалось открыть файл: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("%w: не WAV файл", ErrNoSampleRate)
	}
	if dec.SampleRate == 0 {
		return 0, ErrNoSampleRate
	}

	return int(dec.SampleRate), nil
}

// Chain пробует несколько Prober по порядку.
type Chain []Prober

// SampleRate возвращает первый успешный результат.
func (c Chain) SampleRate(ctx context.Context, path string) (int, error) {
	var errs []error
	for _, p := range c {
		rate, err := p.SampleRate(ctx, path)
		if err == nil && rate > 0 {
			return rate, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return 0, ErrNoSampleRate
	}
	return 0, errors.Join(errs...)
}
