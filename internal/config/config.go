// Package config содержит конфигурацию приложения.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/artemshloyda/tempobench/internal/derive"
)

// ErrInvalidFormat возвращается для неизвестного выходного формата.
var ErrInvalidFormat = errors.New("неизвестный выходной формат")

// SampleFormat определяет формат сэмплов выходного файла.
type SampleFormat string

const (
	FormatPCM16   SampleFormat = "pcm16"
	FormatPCM24   SampleFormat = "pcm24"
	FormatPCM32   SampleFormat = "pcm32"
	FormatFloat32 SampleFormat = "float32"
	FormatFloat64 SampleFormat = "float64"
	FormatFLAC    SampleFormat = "flac"
)

// ProbeMode определяет способ определения частоты дискретизации.
type ProbeMode string

const (
	// ProbeAuto - сначала ffprobe, затем заголовок WAV.
	ProbeAuto ProbeMode = "auto"
	// ProbeFFprobe - только ffprobe.
	ProbeFFprobe ProbeMode = "ffprobe"
	// ProbeHeader - только чтение заголовка WAV.
	ProbeHeader ProbeMode = "header"
)

// ValidFormats возвращает список поддерживаемых форматов.
func ValidFormats() []SampleFormat {
	return []SampleFormat{FormatPCM16, FormatPCM24, FormatPCM32, FormatFloat32, FormatFloat64, FormatFLAC}
}

// Valid проверяет, что формат известен.
func (f SampleFormat) Valid() bool {
	for _, v := range ValidFormats() {
		if f == v {
			return true
		}
	}
	return false
}

// FFmpegCodec возвращает имя кодека ffmpeg для формата.
func (f SampleFormat) FFmpegCodec() string {
	switch f {
	case FormatPCM24:
		return "pcm_s24le"
	case FormatPCM32:
		return "pcm_s32le"
	case FormatFloat32:
		return "pcm_f32le"
	case FormatFloat64:
		return "pcm_f64le"
	case FormatFLAC:
		return "flac"
	default:
		return "pcm_s16le"
	}
}

// Extension возвращает расширение выходного файла (без точки).
func (f SampleFormat) Extension() string {
	if f == FormatFLAC {
		return "flac"
	}
	return "wav"
}

// BitDepth возвращает разрядность целочисленного PCM (0 для float и flac).
func (f SampleFormat) BitDepth() int {
	switch f {
	case FormatPCM16:
		return 16
	case FormatPCM24:
		return 24
	case FormatPCM32:
		return 32
	default:
		return 0
	}
}

// Request - неизменяемые параметры конвертации на время запуска.
type Request struct {
	PitchRatio float64      `json:"pitch_ratio" yaml:"pitch_ratio"`
	TimeScale  float64      `json:"time_scale" yaml:"time_scale"`
	Format     SampleFormat `json:"format" yaml:"format"`
	OutputDir  string       `json:"output_dir" yaml:"output_dir"`
}

// Config содержит все настройки запуска.
type Config struct {
	// InputDir - директория с исходными WAV файлами.
	InputDir string

	// OutputDir - директория для результатов.
	OutputDir string

	// InputExtensions - список расширений входных файлов (без точки, lowercase).
	InputExtensions []string

	// Recursive - обходить поддиректории.
	Recursive bool

	// PitchRatio - множитель высоты тона.
	PitchRatio float64

	// TimeScale - множитель длительности.
	TimeScale float64

	// OutputFormat - формат сэмплов выходных файлов.
	OutputFormat SampleFormat

	// Workers - количество параллельных задач.
	Workers int

	// Schemes - схемы обработки, участвующие в запуске (пусто = все).
	Schemes []string

	// Probe - способ определения частоты дискретизации.
	Probe ProbeMode

	// FFmpegPath - путь к ffmpeg (опционально).
	FFmpegPath string

	// FFprobePath - путь к ffprobe (опционально).
	FFprobePath string

	// RubberbandPath - путь к rubberband (опционально).
	RubberbandPath string

	// Timeout - таймаут на одну задачу.
	Timeout time.Duration

	// MaxMemoryMB - ограничение памяти для встроенного движка (0 = без ограничения).
	MaxMemoryMB int

	// DBPath - путь к SQLite базе истории запусков.
	DBPath string

	// NoHistory - не сохранять историю запусков.
	NoHistory bool

	// ReportPath - путь для структурированного отчёта (пусто = не сохранять).
	ReportPath string

	// ReportFormat - формат отчёта: json, csv, yaml.
	ReportFormat string

	// DryRun - печатать план без запуска внешних программ.
	DryRun bool

	// Watch - режим слежения за директорией.
	Watch bool

	// Verbose - подробный вывод.
	Verbose bool

	// NoProgress - отключить прогресс-бар.
	NoProgress bool

	// Preset - встроенный профиль (pitch/scale).
	Preset string
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() *Config {
	return &Config{
		InputDir:        ".",
		OutputDir:       "converted",
		InputExtensions: []string{"wav"},
		PitchRatio:      1.12246,
		TimeScale:       0.993,
		OutputFormat:    FormatPCM16,
		Workers:         runtime.NumCPU(),
		Probe:           ProbeAuto,
		Timeout:         10 * time.Minute,
		ReportFormat:    "json",
	}
}

// Validate проверяет корректность конфигурации.
func (c *Config) Validate() error {
	if _, err := derive.Derive(c.PitchRatio, c.TimeScale); err != nil {
		return err
	}
	if c.InputDir == "" {
		return fmt.Errorf("входная директория не указана (--in)")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("выходная директория не указана (--out)")
	}
	if sameDir(c.InputDir, c.OutputDir) {
		return fmt.Errorf("выходная директория совпадает со входной: %s (результаты попадут во вход следующего запуска)", c.OutputDir)
	}
	if len(c.InputExtensions) == 0 {
		return fmt.Errorf("не указаны расширения входных файлов (--in-ext)")
	}
	if !c.OutputFormat.Valid() {
		return fmt.Errorf("%w: %s (доступны: %s)", ErrInvalidFormat, c.OutputFormat, joinFormats())
	}
	if c.Workers < 1 {
		return fmt.Errorf("количество воркеров должно быть >= 1, получено: %d", c.Workers)
	}
	switch c.Probe {
	case ProbeAuto, ProbeFFprobe, ProbeHeader:
	default:
		return fmt.Errorf("неизвестный способ проверки: %s (доступны: auto, ffprobe, header)", c.Probe)
	}
	switch c.ReportFormat {
	case "json", "csv", "yaml":
	default:
		return fmt.Errorf("неизвестный формат отчёта: %s (доступны: json, csv, yaml)", c.ReportFormat)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("таймаут должен быть > 0, получено: %s", c.Timeout)
	}

	// Устанавливаем путь к БД по умолчанию
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath(c.OutputDir)
	}

	return nil
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// DefaultDBPath возвращает путь к базе истории внутри выходной директории.
func DefaultDBPath(outputDir string) string {
	return filepath.Join(outputDir, ".tempobench", "history.sqlite")
}

// Request возвращает снимок параметров конвертации.
func (c *Config) Request() Request {
	return Request{
		PitchRatio: c.PitchRatio,
		TimeScale:  c.TimeScale,
		Format:     c.OutputFormat,
		OutputDir:  c.OutputDir,
	}
}

// RequestParams возвращает параметры конвертации в виде JSON.
func (c *Config) RequestParams() string {
	params := map[string]interface{}{
		"pitch_ratio": c.PitchRatio,
		"time_scale":  c.TimeScale,
		"format":      c.OutputFormat,
	}
	b, _ := json.Marshal(params)
	return string(b)
}

// RequestHash возвращает sha256 хэш параметров конвертации.
// Запуски с одинаковым хэшем сравнимы между собой.
func (c *Config) RequestHash() string {
	h := sha256.Sum256([]byte(c.RequestParams()))
	return hex.EncodeToString(h[:])
}

// HasInputExtension проверяет, поддерживается ли расширение файла.
func (c *Config) HasInputExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, e := range c.InputExtensions {
		if strings.ToLower(strings.TrimPrefix(e, ".")) == ext {
			return true
		}
	}
	return false
}

func joinFormats() string {
	var names []string
	for _, f := range ValidFormats() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

/*
Возможные расширения:
- Добавить выбор числа каналов выходного файла
- Добавить передискретизацию выхода на фиксированную частоту
*/
