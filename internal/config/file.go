// Package config содержит конфигурацию приложения.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig представляет структуру конфигурационного файла YAML.
// Все поля опциональны - если не указаны, используются значения по умолчанию.
type FileConfig struct {
	// Input - настройки входных данных.
	Input *InputConfig `yaml:"input,omitempty"`

	// Output - настройки выходных данных.
	Output *OutputConfig `yaml:"output,omitempty"`

	// Conversion - параметры растяжения.
	Conversion *ConversionConfig `yaml:"conversion,omitempty"`

	// Processing - настройки обработки.
	Processing *ProcessingConfig `yaml:"processing,omitempty"`

	// Paths - настройки путей.
	Paths *PathsConfig `yaml:"paths,omitempty"`
}

// InputConfig содержит настройки входных данных.
type InputConfig struct {
	// Dir - директория с исходными файлами.
	Dir string `yaml:"dir,omitempty"`

	// Extensions - список расширений входных файлов.
	Extensions []string `yaml:"extensions,omitempty"`

	// Recursive - обходить поддиректории.
	Recursive *bool `yaml:"recursive,omitempty"`
}

// OutputConfig содержит настройки выходных данных.
type OutputConfig struct {
	// Dir - директория для сохранения результатов.
	Dir string `yaml:"dir,omitempty"`

	// Format - формат сэмплов (pcm16, pcm24, pcm32, float32, float64, flac).
	Format string `yaml:"format,omitempty"`

	// Report - путь к структурированному отчёту.
	Report string `yaml:"report,omitempty"`

	// ReportFormat - формат отчёта (json, csv, yaml).
	ReportFormat string `yaml:"report_format,omitempty"`
}

// ConversionConfig содержит параметры растяжения.
type ConversionConfig struct {
	// Preset - встроенный профиль.
	Preset string `yaml:"preset,omitempty"`

	// PitchRatio - множитель высоты тона.
	PitchRatio float64 `yaml:"pitch_ratio,omitempty"`

	// TimeScale - множитель длительности.
	TimeScale float64 `yaml:"time_scale,omitempty"`
}

// ProcessingConfig содержит настройки обработки.
type ProcessingConfig struct {
	// Workers - количество параллельных задач.
	Workers int `yaml:"workers,omitempty"`

	// Schemes - список схем обработки.
	Schemes []string `yaml:"schemes,omitempty"`

	// Probe - способ определения частоты дискретизации.
	Probe string `yaml:"probe,omitempty"`

	// Timeout - таймаут на задачу (например, "10m").
	Timeout string `yaml:"timeout,omitempty"`

	// MaxMemoryMB - ограничение памяти встроенного движка.
	MaxMemoryMB int `yaml:"max_memory_mb,omitempty"`

	// DryRun - режим симуляции.
	DryRun bool `yaml:"dry_run,omitempty"`

	// Verbose - подробный вывод.
	Verbose bool `yaml:"verbose,omitempty"`

	// NoProgress - отключить прогресс-бар.
	NoProgress bool `yaml:"no_progress,omitempty"`
}

// PathsConfig содержит настройки путей.
type PathsConfig struct {
	// DB - путь к SQLite базе истории.
	DB string `yaml:"db,omitempty"`

	// NoHistory - не сохранять историю.
	NoHistory bool `yaml:"no_history,omitempty"`

	// FFmpeg - путь к бинарнику ffmpeg.
	FFmpeg string `yaml:"ffmpeg,omitempty"`

	// FFprobe - путь к бинарнику ffprobe.
	FFprobe string `yaml:"ffprobe,omitempty"`

	// Rubberband - путь к бинарнику rubberband.
	Rubberband string `yaml:"rubberband,omitempty"`
}

// DefaultConfigPaths возвращает список путей для поиска конфигурационного файла.
// Поиск выполняется в следующем порядке:
// 1. ./tempobench.yaml (текущая директория)
// 2. ./tempobench.yml
// 3. ~/.config/tempobench/config.yaml
// 4. ~/.config/tempobench/config.yml
func DefaultConfigPaths() []string {
	paths := []string{
		"tempobench.yaml",
		"tempobench.yml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "tempobench", "config.yaml"),
			filepath.Join(home, ".config", "tempobench", "config.yml"),
		)
	}

	return paths
}

// LoadFromFile загружает конфигурацию из указанного файла.
// Возвращает nil, nil если файл не существует.
func LoadFromFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("ошибка парсинга YAML в %s: %w", path, err)
	}

	return &fc, nil
}

// SaveToFile сохраняет конфигурацию в YAML файл.
func (fc *FileConfig) SaveToFile(path string) error {
	data, err := yaml.Marshal(fc)
	if err != nil {
		return fmt.Errorf("не удалось сериализовать конфигурацию: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", filepath.Dir(path), err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("не удалось записать %s: %w", path, err)
	}

	return nil
}

// FindAndLoadConfig ищет и загружает конфигурационный файл из стандартных путей.
// Если configPath указан явно, использует только его.
// Возвращает nil, "", nil если файл не найден.
func FindAndLoadConfig(configPath string) (*FileConfig, string, error) {
	if configPath != "" {
		fc, err := LoadFromFile(configPath)
		if err != nil {
			return nil, "", err
		}
		if fc == nil {
			return nil, "", fmt.Errorf("файл конфигурации не найден: %s", configPath)
		}
		return fc, configPath, nil
	}

	for _, path := range DefaultConfigPaths() {
		fc, err := LoadFromFile(path)
		if err != nil {
			return nil, "", err
		}
		if fc != nil {
			return fc, path, nil
		}
	}

	return nil, "", nil
}

// ApplyToConfig применяет настройки из файла к основной конфигурации.
// CLI флаги имеют приоритет над файлом, поэтому флаги применяются после.
func (fc *FileConfig) ApplyToConfig(cfg *Config) error {
	if fc == nil {
		return nil
	}

	if fc.Input != nil {
		if fc.Input.Dir != "" {
			cfg.InputDir = fc.Input.Dir
		}
		if len(fc.Input.Extensions) > 0 {
			cfg.InputExtensions = fc.Input.Extensions
		}
		if fc.Input.Recursive != nil {
			cfg.Recursive = *fc.Input.Recursive
		}
	}

	if fc.Output != nil {
		if fc.Output.Dir != "" {
			cfg.OutputDir = fc.Output.Dir
		}
		if fc.Output.Format != "" {
			cfg.OutputFormat = SampleFormat(fc.Output.Format)
		}
		if fc.Output.Report != "" {
			cfg.ReportPath = fc.Output.Report
		}
		if fc.Output.ReportFormat != "" {
			cfg.ReportFormat = fc.Output.ReportFormat
		}
	}

	// Пресет применяется до явных значений, чтобы их можно было уточнить
	if fc.Conversion != nil {
		if fc.Conversion.Preset != "" && !cfg.ApplyPreset(fc.Conversion.Preset) {
			return fmt.Errorf("неизвестный пресет: %s", fc.Conversion.Preset)
		}
		if fc.Conversion.PitchRatio != 0 {
			cfg.PitchRatio = fc.Conversion.PitchRatio
		}
		if fc.Conversion.TimeScale != 0 {
			cfg.TimeScale = fc.Conversion.TimeScale
		}
	}

	if fc.Processing != nil {
		if fc.Processing.Workers > 0 {
			cfg.Workers = fc.Processing.Workers
		}
		if len(fc.Processing.Schemes) > 0 {
			cfg.Schemes = fc.Processing.Schemes
		}
		if fc.Processing.Probe != "" {
			cfg.Probe = ProbeMode(fc.Processing.Probe)
		}
		if fc.Processing.Timeout != "" {
			d, err := time.ParseDuration(fc.Processing.Timeout)
			if err != nil {
				return fmt.Errorf("некорректный таймаут %q: %w", fc.Processing.Timeout, err)
			}
			cfg.Timeout = d
		}
		if fc.Processing.MaxMemoryMB > 0 {
			cfg.MaxMemoryMB = fc.Processing.MaxMemoryMB
		}
		if fc.Processing.DryRun {
			cfg.DryRun = true
		}
		if fc.Processing.Verbose {
			cfg.Verbose = true
		}
		if fc.Processing.NoProgress {
			cfg.NoProgress = true
		}
	}

	if fc.Paths != nil {
		if fc.Paths.DB != "" {
			cfg.DBPath = fc.Paths.DB
		}
		if fc.Paths.NoHistory {
			cfg.NoHistory = true
		}
		if fc.Paths.FFmpeg != "" {
			cfg.FFmpegPath = fc.Paths.FFmpeg
		}
		if fc.Paths.FFprobe != "" {
			cfg.FFprobePath = fc.Paths.FFprobe
		}
		if fc.Paths.Rubberband != "" {
			cfg.RubberbandPath = fc.Paths.Rubberband
		}
	}

	return nil
}

// FromConfig строит FileConfig из текущей конфигурации (для сохранения пресетов).
func FromConfig(cfg *Config) *FileConfig {
	recursive := cfg.Recursive
	fc := &FileConfig{
		Input: &InputConfig{
			Dir:        cfg.InputDir,
			Extensions: cfg.InputExtensions,
			Recursive:  &recursive,
		},
		Output: &OutputConfig{
			Dir:          cfg.OutputDir,
			Format:       string(cfg.OutputFormat),
			Report:       cfg.ReportPath,
			ReportFormat: cfg.ReportFormat,
		},
		Conversion: &ConversionConfig{
			PitchRatio: cfg.PitchRatio,
			TimeScale:  cfg.TimeScale,
		},
		Processing: &ProcessingConfig{
			Workers:     cfg.Workers,
			Schemes:     cfg.Schemes,
			Probe:       string(cfg.Probe),
			Timeout:     cfg.Timeout.String(),
			MaxMemoryMB: cfg.MaxMemoryMB,
			Verbose:     cfg.Verbose,
			NoProgress:  cfg.NoProgress,
		},
		Paths: &PathsConfig{
			DB:         cfg.DBPath,
			NoHistory:  cfg.NoHistory,
			FFmpeg:     cfg.FFmpegPath,
			FFprobe:    cfg.FFprobePath,
			Rubberband: cfg.RubberbandPath,
		},
	}
	return fc
}

// GenerateExampleConfig генерирует пример конфигурационного файла.
func GenerateExampleConfig() string {
	return `# tempobench configuration file
# Все параметры опциональны - если не указаны, используются значения по умолчанию.
# CLI флаги имеют приоритет над этим файлом.

input:
  # Директория с исходными WAV файлами
  dir: "."
  # Расширения входных файлов (без точки)
  extensions:
    - wav
  # Обходить поддиректории
  recursive: false

output:
  # Директория для результатов
  dir: "converted"
  # Формат сэмплов: pcm16, pcm24, pcm32, float32, float64, flac
  format: pcm16
  # Структурированный отчёт (пусто = не сохранять)
  report: ""
  # Формат отчёта: json, csv, yaml
  report_format: json

conversion:
  # Встроенный профиль: default, semitone-up, semitone-down, octave-up, pal-speedup, pal-slowdown
  preset: ""
  # Множитель высоты тона
  pitch_ratio: 1.12246
  # Множитель длительности
  time_scale: 0.993

processing:
  # Количество параллельных задач (по умолчанию = CPU cores)
  workers: 8
  # Схемы обработки (пусто = все доступные)
  schemes:
    - ffmpeg-rubberband
    - ffmpeg-atempo
    - ffmpeg-scaletempo
    - rubberband-r2
    - rubberband-r3
    - algodsp
  # Определение частоты дискретизации: auto, ffprobe, header
  probe: auto
  # Таймаут на одну задачу
  timeout: 10m
  # Ограничение памяти встроенного движка, МБ (0 = без ограничения)
  max_memory_mb: 0

paths:
  # Путь к SQLite базе истории запусков
  db: ""
  # Не сохранять историю
  no_history: false
  # Пути к инструментам (по умолчанию автопоиск)
  ffmpeg: ""
  ffprobe: ""
  rubberband: ""
`
}
