package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/artemshloyda/tempobench/internal/config"
	"github.com/artemshloyda/tempobench/internal/scheme"
)

// runFlags - значения флагов запуска. Применяются поверх файла конфигурации,
// только если флаг задан явно.
type runFlags struct {
	values *config.Config

	format     string
	probe      string
	preset     string
	configPath string
	savePreset string
	loadPreset string
}

func newRunFlags() *runFlags {
	return &runFlags{values: config.DefaultConfig()}
}

// register добавляет флаги запуска в набор.
func (rf *runFlags) register(flags *pflag.FlagSet) {
	v := rf.values

	// Входные параметры
	flags.StringVar(&v.InputDir, "in", v.InputDir, "Директория с исходными WAV файлами")
	flags.StringVar(&v.OutputDir, "out", v.OutputDir, "Директория для результатов")
	flags.StringSliceVar(&v.InputExtensions, "in-ext", v.InputExtensions, "Расширения входных файлов через запятую")
	flags.BoolVarP(&v.Recursive, "recursive", "r", v.Recursive, "Обходить поддиректории")

	// Параметры растяжения
	flags.Float64Var(&v.PitchRatio, "pitch", v.PitchRatio, "Множитель высоты тона (1.12246 = +2 полутона)")
	flags.Float64Var(&v.TimeScale, "scale", v.TimeScale, "Множитель длительности (0.993 = на 0.7% короче)")
	flags.StringVar(&rf.format, "format", string(v.OutputFormat),
		"Формат сэмплов: "+joinStrings(config.ValidFormats()))
	flags.StringVar(&rf.preset, "preset", "", "Встроенный профиль: "+strings.Join(config.ValidPresets(), ", "))

	// Схемы и инструменты
	flags.StringSliceVar(&v.Schemes, "schemes", nil, "Схемы через запятую (по умолчанию все): "+strings.Join(scheme.Names(), ", "))
	flags.StringVar(&rf.probe, "probe", string(v.Probe), "Определение частоты: auto, ffprobe, header")
	flags.StringVar(&v.FFmpegPath, "ffmpeg-path", v.FFmpegPath, "Путь к ffmpeg")
	flags.StringVar(&v.FFprobePath, "ffprobe-path", v.FFprobePath, "Путь к ffprobe")
	flags.StringVar(&v.RubberbandPath, "rubberband-path", v.RubberbandPath, "Путь к rubberband")

	// Производительность
	flags.IntVar(&v.Workers, "workers", v.Workers, "Количество параллельных задач")
	flags.DurationVar(&v.Timeout, "timeout", v.Timeout, "Таймаут на одну задачу")
	flags.IntVar(&v.MaxMemoryMB, "max-memory", v.MaxMemoryMB, "Ограничение памяти на задачи в MB (0 = без ограничения)")

	// Отчёт и история
	flags.StringVar(&v.ReportPath, "report", v.ReportPath, "Сохранить структурированный отчёт в файл")
	flags.StringVar(&v.ReportFormat, "report-format", v.ReportFormat, "Формат отчёта: json, csv, yaml")
	flags.StringVar(&v.DBPath, "db", v.DBPath, "Путь к SQLite базе истории (по умолчанию <out>/.tempobench/history.sqlite)")
	flags.BoolVar(&v.NoHistory, "no-history", v.NoHistory, "Не сохранять историю запусков")

	// Режимы
	flags.BoolVar(&v.DryRun, "dry-run", v.DryRun, "Показать план без запуска движков")
	flags.BoolVarP(&v.Watch, "watch", "w", v.Watch, "Следить за входной директорией")
	flags.BoolVarP(&v.Verbose, "verbose", "v", v.Verbose, "Подробный вывод")
	flags.BoolVar(&v.NoProgress, "no-progress", v.NoProgress, "Отключить прогресс-бар")

	// Конфигурация
	flags.StringVarP(&rf.configPath, "config", "c", "", "Путь к конфигурационному файлу")
	flags.StringVar(&rf.savePreset, "save-preset", "", "Сохранить текущие настройки как именованный пресет")
	flags.StringVar(&rf.loadPreset, "load-preset", "", "Загрузить именованный пресет")
}

// resolve собирает конфигурацию: значения по умолчанию, файл, сохранённый
// пресет, встроенный профиль и явно заданные флаги - в этом порядке.
func (rf *runFlags) resolve(flags *pflag.FlagSet, presets *config.PresetStore) (*config.Config, error) {
	cfg := config.DefaultConfig()

	fc, path, err := config.FindAndLoadConfig(rf.configPath)
	if err != nil {
		return nil, err
	}
	if fc != nil {
		if err := fc.ApplyToConfig(cfg); err != nil {
			return nil, fmt.Errorf("конфигурация %s: %w", path, err)
		}
		fmt.Printf("📄 Конфигурация: %s\n", path)
	}

	if rf.loadPreset != "" {
		pc, presetPath, err := presets.Load(rf.loadPreset)
		if err != nil {
			return nil, err
		}
		if err := pc.ApplyToConfig(cfg); err != nil {
			return nil, fmt.Errorf("пресет %s: %w", rf.loadPreset, err)
		}
		fmt.Printf("📦 Пресет: %s (%s)\n", rf.loadPreset, presetPath)
	}

	// Профиль до явных --pitch/--scale, чтобы их можно было уточнить
	if flags.Changed("preset") && !cfg.ApplyPreset(rf.preset) {
		return nil, fmt.Errorf("неизвестный пресет: %s (доступны: %s)", rf.preset, strings.Join(config.ValidPresets(), ", "))
	}

	flags.Visit(func(f *pflag.Flag) {
		rf.apply(cfg, f.Name)
	})

	return cfg, nil
}

// apply переносит значение одного явно заданного флага в cfg.
func (rf *runFlags) apply(cfg *config.Config, name string) {
	v := rf.values
	switch name {
	case "in":
		cfg.InputDir = v.InputDir
	case "out":
		cfg.OutputDir = v.OutputDir
	case "in-ext":
		cfg.InputExtensions = v.InputExtensions
	case "recursive":
		cfg.Recursive = v.Recursive
	case "pitch":
		cfg.PitchRatio = v.PitchRatio
	case "scale":
		cfg.TimeScale = v.TimeScale
	case "format":
		cfg.OutputFormat = config.SampleFormat(strings.ToLower(rf.format))
	case "schemes":
		cfg.Schemes = v.Schemes
	case "probe":
		cfg.Probe = config.ProbeMode(rf.probe)
	case "ffmpeg-path":
		cfg.FFmpegPath = v.FFmpegPath
	case "ffprobe-path":
		cfg.FFprobePath = v.FFprobePath
	case "rubberband-path":
		cfg.RubberbandPath = v.RubberbandPath
	case "workers":
		cfg.Workers = v.Workers
	case "timeout":
		cfg.Timeout = v.Timeout
	case "max-memory":
		cfg.MaxMemoryMB = v.MaxMemoryMB
	case "report":
		cfg.ReportPath = v.ReportPath
	case "report-format":
		cfg.ReportFormat = v.ReportFormat
	case "db":
		cfg.DBPath = v.DBPath
	case "no-history":
		cfg.NoHistory = v.NoHistory
	case "dry-run":
		cfg.DryRun = v.DryRun
	case "watch":
		cfg.Watch = v.Watch
	case "verbose":
		cfg.Verbose = v.Verbose
	case "no-progress":
		cfg.NoProgress = v.NoProgress
	}
}

func joinStrings[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
