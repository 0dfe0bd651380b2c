package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/artemshloyda/tempobench/internal/config"
	"github.com/artemshloyda/tempobench/internal/probe"
	"github.com/artemshloyda/tempobench/internal/scheme"
	"github.com/artemshloyda/tempobench/internal/toolfinder"
)

// toolset - найденные внешние инструменты. Любой из них может отсутствовать.
type toolset struct {
	ffmpeg     *toolfinder.ToolInfo
	ffprobe    *toolfinder.ToolInfo
	rubberband *toolfinder.ToolInfo

	filters map[string]bool
}

// discoverTools ищет ffmpeg, ffprobe и rubberband и опрашивает фильтры ffmpeg.
func discoverTools(ctx context.Context, cfg *config.Config, verbose bool) *toolset {
	t := &toolset{
		ffmpeg:     findTool("ffmpeg", cfg.FFmpegPath, verbose),
		ffprobe:    findTool("ffprobe", cfg.FFprobePath, verbose),
		rubberband: findTool("rubberband", cfg.RubberbandPath, verbose),
	}

	if t.ffmpeg != nil {
		filters, err := t.ffmpeg.Filters(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Не удалось получить список фильтров ffmpeg: %v\n", err)
		}
		t.filters = filters
	}

	return t
}

func findTool(name, custom string, verbose bool) *toolfinder.ToolInfo {
	info, err := toolfinder.NewFinder(name, custom).Find()
	if err != nil {
		if verbose || custom != "" {
			fmt.Fprintf(os.Stderr, "⚠️  %v\n", err)
		} else {
			fmt.Printf("⚪ %s не найден\n", name)
		}
		return nil
	}
	fmt.Printf("📦 Найден %s: %s (версия %s)\n", info.Name, info.Path, info.Version)
	return info
}

// capabilities описывает установленные инструменты для проверки схем.
func (t *toolset) capabilities(format config.SampleFormat) scheme.Capabilities {
	caps := scheme.Capabilities{
		FFmpegFilters: t.filters,
		Format:        format,
	}
	if t.ffmpeg != nil {
		caps.FFmpegPath = t.ffmpeg.Path
	}
	if t.rubberband != nil {
		caps.RubberbandPath = t.rubberband.Path
		caps.RubberbandVersion = t.rubberband.Version
	}
	return caps
}

// programs сопоставляет логические имена программ с путями.
func (t *toolset) programs() map[string]string {
	programs := make(map[string]string)
	if t.ffmpeg != nil {
		programs["ffmpeg"] = t.ffmpeg.Path
	}
	if t.rubberband != nil {
		programs["rubberband"] = t.rubberband.Path
	}
	return programs
}

// prober выбирает способ определения частоты дискретизации.
func (t *toolset) prober(mode config.ProbeMode) (probe.Prober, error) {
	switch mode {
	case config.ProbeFFprobe:
		if t.ffprobe == nil {
			return nil, fmt.Errorf("ffprobe не найден (укажите --ffprobe-path или --probe header)")
		}
		return probe.NewFFprobe(t.ffprobe.Path), nil
	case config.ProbeHeader:
		return probe.WAVHeader{}, nil
	default:
		if t.ffprobe == nil {
			return probe.WAVHeader{}, nil
		}
		return probe.Chain{probe.NewFFprobe(t.ffprobe.Path), probe.WAVHeader{}}, nil
	}
}
