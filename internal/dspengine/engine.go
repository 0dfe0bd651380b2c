// Package dspengine - встроенный движок растяжения на чистом Go.
//
// Сигнал сначала сдвигается по высоте на PitchRatio*TimeScale (длительность
// сохраняется), затем передискретизируется в TimeScale раз длиннее: при
// воспроизведении на исходной частоте тон опускается на 1/TimeScale, итоговый
// сдвиг равен PitchRatio.
package dspengine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/cwbudde/algo-dsp/dsp/effects/pitch"
	"github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM = 1
	identityEps  = 1e-9
)

// ErrUnsupportedInput возвращается для WAV, который движок не умеет читать.
var ErrUnsupportedInput = errors.New("неподдерживаемый входной файл")

// Request описывает одну операцию растяжения.
type Request struct {
	// Input - путь к входному WAV.
	Input string

	// Output - путь к выходному WAV.
	Output string

	// PitchRatio - множитель высоты тона.
	PitchRatio float64

	// TimeScale - множитель длительности.
	TimeScale float64

	// BitDepth - разрядность выхода: 16, 24 или 32.
	BitDepth int

	// Quality - качество передискретизации.
	Quality resample.Quality
}

// Stretch читает Input, применяет сдвиг и растяжение и пишет Output.
func Stretch(ctx context.Context, req Request) error {
	if err := req.validate(); err != nil {
		return err
	}

	channels, sampleRate, err := readChannels(req.Input)
	if err != nil {
		return err
	}

	shifter, err := pitch.NewPitchShifter(float64(sampleRate))
	if err != nil {
		return fmt.Errorf("pitch shifter: %w", err)
	}
	if err := shifter.SetPitchRatio(req.PitchRatio * req.TimeScale); err != nil {
		return fmt.Errorf("pitch shifter: %w", err)
	}

	var rs *resample.Resampler
	if math.Abs(req.TimeScale-1) > identityEps {
		rs, err = resample.NewForRates(float64(sampleRate), float64(sampleRate)*req.TimeScale,
			resample.WithQuality(req.Quality))
		if err != nil {
			return fmt.Errorf("resampler: %w", err)
		}
	}

	processed := make([][]float64, len(channels))
	for c, data := range channels {
		if err := ctx.Err(); err != nil {
			return err
		}

		out := shifter.Process(data)
		if rs != nil {
			rs.Reset()
			out = rs.Process(out)
		}
		processed[c] = out
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return writeChannels(req.Output, processed, sampleRate, req.BitDepth)
}

func (r Request) validate() error {
	if r.Input == "" || r.Output == "" {
		return fmt.Errorf("не указан входной или выходной файл")
	}
	if !(r.PitchRatio > 0) || math.IsInf(r.PitchRatio, 0) {
		return fmt.Errorf("некорректный pitch ratio: %v", r.PitchRatio)
	}
	if !(r.TimeScale > 0) || math.IsInf(r.TimeScale, 0) {
		return fmt.Errorf("некорректный time scale: %v", r.TimeScale)
	}
	switch r.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("неподдерживаемая разрядность: %d", r.BitDepth)
	}
	return nil
}

// readChannels декодирует WAV в раздельные каналы с сэмплами в [-1, 1).
func readChannels(path string) ([][]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("не удалось открыть %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: %s не является WAV", ErrUnsupportedInput, path)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, 0, fmt.Errorf("%w: формат WAV %d (нужен PCM)", ErrUnsupportedInput, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("не удалось декодировать %s: %w", path, err)
	}

	numChans := int(dec.NumChans)
	depth := int(dec.BitDepth)
	if numChans < 1 || depth < 8 || depth > 32 {
		return nil, 0, fmt.Errorf("%w: каналов %d, разрядность %d", ErrUnsupportedInput, numChans, depth)
	}

	full := float64(int64(1) << (depth - 1))
	frames := len(buf.Data) / numChans
	channels := make([][]float64, numChans)
	for c := range channels {
		channels[c] = make([]float64, frames)
	}

	for i := 0; i < frames; i++ {
		for c := 0; c < numChans; c++ {
			v := buf.Data[i*numChans+c]
			// 8-битный WAV хранится беззнаковым
			if depth == 8 {
				v -= 128
			}
			channels[c][i] = float64(v) / full
		}
	}

	return channels, int(dec.SampleRate), nil
}

// writeChannels чередует каналы и пишет целочисленный PCM WAV.
func writeChannels(path string, channels [][]float64, sampleRate, bitDepth int) error {
	frames := 0
	for c, data := range channels {
		if c == 0 || len(data) < frames {
			frames = len(data)
		}
	}

	full := float64(int64(1) << (bitDepth - 1))
	data := make([]int, frames*len(channels))
	for i := 0; i < frames; i++ {
		for c := range channels {
			data[i*len(channels)+c] = quantize(channels[c][i], full)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("не удалось создать %s: %w", path, err)
	}

	enc := wav.NewEncoder(f, sampleRate, bitDepth, len(channels), wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: len(channels), SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}

	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		return fmt.Errorf("не удалось записать %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("не удалось завершить %s: %w", path, err)
	}

	return f.Close()
}

// quantize переводит сэмпл из [-1, 1) в целое с насыщением.
func quantize(v, full float64) int {
	s := math.Round(v * full)
	if s > full-1 {
		s = full - 1
	}
	if s < -full {
		s = -full
	}
	return int(s)
}
