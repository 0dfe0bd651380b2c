// Package derive вычисляет параметры темпа для движков растяжения.
package derive

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// MinTempo - нижняя граница нативного фильтра atempo.
	MinTempo = 0.5
	// MaxTempo - верхняя граница нативного фильтра atempo.
	MaxTempo = 2.0
	// Epsilon - допуск при сравнении коэффициентов.
	Epsilon = 1e-6
)

// ErrInvalidParameter возвращается для неположительных или нечисловых коэффициентов.
var ErrInvalidParameter = errors.New("некорректный параметр")

// Params содержит параметры, производные от запроса на конвертацию.
type Params struct {
	// PitchRatio - множитель частоты.
	PitchRatio float64

	// TimeScale - множитель длительности.
	TimeScale float64

	// TempoTarget - итоговый темп (1 / TimeScale).
	TempoTarget float64

	// TempoFix - темп после asetrate (TempoTarget / PitchRatio).
	TempoFix float64
}

// Derive переводит пользовательские (pitch, scale) в параметры движка.
func Derive(pitchRatio, timeScale float64) (Params, error) {
	if !isPositive(pitchRatio) {
		return Params{}, fmt.Errorf("%w: pitch ratio должен быть > 0, получено %v", ErrInvalidParameter, pitchRatio)
	}
	if !isPositive(timeScale) {
		return Params{}, fmt.Errorf("%w: time scale должен быть > 0, получено %v", ErrInvalidParameter, timeScale)
	}

	target := 1 / timeScale
	return Params{
		PitchRatio:  pitchRatio,
		TimeScale:   timeScale,
		TempoTarget: target,
		TempoFix:    target / pitchRatio,
	}, nil
}

// Decompose раскладывает коэффициент в цепочку шагов из [MinTempo, MaxTempo],
// произведение которых равно ratio.
func Decompose(ratio float64) ([]float64, error) {
	if !isPositive(ratio) {
		return nil, fmt.Errorf("%w: коэффициент должен быть > 0, получено %v", ErrInvalidParameter, ratio)
	}

	if inRange(ratio) {
		return []float64{ratio}, nil
	}

	var chain []float64
	remaining := ratio

	// Квадратный корень быстрее всего приближает остаток к 1
	for remaining > MaxTempo {
		step := clamp(math.Sqrt(remaining))
		chain = append(chain, step)
		remaining /= step
	}
	for remaining < MinTempo {
		step := clamp(math.Sqrt(remaining))
		chain = append(chain, step)
		remaining /= step
	}

	if math.Abs(remaining-1) > Epsilon {
		chain = append(chain, remaining)
	}

	return chain, nil
}

// AtempoChain возвращает цепочку фильтров ffmpeg вида "atempo=a,atempo=b".
func AtempoChain(ratio float64) (string, error) {
	chain, err := Decompose(ratio)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(chain))
	for _, step := range chain {
		parts = append(parts, "atempo="+FormatRatio(step))
	}
	return strings.Join(parts, ","), nil
}

// FormatRatio форматирует коэффициент с точностью 6 знаков без хвостовых нулей.
func FormatRatio(v float64) string {
	s := strconv.FormatFloat(v, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func clamp(v float64) float64 {
	return math.Max(MinTempo, math.Min(MaxTempo, v))
}

func inRange(v float64) bool {
	return v >= MinTempo && v <= MaxTempo
}

func isPositive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
