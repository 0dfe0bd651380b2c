// Package config содержит конфигурацию приложения.
package config

import "sort"

// Preset определяет встроенный профиль растяжения.
type Preset string

const (
	// PresetDefault - исходные значения пакетных скриптов: +2 полутона, темп 1/0.993.
	PresetDefault Preset = "default"
	// PresetSemitoneUp - на полутон выше без изменения длительности.
	PresetSemitoneUp Preset = "semitone-up"
	// PresetSemitoneDown - на полутон ниже без изменения длительности.
	PresetSemitoneDown Preset = "semitone-down"
	// PresetOctaveUp - на октаву выше без изменения длительности.
	PresetOctaveUp Preset = "octave-up"
	// PresetPALSpeedup - 23.976 -> 25 fps с сохранением высоты тона.
	PresetPALSpeedup Preset = "pal-speedup"
	// PresetPALSlowdown - 25 -> 23.976 fps с сохранением высоты тона.
	PresetPALSlowdown Preset = "pal-slowdown"
)

// PresetConfig содержит настройки для пресета.
type PresetConfig struct {
	// PitchRatio - множитель высоты тона.
	PitchRatio float64
	// TimeScale - множитель длительности.
	TimeScale float64
}

// Presets содержит все доступные пресеты.
var Presets = map[Preset]PresetConfig{
	PresetDefault:      {PitchRatio: 1.12246, TimeScale: 0.993},
	PresetSemitoneUp:   {PitchRatio: 1.059463, TimeScale: 1},
	PresetSemitoneDown: {PitchRatio: 0.943874, TimeScale: 1},
	PresetOctaveUp:     {PitchRatio: 2, TimeScale: 1},
	PresetPALSpeedup:   {PitchRatio: 1, TimeScale: 0.95904},
	PresetPALSlowdown:  {PitchRatio: 1, TimeScale: 1.042709},
}

// ApplyPreset применяет пресет к конфигурации.
// Возвращает true, если пресет был применён.
func (c *Config) ApplyPreset(preset string) bool {
	p, ok := Presets[Preset(preset)]
	if !ok {
		return false
	}

	c.PitchRatio = p.PitchRatio
	c.TimeScale = p.TimeScale
	c.Preset = preset

	return true
}

// ValidPresets возвращает отсортированный список доступных пресетов.
func ValidPresets() []string {
	names := make([]string, 0, len(Presets))
	for p := range Presets {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}
