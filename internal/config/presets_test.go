package config

import (
	"testing"

	"github.com/artemshloyda/tempobench/internal/derive"
)

func TestApplyPreset(t *testing.T) {
	tests := []struct {
		name      string
		preset    string
		wantOK    bool
		wantPitch float64
		wantScale float64
	}{
		{
			name:      "default preset",
			preset:    "default",
			wantOK:    true,
			wantPitch: 1.12246,
			wantScale: 0.993,
		},
		{
			name:      "octave up",
			preset:    "octave-up",
			wantOK:    true,
			wantPitch: 2,
			wantScale: 1,
		},
		{
			name:      "pal speedup",
			preset:    "pal-speedup",
			wantOK:    true,
			wantPitch: 1,
			wantScale: 0.95904,
		},
		{
			name:   "unknown preset",
			preset: "unknown",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.PitchRatio = 3
			ok := cfg.ApplyPreset(tt.preset)

			if ok != tt.wantOK {
				t.Errorf("ApplyPreset() = %v, want %v", ok, tt.wantOK)
			}

			if !tt.wantOK {
				if cfg.PitchRatio != 3 {
					t.Errorf("PitchRatio изменён неизвестным пресетом: %v", cfg.PitchRatio)
				}
				return
			}

			if cfg.PitchRatio != tt.wantPitch {
				t.Errorf("PitchRatio = %v, want %v", cfg.PitchRatio, tt.wantPitch)
			}
			if cfg.TimeScale != tt.wantScale {
				t.Errorf("TimeScale = %v, want %v", cfg.TimeScale, tt.wantScale)
			}
			if cfg.Preset != tt.preset {
				t.Errorf("Preset = %q, want %q", cfg.Preset, tt.preset)
			}
		})
	}
}

func TestValidPresets(t *testing.T) {
	presets := ValidPresets()

	if len(presets) != len(Presets) {
		t.Fatalf("ValidPresets() вернул %d, want %d", len(presets), len(Presets))
	}

	for i := 1; i < len(presets); i++ {
		if presets[i-1] > presets[i] {
			t.Errorf("ValidPresets() не отсортирован: %v", presets)
		}
	}

	for _, name := range presets {
		p := Presets[Preset(name)]
		if _, err := derive.Derive(p.PitchRatio, p.TimeScale); err != nil {
			t.Errorf("пресет %s некорректен: %v", name, err)
		}
	}
}
