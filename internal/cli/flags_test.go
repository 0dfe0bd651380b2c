package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"

	"github.com/artemshloyda/tempobench/internal/config"
)

const testConfigYAML = `input:
  dir: /data/wav
output:
  format: pcm24
conversion:
  pitch_ratio: 1.5
processing:
  workers: 3
  timeout: 30s
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tempobench.yaml")
	if err := os.WriteFile(path, []byte(testConfigYAML), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func resolveArgs(t *testing.T, store *config.PresetStore, args ...string) (*config.Config, error) {
	t.Helper()
	rf := newRunFlags()
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse(%v) error = %v", args, err)
	}
	return rf.resolve(fs, store)
}

func TestResolvePrecedence(t *testing.T) {
	cfgPath := writeTestConfig(t)
	store := &config.PresetStore{Dir: t.TempDir()}

	tests := []struct {
		name        string
		args        []string
		wantPitch   float64
		wantScale   float64
		wantWorkers int
		wantFormat  config.SampleFormat
	}{
		{
			name:        "file_only",
			args:        []string{"--config", cfgPath},
			wantPitch:   1.5,
			wantScale:   0.993,
			wantWorkers: 3,
			wantFormat:  config.FormatPCM24,
		},
		{
			name:        "flag_overrides_file",
			args:        []string{"--config", cfgPath, "--workers", "5", "--format", "PCM32"},
			wantPitch:   1.5,
			wantScale:   0.993,
			wantWorkers: 5,
			wantFormat:  config.FormatPCM32,
		},
		{
			name:        "preset_overrides_file",
			args:        []string{"--config", cfgPath, "--preset", "octave-up"},
			wantPitch:   2,
			wantScale:   1,
			wantWorkers: 3,
			wantFormat:  config.FormatPCM24,
		},
		{
			name:        "explicit_scale_refines_preset",
			args:        []string{"--config", cfgPath, "--preset", "octave-up", "--scale", "1.1"},
			wantPitch:   2,
			wantScale:   1.1,
			wantWorkers: 3,
			wantFormat:  config.FormatPCM24,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := resolveArgs(t, store, tt.args...)
			if err != nil {
				t.Fatalf("resolve() error = %v", err)
			}
			if cfg.PitchRatio != tt.wantPitch {
				t.Errorf("PitchRatio = %v, want %v", cfg.PitchRatio, tt.wantPitch)
			}
			if cfg.TimeScale != tt.wantScale {
				t.Errorf("TimeScale = %v, want %v", cfg.TimeScale, tt.wantScale)
			}
			if cfg.Workers != tt.wantWorkers {
				t.Errorf("Workers = %d, want %d", cfg.Workers, tt.wantWorkers)
			}
			if cfg.OutputFormat != tt.wantFormat {
				t.Errorf("OutputFormat = %v, want %v", cfg.OutputFormat, tt.wantFormat)
			}
			if cfg.InputDir != "/data/wav" {
				t.Errorf("InputDir = %q, want /data/wav", cfg.InputDir)
			}
		})
	}
}

func TestResolveLoadPreset(t *testing.T) {
	cfgPath := writeTestConfig(t)
	store := &config.PresetStore{Dir: t.TempDir()}

	saved := config.DefaultConfig()
	saved.PitchRatio = 0.8
	saved.TimeScale = 1.25
	if _, err := store.Save("slow-down", saved); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	cfg, err := resolveArgs(t, store, "--config", cfgPath, "--load-preset", "slow-down")
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}
	if cfg.PitchRatio != 0.8 || cfg.TimeScale != 1.25 {
		t.Errorf("(pitch, scale) = (%v, %v), want (0.8, 1.25)", cfg.PitchRatio, cfg.TimeScale)
	}

	cfg, err = resolveArgs(t, store, "--config", cfgPath, "--load-preset", "slow-down", "--pitch", "0.9")
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}
	if cfg.PitchRatio != 0.9 {
		t.Errorf("PitchRatio = %v, want 0.9", cfg.PitchRatio)
	}
}

func TestResolveErrors(t *testing.T) {
	cfgPath := writeTestConfig(t)
	store := &config.PresetStore{Dir: t.TempDir()}

	tests := []struct {
		name string
		args []string
	}{
		{"unknown_preset", []string{"--config", cfgPath, "--preset", "nope"}},
		{"missing_saved_preset", []string{"--config", cfgPath, "--load-preset", "absent"}},
		{"missing_config_file", []string{"--config", filepath.Join(t.TempDir(), "none.yaml")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := resolveArgs(t, store, tt.args...); err == nil {
				t.Error("resolve() error = nil, want error")
			}
		})
	}
}

func TestRootCommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"run", "version", "schemes", "history", "presets", "config"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Errorf("subcommand %q not registered", name)
		}
	}

	for _, flag := range []string{"in", "out", "pitch", "scale", "schemes", "dry-run", "report-format"} {
		if root.Flags().Lookup(flag) == nil {
			t.Errorf("root flag --%s missing", flag)
		}
	}
}
