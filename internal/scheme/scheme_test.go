package scheme

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/artemshloyda/tempobench/internal/config"
	"github.com/artemshloyda/tempobench/internal/derive"
	"github.com/artemshloyda/tempobench/internal/scanner"
)

func fullCaps() Capabilities {
	return Capabilities{
		FFmpegPath: "/usr/bin/ffmpeg",
		FFmpegFilters: map[string]bool{
			"rubberband": true, "asetrate": true, "aresample": true,
			"atempo": true, "scaletempo": true,
		},
		RubberbandPath:    "/usr/bin/rubberband",
		RubberbandVersion: "3.3.0",
		Format:            config.FormatPCM16,
	}
}

func testFile() scanner.File {
	return scanner.File{
		Index:      0,
		Path:       "/in/songs/track.wav",
		RelPath:    filepath.Join("songs", "track.wav"),
		Size:       1 << 20,
		SampleRate: 44100,
	}
}

func testRequest() config.Request {
	return config.Request{
		PitchRatio: 1.12246,
		TimeScale:  0.993,
		Format:     config.FormatPCM16,
		OutputDir:  "/out",
	}
}

func mustParams(t *testing.T, pitch, scale float64) derive.Params {
	t.Helper()
	p, err := derive.Derive(pitch, scale)
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	return p
}

func TestNewRegistry(t *testing.T) {
	tests := []struct {
		name    string
		names   []string
		want    []string
		wantErr bool
	}{
		{"all", nil, Names(), false},
		{"declaration_order", []string{"algodsp", "ffmpeg-atempo"}, []string{"ffmpeg-atempo", "algodsp"}, false},
		{"duplicates", []string{"rubberband-r2", "rubberband-r2"}, []string{"rubberband-r2"}, false},
		{"unknown", []string{"ffmpeg-atempo", "sox"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := NewRegistry(tt.names)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownScheme) {
					t.Fatalf("NewRegistry() error = %v, want ErrUnknownScheme", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewRegistry() error = %v", err)
			}

			var got []string
			for _, s := range reg.All() {
				got = append(got, s.Name())
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("schemes = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNamesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, n := range Names() {
		if seen[n] {
			t.Errorf("duplicate scheme name %q", n)
		}
		seen[n] = true
	}
	if len(seen) != 6 {
		t.Errorf("len(Names()) = %d, want 6", len(seen))
	}
}

type countingScheme struct {
	name  string
	ok    bool
	calls *int
}

func (s countingScheme) Name() string { return s.name }

func (s countingScheme) Available(Capabilities) (bool, string) {
	*s.calls++
	if !s.ok {
		return false, "нет"
	}
	return true, ""
}

func (s countingScheme) Build(scanner.File, derive.Params, config.Request) (Invocation, error) {
	return Invocation{}, nil
}

func TestRegistryProbeOnce(t *testing.T) {
	calls := 0
	reg := NewRegistryFrom(
		countingScheme{name: "a", ok: true, calls: &calls},
		countingScheme{name: "b", ok: false, calls: &calls},
		countingScheme{name: "c", ok: true, calls: &calls},
	)

	if got := reg.Enabled(); len(got) != 0 {
		t.Errorf("Enabled() before Probe = %d schemes, want 0", len(got))
	}

	first := reg.Probe(Capabilities{})
	second := reg.Probe(Capabilities{})

	if calls != 3 {
		t.Errorf("Available() called %d times, want 3", calls)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Probe() results differ: %v vs %v", first, second)
	}

	want := map[string]bool{"a": true, "b": false, "c": true}
	if !reflect.DeepEqual(first, want) {
		t.Errorf("Probe() = %v, want %v", first, want)
	}

	var enabled []string
	for _, s := range reg.Enabled() {
		enabled = append(enabled, s.Name())
	}
	if !reflect.DeepEqual(enabled, []string{"a", "c"}) {
		t.Errorf("Enabled() = %v, want [a c]", enabled)
	}

	st := reg.Status()
	if len(st) != 3 || st[1].Reason == "" {
		t.Errorf("Status() = %+v, want reason for b", st)
	}
}

func TestAvailability(t *testing.T) {
	noScaletempo := fullCaps()
	noScaletempo.FFmpegFilters = map[string]bool{"asetrate": true, "aresample": true, "atempo": true}

	oldRubberband := fullCaps()
	oldRubberband.RubberbandVersion = "2.0.2"

	floatCaps := fullCaps()
	floatCaps.Format = config.FormatFloat32

	tests := []struct {
		name   string
		caps   Capabilities
		scheme Scheme
		want   bool
	}{
		{"rubberband_filter", fullCaps(), FFmpegRubberband{}, true},
		{"no_ffmpeg", Capabilities{Format: config.FormatPCM16}, FFmpegAtempo{}, false},
		{"scaletempo_missing", noScaletempo, FFmpegScaletempo{}, false},
		{"atempo_present", noScaletempo, FFmpegAtempo{}, true},
		{"rubberband_filter_missing", noScaletempo, FFmpegRubberband{}, false},
		{"r2_old_cli", oldRubberband, RubberbandCLI{Engine: EngineR2}, true},
		{"r3_old_cli", oldRubberband, RubberbandCLI{Engine: EngineR3}, false},
		{"r3_unknown_version", Capabilities{RubberbandPath: "/x"}, RubberbandCLI{Engine: EngineR3}, true},
		{"no_rubberband", Capabilities{}, RubberbandCLI{Engine: EngineR2}, false},
		{"algodsp_pcm", fullCaps(), AlgoDSP{}, true},
		{"algodsp_float", floatCaps, AlgoDSP{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := tt.scheme.Available(tt.caps)
			if got != tt.want {
				t.Errorf("Available() = %v (%s), want %v", got, reason, tt.want)
			}
			if !got && reason == "" {
				t.Error("unavailable scheme must report a reason")
			}
		})
	}
}

func TestOutputPath(t *testing.T) {
	req := testRequest()
	got := OutputPath(testFile(), req, "ffmpeg-atempo")
	want := filepath.Join("/out", "songs", "track_p1.12246_t0.993_ffmpeg-atempo.wav")
	if got != want {
		t.Errorf("OutputPath() = %q, want %q", got, want)
	}

	req.Format = config.FormatFLAC
	got = OutputPath(testFile(), req, "rubberband-r3")
	if !strings.HasSuffix(got, "_rubberband-r3.flac") {
		t.Errorf("OutputPath() = %q, want .flac suffix", got)
	}

	if WorkPath(want) != filepath.Join("/out", "songs", "track_p1.12246_t0.993_ffmpeg-atempo.running.wav") {
		t.Errorf("WorkPath() = %q", WorkPath(want))
	}
}

func TestOutputPathSourceExtension(t *testing.T) {
	req := testRequest()

	tests := []struct {
		rel  string
		want string
	}{
		{"take.wav", "take_p1.12246_t0.993_ffmpeg-atempo.wav"},
		{"take.WAV", "take_WAV_p1.12246_t0.993_ffmpeg-atempo.wav"},
		{"take.flac", "take_flac_p1.12246_t0.993_ffmpeg-atempo.wav"},
		{"take", "take_p1.12246_t0.993_ffmpeg-atempo.wav"},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			file := scanner.File{Path: "/in/" + tt.rel, RelPath: tt.rel}
			got := OutputPath(file, req, "ffmpeg-atempo")
			if got != filepath.Join("/out", tt.want) {
				t.Errorf("OutputPath(%s) = %q, want %q", tt.rel, got, tt.want)
			}
		})
	}
}

type fixedRate int

func (r fixedRate) SampleRate(context.Context, string) (int, error) { return int(r), nil }

func TestOutputClaimsCollectedFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"take.wav", "take.WAV", "take_WAV.wav", "solo.wav"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("RIFF"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.InputDir = dir
	cfg.OutputDir = filepath.Join(dir, "converted")
	catalog, err := scanner.New(cfg, fixedRate(44100)).Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(catalog.Files) != 4 {
		t.Fatalf("Collect() files = %d, want 4", len(catalog.Files))
	}

	req := cfg.Request()
	kept, skipped := NewOutputClaims(req).Filter(catalog.Files)

	if len(kept) != 3 || len(skipped) != 1 {
		t.Fatalf("Filter() kept %d, skipped %d; want 3, 1", len(kept), len(skipped))
	}
	if !skipped[0].Skipped || !strings.Contains(skipped[0].Reason, "совпадает") {
		t.Errorf("skipped entry = %+v", skipped[0])
	}

	outputs := make(map[string]string)
	for _, f := range kept {
		for _, s := range Builtin() {
			out := OutputPath(f, req, s.Name())
			if other, ok := outputs[out]; ok {
				t.Errorf("%s and %s share output %s", other, f.RelPath, out)
			}
			outputs[out] = f.RelPath
		}
	}
}

func TestOutputClaimsSameFile(t *testing.T) {
	claims := NewOutputClaims(testRequest())
	file := testFile()

	if _, ok := claims.Claim(file); !ok {
		t.Fatal("first Claim() failed")
	}
	if _, ok := claims.Claim(file); !ok {
		t.Error("repeated Claim() of the same file failed")
	}

	twin := file
	twin.Path = "/elsewhere/songs/track.wav"
	owner, ok := claims.Claim(twin)
	if ok || owner != file.RelPath {
		t.Errorf("Claim(twin) = (%q, %v), want (%q, false)", owner, ok, file.RelPath)
	}
}

func TestOutputPathDistinctPerScheme(t *testing.T) {
	seen := make(map[string]string)
	for _, s := range Builtin() {
		p := OutputPath(testFile(), testRequest(), s.Name())
		if other, ok := seen[p]; ok {
			t.Errorf("schemes %s and %s share output %s", other, s.Name(), p)
		}
		seen[p] = s.Name()
	}
}

func TestBuildFFmpeg(t *testing.T) {
	params := mustParams(t, 1.12246, 0.993)
	file := testFile()
	req := testRequest()

	tests := []struct {
		scheme     Scheme
		wantFilter string
	}{
		{FFmpegRubberband{}, "rubberband=tempo=" + derive.FormatRatio(params.TempoTarget) + ":pitch=1.12246"},
		{FFmpegAtempo{}, "asetrate=49500,aresample=44100,atempo=" + derive.FormatRatio(params.TempoFix)},
		{FFmpegScaletempo{}, "asetrate=49500,aresample=44100,scaletempo=speed=" + derive.FormatRatio(params.TempoFix)},
	}

	for _, tt := range tests {
		t.Run(tt.scheme.Name(), func(t *testing.T) {
			inv, err := tt.scheme.Build(file, params, req)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if inv.Program != "ffmpeg" {
				t.Errorf("Program = %q, want ffmpeg", inv.Program)
			}

			want := []string{
				"-hide_banner", "-nostdin", "-loglevel", "error", "-y",
				"-i", file.Path,
				"-af", tt.wantFilter,
				"-c:a", "pcm_s16le",
				inv.WorkPath,
			}
			if !reflect.DeepEqual(inv.Args, want) {
				t.Errorf("Args = %v, want %v", inv.Args, want)
			}
			if inv.Output != OutputPath(file, req, tt.scheme.Name()) {
				t.Errorf("Output = %q", inv.Output)
			}
		})
	}
}

func TestBuildAtempoChain(t *testing.T) {
	params := mustParams(t, 4, 1)
	inv, err := FFmpegAtempo{}.Build(testFile(), params, testRequest())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !strings.Contains(strings.Join(inv.Args, " "), "asetrate=176400,aresample=44100,atempo=0.5,atempo=0.5") {
		t.Errorf("Args = %v, want chained atempo", inv.Args)
	}
}

func TestBuildUnknownSampleRate(t *testing.T) {
	file := testFile()
	file.SampleRate = 0
	params := mustParams(t, 1.12246, 0.993)

	for _, s := range []Scheme{FFmpegAtempo{}, FFmpegScaletempo{}} {
		if _, err := s.Build(file, params, testRequest()); !errors.Is(err, derive.ErrInvalidParameter) {
			t.Errorf("%s Build() error = %v, want ErrInvalidParameter", s.Name(), err)
		}
	}
}

func TestBuildRubberband(t *testing.T) {
	params := mustParams(t, 1.12246, 0.993)
	file := testFile()

	tests := []struct {
		engine Engine
		want   []string
	}{
		{EngineR2, []string{"-q", "-t", "0.993", "-f", "1.12246", file.Path}},
		{EngineR3, []string{"-q", "-3", "-t", "0.993", "-f", "1.12246", file.Path}},
	}

	for _, tt := range tests {
		s := RubberbandCLI{Engine: tt.engine}
		inv, err := s.Build(file, params, testRequest())
		if err != nil {
			t.Fatalf("%s Build() error = %v", s.Name(), err)
		}
		want := append(tt.want, inv.WorkPath)
		if !reflect.DeepEqual(inv.Args, want) {
			t.Errorf("%s Args = %v, want %v", s.Name(), inv.Args, want)
		}
		if inv.Program != "rubberband" {
			t.Errorf("%s Program = %q", s.Name(), inv.Program)
		}
	}
}

func TestBuildAlgoDSP(t *testing.T) {
	params := mustParams(t, 1.12246, 0.993)
	inv, err := AlgoDSP{}.Build(testFile(), params, testRequest())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if inv.InProcess == nil || inv.Program != "" {
		t.Fatalf("Invocation = %+v, want in-process", inv)
	}
	if !strings.HasPrefix(inv.CommandLine(), "<in-process>") {
		t.Errorf("CommandLine() = %q", inv.CommandLine())
	}

	// вход не существует - движок должен вернуть ошибку, а не паниковать
	if err := inv.InProcess(context.Background()); err == nil {
		t.Error("InProcess() error = nil for missing input")
	}
}

func TestMajorVersion(t *testing.T) {
	tests := map[string]int{
		"3.3.0":   3,
		"2.0.2":   2,
		" 4.0 ":   4,
		"":        0,
		"unknown": 0,
	}
	for in, want := range tests {
		if got := majorVersion(in); got != want {
			t.Errorf("majorVersion(%q) = %d, want %d", in, got, want)
		}
	}
}
