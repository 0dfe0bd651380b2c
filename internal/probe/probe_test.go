package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeWAV(t *testing.T, path string, sampleRate int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, 256),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestParseSampleRate(t *testing.T) {
	tests := []struct {
		output  string
		want    int
		wantErr bool
	}{
		{output: "44100\n", want: 44100},
		{output: "48000,\n", want: 48000},
		{output: "96000\r\n22050\n", want: 96000},
		{output: "", wantErr: true},
		{output: "\n", wantErr: true},
		{output: "0\n", wantErr: true},
		{output: "N/A\n", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseSampleRate(tt.output)
		if tt.wantErr {
			if !errors.Is(err, ErrNoSampleRate) {
				t.Errorf("parseSampleRate(%q) error = %v, want ErrNoSampleRate", tt.output, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("parseSampleRate(%q) = %d, %v; want %d", tt.output, got, err, tt.want)
		}
	}
}

func TestWAVHeader(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.wav")
	writeWAV(t, good, 22050)

	rate, err := WAVHeader{}.SampleRate(context.Background(), good)
	if err != nil || rate != 22050 {
		t.Errorf("SampleRate() = %d, %v; want 22050", rate, err)
	}

	bad := filepath.Join(dir, "bad.wav")
	if err := os.WriteFile(bad, []byte("definitely not a riff header"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := (WAVHeader{}).SampleRate(context.Background(), bad); err == nil {
		t.Error("SampleRate() для не-WAV файла должен вернуть ошибку")
	}
}

type fixedProber struct {
	rate int
	err  error
}

func (p fixedProber) SampleRate(context.Context, string) (int, error) {
	return p.rate, p.err
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	rate, err := Chain{fixedProber{err: errors.New("нет ffprobe")}, fixedProber{rate: 48000}}.SampleRate(ctx, "x.wav")
	if err != nil || rate != 48000 {
		t.Errorf("Chain = %d, %v; want 48000", rate, err)
	}

	_, err = Chain{fixedProber{err: ErrNoSampleRate}, fixedProber{rate: 0}}.SampleRate(ctx, "x.wav")
	if !errors.Is(err, ErrNoSampleRate) {
		t.Errorf("Chain error = %v, want ErrNoSampleRate", err)
	}

	if _, err := (Chain{}).SampleRate(ctx, "x.wav"); !errors.Is(err, ErrNoSampleRate) {
		t.Errorf("пустой Chain error = %v, want ErrNoSampleRate", err)
	}
}
