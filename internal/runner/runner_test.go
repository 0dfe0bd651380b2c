package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/artemshloyda/tempobench/internal/config"
	"github.com/artemshloyda/tempobench/internal/derive"
	"github.com/artemshloyda/tempobench/internal/scanner"
	"github.com/artemshloyda/tempobench/internal/scheme"
)

// scriptScheme вызывает программу "fake" с путём результата последним аргументом.
type scriptScheme struct {
	name string
}

func (s scriptScheme) Name() string { return s.name }

func (scriptScheme) Available(scheme.Capabilities) (bool, string) { return true, "" }

func (s scriptScheme) Build(file scanner.File, _ derive.Params, req config.Request) (scheme.Invocation, error) {
	out := scheme.OutputPath(file, req, s.name)
	work := scheme.WorkPath(out)
	return scheme.Invocation{
		Program:  "fake",
		Args:     []string{file.Path, work},
		Output:   out,
		WorkPath: work,
	}, nil
}

// funcScheme - встроенный движок из функции.
type funcScheme struct {
	fn func(ctx context.Context, work string) error
}

func (funcScheme) Name() string { return "inproc" }

func (funcScheme) Available(scheme.Capabilities) (bool, string) { return true, "" }

func (s funcScheme) Build(file scanner.File, _ derive.Params, req config.Request) (scheme.Invocation, error) {
	out := scheme.OutputPath(file, req, "inproc")
	work := scheme.WorkPath(out)
	return scheme.Invocation{
		Output:   out,
		WorkPath: work,
		InProcess: func(ctx context.Context) error {
			return s.fn(ctx, work)
		},
	}, nil
}

type brokenScheme struct{}

func (brokenScheme) Name() string { return "broken" }

func (brokenScheme) Available(scheme.Capabilities) (bool, string) { return true, "" }

func (brokenScheme) Build(scanner.File, derive.Params, config.Request) (scheme.Invocation, error) {
	return scheme.Invocation{}, derive.ErrInvalidParameter
}

func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "fake.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func setup(t *testing.T) (scanner.File, config.Request, derive.Params) {
	t.Helper()
	dir := t.TempDir()

	in := filepath.Join(dir, "in", "a.wav")
	if err := os.MkdirAll(filepath.Dir(in), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(in, make([]byte, 2*bytesPerMB), 0644); err != nil {
		t.Fatal(err)
	}

	params, err := derive.Derive(1.12246, 0.993)
	if err != nil {
		t.Fatal(err)
	}

	file := scanner.File{Index: 4, Path: in, RelPath: "a.wav", Size: 2 * bytesPerMB, SampleRate: 44100}
	req := config.Request{PitchRatio: 1.12246, TimeScale: 0.993, Format: config.FormatPCM16, OutputDir: filepath.Join(dir, "out")}
	return file, req, params
}

func TestRunExternal(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}

	tests := []struct {
		name    string
		script  string
		success bool
		wantErr error
		stderr  string
	}{
		{"writes_output", `printf 'RIFF' > "$2"`, true, nil, ""},
		{"non_zero_exit", `echo "filter not found" >&2; exit 3`, false, nil, "filter not found"},
		{"zero_exit_no_output", `exit 0`, false, ErrNoOutput, ""},
		{"zero_exit_empty_output", `: > "$2"`, false, ErrNoOutput, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, req, params := setup(t)
			s := scriptScheme{name: "fake-scheme"}
			r := New(map[string]string{"fake": writeScript(t, t.TempDir(), tt.script)})

			res := r.Run(context.Background(), file, s, params, req)

			if res.Success != tt.success {
				t.Fatalf("Success = %v, want %v (err: %s)", res.Success, tt.success, res.Error)
			}
			if res.FileID != 4 || res.Scheme != "fake-scheme" || res.File != "a.wav" {
				t.Errorf("identity = (%d, %s, %s)", res.FileID, res.Scheme, res.File)
			}
			if res.ElapsedSeconds <= 0 {
				t.Errorf("ElapsedSeconds = %v, want > 0", res.ElapsedSeconds)
			}

			out := scheme.OutputPath(file, req, s.Name())
			if _, err := os.Stat(scheme.WorkPath(out)); !os.IsNotExist(err) {
				t.Error("temporary file must not remain")
			}

			if tt.success {
				if res.ThroughputMBps <= 0 {
					t.Errorf("ThroughputMBps = %v, want > 0", res.ThroughputMBps)
				}
				if _, err := os.Stat(out); err != nil {
					t.Errorf("output missing: %v", err)
				}
				return
			}

			if res.ThroughputMBps != 0 {
				t.Errorf("ThroughputMBps = %v, want 0 for failure", res.ThroughputMBps)
			}
			var jobErr *JobError
			if !errors.As(res.Err, &jobErr) {
				t.Fatalf("Err = %v, want *JobError", res.Err)
			}
			if tt.wantErr != nil && !errors.Is(res.Err, tt.wantErr) {
				t.Errorf("Err = %v, want %v", res.Err, tt.wantErr)
			}
			if tt.stderr != "" && !strings.Contains(jobErr.Stderr, tt.stderr) {
				t.Errorf("Stderr = %q, want %q", jobErr.Stderr, tt.stderr)
			}
			if _, err := os.Stat(out); !os.IsNotExist(err) {
				t.Error("output must not exist for failed job")
			}
		})
	}
}

func TestRunRemovesStaleTemp(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}

	file, req, params := setup(t)
	s := scriptScheme{name: "fake-scheme"}
	work := scheme.WorkPath(scheme.OutputPath(file, req, s.Name()))
	if err := os.MkdirAll(filepath.Dir(work), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(work, []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}

	// скрипт ничего не пишет: старый временный файл не должен засчитаться
	r := New(map[string]string{"fake": writeScript(t, t.TempDir(), "exit 0")})
	res := r.Run(context.Background(), file, s, params, req)
	if res.Success {
		t.Fatal("stale temporary file counted as output")
	}
}

func TestRunTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}

	file, req, params := setup(t)
	r := New(map[string]string{"fake": writeScript(t, t.TempDir(), "exec sleep 5")})
	r.SetTimeout(100 * time.Millisecond)

	res := r.Run(context.Background(), file, scriptScheme{name: "slow"}, params, req)
	if res.Success {
		t.Fatal("Success = true for timed out job")
	}
	if res.ElapsedSeconds > 4 {
		t.Errorf("ElapsedSeconds = %v, timeout not applied", res.ElapsedSeconds)
	}
}

func TestRunToolMissing(t *testing.T) {
	file, req, params := setup(t)
	res := New(nil).Run(context.Background(), file, scriptScheme{name: "x"}, params, req)
	if res.Success || !errors.Is(res.Err, ErrToolMissing) {
		t.Errorf("Run() = %+v, want ErrToolMissing", res)
	}
}

func TestRunBuildError(t *testing.T) {
	file, req, params := setup(t)
	res := New(nil).Run(context.Background(), file, brokenScheme{}, params, req)
	if res.Success || !errors.Is(res.Err, derive.ErrInvalidParameter) {
		t.Errorf("Run() = %+v, want ErrInvalidParameter", res)
	}
}

func TestRunInProcess(t *testing.T) {
	file, req, params := setup(t)

	ok := funcScheme{fn: func(_ context.Context, work string) error {
		return os.WriteFile(work, []byte("data"), 0644)
	}}
	res := New(nil).Run(context.Background(), file, ok, params, req)
	if !res.Success {
		t.Fatalf("Run() error = %s", res.Error)
	}

	failing := funcScheme{fn: func(context.Context, string) error {
		return errors.New("decode failed")
	}}
	res = New(nil).Run(context.Background(), file, failing, params, req)
	if res.Success || !strings.Contains(res.Error, "decode failed") {
		t.Errorf("Run() = %+v, want decode failure", res)
	}
}

func TestRunDryRun(t *testing.T) {
	file, req, params := setup(t)
	r := New(map[string]string{"fake": "/nonexistent"})
	r.SetDryRun(true)

	res := r.Run(context.Background(), file, scriptScheme{name: "plan"}, params, req)
	if !res.Success {
		t.Fatalf("dry run Success = false: %s", res.Error)
	}
	if !strings.HasPrefix(res.Command, "fake ") {
		t.Errorf("Command = %q", res.Command)
	}
	if _, err := os.Stat(res.Output); !os.IsNotExist(err) {
		t.Error("dry run must not create output")
	}
}

func TestThroughput(t *testing.T) {
	tests := []struct {
		name    string
		size    int64
		elapsed time.Duration
		want    float64
	}{
		{"one_mib_per_second", bytesPerMB, time.Second, 1},
		{"half_second", 3 * bytesPerMB, 500 * time.Millisecond, 6},
		{"zero_elapsed", bytesPerMB, 0, 1 / MinElapsed},
		{"empty", 0, time.Second, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Throughput(tt.size, tt.elapsed)
			if diff := got - tt.want; diff > 1e-9*tt.want+1e-12 || diff < -1e-9*tt.want-1e-12 {
				t.Errorf("Throughput() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTail(t *testing.T) {
	long := strings.Repeat("x", stderrTail+100)
	if got := tail(long); len(got) != stderrTail+3 || !strings.HasPrefix(got, "...") {
		t.Errorf("tail() length = %d", len(got))
	}
	if got := tail("  short\n"); got != "short" {
		t.Errorf("tail() = %q", got)
	}
}

// writerScheme - встроенный движок, записывающий содержимое входа в результат.
type writerScheme struct {
	name string
}

func (s writerScheme) Name() string { return s.name }

func (writerScheme) Available(scheme.Capabilities) (bool, string) { return true, "" }

func (s writerScheme) Build(file scanner.File, _ derive.Params, req config.Request) (scheme.Invocation, error) {
	out := scheme.OutputPath(file, req, s.name)
	work := scheme.WorkPath(out)
	return scheme.Invocation{
		Output:   out,
		WorkPath: work,
		InProcess: func(context.Context) error {
			return os.WriteFile(work, []byte(file.RelPath+"/"+s.name), 0644)
		},
	}, nil
}

func listTree(t *testing.T, root string) []string {
	t.Helper()
	var paths []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return paths
}

func TestRunTwiceSameOutputs(t *testing.T) {
	file, req, params := setup(t)
	other := file
	other.Index = 5
	other.RelPath = filepath.Join("sub", "b.wav")

	schemes := []scheme.Scheme{writerScheme{name: "one"}, writerScheme{name: "two"}}
	r := New(nil)

	var listings [][]string
	for run := 0; run < 2; run++ {
		for _, f := range []scanner.File{file, other} {
			for _, s := range schemes {
				if res := r.Run(context.Background(), f, s, params, req); !res.Success {
					t.Fatalf("run %d: %s/%s failed: %s", run, f.RelPath, s.Name(), res.Error)
				}
			}
		}
		listings = append(listings, listTree(t, req.OutputDir))
	}

	if len(listings[0]) != 4 {
		t.Errorf("first run produced %d files, want 4: %v", len(listings[0]), listings[0])
	}
	if !reflect.DeepEqual(listings[0], listings[1]) {
		t.Errorf("second run changed outputs:\n%v\n%v", listings[0], listings[1])
	}
	for _, p := range listings[1] {
		if strings.Contains(p, ".running.") {
			t.Errorf("temporary file left behind: %s", p)
		}
	}
}
