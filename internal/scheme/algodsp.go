package scheme

import (
	"context"

	"github.com/artemshloyda/tempobench/internal/config"
	"github.com/artemshloyda/tempobench/internal/derive"
	"github.com/artemshloyda/tempobench/internal/dspengine"
	"github.com/artemshloyda/tempobench/internal/scanner"
	"github.com/cwbudde/algo-dsp/dsp/resample"
)

// AlgoDSP - встроенный движок на чистом Go, без внешних процессов.
type AlgoDSP struct{}

func (AlgoDSP) Name() string { return "algodsp" }

func (AlgoDSP) Available(caps Capabilities) (bool, string) {
	if caps.Format.BitDepth() == 0 {
		return false, "встроенный движок пишет только целочисленный PCM WAV"
	}
	return true, ""
}

func (s AlgoDSP) Build(file scanner.File, params derive.Params, req config.Request) (Invocation, error) {
	out := OutputPath(file, req, s.Name())
	work := WorkPath(out)

	dspReq := dspengine.Request{
		Input:      file.Path,
		Output:     work,
		PitchRatio: params.PitchRatio,
		TimeScale:  params.TimeScale,
		BitDepth:   req.Format.BitDepth(),
		Quality:    resample.QualityBalanced,
	}

	return Invocation{
		Output:   out,
		WorkPath: work,
		InProcess: func(ctx context.Context) error {
			return dspengine.Stretch(ctx, dspReq)
		},
	}, nil
}
