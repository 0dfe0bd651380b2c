package scheme

import (
	"fmt"
	"math"
	"strings"

	"github.com/artemshloyda/tempobench/internal/config"
	"github.com/artemshloyda/tempobench/internal/derive"
	"github.com/artemshloyda/tempobench/internal/scanner"
)

// FFmpegRubberband - фильтр rubberband внутри ffmpeg.
type FFmpegRubberband struct{}

func (FFmpegRubberband) Name() string { return "ffmpeg-rubberband" }

func (FFmpegRubberband) Available(caps Capabilities) (bool, string) {
	return ffmpegHas(caps, "rubberband")
}

func (s FFmpegRubberband) Build(file scanner.File, params derive.Params, req config.Request) (Invocation, error) {
	filter := fmt.Sprintf("rubberband=tempo=%s:pitch=%s",
		derive.FormatRatio(params.TempoTarget), derive.FormatRatio(params.PitchRatio))
	return ffmpegInvocation(s.Name(), file, req, filter), nil
}

// FFmpegAtempo - asetrate сдвигает тон и темп, цепочка atempo возвращает темп.
type FFmpegAtempo struct{}

func (FFmpegAtempo) Name() string { return "ffmpeg-atempo" }

func (FFmpegAtempo) Available(caps Capabilities) (bool, string) {
	return ffmpegHas(caps, "asetrate", "aresample", "atempo")
}

func (s FFmpegAtempo) Build(file scanner.File, params derive.Params, req config.Request) (Invocation, error) {
	chain, err := derive.AtempoChain(params.TempoFix)
	if err != nil {
		return Invocation{}, err
	}
	filter, err := resampledFilter(file, params, chain)
	if err != nil {
		return Invocation{}, err
	}
	return ffmpegInvocation(s.Name(), file, req, filter), nil
}

// FFmpegScaletempo - как FFmpegAtempo, но темп корректирует scaletempo.
// Есть не во всех сборках ffmpeg.
type FFmpegScaletempo struct{}

func (FFmpegScaletempo) Name() string { return "ffmpeg-scaletempo" }

func (FFmpegScaletempo) Available(caps Capabilities) (bool, string) {
	return ffmpegHas(caps, "asetrate", "aresample", "scaletempo")
}

func (s FFmpegScaletempo) Build(file scanner.File, params derive.Params, req config.Request) (Invocation, error) {
	filter, err := resampledFilter(file, params, "scaletempo=speed="+derive.FormatRatio(params.TempoFix))
	if err != nil {
		return Invocation{}, err
	}
	return ffmpegInvocation(s.Name(), file, req, filter), nil
}

// resampledFilter строит "asetrate=<sr*pitch>,aresample=<sr>,<tail>".
func resampledFilter(file scanner.File, params derive.Params, tail string) (string, error) {
	if file.SampleRate <= 0 {
		return "", fmt.Errorf("%w: частота дискретизации %s неизвестна", derive.ErrInvalidParameter, file.RelPath)
	}
	shifted := int(math.Round(float64(file.SampleRate) * params.PitchRatio))
	if shifted <= 0 {
		return "", fmt.Errorf("%w: asetrate=%d", derive.ErrInvalidParameter, shifted)
	}
	return fmt.Sprintf("asetrate=%d,aresample=%d,%s", shifted, file.SampleRate, tail), nil
}

func ffmpegInvocation(name string, file scanner.File, req config.Request, filter string) Invocation {
	out := OutputPath(file, req, name)
	work := WorkPath(out)
	return Invocation{
		Program: "ffmpeg",
		Args: []string{
			"-hide_banner", "-nostdin", "-loglevel", "error", "-y",
			"-i", file.Path,
			"-af", filter,
			"-c:a", req.Format.FFmpegCodec(),
			work,
		},
		Output:   out,
		WorkPath: work,
	}
}

func ffmpegHas(caps Capabilities, filters ...string) (bool, string) {
	if caps.FFmpegPath == "" {
		return false, "ffmpeg не найден"
	}
	var missing []string
	for _, f := range filters {
		if !caps.FFmpegFilters[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return false, "ffmpeg без фильтров: " + strings.Join(missing, ", ")
	}
	return true, ""
}
