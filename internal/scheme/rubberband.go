package scheme

import (
	"strconv"
	"strings"

	"github.com/artemshloyda/tempobench/internal/config"
	"github.com/artemshloyda/tempobench/internal/derive"
	"github.com/artemshloyda/tempobench/internal/scanner"
)

// Engine - движок rubberband CLI.
type Engine int

const (
	// EngineR2 - классический движок (faster).
	EngineR2 Engine = 2
	// EngineR3 - движок высокого качества (finer), rubberband >= 3.0.
	EngineR3 Engine = 3
)

// RubberbandCLI - отдельный бинарник rubberband с дискретными флагами.
type RubberbandCLI struct {
	Engine Engine
}

func (s RubberbandCLI) Name() string {
	if s.Engine == EngineR3 {
		return "rubberband-r3"
	}
	return "rubberband-r2"
}

func (s RubberbandCLI) Available(caps Capabilities) (bool, string) {
	if caps.RubberbandPath == "" {
		return false, "rubberband не найден"
	}
	if s.Engine == EngineR3 {
		if major := majorVersion(caps.RubberbandVersion); major > 0 && major < 3 {
			return false, "движок R3 требует rubberband >= 3.0, найден " + caps.RubberbandVersion
		}
	}
	return true, ""
}

func (s RubberbandCLI) Build(file scanner.File, params derive.Params, req config.Request) (Invocation, error) {
	out := OutputPath(file, req, s.Name())
	work := WorkPath(out)

	args := []string{"-q"}
	if s.Engine == EngineR3 {
		args = append(args, "-3")
	}
	args = append(args,
		"-t", derive.FormatRatio(params.TimeScale),
		"-f", derive.FormatRatio(params.PitchRatio),
		file.Path,
		work,
	)

	return Invocation{
		Program:  "rubberband",
		Args:     args,
		Output:   out,
		WorkPath: work,
	}, nil
}

// majorVersion возвращает мажорную версию из строки вида "3.3.0" (0, если не разобрать).
func majorVersion(version string) int {
	head, _, _ := strings.Cut(strings.TrimSpace(version), ".")
	major, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return major
}
