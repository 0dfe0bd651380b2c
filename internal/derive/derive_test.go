package derive

import (
	"errors"
	"math"
	"testing"
)

func TestDecompose_InRange(t *testing.T) {
	for _, ratio := range []float64{0.5, 0.75, 1, 1.00705, 1.999, 2} {
		chain, err := Decompose(ratio)
		if err != nil {
			t.Fatalf("Decompose(%v) error: %v", ratio, err)
		}
		if len(chain) != 1 || chain[0] != ratio {
			t.Errorf("Decompose(%v) = %v, want [%v]", ratio, chain, ratio)
		}
	}
}

func TestDecompose_Properties(t *testing.T) {
	ratios := []float64{
		1e-4, 0.01, 0.1, 0.2499, 0.25, 0.3, 0.4999,
		2.0000001, 2.5, 3, 4, 7.3, 10, 16, 100, 12345.678,
	}

	for _, ratio := range ratios {
		chain, err := Decompose(ratio)
		if err != nil {
			t.Fatalf("Decompose(%v) error: %v", ratio, err)
		}
		if len(chain) == 0 {
			t.Fatalf("Decompose(%v) вернул пустую цепочку", ratio)
		}
		for i, step := range chain {
			if step < MinTempo || step > MaxTempo {
				t.Errorf("Decompose(%v)[%d] = %v вне [%v, %v]", ratio, i, step, MinTempo, MaxTempo)
			}
		}
		if rel := math.Abs(product(chain)-ratio) / ratio; rel > Epsilon {
			t.Errorf("Decompose(%v): произведение %v, относительная ошибка %v", ratio, product(chain), rel)
		}
	}
}

func TestDecompose_Greedy(t *testing.T) {
	tests := []struct {
		ratio float64
		want  []float64
	}{
		{ratio: 4, want: []float64{2, 2}},
		{ratio: 0.25, want: []float64{0.5, 0.5}},
		{ratio: 9, want: []float64{2, 2, 1.5, 1.5}},
	}

	for _, tt := range tests {
		chain, err := Decompose(tt.ratio)
		if err != nil {
			t.Fatalf("Decompose(%v) error: %v", tt.ratio, err)
		}
		if len(chain) != len(tt.want) {
			t.Fatalf("Decompose(%v) = %v, want %v", tt.ratio, chain, tt.want)
		}
		for i := range chain {
			if math.Abs(chain[i]-tt.want[i]) > 1e-9 {
				t.Errorf("Decompose(%v)[%d] = %v, want %v", tt.ratio, i, chain[i], tt.want[i])
			}
		}
	}
}

func TestDecompose_Invalid(t *testing.T) {
	for _, ratio := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := Decompose(ratio); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("Decompose(%v) error = %v, want ErrInvalidParameter", ratio, err)
		}
	}
}

func TestDerive_Defaults(t *testing.T) {
	p, err := Derive(1.12246, 0.993)
	if err != nil {
		t.Fatalf("Derive() error: %v", err)
	}

	if math.Abs(p.TempoTarget-1.00705) > 1e-5 {
		t.Errorf("TempoTarget = %v, want ~1.00705", p.TempoTarget)
	}
	if math.Abs(p.TempoFix-0.89743) > 1e-5 {
		t.Errorf("TempoFix = %v, want ~0.89743", p.TempoFix)
	}

	for _, v := range []float64{p.TempoTarget, p.TempoFix} {
		chain, err := Decompose(v)
		if err != nil {
			t.Fatalf("Decompose(%v) error: %v", v, err)
		}
		if len(chain) != 1 {
			t.Errorf("Decompose(%v) = %v, want одношаговую цепочку", v, chain)
		}
	}
}

func TestDerive_Invalid(t *testing.T) {
	tests := []struct {
		name         string
		pitch, scale float64
	}{
		{"zero pitch", 0, 1},
		{"negative pitch", -1.1, 1},
		{"zero scale", 1, 0},
		{"negative scale", 1, -0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Derive(tt.pitch, tt.scale); !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("Derive() error = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestAtempoChain(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{ratio: 1, want: "atempo=1"},
		{ratio: 0.897433, want: "atempo=0.897433"},
		{ratio: 4, want: "atempo=2,atempo=2"},
		{ratio: 0.25, want: "atempo=0.5,atempo=0.5"},
	}

	for _, tt := range tests {
		got, err := AtempoChain(tt.ratio)
		if err != nil {
			t.Fatalf("AtempoChain(%v) error: %v", tt.ratio, err)
		}
		if got != tt.want {
			t.Errorf("AtempoChain(%v) = %q, want %q", tt.ratio, got, tt.want)
		}
	}
}

func product(chain []float64) float64 {
	p := 1.0
	for _, v := range chain {
		p *= v
	}
	return p
}
