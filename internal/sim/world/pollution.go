package world

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"battlecode.ai/internal/sim/geom"
	"battlecode.ai/internal/sim/tuning"
)

// PollutionField turns a cell's base pollution into the level seen at a
// given round. Implementations must be pure functions of their inputs.
type PollutionField interface {
	Level(base int, loc geom.Location, round int) int
}

// StaticField keeps pollution at its base value.
type StaticField struct{}

func (StaticField) Level(base int, _ geom.Location, _ int) int { return base }

// NoiseField drifts pollution over time with seeded simplex noise sampled at
// (x, y, round).
type NoiseField struct {
	noise     opensimplex.Noise
	amplitude int
	scale     float64
	rounds    int
}

func NewNoiseField(seed int64, p tuning.Pollution) *NoiseField {
	rounds := p.DriftRounds
	if rounds <= 0 {
		rounds = 1
	}
	scale := p.DriftScale
	if scale <= 0 {
		scale = 0.1
	}
	return &NoiseField{
		noise:     opensimplex.NewNormalized(seed),
		amplitude: p.DriftAmplitude,
		scale:     scale,
		rounds:    rounds,
	}
}

func (f *NoiseField) Level(base int, loc geom.Location, round int) int {
	if f == nil || f.amplitude <= 0 {
		return base
	}
	n := f.noise.Eval3(float64(loc.X)*f.scale, float64(loc.Y)*f.scale, float64(round)/float64(f.rounds))
	drift := int(math.Floor(n * float64(f.amplitude+1)))
	if drift > f.amplitude {
		drift = f.amplitude
	}
	v := base + drift
	if v < 0 {
		return 0
	}
	return v
}
