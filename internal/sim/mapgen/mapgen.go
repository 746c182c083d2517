// Package mapgen builds seeded, point-symmetric maps for the match driver.
// Both teams see the same terrain from their own side: cell (x, y) mirrors
// (w-1-x, h-1-y).
package mapgen

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"battlecode.ai/internal/sim/geom"
	"battlecode.ai/internal/sim/unit"
	"battlecode.ai/internal/sim/world"
)

type Config struct {
	Seed   int64
	Width  int
	Height int

	// SwampLevel is the normalized noise value above which a cell is swamp.
	SwampLevel float64
	// MaxPollution caps base pollution per cell.
	MaxPollution int

	CentersPerTeam int
	StartInfluence int
}

func DefaultConfig() Config {
	return Config{
		Width:          32,
		Height:         32,
		SwampLevel:     0.68,
		MaxPollution:   6,
		CentersPerTeam: 1,
		StartInfluence: 150,
	}
}

func (c Config) Validate() error {
	if c.Width < 4 || c.Height < 4 || c.Width > 64 || c.Height > 64 {
		return fmt.Errorf("mapgen: size %dx%d outside 4..64", c.Width, c.Height)
	}
	if c.CentersPerTeam < 1 || c.CentersPerTeam > 3 {
		return fmt.Errorf("mapgen: centers per team %d outside 1..3", c.CentersPerTeam)
	}
	if c.StartInfluence <= 0 {
		return errors.New("mapgen: start influence must be > 0")
	}
	if c.MaxPollution < 0 {
		return errors.New("mapgen: max pollution must be >= 0")
	}
	return nil
}

// Generate returns a symmetric map. The same config always yields the same
// map.
func Generate(cfg Config) (world.MapSpec, error) {
	if err := cfg.Validate(); err != nil {
		return world.MapSpec{}, err
	}
	w, h := cfg.Width, cfg.Height
	swampNoise := opensimplex.NewNormalized(cfg.Seed)
	pollNoise := opensimplex.NewNormalized(cfg.Seed + 1)

	cells := make([]world.Cell, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// Sample the canonical half only so the mirror gets identical values.
			sx, sy := canonical(x, y, w, h)
			swamp := octaveNoise(swampNoise, float64(sx), float64(sy), 3, 0.12, 0.5)
			poll := octaveNoise(pollNoise, float64(sx), float64(sy), 2, 0.07, 0.5)
			cells[y*w+x] = world.Cell{
				Swamp:     swamp > cfg.SwampLevel,
				Pollution: int(math.Floor(poll * float64(cfg.MaxPollution+1))),
			}
			if cells[y*w+x].Pollution > cfg.MaxPollution {
				cells[y*w+x].Pollution = cfg.MaxPollution
			}
		}
	}

	robots, err := placeCenters(cfg, cells)
	if err != nil {
		return world.MapSpec{}, err
	}
	return world.MapSpec{Seed: cfg.Seed, Width: w, Height: h, Cells: cells, Robots: robots}, nil
}

func canonical(x, y, w, h int) (int, int) {
	mx, my := Mirror(x, y, w, h)
	if y < my || (y == my && x <= mx) {
		return x, y
	}
	return mx, my
}

// Mirror is the point-symmetric partner of (x, y).
func Mirror(x, y, w, h int) (int, int) { return w - 1 - x, h - 1 - y }

// placeCenters puts Team A's centers on dry cells of the lower-left quarter
// and mirrors each one for Team B.
func placeCenters(cfg Config, cells []world.Cell) ([]world.RobotSpec, error) {
	w, h := cfg.Width, cfg.Height
	rng := rand.New(rand.NewSource(cfg.Seed + 100))

	var candidates []geom.Location
	for y := 1; y < h/2; y++ {
		for x := 1; x < w/2; x++ {
			if !cells[y*w+x].Swamp {
				candidates = append(candidates, geom.Location{X: x, Y: y})
			}
		}
	}
	if len(candidates) < cfg.CentersPerTeam {
		// Too wet: dry the quarter out.
		candidates = candidates[:0]
		for y := 1; y < h/2; y++ {
			for x := 1; x < w/2; x++ {
				cells[y*w+x].Swamp = false
				mx, my := Mirror(x, y, w, h)
				cells[my*w+mx].Swamp = false
				candidates = append(candidates, geom.Location{X: x, Y: y})
			}
		}
	}
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	var picked []geom.Location
	for _, c := range candidates {
		if len(picked) == cfg.CentersPerTeam {
			break
		}
		near := false
		for _, p := range picked {
			if geom.DistanceSquared(c, p) < 9 {
				near = true
				break
			}
		}
		if !near {
			picked = append(picked, c)
		}
	}
	if len(picked) < cfg.CentersPerTeam {
		return nil, fmt.Errorf("mapgen: room for %d of %d centers", len(picked), cfg.CentersPerTeam)
	}

	var out []world.RobotSpec
	for _, p := range picked {
		out = append(out, world.RobotSpec{Team: world.TeamA, Type: unit.EnlightenmentCenter, Loc: p, Influence: cfg.StartInfluence})
	}
	for _, p := range picked {
		mx, my := Mirror(p.X, p.Y, w, h)
		out = append(out, world.RobotSpec{Team: world.TeamB, Type: unit.EnlightenmentCenter, Loc: geom.Location{X: mx, Y: my}, Influence: cfg.StartInfluence})
	}
	return out, nil
}

// octaveNoise layers frequencies of a normalized noise source into [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}
