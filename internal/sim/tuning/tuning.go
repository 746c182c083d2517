package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"battlecode.ai/internal/sim/unit"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	MaxRounds         int `yaml:"max_rounds" json:"max_rounds"`
	TurnComputeBudget int `yaml:"turn_compute_budget" json:"turn_compute_budget"`
	TurnTimeoutMs     int `yaml:"turn_timeout_ms" json:"turn_timeout_ms"`
	FlagMax           int `yaml:"flag_max" json:"flag_max"`

	EmpowerRadiusSquared   int     `yaml:"empower_radius_squared" json:"empower_radius_squared"`
	SwampCooldownSurcharge float64 `yaml:"swamp_cooldown_surcharge" json:"swamp_cooldown_surcharge"`
	MinSensorRadiusSquared int     `yaml:"min_sensor_radius_squared" json:"min_sensor_radius_squared"`

	Pollution Pollution `yaml:"pollution" json:"pollution"`

	ExposeBuffBase       float64 `yaml:"expose_buff_base" json:"expose_buff_base"`
	ExposeBuffRounds     int     `yaml:"expose_buff_rounds" json:"expose_buff_rounds"`
	LosingBidCostPercent int     `yaml:"losing_bid_cost_percent" json:"losing_bid_cost_percent"`

	Costs Costs `yaml:"costs" json:"costs"`
	Units Units `yaml:"units" json:"units"`
}

type Pollution struct {
	PenaltyPerLevel int     `yaml:"penalty_per_level" json:"penalty_per_level"`
	DriftAmplitude  int     `yaml:"drift_amplitude" json:"drift_amplitude"`
	DriftScale      float64 `yaml:"drift_scale" json:"drift_scale"`
	DriftRounds     int     `yaml:"drift_rounds" json:"drift_rounds"`
}

// Costs are charged against a robot-turn's compute budget per Controller call.
type Costs struct {
	Query   int `yaml:"query" json:"query"`
	Sense   int `yaml:"sense" json:"sense"`
	Command int `yaml:"command" json:"command"`
}

type Units struct {
	EnlightenmentCenter UnitTuning `yaml:"enlightenment_center" json:"enlightenment_center"`
	Politician          UnitTuning `yaml:"politician" json:"politician"`
	Slanderer           UnitTuning `yaml:"slanderer" json:"slanderer"`
	Muckraker           UnitTuning `yaml:"muckraker" json:"muckraker"`
}

type UnitTuning struct {
	unit.Spec `yaml:",inline"`
	Builds    []string `yaml:"builds,omitempty" json:"builds,omitempty"`
}

func Defaults() Tuning {
	tab := unit.DefaultTable()
	fromSpec := func(ty unit.Type) UnitTuning {
		s := tab.Spec(ty)
		ut := UnitTuning{Spec: s}
		for _, b := range s.Builds {
			ut.Builds = append(ut.Builds, b.String())
		}
		ut.Spec.Builds = nil
		return ut
	}
	return Tuning{
		ProtocolVersion:        "1.0",
		MaxRounds:              1500,
		TurnComputeBudget:      15000,
		TurnTimeoutMs:          250,
		FlagMax:                1<<24 - 1,
		EmpowerRadiusSquared:   4,
		SwampCooldownSurcharge: 2,
		MinSensorRadiusSquared: 2,
		Pollution: Pollution{
			PenaltyPerLevel: 1,
			DriftAmplitude:  3,
			DriftScale:      0.08,
			DriftRounds:     200,
		},
		ExposeBuffBase:       1.001,
		ExposeBuffRounds:     50,
		LosingBidCostPercent: 50,
		Costs:                Costs{Query: 1, Sense: 10, Command: 50},
		Units: Units{
			EnlightenmentCenter: fromSpec(unit.EnlightenmentCenter),
			Politician:          fromSpec(unit.Politician),
			Slanderer:           fromSpec(unit.Slanderer),
			Muckraker:           fromSpec(unit.Muckraker),
		},
	}
}

// Load reads a tuning file on top of Defaults so a file may override only some keys.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) unitTuning(ty unit.Type) UnitTuning {
	switch ty {
	case unit.EnlightenmentCenter:
		return t.Units.EnlightenmentCenter
	case unit.Politician:
		return t.Units.Politician
	case unit.Slanderer:
		return t.Units.Slanderer
	default:
		return t.Units.Muckraker
	}
}

// Table resolves the per-type parameters. Unknown build names are reported by Validate.
func (t Tuning) Table() unit.Table {
	var tab unit.Table
	for _, ty := range unit.Types() {
		ut := t.unitTuning(ty)
		s := ut.Spec
		s.Builds = nil
		for _, name := range ut.Builds {
			if b, ok := unit.ParseType(name); ok {
				s.Builds = append(s.Builds, b)
			}
		}
		tab[ty] = s
	}
	return tab
}

func (t Tuning) TurnTimeout() time.Duration {
	return time.Duration(t.TurnTimeoutMs) * time.Millisecond
}

func (t Tuning) Validate() error {
	var errs []error
	if t.MaxRounds <= 0 {
		errs = append(errs, errors.New("max_rounds must be > 0"))
	}
	if t.TurnComputeBudget <= 0 {
		errs = append(errs, errors.New("turn_compute_budget must be > 0"))
	}
	if t.TurnTimeoutMs <= 0 {
		errs = append(errs, errors.New("turn_timeout_ms must be > 0"))
	}
	if t.FlagMax < 0 {
		errs = append(errs, errors.New("flag_max must be >= 0"))
	}
	if t.EmpowerRadiusSquared <= 0 {
		errs = append(errs, errors.New("empower_radius_squared must be > 0"))
	}
	if t.SwampCooldownSurcharge < 0 {
		errs = append(errs, errors.New("swamp_cooldown_surcharge must be >= 0"))
	}
	if t.MinSensorRadiusSquared < 0 {
		errs = append(errs, errors.New("min_sensor_radius_squared must be >= 0"))
	}
	if t.ExposeBuffBase < 1 {
		errs = append(errs, errors.New("expose_buff_base must be >= 1"))
	}
	if t.ExposeBuffRounds < 0 {
		errs = append(errs, errors.New("expose_buff_rounds must be >= 0"))
	}
	if t.LosingBidCostPercent < 0 || t.LosingBidCostPercent > 100 {
		errs = append(errs, errors.New("losing_bid_cost_percent must be within [0,100]"))
	}
	if t.Costs.Query < 0 || t.Costs.Sense < 0 || t.Costs.Command < 0 {
		errs = append(errs, errors.New("costs must be >= 0"))
	}
	for _, ty := range unit.Types() {
		ut := t.unitTuning(ty)
		// Every action must push cooldown to at least 1 so a robot cannot act
		// twice before its cooldown decays.
		if ut.ActionCooldown < 1 {
			errs = append(errs, fmt.Errorf("%s: action_cooldown must be >= 1", ty))
		}
		if ut.CooldownDecay <= 0 {
			errs = append(errs, fmt.Errorf("%s: cooldown_decay must be > 0", ty))
		}
		if ut.SensorRadiusSquared < 0 {
			errs = append(errs, fmt.Errorf("%s: sensor_radius_squared must be >= 0", ty))
		}
		if ut.CanDetect && ut.DetectionRadiusSquared <= ut.SensorRadiusSquared {
			errs = append(errs, fmt.Errorf("%s: detection_radius_squared must exceed sensor_radius_squared", ty))
		}
		for _, name := range ut.Builds {
			b, ok := unit.ParseType(name)
			if !ok {
				errs = append(errs, fmt.Errorf("%s: unknown build type %q", ty, name))
				continue
			}
			if b == unit.EnlightenmentCenter {
				errs = append(errs, fmt.Errorf("%s: enlightenment centers cannot be built", ty))
			}
		}
	}
	return errors.Join(errs...)
}

// Digest is a stable hash of the effective values, recorded in match headers.
func (t Tuning) Digest() string {
	b, _ := json.Marshal(t)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
