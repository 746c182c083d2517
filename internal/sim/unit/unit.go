// Package unit is the closed enumeration of robot types and the static
// parameters each type carries. Ability legality is expressed as lookups into
// a Table rather than per-type behavior.
package unit

import (
	"math"
	"strings"
)

type Type uint8

// Numeric values are persisted in match logs; append only.
const (
	EnlightenmentCenter Type = iota
	Politician
	Slanderer
	Muckraker

	NumTypes = 4
)

var typeNames = [NumTypes]string{"ENLIGHTENMENT_CENTER", "POLITICIAN", "SLANDERER", "MUCKRAKER"}

func (t Type) Valid() bool { return int(t) < NumTypes }

func (t Type) String() string {
	if !t.Valid() {
		return "UNKNOWN"
	}
	return typeNames[t]
}

func ParseType(s string) (Type, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, n := range typeNames {
		if n == s {
			return Type(i), true
		}
	}
	return 0, false
}

func Types() []Type {
	return []Type{EnlightenmentCenter, Politician, Slanderer, Muckraker}
}

type Spec struct {
	SensorRadiusSquared    int     `yaml:"sensor_radius_squared" json:"sensor_radius_squared"`
	DetectionRadiusSquared int     `yaml:"detection_radius_squared" json:"detection_radius_squared"`
	ActionCooldown         float64 `yaml:"action_cooldown" json:"action_cooldown"`
	CooldownDecay          float64 `yaml:"cooldown_decay" json:"cooldown_decay"`
	MinBuildInfluence      int     `yaml:"min_build_influence" json:"min_build_influence"`
	ConvictionRatio        float64 `yaml:"conviction_ratio" json:"conviction_ratio"`
	MinConviction          int     `yaml:"min_conviction" json:"min_conviction"`

	Mobile     bool   `yaml:"mobile" json:"mobile"`
	Builds     []Type `yaml:"-" json:"builds,omitempty"`
	CanEmpower bool   `yaml:"can_empower" json:"can_empower"`
	CanExpose  bool   `yaml:"can_expose" json:"can_expose"`
	CanDetect  bool   `yaml:"can_detect" json:"can_detect"`
	CanBid     bool   `yaml:"can_bid" json:"can_bid"`
	Exposable  bool   `yaml:"exposable" json:"exposable"`
}

func (s Spec) CanBuild() bool { return len(s.Builds) > 0 }

func (s Spec) CanBuildType(t Type) bool {
	for _, b := range s.Builds {
		if b == t {
			return true
		}
	}
	return false
}

// ConvictionFor converts spent influence into starting conviction (rounded up).
func (s Spec) ConvictionFor(influence int) int {
	if influence <= 0 {
		return 0
	}
	ratio := s.ConvictionRatio
	if ratio <= 0 {
		ratio = 1
	}
	// Guard against 0.7*10 = 7.000000000000001 rounding up to 8.
	v := float64(influence) * ratio
	return int(math.Ceil(v - 1e-9))
}

type Table [NumTypes]Spec

func (t *Table) Spec(ty Type) Spec {
	if !ty.Valid() {
		return Spec{}
	}
	return t[ty]
}

func DefaultTable() Table {
	var t Table
	t[EnlightenmentCenter] = Spec{
		SensorRadiusSquared:    40,
		DetectionRadiusSquared: 40,
		ActionCooldown:         2,
		CooldownDecay:          1,
		ConvictionRatio:        1,
		MinConviction:          0,
		Builds:                 []Type{Politician, Slanderer, Muckraker},
		CanBid:                 true,
	}
	t[Politician] = Spec{
		SensorRadiusSquared:    25,
		DetectionRadiusSquared: 25,
		ActionCooldown:         1,
		CooldownDecay:          1,
		MinBuildInfluence:      10,
		ConvictionRatio:        1,
		MinConviction:          1,
		Mobile:                 true,
		CanEmpower:             true,
	}
	t[Slanderer] = Spec{
		SensorRadiusSquared:    20,
		DetectionRadiusSquared: 20,
		ActionCooldown:         2,
		CooldownDecay:          1,
		MinBuildInfluence:      20,
		ConvictionRatio:        1,
		MinConviction:          1,
		Mobile:                 true,
		Exposable:              true,
	}
	t[Muckraker] = Spec{
		SensorRadiusSquared:    30,
		DetectionRadiusSquared: 40,
		ActionCooldown:         1.5,
		CooldownDecay:          1,
		MinBuildInfluence:      1,
		ConvictionRatio:        0.7,
		MinConviction:          1,
		Mobile:                 true,
		CanExpose:              true,
		CanDetect:              true,
	}
	return t
}
