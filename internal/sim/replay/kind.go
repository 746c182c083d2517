package replay

import (
	"fmt"
	"strings"
)

// Kind is the persisted action code. Codes are append-only: a new kind takes
// the next free number and existing numbers never move.
type Kind uint8

const (
	KindEmpower Kind = iota
	KindExpose
	KindSetFlag
	KindSpawnUnit
	KindPlaceBid
	KindChangeTeam
	KindDieException
)

var kindNames = [...]string{"EMPOWER", "EXPOSE", "SET_FLAG", "SPAWN_UNIT", "PLACE_BID", "CHANGE_TEAM", "DIE_EXCEPTION"}

// Known reports whether k is one of the kinds this build understands.
// Consumers skip unknown kinds instead of failing.
func (k Kind) Known() bool { return int(k) < len(kindNames) }

func (k Kind) String() string {
	if !k.Known() {
		return fmt.Sprintf("KIND_%d", uint8(k))
	}
	return kindNames[k]
}

func ParseKind(s string) (Kind, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, n := range kindNames {
		if n == s {
			return Kind(i), true
		}
	}
	return 0, false
}

func Kinds() []Kind {
	out := make([]Kind, len(kindNames))
	for i := range kindNames {
		out[i] = Kind(i)
	}
	return out
}

// TargetNone fills the target of kinds that carry no payload.
const TargetNone int64 = -1
