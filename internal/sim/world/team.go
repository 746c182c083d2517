package world

import (
	"fmt"
	"strings"
)

type Team int8

const (
	// AnyTeam is only a filter value for sensing queries.
	AnyTeam Team = -1
	TeamA   Team = 0
	TeamB   Team = 1
)

const NumTeams = 2

func (t Team) Valid() bool { return t == TeamA || t == TeamB }

func (t Team) Opponent() Team {
	if t == TeamA {
		return TeamB
	}
	return TeamA
}

func (t Team) String() string {
	switch t {
	case TeamA:
		return "A"
	case TeamB:
		return "B"
	case AnyTeam:
		return "ANY"
	}
	return fmt.Sprintf("TEAM_%d", int8(t))
}

func ParseTeam(s string) (Team, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A", "0":
		return TeamA, true
	case "B", "1":
		return TeamB, true
	case "", "ANY":
		return AnyTeam, true
	}
	return AnyTeam, false
}

// Buff multiplies a team's politician empower conviction while the round is
// at most Until.
type Buff struct {
	Factor float64
	Until  int
}

type teamState struct {
	votes      int
	resigned   bool
	winningBid int
	buffs      []Buff

	// Refreshed at round end.
	robotCount int
	ecCount    int
	influence  int
}

// TeamSummary is the read-only aggregate view of one team.
type TeamSummary struct {
	Team           Team
	Votes          int
	RobotCount     int
	ECCount        int
	TotalInfluence int
	WinningBid     int
	Resigned       bool
}
