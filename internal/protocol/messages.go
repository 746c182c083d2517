package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	BotName         string `json:"bot_name"`
	// "A" or "B".
	Team string `json:"team"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	MatchID         string `json:"match_id"`
	Team            string `json:"team"`
	TuningDigest    string `json:"tuning_digest"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	MaxRounds       int    `json:"max_rounds"`
	TurnBudget      int    `json:"turn_budget"`
	TurnTimeoutMs   int    `json:"turn_timeout_ms"`
}

// TURN (server -> client): one robot may act until it yields.
type TurnMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Round           int      `json:"round"`
	Self            SelfInfo `json:"self"`
	Game            GameInfo `json:"game"`
	// Robots inside the sensor radius, nearest first.
	Nearby []RobotInfo `json:"nearby"`
}

// CMD (client -> server): a query or an action on behalf of the robot whose
// turn is open. Round and Robot must name that turn.
type CmdMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Seq             int     `json:"seq"`
	Round           int     `json:"round"`
	Robot           int32   `json:"robot"`
	Cmd             Command `json:"cmd"`
}

// RESULT (server -> client)
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             int    `json:"seq"`
	Result          Result `json:"result"`
}

// YIELD (client -> server): the robot's turn is complete.
type YieldMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Round           int             `json:"round"`
	Robot           int32           `json:"robot"`
	Profile         []ProfilerEvent `json:"profile,omitempty"`
}

// MATCH_OVER (server -> client)
type MatchOverMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Winner          string `json:"winner"`
	Reason          string `json:"reason"`
	Round           int    `json:"round"`
}

// ERROR (server -> client) reports a protocol violation before the
// connection is closed.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

type SelfInfo struct {
	ID                  int32   `json:"id"`
	Team                string  `json:"team"`
	UnitType            string  `json:"unit_type"`
	Loc                 [2]int  `json:"loc"`
	Influence           int     `json:"influence"`
	Conviction          int     `json:"conviction"`
	Cooldown            float64 `json:"cooldown"`
	Flag                int     `json:"flag"`
	SensorRadiusSquared int     `json:"sensor_radius_squared"`
}

type GameInfo struct {
	Round      int    `json:"round"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Votes      [2]int `json:"votes"`
	RobotCount [2]int `json:"robot_count"`
}

type RobotInfo struct {
	ID         int32  `json:"id"`
	Team       string `json:"team"`
	UnitType   string `json:"unit_type"`
	Loc        [2]int `json:"loc"`
	Influence  int    `json:"influence"`
	Conviction int    `json:"conviction"`
}

// ProfilerEvent marks entering (Open) or leaving a profiled frame at a
// compute counter value.
type ProfilerEvent struct {
	Open  bool  `json:"open"`
	At    int64 `json:"at"`
	Frame int   `json:"frame"`
}
