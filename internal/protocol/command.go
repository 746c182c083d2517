package protocol

// Command operations. Queries never change the world; actions may.
const (
	OpGame      = "GAME"
	OpSelf      = "SELF"
	OpCounter   = "COUNTER"
	OpSense     = "SENSE"
	OpRobot     = "ROBOT"
	OpRobotAt   = "ROBOT_AT"
	OpOccupied  = "OCCUPIED"
	OpFlag      = "FLAG"
	OpSwamp     = "SWAMP"
	OpPollution = "POLLUTION"
	OpOnMap     = "ON_MAP"

	OpMove    = "MOVE"
	OpBuild   = "BUILD"
	OpEmpower = "EMPOWER"
	OpExpose  = "EXPOSE"
	OpDetect  = "DETECT"
	OpBid     = "BID"
	OpSetFlag = "SET_FLAG"
	OpResign  = "RESIGN"
	OpDot     = "DOT"
	OpLine    = "LINE"
)

// Command is one Controller call in wire form. Fields not used by Op are
// ignored.
type Command struct {
	Op string `json:"op"`
	// Check runs only the precondition of an action.
	Check bool `json:"check,omitempty"`

	Dir       string   `json:"dir,omitempty"`
	UnitType  string   `json:"unit_type,omitempty"`
	Influence int      `json:"influence,omitempty"`
	Amount    int      `json:"amount,omitempty"`
	Value     int      `json:"value,omitempty"`
	ID        int32    `json:"id,omitempty"`
	Loc       *[2]int  `json:"loc,omitempty"`
	To        *[2]int  `json:"to,omitempty"`
	RadiusSq  int      `json:"radius_squared,omitempty"`
	Team      string   `json:"team,omitempty"`
	RGB       [3]uint8 `json:"rgb,omitempty"`
}

type Result struct {
	OK      bool   `json:"ok"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	Bool      bool        `json:"bool,omitempty"`
	Value     int64       `json:"value,omitempty"`
	Robot     *RobotInfo  `json:"robot,omitempty"`
	Robots    []RobotInfo `json:"robots,omitempty"`
	Locations [][2]int    `json:"locations,omitempty"`
	Self      *SelfInfo   `json:"self,omitempty"`
	Game      *GameInfo   `json:"game,omitempty"`
}

// Fail builds a failed Result.
func Fail(code, msg string) Result {
	return Result{Code: code, Message: msg}
}

func IsAction(op string) bool {
	switch op {
	case OpMove, OpBuild, OpEmpower, OpExpose, OpDetect, OpBid, OpSetFlag, OpResign, OpDot, OpLine:
		return true
	}
	return false
}
