package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"
	ErrTeamTaken       = "E_TEAM_TAKEN"

	// Command preconditions.
	ErrBadRequest            = "E_BAD_REQUEST"
	ErrNotFound              = "E_NOT_FOUND"
	ErrNotReady              = "E_NOT_READY"
	ErrWrongType             = "E_WRONG_TYPE"
	ErrOffMap                = "E_OFF_MAP"
	ErrOccupied              = "E_OCCUPIED"
	ErrOutOfRange            = "E_OUT_OF_RANGE"
	ErrCannotBuild           = "E_CANNOT_BUILD"
	ErrInsufficientInfluence = "E_INSUFFICIENT_INFLUENCE"
	ErrSwamp                 = "E_SWAMP"
	ErrAlreadyBid            = "E_ALREADY_BID"

	// Turn outcomes.
	ErrExhausted = "E_EXHAUSTED"
	ErrTurnOver  = "E_TURN_OVER"
	ErrInternal  = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:       {},
	ErrProtoVersion:          {},
	ErrTeamTaken:             {},
	ErrBadRequest:            {},
	ErrNotFound:              {},
	ErrNotReady:              {},
	ErrWrongType:             {},
	ErrOffMap:                {},
	ErrOccupied:              {},
	ErrOutOfRange:            {},
	ErrCannotBuild:           {},
	ErrInsufficientInfluence: {},
	ErrSwamp:                 {},
	ErrAlreadyBid:            {},
	ErrExhausted:             {},
	ErrTurnOver:              {},
	ErrInternal:              {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
