package protocol

// Connection refusal reasons reported in ConnectionRefused.errors.
const (
	ErrInvalidSlot          = "InvalidSlot"
	ErrInvalidGame          = "InvalidGame"
	ErrIncompatibleVersion  = "IncompatibleVersion"
	ErrInvalidPassword      = "InvalidPassword"
	ErrInvalidItemsHandling = "InvalidItemsHandling"
)

var knownCodes = map[string]struct{}{
	ErrInvalidSlot:          {},
	ErrInvalidGame:          {},
	ErrIncompatibleVersion:  {},
	ErrInvalidPassword:      {},
	ErrInvalidItemsHandling: {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// DescribeRefusal turns a refusal code into a message fit for a status line.
func DescribeRefusal(code string) string {
	switch code {
	case ErrInvalidSlot:
		return "slot name not found in this room"
	case ErrInvalidGame:
		return "slot is not playing " + Game
	case ErrIncompatibleVersion:
		return "server rejected client version"
	case ErrInvalidPassword:
		return "wrong room password"
	case ErrInvalidItemsHandling:
		return "server rejected items handling flags"
	default:
		return code
	}
}
