package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Game is the data package section this tracker reads.
const Game = "Celeste (Open World)"

// Server -> client commands.
const (
	CmdRoomInfo          = "RoomInfo"
	CmdConnected         = "Connected"
	CmdConnectionRefused = "ConnectionRefused"
	CmdConnectionError   = "ConnectionError"
	CmdDataPackage       = "DataPackage"
	CmdReceivedItems     = "ReceivedItems"
	CmdItemInfo          = "ItemInfo"
	CmdLocationChecks    = "LocationChecks"
	CmdRoomUpdate        = "RoomUpdate"
	CmdLocationInfo      = "LocationInfo"
	CmdRetrieved         = "Retrieved"
	CmdSetReply          = "SetReply"
	CmdBounced           = "Bounced"
	CmdPrintJSON         = "PrintJSON"
)

// Client -> server commands.
const (
	CmdConnect        = "Connect"
	CmdGetDataPackage = "GetDataPackage"
	CmdGet            = "Get"
)

// Storage keys the tracker asks for.
const (
	KeyCheckedLocations = "checked_locations"
)

// BaseMessage lets us route unknown JSON messages by cmd.
type BaseMessage struct {
	Cmd string `json:"cmd"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// SplitFrame returns the individual messages carried by one websocket frame.
// The server may send a single object or an array of objects.
func SplitFrame(b []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	switch trimmed[0] {
	case '[':
		var out []json.RawMessage
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("decode frame array: %w", err)
		}
		return out, nil
	case '{':
		return []json.RawMessage{append(json.RawMessage(nil), trimmed...)}, nil
	default:
		return nil, fmt.Errorf("unexpected frame start %q", trimmed[0])
	}
}

// DecodeFrame splits a frame and decodes every message in it. Messages that
// fail to decode are returned as Ignored so one bad entry does not drop the
// rest of the batch.
func DecodeFrame(b []byte) ([]Inbound, error) {
	parts, err := SplitFrame(b)
	if err != nil {
		return nil, err
	}
	out := make([]Inbound, 0, len(parts))
	for _, p := range parts {
		out = append(out, Decode(p))
	}
	return out, nil
}
