package protocol

import (
	"encoding/json"
	"strconv"
)

// TrackedSlot is the only player slot the tracker follows.
const TrackedSlot = 1

// Inbound is a decoded server message. The set of implementations is closed;
// anything the tracker does not understand decodes to Ignored.
type Inbound interface {
	Command() string
	inbound()
}

// RoomInfo (server -> client), first message after the socket opens.
type RoomInfo struct {
	Password         bool            `json:"password,omitempty"`
	SeedName         string          `json:"seed_name,omitempty"`
	SlotData         json.RawMessage `json:"slot_data,omitempty"`
	CheckedLocations []int64         `json:"checked_locations,omitempty"`
}

// PlayerSlotData returns the per-slot configuration for the tracked slot, or
// nil when the room carries none.
func (m RoomInfo) PlayerSlotData() json.RawMessage {
	if len(m.SlotData) == 0 {
		return nil
	}
	var bySlot map[string]json.RawMessage
	if err := json.Unmarshal(m.SlotData, &bySlot); err != nil {
		return nil
	}
	return bySlot[strconv.Itoa(TrackedSlot)]
}

type Connected struct {
	Team             int             `json:"team"`
	Slot             int             `json:"slot"`
	SlotData         json.RawMessage `json:"slot_data,omitempty"`
	CheckedLocations []int64         `json:"checked_locations,omitempty"`
	MissingLocations []int64         `json:"missing_locations,omitempty"`
}

// Refused covers both ConnectionRefused and ConnectionError.
type Refused struct {
	Cmd    string   `json:"cmd"`
	Errors []string `json:"errors,omitempty"`
}

type DataPackage struct {
	Data DataPackageData `json:"data"`
}

type DataPackageData struct {
	Games map[string]GameData `json:"games"`
}

type GameData struct {
	Checksum         string           `json:"checksum,omitempty"`
	LocationNameToID map[string]int64 `json:"location_name_to_id"`
	ItemNameToID     map[string]int64 `json:"item_name_to_id"`
}

type NetworkItem struct {
	Item     int64 `json:"item"`
	Location int64 `json:"location"`
	Player   int   `json:"player"`
	Flags    int   `json:"flags,omitempty"`
}

// ReceivedItems with Index 0 is a full resync of everything the slot owns.
type ReceivedItems struct {
	Index int           `json:"index"`
	Items []NetworkItem `json:"items"`
}

type ItemInfo struct {
	Items []NetworkItem `json:"items"`
}

type LocationChecks struct {
	Locations []int64 `json:"locations"`
}

type RoomUpdate struct {
	CheckedLocations []int64 `json:"checked_locations,omitempty"`
}

// LocationInfo entries are either bare location IDs or status objects.
type LocationInfo struct {
	Locations []json.RawMessage `json:"locations"`
}

type locationStatus struct {
	Location int64 `json:"location"`
	Player   int   `json:"player"`
	Status   int   `json:"status"`
}

// CheckedLocations returns the IDs this message reports as checked for the
// tracked slot.
func (m LocationInfo) CheckedLocations() []int64 {
	out := make([]int64, 0, len(m.Locations))
	for _, raw := range m.Locations {
		var id int64
		if err := json.Unmarshal(raw, &id); err == nil {
			out = append(out, id)
			continue
		}
		var st locationStatus
		if err := json.Unmarshal(raw, &st); err != nil {
			continue
		}
		if st.Status > 0 && st.Player == TrackedSlot && st.Location != 0 {
			out = append(out, st.Location)
		}
	}
	return out
}

type Retrieved struct {
	Keys RetrievedKeys `json:"keys"`
}

type RetrievedKeys struct {
	CheckedLocations []int64         `json:"checked_locations,omitempty"`
	ReceivedItems    []ItemRef       `json:"received_items,omitempty"`
	SlotData         json.RawMessage `json:"slot_data,omitempty"`
}

// ItemRef accepts either a bare item ID or a NetworkItem object.
type ItemRef int64

func (r *ItemRef) UnmarshalJSON(b []byte) error {
	var id int64
	if err := json.Unmarshal(b, &id); err == nil {
		*r = ItemRef(id)
		return nil
	}
	var it NetworkItem
	if err := json.Unmarshal(b, &it); err != nil {
		return err
	}
	*r = ItemRef(it.Item)
	return nil
}

type SetReply struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value,omitempty"`
}

// CheckedLocations returns the location set when the reply is for the
// checked_locations key.
func (m SetReply) CheckedLocations() []int64 {
	if m.Key != KeyCheckedLocations || len(m.Value) == 0 {
		return nil
	}
	var ids []int64
	if err := json.Unmarshal(m.Value, &ids); err != nil {
		return nil
	}
	return ids
}

type Bounced struct {
	Tags []string        `json:"tags,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type bouncedData struct {
	Locations []int64 `json:"locations"`
}

// CheckedLocations returns locations carried by a Client-tagged bounce. The
// data field may be an object or a JSON document encoded as a string.
func (m Bounced) CheckedLocations() []int64 {
	client := false
	for _, t := range m.Tags {
		if t == "Client" {
			client = true
			break
		}
	}
	if !client || len(m.Data) == 0 {
		return nil
	}
	raw := []byte(m.Data)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		raw = []byte(s)
	}
	var d bouncedData
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil
	}
	return d.Locations
}

// Ignored is any message the tracker does not act on, including ones that
// failed to decode.
type Ignored struct {
	Cmd    string
	Reason string
}

func (RoomInfo) Command() string       { return CmdRoomInfo }
func (Connected) Command() string      { return CmdConnected }
func (m Refused) Command() string      { return m.Cmd }
func (DataPackage) Command() string    { return CmdDataPackage }
func (ReceivedItems) Command() string  { return CmdReceivedItems }
func (ItemInfo) Command() string       { return CmdItemInfo }
func (LocationChecks) Command() string { return CmdLocationChecks }
func (RoomUpdate) Command() string     { return CmdRoomUpdate }
func (LocationInfo) Command() string   { return CmdLocationInfo }
func (Retrieved) Command() string      { return CmdRetrieved }
func (SetReply) Command() string       { return CmdSetReply }
func (Bounced) Command() string        { return CmdBounced }
func (m Ignored) Command() string      { return m.Cmd }

func (RoomInfo) inbound()       {}
func (Connected) inbound()      {}
func (Refused) inbound()        {}
func (DataPackage) inbound()    {}
func (ReceivedItems) inbound()  {}
func (ItemInfo) inbound()       {}
func (LocationChecks) inbound() {}
func (RoomUpdate) inbound()     {}
func (LocationInfo) inbound()   {}
func (Retrieved) inbound()      {}
func (SetReply) inbound()       {}
func (Bounced) inbound()        {}
func (Ignored) inbound()        {}

// Decode turns one raw message into its typed variant.
func Decode(raw []byte) Inbound {
	base, err := DecodeBase(raw)
	if err != nil {
		return Ignored{Reason: "bad json: " + err.Error()}
	}
	switch base.Cmd {
	case CmdRoomInfo:
		return decodeAs[RoomInfo](raw, base.Cmd)
	case CmdConnected:
		return decodeAs[Connected](raw, base.Cmd)
	case CmdConnectionRefused, CmdConnectionError:
		return decodeAs[Refused](raw, base.Cmd)
	case CmdDataPackage:
		return decodeAs[DataPackage](raw, base.Cmd)
	case CmdReceivedItems:
		return decodeAs[ReceivedItems](raw, base.Cmd)
	case CmdItemInfo:
		return decodeAs[ItemInfo](raw, base.Cmd)
	case CmdLocationChecks:
		return decodeAs[LocationChecks](raw, base.Cmd)
	case CmdRoomUpdate:
		return decodeAs[RoomUpdate](raw, base.Cmd)
	case CmdLocationInfo:
		return decodeAs[LocationInfo](raw, base.Cmd)
	case CmdRetrieved:
		return decodeAs[Retrieved](raw, base.Cmd)
	case CmdSetReply:
		return decodeAs[SetReply](raw, base.Cmd)
	case CmdBounced:
		return decodeAs[Bounced](raw, base.Cmd)
	default:
		return Ignored{Cmd: base.Cmd, Reason: "unhandled cmd"}
	}
}

func decodeAs[T Inbound](raw []byte, cmd string) Inbound {
	var m T
	if err := json.Unmarshal(raw, &m); err != nil {
		return Ignored{Cmd: cmd, Reason: "decode: " + err.Error()}
	}
	return m
}
