package protocol

import "encoding/json"

// ItemsHandlingAll asks the server to send own-world, remote and starting
// inventory items.
const ItemsHandlingAll = 7

// Outbound is a client -> server message.
type Outbound interface {
	Command() string
	outbound()
}

type NetworkVersion struct {
	Major int    `json:"major"`
	Minor int    `json:"minor"`
	Build int    `json:"build"`
	Class string `json:"class"`
}

// ClientVersion is the protocol version the tracker announces.
var ClientVersion = NetworkVersion{Major: 0, Minor: 5, Build: 0, Class: "Version"}

type ConnectMsg struct {
	Cmd           string         `json:"cmd"`
	Game          string         `json:"game"`
	Name          string         `json:"name"`
	Password      string         `json:"password"`
	Tags          []string       `json:"tags"`
	ItemsHandling int            `json:"items_handling"`
	UUID          string         `json:"uuid"`
	Version       NetworkVersion `json:"version"`
}

type GetDataPackageMsg struct {
	Cmd   string   `json:"cmd"`
	Games []string `json:"games,omitempty"`
}

type GetMsg struct {
	Cmd  string   `json:"cmd"`
	Keys []string `json:"keys"`
}

type LocationChecksMsg struct {
	Cmd       string  `json:"cmd"`
	Locations []int64 `json:"locations"`
}

func (ConnectMsg) Command() string        { return CmdConnect }
func (GetDataPackageMsg) Command() string { return CmdGetDataPackage }
func (GetMsg) Command() string            { return CmdGet }
func (LocationChecksMsg) Command() string { return CmdLocationChecks }

func (ConnectMsg) outbound()        {}
func (GetDataPackageMsg) outbound() {}
func (GetMsg) outbound()            {}
func (LocationChecksMsg) outbound() {}

func NewConnect(slot, password, uuid string) ConnectMsg {
	return ConnectMsg{
		Cmd:           CmdConnect,
		Game:          Game,
		Name:          slot,
		Password:      password,
		Tags:          []string{"Tracker"},
		ItemsHandling: ItemsHandlingAll,
		UUID:          uuid,
		Version:       ClientVersion,
	}
}

func NewGetDataPackage() GetDataPackageMsg {
	return GetDataPackageMsg{Cmd: CmdGetDataPackage, Games: []string{Game}}
}

func NewGet(keys ...string) GetMsg {
	return GetMsg{Cmd: CmdGet, Keys: keys}
}

func NewLocationChecks(ids ...int64) LocationChecksMsg {
	return LocationChecksMsg{Cmd: CmdLocationChecks, Locations: ids}
}

// EncodeFrame serializes messages as the JSON array the server expects.
func EncodeFrame(msgs ...Outbound) ([]byte, error) {
	if msgs == nil {
		msgs = []Outbound{}
	}
	return json.Marshal(msgs)
}
