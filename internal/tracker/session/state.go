package session

import (
	"sort"

	"celestetracker.ai/internal/tracker/catalog"
	"celestetracker.ai/internal/tracker/logic"
	"celestetracker.ai/internal/tracker/pending"
	"celestetracker.ai/internal/tracker/reconcile"
)

// Phase is the message-level session state, layered on an open socket.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseAwaitingRoomInfo Phase = "awaiting_room_info"
	// PhaseConnected means room info arrived and the handshake went out.
	PhaseConnected Phase = "connected"
	PhaseSynced    Phase = "synced"
)

// Objective is the live state of one catalog entry.
type Objective struct {
	catalog.Entry

	Checked          bool         `json:"checked"`
	Reachable        bool         `json:"reachable"`
	Included         bool         `json:"included"`
	ServerLocationID *int64       `json:"server_location_id,omitempty"`
	Evaluation       logic.Result `json:"evaluation"`
}

// Options are the connection-level inputs the dispatcher needs.
type Options struct {
	SlotName            string
	Password            string
	ClientUUID          string
	AllowSequenceBreaks bool
}

// State is everything the dispatcher owns. Step and the other operations
// treat it as a value: they clone before mutating and return the result.
type State struct {
	Phase   Phase
	Options Options
	Config  SessionConfig

	Caps       logic.Capabilities
	Objectives []Objective

	// Map is nil until the first data package of the session is reconciled.
	Map *reconcile.IdentityMap
	// Pending holds item IDs received before Map could resolve them.
	Pending *pending.Queue
	// PendingChecks holds checked location IDs no map has resolved yet.
	PendingChecks map[int64]struct{}

	Strawberries     int
	Collectibles     int
	MissingLocations int

	// Errors are the refusal reasons of the last handshake, if any.
	Errors []string

	// CapsVersion and ChecksVersion grow whenever capabilities or checked
	// flags change, so owners know when to persist.
	CapsVersion   uint64
	ChecksVersion uint64

	catalog *catalog.Catalog
	index   map[string]int
}

// New builds the initial state for cat. Every objective starts unchecked
// and reachability is computed once up front.
func New(cat *catalog.Catalog, opts Options) State {
	s := State{
		Phase:         PhaseIdle,
		Options:       opts,
		Config:        DefaultConfig(),
		Caps:          logic.NewCapabilities(),
		Objectives:    make([]Objective, len(cat.Entries)),
		Pending:       &pending.Queue{},
		PendingChecks: map[int64]struct{}{},
		catalog:       cat,
		index:         make(map[string]int, len(cat.Entries)),
	}
	for i, e := range cat.Entries {
		s.Objectives[i] = Objective{Entry: e}
		s.index[e.Key] = i
	}
	s.recompute()
	return s
}

// Clone returns a deep copy. The catalog and the identity map are shared:
// both are replaced, never mutated.
func (s State) Clone() State {
	out := s
	out.Caps = s.Caps.Clone()
	out.Objectives = append([]Objective(nil), s.Objectives...)
	out.Pending = s.Pending.Clone()
	out.PendingChecks = make(map[int64]struct{}, len(s.PendingChecks))
	for id := range s.PendingChecks {
		out.PendingChecks[id] = struct{}{}
	}
	out.Errors = append([]string(nil), s.Errors...)
	return out
}

func (s State) Catalog() *catalog.Catalog { return s.catalog }

func (s State) Objective(key string) (Objective, bool) {
	i, ok := s.index[key]
	if !ok {
		return Objective{}, false
	}
	return s.Objectives[i], true
}

// CheckedMap returns the checked flag per objective key.
func (s State) CheckedMap() map[string]bool {
	out := make(map[string]bool, len(s.Objectives))
	for _, o := range s.Objectives {
		out[o.Key] = o.Checked
	}
	return out
}

// Trees returns the current requirement tree per objective key.
func (s State) Trees() map[string]logic.Node {
	out := make(map[string]logic.Node, len(s.Objectives))
	for _, o := range s.Objectives {
		out[o.Key] = o.Tree
	}
	return out
}

// Counts summarizes the store for status lines and metrics.
type Counts struct {
	Total     int
	Included  int
	Checked   int
	Reachable int
	Mapped    int
}

func (s State) Counts() Counts {
	c := Counts{Total: len(s.Objectives)}
	for _, o := range s.Objectives {
		if o.Included {
			c.Included++
		}
		if o.Checked {
			c.Checked++
		}
		if o.Reachable {
			c.Reachable++
		}
		if o.ServerLocationID != nil {
			c.Mapped++
		}
	}
	return c
}

// WithCapabilities merges persisted capability flags. Keys outside the
// vocabulary are dropped and returned.
func (s State) WithCapabilities(stored map[string]bool) (State, []string) {
	next := s.Clone()
	dropped := next.Caps.Merge(stored)
	next.CapsVersion++
	next.recompute()
	return next, dropped
}

// WithChecked seeds checked flags from storage. Only true values apply;
// unknown keys are dropped and returned.
func (s State) WithChecked(stored map[string]bool) (State, []string) {
	next := s.Clone()
	var dropped []string
	for key, v := range stored {
		i, ok := next.index[key]
		if !ok {
			dropped = append(dropped, key)
			continue
		}
		if v && !next.Objectives[i].Checked {
			next.Objectives[i].Checked = true
			next.ChecksVersion++
		}
	}
	sort.Strings(dropped)
	return next, dropped
}

// WithTrees replaces requirement trees per objective key. Unknown keys are
// dropped and returned.
func (s State) WithTrees(trees map[string]logic.Node) (State, []string) {
	next := s.Clone()
	var dropped []string
	for key, tree := range trees {
		i, ok := next.index[key]
		if !ok {
			dropped = append(dropped, key)
			continue
		}
		next.Objectives[i].Tree = tree
	}
	sort.Strings(dropped)
	next.recompute()
	return next, dropped
}

// WithOptions swaps connection options, e.g. after the user edits the slot.
func (s State) WithOptions(opts Options) State {
	next := s.Clone()
	next.Options = opts
	next.recompute()
	return next
}

// Opened moves an idle session to waiting for room info.
func Opened(s State) State {
	next := s.Clone()
	next.Phase = PhaseAwaitingRoomInfo
	next.Errors = nil
	return next
}

// Reset returns the session to idle after a disconnect. Per-connection
// bookkeeping is cleared; player progress is kept.
func Reset(s State) State {
	next := s.Clone()
	next.Phase = PhaseIdle
	next.Map = nil
	next.Pending = &pending.Queue{}
	next.PendingChecks = map[int64]struct{}{}
	next.MissingLocations = 0
	for i := range next.Objectives {
		next.Objectives[i].ServerLocationID = nil
	}
	return next
}
