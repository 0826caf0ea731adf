package session

import (
	"errors"
	"fmt"

	"celestetracker.ai/internal/protocol"
)

var (
	ErrUnknownObjective = errors.New("unknown objective")
	ErrAlreadyChecked   = errors.New("objective already checked")
	ErrNoServerID       = errors.New("objective has no server location")
	ErrNotReachable     = errors.New("objective not reachable")
)

// RequestCheck marks an objective the player just completed. The location
// check goes out only for a mapped, reachable, unchecked objective; anything
// else returns an error and leaves s untouched.
func RequestCheck(s State, key string) (State, []protocol.Outbound, error) {
	i, ok := s.index[key]
	if !ok {
		return s, nil, fmt.Errorf("%w: %s", ErrUnknownObjective, key)
	}
	o := s.Objectives[i]
	switch {
	case o.Checked:
		return s, nil, fmt.Errorf("%w: %s", ErrAlreadyChecked, key)
	case o.ServerLocationID == nil:
		return s, nil, fmt.Errorf("%w: %s", ErrNoServerID, key)
	case !o.Reachable:
		return s, nil, fmt.Errorf("%w: %s", ErrNotReachable, key)
	}

	next := s.Clone()
	next.Objectives[i].Checked = true
	next.ChecksVersion++
	return next, []protocol.Outbound{protocol.NewLocationChecks(*o.ServerLocationID)}, nil
}
