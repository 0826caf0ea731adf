package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"celestetracker.ai/internal/protocol"
	"celestetracker.ai/internal/tracker/reconcile"
)

// Step applies one inbound message. It never mutates s; the returned state,
// the messages to send and the log lines are the whole effect.
func Step(s State, msg protocol.Inbound) (State, []protocol.Outbound, []string) {
	next := s.Clone()
	d := &dispatch{s: &next}

	switch m := msg.(type) {
	case protocol.RoomInfo:
		d.roomInfo(m)
	case protocol.Connected:
		d.connected(m)
	case protocol.Refused:
		d.refused(m)
	case protocol.DataPackage:
		d.dataPackage(m)
	case protocol.ReceivedItems:
		ids := make([]int64, 0, len(m.Items))
		for _, it := range m.Items {
			ids = append(ids, it.Item)
		}
		d.receiveItems(ids, m.Index == 0)
	case protocol.ItemInfo:
		ids := make([]int64, 0, len(m.Items))
		for _, it := range m.Items {
			if it.Player == protocol.TrackedSlot {
				ids = append(ids, it.Item)
			}
		}
		d.receiveItems(ids, false)
	case protocol.LocationChecks:
		d.applyChecks(m.Command(), m.Locations)
	case protocol.RoomUpdate:
		d.applyChecks(m.Command(), m.CheckedLocations)
	case protocol.LocationInfo:
		d.applyChecks(m.Command(), m.CheckedLocations())
	case protocol.Retrieved:
		d.retrieved(m)
	case protocol.SetReply:
		d.applyChecks(m.Command(), m.CheckedLocations())
	case protocol.Bounced:
		d.applyChecks(m.Command(), m.CheckedLocations())
	case protocol.Ignored:
		d.logf("message_ignored cmd=%s reason=%s", m.Cmd, m.Reason)
	default:
		d.logf("message_ignored cmd=%s reason=unknown variant", msg.Command())
	}

	if d.dirty {
		next.recompute()
	}
	return next, d.out, d.logs
}

type dispatch struct {
	s     *State
	out   []protocol.Outbound
	logs  []string
	dirty bool
}

func (d *dispatch) logf(format string, args ...any) {
	d.logs = append(d.logs, fmt.Sprintf(format, args...))
}

func (d *dispatch) send(m protocol.Outbound) {
	d.out = append(d.out, m)
}

func (d *dispatch) roomInfo(m protocol.RoomInfo) {
	o := d.s.Options
	d.send(protocol.NewConnect(o.SlotName, o.Password, o.ClientUUID))
	d.send(protocol.NewGetDataPackage())
	d.s.Phase = PhaseConnected
	d.logf("room_info seed=%s password=%v slot=%s", m.SeedName, m.Password, o.SlotName)

	if sd := m.PlayerSlotData(); sd != nil {
		d.applySlotData(sd)
	}
	if len(m.CheckedLocations) > 0 {
		d.applyChecks(m.Command(), m.CheckedLocations)
	}
}

func (d *dispatch) connected(m protocol.Connected) {
	d.s.Phase = PhaseSynced
	d.s.Errors = nil
	d.s.MissingLocations = len(m.MissingLocations)
	d.logf("connected team=%d slot=%d checked=%d missing=%d", m.Team, m.Slot, len(m.CheckedLocations), len(m.MissingLocations))

	if len(m.SlotData) > 0 && string(m.SlotData) != "null" {
		d.applySlotData(m.SlotData)
	}
	d.applyChecks(m.Command(), m.CheckedLocations)
	if d.s.Map != nil {
		d.send(protocol.NewGet(protocol.KeyCheckedLocations))
	}
}

func (d *dispatch) refused(m protocol.Refused) {
	errs := m.Errors
	if len(errs) == 0 {
		errs = []string{"unknown"}
	}
	d.s.Errors = nil
	for _, code := range errs {
		d.s.Errors = append(d.s.Errors, protocol.DescribeRefusal(code))
		d.logf("connection_refused cmd=%s code=%s known=%v", m.Cmd, code, protocol.IsKnownCode(code))
	}
	d.s.Phase = PhaseAwaitingRoomInfo
}

func (d *dispatch) applySlotData(raw json.RawMessage) {
	cfg, logs, err := ParseSlotData(raw)
	if err != nil {
		d.logf("slot_data_invalid err=%v", err)
		return
	}
	d.logs = append(d.logs, logs...)
	d.s.Config = cfg
	d.dirty = true
}

func (d *dispatch) dataPackage(m protocol.DataPackage) {
	game, ok := m.Data.Games[protocol.Game]
	if !ok {
		d.logf("data_package_missing_game game=%q games=%d", protocol.Game, len(m.Data.Games))
		return
	}
	res := reconcile.Reconcile(d.s.catalog.Entries, game.LocationNameToID, game.ItemNameToID)
	d.s.Map = res.Map
	for i := range d.s.Objectives {
		o := &d.s.Objectives[i]
		o.ServerLocationID = nil
		if id, ok := res.Map.KeyToLocation[o.Key]; ok {
			o.ServerLocationID = &id
		}
	}
	d.logf("reconciled locations=%d items=%d matched=%d unmatched_server=%d unmatched_local=%d unknown_items=%d",
		len(game.LocationNameToID), len(game.ItemNameToID), len(res.Map.LocationToKey),
		len(res.UnmatchedServer), len(res.UnmatchedLocal), len(res.UnknownItems))
	for _, name := range res.UnmatchedServer {
		d.logf("unmatched_server_location name=%q", name)
	}
	for _, name := range res.UnknownItems {
		d.logf("unknown_item name=%q", name)
	}

	if d.s.Pending.Len() > 0 {
		queued := d.s.Pending.Len()
		keys, dropped := d.s.Pending.Drain(d.applyItem)
		d.logf("pending_items_drained applied=%d dropped=%d capabilities=%s",
			queued-len(dropped), len(dropped), strings.Join(keys, ","))
		for _, id := range dropped {
			d.logf("pending_item_dropped id=%d", id)
		}
	}

	if len(d.s.PendingChecks) > 0 {
		ids := make([]int64, 0, len(d.s.PendingChecks))
		for id := range d.s.PendingChecks {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		d.applyChecks("pending", ids)
	}

	if d.s.Phase == PhaseSynced {
		d.send(protocol.NewGet(protocol.KeyCheckedLocations))
	}
	d.dirty = true
}

// receiveItems applies items in order. A full resync replaces the collected
// counters and anything still queued, since the server resends everything.
func (d *dispatch) receiveItems(ids []int64, resync bool) {
	if resync {
		if d.s.Strawberries != 0 {
			d.dirty = true
		}
		d.s.Strawberries = 0
		d.s.Collectibles = 0
		d.s.Pending.Reset()
	}
	queuedBefore := d.s.Pending.Len()
	for _, id := range ids {
		if _, ok := d.applyItem(id); ok {
			continue
		}
		d.s.Pending.Enqueue(id)
	}
	if queued := d.s.Pending.Len() - queuedBefore; queued > 0 {
		d.logf("items_queued count=%d pending=%d", queued, d.s.Pending.Len())
		if d.s.Map == nil && queuedBefore == 0 && d.s.Phase != PhaseIdle {
			d.send(protocol.NewGetDataPackage())
		}
	}
}

// applyItem resolves one item through the current map. It returns the
// capability key for capability items and reports whether the item resolved.
func (d *dispatch) applyItem(id int64) (string, bool) {
	c, ok := d.s.Map.ResolveItem(id)
	if !ok {
		return "", false
	}
	switch c.Kind {
	case reconcile.ItemCapability:
		if d.s.Caps.Unlock(c.Capability) {
			d.s.CapsVersion++
			d.dirty = true
			d.logf("capability_unlocked key=%s item=%d", c.Capability, id)
		}
	case reconcile.ItemCollectible:
		d.s.Collectibles++
		if c.IsStrawberry() {
			d.s.Strawberries++
			d.dirty = true
		}
		return "", true
	}
	return c.Capability, true
}

// applyChecks marks every resolvable ID checked. Unresolved IDs are kept
// and retried after the next reconciliation. Checks are never undone.
func (d *dispatch) applyChecks(source string, ids []int64) {
	newly := 0
	for _, id := range ids {
		key, ok := d.s.Map.ResolveLocation(id)
		if !ok {
			d.s.PendingChecks[id] = struct{}{}
			continue
		}
		delete(d.s.PendingChecks, id)
		i, ok := d.s.index[key]
		if !ok {
			continue
		}
		o := &d.s.Objectives[i]
		if o.Checked {
			continue
		}
		o.Checked = true
		newly++
		d.logf("location_checked key=%s id=%d source=%s", key, id, source)
	}
	if newly > 0 {
		d.s.ChecksVersion++
	}
}

func (d *dispatch) retrieved(m protocol.Retrieved) {
	k := m.Keys
	if len(k.SlotData) > 0 && string(k.SlotData) != "null" {
		d.applySlotData(k.SlotData)
	}
	if k.ReceivedItems != nil {
		ids := make([]int64, 0, len(k.ReceivedItems))
		for _, r := range k.ReceivedItems {
			ids = append(ids, int64(r))
		}
		d.receiveItems(ids, true)
	}
	d.applyChecks(m.Command(), k.CheckedLocations)
}
