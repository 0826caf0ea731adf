package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeFrameArrayAndObject(t *testing.T) {
	msgs, err := DecodeFrame([]byte(`[{"cmd":"RoomInfo"},{"cmd":"ReceivedItems","index":0,"items":[{"item":900,"location":1,"player":1}]}]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if _, ok := msgs[0].(RoomInfo); !ok {
		t.Fatalf("expected RoomInfo, got %T", msgs[0])
	}
	ri, ok := msgs[1].(ReceivedItems)
	if !ok || len(ri.Items) != 1 || ri.Items[0].Item != 900 {
		t.Fatalf("unexpected ReceivedItems: %#v", msgs[1])
	}

	single, err := DecodeFrame([]byte(` {"cmd":"LocationChecks","locations":[500]} `))
	if err != nil {
		t.Fatalf("decode object: %v", err)
	}
	lc, ok := single[0].(LocationChecks)
	if !ok || len(lc.Locations) != 1 || lc.Locations[0] != 500 {
		t.Fatalf("unexpected LocationChecks: %#v", single[0])
	}
}

func TestDecodeFrameRejectsGarbage(t *testing.T) {
	if _, err := DecodeFrame([]byte("  ")); err == nil {
		t.Fatalf("expected error for empty frame")
	}
	if _, err := DecodeFrame([]byte("42")); err == nil {
		t.Fatalf("expected error for scalar frame")
	}
}

func TestDecodeUnknownAndMalformedAreIgnored(t *testing.T) {
	m := Decode([]byte(`{"cmd":"PrintJSON","data":[]}`))
	ig, ok := m.(Ignored)
	if !ok || ig.Cmd != CmdPrintJSON {
		t.Fatalf("expected Ignored PrintJSON, got %#v", m)
	}
	m = Decode([]byte(`{"cmd":"LocationChecks","locations":"nope"}`))
	ig, ok = m.(Ignored)
	if !ok || ig.Cmd != CmdLocationChecks || ig.Reason == "" {
		t.Fatalf("expected Ignored with reason, got %#v", m)
	}
}

func TestRoomInfoPlayerSlotData(t *testing.T) {
	m := Decode([]byte(`{"cmd":"RoomInfo","slot_data":{"1":{"goal_area":"core_a"},"2":{}}}`)).(RoomInfo)
	var sd map[string]any
	if err := json.Unmarshal(m.PlayerSlotData(), &sd); err != nil {
		t.Fatalf("slot data: %v", err)
	}
	if sd["goal_area"] != "core_a" {
		t.Fatalf("unexpected slot data: %v", sd)
	}

	bare := Decode([]byte(`{"cmd":"RoomInfo","slot_data":[1,2]}`)).(RoomInfo)
	if bare.PlayerSlotData() != nil {
		t.Fatalf("expected nil slot data for non-object payload")
	}
}

func TestLocationInfoCheckedLocations(t *testing.T) {
	m := Decode([]byte(`{"cmd":"LocationInfo","locations":[7,{"location":8,"player":1,"status":1},{"location":9,"player":2,"status":1},{"location":10,"player":1,"status":0}]}`)).(LocationInfo)
	got := m.CheckedLocations()
	if len(got) != 2 || got[0] != 7 || got[1] != 8 {
		t.Fatalf("unexpected ids: %v", got)
	}
}

func TestRetrievedAcceptsBareAndObjectItems(t *testing.T) {
	m := Decode([]byte(`{"cmd":"Retrieved","keys":{"checked_locations":[1,2],"received_items":[900,{"item":901,"player":1}]}}`)).(Retrieved)
	if len(m.Keys.CheckedLocations) != 2 {
		t.Fatalf("checked: %v", m.Keys.CheckedLocations)
	}
	if len(m.Keys.ReceivedItems) != 2 || m.Keys.ReceivedItems[0] != 900 || m.Keys.ReceivedItems[1] != 901 {
		t.Fatalf("items: %v", m.Keys.ReceivedItems)
	}
}

func TestSetReplyAndBouncedLocations(t *testing.T) {
	sr := Decode([]byte(`{"cmd":"SetReply","key":"checked_locations","value":[3,4]}`)).(SetReply)
	if got := sr.CheckedLocations(); len(got) != 2 {
		t.Fatalf("set reply: %v", got)
	}
	other := Decode([]byte(`{"cmd":"SetReply","key":"hints","value":[3,4]}`)).(SetReply)
	if got := other.CheckedLocations(); got != nil {
		t.Fatalf("expected nil for other key, got %v", got)
	}

	b := Decode([]byte(`{"cmd":"Bounced","tags":["Client"],"data":"{\"locations\":[11]}"}`)).(Bounced)
	if got := b.CheckedLocations(); len(got) != 1 || got[0] != 11 {
		t.Fatalf("bounced string data: %v", got)
	}
	b = Decode([]byte(`{"cmd":"Bounced","tags":["Client"],"data":{"locations":[12]}}`)).(Bounced)
	if got := b.CheckedLocations(); len(got) != 1 || got[0] != 12 {
		t.Fatalf("bounced object data: %v", got)
	}
	b = Decode([]byte(`{"cmd":"Bounced","tags":["DeathLink"],"data":{"locations":[12]}}`)).(Bounced)
	if got := b.CheckedLocations(); got != nil {
		t.Fatalf("expected non-client bounce ignored, got %v", got)
	}
}

func TestRefusedKeepsCmd(t *testing.T) {
	m := Decode([]byte(`{"cmd":"ConnectionError","errors":["boom"]}`))
	r, ok := m.(Refused)
	if !ok || r.Command() != CmdConnectionError || len(r.Errors) != 1 {
		t.Fatalf("unexpected: %#v", m)
	}
}
