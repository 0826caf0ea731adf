package session

import (
	"encoding/json"
	"testing"
)

func TestParseSlotDataGoals(t *testing.T) {
	cases := map[string]string{
		`{"goal_area": 7}`:              GoalCoreA,
		`{"goal_area": "7a"}`:           GoalSummitA,
		`{"goal_area": "the-summit-b"}`: GoalSummitB,
		`{"goal_area": "Empty_Space"}`:  GoalEmptySpace,
		`{"goal_area": "9g"}`:           GoalFarewellGolden,
		`{"goal_area": "moon"}`:         GoalSummitA,
		`{}`:                            GoalSummitA,
	}
	for raw, want := range cases {
		cfg, _, err := ParseSlotData(json.RawMessage(raw))
		if err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
		if cfg.Goal != want {
			t.Fatalf("%s: goal=%s want %s", raw, cfg.Goal, want)
		}
	}
}

func TestParseSlotDataToggles(t *testing.T) {
	cfg, _, err := ParseSlotData(json.RawMessage(`{
		"lock_goal_area": "1",
		"include_b_sides": 1,
		"include_goldens": "yes",
		"include_core": false,
		"include_farewell": "none",
		"checkpointsanity": true,
		"keysanity": 2,
		"strawberries_required": "25"
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cfg.LockGoalArea || !cfg.IncludeBSides || cfg.IncludeCSides {
		t.Fatalf("lock/sides: %+v", cfg)
	}
	if cfg.IncludeGoldens || cfg.IncludeCore || cfg.IncludeFarewell {
		t.Fatalf("goldens/core/farewell: %+v", cfg)
	}
	if !cfg.IncludeCheckpoints || !cfg.Keysanity || cfg.Gemsanity {
		t.Fatalf("sanity: %+v", cfg)
	}
	if cfg.StrawberriesRequired != 25 {
		t.Fatalf("required=%d", cfg.StrawberriesRequired)
	}
}

func TestParseSlotDataPercentageOverrides(t *testing.T) {
	cfg, _, err := ParseSlotData(json.RawMessage(`{
		"strawberries_required": 10,
		"strawberries_required_percentage": 50,
		"total_strawberries": "31"
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.StrawberriesRequired != 16 {
		t.Fatalf("required=%d want 16", cfg.StrawberriesRequired)
	}

	cfg, _, _ = ParseSlotData(json.RawMessage(`{"strawberries_required_percentage": 50}`))
	if cfg.StrawberriesRequired != 0 {
		t.Fatalf("percentage without total should not apply, got %d", cfg.StrawberriesRequired)
	}
}

func TestParseSlotDataIsWholesale(t *testing.T) {
	first, _, _ := ParseSlotData(json.RawMessage(`{"include_core": false, "goal_area": "core_b"}`))
	if first.IncludeCore || first.Goal != GoalCoreB {
		t.Fatalf("first: %+v", first)
	}
	second, _, _ := ParseSlotData(json.RawMessage(`{"keysanity": true}`))
	if !second.IncludeCore || second.Goal != GoalSummitA {
		t.Fatalf("second application should start from defaults: %+v", second)
	}
}

func TestParseSlotDataRejectsNonObject(t *testing.T) {
	cfg, _, err := ParseSlotData(json.RawMessage(`[1,2]`))
	if err == nil {
		t.Fatalf("expected error")
	}
	if cfg != DefaultConfig() {
		t.Fatalf("expected defaults on error")
	}
}

func TestFarewellValues(t *testing.T) {
	for _, v := range []any{"none", "0", "", false, json.Number("0"), nil} {
		if parseFarewell(v) {
			t.Fatalf("%#v should disable farewell", v)
		}
	}
	for _, v := range []any{"vanilla", true, json.Number("2"), 1.0} {
		if !parseFarewell(v) {
			t.Fatalf("%#v should enable farewell", v)
		}
	}
}

func TestGoalChapter(t *testing.T) {
	want := map[string]int{
		GoalSummitB:        7,
		GoalCoreC:          9,
		GoalEmptySpace:     8,
		GoalFarewellGolden: 10,
	}
	for g, ch := range want {
		if got, ok := GoalChapter(g); !ok || got != ch {
			t.Fatalf("%s: %d %v", g, got, ok)
		}
	}
	if _, ok := GoalChapter("moon"); ok {
		t.Fatalf("unknown goal should have no chapter")
	}
}
