package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Goals.
const (
	GoalSummitA        = "summit-a"
	GoalSummitB        = "summit-b"
	GoalSummitC        = "summit-c"
	GoalCoreA          = "core-a"
	GoalCoreB          = "core-b"
	GoalCoreC          = "core-c"
	GoalEmptySpace     = "empty-space"
	GoalFarewell       = "farewell"
	GoalFarewellGolden = "farewell-golden"
)

// SessionConfig is the per-slot configuration the server hands out in slot
// data. It is replaced wholesale on every application.
type SessionConfig struct {
	Goal                 string `json:"goal"`
	LockGoalArea         bool   `json:"lock_goal_area"`
	IncludeBSides        bool   `json:"include_b_sides"`
	IncludeCSides        bool   `json:"include_c_sides"`
	IncludeGoldens       bool   `json:"include_goldens"`
	IncludeCore          bool   `json:"include_core"`
	IncludeFarewell      bool   `json:"include_farewell"`
	IncludeCheckpoints   bool   `json:"include_checkpoints"`
	Binosanity           bool   `json:"binosanity"`
	Keysanity            bool   `json:"keysanity"`
	Gemsanity            bool   `json:"gemsanity"`
	Carsanity            bool   `json:"carsanity"`
	StrawberriesRequired int    `json:"strawberries_required"`
}

func DefaultConfig() SessionConfig {
	return SessionConfig{
		Goal:            GoalSummitA,
		IncludeBSides:   true,
		IncludeCSides:   true,
		IncludeGoldens:  true,
		IncludeCore:     true,
		IncludeFarewell: true,
	}
}

// goalMapping accepts numeric, numeric+letter and snake_case goal values.
var goalMapping = map[string]string{
	"0": GoalSummitA, "0a": GoalSummitA,
	"1": GoalSummitB, "1b": GoalSummitB,
	"2": GoalSummitC, "2c": GoalSummitC,
	"3": GoalCoreA, "3a": GoalCoreA,
	"4": GoalCoreB, "4b": GoalCoreB,
	"5": GoalCoreC, "5c": GoalCoreC,
	"6": GoalSummitA, "6a": GoalSummitA,
	"7": GoalCoreA, "7a": GoalSummitA,
	"8": GoalFarewell, "8a": GoalFarewell,
	"9": GoalFarewellGolden, "9g": GoalFarewellGolden,
	"10": GoalFarewell, "10a": GoalFarewell,

	"the_summit_a":    GoalSummitA,
	"the_summit_b":    GoalSummitB,
	"the_summit_c":    GoalSummitC,
	"the_core_a":      GoalCoreA,
	"the_core_b":      GoalCoreB,
	"the_core_c":      GoalCoreC,
	"summit_a":        GoalSummitA,
	"summit_b":        GoalSummitB,
	"summit_c":        GoalSummitC,
	"core_a":          GoalCoreA,
	"core_b":          GoalCoreB,
	"core_c":          GoalCoreC,
	"empty_space":     GoalEmptySpace,
	"farewell":        GoalFarewell,
	"farewell_golden": GoalFarewellGolden,
}

// MapGoal normalizes a slot data goal value.
func MapGoal(v any) (string, bool) {
	s := strings.ReplaceAll(strings.ToLower(scalarString(v)), "-", "_")
	g, ok := goalMapping[s]
	return g, ok
}

// GoalChapter is the chapter a goal finishes in.
func GoalChapter(goal string) (int, bool) {
	switch goal {
	case GoalSummitA, GoalSummitB, GoalSummitC:
		return 7, true
	case GoalCoreA, GoalCoreB, GoalCoreC:
		return 9, true
	case GoalEmptySpace:
		return 8, true
	case GoalFarewell, GoalFarewellGolden:
		return 10, true
	}
	return 0, false
}

// ParseSlotData builds a config from the tracked slot's slot data, starting
// from defaults. Keys that are absent keep their default.
func ParseSlotData(raw json.RawMessage) (SessionConfig, []string, error) {
	cfg := DefaultConfig()
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var sd map[string]any
	if err := dec.Decode(&sd); err != nil {
		return cfg, nil, fmt.Errorf("slot data: %w", err)
	}
	var logs []string
	logf := func(format string, args ...any) { logs = append(logs, fmt.Sprintf(format, args...)) }

	if v, ok := sd["goal_area"]; ok {
		if g, ok := MapGoal(v); ok {
			cfg.Goal = g
			logf("slot_goal goal=%s", g)
		} else {
			logf("slot_goal_unknown value=%v", v)
		}
	}
	if v, ok := sd["lock_goal_area"]; ok {
		cfg.LockGoalArea = parseBool(v)
	}
	_, hasB := sd["include_b_sides"]
	_, hasC := sd["include_c_sides"]
	if hasB || hasC {
		cfg.IncludeBSides = parseBool(sd["include_b_sides"])
		cfg.IncludeCSides = parseBool(sd["include_c_sides"])
	}
	if v, ok := sd["include_goldens"]; ok {
		cfg.IncludeGoldens = parseBool(v)
	}
	if v, ok := sd["include_core"]; ok {
		cfg.IncludeCore = parseBool(v)
	}
	if v, ok := sd["include_farewell"]; ok {
		cfg.IncludeFarewell = parseFarewell(v)
	}
	if v, ok := sd["checkpointsanity"]; ok {
		cfg.IncludeCheckpoints = parseBool(v)
	}
	if v, ok := sd["binosanity"]; ok {
		cfg.Binosanity = parseBool(v)
	}
	if v, ok := sd["keysanity"]; ok {
		cfg.Keysanity = parseBool(v)
	}
	if v, ok := sd["gemsanity"]; ok {
		cfg.Gemsanity = parseBool(v)
	}
	if v, ok := sd["carsanity"]; ok {
		cfg.Carsanity = parseBool(v)
	}
	if v, ok := sd["strawberries_required"]; ok {
		if n, ok := parseInt(v); ok && n >= 0 {
			cfg.StrawberriesRequired = n
		}
	}
	pv, hasPct := sd["strawberries_required_percentage"]
	tv, hasTotal := sd["total_strawberries"]
	if hasPct && hasTotal {
		pct, ok1 := parseInt(pv)
		total, ok2 := parseInt(tv)
		if ok1 && ok2 {
			cfg.StrawberriesRequired = int(math.Ceil(float64(pct) / 100 * float64(total)))
			logf("slot_strawberries required=%d pct=%d total=%d", cfg.StrawberriesRequired, pct, total)
		}
	}
	logf("slot_config goal=%s lock=%v b=%v c=%v goldens=%v core=%v farewell=%v checkpoints=%v required=%d",
		cfg.Goal, cfg.LockGoalArea, cfg.IncludeBSides, cfg.IncludeCSides, cfg.IncludeGoldens,
		cfg.IncludeCore, cfg.IncludeFarewell, cfg.IncludeCheckpoints, cfg.StrawberriesRequired)
	return cfg, logs, nil
}

func parseBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0
	case float64:
		return x != 0
	case string:
		return x == "true" || x == "1"
	}
	return false
}

// parseFarewell treats "none", "0" and "" as disabled; any other string
// names a farewell variant and enables the chapter.
func parseFarewell(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case json.Number:
		f, err := x.Float64()
		return err == nil && f > 0
	case float64:
		return x > 0
	case string:
		return x != "none" && x != "0" && x != ""
	}
	return false
}

// parseInt reads a leading integer the way slot data producers emit it:
// numbers, numeric strings, or floats truncated toward zero.
func parseInt(v any) (int, bool) {
	s := strings.TrimSpace(scalarString(v))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return int(f), true
	}
	return 0, false
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
