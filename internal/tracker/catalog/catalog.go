package catalog

import (
	"regexp"
	"strings"

	"celestetracker.ai/internal/tracker/logic"
)

type Kind string

const (
	KindRoom       Kind = "room"
	KindStrawberry Kind = "strawberry"
	KindCassette   Kind = "cassette"
	KindHeart      Kind = "heart"
	KindKey        Kind = "key"
	KindEvent      Kind = "event"
	KindCheckpoint Kind = "checkpoint"
)

// Collectible type tokens used for name matching.
const (
	TypeGoldenStrawberry = "Golden Strawberry"
	TypeStrawberry       = "Strawberry"
	TypeCassette         = "Cassette"
	TypeCrystalHeart     = "Crystal Heart"
	TypeKey              = "Key"
	TypeMoonBerry        = "Moon Berry"
	TypeRaspberry        = "Raspberry"
	TypeGem              = "Gem"
	TypeLevelClear       = "Level Clear"
	TypeCheckpoint       = "Checkpoint"
)

// Entry is one immutable catalog objective.
type Entry struct {
	Key          string     `json:"key"`
	DisplayName  string     `json:"display_name"`
	ExternalName string     `json:"external_name"`
	Chapter      int        `json:"chapter"`
	Kind         Kind       `json:"kind"`
	Tree         logic.Node `json:"tree"`
}

// NewEntry derives an entry from its external location name.
func NewEntry(name string, tree *logic.Node) Entry {
	e := Entry{
		Key:          KeyFor(name),
		DisplayName:  name,
		ExternalName: name,
		Chapter:      ChapterOf(name),
		Kind:         KindOf(name),
		Tree:         logic.Always(),
	}
	if tree != nil {
		e.Tree = *tree
	}
	return e
}

// CollectibleType is the type token of the entry, or "" when the entry does
// not denote a collectible-bearing objective.
func (e Entry) CollectibleType() string { return CollectibleType(e.DisplayName) }

func (e Entry) IsCollectible() bool { return e.CollectibleType() != "" }

func (e Entry) Side() string { return SideOf(e.ExternalName) }

var (
	nonAlnum   = regexp.MustCompile(`[^a-zA-Z0-9]+`)
	metersRe   = regexp.MustCompile(`\d+\s*M`)
	metersCiRe = regexp.MustCompile(`(?i)\d+\s*m\b`)
	sideRe     = regexp.MustCompile(`([ABC])\s+-\s+`)
	roomRe     = regexp.MustCompile(`(?i)Room\s+([a-z0-9\-]+)`)
)

// KeyFor turns an external name into a stable local key.
func KeyFor(name string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(name, "_"), "_")
}

var chapterPrefixes = []struct {
	prefix  string
	chapter int
}{
	{"Prologue", 0},
	{"Forsaken City", 1},
	{"Old Site", 2},
	{"Celestial Resort", 3},
	{"Golden Ridge", 4},
	{"Mirror Temple", 5},
	{"Reflection", 6},
	{"The Summit", 7},
	{"Epilogue", 8},
	{"Core", 9},
	{"Farewell", 10},
}

// ChapterOf returns the chapter index for a name, -1 when unknown.
func ChapterOf(name string) int {
	for _, p := range chapterPrefixes {
		if strings.HasPrefix(name, p.prefix) {
			return p.chapter
		}
	}
	return -1
}

var checkpointNames = []string{
	"Crossing", "Chasm", "Intervention", "Awake", "Contraption", "Scrap Pit",
	"Elevator Shaft", "Huge Mess", "Presidential Suite", "Front Door", "Hallway",
	"Staff Quarters", "Rooftop", "Library", "Old Trail", "Cliff Face",
	"Stepping Stones", "Gusty Canyon", "Eye of the Storm", "Search", "Depths",
	"Rescue", "Unravelling", "Mix Master", "Central Chamber", "Through the Mirror",
	"Hollows", "Resolution", "Reflection", "Reprieve", "Rock Bottom",
	"Hot and Cold", "Heart of the Mountain", "Into the Core", "Heartbeat",
	"Burning or Freezing", "Farewell", "Event Horizon", "Determination",
	"Power Source", "Reconciliation", "Remembered", "Singular", "Stubbornness",
}

// KindOf infers the objective kind from its name. Order matters: "Golden
// Ridge" rooms are strawberries and "2500 M Key" is a key.
func KindOf(name string) Kind {
	switch {
	case strings.Contains(name, "Strawberry"):
		return KindStrawberry
	case strings.Contains(name, "Cassette"):
		return KindCassette
	case strings.Contains(name, "Heart"):
		return KindHeart
	case strings.Contains(name, "Key"):
		return KindKey
	case strings.Contains(name, "Moon Berry"), strings.Contains(name, "Gem"):
		return KindStrawberry
	case strings.Contains(name, "Shrine"),
		strings.Contains(name, "Combination Lock"),
		strings.Contains(name, "Dream Altar"):
		return KindCheckpoint
	case strings.Contains(name, "Level Clear"):
		return KindEvent
	case metersRe.MatchString(name):
		return KindCheckpoint
	}
	for _, cp := range checkpointNames {
		if strings.Contains(name, cp) {
			return KindCheckpoint
		}
	}
	return KindRoom
}

var lowerCheckpointNames = func() []string {
	out := []string{"shrine", "combination lock", "dream altar"}
	for _, n := range checkpointNames {
		out = append(out, strings.ToLower(n))
	}
	return out
}()

// CollectibleType returns the collectible token a name carries.
func CollectibleType(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "golden strawberry"), strings.Contains(lower, "winged golden"):
		return TypeGoldenStrawberry
	case strings.Contains(lower, "strawberry"):
		return TypeStrawberry
	case strings.Contains(lower, "cassette"):
		return TypeCassette
	case strings.Contains(lower, "heart"):
		return TypeCrystalHeart
	case strings.Contains(lower, "key"):
		return TypeKey
	case strings.Contains(lower, "moon berry"):
		return TypeMoonBerry
	case strings.Contains(lower, "raspberry"):
		return TypeRaspberry
	case strings.Contains(lower, "gem"):
		return TypeGem
	case strings.Contains(lower, "core") && strings.Contains(lower, "crystal"):
		return TypeCrystalHeart
	case strings.Contains(lower, "level clear"):
		return TypeLevelClear
	case metersCiRe.MatchString(name):
		return TypeCheckpoint
	}
	for _, cp := range lowerCheckpointNames {
		if strings.Contains(lower, cp) {
			return TypeCheckpoint
		}
	}
	return ""
}

// SideOf returns "A", "B", "C" or "" for names without a side.
func SideOf(name string) string {
	if m := sideRe.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return ""
}

// RoomOf returns the lowercased room token after "Room", or "".
func RoomOf(name string) string {
	if m := roomRe.FindStringSubmatch(name); m != nil {
		return strings.ToLower(m[1])
	}
	return ""
}
