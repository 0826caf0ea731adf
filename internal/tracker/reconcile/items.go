package reconcile

import (
	"strings"

	"celestetracker.ai/internal/tracker/logic"
)

type ItemKind string

const (
	ItemCapability  ItemKind = "capability"
	ItemCollectible ItemKind = "collectible"
	ItemUnknown     ItemKind = "unknown"
)

type ItemClass struct {
	Kind       ItemKind `json:"kind"`
	Capability string   `json:"capability,omitempty"`
	Name       string   `json:"name"`
}

// IsStrawberry reports whether the item counts toward the strawberry goal.
// Golden strawberries are tracked separately.
func (c ItemClass) IsStrawberry() bool {
	lower := strings.ToLower(c.Name)
	return c.Kind == ItemCollectible && strings.Contains(lower, "strawberry") && !strings.Contains(lower, "golden")
}

var (
	mechanicKeywords = []string{
		"spring", "traffic block", "cassette block", "dream block", "coin",
		"strawberry seed", "sinking platform", "moving platform", "blue booster",
		"blue cloud", "move block", "white block", "swap block", "red booster",
		"torch", "theo crystal", "feather", "bumper", "kevin", "pink cloud",
		"badeline booster", "fire and ice", "core toggle", "core block",
		"pufferfish", "jellyfish", "breaker box", "dash refill", "double dash",
		"yellow cassette", "green cassette", "bird", "dash switch", "seeker", "key",
	}
	collectibleKeywords = []string{
		"strawberry", "raspberry", "cassette", "gem", "moon berry",
		"golden strawberry", "crystal heart",
	}
)

// ClassifyItem sorts a server item name into capability, collectible or
// unknown.
func ClassifyItem(name string) ItemClass {
	if key, ok := logic.ItemNames[name]; ok {
		return ItemClass{Kind: ItemCapability, Capability: key, Name: name}
	}
	lower := strings.ToLower(name)
	if strings.Contains(lower, "cassette") && !strings.Contains(lower, "block") {
		return ItemClass{Kind: ItemCollectible, Name: name}
	}
	if containsAny(lower, mechanicKeywords) {
		if key := capabilityFor(name); key != "" {
			return ItemClass{Kind: ItemCapability, Capability: key, Name: name}
		}
		return ItemClass{Kind: ItemUnknown, Name: name}
	}
	if containsAny(lower, collectibleKeywords) {
		return ItemClass{Kind: ItemCollectible, Name: name}
	}
	return ItemClass{Kind: ItemUnknown, Name: name}
}

// capabilityFor finds a capability by substring against the item table, then
// by the hand-coded special cases.
func capabilityFor(name string) string {
	if name == "" {
		return ""
	}
	for _, tableName := range logic.ItemNamesSorted() {
		if strings.Contains(name, tableName) || strings.Contains(tableName, name) {
			return logic.ItemNames[tableName]
		}
	}
	switch {
	case strings.Contains(name, "Dash Refill"):
		return "dashrefills"
	case strings.Contains(name, "Crystal Heart"):
		return "crystalheart"
	}
	return ""
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
