package logic

import "sort"

// NoCondition is the sentinel capability that is always satisfied.
const NoCondition = "noCondition"

// Mechanics are the randomized in-game mechanics a slot can unlock.
var Mechanics = []string{
	"dashrefills",
	"springs",
	"trafficblocks",
	"pinkcassetteblocks",
	"bluecassetteblocks",
	"dreamblocks",
	"coins",
	"strawberryseeds",
	"sinkingplatforms",
	"movingplatforms",
	"blueclouds",
	"pinkclouds",
	"blueboosters",
	"redboosters",
	"moveblocks",
	"whiteblock",
	"swapblocks",
	"dashswitches",
	"torches",
	"theocrystal",
	"feathers",
	"bumpers",
	"kevins",
	"badelineboosters",
	"fireandiceballs",
	"coretoggles",
	"coreblocks",
	"pufferfish",
	"jellyfish",
	"doubledashrefills",
	"breakerboxes",
	"yellowcassetteblocks",
	"greencassetteblocks",
	"bird",
	"seekers",
	"crystalheart",
}

// KeyItems are the numbered door keys, tracked as capabilities.
var KeyItems = []string{
	"hasFrontDoorKey",
	"hasHallwayKey1",
	"hasHallwayKey2",
	"hasHugeMessKey",
	"hasPresidentialSuiteKey",
	"hasEntranceKey",
	"hasDepthsKey",
	"hasSearchKey1",
	"hasSearchKey2",
	"hasSearchKey3",
	"hasCentralChamberKey1",
	"hasCentralChamberKey2",
	"has2500MKey",
	"hasPowerSourceKey1",
	"hasPowerSourceKey2",
	"hasPowerSourceKey3",
	"hasPowerSourceKey4",
	"hasPowerSourceKey5",
}

// ItemNames maps the server's item name to the capability it grants.
var ItemNames = map[string]string{
	"Dash Refills":                                "dashrefills",
	"Springs":                                     "springs",
	"Traffic Blocks":                              "trafficblocks",
	"Pink Cassette Blocks":                        "pinkcassetteblocks",
	"Blue Cassette Blocks":                        "bluecassetteblocks",
	"Dream Blocks":                                "dreamblocks",
	"Coins":                                       "coins",
	"Strawberry Seeds":                            "strawberryseeds",
	"Sinking Platforms":                           "sinkingplatforms",
	"Moving Platforms":                            "movingplatforms",
	"Blue Clouds":                                 "blueclouds",
	"Pink Clouds":                                 "pinkclouds",
	"Blue Boosters":                               "blueboosters",
	"Red Boosters":                                "redboosters",
	"Move Blocks":                                 "moveblocks",
	"White Block":                                 "whiteblock",
	"Swap Blocks":                                 "swapblocks",
	"Dash Switches":                               "dashswitches",
	"Torches":                                     "torches",
	"Theo Crystal":                                "theocrystal",
	"Feathers":                                    "feathers",
	"Bumpers":                                     "bumpers",
	"Kevins":                                      "kevins",
	"Badeline Boosters":                           "badelineboosters",
	"Fire and Ice Balls":                          "fireandiceballs",
	"Core Toggles":                                "coretoggles",
	"Core Blocks":                                 "coreblocks",
	"Pufferfish":                                  "pufferfish",
	"Jellyfish":                                   "jellyfish",
	"Double Dash Refills":                         "doubledashrefills",
	"Breaker Boxes":                               "breakerboxes",
	"Yellow Cassette Blocks":                      "yellowcassetteblocks",
	"Green Cassette Blocks":                       "greencassetteblocks",
	"Bird":                                        "bird",
	"Seekers":                                     "seekers",
	"Crystal Heart":                               "crystalheart",
	"Celestial Resort A - Front Door Key":         "hasFrontDoorKey",
	"Celestial Resort A - Hallway Key 1":          "hasHallwayKey1",
	"Celestial Resort A - Hallway Key 2":          "hasHallwayKey2",
	"Celestial Resort A - Huge Mess Key":          "hasHugeMessKey",
	"Celestial Resort A - Presidential Suite Key": "hasPresidentialSuiteKey",
	"Mirror Temple A - Entrance Key":              "hasEntranceKey",
	"Mirror Temple A - Depths Key":                "hasDepthsKey",
	"Mirror Temple A - Search Key 1":              "hasSearchKey1",
	"Mirror Temple A - Search Key 2":              "hasSearchKey2",
	"Mirror Temple A - Search Key 3":              "hasSearchKey3",
	"Mirror Temple B - Central Chamber Key 1":     "hasCentralChamberKey1",
	"Mirror Temple B - Central Chamber Key 2":     "hasCentralChamberKey2",
	"The Summit A - 2500 M Key":                   "has2500MKey",
	"Farewell - Power Source Key 1":               "hasPowerSourceKey1",
	"Farewell - Power Source Key 2":               "hasPowerSourceKey2",
	"Farewell - Power Source Key 3":               "hasPowerSourceKey3",
	"Farewell - Power Source Key 4":               "hasPowerSourceKey4",
	"Farewell - Power Source Key 5":               "hasPowerSourceKey5",
}

var known = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Mechanics)+len(KeyItems)+1)
	for _, k := range Mechanics {
		m[k] = struct{}{}
	}
	for _, k := range KeyItems {
		m[k] = struct{}{}
	}
	m[NoCondition] = struct{}{}
	return m
}()

// IsKnown reports whether key belongs to the capability vocabulary, including
// the sentinel.
func IsKnown(key string) bool {
	_, ok := known[key]
	return ok
}

// ItemNamesSorted returns the item table names in a stable order.
func ItemNamesSorted() []string {
	out := make([]string, 0, len(ItemNames))
	for k := range ItemNames {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DisplayName returns the server item name for a capability key, or the key
// itself when it has none.
func DisplayName(key string) string {
	for name, k := range ItemNames {
		if k == key {
			return name
		}
	}
	if key == NoCondition {
		return "No Condition"
	}
	return key
}

// Capabilities is the unlocked flag per capability key.
type Capabilities map[string]bool

// NewCapabilities returns every known capability set to false.
func NewCapabilities() Capabilities {
	c := make(Capabilities, len(Mechanics)+len(KeyItems))
	for _, k := range Mechanics {
		c[k] = false
	}
	for _, k := range KeyItems {
		c[k] = false
	}
	return c
}

// Merge copies persisted values onto c. Keys outside the vocabulary are
// dropped and returned so callers can log them.
func (c Capabilities) Merge(stored map[string]bool) (dropped []string) {
	for k, v := range stored {
		if k == NoCondition || !IsKnown(k) {
			dropped = append(dropped, k)
			continue
		}
		c[k] = v
	}
	sort.Strings(dropped)
	return dropped
}

// Unlock sets key true and reports whether it changed.
func (c Capabilities) Unlock(key string) bool {
	if !IsKnown(key) || key == NoCondition || c[key] {
		return false
	}
	c[key] = true
	return true
}

func (c Capabilities) Clone() Capabilities {
	out := make(Capabilities, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Unlocked returns the sorted keys currently set.
func (c Capabilities) Unlocked() []string {
	var out []string
	for k, v := range c {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
