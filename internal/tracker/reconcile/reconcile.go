package reconcile

import (
	"regexp"
	"sort"
	"strings"

	"celestetracker.ai/internal/tracker/catalog"
)

// IdentityMap ties server IDs to local objectives and capabilities for one
// data package. It is replaced wholesale, never merged.
type IdentityMap struct {
	LocationToKey map[int64]string
	KeyToLocation map[string]int64
	Items         map[int64]ItemClass
}

func NewIdentityMap() *IdentityMap {
	return &IdentityMap{
		LocationToKey: map[int64]string{},
		KeyToLocation: map[string]int64{},
		Items:         map[int64]ItemClass{},
	}
}

func (m *IdentityMap) ResolveLocation(id int64) (string, bool) {
	if m == nil {
		return "", false
	}
	k, ok := m.LocationToKey[id]
	return k, ok
}

// ResolveItem returns the class for an item ID. Unknown items resolve as not
// found so callers can queue them.
func (m *IdentityMap) ResolveItem(id int64) (ItemClass, bool) {
	if m == nil {
		return ItemClass{}, false
	}
	c, ok := m.Items[id]
	if !ok || c.Kind == ItemUnknown {
		return c, false
	}
	return c, true
}

func (m *IdentityMap) assign(id int64, key string) {
	m.LocationToKey[id] = key
	m.KeyToLocation[key] = id
}

type Result struct {
	Map *IdentityMap

	// Collectible-bearing server location names no local entry matched.
	UnmatchedServer []string
	// Collectible local keys left without a server ID.
	UnmatchedLocal []string
	// Server item names that are neither capabilities nor collectibles.
	UnknownItems []string
}

var (
	serverAllow = []string{
		"strawberry", "crystal heart", "cassette", "moon berry",
		"golden strawberry", "raspberry", "key", "gem", "level clear",
	}
	serverDeny  = []string{"crossing", "chasm", "intervention", "awake", "shrine"}
	metersLower = regexp.MustCompile(`\d+\s*m`)
)

// IsCollectibleLocation reports whether a server location name denotes a
// collectible-bearing objective worth matching.
func IsCollectibleLocation(name string) bool {
	lower := strings.ToLower(name)
	for _, d := range serverDeny {
		if strings.Contains(lower, d) {
			return false
		}
	}
	if metersLower.MatchString(lower) && !strings.Contains(lower, "key") {
		return false
	}
	for _, a := range serverAllow {
		if strings.Contains(lower, a) {
			return true
		}
	}
	return false
}

type serverLoc struct {
	name string
	id   int64
}

// Reconcile builds a fresh IdentityMap from the server's name tables.
//
// Server locations are visited in ascending ID order. Each one takes the
// unassigned collectible entry with the highest score above Threshold; both
// sides leave the pool once paired.
func Reconcile(entries []catalog.Entry, locations, items map[string]int64) Result {
	m := NewIdentityMap()

	type localCand struct {
		key  string
		cand candidate
	}
	pool := make([]localCand, 0, len(entries))
	for _, e := range entries {
		if !e.IsCollectible() {
			continue
		}
		pool = append(pool, localCand{key: e.Key, cand: newLocal(e.DisplayName)})
	}
	taken := make([]bool, len(pool))

	servers := make([]serverLoc, 0, len(locations))
	for name, id := range locations {
		if IsCollectibleLocation(name) {
			servers = append(servers, serverLoc{name: name, id: id})
		}
	}
	sort.Slice(servers, func(i, j int) bool {
		if servers[i].id != servers[j].id {
			return servers[i].id < servers[j].id
		}
		return servers[i].name < servers[j].name
	})

	var res Result
	for _, s := range servers {
		if _, dup := m.LocationToKey[s.id]; dup {
			continue
		}
		sc := newServer(s.name)
		best, bestScore := -1, 0
		for i, lc := range pool {
			if taken[i] {
				continue
			}
			v := score(lc.cand, sc)
			if v > Threshold && v > bestScore {
				best, bestScore = i, v
			}
		}
		if best < 0 {
			res.UnmatchedServer = append(res.UnmatchedServer, s.name)
			continue
		}
		taken[best] = true
		m.assign(s.id, pool[best].key)
	}
	for i, lc := range pool {
		if !taken[i] {
			res.UnmatchedLocal = append(res.UnmatchedLocal, lc.key)
		}
	}

	for name, id := range items {
		c := ClassifyItem(name)
		m.Items[id] = c
		if c.Kind == ItemUnknown {
			res.UnknownItems = append(res.UnknownItems, name)
		}
	}
	sort.Strings(res.UnknownItems)

	res.Map = m
	return res
}
