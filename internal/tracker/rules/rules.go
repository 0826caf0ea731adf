package rules

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"celestetracker.ai/internal/tracker/catalog"
	"celestetracker.ai/internal/tracker/logic"
)

//go:embed rules.schema.json
var schemaText string

var schema = jsonschema.MustCompileString("rules.schema.json", schemaText)

// Document is the level data file: levels hold rooms, rooms hold regions,
// regions hold locations with alternative mechanic lists.
type Document struct {
	Levels []Level `json:"levels"`
}

type Level struct {
	DisplayName string `json:"display_name"`
	Rooms       []Room `json:"rooms"`
}

type Room struct {
	Name    string   `json:"name"`
	Regions []Region `json:"regions"`
}

type Region struct {
	Name      string     `json:"name,omitempty"`
	Locations []Location `json:"locations"`
}

type Location struct {
	Name        string     `json:"name,omitempty"`
	DisplayName string     `json:"display_name"`
	Type        string     `json:"type"`
	Rule        [][]string `json:"rule"`
}

// Load reads and validates a rules document from disk.
func Load(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	doc, err := Parse(raw)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse validates raw against the embedded schema before decoding it.
func Parse(raw []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Document{}, fmt.Errorf("rules: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return Document{}, fmt.Errorf("rules: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("rules: %w", err)
	}
	return doc, nil
}

// Translation is the per-objective key list derived from a document.
type Translation struct {
	// Keys maps external objective names to the capabilities of their first
	// rule alternative.
	Keys map[string][]string
	// Unmapped lists mechanic names with no capability, sorted and unique.
	Unmapped []string
	// Inherited lists B/C-side names that took the A-side keys.
	Inherited []string
}

// Trees builds the requirement tree for every translated objective.
func (t Translation) Trees() map[string]logic.Node {
	out := make(map[string]logic.Node, len(t.Keys))
	for name, keys := range t.Keys {
		out[name] = logic.FromKeys(keys)
	}
	return out
}

// ExternalName is the objective name a location maps to: strawberries carry
// their room, everything else is level plus display name.
func ExternalName(level, room string, loc Location) string {
	if loc.Type == "strawberry" {
		return fmt.Sprintf("%s - Room %s %s", level, room, loc.DisplayName)
	}
	return fmt.Sprintf("%s - %s", level, loc.DisplayName)
}

// Translate turns doc into key lists for the objectives cat knows about.
// Locations outside the catalog are skipped.
func Translate(doc Document, cat *catalog.Catalog) Translation {
	t := Translation{Keys: map[string][]string{}}
	unmapped := map[string]struct{}{}

	for _, lvl := range doc.Levels {
		for _, room := range lvl.Rooms {
			for _, reg := range room.Regions {
				for _, loc := range reg.Locations {
					name := ExternalName(lvl.DisplayName, room.Name, loc)
					if _, ok := cat.LookupName(name); !ok {
						continue
					}
					var rule []string
					if len(loc.Rule) > 0 {
						rule = loc.Rule[0]
					}
					keys := []string{}
					for _, mech := range rule {
						key, ok := MechanicKey(mech)
						if ok {
							keys = append(keys, key)
							continue
						}
						if !ignoredMechanic(mech) {
							unmapped[mech] = struct{}{}
						}
					}
					t.Keys[name] = keys
				}
			}
		}
	}

	aSide := make([]string, 0, len(t.Keys))
	for name := range t.Keys {
		if strings.Contains(name, " A - ") {
			aSide = append(aSide, name)
		}
	}
	sort.Strings(aSide)
	for _, name := range aSide {
		for _, side := range []string{" B - ", " C - "} {
			other := strings.Replace(name, " A - ", side, 1)
			if _, ok := t.Keys[other]; ok {
				continue
			}
			if _, ok := cat.LookupName(other); !ok {
				continue
			}
			t.Keys[other] = append([]string(nil), t.Keys[name]...)
			t.Inherited = append(t.Inherited, other)
		}
	}

	for m := range unmapped {
		t.Unmapped = append(t.Unmapped, m)
	}
	sort.Strings(t.Unmapped)
	return t
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

func normMechanic(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "")
}

var mechanicLookup = func() map[string]string {
	m := map[string]string{}
	for name, key := range logic.ItemNames {
		m[normMechanic(name)] = key
	}
	for _, key := range logic.Mechanics {
		m[strings.ToLower(key)] = key
	}
	for _, key := range logic.KeyItems {
		m[strings.ToLower(key)] = key
	}
	m[strings.ToLower(logic.NoCondition)] = logic.NoCondition
	return m
}()

// mechanicAliases covers names that do not normalize onto a table entry.
var mechanicAliases = map[string]string{
	"fireiceballs": "fireandiceballs",
}

// MechanicKey maps a level-data mechanic name onto a capability key.
func MechanicKey(name string) (string, bool) {
	n := normMechanic(name)
	if n == "" {
		return "", false
	}
	if k, ok := mechanicLookup[n]; ok {
		return k, true
	}
	if k, ok := mechanicLookup["has"+n]; ok {
		return k, true
	}
	if alias, ok := mechanicAliases[n]; ok {
		k, ok := mechanicLookup[alias]
		return k, ok
	}
	return "", false
}

// ignoredMechanic reports decorative requirements: gem counters, clutter and
// kevin blocks.
func ignoredMechanic(name string) bool {
	n := normMechanic(name)
	return strings.HasPrefix(n, "gem") || strings.HasSuffix(n, "clutter") || n == "kevinblocks"
}
