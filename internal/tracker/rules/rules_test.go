package rules

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"celestetracker.ai/internal/tracker/catalog"
	"celestetracker.ai/internal/tracker/logic"
)

const testDoc = `{
  "levels": [
    {"display_name": "Forsaken City A", "rooms": [
      {"name": "2", "regions": [{"locations": [
        {"display_name": "Strawberry", "type": "strawberry", "rule": [["Dash Refills", "Springs"], ["Feathers"]]}
      ]}]}
    ]},
    {"display_name": "Old Site A", "rooms": [
      {"name": "x", "regions": [{"locations": [
        {"display_name": "Cassette", "type": "cassette",
         "rule": [["Front Door Key", "Gem 1", "Wood Clutter", "Kevin Blocks", "Fire Ice Balls", "Wings"]]},
        {"display_name": "Not Tracked", "type": "binoculars", "rule": [["Bird"]]}
      ]}]}
    ]},
    {"display_name": "Old Site B", "rooms": [
      {"name": "y", "regions": [{"locations": [
        {"display_name": "Cassette", "type": "cassette", "rule": [["dream blocks"]]}
      ]}]}
    ]}
  ]
}`

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(`objectives:
  - "Forsaken City A - Room 2 Strawberry"
  - "Forsaken City B - Room 2 Strawberry"
  - "Old Site A - Cassette"
  - "Old Site B - Cassette"
  - "Old Site C - Cassette"
`))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func TestTranslate(t *testing.T) {
	doc, err := Parse([]byte(testDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tr := Translate(doc, testCatalog(t))

	want := map[string][]string{
		"Forsaken City A - Room 2 Strawberry": {"dashrefills", "springs"},
		"Forsaken City B - Room 2 Strawberry": {"dashrefills", "springs"},
		"Old Site A - Cassette":               {"hasFrontDoorKey", "fireandiceballs"},
		"Old Site B - Cassette":               {"dreamblocks"},
		"Old Site C - Cassette":               {"hasFrontDoorKey", "fireandiceballs"},
	}
	if !reflect.DeepEqual(tr.Keys, want) {
		t.Fatalf("keys:\n got %v\nwant %v", tr.Keys, want)
	}
	if !reflect.DeepEqual(tr.Unmapped, []string{"Wings"}) {
		t.Fatalf("unmapped: %v", tr.Unmapped)
	}
	if !reflect.DeepEqual(tr.Inherited, []string{"Forsaken City B - Room 2 Strawberry", "Old Site C - Cassette"}) {
		t.Fatalf("inherited: %v", tr.Inherited)
	}

	trees := tr.Trees()
	got := trees["Old Site B - Cassette"]
	if got.Kind != logic.KindHas || got.Key != "dreamblocks" {
		t.Fatalf("single key tree: %#v", got)
	}
	and := trees["Old Site A - Cassette"]
	if and.Kind != logic.KindAnd || len(and.Nodes) != 2 {
		t.Fatalf("multi key tree: %#v", and)
	}
}

func TestTranslateEmptyRuleIsAlwaysOpen(t *testing.T) {
	doc := Document{Levels: []Level{{
		DisplayName: "Old Site A",
		Rooms: []Room{{Name: "x", Regions: []Region{{Locations: []Location{
			{DisplayName: "Cassette", Type: "cassette"},
		}}}}},
	}}}
	tr := Translate(doc, testCatalog(t))
	tree := tr.Trees()["Old Site A - Cassette"]
	if tree.Kind != logic.KindHas || tree.Key != logic.NoCondition {
		t.Fatalf("expected trivial tree, got %#v", tree)
	}
}

func TestMechanicKey(t *testing.T) {
	cases := map[string]string{
		"Dash Refills":          "dashrefills",
		"dash-refills":          "dashrefills",
		"Search Key 2":          "hasSearchKey2",
		"hasCentralChamberKey1": "hasCentralChamberKey1",
		"FireIceBalls":          "fireandiceballs",
		"No Condition":          logic.NoCondition,
	}
	for in, want := range cases {
		got, ok := MechanicKey(in)
		if !ok || got != want {
			t.Fatalf("MechanicKey(%q)=%q,%v want %q", in, got, ok, want)
		}
	}
	if _, ok := MechanicKey("Gem 3"); ok {
		t.Fatalf("gem counters should not map")
	}
	if _, ok := MechanicKey(""); ok {
		t.Fatalf("empty name should not map")
	}
}

func TestParseRejectsInvalidDocument(t *testing.T) {
	bad := []string{
		`{"levels": "nope"}`,
		`{"levels": [{"rooms": []}]}`,
		`{"levels": [{"display_name": "X", "rooms": [{"name": "1", "regions": [{"locations": [{"display_name": "S", "type": "strawberry", "rule": [[1]]}]}]}]}]}`,
		`not json`,
	}
	for _, b := range bad {
		if _, err := Parse([]byte(b)); err == nil {
			t.Fatalf("expected error for %s", b)
		}
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "rules.json")
	if err := os.WriteFile(p, []byte(`{"levels": []}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cat := testCatalog(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan Translation, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, p, cat, nil, func(tr Translation) {
			if len(tr.Keys) == 0 {
				return
			}
			select {
			case got <- tr:
			default:
			}
		})
	}()

	// The watcher registers asynchronously; keep rewriting until it reports.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case tr := <-got:
			if _, ok := tr.Keys["Old Site B - Cassette"]; !ok {
				t.Fatalf("unexpected translation: %v", tr.Keys)
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("watch: %v", err)
			}
			return
		case <-tick.C:
			if err := os.WriteFile(p, []byte(testDoc), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
		case <-deadline:
			t.Fatalf("no reload observed")
		}
	}
}
