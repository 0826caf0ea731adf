package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"celestetracker.ai/internal/tracker/logic"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// Catalog is the ordered, immutable objective list.
type Catalog struct {
	Entries []Entry

	byKey  map[string]int
	byName map[string]int
}

type catalogFile struct {
	Objectives []fileEntry `yaml:"objectives"`
}

type fileEntry struct {
	Name string      `yaml:"name"`
	Tree *logic.Node `yaml:"tree,omitempty"`
}

func (e *fileEntry) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		e.Name = n.Value
		return nil
	}
	type plain fileEntry
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*e = fileEntry(p)
	return nil
}

// Default returns the catalog shipped with the tracker.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from a YAML or JSON file.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Parse(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	entries := make([]Entry, 0, len(f.Objectives))
	for i, fe := range f.Objectives {
		name := strings.TrimSpace(fe.Name)
		if name == "" {
			return nil, fmt.Errorf("catalog: objective %d has no name", i)
		}
		if fe.Tree != nil {
			if err := fe.Tree.Validate(); err != nil {
				return nil, fmt.Errorf("catalog: %s: %w", name, err)
			}
		}
		entries = append(entries, NewEntry(name, fe.Tree))
	}
	return New(entries)
}

// New indexes entries, rejecting duplicate keys.
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		Entries: entries,
		byKey:   make(map[string]int, len(entries)),
		byName:  make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		if e.Key == "" {
			return nil, fmt.Errorf("catalog: entry %d has empty key", i)
		}
		if _, dup := c.byKey[e.Key]; dup {
			return nil, fmt.Errorf("catalog: duplicate objective %q", e.Key)
		}
		c.byKey[e.Key] = i
		c.byName[e.ExternalName] = i
	}
	return c, nil
}

func (c *Catalog) Len() int { return len(c.Entries) }

func (c *Catalog) Lookup(key string) (Entry, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Entry{}, false
	}
	return c.Entries[i], true
}

func (c *Catalog) LookupName(name string) (Entry, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Entry{}, false
	}
	return c.Entries[i], true
}

// WithTrees returns a copy with trees replaced for the given external names.
// Names not in the catalog are returned as unknown.
func (c *Catalog) WithTrees(trees map[string]logic.Node) (*Catalog, []string) {
	entries := make([]Entry, len(c.Entries))
	copy(entries, c.Entries)
	var unknown []string
	for name, tree := range trees {
		i, ok := c.byName[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		entries[i].Tree = tree
	}
	out := &Catalog{Entries: entries, byKey: c.byKey, byName: c.byName}
	return out, unknown
}
