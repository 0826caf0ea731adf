package logic

import (
	"encoding/json"
	"fmt"
)

type Kind string

const (
	KindAnd Kind = "and"
	KindOr  Kind = "or"
	KindHas Kind = "has"
	KindSeq Kind = "seq"
)

// Node is one requirement tree node. AND/OR nodes carry Nodes, HAS/SEQ nodes
// carry Key. Trees come from user-edited storage, so Kind may hold anything;
// Evaluate treats unknown kinds as locked.
type Node struct {
	Kind  Kind   `json:"type" yaml:"type"`
	Nodes []Node `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Key   string `json:"key,omitempty" yaml:"key,omitempty"`
}

func And(nodes ...Node) Node { return Node{Kind: KindAnd, Nodes: nodes} }
func Or(nodes ...Node) Node  { return Node{Kind: KindOr, Nodes: nodes} }
func Has(key string) Node    { return Node{Kind: KindHas, Key: key} }
func Seq(key string) Node    { return Node{Kind: KindSeq, Key: key} }

// Always is the trivial tree every objective starts with.
func Always() Node { return Has(NoCondition) }

// HasSequenceBreak reports whether a SEQ leaf appears anywhere in the tree.
func (n Node) HasSequenceBreak() bool {
	switch n.Kind {
	case KindSeq:
		return true
	case KindAnd, KindOr:
		for _, c := range n.Nodes {
			if c.HasSequenceBreak() {
				return true
			}
		}
	}
	return false
}

// Keys returns every leaf key in depth-first order.
func (n Node) Keys() []string {
	var out []string
	var walk func(Node)
	walk = func(x Node) {
		switch x.Kind {
		case KindHas, KindSeq:
			out = append(out, x.Key)
		case KindAnd, KindOr:
			for _, c := range x.Nodes {
				walk(c)
			}
		}
	}
	walk(n)
	return out
}

// Validate checks node kinds and that every leaf names a known capability.
func (n Node) Validate() error {
	switch n.Kind {
	case KindHas, KindSeq:
		if n.Key == "" {
			return fmt.Errorf("%s node without key", n.Kind)
		}
		if !IsKnown(n.Key) {
			return fmt.Errorf("unknown capability %q", n.Key)
		}
		return nil
	case KindAnd, KindOr:
		for i, c := range n.Nodes {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("%s[%d]: %w", n.Kind, i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown node type %q", n.Kind)
	}
}

// ParseTree decodes a stored tree. It only fails on malformed JSON; unknown
// node kinds survive decoding and evaluate as locked.
func ParseTree(b []byte) (Node, error) {
	var n Node
	if err := json.Unmarshal(b, &n); err != nil {
		return Node{}, fmt.Errorf("parse tree: %w", err)
	}
	return n, nil
}

// FromKeys builds the default tree for a flat list of required keys.
func FromKeys(keys []string) Node {
	switch len(keys) {
	case 0:
		return Always()
	case 1:
		return Has(keys[0])
	default:
		nodes := make([]Node, 0, len(keys))
		for _, k := range keys {
			nodes = append(nodes, Has(k))
		}
		return And(nodes...)
	}
}
