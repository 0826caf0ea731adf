package logic

import (
	"reflect"
	"testing"
)

func caps(unlocked ...string) Capabilities {
	c := NewCapabilities()
	for _, k := range unlocked {
		c[k] = true
	}
	return c
}

func TestEvaluateAndReportsMissing(t *testing.T) {
	r := Evaluate(And(Has("dashrefills"), Has("springs")), caps("dashrefills"))
	if r.Verdict != VerdictLocked {
		t.Fatalf("expected locked, got %s", r.Verdict)
	}
	if !reflect.DeepEqual(r.Missing, []string{"springs"}) {
		t.Fatalf("unexpected missing: %v", r.Missing)
	}
}

func TestEvaluateOrAnySatisfied(t *testing.T) {
	r := Evaluate(Or(Has("dashrefills"), Has("springs")), caps("dashrefills"))
	if r.Verdict != VerdictOpen {
		t.Fatalf("expected open, got %s", r.Verdict)
	}
	if len(r.Missing) != 0 {
		t.Fatalf("expected no missing, got %v", r.Missing)
	}
}

func TestEvaluateOrNoneSatisfiedConcatenates(t *testing.T) {
	r := Evaluate(Or(Has("dashrefills"), And(Has("springs"), Has("springs"))), caps())
	want := []string{"dashrefills", "springs", "springs"}
	if r.Verdict != VerdictLocked || !reflect.DeepEqual(r.Missing, want) {
		t.Fatalf("got %s %v", r.Verdict, r.Missing)
	}
}

func TestEvaluateSequenceBreak(t *testing.T) {
	tree := Or(Has("feathers"), Seq("dashrefills"))
	r := Evaluate(tree, caps())
	if r.Verdict != VerdictSequenceBreak {
		t.Fatalf("expected sequence, got %s", r.Verdict)
	}

	// A SEQ leaf off the failing path still marks the tree.
	tree = And(Has("feathers"), Or(Has("springs"), Seq("dashrefills")))
	r = Evaluate(tree, caps("springs"))
	if r.Verdict != VerdictSequenceBreak {
		t.Fatalf("expected sequence for seq elsewhere in tree, got %s", r.Verdict)
	}

	r = Evaluate(Seq("dashrefills"), caps("dashrefills"))
	if r.Verdict != VerdictOpen {
		t.Fatalf("satisfied seq atom should be open, got %s", r.Verdict)
	}
}

func TestEvaluateSentinelAndEmptyNodes(t *testing.T) {
	if r := Evaluate(Always(), caps()); r.Verdict != VerdictOpen {
		t.Fatalf("sentinel should be open, got %s", r.Verdict)
	}
	if r := Evaluate(And(), caps()); r.Verdict != VerdictOpen {
		t.Fatalf("empty and should be open, got %s", r.Verdict)
	}
	if r := Evaluate(Or(), caps()); r.Verdict != VerdictLocked {
		t.Fatalf("empty or should be locked, got %s", r.Verdict)
	}
}

func TestEvaluateUnknownKindIsLockedWithDiagnostic(t *testing.T) {
	tree, err := ParseTree([]byte(`{"type":"and","nodes":[{"type":"xor","nodes":[]},{"type":"has","key":"springs"}]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	r := Evaluate(tree, caps("springs"))
	if r.Verdict != VerdictLocked {
		t.Fatalf("expected locked, got %s", r.Verdict)
	}
	if len(r.Missing) != 1 || r.Missing[0] != InvalidPrefix+"xor" {
		t.Fatalf("unexpected missing: %v", r.Missing)
	}
	if err := tree.Validate(); err == nil {
		t.Fatalf("expected validate error for unknown kind")
	}
}

func TestMalformedNodeLocksTreeWithSequenceBreak(t *testing.T) {
	r := Evaluate(And(Seq("feathers"), Node{Kind: "xor"}), caps("feathers"))
	if r.Verdict != VerdictLocked {
		t.Fatalf("expected locked, got %s %v", r.Verdict, r.Missing)
	}
	if len(r.Missing) != 1 || r.Missing[0] != InvalidPrefix+"xor" {
		t.Fatalf("unexpected missing: %v", r.Missing)
	}
	if Reachable(r, true) {
		t.Fatalf("malformed tree reachable with sequence breaks allowed")
	}

	r = Evaluate(Or(Has("springs"), Seq("")), caps())
	if r.Verdict != VerdictLocked {
		t.Fatalf("keyless seq should lock, got %s", r.Verdict)
	}

	// A met sibling does not hide a malformed branch.
	r = Evaluate(Or(Has("springs"), Node{Kind: "xor"}), caps("springs"))
	if r.Verdict != VerdictLocked {
		t.Fatalf("expected locked with met sibling, got %s", r.Verdict)
	}
}

func TestEvaluateIsPure(t *testing.T) {
	c := caps("springs")
	before := c.Clone()
	tree := And(Has("springs"), Or(Has("feathers"), Seq("bird")))
	a := Evaluate(tree, c)
	b := Evaluate(tree, c)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("evaluation not deterministic: %v vs %v", a, b)
	}
	if !reflect.DeepEqual(before, c) {
		t.Fatalf("capabilities mutated")
	}
}

func TestReachable(t *testing.T) {
	seq := Result{Verdict: VerdictSequenceBreak}
	if Reachable(seq, false) || !Reachable(seq, true) {
		t.Fatalf("sequence reachability should follow the allow flag")
	}
	if !Reachable(Result{Verdict: VerdictOpen}, false) {
		t.Fatalf("open must be reachable")
	}
	if Reachable(Result{Verdict: VerdictLocked}, true) {
		t.Fatalf("locked must not be reachable")
	}
}
