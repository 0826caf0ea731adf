package logic

type Verdict string

const (
	VerdictOpen          Verdict = "open"
	VerdictSequenceBreak Verdict = "sequence"
	VerdictLocked        Verdict = "locked"
)

// InvalidPrefix marks diagnostic atoms produced for malformed nodes.
const InvalidPrefix = "invalid:"

type Result struct {
	Verdict Verdict  `json:"verdict"`
	Missing []string `json:"missing"`
}

// Evaluate decides whether tree is satisfied by caps.
//
// Evaluate is pure: it reads caps and never mutates it. Missing lists every
// unmet atom in tree order, duplicates included. A malformed node anywhere in
// tree locks it, even when the tree also holds a sequence break.
func Evaluate(tree Node, caps Capabilities) Result {
	met, missing, invalid := evalNode(tree, caps)
	if missing == nil {
		missing = []string{}
	}
	if met && !invalid {
		return Result{Verdict: VerdictOpen, Missing: []string{}}
	}
	if !invalid && tree.HasSequenceBreak() {
		return Result{Verdict: VerdictSequenceBreak, Missing: missing}
	}
	return Result{Verdict: VerdictLocked, Missing: missing}
}

// evalNode reports whether n is met, its unmet atoms, and whether any node
// under n is malformed.
func evalNode(n Node, caps Capabilities) (bool, []string, bool) {
	switch n.Kind {
	case KindHas, KindSeq:
		if n.Key == "" {
			return false, []string{InvalidPrefix + "empty key"}, true
		}
		if n.Key == NoCondition {
			return true, nil, false
		}
		if caps[n.Key] {
			return true, nil, false
		}
		return false, []string{n.Key}, false

	case KindAnd:
		all, invalid := true, false
		var missing []string
		for _, c := range n.Nodes {
			ok, m, bad := evalNode(c, caps)
			if !ok {
				all = false
			}
			invalid = invalid || bad
			missing = append(missing, m...)
		}
		return all, missing, invalid

	case KindOr:
		anyMet, invalid := false, false
		var missing []string
		for _, c := range n.Nodes {
			ok, m, bad := evalNode(c, caps)
			if ok {
				anyMet = true
			}
			invalid = invalid || bad
			missing = append(missing, m...)
		}
		if anyMet && !invalid {
			return true, nil, false
		}
		return false, missing, invalid

	default:
		return false, []string{InvalidPrefix + string(n.Kind)}, true
	}
}

// Reachable maps a result to the reachable flag. Sequence breaks count only
// when the player allows them.
func Reachable(r Result, allowSequenceBreaks bool) bool {
	switch r.Verdict {
	case VerdictOpen:
		return true
	case VerdictSequenceBreak:
		return allowSequenceBreaks
	default:
		return false
	}
}
