package session

import (
	"fmt"
	"strings"

	"celestetracker.ai/internal/tracker/catalog"
	"celestetracker.ai/internal/tracker/logic"
)

// Recompute refreshes inclusion and reachability for every objective. Step
// calls it after capability, config or strawberry changes; owners call it
// after anything else that feeds reachability.
func Recompute(s State) State {
	next := s.Clone()
	next.recompute()
	return next
}

// RecomputeObjective refreshes a single objective.
func RecomputeObjective(s State, key string) (State, bool) {
	i, ok := s.index[key]
	if !ok {
		return s, false
	}
	next := s.Clone()
	next.evaluate(&next.Objectives[i])
	return next, true
}

func (s *State) recompute() {
	for i := range s.Objectives {
		s.evaluate(&s.Objectives[i])
	}
}

func (s *State) evaluate(o *Objective) {
	if o.IsCollectible() && !s.Config.Includes(o.Entry) {
		o.Included = false
		o.Reachable = false
		o.Evaluation = logic.Result{Verdict: logic.VerdictLocked, Missing: []string{}}
		return
	}
	o.Included = true

	if msg, locked := s.goalLocked(o.Entry); locked {
		o.Reachable = false
		o.Evaluation = logic.Result{Verdict: logic.VerdictLocked, Missing: []string{msg}}
		return
	}

	r := logic.Evaluate(o.Tree, s.Caps)
	o.Evaluation = r
	o.Reachable = logic.Reachable(r, s.Options.AllowSequenceBreaks)
}

// goalLocked applies the goal area lock: objectives in the goal chapter stay
// locked until enough strawberries are in.
func (s *State) goalLocked(e catalog.Entry) (string, bool) {
	c := s.Config
	if !c.LockGoalArea || c.StrawberriesRequired <= 0 {
		return "", false
	}
	gc, ok := GoalChapter(c.Goal)
	if !ok || e.Chapter != gc || s.Strawberries >= c.StrawberriesRequired {
		return "", false
	}
	return fmt.Sprintf("Requires %d strawberries (have %d)", c.StrawberriesRequired, s.Strawberries), true
}

// Includes reports whether a collectible objective is part of this slot.
func (c SessionConfig) Includes(e catalog.Entry) bool {
	if gc, ok := GoalChapter(c.Goal); ok && e.Chapter > gc {
		return false
	}
	switch e.Side() {
	case "B":
		if !c.IncludeBSides {
			return false
		}
	case "C":
		if !c.IncludeCSides {
			return false
		}
	}
	if !c.IncludeGoldens && strings.Contains(strings.ToLower(e.DisplayName), "golden strawberry") {
		return false
	}
	if !c.IncludeCore && e.Chapter == 9 {
		return false
	}
	if !c.IncludeFarewell && e.Chapter == 10 {
		return false
	}
	if !c.IncludeCheckpoints && e.Kind == catalog.KindCheckpoint {
		return false
	}
	return true
}
