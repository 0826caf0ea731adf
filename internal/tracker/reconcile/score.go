package reconcile

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"celestetracker.ai/internal/tracker/catalog"
)

// Match scoring. Exact and contains are exclusive; the bonuses add on top.
const (
	ScoreExact    = 100
	ScoreContains = 80
	BonusChapter  = 20
	BonusType     = 20
	BonusSide     = 10
	BonusNoSide   = 5
	BonusRoom     = 15
	BonusWord     = 2

	// Threshold is the score a candidate must strictly exceed to be assigned.
	// Ties keep the earlier catalog entry.
	Threshold = 30
)

var (
	nonWord      = regexp.MustCompile(`[^a-z0-9\s]+`)
	spaces       = regexp.MustCompile(`\s+`)
	dashSpacing  = regexp.MustCompile(`\s+-\s+`)
	roomSpacing  = regexp.MustCompile(`Room\s+`)
	gemNumber    = regexp.MustCompile(`Gem (\d+)`)
	sideAnyCase  = regexp.MustCompile(`(?i)([ABC])\s+-\s+`)
	ridgeRoomPfx = []string{
		"Golden Ridge A - Room a-",
		"Golden Ridge A - Room b-",
		"Golden Ridge A - Room c-",
		"Golden Ridge A - Room d-",
	}
)

// Normalize case-folds, turns punctuation into spaces and collapses runs.
func Normalize(s string) string {
	s = cases.Fold().String(s)
	s = nonWord.ReplaceAllString(s, " ")
	s = spaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Canonicalize rewrites known naming variations before normalization.
func Canonicalize(name string) string {
	out := name
	for _, p := range ridgeRoomPfx {
		if strings.Contains(name, p) {
			out = strings.Replace(name, p, "Golden Ridge A - ", 1)
		}
	}
	if strings.Contains(name, "The Summit A - Gem") {
		if m := gemNumber.FindStringSubmatch(name); m != nil {
			out = "The Summit A - Gem " + m[1]
		}
	}
	out = roomSpacing.ReplaceAllString(out, "Room ")
	out = dashSpacing.ReplaceAllString(out, " - ")
	return out
}

var normalizedChapters = []struct {
	token   string
	chapter int
}{
	{"prologue", 0},
	{"forsaken city", 1},
	{"old site", 2},
	{"celestial resort", 3},
	{"golden ridge", 4},
	{"mirror temple", 5},
	{"reflection", 6},
	{"summit", 7},
	{"epilogue", 8},
	{"core", 9},
	{"farewell", 10},
}

func chapterOfNormalized(norm string) int {
	for _, c := range normalizedChapters {
		if strings.Contains(norm, c.token) {
			return c.chapter
		}
	}
	return -1
}

// candidate is a name with every token the scorer compares precomputed.
type candidate struct {
	canonical string
	norm      string
	words     []string
	chapter   int
	typ       string
	side      string
	room      string
}

func newLocal(name string) candidate {
	c := newCandidate(name)
	c.side = catalog.SideOf(name)
	return c
}

func newServer(name string) candidate {
	c := newCandidate(name)
	if m := sideAnyCase.FindStringSubmatch(c.canonical); m != nil {
		c.side = strings.ToUpper(m[1])
	}
	return c
}

func newCandidate(name string) candidate {
	canon := Canonicalize(name)
	norm := Normalize(canon)
	return candidate{
		canonical: canon,
		norm:      norm,
		words:     strings.Fields(norm),
		chapter:   chapterOfNormalized(norm),
		typ:       catalog.CollectibleType(canon),
		room:      catalog.RoomOf(canon),
	}
}

// Score rates how likely a local catalog name and a server location name
// denote the same objective.
func Score(localName, serverName string) int {
	return score(newLocal(localName), newServer(serverName))
}

func score(local, server candidate) int {
	s := 0
	switch {
	case local.norm == server.norm:
		s = ScoreExact
	case strings.Contains(local.norm, server.norm), strings.Contains(server.norm, local.norm):
		s = ScoreContains
	}
	if local.chapter >= 0 && local.chapter == server.chapter {
		s += BonusChapter
	}
	if local.typ != "" && local.typ == server.typ {
		s += BonusType
	}
	switch {
	case local.side != "" && local.side == server.side:
		s += BonusSide
	case local.side == "" && server.side == "":
		s += BonusNoSide
	}
	if local.room != "" && local.room == server.room {
		s += BonusRoom
	}
	localWords := make(map[string]struct{}, len(local.words))
	for _, w := range local.words {
		localWords[w] = struct{}{}
	}
	for _, w := range server.words {
		if _, ok := localWords[w]; ok {
			s += BonusWord
		}
	}
	return s
}
