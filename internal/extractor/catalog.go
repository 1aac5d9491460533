package extractor

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Vodeneev/acewatch/internal/pkg/models"
)

// nameMatcher finds any surface form of one canonical name as a whole word.
type nameMatcher struct {
	name string
	re   *regexp.Regexp
}

func newNameMatcher(names *models.Normalizer, canonical string) *nameMatcher {
	variants := names.Variants(canonical)
	// Longer forms first so "Carreno Busta, Pablo" wins over "Carreno".
	sort.SliceStable(variants, func(i, j int) bool { return len(variants[i]) > len(variants[j]) })

	quoted := make([]string, 0, len(variants))
	for _, v := range variants {
		quoted = append(quoted, regexp.QuoteMeta(v))
	}
	pattern := `(?i)(?:^|[^\p{L}\p{N}])(` + strings.Join(quoted, "|") + `)(?:$|[^\p{L}\p{N}])`
	return &nameMatcher{name: names.Normalize(canonical), re: regexp.MustCompile(pattern)}
}

// index returns the position of the first occurrence in folded text, or -1.
func (m *nameMatcher) index(folded string) int {
	loc := m.re.FindStringSubmatchIndex(folded)
	if loc == nil {
		return -1
	}
	return loc[2]
}

// Pair is a known matchup found in a region, oriented by the order the two
// names first appear: A is whichever name comes first.
type Pair struct {
	ID string
	A  string
	B  string

	ma, mb *nameMatcher
}

// Side resolves free text (a marker label, an odds button caption) to one
// side of the pair. It returns "" when neither or both names appear.
func (p Pair) Side(text string) string {
	inA, inB := p.presence(text)
	switch {
	case inA && !inB:
		return p.A
	case inB && !inA:
		return p.B
	}
	return ""
}

func (p Pair) presence(text string) (inA, inB bool) {
	if p.ma == nil || p.mb == nil {
		return false, false
	}
	folded := models.Fold(text)
	return p.ma.index(folded) >= 0, p.mb.index(folded) >= 0
}

// Other returns the opponent of name within the pair.
func (p Pair) Other(name string) string {
	if name == p.A {
		return p.B
	}
	return p.A
}

type catalogEntry struct {
	id     string
	ma, mb *nameMatcher
}

// Catalog is the static list of tracked matchups.
type Catalog struct {
	names   *models.Normalizer
	entries []catalogEntry
}

// NewCatalog compiles matchers for every configured matchup. Duplicate
// matchups (same canonical id) keep their first position.
func NewCatalog(names *models.Normalizer, matchups []models.Matchup) *Catalog {
	if names == nil {
		names = models.NewNormalizer(nil)
	}
	c := &Catalog{names: names}
	seen := make(map[string]bool, len(matchups))
	for _, m := range matchups {
		a, b := names.Normalize(m.A), names.Normalize(m.B)
		if a == "" || b == "" || a == b {
			continue
		}
		id := names.MatchupID(a, b)
		if seen[id] {
			continue
		}
		seen[id] = true
		c.entries = append(c.entries, catalogEntry{
			id: id,
			ma: newNameMatcher(names, a),
			mb: newNameMatcher(names, b),
		})
	}
	return c
}

// Len is the number of distinct matchups.
func (c *Catalog) Len() int { return len(c.entries) }

// IDs lists the canonical matchup ids in catalog order.
func (c *Catalog) IDs() []string {
	out := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.id)
	}
	return out
}

// Names returns the normalizer shared by the catalog.
func (c *Catalog) Names() *models.Normalizer { return c.names }

// FindPair returns the first catalog matchup whose two names both appear in
// text.
func (c *Catalog) FindPair(text string) (Pair, bool) {
	folded := models.Fold(text)
	for _, e := range c.entries {
		ia := e.ma.index(folded)
		if ia < 0 {
			continue
		}
		ib := e.mb.index(folded)
		if ib < 0 {
			continue
		}
		if ia <= ib {
			return Pair{ID: e.id, A: e.ma.name, B: e.mb.name, ma: e.ma, mb: e.mb}, true
		}
		return Pair{ID: e.id, A: e.mb.name, B: e.ma.name, ma: e.mb, mb: e.ma}, true
	}
	return Pair{}, false
}
