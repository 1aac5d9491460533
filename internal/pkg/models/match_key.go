package models

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MatchupSeparator joins the two canonical names of a matchup id.
const MatchupSeparator = " vs "

// builtinAliases maps known "Last, First" orderings and misspellings seen on
// the event page to the canonical player name.
var builtinAliases = map[string]string{
	"Bautista Agut, Roberto":  "Roberto Bautista Agut",
	"Carreño Busta, Pablo":    "Pablo Carreño Busta",
	"Carreno Busta, Pablo":    "Pablo Carreño Busta",
	"Carreno":                 "Pablo Carreño Busta",
	"Carreño":                 "Pablo Carreño Busta",
	"Karatsev, Aslan":         "Aslan Karatsev",
	"Brooksby, Jenson":        "Jenson Brooksby",
	"Nishikori, Kei":          "Kei Nishikori",
	"Simon, Gilles":           "Gilles Simon",
	"Sock, Jack":              "Jack Sock",
	"Gasquet, Richard":        "Richard Gasquet",
	"Shapovalov, Denis":       "Denis Shapovalov",
	"Thiem, Dominic":          "Dominic Thiem",
	"Hurcackz":                "Hubert Hurkacz",
	"Hurkackz":                "Hubert Hurkacz",
	"Hurkacz, Hubert":         "Hubert Hurkacz",
	"Wawrinka, Stan":          "Stan Wawrinka",
	"Schwartzman, Diego":      "Diego Schwartzman",
	"Kyrgios, Nick":           "Nick Kyrgios",
	"Tiafoe, Frances":         "Frances Tiafoe",
	"Mussetti":                "Lorenzo Musetti",
	"Musetti, Lorenzo":        "Lorenzo Musetti",
	"Cilic, Marin":            "Marin Cilic",
	"De minaur":               "Alex de Minaur",
	"De Minaur, Alex":         "Alex de Minaur",
	"Raonic, Milos":           "Milos Raonic",
	"Lopez, Feliciano":        "Feliciano Lopez",
	"López, Feliciano":        "Feliciano Lopez",
	"Kokkinakis, Thanasi":     "Thanasi Kokkinakis",
	"Auger-Aliassime, Felix":  "Felix Auger-Aliassime",
	"Félix Auger Aliassime":   "Felix Auger-Aliassime",
	"Fognini, Fabio":          "Fabio Fognini",
	"Korda, Sebastian":        "Sebastian Korda",
}

// Normalizer canonicalizes raw competitor names.
//
// Lookups are exact on the trimmed input and on its folded form, so a name
// that only differs from an alias by accents or spacing still resolves. Alias
// targets are folded and resolved to a fixed point when the table is built,
// which keeps Normalize idempotent.
type Normalizer struct {
	aliases  map[string]string
	variants map[string][]string
}

// NewNormalizer builds a normalizer from the built-in alias table extended
// (and overridden) by extra.
func NewNormalizer(extra map[string]string) *Normalizer {
	raw := make(map[string]string, len(builtinAliases)+len(extra))
	for k, v := range builtinAliases {
		raw[k] = v
	}
	for k, v := range extra {
		raw[strings.TrimSpace(k)] = v
	}

	aliases := make(map[string]string, len(raw)*2)
	for k, v := range raw {
		if k == "" {
			continue
		}
		target := Fold(v)
		aliases[k] = target
		aliases[Fold(k)] = target
	}

	// Resolve chains like a -> b, b -> c so every target is terminal.
	for k, v := range aliases {
		seen := map[string]bool{k: true}
		for {
			next, ok := aliases[v]
			if !ok || next == v || seen[v] {
				break
			}
			seen[v] = true
			v = next
		}
		aliases[k] = v
	}

	variants := make(map[string][]string)
	for k, v := range aliases {
		if k == v {
			continue
		}
		variants[v] = append(variants[v], k)
	}
	for k := range variants {
		sort.Strings(variants[k])
	}

	return &Normalizer{aliases: aliases, variants: variants}
}

// Normalize returns the canonical form of raw.
func (n *Normalizer) Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if v, ok := n.aliases[s]; ok {
		return v
	}
	folded := Fold(s)
	if v, ok := n.aliases[folded]; ok {
		return v
	}
	return folded
}

// Variants returns every surface form known to resolve to canonical,
// canonical itself first.
func (n *Normalizer) Variants(canonical string) []string {
	c := n.Normalize(canonical)
	if c == "" {
		return nil
	}
	out := []string{c}
	for _, v := range n.variants[c] {
		f := Fold(v)
		if f != "" && f != c && !contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// MatchupID builds the order-independent id of the matchup between a and b.
func (n *Normalizer) MatchupID(a, b string) string {
	x, y := SortPair(n.Normalize(a), n.Normalize(b))
	return x + MatchupSeparator + y
}

// SortPair returns a and b in lexical order.
func SortPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Fold strips combining diacritics and collapses whitespace.
func Fold(s string) string {
	// transform.Chain keeps state, so every call gets its own chain.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(out), " ")
}

var defaultNormalizer = NewNormalizer(nil)

// Normalize canonicalizes raw with the built-in alias table.
func Normalize(raw string) string {
	return defaultNormalizer.Normalize(raw)
}

// MatchupID builds a matchup id with the built-in alias table.
func MatchupID(a, b string) string {
	return defaultNormalizer.MatchupID(a, b)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
