package stats

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Vodeneev/acewatch/internal/pkg/models"
)

// SequenceSeparator joins given names in the last-N sequence column.
const SequenceSeparator = " | "

// H2HRow is one line of the H2H table.
type H2HRow struct {
	MatchupID string
	WinsA     int
	WinsB     int
	Total     int
}

// Row renders the line in H2H column order.
func (r H2HRow) Row() []string {
	return []string{r.MatchupID, strconv.Itoa(r.WinsA), strconv.Itoa(r.WinsB), strconv.Itoa(r.Total)}
}

// StreakRow is one line of the Streaks table.
type StreakRow struct {
	MatchupID  string
	Owner      string
	Length     int
	LastN      int
	LastNWinsA int
	LastNWinsB int
	Sequence   string
}

// Row renders the line in Streaks column order.
func (r StreakRow) Row() []string {
	return []string{
		r.MatchupID,
		r.Owner,
		strconv.Itoa(r.Length),
		strconv.Itoa(r.LastN),
		strconv.Itoa(r.LastNWinsA),
		strconv.Itoa(r.LastNWinsB),
		r.Sequence,
	}
}

// Tables is the output of one full recompute.
type Tables struct {
	H2H     []H2HRow
	Streaks []StreakRow
	// Current is the streak state per matchup, the same values the
	// incremental tracker converges to.
	Current map[string]models.StreakState
	// Skipped counts log rows that could not be used.
	Skipped int
}

// H2HRows renders the H2H table body.
func (t Tables) H2HRows() [][]string {
	out := make([][]string, 0, len(t.H2H))
	for _, r := range t.H2H {
		out = append(out, r.Row())
	}
	return out
}

// StreakRows renders the Streaks table body.
func (t Tables) StreakRows() [][]string {
	out := make([][]string, 0, len(t.Streaks))
	for _, r := range t.Streaks {
		out = append(out, r.Row())
	}
	return out
}

type event struct {
	ts     time.Time
	a, b   string
	winner string
	key    string
}

// Aggregator recomputes head-to-head and streak tables from the full log.
type Aggregator struct {
	names *models.Normalizer
	lastN int
}

// NewAggregator builds an aggregator with a last-N window of lastN events.
func NewAggregator(names *models.Normalizer, lastN int) *Aggregator {
	if names == nil {
		names = models.NewNormalizer(nil)
	}
	if lastN < 1 {
		lastN = 1
	}
	return &Aggregator{names: names, lastN: lastN}
}

// Recompute is a pure function of the multiset of Results rows: input order
// does not matter, only each event's own timestamp (ties break on dedupe key
// then winner). Rows without a matchup id, a winner, or a parseable
// timestamp are skipped.
func (g *Aggregator) Recompute(rows [][]string) Tables {
	out := Tables{Current: make(map[string]models.StreakState)}
	by := make(map[string][]event)

	for _, row := range rows {
		r, err := models.ResultFromRow(row)
		if err != nil || r.MatchupID == "" || r.Winner == "" {
			out.Skipped++
			continue
		}
		by[r.MatchupID] = append(by[r.MatchupID], event{
			ts:     r.Timestamp,
			a:      g.names.Normalize(r.PlayerA),
			b:      g.names.Normalize(r.PlayerB),
			winner: g.names.Normalize(r.Winner),
			key:    r.DedupeKey,
		})
	}

	ids := make([]string, 0, len(by))
	for id := range by {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		events := by[id]
		sortEvents(events)

		sideA, sideB := models.SortPair(events[0].a, events[0].b)

		var winsA, winsB int
		var st models.StreakState
		for _, e := range events {
			switch e.winner {
			case sideA:
				winsA++
			case sideB:
				winsB++
			}
			st = Fold(st, e.winner, e.ts)
		}

		start := len(events) - g.lastN
		if start < 0 {
			start = 0
		}
		window := events[start:]

		var lastA, lastB int
		seq := make([]string, 0, len(window))
		for i := len(window) - 1; i >= 0; i-- {
			e := window[i]
			switch e.winner {
			case sideA:
				lastA++
			case sideB:
				lastB++
			}
			seq = append(seq, givenName(e.winner))
		}

		out.H2H = append(out.H2H, H2HRow{MatchupID: id, WinsA: winsA, WinsB: winsB, Total: winsA + winsB})
		out.Streaks = append(out.Streaks, StreakRow{
			MatchupID:  id,
			Owner:      st.Owner,
			Length:     st.Length,
			LastN:      g.lastN,
			LastNWinsA: lastA,
			LastNWinsB: lastB,
			Sequence:   strings.Join(seq, SequenceSeparator),
		})
		out.Current[id] = st
	}

	return out
}

func sortEvents(events []event) {
	sort.SliceStable(events, func(i, j int) bool {
		x, y := events[i], events[j]
		if !x.ts.Equal(y.ts) {
			return x.ts.Before(y.ts)
		}
		if x.key != y.key {
			return x.key < y.key
		}
		if x.winner != y.winner {
			return x.winner < y.winner
		}
		if x.a != y.a {
			return x.a < y.a
		}
		return x.b < y.b
	})
}

func givenName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return ""
}
