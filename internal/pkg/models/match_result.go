package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AnyPlayer in an alert rule matches whichever player owns the streak.
const AnyPlayer = "ANY"

// TimestampLayout is the wire format of every timestamp column.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// MatchResult is one finalized outcome. It is never mutated once appended
// to the Results log.
type MatchResult struct {
	Timestamp  time.Time `json:"timestamp"`
	MatchupID  string    `json:"matchup_id"`
	PlayerA    string    `json:"player_a"`
	PlayerB    string    `json:"player_b"`
	Winner     string    `json:"winner"`
	Loser      string    `json:"loser"`
	ScoreLabel string    `json:"win_type"`
	SourceURL  string    `json:"source_url"`
	DedupeKey  string    `json:"dedupe_key"`
}

// DedupeKey builds the per-day key that blocks re-ingestion of one result.
func DedupeKey(matchupID, winner, scoreLabel string, ts time.Time) string {
	return matchupID + "|" + winner + "|" + scoreLabel + "|" + CalendarDay(ts)
}

// CalendarDay is the UTC date of ts.
func CalendarDay(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}

// FormatTimestamp renders ts in TimestampLayout (UTC).
func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Format(TimestampLayout)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"1/2/2006 15:04:05",
}

// ParseTimestamp accepts the wire layout plus the forms a spreadsheet may
// hand back after USER_ENTERED reformatting.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Row renders the result in Results column order.
func (r MatchResult) Row() []string {
	return []string{
		FormatTimestamp(r.Timestamp),
		r.MatchupID,
		r.PlayerA,
		r.PlayerB,
		r.Winner,
		r.Loser,
		r.ScoreLabel,
		r.SourceURL,
		r.DedupeKey,
	}
}

// ResultFromRow parses a Results row. Short rows are padded so a row left
// half-written by a crashed cycle still parses as far as it goes.
func ResultFromRow(row []string) (MatchResult, error) {
	cells := make([]string, 9)
	copy(cells, row)
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}

	ts, err := ParseTimestamp(cells[0])
	if err != nil {
		return MatchResult{}, err
	}
	return MatchResult{
		Timestamp:  ts,
		MatchupID:  cells[1],
		PlayerA:    cells[2],
		PlayerB:    cells[3],
		Winner:     cells[4],
		Loser:      cells[5],
		ScoreLabel: cells[6],
		SourceURL:  cells[7],
		DedupeKey:  cells[8],
	}, nil
}

// StreakState is the current run of consecutive wins in one matchup.
type StreakState struct {
	Owner         string    `json:"owner"`
	Length        int       `json:"len"`
	LastTimestamp time.Time `json:"last_ts"`
}

// AlertRule fires when Player (or anyone, for AnyPlayer) holds a streak of at
// least MinStreak in MatchupID.
type AlertRule struct {
	MatchupID string `json:"matchup" yaml:"matchup" validate:"required"`
	Player    string `json:"player" yaml:"player" validate:"required"`
	MinStreak int    `json:"min_streak" yaml:"min_streak" validate:"gte=0"`
}

// AlertEvent is the persisted record of one dispatched alert.
type AlertEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	MatchupID     string    `json:"matchup_id"`
	Winner        string    `json:"winner"`
	StreakLen     int       `json:"streak_len"`
	RuleMinStreak int       `json:"rule_min_streak"`
	Note          string    `json:"note"`
}

// Row renders the event in Alerts column order.
func (e AlertEvent) Row() []string {
	return []string{
		FormatTimestamp(e.Timestamp),
		e.MatchupID,
		e.Winner,
		strconv.Itoa(e.StreakLen),
		strconv.Itoa(e.RuleMinStreak),
		e.Note,
	}
}

// Matchup is a catalog entry: the two raw names as configured.
type Matchup struct {
	A string `json:"a" yaml:"a" validate:"required"`
	B string `json:"b" yaml:"b" validate:"required"`
}
