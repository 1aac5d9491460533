package storage

import (
	"context"
)

// Table describes one named tabular range. Column order is the wire
// contract shared by every sink.
type Table struct {
	Name    string
	Columns []string
}

// Range is the A1 range covering all columns of the table.
func (t Table) Range() string {
	return t.Name + "!A:" + string(rune('A'+len(t.Columns)-1))
}

var (
	Results = Table{Name: "Results", Columns: []string{
		"timestamp", "matchup_id", "player_a", "player_b", "winner", "loser", "win_type", "source_url", "dedupe_key",
	}}
	H2H = Table{Name: "H2H", Columns: []string{
		"matchup_id", "wins_playerA", "wins_playerB", "total",
	}}
	Streaks = Table{Name: "Streaks", Columns: []string{
		"matchup_id", "current_streak_owner", "current_streak_len", "last_N",
		"last_N_wins_ownerA", "last_N_wins_ownerB", "last_N_sequence",
	}}
	Alerts = Table{Name: "Alerts", Columns: []string{
		"timestamp", "matchup_id", "winner", "streak_len", "rule_min_streak", "note",
	}}
)

// Tables lists every table the service writes.
var Tables = []Table{Results, H2H, Streaks, Alerts}

// Sink is the tabular persistence used for the results log and the derived
// tables. Rows never include the header.
type Sink interface {
	// Read returns every data row of the table.
	Read(ctx context.Context, t Table) ([][]string, error)

	// ClearAndWrite replaces the table body with rows.
	ClearAndWrite(ctx context.Context, t Table, rows [][]string) error

	// Append adds one row at the end of the table.
	Append(ctx context.Context, t Table, row []string) error

	// EnsureHeaders prepares every table (header row, schema) if missing.
	EnsureHeaders(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}

// fit pads or trims row to the table width.
func fit(t Table, row []string) []string {
	out := make([]string, len(t.Columns))
	copy(out, row)
	return out
}
