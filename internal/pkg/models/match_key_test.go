package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  Hubert   Hurkacz ", "Hubert Hurkacz"},
		{"Hurkacz, Hubert", "Hubert Hurkacz"},
		{"Hurcackz", "Hubert Hurkacz"},
		{"Carreño", "Pablo Carreno Busta"},
		{"Carreno Busta, Pablo", "Pablo Carreno Busta"},
		{"Pablo Carreño Busta", "Pablo Carreno Busta"},
		{"Félix Auger Aliassime", "Felix Auger-Aliassime"},
		{"Stan Wawrinka", "Stan Wawrinka"},
		{"Gaël Monfils", "Gael Monfils"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Normalize(tt.input), "Normalize(%q)", tt.input)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Carreño", "Carreno  Busta, Pablo", "López, Feliciano", "  Jannik  Sinner ",
		"Ñandú Pérez", "De minaur", "Mussetti", "x", "Ελληνικά όνομα", "a\tb\nc",
	}
	n := NewNormalizer(map[string]string{"Sinner": "Jannik Sinner", "J. Sinner": "Sinner"})
	inputs = append(inputs, "Sinner", "J. Sinner")

	for _, in := range inputs {
		once := n.Normalize(in)
		assert.Equal(t, once, n.Normalize(once), "Normalize not idempotent for %q", in)
	}
}

func TestNormalizer_AliasChainResolves(t *testing.T) {
	n := NewNormalizer(map[string]string{"J. Sinner": "Sinner", "Sinner": "Jannik Sinner"})

	assert.Equal(t, "Jannik Sinner", n.Normalize("J. Sinner"))
	assert.Equal(t, "Jannik Sinner", n.Normalize("Sinner"))
}

func TestNormalizer_Variants(t *testing.T) {
	n := NewNormalizer(nil)

	v := n.Variants("Pablo Carreño Busta")
	require.NotEmpty(t, v)
	assert.Equal(t, "Pablo Carreno Busta", v[0])
	assert.Contains(t, v, "Carreno")
	assert.Contains(t, v, "Carreno Busta, Pablo")

	assert.Equal(t, []string{"Jannik Sinner"}, n.Variants("Jannik Sinner"))
	assert.Nil(t, n.Variants("  "))
}

func TestMatchupID_OrderIndependent(t *testing.T) {
	pairs := [][2]string{
		{"Hurkacz, Hubert", "Nick Kyrgios"},
		{"Carreño", "López, Feliciano"},
		{"Zeta", "Alpha"},
		{"same", "same"},
		{"", "Someone"},
	}

	for _, p := range pairs {
		assert.Equal(t, MatchupID(p[0], p[1]), MatchupID(p[1], p[0]))
	}

	assert.Equal(t, "Hubert Hurkacz vs Nick Kyrgios", MatchupID("Nick Kyrgios", "Hurkacz, Hubert"))
}

func TestDedupeKey_PerCalendarDay(t *testing.T) {
	morning := time.Date(2026, 3, 1, 0, 5, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 1, 23, 55, 0, 0, time.UTC)
	nextDay := time.Date(2026, 3, 2, 0, 1, 0, 0, time.UTC)

	k1 := DedupeKey("A vs B", "A", "2-0", morning)
	assert.Equal(t, "A vs B|A|2-0|2026-03-01", k1)
	assert.Equal(t, k1, DedupeKey("A vs B", "A", "2-0", evening))
	assert.NotEqual(t, k1, DedupeKey("A vs B", "A", "2-0", nextDay))
}

func TestResultRow_RoundTripsThroughParser(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 30, 15, 250*int(time.Millisecond), time.UTC)
	r := MatchResult{
		Timestamp: ts, MatchupID: "A vs B", PlayerA: "A", PlayerB: "B",
		Winner: "A", Loser: "B", ScoreLabel: "2-0", SourceURL: "https://x", DedupeKey: "k",
	}

	row := r.Row()
	require.Len(t, row, 9)
	assert.Equal(t, "2026-03-01T10:30:15.250Z", row[0])

	back, err := ResultFromRow(row)
	require.NoError(t, err)
	assert.Equal(t, r, back)
}

func TestResultFromRow_ShortAndSpreadsheetRows(t *testing.T) {
	r, err := ResultFromRow([]string{"2026-03-01 10:30:15", "A vs B", "A", "B", "A"})
	require.NoError(t, err)
	assert.Equal(t, "A", r.Winner)
	assert.Empty(t, r.DedupeKey)

	_, err = ResultFromRow([]string{"not a time", "A vs B"})
	assert.Error(t, err)
}
