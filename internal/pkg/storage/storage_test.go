package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableRange(t *testing.T) {
	assert.Equal(t, "Results!A:I", Results.Range())
	assert.Equal(t, "H2H!A:D", H2H.Range())
	assert.Equal(t, "Streaks!A:G", Streaks.Range())
	assert.Equal(t, "Alerts!A:F", Alerts.Range())
}

func exerciseSink(t *testing.T, s Sink) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.EnsureHeaders(ctx))
	require.NoError(t, s.EnsureHeaders(ctx), "EnsureHeaders must be repeatable")

	rows, err := s.Read(ctx, Results)
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, s.Append(ctx, Results, []string{"t1", "A vs B", "A", "B", "A", "B", "2-0", "u", "k1"}))
	require.NoError(t, s.Append(ctx, Results, []string{"t2", "A vs B", "A", "B", "B"}))

	rows, err = s.Read(ctx, Results)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "k1", rows[0][8])
	assert.Equal(t, []string{"t2", "A vs B", "A", "B", "B", "", "", "", ""}, rows[1])

	require.NoError(t, s.ClearAndWrite(ctx, H2H, [][]string{{"A vs B", "1", "1", "2"}, {"C vs D", "0", "1", "1"}}))
	require.NoError(t, s.ClearAndWrite(ctx, H2H, [][]string{{"A vs B", "2", "1", "3"}}))

	rows, err = s.Read(ctx, H2H)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"A vs B", "2", "1", "3"}}, rows)

	require.NoError(t, s.ClearAndWrite(ctx, H2H, nil))
	rows, err = s.Read(ctx, H2H)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemorySink(t *testing.T) {
	exerciseSink(t, NewMemorySink())
}

func TestSQLSink_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "acewatch.db")
	s, err := NewSQLSink(context.Background(), SQLite, dsn)
	require.NoError(t, err)
	defer s.Close()

	exerciseSink(t, s)
}

func TestNewSQLSink_RequiresDSN(t *testing.T) {
	_, err := NewSQLSink(context.Background(), Postgres, "")
	assert.Error(t, err)
}

func TestJWTConfig(t *testing.T) {
	_, err := jwtConfig(SheetsCredentials{})
	assert.Error(t, err)

	_, err = jwtConfig(SheetsCredentials{JSON: "{not json"})
	assert.Error(t, err)

	conf, err := jwtConfig(SheetsCredentials{ClientEmail: "bot@example.iam", PrivateKey: `line1\nline2`})
	require.NoError(t, err)
	assert.Equal(t, "bot@example.iam", conf.Email)
	assert.Equal(t, "line1\nline2", string(conf.PrivateKey))
}
