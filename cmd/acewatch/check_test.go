package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgconfig "github.com/Vodeneev/acewatch/internal/pkg/config"
	"github.com/Vodeneev/acewatch/internal/pkg/models"
)

func TestPrintCatalog(t *testing.T) {
	c := pkgconfig.Default()
	c.Source.URL = "https://example.test/live"
	c.Sink.Driver = "memory"
	c.Catalog.Matchups = []models.Matchup{
		{A: "Bea Ruiz", B: "Ana López"},
		{A: "Ana Lopez", B: "Bea  Ruiz"},
		{A: "Alpha", B: "Beta"},
	}
	c.Alerts.Rules = []models.AlertRule{
		{MatchupID: "Ana Lopez vs Bea Ruiz", Player: models.AnyPlayer, MinStreak: 3},
		{MatchupID: "Gamma vs Delta", Player: "Gamma", MinStreak: 2},
	}

	var out bytes.Buffer
	require.NoError(t, printCatalog(&out, c))

	s := out.String()
	assert.Contains(t, s, "Matchups: 2 distinct of 3 configured")
	assert.Contains(t, s, "  Ana Lopez vs Bea Ruiz\n")
	assert.Contains(t, s, "  Alpha vs Beta\n")
	assert.Contains(t, s, "Ana Lopez vs Bea Ruiz: ANY >= 3\n")
	assert.Contains(t, s, "Gamma vs Delta: Gamma >= 2  (matchup not in catalog")
}

func TestBuildNotifier(t *testing.T) {
	c := pkgconfig.Default()

	n, err := buildNotifier(c)
	require.NoError(t, err)
	assert.Equal(t, "log", n.Name())

	c.Alerts.Webhook.URL = "https://hooks.test/x"
	n, err = buildNotifier(c)
	require.NoError(t, err)
	assert.Equal(t, "webhook", n.Name())
}

func TestOpenSink_Memory(t *testing.T) {
	c := pkgconfig.Default()
	c.Sink.Driver = "memory"
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s, err := openSink(ctx, c)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	c.Sink.Driver = "excel"
	_, err = openSink(ctx, c)
	assert.Error(t, err)
}
