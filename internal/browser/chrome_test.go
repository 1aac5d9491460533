package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptionsDefaults(t *testing.T) {
	var o Options
	o.defaults()
	assert.Equal(t, DefaultUserAgent, o.UserAgent)
	assert.Equal(t, 420, o.Width)
	assert.Equal(t, 860, o.Height)
	assert.Equal(t, 600, o.MaxRegions)
	assert.Equal(t, 20000, o.MaxMarkup)
	assert.Equal(t, 2000, o.TextSample)

	custom := Options{UserAgent: "bot/1.0", Width: 1280, Height: 800, MaxRegions: 50}
	custom.defaults()
	assert.Equal(t, "bot/1.0", custom.UserAgent)
	assert.Equal(t, 1280, custom.Width)
	assert.Equal(t, 50, custom.MaxRegions)
}

func TestClickScript(t *testing.T) {
	exact := clickScript(" Aceptar ", MatchExact)
	assert.Contains(t, exact, `const want = "Aceptar".toLowerCase();`)
	assert.Contains(t, exact, "const contains = false;")

	tab := clickScript("AI Tennis", MatchContains)
	assert.Contains(t, tab, "const contains = true;")
	assert.Contains(t, tab, "t.includes(want)")

	quoted := clickScript(`Say "OK"`, MatchExact)
	assert.Contains(t, quoted, `const want = "Say \"OK\"".toLowerCase();`)

	assert.Equal(t, "exact", MatchExact.String())
	assert.Equal(t, "contains", MatchContains.String())
}
