package handlers

import (
	"html/template"
	"log/slog"
	"net/http"
	"time"
)

// IndexView is the data behind the HTML summary page.
type IndexView struct {
	Service     string
	StartedAt   time.Time
	LastCycleAt time.Time
	Cycles      int
	Cards       int
	Appended    int
	Skipped     int
	Errors      int
	LastError   string
}

var indexTmpl = template.Must(template.New("index").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>{{.Service}}</title></head>
<body style="font-family:system-ui;padding:16px">
<h1>{{.Service}} running</h1>
<p>Started: {{.StartedAt.Format "2006-01-02T15:04:05Z07:00"}}</p>
<p>Last cycle: {{if .LastCycleAt.IsZero}}never{{else}}{{.LastCycleAt.Format "2006-01-02T15:04:05Z07:00"}}{{end}} ({{.Cycles}} total)</p>
<p>Cards: {{.Cards}} | Appended: {{.Appended}} | Skipped: {{.Skipped}} | Errors: {{.Errors}}</p>
{{if .LastError}}<p style="color:#b00">Last error: {{.LastError}}</p>{{end}}
<p><a href="/status">/status</a> · <a href="/metrics">/metrics</a></p>
</body></html>
`))

// HandleIndex renders the HTML summary.
func HandleIndex(view func() IndexView) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := indexTmpl.Execute(w, view()); err != nil {
			slog.Error("Failed to render index", "error", err)
		}
	}
}
