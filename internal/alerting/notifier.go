package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Vodeneev/acewatch/internal/pkg/models"
)

// Alert is the payload handed to every notifier.
type Alert struct {
	MatchupID  string
	Winner     string
	Streak     int
	Threshold  int
	ScoreLabel string
	At         time.Time
}

// Text renders the alert as a plain multi-line message.
func (a Alert) Text() string {
	var b strings.Builder
	b.WriteString("🎾 Streak reached\n")
	fmt.Fprintf(&b, "• Matchup: %s\n", a.MatchupID)
	fmt.Fprintf(&b, "• Current winner: %s\n", a.Winner)
	fmt.Fprintf(&b, "• Streak: %d\n", a.Streak)
	fmt.Fprintf(&b, "• Threshold: %d\n", a.Threshold)
	fmt.Fprintf(&b, "• Score: %s\n", a.ScoreLabel)
	fmt.Fprintf(&b, "• %s", models.FormatTimestamp(a.At))
	return b.String()
}

// Notifier delivers one alert. A nil error means the alert went out.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, a Alert) error
}

// LogNotifier writes alerts to the log. It is the fallback when no
// delivery channel is configured.
type LogNotifier struct{}

func (LogNotifier) Name() string { return "log" }

func (LogNotifier) Notify(_ context.Context, a Alert) error {
	slog.Info("ALERT", "matchup", a.MatchupID, "winner", a.Winner, "streak", a.Streak,
		"threshold", a.Threshold, "score", a.ScoreLabel, "text", a.Text())
	return nil
}

// MultiNotifier fans an alert out to every sink. It succeeds when at
// least one sink delivered.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier drops nil entries.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

func (m *MultiNotifier) Name() string {
	names := make([]string, 0, len(m.notifiers))
	for _, n := range m.notifiers {
		names = append(names, n.Name())
	}
	return strings.Join(names, "+")
}

// Len reports how many sinks are attached.
func (m *MultiNotifier) Len() int { return len(m.notifiers) }

func (m *MultiNotifier) Notify(ctx context.Context, a Alert) error {
	if len(m.notifiers) == 0 {
		return errors.New("no notifiers configured")
	}

	var errs []error
	delivered := 0
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, a); err != nil {
			slog.Warn("Notifier failed", "notifier", n.Name(), "matchup", a.MatchupID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return errors.Join(errs...)
	}
	return nil
}
