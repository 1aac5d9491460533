package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Vodeneev/acewatch/internal/pkg/models"
	"github.com/Vodeneev/acewatch/internal/pkg/storage"
	"github.com/Vodeneev/acewatch/internal/state"
)

// Config wires an Engine.
type Config struct {
	Rules    []models.AlertRule
	Names    *models.Normalizer
	Notifier Notifier
	Sink     storage.Sink
	Store    state.Store
	Cooldown time.Duration
	// CallTimeout bounds every outbound call made while firing a rule.
	CallTimeout time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine evaluates alert rules after each streak update. A single
// lastAlertAt throttles every rule and matchup together.
type Engine struct {
	rules       map[string][]models.AlertRule
	names       *models.Normalizer
	notifier    Notifier
	sink        storage.Sink
	store       state.Store
	cooldown    time.Duration
	callTimeout time.Duration
	now         func() time.Time

	mu          sync.Mutex
	lastAlertAt time.Time
}

// NewEngine indexes rules by matchup id. Rule matchup ids are expected in
// canonical form already.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		rules:       make(map[string][]models.AlertRule),
		names:       cfg.Names,
		notifier:    cfg.Notifier,
		sink:        cfg.Sink,
		store:       cfg.Store,
		cooldown:    cfg.Cooldown,
		callTimeout: cfg.CallTimeout,
		now:         cfg.Now,
	}
	if e.names == nil {
		e.names = models.NewNormalizer(nil)
	}
	if e.notifier == nil {
		e.notifier = LogNotifier{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	for _, r := range cfg.Rules {
		e.rules[r.MatchupID] = append(e.rules[r.MatchupID], r)
	}
	return e
}

// SetLastAlertAt restores the cooldown clock from persisted state.
func (e *Engine) SetLastAlertAt(t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastAlertAt = t
}

// LastAlertAt returns the time of the last dispatched alert.
func (e *Engine) LastAlertAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastAlertAt
}

// RuleCount reports the number of configured rules.
func (e *Engine) RuleCount() int {
	n := 0
	for _, rs := range e.rules {
		n += len(rs)
	}
	return n
}

func (e *Engine) matches(rule models.AlertRule, st models.StreakState) bool {
	if st.Owner == "" || st.Length < rule.MinStreak {
		return false
	}
	return rule.Player == models.AnyPlayer || e.names.Normalize(rule.Player) == st.Owner
}

func (e *Engine) throttled(now time.Time) bool {
	return !e.lastAlertAt.IsZero() && now.Sub(e.lastAlertAt) < e.cooldown
}

// Evaluate checks every rule of r's matchup against the updated streak and
// fires those that qualify while the cooldown allows. It returns the
// events that were dispatched.
func (e *Engine) Evaluate(ctx context.Context, r models.MatchResult, st models.StreakState) ([]models.AlertEvent, error) {
	rules := e.rules[r.MatchupID]
	if len(rules) == 0 {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		fired []models.AlertEvent
		errs  []error
	)
	for _, rule := range rules {
		if !e.matches(rule, st) {
			continue
		}
		now := e.now()
		if e.throttled(now) {
			slog.Debug("Alert throttled", "matchup", r.MatchupID, "owner", st.Owner, "streak", st.Length,
				"last_alert_at", e.lastAlertAt, "cooldown", e.cooldown)
			continue
		}

		ev, err := e.fire(ctx, rule, r, st, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fired = append(fired, ev)
	}
	return fired, errors.Join(errs...)
}

func (e *Engine) fire(ctx context.Context, rule models.AlertRule, r models.MatchResult, st models.StreakState, now time.Time) (models.AlertEvent, error) {
	alert := Alert{
		MatchupID:  r.MatchupID,
		Winner:     st.Owner,
		Streak:     st.Length,
		Threshold:  rule.MinStreak,
		ScoreLabel: r.ScoreLabel,
		At:         now,
	}

	callCtx, cancel := e.callContext(ctx)
	err := e.notifier.Notify(callCtx, alert)
	cancel()
	if err != nil {
		return models.AlertEvent{}, fmt.Errorf("dispatch alert for %s: %w", r.MatchupID, err)
	}

	// The alert went out, so the cooldown starts now even if recording it fails.
	e.lastAlertAt = now
	ev := models.AlertEvent{
		Timestamp:     now,
		MatchupID:     r.MatchupID,
		Winner:        st.Owner,
		StreakLen:     st.Length,
		RuleMinStreak: rule.MinStreak,
		Note:          "score=" + r.ScoreLabel,
	}
	slog.Info("Alert dispatched", "matchup", r.MatchupID, "winner", st.Owner, "streak", st.Length,
		"threshold", rule.MinStreak, "notifier", e.notifier.Name())

	var errs []error
	if e.sink != nil {
		callCtx, cancel := e.callContext(ctx)
		if err := e.sink.Append(callCtx, storage.Alerts, ev.Row()); err != nil {
			errs = append(errs, fmt.Errorf("append alert event: %w", err))
		}
		cancel()
	}
	if e.store != nil {
		callCtx, cancel := e.callContext(ctx)
		if err := e.store.SaveLastAlertAt(callCtx, now); err != nil {
			errs = append(errs, fmt.Errorf("persist last alert time: %w", err))
		}
		cancel()
	}
	if len(errs) > 0 {
		slog.Warn("Alert dispatched but not fully recorded", "matchup", r.MatchupID, "error", errors.Join(errs...))
	}
	return ev, nil
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.callTimeout)
}
