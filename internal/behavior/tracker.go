package behavior

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"shopassist.dev/assistant/internal/kv"
	"shopassist.dev/assistant/internal/metrics"
)

type Action string

const (
	ActionSearch Action = "search"
	ActionView   Action = "view"
	ActionClick  Action = "click"
)

var ErrUnknownAction = errors.New("unknown behavior action")

func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionSearch, ActionView, ActionClick:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

type Preferences struct {
	PriceRange []float64 `json:"price_range,omitempty"`
	Categories []string  `json:"categories,omitempty"`
	Brands     []string  `json:"brands,omitempty"`
}

// Profile accumulates interaction signals for one session key.
type Profile struct {
	Searches     []string    `json:"search_history"`
	Viewed       []string    `json:"viewed_products"`
	Clicked      []string    `json:"clicked_products"`
	StartedAt    time.Time   `json:"started_at"`
	LastActiveAt time.Time   `json:"last_active_at"`
	DurationMs   int64       `json:"session_duration_ms"`
	Preferences  Preferences `json:"preferences"`
}

func (p Profile) clone() Profile {
	c := p
	c.Searches = append([]string{}, p.Searches...)
	c.Viewed = append([]string{}, p.Viewed...)
	c.Clicked = append([]string{}, p.Clicked...)
	c.Preferences.PriceRange = append([]float64(nil), p.Preferences.PriceRange...)
	c.Preferences.Categories = append([]string(nil), p.Preferences.Categories...)
	c.Preferences.Brands = append([]string(nil), p.Preferences.Brands...)
	return c
}

type Tracker struct {
	backend kv.Backend[Profile]
	locks   kv.KeyedMutex
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewTracker(backend kv.Backend[Profile], logger *zap.Logger, m *metrics.Metrics) *Tracker {
	return &Tracker{
		backend: backend,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Track appends value to the list matching action, creating the profile if needed.
func (t *Tracker) Track(ctx context.Context, key string, action Action, value string) error {
	if _, err := ParseAction(string(action)); err != nil {
		return err
	}

	unlock := t.locks.Lock(key)
	defer unlock()

	now := t.now()
	p, ok, err := t.backend.Get(ctx, key)
	if err != nil {
		t.logger.Error("Failed to load behavior profile", zap.String("session", key), zap.Error(err))
	}
	if !ok {
		p = Profile{StartedAt: now}
	}
	p = p.clone()

	switch action {
	case ActionSearch:
		p.Searches = append(p.Searches, value)
	case ActionView:
		p.Viewed = append(p.Viewed, value)
	case ActionClick:
		p.Clicked = append(p.Clicked, value)
	}
	p.LastActiveAt = now
	p.DurationMs = now.Sub(p.StartedAt).Milliseconds()

	if err := t.backend.Put(ctx, key, p); err != nil {
		return fmt.Errorf("store behavior profile: %w", err)
	}
	t.metrics.ActionTracked(string(action))
	return nil
}

// Get returns the profile for key, or false when none has been tracked.
func (t *Tracker) Get(ctx context.Context, key string) (Profile, bool) {
	p, ok, err := t.backend.Get(ctx, key)
	if err != nil {
		t.logger.Error("Failed to load behavior profile", zap.String("session", key), zap.Error(err))
		return Profile{}, false
	}
	if !ok {
		return Profile{}, false
	}
	return p.clone(), true
}

// PurgeStale removes profiles with no activity within retention.
func (t *Tracker) PurgeStale(ctx context.Context, retention time.Duration) int {
	cutoff := t.now().Add(-retention)

	removed, err := t.backend.Sweep(ctx, func(_ string, p Profile) bool {
		return p.LastActiveAt.Before(cutoff)
	})
	if err != nil {
		t.logger.Error("Behavior sweep failed", zap.Error(err))
	}
	if removed > 0 {
		t.logger.Info("Purged stale behavior profiles", zap.Int("count", removed))
	}
	t.metrics.Purged("behavior", removed)
	return removed
}
