package session

import (
	"context"
	"time"

	"go.uber.org/zap"
	"shopassist.dev/assistant/internal/kv"
	"shopassist.dev/assistant/internal/metrics"
)

// Store owns per-session dialogue state. It never fails towards callers:
// backend errors are logged and the caller continues with the in-hand session.
type Store struct {
	backend kv.Backend[Session]
	locks   kv.KeyedMutex
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Store)

// WithClock overrides the time source used for turn timestamps and purging.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func NewStore(backend kv.Backend[Session], logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns the session for key, creating an empty one on first reference.
func (s *Store) GetOrCreate(ctx context.Context, key string) Session {
	unlock := s.locks.Lock(key)
	defer unlock()

	return s.load(ctx, key).Clone()
}

// load must be called with the key lock held.
func (s *Store) load(ctx context.Context, key string) Session {
	sess, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Error("Failed to load session, starting fresh", zap.String("session", key), zap.Error(err))
	}
	if ok {
		return sess
	}

	sess = newSession(key)
	if err := s.backend.Put(ctx, key, sess); err != nil {
		s.logger.Error("Failed to create session", zap.String("session", key), zap.Error(err))
	}
	return sess
}

// AppendTurn appends one turn stamped with the current time and returns the updated session.
// User turns also feed the history index.
func (s *Store) AppendTurn(ctx context.Context, key string, role Role, text string, tc *TurnContext) Session {
	unlock := s.locks.Lock(key)
	defer unlock()

	sess := s.load(ctx, key).Clone()

	turn := Turn{Role: role, Text: text, Timestamp: s.now()}
	if tc != nil {
		c := *tc
		turn.Context = &c
	}
	sess.Turns = append(sess.Turns, turn)

	if role == RoleUser {
		sess.History.QuestionsAsked = append(sess.History.QuestionsAsked, text)
		if tc != nil && tc.SearchQuery != "" {
			sess.History.Topics = append(sess.History.Topics, tc.SearchQuery)
		}
		if tc != nil && tc.ProductID != "" {
			sess.History.ProductsDiscussed = append(sess.History.ProductsDiscussed, tc.ProductID)
		}
	}

	if err := s.backend.Put(ctx, key, sess); err != nil {
		s.logger.Error("Failed to store turn", zap.String("session", key), zap.Error(err))
	}
	s.metrics.TurnAppended()

	return sess.Clone()
}

// UpdatePreferences merges p into the session's preferences. Lists are
// extended with unseen values; scalar fields are replaced when set.
func (s *Store) UpdatePreferences(ctx context.Context, key string, p Preferences) Session {
	unlock := s.locks.Lock(key)
	defer unlock()

	sess := s.load(ctx, key).Clone()
	cur := &sess.Preferences

	if p.PriceRange != nil {
		pr := *p.PriceRange
		cur.PriceRange = &pr
	}
	cur.Categories = appendUnique(cur.Categories, p.Categories...)
	cur.Brands = appendUnique(cur.Brands, p.Brands...)
	if p.UseCase != "" {
		cur.UseCase = p.UseCase
	}

	if err := s.backend.Put(ctx, key, sess); err != nil {
		s.logger.Error("Failed to store preferences", zap.String("session", key), zap.Error(err))
	}
	return sess.Clone()
}

func (s *Store) Summarize(ctx context.Context, key string) Summary {
	sess := s.GetOrCreate(ctx, key)

	summary := Summary{
		TurnCount:         len(sess.Turns),
		Topics:            sess.History.Topics,
		ProductsDiscussed: sess.History.ProductsDiscussed,
	}
	if len(sess.Turns) >= 2 {
		first := sess.Turns[0].Timestamp
		last := sess.Turns[len(sess.Turns)-1].Timestamp
		summary.DurationMs = last.Sub(first).Milliseconds()
	}
	return summary
}

// PurgeStale deletes sessions whose last turn is older than retention.
// Sessions without turns are kept.
func (s *Store) PurgeStale(ctx context.Context, retention time.Duration) int {
	cutoff := s.now().Add(-retention)

	removed, err := s.backend.Sweep(ctx, func(_ string, sess Session) bool {
		last, ok := sess.LastTurn()
		return ok && last.Timestamp.Before(cutoff)
	})
	if err != nil {
		s.logger.Error("Session sweep failed", zap.Error(err))
	}
	if removed > 0 {
		s.logger.Info("Purged stale sessions", zap.Int("count", removed))
	}
	s.metrics.Purged("session", removed)
	return removed
}

// Expiry is the backend TTL policy for sessions. Sessions without turns are
// stored without expiry; the rest expire retention after their last write.
func Expiry(retention time.Duration) func(Session) time.Duration {
	return func(sess Session) time.Duration {
		if len(sess.Turns) == 0 {
			return 0
		}
		return retention
	}
}

func appendUnique(list []string, values ...string) []string {
	seen := make(map[string]struct{}, len(list))
	for _, v := range list {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		list = append(list, v)
	}
	return list
}
