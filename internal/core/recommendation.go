package core

import (
	"context"
	"time"

	"go.uber.org/zap"
	"shopassist.dev/assistant/internal/behavior"
	"shopassist.dev/assistant/internal/llm"
	"shopassist.dev/assistant/internal/metrics"
	"shopassist.dev/assistant/internal/recommend"
	"shopassist.dev/assistant/internal/store"
)

var (
	// DefaultExplanations are used when the completion succeeded without usable explanation lines.
	DefaultExplanations = []string{
		"Based on your search, here are some personalized recommendations",
		"Products that complement your current search",
		"Popular choices in similar categories",
	}
	// FallbackExplanations are used when the completion call failed.
	FallbackExplanations = []string{
		"Top-rated products based on your search",
		"Related products you might like",
		"Popular choices in this category",
	}
)

type Recommendations struct {
	recommend.Buckets
	Explanations []string `json:"explanations"`
}

type RecommendationService struct {
	tracker   *behavior.Tracker
	completer llm.Completer
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewRecommendationService(tracker *behavior.Tracker, completer llm.Completer, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *RecommendationService {
	return &RecommendationService{
		tracker:   tracker,
		completer: completer,
		timeout:   timeout,
		logger:    logger,
		metrics:   m,
	}
}

// Recommend partitions candidates into buckets. The completion service only
// supplies explanation text; bucket contents are always decided by the ranker.
func (s *RecommendationService) Recommend(ctx context.Context, query string, candidates []store.Product, key string) Recommendations {
	var profile *behavior.Profile
	if p, ok := s.tracker.Get(ctx, key); ok {
		profile = &p
	}

	req := llm.Request{
		System:      recommendationSystemInstruction,
		User:        buildRecommendationPrompt(query, candidates, profile),
		MaxTokens:   recommendMaxTokens,
		Temperature: defaultTemperature,
	}

	text, err := complete(ctx, s.completer, s.timeout, req)
	s.metrics.Completion("recommendation", llm.Classify(err))

	buckets := recommend.Rank(candidates)

	if err != nil {
		s.logger.Warn("Completion failed, using fallback explanations",
			zap.String("session", key), zap.String("outcome", llm.Classify(err)), zap.Error(err))
		s.metrics.Fallback("recommendation")

		// The positional net only covers an empty candidate list, so bucket
		// membership never depends on the completion outcome.
		if len(candidates) == 0 {
			buckets = recommend.Positional(candidates)
		}
		return Recommendations{Buckets: buckets, Explanations: append([]string(nil), FallbackExplanations...)}
	}

	explanations := extractExplanations(text)
	if len(explanations) == 0 {
		explanations = append([]string(nil), DefaultExplanations...)
	}
	return Recommendations{Buckets: buckets, Explanations: explanations}
}

// Track records a behavior signal for the session.
func (s *RecommendationService) Track(ctx context.Context, key string, action behavior.Action, value string) error {
	return s.tracker.Track(ctx, key, action, value)
}

func (s *RecommendationService) Behavior(ctx context.Context, key string) (behavior.Profile, bool) {
	return s.tracker.Get(ctx, key)
}
