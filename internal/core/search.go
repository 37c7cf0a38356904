package core

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"shopassist.dev/assistant/internal/heuristics"
	"shopassist.dev/assistant/internal/images"
	"shopassist.dev/assistant/internal/llm"
	"shopassist.dev/assistant/internal/metrics"
	"shopassist.dev/assistant/internal/search"
	"shopassist.dev/assistant/internal/store"
)

type QuickAnswer struct {
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`
	Fallback    bool     `json:"fallback"`
}

// QuickChat answers a single message without session state.
type QuickChat struct {
	completer llm.Completer
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewQuickChat(completer llm.Completer, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *QuickChat {
	return &QuickChat{completer: completer, timeout: timeout, logger: logger, metrics: m}
}

func (q *QuickChat) Answer(ctx context.Context, message string) QuickAnswer {
	text, err := complete(ctx, q.completer, q.timeout, llm.Request{
		System:      quickChatSystemInstruction,
		User:        message,
		MaxTokens:   quickChatMaxTokens,
		Temperature: defaultTemperature,
	})
	q.metrics.Completion("quick_chat", llm.Classify(err))
	if err != nil {
		q.logger.Warn("Quick chat completion failed", zap.String("outcome", llm.Classify(err)), zap.Error(err))
		q.metrics.Fallback("quick_chat")
		fb := heuristics.Fallback(message)
		return QuickAnswer{Message: fb.Message, Suggestions: fb.Suggestions, Fallback: true}
	}
	return QuickAnswer{Message: text, Suggestions: heuristics.MentionSuggestions(text, message)}
}

type SearchResult struct {
	Results      []store.Product `json:"results"`
	Total        int             `json:"total"`
	Query        string          `json:"query"`
	ChatResponse *QuickAnswer    `json:"chatResponse"`
}

// SearchService runs product searches and fills in missing product images.
type SearchService struct {
	searcher search.Searcher
	images   *images.Cache
	chat     *QuickChat
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewSearchService(searcher search.Searcher, imageCache *images.Cache, chat *QuickChat, logger *zap.Logger, m *metrics.Metrics) *SearchService {
	return &SearchService{
		searcher: searcher,
		images:   imageCache,
		chat:     chat,
		logger:   logger,
		metrics:  m,
	}
}

// Products never fails: a search backend error yields an empty result.
func (s *SearchService) Products(ctx context.Context, query string, size int) []store.Product {
	results, err := s.searcher.Search(ctx, query, size)
	if err != nil {
		s.logger.Error("Product search failed", zap.String("query", query), zap.Error(err))
		s.metrics.Search("error")
		return []store.Product{}
	}
	if len(results) == 0 {
		s.metrics.Search("empty")
	} else {
		s.metrics.Search("ok")
	}
	return s.images.Enrich(ctx, results)
}

// Search runs the product search and, if includeChat is set, a quick chat
// answer for the same text concurrently.
func (s *SearchService) Search(ctx context.Context, query string, size int, includeChat bool) SearchResult {
	var (
		results []store.Product
		answer  *QuickAnswer
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results = s.Products(gctx, query, size)
		return nil
	})
	if includeChat && s.chat != nil {
		g.Go(func() error {
			a := s.chat.Answer(gctx, query)
			answer = &a
			return nil
		})
	}
	_ = g.Wait()

	return SearchResult{
		Results:      results,
		Total:        len(results),
		Query:        query,
		ChatResponse: answer,
	}
}

// Suggestions filters the static query suggestion list.
func (s *SearchService) Suggestions(query string) []string {
	return heuristics.MatchQuerySuggestions(query)
}
