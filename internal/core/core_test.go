package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"shopassist.dev/assistant/internal/behavior"
	"shopassist.dev/assistant/internal/heuristics"
	"shopassist.dev/assistant/internal/images"
	"shopassist.dev/assistant/internal/kv"
	"shopassist.dev/assistant/internal/llm"
	"shopassist.dev/assistant/internal/metrics"
	"shopassist.dev/assistant/internal/session"
	"shopassist.dev/assistant/internal/store"
)

// fakeCompleter returns canned replies in order and records every request.
type fakeCompleter struct {
	mu       sync.Mutex
	replies  []string
	err      error
	block    bool
	requests []llm.Request
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return "", fmt.Errorf("fake: %w", ctx.Err())
	}
	if f.err != nil {
		return "", f.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		return "", fmt.Errorf("fake: %w", llm.ErrEmptyCompletion)
	}
	r := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return r, nil
}

func (f *fakeCompleter) lastRequest() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

var errDown = errors.New("dial tcp 10.0.0.1:443: connection refused")

func newConversation(c llm.Completer) (*ConversationService, *session.Store) {
	sessions := session.NewStore(kv.NewMemory[session.Session](), zap.NewNop())
	return NewConversationService(sessions, c, time.Second, zap.NewNop(), nil), sessions
}

func TestRespond_Success(t *testing.T) {
	c := &fakeCompleter{replies: []string{"The XPS 13 laptop is a great pick. Want to compare it with the Latitude?"}}
	svc, sessions := newConversation(c)
	ctx := context.Background()

	candidates := []store.Product{{ID: "1", Title: "XPS 13"}, {ID: "2", Title: "Latitude 7440"}}
	reply := svc.Respond(ctx, "s1", "I need something light", "laptop", candidates)

	assert.False(t, reply.Fallback)
	assert.Equal(t, "The XPS 13 laptop is a great pick. Want to compare it with the Latitude?", reply.Message)
	assert.Equal(t, []string{"Gaming laptops", "Business laptops", "Budget laptops"}, reply.Suggestions)
	// first user turn seeds two questions; compare adds more; capped at 3
	assert.Equal(t, []string{
		"What will you primarily use this for?",
		"What's your budget range?",
		"Which specific models should I compare?",
	}, reply.FollowUpQuestions)
	assert.Equal(t, ReplyMetadata{SearchQuery: "laptop", TurnCount: 2, TopicsDiscussed: 1}, reply.Metadata)

	req := c.lastRequest()
	assert.Equal(t, "I need something light", req.User)
	assert.Empty(t, req.History)
	assert.Contains(t, req.System, `- Current search: "laptop"`)
	assert.Contains(t, req.System, "- Available products: XPS 13, Latitude 7440")
	assert.Contains(t, req.System, "- Previous topics discussed: laptop")
	assert.Equal(t, conversationMaxTokens, req.MaxTokens)

	sess := sessions.GetOrCreate(ctx, "s1")
	require.Len(t, sess.Turns, 2)
	assert.Equal(t, session.RoleUser, sess.Turns[0].Role)
	assert.Equal(t, session.RoleAssistant, sess.Turns[1].Role)
	assert.Equal(t, reply.Message, sess.Turns[1].Text)
}

func TestRespond_DefaultSuggestions(t *testing.T) {
	c := &fakeCompleter{replies: []string{"Happy to help!"}}
	svc, _ := newConversation(c)

	reply := svc.Respond(context.Background(), "s1", "hello", "", nil)
	assert.Equal(t, heuristics.DefaultSuggestions, reply.Suggestions)

	reply = svc.Respond(context.Background(), "s1", "hello again", "usb hub", nil)
	assert.Equal(t, heuristics.DefaultSuggestionsWithQuery, reply.Suggestions)
	// not the first user turn any more
	assert.NotContains(t, reply.FollowUpQuestions, "What will you primarily use this for?")
}

func TestRespond_FallbackBudgetLaptop(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	sessions := session.NewStore(kv.NewMemory[session.Session](), zap.NewNop())
	svc := NewConversationService(sessions, &fakeCompleter{err: errDown}, time.Second, zap.NewNop(), m)

	reply := svc.Respond(context.Background(), "s1", "I need a budget laptop", "", nil)

	assert.True(t, reply.Fallback)
	assert.Contains(t, reply.Message, "For laptops, I recommend checking out our XPS, Inspiron, and Latitude series.")
	assert.NotContains(t, reply.Message, "budget-friendly")
	assert.Len(t, reply.Suggestions, 4)
	assert.Equal(t, heuristics.FallbackFollowUps, reply.FollowUpQuestions)
	assert.Equal(t, 2, reply.Metadata.TurnCount)

	sess := sessions.GetOrCreate(context.Background(), "s1")
	require.Len(t, sess.Turns, 2)
	assert.Equal(t, reply.Message, sess.Turns[1].Text)

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "shopassist_fallbacks_total"))
}

func TestRespond_TimeoutEngagesFallback(t *testing.T) {
	sessions := session.NewStore(kv.NewMemory[session.Session](), zap.NewNop())
	svc := NewConversationService(sessions, &fakeCompleter{block: true}, 20*time.Millisecond, zap.NewNop(), nil)

	start := time.Now()
	reply := svc.Respond(context.Background(), "s1", "show me monitors", "", nil)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, reply.Fallback)
	assert.Contains(t, reply.Message, "UltraSharp")
}

func TestRespond_EmptyCompletionEngagesFallback(t *testing.T) {
	svc, _ := newConversation(&fakeCompleter{})
	reply := svc.Respond(context.Background(), "s1", "anything", "", nil)
	assert.True(t, reply.Fallback)
	assert.Equal(t, heuristics.GenericFallbackSuggestions, reply.Suggestions)
}

func TestRespond_TwoTurnsPerCall(t *testing.T) {
	svc, sessions := newConversation(&fakeCompleter{replies: []string{"ok"}})
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		reply := svc.Respond(ctx, "s1", "same question", "", nil)
		assert.Equal(t, 2*i, reply.Metadata.TurnCount)
	}
	assert.Equal(t, 8, sessions.Summarize(ctx, "s1").TurnCount)
}

func TestRespond_HistoryIsBounded(t *testing.T) {
	c := &fakeCompleter{replies: []string{"ok"}}
	svc, _ := newConversation(c)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		svc.Respond(ctx, "s1", fmt.Sprintf("question %d", i), "", nil)
	}

	req := c.lastRequest()
	require.Len(t, req.History, historyTurns)
	// turns before the current user text, oldest first
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Text: "question 2"}, req.History[0])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Text: "ok"}, req.History[historyTurns-1])
	assert.Equal(t, "question 7", req.User)
}

func TestRespond_UsesPreferences(t *testing.T) {
	c := &fakeCompleter{replies: []string{"ok"}}
	svc, _ := newConversation(c)
	ctx := context.Background()

	prefs := svc.UpdatePreferences(ctx, "s1", session.Preferences{UseCase: "video editing", Brands: []string{"Dell"}})
	assert.Equal(t, "video editing", prefs.UseCase)

	svc.Respond(ctx, "s1", "what fits?", "", nil)
	assert.Contains(t, c.lastRequest().System, "- User's use case: video editing")
}

func TestConversationSummary(t *testing.T) {
	svc, _ := newConversation(&fakeCompleter{replies: []string{"ok"}})
	ctx := context.Background()

	assert.Equal(t, int64(0), svc.Summary(ctx, "fresh").DurationMs)

	svc.Respond(ctx, "s1", "hi", "servers", nil)
	summary := svc.Summary(ctx, "s1")
	assert.Equal(t, 2, summary.TurnCount)
	assert.Equal(t, []string{"servers"}, summary.Topics)
}

func newRecommendation(c llm.Completer) (*RecommendationService, *behavior.Tracker) {
	tracker := behavior.NewTracker(kv.NewMemory[behavior.Profile](), zap.NewNop(), nil)
	return NewRecommendationService(tracker, c, time.Second, zap.NewNop(), nil), tracker
}

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

func TestRecommend_EmptyCandidatesAndCompletionDown(t *testing.T) {
	svc, _ := newRecommendation(&fakeCompleter{err: errDown})

	got := svc.Recommend(context.Background(), "laptop", nil, "s1")
	assert.Empty(t, got.Personalized)
	assert.Empty(t, got.Related)
	assert.Empty(t, got.Trending)
	assert.Equal(t, FallbackExplanations, got.Explanations)
}

func TestRecommend_BucketsIndependentOfCompletionOutcome(t *testing.T) {
	// no ratings, reviews or categories, so every ranked bucket is empty
	var candidates []store.Product
	for i := 0; i < 8; i++ {
		candidates = append(candidates, store.Product{ID: fmt.Sprint(i)})
	}

	down, _ := newRecommendation(&fakeCompleter{err: errDown})
	failed := down.Recommend(context.Background(), "anything", candidates, "s1")

	up, _ := newRecommendation(&fakeCompleter{replies: []string{"PERSONALIZED: x"}})
	succeeded := up.Recommend(context.Background(), "anything", candidates, "s1")

	assert.True(t, failed.Empty())
	assert.Equal(t, succeeded.Buckets, failed.Buckets)
	assert.Equal(t, FallbackExplanations, failed.Explanations)
}

func TestRecommend_NoSafetyNetWhenCompletionSucceeds(t *testing.T) {
	svc, _ := newRecommendation(&fakeCompleter{replies: []string{"PERSONALIZED: x"}})

	candidates := []store.Product{{ID: "a"}, {ID: "b"}}
	got := svc.Recommend(context.Background(), "anything", candidates, "s1")
	assert.True(t, got.Empty())
	assert.Equal(t, DefaultExplanations, got.Explanations)
}

func TestRecommend_ExplanationsFromCompletion(t *testing.T) {
	c := &fakeCompleter{replies: []string{"PERSONALIZED: XPS 13\nEXPLANATIONS: These match your travel needs\nRelated Explanation: Docks pair well\nnothing here"}}
	svc, tracker := newRecommendation(c)
	ctx := context.Background()

	require.NoError(t, tracker.Track(ctx, "s1", behavior.ActionSearch, "ultrabook"))
	require.NoError(t, tracker.Track(ctx, "s1", behavior.ActionView, "p9"))

	candidates := []store.Product{
		{ID: "a", Title: "XPS 13", Category: "laptops", Price: "$999", Rating: f64(4.6), Reviews: intp(50)},
		{ID: "b", Title: "Inspiron 14", Category: "laptops", Price: "$549", Rating: f64(4.1), Reviews: intp(5)},
	}
	got := svc.Recommend(ctx, "thin laptop", candidates, "s1")

	assert.Equal(t, []string{"These match your travel needs", "Docks pair well"}, got.Explanations)
	assert.Equal(t, "a", got.Personalized[0].ID)
	assert.Equal(t, "b", got.Related[0].ID)
	require.Len(t, got.Trending, 1)

	prompt := c.lastRequest().User
	assert.Contains(t, prompt, `Current search: "thin laptop"`)
	assert.Contains(t, prompt, "XPS 13 (laptops, $999)")
	assert.Contains(t, prompt, "- Search history: ultrabook")
	assert.Contains(t, prompt, "- Viewed products: p9")
	assert.Equal(t, recommendationSystemInstruction, c.lastRequest().System)
}

func TestRecommend_NoProfileOmitsBehavior(t *testing.T) {
	c := &fakeCompleter{replies: []string{"ok"}}
	svc, _ := newRecommendation(c)

	svc.Recommend(context.Background(), "q", nil, "nobody")
	assert.NotContains(t, c.lastRequest().User, "User behavior:")
}

func TestExtractExplanations(t *testing.T) {
	got := extractExplanations("EXPLANATIONS: one\nexplanations: lowercase marker is ignored\n  Explanation:   two  \nExplanation:")
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestQuickChat(t *testing.T) {
	q := NewQuickChat(&fakeCompleter{replies: []string{"The Alienware m18 is our top gaming laptop."}}, time.Second, zap.NewNop(), nil)
	a := q.Answer(context.Background(), "best gaming laptop")
	assert.False(t, a.Fallback)
	assert.Equal(t, []string{"Alienware laptops", "Alienware desktops", "Gaming laptops", "Gaming desktops"}, a.Suggestions)

	q = NewQuickChat(&fakeCompleter{err: errDown}, time.Second, zap.NewNop(), nil)
	a = q.Answer(context.Background(), "cheap desktop")
	assert.True(t, a.Fallback)
	assert.True(t, strings.HasPrefix(a.Message, "I can help you find Dell products! For desktops"))
}

type fakeSearcher struct {
	results []store.Product
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, maxResults int) ([]store.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > maxResults {
		return f.results[:maxResults], nil
	}
	return f.results, nil
}

func TestSearchService(t *testing.T) {
	searcher := &fakeSearcher{results: []store.Product{{ID: "1", Title: "OptiPlex 7020"}, {ID: "2", Title: "XPS 16", Image: "https://cdn/x.jpg"}}}
	chat := NewQuickChat(&fakeCompleter{replies: []string{"Try the OptiPlex."}}, time.Second, zap.NewNop(), nil)
	svc := NewSearchService(searcher, images.NewCache(zap.NewNop()), chat, zap.NewNop(), nil)

	res := svc.Search(context.Background(), "desktop", 10, true)
	require.Len(t, res.Results, 2)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, images.PlaceholderURLs["desktop"], res.Results[0].Image)
	assert.Equal(t, "https://cdn/x.jpg", res.Results[1].Image)
	require.NotNil(t, res.ChatResponse)
	assert.Equal(t, "Try the OptiPlex.", res.ChatResponse.Message)

	res = svc.Search(context.Background(), "desktop", 1, false)
	assert.Len(t, res.Results, 1)
	assert.Nil(t, res.ChatResponse)
}

func TestSearchService_BackendErrorYieldsEmpty(t *testing.T) {
	svc := NewSearchService(&fakeSearcher{err: errDown}, images.NewCache(zap.NewNop()), nil, zap.NewNop(), nil)

	res := svc.Search(context.Background(), "laptop", 10, true)
	assert.NotNil(t, res.Results)
	assert.Empty(t, res.Results)
	assert.Nil(t, res.ChatResponse)
}

func TestSearchService_Suggestions(t *testing.T) {
	svc := NewSearchService(&fakeSearcher{}, images.NewCache(zap.NewNop()), nil, zap.NewNop(), nil)
	assert.Equal(t, []string{"laptops", "budget laptops", "business laptops", "gaming laptops"}, svc.Suggestions("LAPTOP"))
}

type countingPurger struct{ calls []time.Duration }

func (c *countingPurger) PurgeStale(ctx context.Context, retention time.Duration) int {
	c.calls = append(c.calls, retention)
	return len(c.calls)
}

func TestJanitor_Sweep(t *testing.T) {
	sessions, profiles := &countingPurger{}, &countingPurger{}
	j := NewJanitor(6*time.Hour, zap.NewNop(), map[string]Purger{"sessions": sessions, "profiles": profiles})

	removed := j.Sweep(context.Background())
	assert.Equal(t, map[string]int{"sessions": 1, "profiles": 1}, removed)
	assert.Equal(t, []time.Duration{6 * time.Hour}, sessions.calls)
}

func TestJanitor_StartRejectsBadSchedule(t *testing.T) {
	j := NewJanitor(time.Hour, zap.NewNop(), nil)
	assert.Error(t, j.Start("every now and then"))

	j = NewJanitor(time.Hour, zap.NewNop(), nil)
	require.NoError(t, j.Start("@every 1h"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	j.Stop(ctx)
}
