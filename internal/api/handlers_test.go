package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"shopassist.dev/assistant/internal/auth"
	"shopassist.dev/assistant/internal/behavior"
	"shopassist.dev/assistant/internal/core"
	"shopassist.dev/assistant/internal/images"
	"shopassist.dev/assistant/internal/kv"
	"shopassist.dev/assistant/internal/llm"
	"shopassist.dev/assistant/internal/metrics"
	"shopassist.dev/assistant/internal/session"
	"shopassist.dev/assistant/internal/store"
)

const testSecret = "test-secret"

type staticCompleter struct{ reply string }

func (s staticCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	return s.reply, nil
}

type staticSearcher struct{ products []store.Product }

func (s staticSearcher) Search(ctx context.Context, query string, maxResults int) ([]store.Product, error) {
	if len(s.products) > maxResults {
		return s.products[:maxResults], nil
	}
	return s.products, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zap.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	completer := staticCompleter{reply: "The XPS 13 laptop is a solid choice."}
	sessions := session.NewStore(kv.NewMemory[session.Session](), logger, session.WithMetrics(m))
	tracker := behavior.NewTracker(kv.NewMemory[behavior.Profile](), logger, m)
	searcher := staticSearcher{products: []store.Product{
		{ID: "1", Title: "XPS 13", Category: "Laptops", Price: "$999"},
		{ID: "2", Title: "UltraSharp 27", Category: "Monitors", Price: "$499"},
	}}

	handler := NewAPIHandler(
		core.NewConversationService(sessions, completer, time.Second, logger, m),
		core.NewRecommendationService(tracker, completer, time.Second, logger, m),
		core.NewSearchService(searcher, images.NewCache(logger, images.WithMetrics(m)),
			core.NewQuickChat(completer, time.Second, logger, m), logger, m),
		testSecret,
		time.Hour,
		logger,
	)

	srv := httptest.NewServer(NewRouter(handler, reg))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func newSession(t *testing.T, srv *httptest.Server) CreateSessionResponse {
	t.Helper()
	resp := do(t, http.MethodPost, srv.URL+"/api/sessions", "", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out CreateSessionResponse
	decode(t, resp, &out)
	return out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/api/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateSession_TokenCarriesKey(t *testing.T) {
	srv := newTestServer(t)
	s := newSession(t, srv)

	require.NotEmpty(t, s.SessionID)
	key, err := auth.ValidateSessionToken(testSecret, s.Token)
	require.NoError(t, err)
	assert.Equal(t, s.SessionID, key)
}

func TestSessionRoutes_RequireToken(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/api/conversation", "", `{"message":"hi"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/recommendations/behavior", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	other, err := auth.GenerateSessionToken("other-secret", "k", time.Hour)
	require.NoError(t, err)
	resp = do(t, http.MethodGet, srv.URL+"/api/conversation/summary", other, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConversation(t *testing.T) {
	srv := newTestServer(t)
	s := newSession(t, srv)

	resp := do(t, http.MethodPost, srv.URL+"/api/conversation", s.Token, `{"currentSearch":"laptop"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/conversation", s.Token, `{"message":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/conversation", s.Token,
		`{"message":"I need a laptop","currentSearch":"laptop","searchResults":[{"id":"1","title":"XPS 13"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reply core.Reply
	decode(t, resp, &reply)
	assert.Equal(t, "The XPS 13 laptop is a solid choice.", reply.Message)
	assert.False(t, reply.Fallback)
	assert.Equal(t, 2, reply.Metadata.TurnCount)

	resp = do(t, http.MethodGet, srv.URL+"/api/conversation/summary", s.Token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary SummaryResponse
	decode(t, resp, &summary)
	assert.Equal(t, s.SessionID, summary.SessionID)
	assert.Equal(t, 2, summary.Summary.TurnCount)
	assert.Contains(t, summary.Summary.Topics, "laptop")
}

func TestPreferences_Merge(t *testing.T) {
	srv := newTestServer(t)
	s := newSession(t, srv)

	resp := do(t, http.MethodPost, srv.URL+"/api/conversation/preferences", s.Token, `{"brands":["Dell"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = do(t, http.MethodPost, srv.URL+"/api/conversation/preferences", s.Token, `{"use_case":"gaming"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var prefs session.Preferences
	decode(t, resp, &prefs)
	assert.Equal(t, []string{"Dell"}, prefs.Brands)
	assert.Equal(t, "gaming", prefs.UseCase)
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/api/search", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/search?q=laptop&size=0", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/search?q=lap&type=suggestions", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sugg map[string][]string
	decode(t, resp, &sugg)
	assert.Contains(t, sugg["suggestions"], "laptops")

	resp = do(t, http.MethodGet, srv.URL+"/api/search?q=laptop&size=1&includeChat=true", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result core.SearchResult
	decode(t, resp, &result)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, "laptop", result.Query)
	require.Len(t, result.Results, 1)
	assert.Equal(t, images.PlaceholderURLs["laptop"], result.Results[0].Image)
	require.NotNil(t, result.ChatResponse)
	assert.Equal(t, "The XPS 13 laptop is a solid choice.", result.ChatResponse.Message)
}

func TestRecommendations_TracksQuery(t *testing.T) {
	srv := newTestServer(t)
	s := newSession(t, srv)

	resp := do(t, http.MethodPost, srv.URL+"/api/recommendations", s.Token, `{"searchQuery":"laptop"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/recommendations/behavior", s.Token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var before BehaviorResponse
	decode(t, resp, &before)
	assert.Nil(t, before.UserBehavior)

	resp = do(t, http.MethodPost, srv.URL+"/api/recommendations", s.Token,
		`{"searchQuery":"laptop","searchResults":[{"id":"1","title":"XPS 13","category":"Laptops","rating":4.8}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var recs core.Recommendations
	decode(t, resp, &recs)
	require.Len(t, recs.Personalized, 1)
	assert.Equal(t, core.DefaultExplanations, recs.Explanations)

	resp = do(t, http.MethodGet, srv.URL+"/api/recommendations/behavior", s.Token, "")
	var after BehaviorResponse
	decode(t, resp, &after)
	require.NotNil(t, after.UserBehavior)
	assert.Equal(t, []string{"laptop"}, after.UserBehavior.Searches)
}

func TestTrack(t *testing.T) {
	srv := newTestServer(t)
	s := newSession(t, srv)

	resp := do(t, http.MethodPost, srv.URL+"/api/recommendations/track", s.Token, `{"action":"purchase","value":"1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/recommendations/track", s.Token, `{"action":"view"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/recommendations/track", s.Token, `{"action":"view","value":"1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/recommendations/behavior", s.Token, "")
	var out BehaviorResponse
	decode(t, resp, &out)
	require.NotNil(t, out.UserBehavior)
	assert.Equal(t, []string{"1"}, out.UserBehavior.Viewed)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	do(t, http.MethodGet, srv.URL+"/api/search?q=laptop", "", "")

	resp := do(t, http.MethodGet, srv.URL+"/metrics", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "shopassist_searches_total")
}
