package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"shopassist.dev/assistant/internal/auth"
	"shopassist.dev/assistant/internal/behavior"
	"shopassist.dev/assistant/internal/core"
	"shopassist.dev/assistant/internal/search"
	"shopassist.dev/assistant/internal/session"
	"shopassist.dev/assistant/internal/store"
)

type ctxKey int

const sessionKeyCtx ctxKey = iota

// SessionKey returns the session key stored by SessionAuthMiddleware.
func SessionKey(ctx context.Context) string {
	key, _ := ctx.Value(sessionKeyCtx).(string)
	return key
}

type APIHandler struct {
	conversations   *core.ConversationService
	recommendations *core.RecommendationService
	search          *core.SearchService
	secret          string
	tokenTTL        time.Duration
	logger          *zap.Logger
}

func NewAPIHandler(
	conversations *core.ConversationService,
	recommendations *core.RecommendationService,
	searchService *core.SearchService,
	secret string,
	tokenTTL time.Duration,
	logger *zap.Logger,
) *APIHandler {
	return &APIHandler{
		conversations:   conversations,
		recommendations: recommendations,
		search:          searchService,
		secret:          secret,
		tokenTTL:        tokenTTL,
		logger:          logger,
	}
}

func (h *APIHandler) SessionAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		key, err := auth.ValidateSessionToken(h.secret, tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKeyCtx, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

func (h *APIHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	key := uuid.NewString()
	token, err := auth.GenerateSessionToken(h.secret, key, h.tokenTTL)
	if err != nil {
		h.logger.Error("Error generating session token", zap.Error(err))
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, CreateSessionResponse{SessionID: key, Token: token})
}

func (h *APIHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		http.Error(w, "Query parameter is required", http.StatusBadRequest)
		return
	}

	if q.Get("type") == "suggestions" {
		writeJSON(w, http.StatusOK, map[string][]string{"suggestions": h.search.Suggestions(query)})
		return
	}

	size := search.DefaultMaxResults
	if raw := q.Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "size must be a positive integer", http.StatusBadRequest)
			return
		}
		size = n
	}
	includeChat := q.Get("includeChat") == "true"

	writeJSON(w, http.StatusOK, h.search.Search(r.Context(), query, size, includeChat))
}

type ConversationRequest struct {
	Message       string          `json:"message"`
	CurrentSearch string          `json:"currentSearch"`
	SearchResults []store.Product `json:"searchResults"`
}

func (h *APIHandler) ConversationHandler(w http.ResponseWriter, r *http.Request) {
	key := SessionKey(r.Context())

	var req ConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "Message cannot be empty", http.StatusBadRequest)
		return
	}

	reply := h.conversations.Respond(r.Context(), key, req.Message, req.CurrentSearch, req.SearchResults)
	writeJSON(w, http.StatusOK, reply)
}

type SummaryResponse struct {
	Summary   session.Summary `json:"summary"`
	SessionID string          `json:"sessionId"`
}

func (h *APIHandler) ConversationSummaryHandler(w http.ResponseWriter, r *http.Request) {
	key := SessionKey(r.Context())
	writeJSON(w, http.StatusOK, SummaryResponse{
		Summary:   h.conversations.Summary(r.Context(), key),
		SessionID: key,
	})
}

func (h *APIHandler) PreferencesHandler(w http.ResponseWriter, r *http.Request) {
	key := SessionKey(r.Context())

	var req session.Preferences
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.conversations.UpdatePreferences(r.Context(), key, req))
}

type RecommendationRequest struct {
	SearchQuery   string          `json:"searchQuery"`
	SearchResults []store.Product `json:"searchResults"`
}

func (h *APIHandler) RecommendationsHandler(w http.ResponseWriter, r *http.Request) {
	key := SessionKey(r.Context())

	var req RecommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.SearchQuery == "" || req.SearchResults == nil {
		http.Error(w, "searchQuery and searchResults are required", http.StatusBadRequest)
		return
	}

	if err := h.recommendations.Track(r.Context(), key, behavior.ActionSearch, req.SearchQuery); err != nil {
		h.logger.Warn("Failed to track search", zap.String("session", key), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, h.recommendations.Recommend(r.Context(), req.SearchQuery, req.SearchResults, key))
}

type TrackRequest struct {
	Action string `json:"action"`
	Value  string `json:"value"`
}

func (h *APIHandler) TrackHandler(w http.ResponseWriter, r *http.Request) {
	key := SessionKey(r.Context())

	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Value == "" {
		http.Error(w, "value is required", http.StatusBadRequest)
		return
	}

	action, err := behavior.ParseAction(req.Action)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.recommendations.Track(r.Context(), key, action, req.Value); err != nil {
		if errors.Is(err, behavior.ErrUnknownAction) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("Error tracking behavior", zap.String("session", key), zap.Error(err))
		http.Error(w, "Failed to track behavior", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type BehaviorResponse struct {
	UserBehavior *behavior.Profile `json:"userBehavior"`
	SessionID    string            `json:"sessionId"`
}

func (h *APIHandler) BehaviorHandler(w http.ResponseWriter, r *http.Request) {
	key := SessionKey(r.Context())

	resp := BehaviorResponse{SessionID: key}
	if p, ok := h.recommendations.Behavior(r.Context(), key); ok {
		resp.UserBehavior = &p
	}
	writeJSON(w, http.StatusOK, resp)
}
