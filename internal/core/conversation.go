package core

import (
	"context"
	"time"

	"go.uber.org/zap"
	"shopassist.dev/assistant/internal/heuristics"
	"shopassist.dev/assistant/internal/llm"
	"shopassist.dev/assistant/internal/metrics"
	"shopassist.dev/assistant/internal/session"
	"shopassist.dev/assistant/internal/store"
)

const (
	historyTurns = 10

	conversationMaxTokens = 800
	recommendMaxTokens    = 1000
	quickChatMaxTokens    = 500
	defaultTemperature    = 0.7
)

type ReplyMetadata struct {
	SearchQuery     string `json:"search_query,omitempty"`
	TurnCount       int    `json:"turn_count"`
	TopicsDiscussed int    `json:"topics_discussed"`
}

type Reply struct {
	Message           string        `json:"message"`
	Suggestions       []string      `json:"suggestions"`
	FollowUpQuestions []string      `json:"follow_up_questions"`
	Metadata          ReplyMetadata `json:"metadata"`
	Fallback          bool          `json:"fallback"`
}

// ConversationService answers a user turn with full session context.
type ConversationService struct {
	sessions  *session.Store
	completer llm.Completer
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewConversationService(sessions *session.Store, completer llm.Completer, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *ConversationService {
	return &ConversationService{
		sessions:  sessions,
		completer: completer,
		timeout:   timeout,
		logger:    logger,
		metrics:   m,
	}
}

// Respond appends the user turn, asks the completion service for a reply and
// appends that reply. Two turns are appended per call, also when the
// completion fails and the canned fallback is served instead.
func (s *ConversationService) Respond(ctx context.Context, key, userText, searchQuery string, candidates []store.Product) Reply {
	var tc *session.TurnContext
	if searchQuery != "" {
		tc = &session.TurnContext{SearchQuery: searchQuery}
	}

	sess := s.sessions.AppendTurn(ctx, key, session.RoleUser, userText, tc)

	req := llm.Request{
		System:      buildConversationInstruction(sess, searchQuery, candidates),
		History:     toMessages(sess.Turns[:len(sess.Turns)-1], historyTurns),
		User:        userText,
		MaxTokens:   conversationMaxTokens,
		Temperature: defaultTemperature,
	}

	reply := Reply{}
	text, err := complete(ctx, s.completer, s.timeout, req)
	s.metrics.Completion("conversation", llm.Classify(err))
	if err != nil {
		s.logger.Warn("Completion failed, serving fallback reply",
			zap.String("session", key), zap.String("outcome", llm.Classify(err)), zap.Error(err))
		s.metrics.Fallback("conversation")

		fb := heuristics.Fallback(userText)
		reply.Message = fb.Message
		reply.Suggestions = fb.Suggestions
		reply.FollowUpQuestions = append([]string(nil), heuristics.FallbackFollowUps...)
		reply.Fallback = true
	} else {
		reply.Message = text
		reply.Suggestions = heuristics.DeriveSuggestions(text, searchQuery)
		if len(reply.Suggestions) == 0 {
			reply.Suggestions = defaultSuggestions(searchQuery)
		}
		reply.FollowUpQuestions = heuristics.DeriveFollowUps(text, searchQuery, sess.UserTurnCount() == 1)
	}

	sess = s.sessions.AppendTurn(ctx, key, session.RoleAssistant, reply.Message, tc)

	reply.Metadata = ReplyMetadata{
		SearchQuery:     searchQuery,
		TurnCount:       len(sess.Turns),
		TopicsDiscussed: len(sess.History.Topics),
	}
	if reply.FollowUpQuestions == nil {
		reply.FollowUpQuestions = []string{}
	}
	return reply
}

func (s *ConversationService) Summary(ctx context.Context, key string) session.Summary {
	return s.sessions.Summarize(ctx, key)
}

func (s *ConversationService) UpdatePreferences(ctx context.Context, key string, p session.Preferences) session.Preferences {
	return s.sessions.UpdatePreferences(ctx, key, p).Preferences
}

func defaultSuggestions(searchQuery string) []string {
	if searchQuery != "" {
		return append([]string(nil), heuristics.DefaultSuggestionsWithQuery...)
	}
	return append([]string(nil), heuristics.DefaultSuggestions...)
}

// toMessages keeps the last n turns, oldest first. Respond passes the turns
// before the current user turn, which travels separately as Request.User, so
// the history window is the ten turns preceding it.
func toMessages(turns []session.Turn, n int) []llm.Message {
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		role := llm.RoleUser
		if t.Role == session.RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Text: t.Text})
	}
	return out
}

// complete bounds a completion call by timeout.
func complete(ctx context.Context, c llm.Completer, timeout time.Duration, req llm.Request) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return c.Complete(ctx, req)
}
