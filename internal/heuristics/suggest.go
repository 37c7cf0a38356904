package heuristics

import "strings"

const (
	MaxSuggestions      = 4
	MaxFollowUps        = 3
	MaxQuerySuggestions = 5
)

// DeriveSuggestions returns up to four suggestions from the reply and query
// rule tables. It returns an empty slice when nothing matched.
func DeriveSuggestions(reply, query string) []string {
	out := Apply(ReplySuggestionRules, reply, nil)
	if query != "" {
		out = Apply(QuerySuggestionRules, query, out)
	}
	return limit(dedupe(out), MaxSuggestions)
}

// DeriveFollowUps returns up to three clarifying questions. The first user
// turn of a session is seeded with use-case and budget questions.
func DeriveFollowUps(reply, query string, isFirstUserTurn bool) []string {
	var out []string
	if isFirstUserTurn {
		out = append(out, FirstTurnQuestions...)
	}
	out = Apply(ReplyFollowUpRules, reply, out)
	if query != "" {
		out = Apply(QueryFollowUpRules, query, out)
	}
	return limit(dedupe(out), MaxFollowUps)
}

// MentionSuggestions derives suggestions for a one-shot answer from the
// products it mentions, padding with general suggestions when fewer than
// three were found.
func MentionSuggestions(reply, query string) []string {
	out := Apply(ProductMentionRules, reply, nil)

	combined := strings.ToLower(reply) + "\n" + strings.ToLower(query)
	out = dedupe(Apply(QueryOrReplyMentionRules, combined, out))

	if len(out) < 3 {
		out = append(out, GeneralSuggestions...)
	}
	return limit(out, MaxSuggestions)
}

// MatchQuerySuggestions filters the static query suggestions by substring.
func MatchQuerySuggestions(prefix string) []string {
	needle := strings.ToLower(prefix)
	out := []string{}
	for _, s := range QuerySuggestions {
		if strings.Contains(strings.ToLower(s), needle) {
			out = append(out, s)
		}
	}
	return limit(out, MaxQuerySuggestions)
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

func limit(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
