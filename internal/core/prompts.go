package core

import (
	"fmt"
	"regexp"
	"strings"

	"shopassist.dev/assistant/internal/behavior"
	"shopassist.dev/assistant/internal/session"
	"shopassist.dev/assistant/internal/store"
)

const (
	maxPromptProducts = 5
	maxPromptTopics   = 3
	maxPromptSearches = 5
	maxPromptViews    = 3
	maxPromptClicks   = 3

	consultantPersona = `You are an expert Dell product consultant and conversational AI assistant. You help users find the perfect Dell products through natural, engaging conversations.

CORE CAPABILITIES:
- Provide detailed product recommendations based on user needs
- Answer technical questions about Dell products
- Compare products and explain differences
- Suggest complementary products and accessories
- Help with configuration and customization options
- Provide pricing guidance and deal information

CONVERSATION STYLE:
- Be conversational, friendly, and helpful
- Ask clarifying questions when needed
- Provide specific, actionable advice
- Use natural language, not robotic responses
- Show enthusiasm for technology and Dell products
- Be honest about limitations and alternatives

CURRENT CONTEXT:`

	consultantClosing = "\n\nRemember to maintain context from previous messages and build upon the conversation naturally."

	recommendationSystemInstruction = "You are an expert Dell product recommendation AI. Analyze user behavior, search context, and product relationships to provide intelligent recommendations. Focus on practical, helpful suggestions that match user needs."

	quickChatSystemInstruction = "You are a helpful Dell product assistant. Help users find the right Dell products including laptops, desktops, monitors, and accessories. Provide helpful recommendations and answer questions about Dell products. Keep responses concise and helpful."
)

// buildConversationInstruction renders the persona plus what is known about the session so far.
func buildConversationInstruction(sess session.Session, searchQuery string, candidates []store.Product) string {
	var b strings.Builder
	b.WriteString(consultantPersona)

	if searchQuery != "" {
		fmt.Fprintf(&b, "\n- Current search: %q", searchQuery)
	}
	if len(candidates) > 0 {
		titles := make([]string, 0, maxPromptProducts)
		for _, p := range headProducts(candidates, maxPromptProducts) {
			titles = append(titles, p.Title)
		}
		fmt.Fprintf(&b, "\n- Available products: %s", strings.Join(titles, ", "))
	}
	if topics := sess.History.Topics; len(topics) > 0 {
		fmt.Fprintf(&b, "\n- Previous topics discussed: %s", strings.Join(session.Tail(topics, maxPromptTopics), ", "))
	}
	if products := sess.History.ProductsDiscussed; len(products) > 0 {
		fmt.Fprintf(&b, "\n- Products previously discussed: %s", strings.Join(session.Tail(products, maxPromptTopics), ", "))
	}
	if sess.Preferences.UseCase != "" {
		fmt.Fprintf(&b, "\n- User's use case: %s", sess.Preferences.UseCase)
	}

	b.WriteString(consultantClosing)
	return b.String()
}

// buildRecommendationPrompt asks for explanations; product selection never depends on the answer.
func buildRecommendationPrompt(query string, candidates []store.Product, profile *behavior.Profile) string {
	items := make([]string, 0, maxPromptProducts)
	for _, p := range headProducts(candidates, maxPromptProducts) {
		items = append(items, fmt.Sprintf("%s (%s, %s)", p.Title, p.Category, p.Price))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current search: %q\nCurrent results: %s\n\nGenerate smart product recommendations for this user. Consider:", query, strings.Join(items, ", "))

	if profile != nil {
		fmt.Fprintf(&b, "\nUser behavior:\n- Search history: %s\n- Viewed products: %s\n- Clicked products: %s",
			strings.Join(session.Tail(profile.Searches, maxPromptSearches), ", "),
			strings.Join(session.Tail(profile.Viewed, maxPromptViews), ", "),
			strings.Join(session.Tail(profile.Clicked, maxPromptClicks), ", "))
	}

	b.WriteString(`

Provide recommendations in this format:
PERSONALIZED: [3 products that match user's specific needs and behavior]
RELATED: [3 products that complement the current search]
TRENDING: [3 popular products in similar categories]
EXPLANATIONS: [Brief explanations for each recommendation category]

Focus on Dell products and be specific about why each recommendation makes sense.`)
	return b.String()
}

var explanationPrefix = regexp.MustCompile(`(?i).*EXPLANATIONS?:\s*`)

// extractExplanations collects the text after "EXPLANATIONS:" or "Explanation:" markers.
func extractExplanations(reply string) []string {
	var out []string
	for _, line := range strings.Split(reply, "\n") {
		if !strings.Contains(line, "EXPLANATIONS:") && !strings.Contains(line, "Explanation:") {
			continue
		}
		if text := strings.TrimSpace(explanationPrefix.ReplaceAllString(line, "")); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func headProducts(ps []store.Product, n int) []store.Product {
	if len(ps) > n {
		return ps[:n]
	}
	return ps
}
