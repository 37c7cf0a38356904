// Package heuristics turns reply and query text into follow-up suggestions,
// clarifying questions and canned fallback answers.
//
// Everything here is keyword matching over lower-cased text. Rules are plain
// data evaluated in slice order, so each table can be tested and extended on
// its own.
package heuristics

import "strings"

// Rule emits Items when the inspected text contains any of Keywords.
type Rule struct {
	Keywords []string
	Items    []string
}

func (r Rule) Matches(lowerText string) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(lowerText, kw) {
			return true
		}
	}
	return false
}

// Apply appends the items of every matching rule, in rule order.
func Apply(rules []Rule, text string, out []string) []string {
	lower := strings.ToLower(text)
	for _, r := range rules {
		if r.Matches(lower) {
			out = append(out, r.Items...)
		}
	}
	return out
}

// ReplySuggestionRules are matched against the assistant reply.
var ReplySuggestionRules = []Rule{
	{Keywords: []string{"laptop", "notebook"}, Items: []string{"Gaming laptops", "Business laptops", "Budget laptops"}},
	{Keywords: []string{"desktop", "workstation"}, Items: []string{"High-performance desktops", "Budget desktops", "Gaming desktops"}},
	{Keywords: []string{"server", "enterprise"}, Items: []string{"PowerEdge servers", "Storage solutions", "Networking equipment"}},
	{Keywords: []string{"monitor", "display"}, Items: []string{"4K monitors", "Gaming monitors", "Ultrawide displays"}},
	{Keywords: []string{"accessories", "peripherals"}, Items: []string{"Keyboards and mice", "Docking stations", "Cables and adapters"}},
}

// QuerySuggestionRules are matched against the current search query.
var QuerySuggestionRules = []Rule{
	{Keywords: []string{"gaming"}, Items: []string{"Gaming accessories", "RGB lighting", "High-refresh monitors"}},
	{Keywords: []string{"business", "office"}, Items: []string{"Business software", "Security solutions", "Support services"}},
	{Keywords: []string{"creative", "design"}, Items: []string{"Color-accurate monitors", "Stylus pens", "Graphics tablets"}},
}

var FirstTurnQuestions = []string{
	"What will you primarily use this for?",
	"What's your budget range?",
}

var ReplyFollowUpRules = []Rule{
	{Keywords: []string{"compare", "difference"}, Items: []string{"Which specific models should I compare?", "What features are most important to you?"}},
	{Keywords: []string{"price", "cost"}, Items: []string{"Are you looking for financing options?", "Would you like to see current deals?"}},
	{Keywords: []string{"specification", "technical"}, Items: []string{"Do you need help understanding any specs?", "Would you like configuration recommendations?"}},
}

var QueryFollowUpRules = []Rule{
	{Keywords: []string{"laptop"}, Items: []string{"What screen size do you prefer?", "How important is battery life?"}},
	{Keywords: []string{"desktop"}, Items: []string{"Do you need a pre-built or custom configuration?", "What software will you be running?"}},
	{Keywords: []string{"server"}, Items: []string{"How many users will access this server?", "What type of data will you be storing?"}},
}

// ProductMentionRules drive suggestions for one-shot answers shown next to search results.
// Each rule looks at the reply; the gaming and budget rules also look at the query.
var ProductMentionRules = []Rule{
	{Keywords: []string{"alienware"}, Items: []string{"Alienware laptops", "Alienware desktops", "Gaming laptops"}},
	{Keywords: []string{"xps"}, Items: []string{"XPS laptops", "XPS desktops", "Premium laptops"}},
	{Keywords: []string{"inspiron"}, Items: []string{"Inspiron laptops", "Budget laptops", "Student laptops"}},
	{Keywords: []string{"latitude"}, Items: []string{"Latitude laptops", "Business laptops", "Professional laptops"}},
	{Keywords: []string{"optiplex"}, Items: []string{"OptiPlex desktops", "Business desktops", "Office computers"}},
	{Keywords: []string{"precision"}, Items: []string{"Precision workstations", "Professional workstations", "CAD laptops"}},
}

var QueryOrReplyMentionRules = []Rule{
	{Keywords: []string{"gaming"}, Items: []string{"Gaming laptops", "Gaming desktops", "Gaming accessories"}},
	{Keywords: []string{"budget"}, Items: []string{"Budget laptops", "Affordable options", "Student discounts"}},
}

var GeneralSuggestions = []string{"Compare products", "View all laptops", "Check deals"}

// DefaultSuggestions are used when a reply matched no suggestion rule.
var (
	DefaultSuggestionsWithQuery = []string{"Related products", "Similar options", "Accessories"}
	DefaultSuggestions          = []string{"Laptops", "Desktops", "Monitors", "Servers"}
)

// FallbackFollowUps accompany a fallback message in a conversation.
var FallbackFollowUps = []string{
	"What's your primary use case?",
	"What's your budget range?",
	"Any specific requirements?",
}

// QuerySuggestions is the static completion list offered while typing a search.
var QuerySuggestions = []string{
	"laptops",
	"desktops",
	"monitors",
	"gaming computers",
	"workstations",
	"servers",
	"accessories",
	"budget laptops",
	"business laptops",
	"gaming laptops",
}
