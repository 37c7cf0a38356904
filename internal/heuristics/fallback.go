package heuristics

import "strings"

const (
	fallbackBase    = "I can help you find Dell products! "
	fallbackClosing = "Use the search bar to find specific products, or click the chat icon for more detailed assistance."
)

// FallbackBranch is one keyword check of the fallback policy.
type FallbackBranch struct {
	Name        string
	Keywords    []string
	Clause      string
	Suggestions []string
}

// FallbackBranches are checked in order; the first match wins.
var FallbackBranches = []FallbackBranch{
	{
		Name:        "laptop",
		Keywords:    []string{"laptop"},
		Clause:      "For laptops, I recommend checking out our XPS, Inspiron, and Latitude series. ",
		Suggestions: []string{"XPS laptops", "Budget laptops", "Gaming laptops", "Business laptops"},
	},
	{
		Name:        "desktop",
		Keywords:    []string{"desktop"},
		Clause:      "For desktops, consider our OptiPlex, Precision, and Alienware series. ",
		Suggestions: []string{"OptiPlex desktops", "Gaming desktops", "Workstations", "All-in-one PCs"},
	},
	{
		Name:        "monitor",
		Keywords:    []string{"monitor"},
		Clause:      "We have a great selection of monitors including UltraSharp, gaming, and portable options. ",
		Suggestions: []string{"UltraSharp monitors", "Gaming monitors", "4K monitors", "Portable monitors"},
	},
	{
		Name:        "budget",
		Keywords:    []string{"budget", "cheap"},
		Clause:      "For budget-friendly options, check out our Inspiron series and Dell Outlet for refurbished deals. ",
		Suggestions: []string{"Budget laptops", "Dell Outlet", "Student discounts", "Refurbished PCs"},
	},
}

var GenericFallbackSuggestions = []string{"Search for laptops", "Find gaming computers", "Browse monitors", "Look for accessories"}

type FallbackResponse struct {
	Branch      string
	Message     string
	Suggestions []string
}

// Fallback builds the canned answer served when the completion service is unavailable.
func Fallback(userText string) FallbackResponse {
	lower := strings.ToLower(userText)

	for _, b := range FallbackBranches {
		if (Rule{Keywords: b.Keywords}).Matches(lower) {
			return FallbackResponse{
				Branch:      b.Name,
				Message:     fallbackBase + b.Clause + fallbackClosing,
				Suggestions: append([]string(nil), b.Suggestions...),
			}
		}
	}

	return FallbackResponse{
		Branch:      "generic",
		Message:     fallbackBase + fallbackClosing,
		Suggestions: append([]string(nil), GenericFallbackSuggestions...),
	}
}
