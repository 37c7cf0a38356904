// Package images resolves display images for products and memoizes the result.
package images

import "strings"

type Source string

const (
	SourcePlaceholder Source = "placeholder"
	SourceAI          Source = "ai"
)

type Image struct {
	URL    string `json:"url"`
	Alt    string `json:"alt"`
	Source Source `json:"source"`
}

// TypeRule maps keywords to a product type.
type TypeRule struct {
	Type     string
	Keywords []string
}

const placeholderParams = "?w=400&h=300&fit=crop&crop=center"

var PlaceholderURLs = map[string]string{
	"laptop":      "https://images.unsplash.com/photo-1496181133206-80ce9b88a853" + placeholderParams,
	"desktop":     "https://images.unsplash.com/photo-1587831990711-23ca6441447b" + placeholderParams,
	"monitor":     "https://images.unsplash.com/photo-1527443224154-c4a3942d3acf" + placeholderParams,
	"server":      "https://images.unsplash.com/photo-1558494949-ef010cbdcc31" + placeholderParams,
	"workstation": "https://images.unsplash.com/photo-1587831990711-23ca6441447b" + placeholderParams,
	"gaming":      "https://images.unsplash.com/photo-1493711662062-fa541adb3fc8" + placeholderParams,
	"business":    "https://images.unsplash.com/photo-1560472354-b33ff0c44a43" + placeholderParams,
	"default":     "https://images.unsplash.com/photo-1593640408182-d31b5e8b2bdc" + placeholderParams,
}

// TitleRules are checked in order; the first match wins.
var TitleRules = []TypeRule{
	{"laptop", []string{"laptop", "notebook", "inspiron", "xps", "latitude"}},
	{"desktop", []string{"desktop", "optiplex", "vostro"}},
	{"monitor", []string{"monitor", "display", "ultrasharp"}},
	{"server", []string{"server", "poweredge", "rack"}},
	{"workstation", []string{"workstation", "precision"}},
	{"gaming", []string{"gaming", "alienware"}},
	{"business", []string{"business", "enterprise"}},
}

// CategoryRules override the title match when the category names a type.
var CategoryRules = []TypeRule{
	{"laptop", []string{"laptop"}},
	{"desktop", []string{"desktop"}},
	{"monitor", []string{"monitor"}},
	{"server", []string{"server"}},
	{"workstation", []string{"workstation"}},
	{"gaming", []string{"gaming"}},
	{"business", []string{"business"}},
}

// ProductType classifies a product for placeholder selection.
func ProductType(title, category string) string {
	productType := match(TitleRules, strings.ToLower(title))
	if t := match(CategoryRules, strings.ToLower(category)); t != "" {
		productType = t
	}
	if productType == "" {
		return "default"
	}
	return productType
}

func Placeholder(title, category string) Image {
	return Image{
		URL:    PlaceholderURLs[ProductType(title, category)],
		Alt:    title + " - Dell Product",
		Source: SourcePlaceholder,
	}
}

func match(rules []TypeRule, lower string) string {
	if lower == "" {
		return ""
	}
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r.Type
			}
		}
	}
	return ""
}
