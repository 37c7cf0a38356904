// Package recommend partitions a candidate product list into recommendation buckets.
package recommend

import (
	"sort"
	"strconv"
	"strings"

	"shopassist.dev/assistant/internal/store"
)

const (
	BucketSize        = 3
	MinPersonalRating = 4.0
	MinTrendingReview = 10
)

type Buckets struct {
	Personalized []store.Product `json:"personalized"`
	Related      []store.Product `json:"related"`
	Trending     []store.Product `json:"trending"`
}

// Empty reports whether all three buckets are empty.
func (b Buckets) Empty() bool {
	return len(b.Personalized) == 0 && len(b.Related) == 0 && len(b.Trending) == 0
}

// Rank is deterministic: the same candidates always yield the same buckets.
// Buckets are never padded and never borrow from one another.
func Rank(candidates []store.Product) Buckets {
	return Buckets{
		Personalized: Personalized(candidates),
		Related:      Related(candidates),
		Trending:     Trending(candidates),
	}
}

// Personalized keeps rated products at or above 4.0, best rated first.
func Personalized(candidates []store.Product) []store.Product {
	out := filter(candidates, func(p store.Product) bool {
		return p.Rating != nil && *p.Rating >= MinPersonalRating
	})
	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].Rating > *out[j].Rating
	})
	return top(out)
}

// Related keeps products whose category occurs in the candidate set, cheapest first.
// Products without a category are not related to anything.
func Related(candidates []store.Product) []store.Product {
	categories := make(map[string]struct{})
	for _, p := range candidates {
		if p.Category != "" {
			categories[p.Category] = struct{}{}
		}
	}

	out := filter(candidates, func(p store.Product) bool {
		_, ok := categories[p.Category]
		return ok
	})
	sort.SliceStable(out, func(i, j int) bool {
		return ParsePrice(out[i].Price) < ParsePrice(out[j].Price)
	})
	return top(out)
}

// Trending keeps products with more than ten reviews, most reviewed first.
func Trending(candidates []store.Product) []store.Product {
	out := filter(candidates, func(p store.Product) bool {
		return p.Reviews != nil && *p.Reviews > MinTrendingReview
	})
	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].Reviews > *out[j].Reviews
	})
	return top(out)
}

// Positional splits candidates into [0:3], [3:6] and [6:9].
func Positional(candidates []store.Product) Buckets {
	return Buckets{
		Personalized: window(candidates, 0),
		Related:      window(candidates, BucketSize),
		Trending:     window(candidates, 2*BucketSize),
	}
}

// ParsePrice strips everything but digits and dots and reads the leading
// number, so "$1,299.99" is 1299.99. Unparseable prices are 0.
func ParsePrice(price string) float64 {
	var b strings.Builder
	for _, r := range price {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	// keep the longest prefix with at most one dot
	end := len(cleaned)
	if first := strings.IndexByte(cleaned, '.'); first >= 0 {
		if second := strings.IndexByte(cleaned[first+1:], '.'); second >= 0 {
			end = first + 1 + second
		}
	}

	v, err := strconv.ParseFloat(cleaned[:end], 64)
	if err != nil {
		return 0
	}
	return v
}

func filter(in []store.Product, keep func(store.Product) bool) []store.Product {
	out := make([]store.Product, 0, len(in))
	for _, p := range in {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func top(in []store.Product) []store.Product {
	if len(in) > BucketSize {
		return in[:BucketSize]
	}
	return in
}

func window(in []store.Product, start int) []store.Product {
	if start >= len(in) {
		return []store.Product{}
	}
	end := start + BucketSize
	if end > len(in) {
		end = len(in)
	}
	return append([]store.Product{}, in[start:end]...)
}
