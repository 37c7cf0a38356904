package store

// Product is a catalog entry as returned by the document search service.
// Optional attributes are zero-valued ("" or nil) when absent.
type Product struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       string   `json:"price,omitempty"` // free text, e.g. "$1,299.99"
	Category    string   `json:"category,omitempty"`
	Brand       string   `json:"brand,omitempty"`
	Image       string   `json:"image,omitempty"`
	URL         string   `json:"url,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	Reviews     *int     `json:"reviews,omitempty"`
	Score       float64  `json:"score"`
}
