package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shopassist.dev/assistant/internal/store"
)

// ElasticSearcher queries a remote Elasticsearch index over its JSON API.
type ElasticSearcher struct {
	baseURL string
	index   string
	apiKey  string
	client  *http.Client
}

func NewElasticSearcher(baseURL, index, apiKey string) (*ElasticSearcher, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid elasticsearch url %q: %w", baseURL, err)
	}
	return &ElasticSearcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		index:   index,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type esHit struct {
	ID     string  `json:"_id"`
	Score  float64 `json:"_score"`
	Source struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Price       string   `json:"price"`
		Category    string   `json:"category"`
		Brand       string   `json:"brand"`
		Image       string   `json:"image"`
		URL         string   `json:"url"`
		Rating      *float64 `json:"rating"`
		Reviews     *int     `json:"reviews"`
	} `json:"_source"`
}

type esResponse struct {
	Hits struct {
		Hits []esHit `json:"hits"`
	} `json:"hits"`
}

func (e *ElasticSearcher) Search(ctx context.Context, query string, maxResults int) ([]store.Product, error) {
	if strings.TrimSpace(query) == "" {
		return []store.Product{}, nil
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	fields := make([]string, 0, len(searchFields))
	for _, f := range searchFields {
		if f.boost != 1 {
			fields = append(fields, fmt.Sprintf("%s^%g", f.name, f.boost))
		} else {
			fields = append(fields, f.name)
		}
	}

	body, err := json.Marshal(map[string]any{
		"size": maxResults,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    fields,
				"type":      "best_fields",
				"fuzziness": "AUTO",
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/"+url.PathEscape(e.index)+"/_search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "ApiKey "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("elasticsearch returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed esResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode elasticsearch response: %w", err)
	}

	out := make([]store.Product, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		s := h.Source
		if s.Title == "" {
			s.Title = "Untitled"
		}
		out = append(out, store.Product{
			ID:          h.ID,
			Title:       s.Title,
			Description: s.Description,
			Price:       s.Price,
			Category:    s.Category,
			Brand:       s.Brand,
			Image:       s.Image,
			URL:         s.URL,
			Rating:      s.Rating,
			Reviews:     s.Reviews,
			Score:       h.Score,
		})
	}
	return out, nil
}
