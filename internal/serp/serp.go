// Package serp queries SerpAPI for web search results.
package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://serpapi.com/search"

// Client is a SerpAPI search client.
type Client struct {
	apiKey  string
	baseURL string
	engine  string
	num     int
	httpc   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithEngine sets the search engine (default "google").
func WithEngine(engine string) Option {
	return func(c *Client) {
		if engine != "" {
			c.engine = engine
		}
	}
}

// WithNumResults sets the number of organic results per query (default 10).
func WithNumResults(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.num = n
		}
	}
}

// WithBaseURL overrides the SerpAPI endpoint. Used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpc = h
		}
	}
}

// NewClient creates a SerpAPI client. If apiKey is empty, the
// SERPAPI_API_KEY environment variable is used.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("SERPAPI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("serp client requires an API key (set SERPAPI_API_KEY)")
	}

	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		engine:  "google",
		num:     10,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Link is one organic search result link.
type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// OrganicResult is one organic result as returned by SerpAPI.
type OrganicResult struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Date     string `json:"date,omitempty"`
	Source   string `json:"source,omitempty"`
}

// Results holds the parsed response for one search query.
type Results struct {
	Query          string
	Organic        []OrganicResult
	KnowledgeGraph map[string]any
	AnswerBox      map[string]any
}

type searchResponse struct {
	Organic        []OrganicResult `json:"organic_results"`
	KnowledgeGraph map[string]any  `json:"knowledge_graph"`
	AnswerBox      map[string]any  `json:"answer_box"`
	Error          string          `json:"error"`
}

// Search runs one query against SerpAPI.
func (c *Client) Search(ctx context.Context, query string) (*Results, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("api_key", c.apiKey)
	params.Set("engine", c.engine)
	params.Set("num", strconv.Itoa(c.num))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read serpapi response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serpapi status %d: %s", resp.StatusCode, truncateBody(body))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode serpapi response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("serpapi error: %s", parsed.Error)
	}

	return &Results{
		Query:          query,
		Organic:        parsed.Organic,
		KnowledgeGraph: parsed.KnowledgeGraph,
		AnswerBox:      parsed.AnswerBox,
	}, nil
}

// Links returns the organic result links.
func (r *Results) Links() []Link {
	links := make([]Link, 0, len(r.Organic))
	for _, o := range r.Organic {
		if o.Link == "" {
			continue
		}
		links = append(links, Link{Title: o.Title, URL: o.Link})
	}
	return links
}

// Format renders the results as text for the model: answer box first,
// then knowledge graph, then organic results.
func (r *Results) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search Results for: %s\n\n", r.Query)

	if len(r.AnswerBox) > 0 {
		b.WriteString("## Answer Box\n")
		if v, ok := r.AnswerBox["answer"].(string); ok && v != "" {
			fmt.Fprintf(&b, "%s\n\n", v)
		}
		if v, ok := r.AnswerBox["snippet"].(string); ok && v != "" {
			fmt.Fprintf(&b, "%s\n\n", v)
		}
	}

	if len(r.KnowledgeGraph) > 0 {
		b.WriteString("## Knowledge Graph\n")
		if v, ok := r.KnowledgeGraph["title"].(string); ok && v != "" {
			fmt.Fprintf(&b, "**%s**\n", v)
		}
		if v, ok := r.KnowledgeGraph["description"].(string); ok && v != "" {
			fmt.Fprintf(&b, "%s\n", v)
		}
		if v, ok := r.KnowledgeGraph["type"].(string); ok && v != "" {
			fmt.Fprintf(&b, "Type: %s\n", v)
		}
		b.WriteString("\n")
	}

	if len(r.Organic) > 0 {
		b.WriteString("## Organic Results\n")
		for i, o := range r.Organic {
			fmt.Fprintf(&b, "%d. %s\n", i+1, o.Title)
			if o.Snippet != "" {
				fmt.Fprintf(&b, "   %s\n", o.Snippet)
			}
			if o.Link != "" {
				fmt.Fprintf(&b, "   %s\n", o.Link)
			}
			if o.Date != "" {
				fmt.Fprintf(&b, "   Date: %s\n", o.Date)
			}
			b.WriteString("\n")
		}
	} else if len(r.AnswerBox) == 0 && len(r.KnowledgeGraph) == 0 {
		b.WriteString("No results found.\n")
	}

	return b.String()
}

func truncateBody(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
