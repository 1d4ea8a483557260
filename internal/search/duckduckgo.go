// ABOUTME: DuckDuckGo HTML search executor used as the built-in web search tool
// ABOUTME: Parses result titles, links and snippets from the keyless HTML endpoint
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

// Defaults for the DuckDuckGo executor
const (
	DefaultBaseURL    = "https://html.duckduckgo.com/html/"
	DefaultMaxResults = 5
	MaxResultsLimit   = 10
	DefaultTimeout    = 15 * time.Second
	DefaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	maxBodySize    = 5 * 1024 * 1024
	maxSnippetLen  = 300
	maxParsedLinks = 30
)

// ErrEmptyQuery is returned when a search is issued without a query
var ErrEmptyQuery = errors.New("query is required")

// Result is a single web search hit
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// DuckDuckGo searches the web through DuckDuckGo's HTML interface
type DuckDuckGo struct {
	BaseURL    string
	MaxResults int
	UserAgent  string

	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Option configures a DuckDuckGo executor
type Option func(*DuckDuckGo)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(d *DuckDuckGo) { d.client = c }
}

// WithRate limits outgoing requests to perSec with a burst of one.
// A non-positive rate disables limiting.
func WithRate(perSec float64) Option {
	return func(d *DuckDuckGo) {
		if perSec <= 0 {
			d.limiter = nil
			return
		}
		d.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(d *DuckDuckGo) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithBaseURL points the executor at another endpoint
func WithBaseURL(u string) Option {
	return func(d *DuckDuckGo) { d.BaseURL = u }
}

// NewDuckDuckGo creates an executor with sane defaults
func NewDuckDuckGo(opts ...Option) *DuckDuckGo {
	d := &DuckDuckGo{
		BaseURL:    DefaultBaseURL,
		MaxResults: DefaultMaxResults,
		UserAgent:  DefaultUserAgent,
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.client == nil {
		d.client = &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return errors.New("too many redirects")
				}
				return nil
			},
		}
	}
	return d
}

// Search runs query and returns at most maxResults hits, clamped to [1, 10].
// Zero uses the executor default.
func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	maxResults = clampResults(maxResults, d.MaxResults)

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.BaseURL+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", d.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	results := ParseHTML(string(body))
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	d.logger.Debug("web search", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

// SearchText runs query and renders the hits as prompt text
func (d *DuckDuckGo) SearchText(ctx context.Context, query string, maxResults int) (string, error) {
	results, err := d.Search(ctx, query, maxResults)
	if err != nil {
		return "", err
	}
	return FormatResults(query, results), nil
}

func clampResults(n, fallback int) int {
	if n == 0 {
		n = fallback
	}
	if n < 1 {
		return 1
	}
	if n > MaxResultsLimit {
		return MaxResultsLimit
	}
	return n
}

// ParseHTML extracts results from a DuckDuckGo HTML page. Each title,
// link and snippet is read from the same result container.
func ParseHTML(page string) []Result {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil
	}

	var results []Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxParsedLinks {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" &&
			hasClass(n, "result") && hasClass(n, "results_links") {
			if r, ok := extractResult(n); ok {
				results = append(results, r)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results
}

func extractResult(container *html.Node) (Result, bool) {
	var r Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result__a") && r.URL == "":
				r.URL = actualURL(attr(n, "href"))
				r.Title = textContent(n)
				return
			case hasClass(n, "result__snippet") && r.Snippet == "":
				r.Snippet = textContent(n)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(container)
	return r, r.URL != "" && r.Title != ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textContent joins the text under n with runs of whitespace collapsed
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// actualURL unwraps DuckDuckGo's //duckduckgo.com/l/?uddg= redirect links
func actualURL(link string) string {
	if strings.Contains(link, "uddg=") {
		if strings.HasPrefix(link, "//") {
			link = "https:" + link
		}
		parsed, err := url.Parse(link)
		if err != nil {
			return ""
		}
		if target := parsed.Query().Get("uddg"); target != "" {
			return target
		}
	}
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	return ""
}

// FormatResults renders results as a numbered list for prompt injection
func FormatResults(query string, results []Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Web search results for: %s\n", query)
	if len(results) == 0 {
		b.WriteString("No results found.\n")
		return b.String()
	}
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", truncateRunes(r.Snippet, maxSnippetLen))
		}
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
