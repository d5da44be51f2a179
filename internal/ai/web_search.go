package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"github.com/windoze95/manas-api/internal/logger"
	"github.com/windoze95/manas-api/internal/util"
	"go.uber.org/zap"
)

const (
	googleSearchEndpoint = "https://www.googleapis.com/customsearch/v1"
	braveSearchEndpoint  = "https://api.search.brave.com/res/v1/web/search"

	// braveQuotaPause is how long Brave is skipped after a 429/403.
	braveQuotaPause = time.Hour
)

var errQuotaExhausted = errors.New("search quota exhausted")

// searchBackend is one web search API. A backend that reports its quota
// exhausted is skipped until pausedUntil.
type searchBackend struct {
	name        string
	endpoint    string
	maxCount    int
	pausedUntil atomic.Int64 // unix nanos
	pauseFor    func(now time.Time) time.Time
	query       func(ctx context.Context, endpoint, query string, count int) ([]SearchResult, error)
}

func (b *searchBackend) paused(now time.Time) bool {
	return now.UnixNano() < b.pausedUntil.Load()
}

// WebSearchProvider implements SearchProvider with Brave as the primary
// backend and Google Custom Search as the fallback.
type WebSearchProvider struct {
	brave      *searchBackend
	google     *searchBackend
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	now        func() time.Time
}

// NewWebSearchProvider creates a search provider. A backend without a key
// is never queried.
func NewWebSearchProvider(googleAPIKey, googleCX, braveAPIKey string) *WebSearchProvider {
	p := &WebSearchProvider{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		breaker:    util.NewBreaker("web-search"),
		now:        time.Now,
	}
	if braveAPIKey != "" {
		p.brave = &searchBackend{
			name:     "brave",
			endpoint: braveSearchEndpoint,
			maxCount: 20,
			pauseFor: func(now time.Time) time.Time { return now.Add(braveQuotaPause) },
			query: func(ctx context.Context, endpoint, query string, count int) ([]SearchResult, error) {
				return p.searchBrave(ctx, endpoint, braveAPIKey, query, count)
			},
		}
	}
	if googleAPIKey != "" && googleCX != "" {
		p.google = &searchBackend{
			name:     "google",
			endpoint: googleSearchEndpoint,
			maxCount: 10,
			// The CSE daily quota resets at midnight Pacific.
			pauseFor: nextPacificMidnight,
			query: func(ctx context.Context, endpoint, query string, count int) ([]SearchResult, error) {
				return p.searchGoogle(ctx, endpoint, googleAPIKey, googleCX, query, count)
			},
		}
	}
	return p
}

// Search returns up to count results for query, de-duplicated by URL.
func (p *WebSearchProvider) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is empty")
	}
	if count <= 0 {
		count = 5
	}
	return util.Guard(p.breaker, func() ([]SearchResult, error) {
		return p.search(ctx, query, count)
	})
}

func (p *WebSearchProvider) search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	var lastErr error
	for _, b := range []*searchBackend{p.brave, p.google} {
		if b == nil || b.paused(p.now()) {
			continue
		}
		results, err := b.query(ctx, b.endpoint, query, min(count, b.maxCount))
		if err == nil {
			return dedupeResults(results, count), nil
		}
		if errors.Is(err, errQuotaExhausted) {
			b.pausedUntil.Store(b.pauseFor(p.now()).UnixNano())
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Get().Warn("web search backend failed", zap.String("backend", b.name), zap.Error(err))
		lastErr = err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("no search providers available")
}

// getJSON performs a GET and decodes a 200 response into dest. 429 and 403
// are reported as errQuotaExhausted.
func (p *WebSearchProvider) getJSON(req *http.Request, service string, dest interface{}) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s search request failed: %w", service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", service, err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w (status %d)", service, errQuotaExhausted, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%s API returned status %d: %s", service, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", service, err)
	}
	return nil
}

// --- Brave Search ---

type braveSearchResponse struct {
	Web *struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Thumbnail   *struct {
				Src string `json:"src"`
			} `json:"thumbnail"`
		} `json:"results"`
	} `json:"web"`
}

func (p *WebSearchProvider) searchBrave(ctx context.Context, endpoint, apiKey, query string, count int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(count))
	params.Set("safesearch", "moderate")
	params.Set("text_decorations", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create brave request: %w", err)
	}
	req.Header.Set("X-Subscription-Token", apiKey)
	req.Header.Set("Accept", "application/json")

	var bResp braveSearchResponse
	if err := p.getJSON(req, "brave", &bResp); err != nil {
		return nil, err
	}
	if bResp.Web == nil {
		return nil, nil
	}

	results := make([]SearchResult, 0, len(bResp.Web.Results))
	for _, r := range bResp.Web.Results {
		sr := SearchResult{
			Title:       cleanSnippet(r.Title),
			URL:         r.URL,
			Source:      extractDomain(r.URL),
			Description: cleanSnippet(r.Description),
		}
		if r.Thumbnail != nil {
			sr.ImageURL = r.Thumbnail.Src
		}
		results = append(results, sr)
	}
	return results, nil
}

// --- Google Custom Search ---

type googleSearchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Pagemap *struct {
			CSEThumbnail []struct {
				Src string `json:"src"`
			} `json:"cse_thumbnail"`
		} `json:"pagemap"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *WebSearchProvider) searchGoogle(ctx context.Context, endpoint, apiKey, cx, query string, count int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("key", apiKey)
	params.Set("cx", cx)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(count))
	params.Set("safe", "active")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create google request: %w", err)
	}

	var gResp googleSearchResponse
	if err := p.getJSON(req, "google", &gResp); err != nil {
		return nil, err
	}
	if gResp.Error != nil {
		if gResp.Error.Code == http.StatusTooManyRequests || gResp.Error.Code == http.StatusForbidden {
			return nil, fmt.Errorf("google: %w (%s)", errQuotaExhausted, gResp.Error.Message)
		}
		return nil, fmt.Errorf("google API error %d: %s", gResp.Error.Code, gResp.Error.Message)
	}

	results := make([]SearchResult, 0, len(gResp.Items))
	for _, item := range gResp.Items {
		r := SearchResult{
			Title:       item.Title,
			URL:         item.Link,
			Source:      extractDomain(item.Link),
			Description: cleanSnippet(item.Snippet),
		}
		if item.Pagemap != nil && len(item.Pagemap.CSEThumbnail) > 0 {
			r.ImageURL = item.Pagemap.CSEThumbnail[0].Src
		}
		results = append(results, r)
	}
	return results, nil
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// cleanSnippet strips markup and entities so snippets read well aloud.
func cleanSnippet(s string) string {
	s = html.UnescapeString(htmlTag.ReplaceAllString(s, ""))
	return strings.Join(strings.Fields(s), " ")
}

// dedupeResults drops repeated URLs and caps the list at limit.
func dedupeResults(results []SearchResult, limit int) []SearchResult {
	seen := make(map[string]bool, len(results))
	out := make([]SearchResult, 0, min(len(results), limit))
	for _, r := range results {
		key := strings.TrimSuffix(r.URL, "/")
		if r.URL == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out
}

// nextPacificMidnight returns the next midnight in US Pacific time, or 24
// hours from now when tzdata is unavailable.
func nextPacificMidnight(now time.Time) time.Time {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		return now.Add(24 * time.Hour)
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}

// extractDomain pulls the hostname from a URL string.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
