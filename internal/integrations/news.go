package integrations

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/windoze95/manas-api/internal/cache"
	"github.com/windoze95/manas-api/internal/util"
)

const (
	newsAPIBaseURL = "https://newsapi.org/v2"
	newsCacheTTL   = 10 * time.Minute
	maxArticles    = 5
)

// Article is one news story.
type Article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Source      string `json:"source"`
	Timestamp   string `json:"timestamp"`
}

// NewsClient reads headlines from NewsAPI.
type NewsClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      cache.Cache
	breaker    *gobreaker.CircuitBreaker
}

// NewNewsClient creates a NewsClient. An empty key disables it.
func NewNewsClient(apiKey string, c cache.Cache) *NewsClient {
	return &NewsClient{
		apiKey:     apiKey,
		baseURL:    newsAPIBaseURL,
		httpClient: defaultHTTPClient(),
		cache:      c,
		breaker:    util.NewBreaker("newsapi"),
	}
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		URLToImage  string `json:"urlToImage"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// IsGeneralNewsQuery reports whether the query asks for headlines rather
// than a topic.
func IsGeneralNewsQuery(query string) bool {
	switch strings.ToLower(strings.TrimSpace(query)) {
	case "", "top headlines", "headlines", "latest news", "news", "general", "today's news":
		return true
	default:
		return false
	}
}

// Headlines returns up to five articles for the query. General queries read
// top headlines; anything else searches all articles, newest first.
func (n *NewsClient) Headlines(ctx context.Context, query string) ([]Article, error) {
	if n.apiKey == "" {
		return nil, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("language", "en")
	params.Set("pageSize", "10")
	endpoint := n.baseURL + "/top-headlines"
	if !IsGeneralNewsQuery(query) {
		endpoint = n.baseURL + "/everything"
		params.Set("q", query)
		params.Set("sortBy", "publishedAt")
	}

	key := "news:" + strings.ToLower(strings.TrimSpace(query))
	var cached []Article
	if hit, err := cache.GetJSON(ctx, n.cache, key, &cached); err == nil && hit {
		return cached, nil
	}

	resp, err := util.Guard(n.breaker, func() (*newsAPIResponse, error) {
		var out newsAPIResponse
		err := doJSON(ctx, n.httpClient, "newsapi", http.MethodGet, endpoint+"?"+params.Encode(),
			map[string]string{"X-Api-Key": n.apiKey}, nil, &out)
		return &out, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news: %w", err)
	}

	articles := make([]Article, 0, maxArticles)
	for _, a := range resp.Articles {
		if a.Title == "" || a.URL == "" || strings.Contains(a.Title, "[Removed]") {
			continue
		}
		source := a.Source.Name
		if source == "" {
			source = "News Source"
		}
		articles = append(articles, Article{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			Thumbnail:   a.URLToImage,
			Source:      source,
			Timestamp:   a.PublishedAt,
		})
		if len(articles) == maxArticles {
			break
		}
	}

	_ = cache.SetJSON(ctx, n.cache, key, articles, newsCacheTTL)
	return articles, nil
}
