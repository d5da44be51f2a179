package integrations

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"
	"github.com/windoze95/manas-api/internal/util"
)

const yelpBaseURL = "https://api.yelp.com/v3"

// Business is one restaurant search result.
type Business struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"review_count"`
	Price       string   `json:"price,omitempty"`
	Address     string   `json:"address"`
	Phone       string   `json:"phone,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	URL         string   `json:"url"`
	Tags        []string `json:"tags"`
	DistanceM   float64  `json:"distance_m,omitempty"`
}

// YelpClient searches businesses with the Yelp Fusion API.
type YelpClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewYelpClient creates a YelpClient. An empty key disables it.
func NewYelpClient(apiKey string) *YelpClient {
	return &YelpClient{
		apiKey:     apiKey,
		baseURL:    yelpBaseURL,
		httpClient: defaultHTTPClient(),
		breaker:    util.NewBreaker("yelp"),
	}
}

type yelpSearchResponse struct {
	Businesses []struct {
		ID          string  `json:"id"`
		Name        string  `json:"name"`
		Rating      float64 `json:"rating"`
		ReviewCount int     `json:"review_count"`
		Price       string  `json:"price"`
		Phone       string  `json:"display_phone"`
		ImageURL    string  `json:"image_url"`
		URL         string  `json:"url"`
		Distance    float64 `json:"distance"`
		Categories  []struct {
			Title string `json:"title"`
		} `json:"categories"`
		Location struct {
			DisplayAddress []string `json:"display_address"`
		} `json:"location"`
	} `json:"businesses"`
}

// Search finds up to limit restaurants matching term near location. When
// location is empty the place's coordinates are used instead.
func (y *YelpClient) Search(ctx context.Context, term, location string, near Place, limit int) ([]Business, error) {
	if y.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{}
	params.Set("term", term)
	params.Set("categories", "restaurants")
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("sort_by", "best_match")
	if location != "" {
		params.Set("location", location)
	} else {
		params.Set("latitude", fmt.Sprintf("%.4f", near.Latitude))
		params.Set("longitude", fmt.Sprintf("%.4f", near.Longitude))
	}

	resp, err := util.Guard(y.breaker, func() (*yelpSearchResponse, error) {
		var out yelpSearchResponse
		err := doJSON(ctx, y.httpClient, "yelp", http.MethodGet, y.baseURL+"/businesses/search?"+params.Encode(),
			map[string]string{"Authorization": "Bearer " + y.apiKey}, nil, &out)
		return &out, err
	})
	if err != nil {
		return nil, err
	}

	businesses := make([]Business, 0, len(resp.Businesses))
	for _, b := range resp.Businesses {
		tags := make([]string, 0, len(b.Categories))
		for _, c := range b.Categories {
			tags = append(tags, c.Title)
		}
		businesses = append(businesses, Business{
			ID:          b.ID,
			Name:        b.Name,
			Rating:      b.Rating,
			ReviewCount: b.ReviewCount,
			Price:       b.Price,
			Address:     strings.Join(b.Location.DisplayAddress, ", "),
			Phone:       b.Phone,
			ImageURL:    b.ImageURL,
			URL:         b.URL,
			Tags:        tags,
			DistanceM:   b.Distance,
		})
	}
	return businesses, nil
}
