package integrations

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/windoze95/manas-api/internal/cache"
	"github.com/windoze95/manas-api/internal/logger"
	"github.com/windoze95/manas-api/internal/util"
	"go.uber.org/zap"
)

const (
	openMeteoGeocodeURL  = "https://geocoding-api.open-meteo.com/v1/search"
	openMeteoForecastURL = "https://api.open-meteo.com/v1/forecast"
	weatherCacheTTL      = 15 * time.Minute
)

// DefaultPlace is used when neither the request nor the profile names a location.
var DefaultPlace = Place{Name: "United States", Latitude: 37.0902, Longitude: -95.7129}

// ErrLocationNotFound is returned when geocoding finds no match.
var ErrLocationNotFound = errors.New("location not found")

// Place is a geocoded location.
type Place struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Weather is the current conditions at a place.
type Weather struct {
	Location     string  `json:"location"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	TemperatureC int     `json:"temperature_c"`
	TemperatureF int     `json:"temperature_f"`
	Condition    string  `json:"condition"`
	Humidity     int     `json:"humidity"`
	WindSpeedKmh int     `json:"wind_speed_kmh"`
}

// WeatherClient reads current conditions from Open-Meteo, which needs no key.
type WeatherClient struct {
	httpClient  *http.Client
	cache       cache.Cache
	breaker     *gobreaker.CircuitBreaker
	geocodeURL  string
	forecastURL string
}

// NewWeatherClient creates a WeatherClient that caches results in c.
func NewWeatherClient(c cache.Cache) *WeatherClient {
	return &WeatherClient{
		httpClient:  defaultHTTPClient(),
		cache:       c,
		breaker:     util.NewBreaker("open-meteo"),
		geocodeURL:  openMeteoGeocodeURL,
		forecastURL: openMeteoForecastURL,
	}
}

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Admin1    string  `json:"admin1"`
		Country   string  `json:"country"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

// Geocode resolves a place name. "Austin, TX" style input is searched by its
// first component.
func (w *WeatherClient) Geocode(ctx context.Context, name string) (*Place, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrLocationNotFound
	}
	city := strings.TrimSpace(strings.Split(name, ",")[0])

	params := url.Values{}
	params.Set("name", city)
	params.Set("count", "1")
	params.Set("language", "en")

	resp, err := util.Guard(w.breaker, func() (*geocodeResponse, error) {
		var out geocodeResponse
		err := doJSON(ctx, w.httpClient, "geocoding", http.MethodGet, w.geocodeURL+"?"+params.Encode(), nil, nil, &out)
		return &out, err
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, ErrLocationNotFound
	}

	r := resp.Results[0]
	parts := []string{r.Name}
	if r.Admin1 != "" && r.Admin1 != r.Name {
		parts = append(parts, r.Admin1)
	}
	if r.Country != "" {
		parts = append(parts, r.Country)
	}
	return &Place{Name: strings.Join(parts, ", "), Latitude: r.Latitude, Longitude: r.Longitude}, nil
}

type forecastResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		Humidity    float64 `json:"relative_humidity_2m"`
		WeatherCode int     `json:"weather_code"`
		WindSpeed   float64 `json:"wind_speed_10m"`
	} `json:"current"`
}

// Current returns the conditions at place, served from cache for 15 minutes
// per rounded coordinate pair.
func (w *WeatherClient) Current(ctx context.Context, place Place) (*Weather, error) {
	key := fmt.Sprintf("weather:%.2f,%.2f", place.Latitude, place.Longitude)

	var cached Weather
	if hit, err := cache.GetJSON(ctx, w.cache, key, &cached); err == nil && hit {
		return &cached, nil
	}

	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", place.Latitude))
	params.Set("longitude", fmt.Sprintf("%.4f", place.Longitude))
	params.Set("current", "temperature_2m,relative_humidity_2m,weather_code,wind_speed_10m")
	params.Set("wind_speed_unit", "kmh")

	resp, err := util.Guard(w.breaker, func() (*forecastResponse, error) {
		var out forecastResponse
		err := doJSON(ctx, w.httpClient, "open-meteo", http.MethodGet, w.forecastURL+"?"+params.Encode(), nil, nil, &out)
		return &out, err
	})
	if err != nil {
		return nil, err
	}

	name := place.Name
	if name == "" {
		name = fmt.Sprintf("%.2f, %.2f", place.Latitude, place.Longitude)
	}
	tempC := resp.Current.Temperature
	weather := &Weather{
		Location:     name,
		Latitude:     place.Latitude,
		Longitude:    place.Longitude,
		TemperatureC: int(math.Round(tempC)),
		TemperatureF: int(math.Round(tempC*9/5 + 32)),
		Condition:    weatherCondition(resp.Current.WeatherCode),
		Humidity:     int(math.Round(resp.Current.Humidity)),
		WindSpeedKmh: int(math.Round(resp.Current.WindSpeed)),
	}

	if err := cache.SetJSON(ctx, w.cache, key, weather, weatherCacheTTL); err != nil {
		logger.Get().Warn("failed to cache weather", zap.String("key", key), zap.Error(err))
	}
	return weather, nil
}

// weatherCondition maps a WMO weather code to a short description.
func weatherCondition(code int) string {
	switch {
	case code == 0:
		return "Clear sky"
	case code == 1:
		return "Mainly clear"
	case code == 2:
		return "Partly cloudy"
	case code == 3:
		return "Overcast"
	case code == 45 || code == 48:
		return "Fog"
	case code >= 51 && code <= 57:
		return "Drizzle"
	case code >= 61 && code <= 67:
		return "Rain"
	case code >= 71 && code <= 77:
		return "Snow"
	case code >= 80 && code <= 82:
		return "Rain showers"
	case code == 85 || code == 86:
		return "Snow showers"
	case code >= 95:
		return "Thunderstorm"
	default:
		return "Unknown"
	}
}
