package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/windoze95/manas-api/internal/ai"
	"github.com/windoze95/manas-api/internal/cache"
	"github.com/windoze95/manas-api/internal/integrations"
	"github.com/windoze95/manas-api/internal/logger"
	"go.uber.org/zap"
)

const (
	learnCacheTTL     = time.Hour
	learnResultCount  = 5
	restaurantResults = 5
)

// resolvePlace geocodes the extracted city, then the profile location, and
// falls back to the centre of the US.
func (s *AssistantService) resolvePlace(ctx context.Context, turn *Turn, city string) integrations.Place {
	candidates := []string{strings.TrimSpace(city)}
	if turn.Profile != nil {
		candidates = append(candidates, strings.TrimSpace(turn.Profile.Location))
	}
	for _, name := range candidates {
		if name == "" {
			continue
		}
		place, err := s.Weather.Geocode(ctx, name)
		if err == nil {
			return *place
		}
		if !errors.Is(err, integrations.ErrLocationNotFound) {
			logger.Get().Warn("geocoding failed", zap.String("location", name), zap.Error(err))
		}
	}
	return integrations.DefaultPlace
}

func (s *AssistantService) handleWeather(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	if s.Weather == nil {
		return nil, integrations.ErrNotConfigured
	}
	city, err := s.Text.ExtractQuery(ctx, ai.QueryWeather, turn.Transcript)
	if err != nil {
		logger.Get().Debug("weather location extraction failed", zap.Error(err))
		city = ""
	}

	place := s.resolvePlace(ctx, turn, city)
	w, err := s.Weather.Current(ctx, place)
	if err != nil {
		return nil, err
	}
	return &HandlerResult{
		Message: describeWeather(w),
		Data: map[string]interface{}{
			"location":       w.Location,
			"latitude":       w.Latitude,
			"longitude":      w.Longitude,
			"temperature_c":  w.TemperatureC,
			"temperature_f":  w.TemperatureF,
			"condition":      w.Condition,
			"humidity":       w.Humidity,
			"wind_speed_kmh": w.WindSpeedKmh,
		},
	}, nil
}

func describeWeather(w *integrations.Weather) string {
	return fmt.Sprintf("It's currently %d°F (%d°C) and %s in %s, with %d%% humidity and winds of %d km/h.",
		w.TemperatureF, w.TemperatureC, strings.ToLower(w.Condition), w.Location, w.Humidity, w.WindSpeedKmh)
}

type learnAnswer struct {
	Query     string            `json:"query"`
	Answer    string            `json:"answer"`
	Citations []ai.SearchResult `json:"citations"`
}

func learnCacheKey(query string) string {
	return "learn:" + strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

func (s *AssistantService) handleLearn(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	if s.Search == nil {
		return nil, integrations.ErrNotConfigured
	}
	query, err := s.Text.ExtractQuery(ctx, ai.QueryLearn, turn.Transcript)
	if err != nil || strings.TrimSpace(query) == "" {
		query = turn.Transcript
	}

	key := learnCacheKey(query)
	var answer learnAnswer
	if ok, err := cache.GetJSON(ctx, s.Cache, key, &answer); err == nil && ok {
		return learnResult(&answer), nil
	}

	results, err := s.Search.Search(ctx, query, learnResultCount)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}
	if len(results) == 0 {
		return nil, userErrorf(CodeNotFound, "I couldn't find anything about '%s'.", query)
	}

	var snippets strings.Builder
	for i, r := range results {
		fmt.Fprintf(&snippets, "[%d] %s (%s)\n%s\n\n", i+1, r.Title, r.Source, r.Description)
	}
	instruction := "Explain the topic the user asked about using only these search results. " +
		"Question: \"" + turn.Transcript + "\""
	if turn.Profile != nil && turn.Profile.LearningLevel != "" {
		instruction += " Pitch the explanation at a " + turn.Profile.LearningLevel + " level."
	}
	text, err := s.Text.Summarize(ctx, instruction, snippets.String())
	if err != nil {
		return nil, fmt.Errorf("compose answer: %w", err)
	}

	answer = learnAnswer{Query: query, Answer: text, Citations: results}
	if err := cache.SetJSON(ctx, s.Cache, key, answer, learnCacheTTL); err != nil {
		logger.Get().Debug("failed to cache answer", zap.Error(err))
	}
	return learnResult(&answer), nil
}

func learnResult(a *learnAnswer) *HandlerResult {
	return &HandlerResult{
		Message: a.Answer,
		Data:    map[string]interface{}{"query": a.Query, "citations": a.Citations},
	}
}

func (s *AssistantService) handleNews(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	if s.News == nil {
		return nil, integrations.ErrNotConfigured
	}
	query, err := s.Text.ExtractQuery(ctx, ai.QueryNews, turn.Transcript)
	if err != nil {
		logger.Get().Debug("news query extraction failed", zap.Error(err))
		query = ""
	}
	query = strings.TrimSpace(query)

	articles, err := s.News.Headlines(ctx, query)
	if err != nil {
		return nil, err
	}
	label := query
	if integrations.IsGeneralNewsQuery(query) {
		label = "today"
	}
	data := map[string]interface{}{"query": query, "articles": articles}
	if len(articles) == 0 {
		return &HandlerResult{
			Message: fmt.Sprintf("I couldn't find any recent news stories regarding '%s'.", label),
			Data:    data,
		}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here are the top news stories for %s.", label)
	for i, a := range articles {
		fmt.Fprintf(&b, "\n%d. %s", i+1, a.Title)
		if a.Source != "" {
			fmt.Fprintf(&b, " (%s)", a.Source)
		}
	}
	return &HandlerResult{Message: b.String(), Data: data}, nil
}

// splitRestaurantQuery reads the "term | location" form produced by query
// extraction.
func splitRestaurantQuery(q string) (term, location string) {
	term, location, _ = strings.Cut(q, "|")
	return strings.TrimSpace(term), strings.TrimSpace(location)
}

func (s *AssistantService) handleRestaurants(ctx context.Context, turn *Turn) (*HandlerResult, error) {
	if s.Restaurants == nil {
		return nil, integrations.ErrNotConfigured
	}
	q, err := s.Text.ExtractQuery(ctx, ai.QueryRestaurants, turn.Transcript)
	if err != nil {
		return nil, fmt.Errorf("extract restaurant query: %w", err)
	}
	term, location := splitRestaurantQuery(q)
	if term == "" {
		term = "restaurants"
	}

	near := integrations.DefaultPlace
	if location == "" && turn.Profile != nil {
		location = strings.TrimSpace(turn.Profile.Location)
	}

	businesses, err := s.Restaurants.Search(ctx, term, location, near, restaurantResults)
	if err != nil {
		return nil, err
	}
	where := location
	if where == "" {
		where = near.Name
	}
	data := map[string]interface{}{"term": term, "location": where, "restaurants": businesses}
	if len(businesses) == 0 {
		return &HandlerResult{
			Message: fmt.Sprintf("I couldn't find any %s near %s.", term, where),
			Data:    data,
		}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here are %d places for %s near %s:", len(businesses), term, where)
	for i, biz := range businesses {
		fmt.Fprintf(&b, "\n%d. %s, rated %.1f", i+1, biz.Name, biz.Rating)
		if biz.Price != "" {
			fmt.Fprintf(&b, " (%s)", biz.Price)
		}
	}
	return &HandlerResult{Message: b.String(), Data: data}, nil
}
