package integrations

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/windoze95/manas-api/internal/cache"
	"google.golang.org/api/option"
)

func TestWeather_GeocodeAndCurrentWithCache(t *testing.T) {
	var forecastCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/geo":
			if r.URL.Query().Get("name") != "Austin" {
				t.Errorf("expected first component of the place name, got %q", r.URL.Query().Get("name"))
			}
			w.Write([]byte(`{"results":[{"name":"Austin","admin1":"Texas","country":"United States","latitude":30.2672,"longitude":-97.7431}]}`))
		case "/forecast":
			forecastCalls.Add(1)
			w.Write([]byte(`{"current":{"temperature_2m":20.4,"relative_humidity_2m":55,"weather_code":2,"wind_speed_10m":12.6}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	wc := NewWeatherClient(cache.NewMemoryCache())
	wc.geocodeURL = srv.URL + "/geo"
	wc.forecastURL = srv.URL + "/forecast"

	ctx := context.Background()
	place, err := wc.Geocode(ctx, "Austin, TX")
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	if place.Name != "Austin, Texas, United States" {
		t.Errorf("unexpected place name %q", place.Name)
	}

	weather, err := wc.Current(ctx, *place)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if weather.TemperatureC != 20 || weather.TemperatureF != 69 {
		t.Errorf("unexpected temperatures %d C / %d F", weather.TemperatureC, weather.TemperatureF)
	}
	if weather.Condition != "Partly cloudy" || weather.Humidity != 55 || weather.WindSpeedKmh != 13 {
		t.Errorf("unexpected weather %+v", weather)
	}

	if _, err := wc.Current(ctx, *place); err != nil {
		t.Fatalf("cached current: %v", err)
	}
	if forecastCalls.Load() != 1 {
		t.Errorf("expected second lookup to hit the cache, got %d upstream calls", forecastCalls.Load())
	}
}

func TestWeather_GeocodeNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	wc := NewWeatherClient(cache.NewMemoryCache())
	wc.geocodeURL = srv.URL
	if _, err := wc.Geocode(context.Background(), "Nowhereville"); !errors.Is(err, ErrLocationNotFound) {
		t.Errorf("expected ErrLocationNotFound, got %v", err)
	}
	if _, err := wc.Geocode(context.Background(), "  "); !errors.Is(err, ErrLocationNotFound) {
		t.Errorf("expected ErrLocationNotFound for blank input, got %v", err)
	}
}

func TestWeatherCondition(t *testing.T) {
	cases := map[int]string{0: "Clear sky", 3: "Overcast", 63: "Rain", 75: "Snow", 96: "Thunderstorm", 42: "Unknown"}
	for code, want := range cases {
		if got := weatherCondition(code); got != want {
			t.Errorf("weatherCondition(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestNews_FiltersRemovedAndLimitsToFive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "news-key" {
			t.Errorf("missing api key header")
		}
		if !strings.HasSuffix(r.URL.Path, "/everything") {
			t.Errorf("expected everything endpoint for topic query, got %s", r.URL.Path)
		}
		var b strings.Builder
		b.WriteString(`{"status":"ok","articles":[{"title":"[Removed]","url":"https://x"}`)
		for i := 0; i < 7; i++ {
			b.WriteString(`,{"title":"Story","url":"https://news.example/s","source":{"name":"Example"},"publishedAt":"2025-01-01T00:00:00Z"}`)
		}
		b.WriteString(`]}`)
		w.Write([]byte(b.String()))
	}))
	defer srv.Close()

	nc := NewNewsClient("news-key", cache.NewMemoryCache())
	nc.baseURL = srv.URL

	articles, err := nc.Headlines(context.Background(), "electric cars")
	if err != nil {
		t.Fatalf("headlines: %v", err)
	}
	if len(articles) != 5 {
		t.Fatalf("expected 5 articles, got %d", len(articles))
	}
	for _, a := range articles {
		if strings.Contains(a.Title, "[Removed]") {
			t.Error("removed article was not filtered")
		}
	}
}

func TestNews_GeneralQueryUsesTopHeadlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/top-headlines") {
			t.Errorf("expected top-headlines, got %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"ok","articles":[]}`))
	}))
	defer srv.Close()

	nc := NewNewsClient("k", cache.NewMemoryCache())
	nc.baseURL = srv.URL
	if _, err := nc.Headlines(context.Background(), "Latest News"); err != nil {
		t.Fatalf("headlines: %v", err)
	}
}

func TestNews_NotConfigured(t *testing.T) {
	nc := NewNewsClient("", cache.NewMemoryCache())
	if _, err := nc.Headlines(context.Background(), "x"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestYelp_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer yelp-key" {
			t.Errorf("missing bearer token")
		}
		if r.URL.Query().Get("location") != "Seattle" {
			t.Errorf("expected location param, got %q", r.URL.Query().Get("location"))
		}
		w.Write([]byte(`{"businesses":[{"id":"b1","name":"Pho Bac","rating":4.5,"review_count":900,"price":"$","url":"https://yelp.com/b1","categories":[{"title":"Vietnamese"}],"location":{"display_address":["1314 S Jackson St","Seattle, WA"]}}]}`))
	}))
	defer srv.Close()

	yc := NewYelpClient("yelp-key")
	yc.baseURL = srv.URL
	results, err := yc.Search(context.Background(), "pho", "Seattle", Place{}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Address != "1314 S Jackson St, Seattle, WA" || results[0].Tags[0] != "Vietnamese" {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestCalendar_ListAndCreate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/calendars/primary/events":
			if r.URL.Query().Get("singleEvents") != "true" {
				t.Errorf("expected singleEvents=true")
			}
			w.Write([]byte(`{"items":[
				{"id":"e1","summary":"Standup","start":{"dateTime":"2025-03-10T09:00:00-05:00"},"end":{"dateTime":"2025-03-10T09:15:00-05:00"}},
				{"id":"e2","start":{"date":"2025-03-10"},"end":{"date":"2025-03-11"}}]}`))
		case r.Method == http.MethodPost && r.URL.Path == "/calendars/primary/events":
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"summary":"Dentist"`) {
				t.Errorf("unexpected create body %s", body)
			}
			w.Write([]byte(`{"id":"new","summary":"Dentist","start":{"dateTime":"2025-03-11T14:00:00Z"},"end":{"dateTime":"2025-03-11T15:00:00Z"}}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/calendars/primary/events/e1":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	cc, err := NewCalendarClient(ctx, srv.Client(), option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatal(err)
	}

	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	events, err := cc.ListEvents(ctx, from, from.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Summary != "Standup" || events[0].AllDay {
		t.Errorf("unexpected timed event %+v", events[0])
	}
	if !events[1].AllDay || events[1].Summary != "Untitled Event" {
		t.Errorf("unexpected all-day event %+v", events[1])
	}

	start := time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC)
	created, err := cc.CreateEvent(ctx, "Dentist", "", start, start.Add(time.Hour))
	if err != nil || created.ID != "new" {
		t.Fatalf("create: %+v, %v", created, err)
	}

	if err := cc.DeleteEvent(ctx, "e1"); err != nil {
		t.Errorf("delete: %v", err)
	}
}

func TestGmail_ListAndThread(t *testing.T) {
	body := base64.URLEncoding.EncodeToString([]byte("Meeting moved to 3pm."))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gmail/v1/users/me/messages":
			if r.URL.Query().Get("q") != "is:unread" {
				t.Errorf("expected query passthrough, got %q", r.URL.Query().Get("q"))
			}
			w.Write([]byte(`{"messages":[{"id":"m1"}]}`))
		case "/gmail/v1/users/me/messages/m1":
			w.Write([]byte(`{"id":"m1","threadId":"t1","snippet":"hi","labelIds":["INBOX","UNREAD"],"payload":{"headers":[{"name":"Subject","value":"Lunch"},{"name":"From","value":"Ann <ann@example.com>"}]}}`))
		case "/gmail/v1/users/me/threads/t1":
			w.Write([]byte(`{"messages":[{"id":"m1","threadId":"t1","payload":{"mimeType":"multipart/alternative","parts":[{"mimeType":"text/html","body":{"data":"PGI-"}},{"mimeType":"text/plain","body":{"data":"` + body + `"}}]}}]}`))
		case "/gmail/v1/users/me/labels/INBOX":
			w.Write([]byte(`{"messagesUnread":4}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	gc, err := NewGmailClient(ctx, srv.Client(), option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatal(err)
	}

	emails, err := gc.ListMessages(ctx, "is:unread", 5)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(emails) != 1 || emails[0].Subject != "Lunch" || !emails[0].Unread {
		t.Errorf("unexpected emails %+v", emails)
	}
	if SenderName(emails[0].From) != "Ann" {
		t.Errorf("expected sender name Ann, got %q", SenderName(emails[0].From))
	}

	thread, err := gc.GetThread(ctx, "t1")
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	if len(thread) != 1 || thread[0].Body != "Meeting moved to 3pm." {
		t.Errorf("unexpected thread %+v", thread)
	}

	n, err := gc.UnreadCount(ctx)
	if err != nil || n != 4 {
		t.Errorf("expected 4 unread, got %d, %v", n, err)
	}
}

func TestFitbit_DailyActivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/activities/date/2025-03-10.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"summary":{"steps":8000,"caloriesOut":2100,"fairlyActiveMinutes":10,"veryActiveMinutes":20,"distances":[{"activity":"total","distance":3.8}]}}`))
	}))
	defer srv.Close()

	fc := NewFitbitClient(srv.Client())
	fc.baseURL = srv.URL
	a, err := fc.DailyActivity(context.Background(), time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if a.Steps != 8000 || a.ActiveMinutes != 30 || a.DistanceMiles != 3.8 {
		t.Errorf("unexpected activity %+v", a)
	}
	if !strings.Contains(a.Describe(), "8000 steps") {
		t.Errorf("unexpected description %q", a.Describe())
	}
	if (&Activity{}).Describe() != "" {
		t.Error("expected empty description for no steps")
	}
}

func TestDoJSON_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("expired"))
	}))
	defer srv.Close()

	err := doJSON(context.Background(), srv.Client(), "svc", http.MethodGet, srv.URL, nil, nil, nil)
	if !IsStatus(err, http.StatusUnauthorized) {
		t.Errorf("expected 401 status error, got %v", err)
	}
}

func TestCalendar_APIErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":401,"message":"Invalid Credentials"}}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	cc, err := NewCalendarClient(ctx, srv.Client(), option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatal(err)
	}
	err = cc.DeleteEvent(ctx, "e1")
	if !IsStatus(err, http.StatusUnauthorized) {
		t.Errorf("expected 401 status error, got %v", err)
	}
}
