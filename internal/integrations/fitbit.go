package integrations

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const fitbitBaseURL = "https://api.fitbit.com/1/user/-"

// Activity is a day's activity totals.
type Activity struct {
	Steps         int     `json:"steps"`
	DistanceMiles float64 `json:"distance"`
	CaloriesOut   int     `json:"calories_out"`
	ActiveMinutes int     `json:"active_minutes"`
	RestingHR     int     `json:"resting_heart_rate,omitempty"`
}

// FitbitClient reads activity data. The HTTP client must carry the user's
// OAuth token.
type FitbitClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewFitbitClient creates a FitbitClient on an authorized HTTP client.
func NewFitbitClient(hc *http.Client) *FitbitClient {
	return &FitbitClient{httpClient: hc, baseURL: fitbitBaseURL}
}

// DailyActivity returns activity totals for the given day.
func (f *FitbitClient) DailyActivity(ctx context.Context, day time.Time) (*Activity, error) {
	var out struct {
		Summary struct {
			Steps               int `json:"steps"`
			CaloriesOut         int `json:"caloriesOut"`
			FairlyActiveMinutes int `json:"fairlyActiveMinutes"`
			VeryActiveMinutes   int `json:"veryActiveMinutes"`
			RestingHeartRate    int `json:"restingHeartRate"`
			Distances           []struct {
				Activity string  `json:"activity"`
				Distance float64 `json:"distance"`
			} `json:"distances"`
		} `json:"summary"`
	}
	endpoint := fmt.Sprintf("%s/activities/date/%s.json", f.baseURL, day.Format("2006-01-02"))
	if err := doJSON(ctx, f.httpClient, "fitbit", http.MethodGet, endpoint, map[string]string{"Accept-Language": "en_US"}, nil, &out); err != nil {
		return nil, err
	}

	a := &Activity{
		Steps:         out.Summary.Steps,
		CaloriesOut:   out.Summary.CaloriesOut,
		ActiveMinutes: out.Summary.FairlyActiveMinutes + out.Summary.VeryActiveMinutes,
		RestingHR:     out.Summary.RestingHeartRate,
	}
	for _, d := range out.Summary.Distances {
		if d.Activity == "total" {
			a.DistanceMiles = d.Distance
		}
	}
	return a, nil
}

// Describe renders the activity as a sentence, or "" when nothing was logged.
func (a *Activity) Describe() string {
	if a == nil || a.Steps == 0 {
		return ""
	}
	s := fmt.Sprintf("You've walked %d steps covering %.2f miles and burned %d calories today.",
		a.Steps, a.DistanceMiles, a.CaloriesOut)
	if a.RestingHR > 0 {
		s += fmt.Sprintf(" Your resting heart rate is %d bpm.", a.RestingHR)
	}
	return s
}
