// OpenWeather implementation of [WeatherProvider].
//
// API reference: https://openweathermap.org/current
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/aidj/internal/models"
	"github.com/desertthunder/aidj/internal/shared"
)

// WeatherService implements [WeatherProvider] against the OpenWeather
// current-conditions endpoint.
type WeatherService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewWeatherService creates an OpenWeather client. An empty API key is not
// an error: the weather signal is optional and Current reports
// [shared.ErrMissingCredentials] per call instead.
func NewWeatherService(cfg shared.WeatherConfig) *WeatherService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openweathermap.org/data/2.5"
	}
	return &WeatherService{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (w *WeatherService) Name() string {
	return "OpenWeather"
}

// Current fetches conditions for a city in metric units.
func (w *WeatherService) Current(ctx context.Context, city string) (*models.WeatherContext, error) {
	if w.apiKey == "" {
		return nil, fmt.Errorf("openweather api key: %w", shared.ErrMissingCredentials)
	}
	if city == "" {
		return nil, fmt.Errorf("city: %w", shared.ErrMissingArgument)
	}

	params := url.Values{}
	params.Set("q", city)
	params.Set("units", "metric")
	params.Set("appid", w.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/weather?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: openweather status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var result struct {
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	weather := &models.WeatherContext{Temperature: result.Main.Temp}
	if len(result.Weather) > 0 {
		weather.Condition = result.Weather[0].Main
		weather.Description = result.Weather[0].Description
	}
	return weather, nil
}
