package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/aihelper/aihelper/internal/cache"
	"github.com/charmbracelet/log"
)

// Weather defaults.
const (
	DefaultWeatherURL      = "http://api.weatherapi.com/v1/current.json"
	DefaultWeatherLocation = "Sofia, Bulgaria"
	WeatherAPIKeyEnv       = "WEATHER_API_KEY"
	weatherTTL             = 10 * time.Minute
)

// ErrMissingWeatherKey is returned when no weather API key is configured.
var ErrMissingWeatherKey = errors.New("WEATHER_API_KEY environment variable not set")

// Weather is the current weather at a location.
type Weather struct {
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"`
	Conditions  string  `json:"conditions"`
}

// WeatherClient fetches the current weather from weatherapi.com.
type WeatherClient struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Cache      *cache.ExpiringCache[Weather]
	Logger     *log.Logger
}

// NewWeatherClient returns a client keyed from the environment. Answers
// are cached under cacheDir when it is not empty.
func NewWeatherClient(cacheDir string, httpClient *http.Client) (*WeatherClient, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &WeatherClient{
		APIKey:     os.Getenv(WeatherAPIKeyEnv),
		BaseURL:    DefaultWeatherURL,
		HTTPClient: httpClient,
		Logger:     log.New(io.Discard),
	}
	if cacheDir != "" {
		ec, err := cache.NewExpiring[Weather](cacheDir)
		if err != nil {
			return nil, err
		}
		c.Cache = ec
	}
	return c, nil
}

type weatherResponse struct {
	Location struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"location"`
	Current struct {
		TempC     float64 `json:"temp_c"`
		Condition struct {
			Text string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Current returns the weather at location, or at the default location
// when it is empty.
func (c *WeatherClient) Current(ctx context.Context, location string) (Weather, error) {
	if location == "" {
		location = DefaultWeatherLocation
	}
	if c.APIKey == "" {
		return Weather{}, ErrMissingWeatherKey
	}
	key := weatherKey(location)
	if c.Cache != nil {
		if w, err := c.Cache.Get(key); err == nil {
			return w, nil
		}
	}

	base := c.BaseURL
	if base == "" {
		base = DefaultWeatherURL
	}
	q := url.Values{"key": {c.APIKey}, "q": {location}, "aqi": {"no"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return Weather{}, fmt.Errorf("weather request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Weather{}, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Weather{}, fmt.Errorf("weather response: %w", err)
	}
	var wr weatherResponse
	decodeErr := json.Unmarshal(body, &wr)
	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if decodeErr == nil && wr.Error != nil && wr.Error.Message != "" {
			msg = wr.Error.Message
		}
		return Weather{}, fmt.Errorf("Weather API error: %s", msg) //nolint:staticcheck
	}
	if decodeErr != nil {
		return Weather{}, fmt.Errorf("weather response: %w", decodeErr)
	}

	w := Weather{
		Location:    wr.Location.Name + ", " + wr.Location.Country,
		Temperature: wr.Current.TempC,
		Conditions:  wr.Current.Condition.Text,
	}
	if c.Cache != nil {
		if err := c.Cache.Put(key, w, weatherTTL); err != nil && c.Logger != nil {
			c.Logger.Warn("could not cache weather", "location", location, "err", err)
		}
	}
	return w, nil
}

func weatherKey(location string) string {
	return "weather-" + strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return '-'
	}, location)
}
