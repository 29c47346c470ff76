// Package openweather reads current conditions from OpenWeatherMap. Readings
// are cached, and every failure degrades to the simulated reading.
package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"homechat/internal/domain"
)

const (
	DefaultBaseURL  = "https://api.openweathermap.org"
	DefaultCity     = "Ankara"
	DefaultTimeout  = 3 * time.Second
	DefaultCacheTTL = 10 * time.Minute

	defaultHumidity  = 50
	defaultWindSpeed = 10
)

type Config struct {
	APIKey   string
	BaseURL  string
	City     string
	CacheTTL time.Duration
	Timeout  time.Duration
}

type Client struct {
	apiKey     string
	baseURL    string
	city       string
	ttl        time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	// fetchMu keeps concurrent turns from issuing duplicate requests.
	fetchMu  sync.Mutex
	mu       sync.RWMutex
	cached   domain.Reading
	cachedAt time.Time
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.City == "" {
		cfg.City = DefaultCity
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		city:       cfg.City,
		ttl:        cfg.CacheTTL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		now:        time.Now,
	}
}

type apiResponse struct {
	Main struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
}

// Current returns the cached reading while it is fresh, otherwise asks the
// API. It never fails.
func (c *Client) Current(ctx context.Context) domain.Reading {
	if c.apiKey == "" {
		return domain.SimulatedReading(c.city)
	}

	if r, ok := c.fresh(); ok {
		return r
	}

	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	if r, ok := c.fresh(); ok {
		return r
	}

	r, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("weather unavailable, using simulated reading", "city", c.city, "error", err)
		return domain.SimulatedReading(c.city)
	}

	c.mu.Lock()
	c.cached = r
	c.cachedAt = c.now()
	c.mu.Unlock()

	return r
}

func (c *Client) fresh() (domain.Reading, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cachedAt.IsZero() || c.ttl < 0 {
		return domain.Reading{}, false
	}
	if c.now().Sub(c.cachedAt) >= c.ttl {
		return domain.Reading{}, false
	}
	return c.cached, true
}

func (c *Client) fetch(ctx context.Context) (domain.Reading, error) {
	q := url.Values{}
	q.Set("q", c.city)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	q.Set("lang", "tr")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/data/2.5/weather?"+q.Encode(), nil)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Reading{}, fmt.Errorf("openweather API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var data apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return domain.Reading{}, fmt.Errorf("decoding response: %w", err)
	}

	if data.Main.Temp == nil || len(data.Weather) == 0 {
		return domain.Reading{}, fmt.Errorf("incomplete weather data")
	}

	r := domain.Reading{
		City:        c.city,
		Temperature: *data.Main.Temp,
		Description: data.Weather[0].Description,
		Humidity:    defaultHumidity,
		WindSpeed:   defaultWindSpeed,
	}
	if data.Main.Humidity != nil {
		r.Humidity = *data.Main.Humidity
	}
	if data.Wind.Speed != nil {
		r.WindSpeed = *data.Wind.Speed
	}
	return r, nil
}
