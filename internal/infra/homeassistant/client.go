package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"homechat/internal/domain"
)

const (
	Mode = "homeassistant"

	// DefaultTimeout bounds one service call.
	DefaultTimeout = 2 * time.Second
)

// Dispatcher sends actions to the Home Assistant REST API. Each action is a
// single POST; failures are reported in the returned line and never retried.
type Dispatcher struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewDispatcher(baseURL, token string, logger *slog.Logger) *Dispatcher {
	// Remove trailing slash if present
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &Dispatcher{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger,
	}
}

func (d *Dispatcher) Mode() string { return Mode }

func (d *Dispatcher) Dispatch(ctx context.Context, action domain.Action) string {
	id := action.EntityID()
	if id == "" {
		return domain.MissingEntityMessage
	}

	service := "turn_off"
	if action.TurnsOn() {
		service = "turn_on"
	}

	// "light.salon_isigi" -> /api/services/light/turn_on
	path := fmt.Sprintf("/api/services/%s/%s", domain.EntityDomain(id), service)

	if err := d.call(ctx, path, action.ServiceData()); err != nil {
		d.logger.Warn("home assistant call failed", "entity", id, "service", service, "error", err)
		return fmt.Sprintf("❌ HA Hatası: %v", err)
	}

	d.logger.Info("home assistant call", "entity", id, "service", service)
	return fmt.Sprintf("✅ **HA (Gerçek):** %s İletildi", domain.DisplayName(id))
}

// Ping checks that the API is reachable and the token is accepted.
func (d *Dispatcher) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/api/", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.token)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("unauthorized: check your Home Assistant token")
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("home assistant API error %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) call(ctx context.Context, path string, data map[string]any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+d.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("home assistant API error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
