package factors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"luma/internal"
	"luma/internal/config"
)

// Client talks to the central factor registry. The extraction engine
// itself never touches the network; only the sync service uses this.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

type scrollPayload struct {
	Factors  []map[string]any `json:"factors"`
	ScrollID *string          `json:"scrollId"`
	Total    *int             `json:"total"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.FactorTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.FactorRateLimit),
	}
}

func (c *Client) GetFactorsScrollAll(ctx context.Context) ([]internal.EmissionFactor, error) {
	return c.getFactorsScroll(ctx, map[string]string{})
}

// GetFactorsIncremental fetches only factors revised within the
// configured lookback window.
func (c *Client) GetFactorsIncremental(ctx context.Context) ([]internal.EmissionFactor, error) {
	return c.getFactorsScroll(ctx, map[string]string{
		"day": strconv.Itoa(c.cfg.FactorLookbackDay),
	})
}

func (c *Client) getFactorsScroll(ctx context.Context, params map[string]string) ([]internal.EmissionFactor, error) {
	all := make([]internal.EmissionFactor, 0)
	seen := map[string]struct{}{}
	var scrollID string

	for {
		query := map[string]string{}
		for k, v := range params {
			query[k] = v
		}
		if scrollID != "" {
			query["scrollId"] = scrollID
		}

		body, err := c.fetchJSON(ctx, "factor/scroll", query)
		if err != nil {
			return nil, err
		}

		var payload scrollPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}

		for _, raw := range payload.Factors {
			factor, err := toEmissionFactor(raw)
			if err != nil {
				continue
			}
			all = append(all, factor)
		}

		if payload.ScrollID == nil || *payload.ScrollID == "" || len(payload.Factors) == 0 {
			break
		}
		if _, ok := seen[*payload.ScrollID]; ok {
			break
		}
		seen[*payload.ScrollID] = struct{}{}
		scrollID = *payload.ScrollID
	}

	return all, nil
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.FactorAPIToken) == "" {
		return nil, errors.New("missing FACTOR_API_TOKEN")
	}

	baseURL := strings.TrimRight(c.cfg.FactorAPIBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		c.limiter.WaitTurn()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.FactorAPIToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("factor registry status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("factor registry error: status=%d body=%s", resp.StatusCode, string(body))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, err
		}
		if !apiResp.Success {
			return nil, fmt.Errorf("factor registry unsuccessful: %s", string(apiResp.Errors))
		}
		return apiResp.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("factor registry request failed")
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func toEmissionFactor(raw map[string]any) (internal.EmissionFactor, error) {
	region, _ := raw["region"].(string)
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		return internal.EmissionFactor{}, errors.New("empty region")
	}

	category, _ := raw["category"].(string)
	if strings.TrimSpace(category) == "" {
		return internal.EmissionFactor{}, errors.New("empty category")
	}

	scope, ok := toInt(raw["scope"])
	if !ok || scope < 1 || scope > 3 {
		return internal.EmissionFactor{}, errors.New("bad scope")
	}

	value, ok := toFloat(raw["value"])
	if !ok || value <= 0 {
		return internal.EmissionFactor{}, errors.New("bad value")
	}

	unit, _ := raw["unit"].(string)
	if strings.TrimSpace(unit) == "" {
		return internal.EmissionFactor{}, errors.New("empty unit")
	}

	validFrom, err := toTime(raw["validFrom"])
	if err != nil {
		return internal.EmissionFactor{}, err
	}

	factor := internal.EmissionFactor{
		Region:    region,
		Category:  internal.Category(strings.ToLower(strings.TrimSpace(category))),
		Scope:     scope,
		Value:     value,
		Unit:      NormalizeUnit(unit),
		ValidFrom: validFrom,
	}
	if source, ok := raw["source"].(string); ok {
		factor.Source = strings.TrimSpace(source)
	}
	if rawUntil, ok := raw["validUntil"]; ok && rawUntil != nil {
		t, err := toTime(rawUntil)
		if err != nil {
			return internal.EmissionFactor{}, err
		}
		factor.ValidUntil = &t
	}

	return factor, nil
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		i, err := t.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toTime(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, errors.New("bad timestamp")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp: %s", s)
}
