// Package usage talks to the OAuth usage endpoint that reports rolling
// five-hour and seven-day utilisation for a subscription.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/healthline/internal/ports"
)

const (
	DefaultBaseURL = "https://api.anthropic.com"
	betaHeader     = "oauth-2025-04-20"
	maxBodyBytes   = 1 << 20
)

var ErrSessionExpired = errors.New("usage session expired")

type window struct {
	Utilization *float64 `json:"utilization"`
	ResetsAt    string   `json:"resets_at"`
}

type payload struct {
	FiveHour *window `json:"five_hour"`
	SevenDay *window `json:"seven_day"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

var _ ports.UsageClient = (*Client)(nil)

func NewClient(httpClient *http.Client, baseURL string, userAgent string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = "healthline/usage"
	}

	return &Client{httpClient: httpClient, baseURL: baseURL, userAgent: userAgent}
}

func (c *Client) FetchUsage(ctx context.Context, accessToken string) (ports.UsageReport, error) {
	token := strings.TrimSpace(accessToken)
	if token == "" {
		return ports.UsageReport{}, errors.New("access token is empty")
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/api/oauth/usage"
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ports.UsageReport{}, fmt.Errorf("create request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+token)
	request.Header.Set("anthropic-beta", betaHeader)
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", c.userAgent)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return ports.UsageReport{}, fmt.Errorf("perform request: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxBodyBytes))
	if err != nil {
		return ports.UsageReport{}, fmt.Errorf("read response: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		if response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden {
			return ports.UsageReport{}, fmt.Errorf("%w: status %d: %s", ErrSessionExpired, response.StatusCode, strings.TrimSpace(string(body)))
		}
		return ports.UsageReport{}, fmt.Errorf("status %d: %s", response.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded payload
	if err := json.Unmarshal(body, &decoded); err != nil {
		return ports.UsageReport{}, fmt.Errorf("decode response: %w", err)
	}
	if decoded.FiveHour == nil && decoded.SevenDay == nil {
		return ports.UsageReport{}, errors.New("missing usage windows in response")
	}

	return ports.UsageReport{
		FiveHour: toWindow(decoded.FiveHour),
		SevenDay: toWindow(decoded.SevenDay),
	}, nil
}

func toWindow(w *window) ports.UsageWindow {
	if w == nil {
		return ports.UsageWindow{}
	}

	var out ports.UsageWindow
	if w.Utilization != nil {
		out.Utilization = *w.Utilization
	}
	if resetsAt, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(w.ResetsAt)); err == nil {
		out.ResetsAt = resetsAt.UTC()
	}

	return out
}
