package usage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchUsageParsesWindows(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/oauth/usage", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, betaHeader, r.Header.Get("anthropic-beta"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"five_hour": {"utilization": 42.5, "resets_at": "2026-03-01T15:00:00.000000+00:00"},
			"seven_day": {"utilization": 71, "resets_at": "2026-03-04T09:00:00Z"}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL+"/", "")

	report, err := client.FetchUsage(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.InDelta(t, 42.5, report.FiveHour.Utilization, 0.001)
	assert.Equal(t, time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC), report.FiveHour.ResetsAt)
	assert.InDelta(t, 71.0, report.SevenDay.Utilization, 0.001)
	assert.Equal(t, time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC), report.SevenDay.ResetsAt)
}

func TestFetchUsageToleratesMissingWindow(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"five_hour": {"utilization": 10, "resets_at": null}, "seven_day": null}`))
	}))
	defer server.Close()

	report, err := NewClient(server.Client(), server.URL, "").FetchUsage(context.Background(), "tok")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, report.FiveHour.Utilization, 0.001)
	assert.True(t, report.FiveHour.ResetsAt.IsZero())
	assert.Zero(t, report.SevenDay.Utilization)
}

func TestFetchUsageMapsUnauthorizedToSessionExpired(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := NewClient(server.Client(), server.URL, "").FetchUsage(context.Background(), "tok")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.ErrorContains(t, err, "token expired")
}

func TestFetchUsageReportsServerErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.Client(), server.URL, "").FetchUsage(context.Background(), "tok")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionExpired)
	assert.ErrorContains(t, err, "status 502")
}

func TestFetchUsageRejectsEmptyPayload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := NewClient(server.Client(), server.URL, "").FetchUsage(context.Background(), "tok")
	assert.ErrorContains(t, err, "missing usage windows")
}

func TestFetchUsageRejectsEmptyToken(t *testing.T) {
	t.Parallel()

	_, err := NewClient(nil, "", "").FetchUsage(context.Background(), " ")
	assert.ErrorContains(t, err, "access token is empty")
}
