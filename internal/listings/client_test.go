package listings

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleScrape = `{
  "success": true,
  "listings": [
    {"time": "8:00 PM", "network": "NBC", "program": "Chicago Fire", "is_movie": false},
    {"time": "9:00 PM", "network": "HMYS", "program": "Murder, She Baked", "is_movie": true}
  ],
  "networks": ["NBC", "HMYS"],
  "dates": ["Friday, July 11", "Saturday, July 12"],
  "current_date": "Friday, July 11"
}`

func TestClientFetchDecodesScrape(t *testing.T) {
	t.Parallel()

	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/scrape" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.Query().Get("date")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleScrape))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL + "/api/"}, zerolog.Nop())
	require.NoError(t, err)

	resp, err := client.Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "1", gotQuery)
	require.Len(t, resp.Listings, 2)
	assert.Equal(t, "Murder, She Baked", resp.Listings[1].Program)
	assert.True(t, resp.Listings[1].IsMovie)
	assert.Equal(t, "Friday, July 11", resp.CurrentDate)
	assert.Equal(t, []string{"Friday, July 11", "Saturday, July 12"}, resp.Dates)
}

func TestClientDatesUsesIndexZero(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("date"))
		_, _ = w.Write([]byte(sampleScrape))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL}, zerolog.Nop())
	require.NoError(t, err)

	dates, current, err := client.Dates(context.Background())
	require.NoError(t, err)
	require.Len(t, dates, 2)
	require.Equal(t, "Friday, July 11", current)
}

func TestClientFetchFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		status  int
		body    string
		remote  bool
		message string
	}{
		{"remote failure", http.StatusOK, `{"success": false, "error": "site layout changed"}`, true, "Failed to scrape listings. Please try again."},
		{"server error", http.StatusInternalServerError, `{"success": false, "error": "boom"}`, false, "Failed to scrape listings. Please try again."},
		{"bad json", http.StatusOK, `<html>`, false, "Network error. Please check your connection."},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client, err := NewClient(Config{BaseURL: server.URL}, zerolog.Nop())
			require.NoError(t, err)

			_, err = client.Fetch(context.Background(), 2)
			var fetchErr *FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, 2, fetchErr.DateIndex)
			assert.Equal(t, tc.remote, fetchErr.Remote)
			assert.Equal(t, tc.message, fetchErr.UserMessage())
		})
	}
}

func TestClientFetchTransportErrorAndCancel(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Fetch(ctx, 0)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	require.Equal(t, "Network error. Please check your connection.", fetchErr.UserMessage())
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{BaseURL: "ftp://example.com"}, zerolog.Nop())
	require.Error(t, err)

	client, err := NewClient(Config{}, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, "http://localhost:5000", client.base.String())

	_, err = client.Fetch(context.Background(), -1)
	require.Error(t, err)
}
