package namozapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/njoerd114/prayerrelay/internal/model"
)

var testLogger = slog.Default()

func sampleDay(date string) apiDaily {
	return apiDaily{
		Region: "Toshkent",
		Date:   date,
		Bomdod: "03:41:00",
		Quyosh: "05:10:00",
		Peshin: "12:21:00",
		Asr:    "17:17:00",
		Shom:   "19:49:00",
		Xufton: "21:17:00",
	}
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, testLogger)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("", time.Second, testLogger)
	if c.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", c.BaseURL, DefaultBaseURL)
	}
	c = NewClient("http://example.com/", time.Second, testLogger)
	if c.BaseURL != "http://example.com" {
		t.Errorf("trailing slash not trimmed: %q", c.BaseURL)
	}
	c = NewClient("", 0, testLogger)
	if c.httpClient.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, DefaultTimeout)
	}
}

func TestFetchMonth_Success(t *testing.T) {
	var gotPath string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		// Deliberately out of order; the client must sort.
		_ = json.NewEncoder(w).Encode(monthlyResponse{
			IsSuccess:  true,
			StatusCode: 200,
			Response:   []apiDaily{sampleDay("2025-05-02"), sampleDay("2025-05-01")},
		})
	})

	days, err := c.FetchMonth(context.Background(), "Farg'ona", model.YearMonth{Year: 2025, Month: time.May})
	if err != nil {
		t.Fatalf("FetchMonth: %v", err)
	}
	if gotPath != "/api/GetMonthlyPrayTimes/Farg%27ona/2025-05" && gotPath != "/api/GetMonthlyPrayTimes/Farg'ona/2025-05" {
		t.Errorf("path = %q", gotPath)
	}
	if len(days) != 2 {
		t.Fatalf("days = %d, want 2", len(days))
	}
	if days[0].Date.String() != "2025-05-01" {
		t.Errorf("first day = %s, want 2025-05-01", days[0].Date)
	}
	if days[0].Maghrib != model.MustClock("19:49:00") {
		t.Errorf("Maghrib = %v", days[0].Maghrib)
	}
	if days[0].Sunrise != model.MustClock("05:10:00") {
		t.Errorf("Sunrise = %v", days[0].Sunrise)
	}
}

func TestFetchMonth_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			want: ErrTransport,
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"isSuccess": tru`)
			},
			want: ErrDecode,
		},
		{
			name: "service failure flag",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"isSuccess": false, "statusCode": 404, "response": []}`)
			},
			want: ErrDecode,
		},
		{
			name: "empty result",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"isSuccess": true, "statusCode": 200, "response": []}`)
			},
			want: ErrEmptyResult,
		},
		{
			name: "bad time field",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				day := sampleDay("2025-05-01")
				day.Asr = "late afternoon"
				_ = json.NewEncoder(w).Encode(monthlyResponse{IsSuccess: true, StatusCode: 200, Response: []apiDaily{day}})
			},
			want: ErrDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, tt.handler)
			_, err := c.FetchMonth(context.Background(), "Toshkent", model.YearMonth{Year: 2025, Month: time.May})
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFetchMonth_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second, testLogger)
	_, err := c.FetchMonth(context.Background(), "Toshkent", model.YearMonth{Year: 2025, Month: time.May})
	if !errors.Is(err, ErrTransport) {
		t.Errorf("error = %v, want ErrTransport", err)
	}
}

func TestFetchMonth_ContextCancelled(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"isSuccess": true, "statusCode": 200, "response": []}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FetchMonth(ctx, "Toshkent", model.YearMonth{Year: 2025, Month: time.May})
	if !errors.Is(err, ErrTransport) {
		t.Errorf("error = %v, want ErrTransport", err)
	}
}
