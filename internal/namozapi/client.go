// Package namozapi fetches monthly prayer time tables from the
// namoz-vaqtlari.more-info.uz service and converts them to
// [model.DailyPrayerTime] records.
package namozapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/njoerd114/prayerrelay/internal/model"
)

// DefaultBaseURL is the public prayer time service.
const DefaultBaseURL = "https://namoz-vaqtlari.more-info.uz:444"

// DefaultTimeout bounds one request when no timeout is configured.
const DefaultTimeout = 15 * time.Second

// Failure kinds. All three are treated as a single "fetch failed" outcome by
// the refresh engine; they only differ in logs and warning text.
var (
	ErrTransport   = errors.New("prayer time source unreachable")
	ErrDecode      = errors.New("malformed prayer time payload")
	ErrEmptyResult = errors.New("prayer time source returned no records")
)

// Client talks to the prayer time service.
type Client struct {
	httpClient *http.Client
	// BaseURL is the service root without a trailing slash. Exported so tests
	// can point it at an httptest server.
	BaseURL string
	log     *slog.Logger
}

// NewClient creates a Client with the given base URL and request timeout.
// An empty baseURL selects [DefaultBaseURL] and a zero timeout
// [DefaultTimeout].
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		BaseURL:    strings.TrimRight(baseURL, "/"),
		log:        logger,
	}
}

// FetchMonth returns the region's records for ym ordered by date. The error
// wraps [ErrTransport], [ErrDecode] or [ErrEmptyResult].
func (c *Client) FetchMonth(ctx context.Context, region string, ym model.YearMonth) ([]model.DailyPrayerTime, error) {
	endpoint := fmt.Sprintf("%s/api/GetMonthlyPrayTimes/%s/%s", c.BaseURL, url.PathEscape(region), ym)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug("fetching monthly prayer times", "region", region, "month", ym.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrTransport, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload monthlyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !payload.IsSuccess {
		return nil, fmt.Errorf("%w: service reported failure (statusCode=%d)", ErrDecode, payload.StatusCode)
	}
	if len(payload.Response) == 0 {
		return nil, fmt.Errorf("%w: region %q month %s", ErrEmptyResult, region, ym)
	}

	days, err := convertDays(payload.Response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	// The service spells some regions differently in its payload than in
	// the URL; records are keyed by the name they were requested under.
	for i := range days {
		days[i].Region = region
	}

	c.log.Debug("fetched monthly prayer times", "region", region, "month", ym.String(), "days", len(days))
	return days, nil
}
