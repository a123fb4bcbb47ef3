package homeassistant

import (
	"bytes"
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
	"unicode/utf8"

	haclient "github.com/mkelcik/go-ha-client/v2"
)

// HA input_text service constants.
const (
	domainInputText = "input_text"
	serviceSetValue = "set_value"

	// maxStateLength is Home Assistant's limit on an entity state.
	maxStateLength = 255

	requestTimeout = 10 * time.Second
)

// ErrUnauthorized is returned when Home Assistant rejects the token. [Retry]
// gives up immediately on it.
var ErrUnauthorized = errors.New("HA returned 401 Unauthorized, check the access token")

// RESTClient is the subset of Home Assistant REST calls used by [Display].
// Defining it as an interface allows mock injection in tests.
type RESTClient interface {
	Ping(ctx context.Context) error
	// CallService POSTs to /api/services/<domain>/<service> without
	// return_response.
	CallService(ctx context.Context, domain, service string, body io.Reader) error
}

// haClientWrapper wraps [haclient.Client] and adds a plain CallService method
// that POSTs without ?return_response, which input_text.set_value rejects.
type haClientWrapper struct {
	client  *haclient.Client
	baseURL string
	token   string
	hc      *http.Client
}

func (w *haClientWrapper) Ping(ctx context.Context) error {
	return w.client.Ping(ctx)
}

func (w *haClientWrapper) CallService(ctx context.Context, domain, service string, body io.Reader) error {
	endpoint := fmt.Sprintf("%s/api/services/%s/%s",
		strings.TrimRight(w.baseURL, "/"),
		url.PathEscape(domain),
		url.PathEscape(service),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("create service request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.hc.Do(req)
	if err != nil {
		return fmt.Errorf("execute service request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		var br struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&br)
		return fmt.Errorf("HA rejected %s.%s: %s", domain, service, br.Message)
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode >= 300:
		return fmt.Errorf("HA returned unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Display mirrors the status label into a Home Assistant input_text helper,
// so dashboards and automations can show or react to the next prayer. It
// implements display.Publisher; wrap it in display.Async to keep slow HA
// calls off the refresh engine. Create one with [NewDisplay] or
// [NewDisplayWithClient].
type Display struct {
	rest     RESTClient
	entityID string
	logger   *slog.Logger
}

// NewDisplay creates a Display backed by the real HA REST client.
func NewDisplay(haURL, token, entityID string, logger *slog.Logger) (*Display, error) {
	rest, err := haclient.NewClient(haURL,
		haclient.WithToken(token),
		haclient.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create HA REST client: %w", err)
	}

	wrapper := &haClientWrapper{
		client:  rest,
		baseURL: haURL,
		token:   token,
		hc:      &http.Client{Timeout: requestTimeout},
	}
	return NewDisplayWithClient(wrapper, entityID, logger), nil
}

// NewDisplayWithClient creates a Display with a caller-supplied REST client.
// Intended for testing with a mock [RESTClient].
func NewDisplayWithClient(rest RESTClient, entityID string, logger *slog.Logger) *Display {
	return &Display{rest: rest, entityID: entityID, logger: logger}
}

// Ping validates the HA connection and token with retry.
func (d *Display) Ping(ctx context.Context) error {
	err := Retry(ctx, defaultMaxAttempts, func() error {
		return d.rest.Ping(ctx)
	})
	if err != nil {
		return fmt.Errorf("ping HA: %w", err)
	}
	return nil
}

// Publish sets the helper's value to label, truncated to HA's state limit.
func (d *Display) Publish(ctx context.Context, label string) error {
	data := map[string]any{
		"entity_id": d.entityID,
		"value":     truncate(label, maxStateLength),
	}
	err := Retry(ctx, defaultMaxAttempts, func() error {
		return d.rest.CallService(ctx, domainInputText, serviceSetValue, serviceBody(data))
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", d.entityID, err)
	}
	d.logger.Debug("label published to Home Assistant", "entity_id", d.entityID)
	return nil
}

// serviceBody marshals data to a JSON [io.Reader] for service calls.
func serviceBody(data map[string]any) io.Reader {
	b, _ := json.Marshal(data) //nolint:errcheck // map of strings always marshals
	return bytes.NewReader(b)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
