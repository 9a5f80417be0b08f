package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/glyphworks/puzzle-backend/internal/platform/ctxutil"
	"github.com/glyphworks/puzzle-backend/internal/platform/logger"
)

// HTTPError is returned for any non-2xx downstream response. It implements
// httpx.HTTPStatusCoder so callers can classify retryability.
type HTTPError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "downstream: <nil error>"
	}
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 2000 {
		msg = msg[:2000] + "..."
	}
	return fmt.Sprintf("%s http %d: %s", e.Service, e.StatusCode, msg)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

type restClient struct {
	log        *logger.Logger
	service    string
	baseURL    string
	authToken  string
	httpClient *http.Client
}

func newRESTClient(log *logger.Logger, service, baseURL, authToken string, timeout time.Duration) (*restClient, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing base URL for %s", service)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &restClient{
		log:        log.With("client", service),
		service:    service,
		baseURL:    baseURL,
		authToken:  strings.TrimSpace(authToken),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// postJSON issues a single request. Retrying is owned by the workflow engine's
// per-activity retry policy, so there is no retry loop here.
func (c *restClient) postJSON(ctx context.Context, path string, body any, out any) error {
	if c == nil || c.httpClient == nil {
		return fmt.Errorf("downstream client unavailable")
	}

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Service: c.service, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", c.service, err)
		}
	}
	return nil
}
