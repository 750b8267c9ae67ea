// Package materialize fetches concrete values for deferred descriptions from
// the remote raster platform.
package materialize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/mohammed-shakir/band-algebra/internal/core/observability"
	"github.com/mohammed-shakir/band-algebra/internal/graph"
)

// Client returns the value of a description. Calls block until the platform
// answers; ctx bounds them.
type Client interface {
	Value(ctx context.Context, n *graph.Node) (json.RawMessage, error)
}

var ErrRemote = errors.New("remote evaluation failed")

// RemoteError is a failure reported by the platform itself.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("materialize: platform answered %d: %s", e.Status, e.Message)
}

func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

type Config struct {
	Endpoint string
	// Client credentials; all three empty means no authentication.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Retries      int
	Backoff      time.Duration
}

type HTTPClient struct {
	endpoint string
	http     *http.Client
	retries  int
	backoff  time.Duration
	log      *slog.Logger
}

// NewHTTPClient wraps base with client-credentials auth when configured.
func NewHTTPClient(cfg Config, base *http.Client, log *slog.Logger) (*HTTPClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("materialize: endpoint is required")
	}
	if base == nil {
		base = http.DefaultClient
	}
	if log == nil {
		log = slog.Default()
	}
	hc := base
	if cfg.TokenURL != "" || cfg.ClientID != "" || cfg.ClientSecret != "" {
		if cfg.TokenURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
			return nil, errors.New("materialize: token url, client id and client secret must be set together")
		}
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		hc = cc.Client(context.WithValue(context.Background(), oauth2.HTTPClient, base))
		hc.Timeout = base.Timeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	return &HTTPClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		http:     hc,
		retries:  cfg.Retries,
		backoff:  cfg.Backoff,
		log:      log,
	}, nil
}

type valueRequest struct {
	Expression *graph.Node `json:"expression"`
}

type valueResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Value posts the description to <endpoint>/value. Transport errors and 5xx
// answers are retried; 4xx answers are not.
func (c *HTTPClient) Value(ctx context.Context, n *graph.Node) (json.RawMessage, error) {
	body, err := json.Marshal(valueRequest{Expression: n})
	if err != nil {
		return nil, fmt.Errorf("materialize: encode expression: %w", err)
	}
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}
		v, retry, err := c.once(ctx, body)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !retry {
			break
		}
		c.log.WarnContext(ctx, "materialize attempt failed", "attempt", attempt+1, "err", err)
	}
	return nil, lastErr
}

func (c *HTTPClient) once(ctx context.Context, body []byte) (json.RawMessage, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/value", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("materialize: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	observability.ObserveUpstreamLatency("materialize", time.Since(start).Seconds())
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("materialize: post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, true, fmt.Errorf("materialize: read response: %w", err)
	}
	var vr valueResponse
	if err := json.Unmarshal(raw, &vr); err != nil && resp.StatusCode == http.StatusOK {
		return nil, false, fmt.Errorf("materialize: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if vr.Error != nil {
			msg = vr.Error.Message
		}
		return nil, resp.StatusCode >= 500, &RemoteError{Status: resp.StatusCode, Message: msg}
	}
	if vr.Error != nil {
		return nil, false, &RemoteError{Status: resp.StatusCode, Message: vr.Error.Message}
	}
	return vr.Result, false, nil
}
