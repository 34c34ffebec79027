package relay

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const realtimePath = "/openai/realtime"

// Credential authenticates the upstream connection
type Credential interface {
	Apply(ctx context.Context, h http.Header) error
}

// APIKey is a static key sent in the api-key header
type APIKey string

func (k APIKey) Apply(_ context.Context, h http.Header) error {
	h.Set("api-key", string(k))
	return nil
}

// TokenCredential fetches a bearer token from a provider on every dial
type TokenCredential struct {
	Provider func(ctx context.Context) (string, error)
}

func (t TokenCredential) Apply(ctx context.Context, h http.Header) error {
	token, err := t.Provider(ctx)
	if err != nil {
		return fmt.Errorf("fetching bearer token: %w", err)
	}
	h.Set("Authorization", "Bearer "+token)
	return nil
}

// dialFunc matches websocket.Dialer.DialContext; swapped out in tests
type dialFunc func(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)

// Dialer opens the upstream connection. Only rate-limit rejections are
// retried; every other dial failure fails the session immediately.
type Dialer struct {
	Endpoint    string // wss service root, no trailing slash
	Deployment  string
	APIVersion  string
	Credential  Credential
	MaxAttempts int
	Backoff     time.Duration
	Logger      *zap.Logger

	dial  dialFunc
	sleep func(time.Duration)
}

// NewDialer creates a dialer with the standard websocket transport,
// 3 attempts and a 1s starting backoff
func NewDialer(endpoint, deployment, apiVersion string, cred Credential, logger *zap.Logger) *Dialer {
	return &Dialer{
		Endpoint:    endpoint,
		Deployment:  deployment,
		APIVersion:  apiVersion,
		Credential:  cred,
		MaxAttempts: 3,
		Backoff:     time.Second,
		Logger:      logger,
		dial:        websocket.DefaultDialer.DialContext,
		sleep:       time.Sleep,
	}
}

// URL returns the full upstream connection URL
func (d *Dialer) URL() string {
	return fmt.Sprintf("%s%s?api-version=%s&deployment=%s",
		d.Endpoint, realtimePath, d.APIVersion, d.Deployment)
}

// Dial connects upstream, retrying with exponential backoff (1s, 2s, ...)
// while the service answers with HTTP 429
func (d *Dialer) Dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if d.Credential != nil {
		if err := d.Credential.Apply(ctx, header); err != nil {
			return nil, err
		}
	}

	url := d.URL()
	backoff := d.Backoff
	for attempt := 1; ; attempt++ {
		conn, resp, err := d.dial(ctx, url, header)
		if err == nil {
			d.Logger.Info("upstream connected", zap.Int("attempt", attempt))
			return conn, nil
		}
		if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
			return nil, fmt.Errorf("dialing upstream: %w", err)
		}
		if attempt >= d.MaxAttempts {
			return nil, fmt.Errorf("upstream rate limited after %d attempts: %w", attempt, err)
		}
		d.Logger.Warn("upstream rate limited, backing off",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		d.sleep(backoff)
		backoff *= 2
	}
}
