package relay

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/room4-2/voicerag/tool"
)

var errHandshake = errors.New("websocket: bad handshake")

// stubDialer fails with the given responses before eventually connecting
func stubDialer(t *testing.T, failures []*http.Response, conn *websocket.Conn) (*Dialer, *[]time.Duration) {
	t.Helper()
	var sleeps []time.Duration
	attempt := 0
	d := NewDialer("wss://example.invalid", "gpt-4o-realtime", "2024-10-01-preview", APIKey("k"), zap.NewNop())
	d.dial = func(_ context.Context, _ string, _ http.Header) (*websocket.Conn, *http.Response, error) {
		if attempt < len(failures) {
			resp := failures[attempt]
			attempt++
			return nil, resp, errHandshake
		}
		attempt++
		return conn, nil, nil
	}
	d.sleep = func(dur time.Duration) { sleeps = append(sleeps, dur) }
	return d, &sleeps
}

func rateLimited() *http.Response {
	return &http.Response{StatusCode: http.StatusTooManyRequests}
}

func TestDialRetriesRateLimit(t *testing.T) {
	relayConn, serviceConn := newConnPair(t)
	defer serviceConn.Close()

	d, sleeps := stubDialer(t, []*http.Response{rateLimited(), rateLimited()}, relayConn)

	conn, err := d.Dial(context.Background())
	require.NoError(t, err)
	assert.Same(t, relayConn, conn)
	// documented backoff sequence: 1s then 2s
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
}

func TestDialExhaustsRetries(t *testing.T) {
	d, sleeps := stubDialer(t, []*http.Response{rateLimited(), rateLimited(), rateLimited()}, nil)

	_, err := d.Dial(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
}

func TestDialNonRateLimitIsFatal(t *testing.T) {
	tests := []struct {
		name string
		resp *http.Response
	}{
		{name: "unauthorized", resp: &http.Response{StatusCode: http.StatusUnauthorized}},
		{name: "no response", resp: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, sleeps := stubDialer(t, []*http.Response{tt.resp}, nil)
			_, err := d.Dial(context.Background())
			require.Error(t, err)
			assert.Empty(t, *sleeps)
		})
	}
}

func TestDialSendsSingleConfigurationAfterRetries(t *testing.T) {
	relayConn, serviceConn := newConnPair(t)
	defer serviceConn.Close()

	d, sleeps := stubDialer(t, []*http.Response{rateLimited(), rateLimited()}, relayConn)

	conn, err := d.Dial(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)

	registry := tool.NewRegistry()
	require.NoError(t, registry.Register(tool.Descriptor{
		Name:    "search",
		Schema:  map[string]any{"type": "function", "name": "search"},
		Handler: func(context.Context, string) (tool.Result, error) { return tool.Result{}, nil },
	}))
	configurator := &SessionConfigurator{Instructions: "be brief", Voice: "alloy", Registry: registry}
	require.NoError(t, configurator.Configure(conn))

	frame := readFrame(t, serviceConn)
	assert.Equal(t, "session.update", frame["type"])

	// nothing else arrives: exactly one configuration frame in total
	serviceConn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = serviceConn.ReadMessage()
	assert.Error(t, err)
}

func TestDialerURL(t *testing.T) {
	d := NewDialer("wss://svc.example.com", "gpt-4o-realtime", "2024-10-01-preview", nil, zap.NewNop())
	assert.Equal(t,
		"wss://svc.example.com/openai/realtime?api-version=2024-10-01-preview&deployment=gpt-4o-realtime",
		d.URL(),
	)
}

func TestCredentials(t *testing.T) {
	h := http.Header{}
	require.NoError(t, APIKey("secret").Apply(context.Background(), h))
	assert.Equal(t, "secret", h.Get("api-key"))

	h = http.Header{}
	cred := TokenCredential{Provider: func(context.Context) (string, error) { return "tok", nil }}
	require.NoError(t, cred.Apply(context.Background(), h))
	assert.Equal(t, "Bearer tok", h.Get("Authorization"))

	failing := TokenCredential{Provider: func(context.Context) (string, error) { return "", errors.New("no token") }}
	assert.Error(t, failing.Apply(context.Background(), http.Header{}))
}
