package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/Omnia-sub008/internal/config"
	"github.com/AltairaLabs/Omnia-sub008/internal/observability"
)

func newTestDispatcher(t *testing.T, opts ...DispatcherOption) *Dispatcher {
	t.Helper()

	cfg := config.Default()
	tracer, err := observability.NewTracer(observability.TracerConfig{ServiceName: "relay-test"})
	require.NoError(t, err)

	return NewDispatcher(cfg, observability.NopLogger(), nil, tracer, opts...)
}

func TestDispatcherRejectsUnknownPath(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newTestDispatcher(t))
	t.Cleanup(srv.Close)

	paths := []string{
		"/",
		"/api/unknown",
		"/api/agents/only-namespace/ws",
		"/api/lsp/extra",
	}

	for _, path := range paths {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "path %q", path)
		_ = resp.Body.Close()
	}
}

func TestDispatcherRejectsUnknownPathBeforeHandshake(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newTestDispatcher(t))
	t.Cleanup(srv.Close)

	// A websocket dial against an unknown path must fail at the HTTP
	// level, never with a close frame.
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv)+"/api/nope", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestDispatcherRelaysAgentSession(t *testing.T) {
	t.Parallel()

	upstream := newTestUpstream(t, echoHandler)

	var mu sync.Mutex
	var dialedURLs []string
	dial := func(ctx context.Context, url string) (*websocket.Conn, error) {
		mu.Lock()
		dialedURLs = append(dialedURLs, url)
		mu.Unlock()
		return defaultDial(ctx, wsURL(upstream))
	}

	srv := httptest.NewServer(newTestDispatcher(t, WithDispatcherDialFunc(dial)))
	t.Cleanup(srv.Close)

	client, resp, err := websocket.DefaultDialer.Dial(
		wsURL(srv)+"/api/agents/prod/billing-agent/ws", nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("hello")))
	require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, frame, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), frame)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, dialedURLs, 1)
	assert.Equal(t,
		"ws://billing-agent.prod.svc.cluster.local:8080/ws?agent=billing-agent&namespace=prod",
		dialedURLs[0],
	)
}

func TestDispatcherRelaysLSPSession(t *testing.T) {
	t.Parallel()

	upstream := newTestUpstream(t, echoHandler)

	dialed := make(chan string, 1)
	dial := func(ctx context.Context, url string) (*websocket.Conn, error) {
		dialed <- url
		return defaultDial(ctx, wsURL(upstream))
	}

	srv := httptest.NewServer(newTestDispatcher(t, WithDispatcherDialFunc(dial)))
	t.Cleanup(srv.Close)

	client, resp, err := websocket.DefaultDialer.Dial(
		wsURL(srv)+"/api/lsp?workspace=ws1&project=p1", nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = client.Close() })

	select {
	case url := <-dialed:
		assert.Equal(t,
			config.DefaultLSPURL+"?workspace=ws1&project=p1",
			url,
		)
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher never dialed the upstream")
	}
}
