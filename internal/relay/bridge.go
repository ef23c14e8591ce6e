package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AltairaLabs/Omnia-sub008/internal/observability"
)

// Fixed close reasons for forced closes.
const (
	reasonUpstreamFailed = "Upstream connection failed"
	reasonClientError    = "Client connection error"
	reasonUpstreamClosed = "Upstream closed the connection"
)

// writeWait bounds every control-frame write.
const writeWait = 10 * time.Second

// bridgeState tracks the session lifecycle. Transitions:
// Connecting → Connected → Closed, or Connecting → Failed → Closed.
type bridgeState int

const (
	stateConnecting bridgeState = iota
	stateConnected
	stateFailed
	stateClosed
)

// DialFunc opens an upstream WebSocket connection. It exists as a
// seam so tests can substitute slow or failing upstreams.
type DialFunc func(ctx context.Context, url string) (*websocket.Conn, error)

// defaultDial dials with the package default dialer. The dialer's own
// handshake timeout stays disabled; the bridge enforces the
// establishment deadline through ctx.
func defaultDial(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// closeInfo carries a close handshake received from one leg.
type closeInfo struct {
	code   int
	reason string
}

// legEvent is one event read from a leg: a data frame, a close
// handshake, or a transport error.
type legEvent struct {
	frameType int
	frame     []byte
	close     *closeInfo
	err       error
}

// dialResult carries the outcome of the upstream dial attempt.
type dialResult struct {
	conn *websocket.Conn
	err  error
}

// Bridge relays frames between an accepted client connection and a
// dynamically dialed upstream for the lifetime of one session. A Bridge
// is owned by a single goroutine (the Run caller); the mutex only
// guards the close flags against handler double-invocation.
type Bridge struct {
	route       Route
	targetURL   string
	client      *websocket.Conn
	upstream    *websocket.Conn
	dial        DialFunc
	dialTimeout time.Duration
	logger      observability.Logger
	metrics     *SessionMetrics

	mu             sync.Mutex
	state          bridgeState
	connected      bool
	errorSent      bool
	clientClosed   bool
	upstreamClosed bool
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithDialFunc overrides the upstream dial function.
func WithDialFunc(dial DialFunc) BridgeOption {
	return func(b *Bridge) { b.dial = dial }
}

// WithDialTimeout overrides the establishment timer duration.
func WithDialTimeout(d time.Duration) BridgeOption {
	return func(b *Bridge) { b.dialTimeout = d }
}

// NewBridge creates a Bridge for an already-accepted client connection
// and a fully built upstream URL.
func NewBridge(
	route Route,
	targetURL string,
	client *websocket.Conn,
	logger observability.Logger,
	metrics *SessionMetrics,
	opts ...BridgeOption,
) *Bridge {
	b := &Bridge{
		route:       route,
		targetURL:   targetURL,
		client:      client,
		dial:        defaultDial,
		dialTimeout: 10 * time.Second,
		logger:      logger,
		metrics:     metrics,
		state:       stateConnecting,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics == nil {
		b.metrics = nopSessionMetrics()
	}
	return b
}

// Run drives the session to completion: dial the upstream under the
// establishment timer, then relay frames both directions until either
// side closes or errors. Run blocks for the lifetime of the session.
func (b *Bridge) Run(ctx context.Context) {
	routeLabel := string(b.route.Kind())
	start := time.Now()

	b.metrics.sessionsTotal.WithLabelValues(routeLabel).Inc()
	b.metrics.sessionsActive.WithLabelValues(routeLabel).Inc()
	defer func() {
		b.metrics.sessionsActive.WithLabelValues(routeLabel).Dec()
		b.metrics.sessionDuration.WithLabelValues(routeLabel).Observe(time.Since(start).Seconds())
		b.setState(stateClosed)
	}()

	// The client pump starts immediately so frames sent before the
	// upstream opens are observed (and dropped) rather than queued in
	// the kernel buffer.
	done := make(chan struct{})
	defer close(done)
	clientEvents := make(chan legEvent, 1)
	go readPump(b.client, clientEvents, done)

	if !b.connect(ctx, clientEvents) {
		return
	}

	b.relay(clientEvents, done)
}

// connect drives the Connecting state: it races the upstream dial
// against the establishment timer and the client going away. On
// success the bridge holds an open upstream connection and reports
// true. On failure the client leg has been notified and closed.
func (b *Bridge) connect(ctx context.Context, clientEvents <-chan legEvent) bool {
	routeLabel := string(b.route.Kind())
	dialStart := time.Now()

	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan dialResult, 1)
	go func() {
		conn, err := b.dial(dialCtx, b.targetURL)
		results <- dialResult{conn: conn, err: err}
	}()

	timer := time.NewTimer(b.dialTimeout)
	defer timer.Stop()

	for {
		select {
		case res := <-results:
			if res.err != nil {
				dialErr := &RelayError{
					Op:     "dial",
					Route:  b.route.Kind(),
					Target: b.targetURL,
					Cause:  res.err,
				}
				ev := translateDialError(b.route, dialErr)
				b.logger.Warn("upstream connect failed",
					observability.String("route", routeLabel),
					observability.String("code", string(ev.Code)),
					observability.Error(dialErr),
				)
				b.fail(ev)
				return false
			}
			b.mu.Lock()
			b.upstream = res.conn
			b.connected = true
			b.state = stateConnected
			b.mu.Unlock()
			b.metrics.connectDuration.WithLabelValues(routeLabel).Observe(time.Since(dialStart).Seconds())
			b.logger.Debug("upstream connected",
				observability.String("route", routeLabel),
				observability.String("target", b.targetURL),
			)
			return true

		case <-timer.C:
			// Establishment timer expiry. A dial that resolves after
			// this point is discarded; its result must not be acted on.
			b.fail(timeoutEvent(b.route))
			cancel()
			go discardDial(results)
			return false

		case ev := <-clientEvents:
			if ev.close != nil || ev.err != nil {
				// Client went away while the upstream was still
				// dialing. Nothing to notify; abandon the dial.
				b.logger.Debug("client closed during upstream connect",
					observability.String("route", routeLabel),
				)
				b.markClientClosed()
				cancel()
				go discardDial(results)
				b.setState(stateClosed)
				return false
			}
			// Not yet connected: the frame is dropped, not queued.
			b.logger.Warn("dropping client frame received before upstream connected",
				observability.String("route", routeLabel),
				observability.Int("bytes", len(ev.frame)),
			)
			b.metrics.framesDroppedTotal.WithLabelValues(routeLabel).Inc()
		}
	}
}

// relay drives the Connected state: frames from each leg are forwarded
// to the other in arrival order with their original framing until one
// side closes or errors.
func (b *Bridge) relay(clientEvents <-chan legEvent, done <-chan struct{}) {
	routeLabel := string(b.route.Kind())

	upstreamEvents := make(chan legEvent, 1)
	go readPump(b.upstream, upstreamEvents, done)

	for {
		select {
		case ev := <-clientEvents:
			switch {
			case ev.close != nil:
				b.handleClientClose(ev.close.code, ev.close.reason)
				return
			case ev.err != nil:
				b.handleClientError(ev.err)
				return
			default:
				if err := b.upstream.WriteMessage(ev.frameType, ev.frame); err != nil {
					b.handleUpstreamError(err)
					return
				}
				b.metrics.framesRelayedTotal.
					WithLabelValues(routeLabel, directionClientToUpstream).Inc()
			}

		case ev := <-upstreamEvents:
			switch {
			case ev.close != nil:
				b.handleUpstreamClose(ev.close.code, ev.close.reason)
				return
			case ev.err != nil:
				b.handleUpstreamError(ev.err)
				return
			default:
				if err := b.client.WriteMessage(ev.frameType, ev.frame); err != nil {
					b.handleClientError(err)
					return
				}
				b.metrics.framesRelayedTotal.
					WithLabelValues(routeLabel, directionUpstreamToClient).Inc()
			}
		}
	}
}

// readPump reads frames from one leg until the connection fails or the
// session ends. Close handshakes surface as close events, everything
// else that terminates the read loop surfaces as an error event.
func readPump(conn *websocket.Conn, events chan<- legEvent, done <-chan struct{}) {
	for {
		frameType, frame, err := conn.ReadMessage()
		if err != nil {
			ev := legEvent{err: err}
			var closeErr *websocket.CloseError
			// 1006 is synthesized for an abrupt transport loss, never
			// received on the wire; it is an error, not a handshake.
			if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure {
				ev = legEvent{close: &closeInfo{code: closeErr.Code, reason: closeErr.Text}}
			}
			select {
			case events <- ev:
			case <-done:
			}
			return
		}
		select {
		case events <- legEvent{frameType: frameType, frame: frame}:
		case <-done:
			return
		}
	}
}

// discardDial drains a late dial result and closes the connection if
// one was established. Nothing else may act on it.
func discardDial(results <-chan dialResult) {
	if res := <-results; res.conn != nil {
		_ = res.conn.Close()
	}
}

// handleClientClose reacts to the client closing first: the upstream
// leg is closed with the sanitized code and the client's reason, with
// no default-reason substitution. Safe to invoke more than once.
func (b *Bridge) handleClientClose(code int, reason string) {
	b.markClientClosed()
	b.closeUpstream(SanitizeCloseCode(code), reason)
}

// handleUpstreamClose reacts to the upstream closing first: the client
// leg is closed with the sanitized code and the upstream's reason, or
// a default reason when the upstream supplied none. If the upstream
// somehow never reported open, the client gets an unavailable error
// first. Safe to invoke more than once.
func (b *Bridge) handleUpstreamClose(code int, reason string) {
	b.mu.Lock()
	connected := b.connected
	b.mu.Unlock()

	b.markUpstreamClosed()

	if !connected {
		b.fail(unavailableEvent(b.route))
		return
	}

	if reason == "" {
		reason = reasonUpstreamClosed
	}
	b.closeClient(SanitizeCloseCode(code), reason)
}

// handleClientError force-closes the upstream leg after a transport
// error on the client leg.
func (b *Bridge) handleClientError(err error) {
	b.logger.Debug("client connection error", observability.Error(err))
	b.metrics.sessionErrorsTotal.
		WithLabelValues(string(b.route.Kind()), "client_error").Inc()
	b.markClientClosed()
	b.closeUpstream(websocket.CloseInternalServerErr, reasonClientError)
}

// handleUpstreamError force-closes the client leg after a transport
// error on the upstream leg.
func (b *Bridge) handleUpstreamError(err error) {
	b.logger.Debug("upstream connection error", observability.Error(err))
	b.metrics.sessionErrorsTotal.
		WithLabelValues(string(b.route.Kind()), "upstream_error").Inc()
	b.markUpstreamClosed()
	b.closeClient(websocket.CloseInternalServerErr, reasonUpstreamFailed)
}

// fail sends the error event to the client (best effort) and closes
// the client leg with 1011, transitioning the session to Failed.
func (b *Bridge) fail(ev ErrorEvent) {
	b.setState(stateFailed)
	b.metrics.sessionErrorsTotal.
		WithLabelValues(string(b.route.Kind()), string(ev.Code)).Inc()
	b.sendErrorEvent(ev)
	b.closeClient(websocket.CloseInternalServerErr, reasonUpstreamFailed)
}

// sendErrorEvent writes the single JSON error frame to the client.
// Delivery is best effort: if the client is already gone the failure
// is logged and swallowed.
func (b *Bridge) sendErrorEvent(ev ErrorEvent) {
	b.mu.Lock()
	if b.errorSent || b.clientClosed {
		b.mu.Unlock()
		return
	}
	b.errorSent = true
	b.mu.Unlock()

	payload, err := json.Marshal(newErrorFrame(ev))
	if err != nil {
		b.logger.Error("failed to encode error event", observability.Error(err))
		return
	}
	_ = b.client.SetWriteDeadline(time.Now().Add(writeWait))
	if err := b.client.WriteMessage(websocket.TextMessage, payload); err != nil {
		b.logger.Debug("failed to deliver error event", observability.Error(err))
	}
	_ = b.client.SetWriteDeadline(time.Time{})
}

// closeClient sends a close frame to the client and closes the leg.
// Idempotent: later invocations are no-ops.
func (b *Bridge) closeClient(code int, reason string) {
	b.mu.Lock()
	if b.clientClosed {
		b.mu.Unlock()
		return
	}
	b.clientClosed = true
	b.mu.Unlock()

	msg := websocket.FormatCloseMessage(code, reason)
	_ = b.client.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = b.client.Close()
}

// closeUpstream sends a close frame to the upstream and closes the
// leg. Idempotent, and a no-op when no upstream was ever established.
func (b *Bridge) closeUpstream(code int, reason string) {
	b.mu.Lock()
	if b.upstreamClosed || b.upstream == nil {
		b.mu.Unlock()
		return
	}
	b.upstreamClosed = true
	upstream := b.upstream
	b.mu.Unlock()

	msg := websocket.FormatCloseMessage(code, reason)
	_ = upstream.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = upstream.Close()
}

// markClientClosed records that the client leg is gone without writing
// a close frame (the client initiated the close, or the transport
// already failed).
func (b *Bridge) markClientClosed() {
	b.mu.Lock()
	alreadyClosed := b.clientClosed
	b.clientClosed = true
	b.mu.Unlock()
	if !alreadyClosed {
		_ = b.client.Close()
	}
}

// markUpstreamClosed records that the upstream leg is gone without
// writing a close frame.
func (b *Bridge) markUpstreamClosed() {
	b.mu.Lock()
	alreadyClosed := b.upstreamClosed
	upstream := b.upstream
	b.upstreamClosed = true
	b.mu.Unlock()
	if !alreadyClosed && upstream != nil {
		_ = upstream.Close()
	}
}

// setState moves the session to a new lifecycle state.
func (b *Bridge) setState(s bridgeState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// Closed is terminal.
	if b.state != stateClosed {
		b.state = s
	}
}

// currentState reports the session lifecycle state.
func (b *Bridge) currentState() bridgeState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

var _ DialFunc = defaultDial
