package relay

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AltairaLabs/Omnia-sub008/internal/config"
	"github.com/AltairaLabs/Omnia-sub008/internal/observability"
)

// Dispatcher is the top-level entry point for inbound upgrade
// requests: it classifies the path, rejects unknown ones at the HTTP
// level before any handshake, and otherwise completes the upgrade and
// hands the connection to a Bridge.
type Dispatcher struct {
	upstream    config.UpstreamConfig
	dialTimeout time.Duration
	upgrader    websocket.Upgrader
	logger      observability.Logger
	metrics     *SessionMetrics
	tracer      *observability.Tracer
	dial        DialFunc
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherDialFunc overrides the upstream dial function for all
// sessions created by the dispatcher.
func WithDispatcherDialFunc(dial DialFunc) DispatcherOption {
	return func(d *Dispatcher) { d.dial = dial }
}

// NewDispatcher creates a Dispatcher bound to the given static
// configuration.
func NewDispatcher(
	cfg *config.RelayConfig,
	logger observability.Logger,
	metrics *SessionMetrics,
	tracer *observability.Tracer,
	opts ...DispatcherOption,
) *Dispatcher {
	d := &Dispatcher{
		upstream:    cfg.Upstream,
		dialTimeout: cfg.Upstream.DialTimeout.Duration(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool {
				// Origin policy belongs to the authorization layer in
				// front of the relay.
				return true
			},
		},
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		dial:    defaultDial,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ServeHTTP handles one upgrade request. It blocks for the lifetime of
// the session; net/http runs each request on its own goroutine, so the
// accept loop is never held up by an individual session.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route, ok := Classify(r.URL.Path, r.URL.RawQuery)
	if !ok {
		// Unknown path: reject before any handshake so upgrade
		// semantics are never leaked for unrecognized routes.
		d.logger.Warn("rejecting upgrade for unknown path",
			observability.String("path", r.URL.Path),
			observability.String("remote_addr", r.RemoteAddr),
		)
		http.Error(w, "unknown websocket path", http.StatusNotFound)
		return
	}

	target := BuildUpstreamURL(route, d.upstream)

	ctx, span := d.tracer.StartSpan(r.Context(), "relay.session",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("relay.route", string(route.Kind())),
			attribute.String("relay.upstream", target),
		),
	)
	defer span.End()

	clientConn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		d.logger.Warn("websocket upgrade failed",
			observability.String("path", r.URL.Path),
			observability.Error(err),
		)
		return
	}

	d.logger.Info("relay session started",
		observability.String("route", string(route.Kind())),
		observability.String("target", target),
		observability.String("remote_addr", r.RemoteAddr),
		observability.String("request_id", observability.RequestIDFromContext(r.Context())),
	)

	bridge := NewBridge(route, target, clientConn, d.logger, d.metrics,
		WithDialFunc(d.dial),
		WithDialTimeout(d.dialTimeout),
	)
	bridge.Run(ctx)

	d.logger.Info("relay session ended",
		observability.String("route", string(route.Kind())),
		observability.String("target", target),
	)
}
