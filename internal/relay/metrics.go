package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SessionMetrics contains Prometheus metrics for relay sessions, all
// labelled by route kind.
type SessionMetrics struct {
	sessionsTotal      *prometheus.CounterVec
	sessionsActive     *prometheus.GaugeVec
	sessionErrorsTotal *prometheus.CounterVec
	framesRelayedTotal *prometheus.CounterVec
	framesDroppedTotal *prometheus.CounterVec
	sessionDuration    *prometheus.HistogramVec
	connectDuration    *prometheus.HistogramVec
}

// Frame direction label values.
const (
	directionClientToUpstream = "client_to_upstream"
	directionUpstreamToClient = "upstream_to_client"
)

// NewSessionMetrics creates and registers the session metrics against
// the given registerer. If registerer is nil the default registerer is
// used.
func NewSessionMetrics(registerer prometheus.Registerer) *SessionMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	m := &SessionMetrics{
		sessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "relay",
				Name:      "sessions_total",
				Help:      "Total number of relay sessions established",
			},
			[]string{"route"},
		),
		sessionsActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "relay",
				Name:      "sessions_active",
				Help:      "Number of currently active relay sessions",
			},
			[]string{"route"},
		),
		sessionErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "relay",
				Name:      "session_errors_total",
				Help:      "Total number of session establishment and transport errors",
			},
			[]string{"route", "code"},
		),
		framesRelayedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "relay",
				Name:      "frames_relayed_total",
				Help:      "Total number of frames relayed between legs",
			},
			[]string{"route", "direction"},
		),
		framesDroppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "relay",
				Name:      "frames_dropped_total",
				Help:      "Frames received from the client before the upstream connected",
			},
			[]string{"route"},
		),
		sessionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "relay",
				Name:      "session_duration_seconds",
				Help:      "Duration of relay sessions in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"route"},
		),
		connectDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "relay",
				Name:      "upstream_connect_duration_seconds",
				Help:      "Time taken to establish the upstream connection",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"route"},
		),
	}

	m.prepopulate()
	return m
}

// prepopulate seeds common label combinations with zero values so the
// series appear in /metrics output immediately after startup.
func (m *SessionMetrics) prepopulate() {
	for _, route := range []RouteKind{KindAgentFacade, KindLanguageServer, KindDevConsole} {
		m.sessionsTotal.WithLabelValues(string(route))
		m.sessionsActive.WithLabelValues(string(route))
		m.framesDroppedTotal.WithLabelValues(string(route))
		m.framesRelayedTotal.WithLabelValues(string(route), directionClientToUpstream)
		m.framesRelayedTotal.WithLabelValues(string(route), directionUpstreamToClient)
	}
}

// nopSessionMetrics returns metrics registered against a throwaway
// registry, for tests and callers that do not report metrics.
func nopSessionMetrics() *SessionMetrics {
	return NewSessionMetrics(prometheus.NewRegistry())
}
