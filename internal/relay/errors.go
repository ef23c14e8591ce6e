package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// RelayError wraps a failed relay operation with the route and target
// it was performed against.
type RelayError struct {
	Op     string
	Route  RouteKind
	Target string
	Cause  error
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay %s %s (%s): %v", e.Op, e.Target, e.Route, e.Cause)
}

func (e *RelayError) Unwrap() error { return e.Cause }

// ErrorCode identifies a client-visible establishment failure.
type ErrorCode string

// Establishment failure codes. The *_NOT_FOUND and *_UNAVAILABLE codes
// are route-kind specific; the CONNECTION_* codes apply uniformly.
const (
	CodeAgentNotFound      ErrorCode = "AGENT_NOT_FOUND"
	CodeLSPNotFound        ErrorCode = "LSP_NOT_FOUND"
	CodeDevConsoleNotFound ErrorCode = "DEV_CONSOLE_NOT_FOUND"

	CodeAgentUnavailable      ErrorCode = "AGENT_UNAVAILABLE"
	CodeLSPUnavailable        ErrorCode = "LSP_UNAVAILABLE"
	CodeDevConsoleUnavailable ErrorCode = "DEV_CONSOLE_UNAVAILABLE"

	CodeConnectionRefused ErrorCode = "CONNECTION_REFUSED"
	CodeConnectionTimeout ErrorCode = "CONNECTION_TIMEOUT"
	CodeConnectionError   ErrorCode = "CONNECTION_ERROR"
)

// ErrorEvent is the structured error sent to the client before an
// error-triggered close. At most one is sent per session.
type ErrorEvent struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorFrame is the wire form of an ErrorEvent: a single JSON text
// frame of the shape {type, timestamp, error:{code, message}}.
type errorFrame struct {
	Type      string     `json:"type"`
	Timestamp string     `json:"timestamp"`
	Error     ErrorEvent `json:"error"`
}

// newErrorFrame wraps an ErrorEvent for transmission.
func newErrorFrame(ev ErrorEvent) errorFrame {
	return errorFrame{
		Type:      "error",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Error:     ev,
	}
}

// resourceLabel names the upstream resource for use in client-visible
// messages.
func resourceLabel(route Route) string {
	switch r := route.(type) {
	case AgentFacadeRoute:
		return fmt.Sprintf("agent %q", r.Name)
	case LanguageServerRoute:
		return "LSP service"
	case DevConsoleRoute:
		return "Dev Console service"
	default:
		return "upstream service"
	}
}

// notFoundEvent builds the route-specific name-resolution failure event.
func notFoundEvent(route Route) ErrorEvent {
	msg := fmt.Sprintf("%s not found or enterprise feature not enabled", resourceLabel(route))
	switch route.(type) {
	case AgentFacadeRoute:
		return ErrorEvent{Code: CodeAgentNotFound, Message: msg}
	case LanguageServerRoute:
		return ErrorEvent{Code: CodeLSPNotFound, Message: msg}
	default:
		return ErrorEvent{Code: CodeDevConsoleNotFound, Message: msg}
	}
}

// unavailableEvent builds the route-specific event for an upstream that
// closed or rejected the handshake before ever opening.
func unavailableEvent(route Route) ErrorEvent {
	msg := fmt.Sprintf("%s is not available", resourceLabel(route))
	switch route.(type) {
	case AgentFacadeRoute:
		return ErrorEvent{Code: CodeAgentUnavailable, Message: msg}
	case LanguageServerRoute:
		return ErrorEvent{Code: CodeLSPUnavailable, Message: msg}
	default:
		return ErrorEvent{Code: CodeDevConsoleUnavailable, Message: msg}
	}
}

// timeoutEvent builds the event synthesized when the establishment
// timer fires, and also used for transport-level connect timeouts.
func timeoutEvent(route Route) ErrorEvent {
	return ErrorEvent{
		Code:    CodeConnectionTimeout,
		Message: fmt.Sprintf("Timed out connecting to %s", resourceLabel(route)),
	}
}

// translateDialError maps a low-level connection-establishment failure
// into the client-visible error taxonomy.
func translateDialError(route Route, err error) ErrorEvent {
	var dnsErr *net.DNSError

	switch {
	case errors.As(err, &dnsErr):
		return notFoundEvent(route)

	case errors.Is(err, syscall.ECONNREFUSED):
		return ErrorEvent{
			Code:    CodeConnectionRefused,
			Message: fmt.Sprintf("Connection to %s refused; the service may be starting", resourceLabel(route)),
		}

	case errors.Is(err, websocket.ErrBadHandshake):
		// The upstream answered but refused or dropped the upgrade:
		// it closed before the WebSocket ever opened.
		return unavailableEvent(route)

	case isTimeout(err):
		return timeoutEvent(route)

	default:
		return ErrorEvent{
			Code:    CodeConnectionError,
			Message: fmt.Sprintf("Failed to connect to %s", resourceLabel(route)),
		}
	}
}

// isTimeout reports whether err is a transport-level timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
