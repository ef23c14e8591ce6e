// Package relay implements the WebSocket relay core: route
// classification, upstream address construction, and the per-session
// connection bridge.
package relay

import (
	"net/url"
	"strings"
)

// RouteKind identifies one of the supported inbound path shapes.
type RouteKind string

const (
	// KindAgentFacade routes to the per-agent facade service.
	KindAgentFacade RouteKind = "agent_facade"
	// KindLanguageServer routes to the shared language-server endpoint.
	KindLanguageServer RouteKind = "language_server"
	// KindDevConsole routes to a per-session dev console service.
	KindDevConsole RouteKind = "dev_console"
)

// Inbound path shapes recognized by Classify.
const (
	agentPathPrefix = "/api/agents/"
	agentPathSuffix = "/ws"
	lspPath         = "/api/lsp"
	devConsolePath  = "/api/dev-console"
)

// Route is the classified form of an inbound upgrade request. It is a
// sealed sum type: exactly one concrete kind exists per request, and a
// path matching none of the patterns produces no Route at all.
type Route interface {
	Kind() RouteKind
	sealed()
}

// AgentFacadeRoute carries the path parameters of an agent facade
// upgrade request.
type AgentFacadeRoute struct {
	Namespace string
	Name      string
}

// Kind returns KindAgentFacade.
func (AgentFacadeRoute) Kind() RouteKind { return KindAgentFacade }

func (AgentFacadeRoute) sealed() {}

// LanguageServerRoute carries the optional query parameters of a
// language-server upgrade request. The Has flags record whether a key
// was present at all, since a present-but-empty value is distinct from
// an absent one.
type LanguageServerRoute struct {
	Workspace    string
	Project      string
	HasWorkspace bool
	HasProject   bool
}

// Kind returns KindLanguageServer.
func (LanguageServerRoute) Kind() RouteKind { return KindLanguageServer }

func (LanguageServerRoute) sealed() {}

// DevConsoleRoute carries the optional query parameters of a dev
// console upgrade request. Absent parameters fall back to configured
// defaults when the upstream URL is built.
type DevConsoleRoute struct {
	Agent        string
	Workspace    string
	Namespace    string
	Service      string
	HasAgent     bool
	HasWorkspace bool
	HasNamespace bool
	HasService   bool
}

// Kind returns KindDevConsole.
func (DevConsoleRoute) Kind() RouteKind { return KindDevConsole }

func (DevConsoleRoute) sealed() {}

// Classify maps an inbound request path and raw query string to a
// Route. It returns false for any path matching none of the three
// supported shapes; the caller must then reject the upgrade.
func Classify(path, rawQuery string) (Route, bool) {
	switch {
	case path == lspPath:
		q := parseQuery(rawQuery)
		return LanguageServerRoute{
			Workspace:    q.Get("workspace"),
			Project:      q.Get("project"),
			HasWorkspace: q.Has("workspace"),
			HasProject:   q.Has("project"),
		}, true

	case path == devConsolePath:
		q := parseQuery(rawQuery)
		return DevConsoleRoute{
			Agent:        q.Get("agent"),
			Workspace:    q.Get("workspace"),
			Namespace:    q.Get("namespace"),
			Service:      q.Get("service"),
			HasAgent:     q.Has("agent"),
			HasWorkspace: q.Has("workspace"),
			HasNamespace: q.Has("namespace"),
			HasService:   q.Has("service"),
		}, true

	case strings.HasPrefix(path, agentPathPrefix) && strings.HasSuffix(path, agentPathSuffix):
		rest := strings.TrimSuffix(strings.TrimPrefix(path, agentPathPrefix), agentPathSuffix)
		parts := strings.Split(rest, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, false
		}
		return AgentFacadeRoute{Namespace: parts[0], Name: parts[1]}, true
	}

	return nil, false
}

// parseQuery percent-decodes a raw query string. A key without '=' is
// present with an empty value; malformed pairs are skipped rather than
// failing the whole parse, which is exactly url.ParseQuery's behavior
// when its error is ignored.
func parseQuery(rawQuery string) url.Values {
	values, _ := url.ParseQuery(rawQuery)
	return values
}
