package relay

import (
	"fmt"
	"net/url"

	"github.com/AltairaLabs/Omnia-sub008/internal/config"
)

// BuildUpstreamURL turns a classified Route plus the static upstream
// configuration into a fully qualified ws:// address. Query values are
// percent-encoded; host segments are used verbatim — the classifier's
// segment pattern is the only guard on namespace and name values.
func BuildUpstreamURL(route Route, cfg config.UpstreamConfig) string {
	switch r := route.(type) {
	case AgentFacadeRoute:
		// The facade requires agent and namespace as query parameters
		// for session scoping regardless of what the client supplied.
		q := url.Values{}
		q.Set("agent", r.Name)
		q.Set("namespace", r.Namespace)
		u := url.URL{
			Scheme:   "ws",
			Host:     fmt.Sprintf("%s.%s.%s:%s", r.Name, r.Namespace, cfg.ServiceDomain, cfg.FacadePort),
			Path:     "/ws",
			RawQuery: q.Encode(),
		}
		return u.String()

	case LanguageServerRoute:
		// Both-or-neither: a lone workspace or project is not forwarded.
		if r.HasWorkspace && r.HasProject {
			return cfg.LSPURL +
				"?workspace=" + url.QueryEscape(r.Workspace) +
				"&project=" + url.QueryEscape(r.Project)
		}
		return cfg.LSPURL

	case DevConsoleRoute:
		service := cfg.DevConsole.Service
		if r.HasService && r.Service != "" {
			service = r.Service
		}
		namespace := cfg.DevConsole.Namespace
		if r.HasNamespace && r.Namespace != "" {
			namespace = r.Namespace
		}
		agent := cfg.DevConsole.DefaultAgent
		if r.HasAgent && r.Agent != "" {
			agent = r.Agent
		}

		q := url.Values{}
		q.Set("agent", agent)
		if r.HasWorkspace {
			q.Set("workspace", r.Workspace)
		}
		u := url.URL{
			Scheme:   "ws",
			Host:     fmt.Sprintf("%s.%s.%s:%s", service, namespace, cfg.ServiceDomain, cfg.DevConsole.Port),
			Path:     "/ws",
			RawQuery: q.Encode(),
		}
		return u.String()

	default:
		// Route is sealed; a fourth kind cannot exist.
		panic(fmt.Sprintf("relay: unhandled route kind %T", route))
	}
}
