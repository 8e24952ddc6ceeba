package domain

import "strings"

// Route is the resolution strategy chosen for a question.
type Route string

const (
	RouteSQL     Route = "SQL"
	RouteWeb     Route = "WEB"
	RouteGeneral Route = "GENERAL"
	// RouteRAG is the legacy name of hybrid retrieval.
	RouteRAG Route = "RAG"
)

// ParseRoute extracts a route from free-form classifier output.
// Anything unrecognised is GENERAL.
func ParseRoute(text string) Route {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, string(RouteSQL)):
		return RouteSQL
	case strings.Contains(upper, string(RouteWeb)):
		return RouteWeb
	case strings.Contains(upper, string(RouteRAG)):
		return RouteRAG
	default:
		return RouteGeneral
	}
}
