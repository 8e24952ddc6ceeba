package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/cloo-solutions/licitai/internal/domain"
	"github.com/cloo-solutions/licitai/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RouteRule sends a question to Route when any keyword is a substring of it.
type RouteRule struct {
	Route    domain.Route
	Keywords []string
}

// DefaultRouteRules are evaluated in order; the first matching table wins,
// so business questions that mention the date still go to SQL.
var DefaultRouteRules = []RouteRule{
	{
		Route: domain.RouteSQL,
		Keywords: []string{
			"pendiente", "adjudicad", "ganad", "perdid", "oferta", "licitacion",
			"cliente", "202", "201", "200", "estado", "codigo", "id", "of-", "sz-",
			"disponible", "vigente", "proceso", "base de datos",
		},
	},
	{
		Route: domain.RouteWeb,
		Keywords: []string{
			"hora", "clima", "tiempo", "noticia", "dolar", "dólar", "precio",
			"busca en google", "quién es", "cuando es", "resultados del",
			"actualidad", "hoy",
		},
	},
}

// RouteClassifier picks the resolution strategy for a question.
type RouteClassifier interface {
	Classify(ctx context.Context, query string, history domain.History, onProgress ProgressFunc) domain.Route
}

// Router applies keyword tables first and asks the model only when no
// table matches.
type Router struct {
	rules     []RouteRule
	generator Generator
	model     string
	logger    *zap.Logger
}

func NewRouter(generator Generator, model string, logger *zap.Logger) *Router {
	return NewRouterWithRules(DefaultRouteRules, generator, model, logger)
}

func NewRouterWithRules(rules []RouteRule, generator Generator, model string, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{rules: rules, generator: generator, model: model, logger: logger}
}

func (r *Router) Classify(ctx context.Context, query string, history domain.History, onProgress ProgressFunc) domain.Route {
	if route, ok := MatchRules(r.rules, query); ok {
		metrics.RouteDecisions.WithLabelValues(string(route), "keyword").Inc()
		return route
	}

	prompt := fmt.Sprintf(`
Router. HISTORIAL: %s
PREGUNTA: '%s'
Clasifica:
1. 'SQL': Preguntas sobre la empresa, licitaciones, ofertas internas.
2. 'WEB': Preguntas de cultura general actual, clima, hora, noticias.
3. 'GENERAL': Chistes, saludos, consejos, filosofía.
Respuesta (SOLO PALABRA):`, history.Format(domain.PromptTurns), query)

	out := r.generator.Generate(ctx, r.model, prompt, GenerateOptions{OnProgress: onProgress})
	route := domain.ParseRoute(out)
	metrics.RouteDecisions.WithLabelValues(string(route), "model").Inc()
	r.logger.Debug("Route chosen by model", zap.String("route", string(route)), zap.String("output", truncate(out, 80)))
	return route
}

// MatchRules runs the keyword tables against the lower-cased query and an
// accent-folded copy of it.
func MatchRules(rules []RouteRule, query string) (domain.Route, bool) {
	lower := strings.ToLower(query)
	folded := foldAccents(lower)
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) || strings.Contains(folded, foldAccents(kw)) {
				return rule.Route, true
			}
		}
	}
	return "", false
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
