package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/licitai/internal/domain"
	"github.com/cloo-solutions/licitai/internal/logger"
	"github.com/cloo-solutions/licitai/internal/telemetry"
	"go.uber.org/zap"
)

const defaultUserLabel = "Anónimo"

// ChatInput is one question plus the caller-owned history.
type ChatInput struct {
	Query      string
	History    domain.History
	UserLabel  string
	OnProgress ProgressFunc
}

// ChatResult carries the answer and the route that produced it.
type ChatResult struct {
	Answer string
	Route  domain.Route
}

type OrchestratorConfig struct {
	LogicModel     string
	NarrationModel string
}

// Orchestrator is the entry point of the assistant. It holds no session
// state and never returns an error: every failure becomes answer text.
type Orchestrator struct {
	router    RouteClassifier
	sql       SQLAnswerer
	retriever Retriever
	generator Generator
	clock     *TimeContext
	cfg       OrchestratorConfig
	logger    *zap.Logger
}

func NewOrchestrator(
	router RouteClassifier,
	sql SQLAnswerer,
	retriever Retriever,
	generator Generator,
	clock *TimeContext,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	if clock == nil {
		clock = NewTimeContext(DefaultUTCOffsetHours)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		router:    router,
		sql:       sql,
		retriever: retriever,
		generator: generator,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Chat answers a question.
func (o *Orchestrator) Chat(ctx context.Context, in ChatInput) string {
	return o.ChatWithRoute(ctx, in).Answer
}

// ChatWithRoute answers a question and reports the route taken.
func (o *Orchestrator) ChatWithRoute(ctx context.Context, in ChatInput) (result ChatResult) {
	ctx, span := telemetry.StartSpan(ctx, "orchestrator.chat", telemetry.SpanAttributes{Operation: "chat"})
	defer span.End()

	log := logger.FromContext(ctx, o.logger)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%v", r)
			log.Error("Chat panicked", zap.Any("panic", r))
			span.SetError(err)
			result = ChatResult{Answer: "Error crítico: " + err.Error(), Route: result.Route}
		}
	}()

	label := strings.TrimSpace(in.UserLabel)
	if label == "" {
		label = defaultUserLabel
	}
	if strings.TrimSpace(in.Query) == "" {
		return ChatResult{Answer: "Error crítico: " + domain.ErrEmptyQuery.Message}
	}

	route := o.router.Classify(ctx, in.Query, in.History, in.OnProgress)
	result.Route = route
	log.Info("Route selected", zap.String("user", label), zap.String("route", string(route)))
	telemetry.AddBreadcrumb(ctx, "route", string(route))

	switch route {
	case domain.RouteSQL:
		result.Answer = o.sql.Answer(ctx, in.Query, in.History, in.OnProgress)
	case domain.RouteWeb:
		result.Answer = o.answerWeb(ctx, in)
	case domain.RouteRAG:
		result.Answer = o.retriever.Retrieve(ctx, in.Query, in.History, in.OnProgress)
	default:
		result.Route = domain.RouteGeneral
		result.Answer = o.answerGeneral(ctx, in, label)
	}
	return result
}

func (o *Orchestrator) answerWeb(ctx context.Context, in ChatInput) string {
	lastTurn := ""
	if last, ok := in.History.Last(); ok {
		lastTurn = last.Content
	}
	prompt := fmt.Sprintf(`
Responde a la pregunta del usuario usando la búsqueda web.

CONTEXTO OBLIGATORIO:
- Hora y Fecha actual del usuario (Perú): %s.
- Si preguntan "qué hora es", USA ESTE DATO, no busques si no es necesario.

Usuario: "%s"
Contexto conversación: %s

Sé directo y útil.
`, o.clock.LocalNow(), in.Query, lastTurn)

	opts := GenerateOptions{OnProgress: in.OnProgress}
	if !answeredByClock(in.Query) {
		opts.Tools = []Tool{ToolWebSearch}
	}
	return o.generator.Generate(ctx, o.cfg.LogicModel, prompt, opts)
}

// clockQuestions are whole questions the injected local time already
// answers. Compared after accent folding and punctuation removal.
var clockQuestions = map[string]bool{
	"hora":                 true,
	"que hora es":          true,
	"que hora es ahora":    true,
	"que hora son":         true,
	"hora actual":          true,
	"dame la hora":         true,
	"que fecha es":         true,
	"que fecha es hoy":     true,
	"fecha de hoy":         true,
	"en que fecha estamos": true,
	"que dia es":           true,
	"que dia es hoy":       true,
}

// answeredByClock reports whether query only asks for the current time or
// date, in which case a live web search adds nothing.
func answeredByClock(query string) bool {
	q := foldAccents(strings.ToLower(query))
	q = strings.Map(func(r rune) rune {
		switch r {
		case '¿', '?', '¡', '!', '.', ',':
			return ' '
		}
		return r
	}, q)
	return clockQuestions[strings.Join(strings.Fields(q), " ")]
}

func (o *Orchestrator) answerGeneral(ctx context.Context, in ChatInput, label string) string {
	prompt := fmt.Sprintf(`
Eres una IA útil y amigable llamada 'Analista IA'.
Usuario: %s.
CONTEXTO: La hora actual en Perú es %s.
Pregunta: "%s"

INSTRUCCIONES:
1. Si piden chistes, consejos o charla, sé AMIGABLE y DIVERTIDO.
2. Si piden la hora, DASELA directamente del contexto (no busques).
3. NO hables de licitaciones si no te preguntan.
`, label, o.clock.LocalNow(), in.Query)

	return o.generator.Generate(ctx, o.cfg.NarrationModel, prompt, GenerateOptions{OnProgress: in.OnProgress})
}
