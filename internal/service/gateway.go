package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/licitai/internal/domain"
	"github.com/cloo-solutions/licitai/internal/metrics"
	"github.com/cloo-solutions/licitai/internal/search"
	"github.com/cloo-solutions/licitai/internal/telemetry"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.uber.org/zap"
)

const (
	// SaturatedMessage is returned once every attempt was throttled.
	SaturatedMessage = "Sistema saturado. Intenta más tarde."

	DefaultMaxAttempts   = 3
	DefaultThrottleDelay = 25 * time.Second
)

// ProgressFunc receives human-readable status updates while a request is
// blocked. It may be invoked from a goroutine other than the caller's.
type ProgressFunc func(message string)

func (f ProgressFunc) notify(message string) {
	if f != nil {
		f(message)
	}
}

// Tool is an augmentation the gateway can apply to a prompt.
type Tool string

const ToolWebSearch Tool = "web_search"

type GenerateOptions struct {
	Tools      []Tool
	OnProgress ProgressFunc
}

func (o GenerateOptions) hasTool(tool Tool) bool {
	for _, t := range o.Tools {
		if t == tool {
			return true
		}
	}
	return false
}

// CompletionClient is the text-in/text-out model provider.
// Throttling must be reported as an error wrapping domain.ErrThrottled.
type CompletionClient interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// Generator always answers with text; failures are rendered inline.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, opts GenerateOptions) string
}

type GatewayConfig struct {
	MaxAttempts   int
	ThrottleDelay time.Duration
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		MaxAttempts:   DefaultMaxAttempts,
		ThrottleDelay: DefaultThrottleDelay,
	}
}

// Gateway is the only component that talks to the language model.
type Gateway struct {
	client   CompletionClient
	searcher search.Provider
	cfg      GatewayConfig
	logger   *zap.Logger
}

// NewGateway creates a gateway. searcher may be nil, in which case the web
// search tool is a no-op.
func NewGateway(client CompletionClient, searcher search.Provider, cfg GatewayConfig, logger *zap.Logger) *Gateway {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.ThrottleDelay < 0 {
		cfg.ThrottleDelay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{client: client, searcher: searcher, cfg: cfg, logger: logger}
}

func (g *Gateway) Generate(ctx context.Context, model, prompt string, opts GenerateOptions) string {
	ctx, span := telemetry.StartSpan(ctx, "gateway.generate", telemetry.SpanAttributes{
		Model:     model,
		Operation: "generate",
	})
	defer span.End()

	if opts.hasTool(ToolWebSearch) {
		prompt = g.withWebResults(ctx, prompt)
	}

	attempt := 0
	policy := retrypolicy.NewBuilder[string]().
		HandleIf(func(_ string, err error) bool {
			return errors.Is(err, domain.ErrThrottled)
		}).
		WithMaxRetries(g.cfg.MaxAttempts - 1).
		WithDelay(g.cfg.ThrottleDelay).
		ReturnLastFailure().
		OnRetryScheduled(func(failsafe.ExecutionScheduledEvent[string]) {
			metrics.ModelThrottles.WithLabelValues(model).Inc()
			msg := fmt.Sprintf("IA saturada. Esperando %s... (Intento %d)", formatDelay(g.cfg.ThrottleDelay), attempt)
			g.logger.Warn("Model throttled, retrying", zap.String("model", model), zap.Int("attempt", attempt))
			opts.OnProgress.notify(msg)
		}).
		Build()

	text, err := failsafe.With(policy).WithContext(ctx).Get(func() (string, error) {
		attempt++
		return g.client.Complete(ctx, model, prompt)
	})
	if err != nil {
		if errors.Is(err, domain.ErrThrottled) {
			metrics.ModelThrottles.WithLabelValues(model).Inc()
			metrics.ModelRequests.WithLabelValues(model, "saturated").Inc()
			g.logger.Error("Model saturated", zap.String("model", model), zap.Int("attempts", attempt))
			telemetry.CaptureMessage(ctx, "model saturated: "+model)
			return SaturatedMessage
		}
		metrics.ModelRequests.WithLabelValues(model, "error").Inc()
		g.logger.Error("Model call failed", zap.String("model", model), zap.Error(err))
		span.SetError(err)
		return "Error IA: " + err.Error()
	}

	metrics.ModelRequests.WithLabelValues(model, "ok").Inc()
	return strings.TrimSpace(text)
}

// withWebResults prepends live search results to the prompt. A failed or
// empty search leaves the prompt untouched.
func (g *Gateway) withWebResults(ctx context.Context, prompt string) string {
	if g.searcher == nil {
		return prompt
	}
	query := webQueryFrom(prompt)
	results, err := g.searcher.Search(ctx, query, search.DefaultOptions())
	if err != nil {
		g.logger.Warn("Web search failed, continuing without results", zap.Error(err))
		return prompt
	}
	block := search.Format(results)
	if block == "" {
		return prompt
	}
	return block + "\n" + prompt
}

// webQueryFrom extracts the search query from a prompt. Prompts built by the
// orchestrator carry the question on a line starting with "Usuario:".
func webQueryFrom(prompt string) string {
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "Usuario:"); ok {
			return strings.Trim(strings.TrimSpace(rest), `"`)
		}
	}
	return strings.TrimSpace(prompt)
}

func formatDelay(d time.Duration) string {
	if d >= time.Second && d%time.Second == 0 {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	return d.String()
}
