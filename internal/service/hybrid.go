package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloo-solutions/licitai/internal/domain"
	"github.com/cloo-solutions/licitai/internal/telemetry"
	"go.uber.org/zap"
)

const DefaultShortQueryWords = 4

// EvidenceMatcher returns evidence items for a query.
type EvidenceMatcher interface {
	Match(ctx context.Context, query string) []domain.EvidenceItem
}

// Retriever answers from merged exact and vector evidence.
type Retriever interface {
	Retrieve(ctx context.Context, query string, history domain.History, onProgress ProgressFunc) string
}

// HybridRetriever merges exact and vector matches and narrates them.
type HybridRetriever struct {
	exact           EvidenceMatcher
	vector          EvidenceMatcher
	generator       Generator
	model           string
	shortQueryWords int
	logger          *zap.Logger
}

func NewHybridRetriever(exact, vector EvidenceMatcher, generator Generator, model string, shortQueryWords int, logger *zap.Logger) *HybridRetriever {
	if shortQueryWords <= 0 {
		shortQueryWords = DefaultShortQueryWords
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridRetriever{
		exact:           exact,
		vector:          vector,
		generator:       generator,
		model:           model,
		shortQueryWords: shortQueryWords,
		logger:          logger,
	}
}

func (r *HybridRetriever) Retrieve(ctx context.Context, query string, history domain.History, onProgress ProgressFunc) string {
	ctx, span := telemetry.StartSpan(ctx, "retriever.retrieve", telemetry.SpanAttributes{
		Route:     string(domain.RouteRAG),
		Operation: "retrieve",
	})
	defer span.End()

	exact := r.exact.Match(ctx, query)
	vector := r.vector.Match(ctx, r.ExpandQuery(query, history))
	evidence := MergeEvidence(exact, vector)

	r.logger.Debug("Evidence merged",
		zap.Int("exact", len(exact)),
		zap.Int("vector", len(vector)),
		zap.Int("merged", len(evidence)),
	)

	prompt := fmt.Sprintf(`
Eres un ANALISTA DE LICITACIONES.
HISTORIAL: %s
EVIDENCIA: %s
PREGUNTA: "%s"
Responde usando la evidencia.
`, history.Format(domain.PromptTurns), FormatEvidence(evidence), query)

	return r.generator.Generate(ctx, r.model, prompt, GenerateOptions{OnProgress: onProgress})
}

// ExpandQuery appends the previous turn to short follow-up questions so
// elliptical queries ("¿y la segunda?") carry their referent.
func (r *HybridRetriever) ExpandQuery(query string, history domain.History) string {
	last, ok := history.Last()
	if !ok || len(strings.Fields(query)) >= r.shortQueryWords {
		return query
	}
	return fmt.Sprintf("%s (Contexto: %s)", query, last.Content)
}

// MergeEvidence concatenates evidence sets keeping the first item per
// document ID, so earlier sets win identity collisions.
func MergeEvidence(sets ...[]domain.EvidenceItem) []domain.EvidenceItem {
	merged := make([]domain.EvidenceItem, 0)
	seen := make(map[int64]struct{})
	for _, set := range sets {
		for _, item := range set {
			if _, ok := seen[item.Document.ID]; ok {
				continue
			}
			seen[item.Document.ID] = struct{}{}
			merged = append(merged, item)
		}
	}
	return merged
}

// FormatEvidence renders items as "--- DOC (tag) ---" blocks.
func FormatEvidence(items []domain.EvidenceItem) string {
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "--- DOC (%s) ---\nMeta: %s\nTexto: %s\n",
			item.Provenance, marshalUnescaped(item.Document.Metadata), item.Document.Content)
	}
	return b.String()
}

// marshalUnescaped renders JSON keeping accents and symbols readable.
func marshalUnescaped(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "{}"
	}
	return strings.TrimRight(buf.String(), "\n")
}
