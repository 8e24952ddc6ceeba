package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cloo-solutions/licitai/internal/domain"
	"github.com/cloo-solutions/licitai/internal/metrics"
	"github.com/cloo-solutions/licitai/internal/telemetry"
	"go.uber.org/zap"
)

const DefaultTableName = "documentos_dj"

var codeFencePattern = regexp.MustCompile("(?i)```sql|```")

// SchemaSource supplies discovered keys and status values.
type SchemaSource interface {
	Keys(ctx context.Context) []string
	DiscoverValidStates(ctx context.Context) []string
}

// SQLAnswerer answers questions with a synthesized read-only query.
type SQLAnswerer interface {
	Answer(ctx context.Context, query string, history domain.History, onProgress ProgressFunc) string
}

type SQLAgentConfig struct {
	TableName      string
	LogicModel     string
	NarrationModel string
}

// SQLAgent asks the model for a SELECT over the metadata store, executes it
// once and narrates the rows. Non-SELECT output escalates to the retriever.
type SQLAgent struct {
	repo      DocumentRepositoryInterface
	schema    SchemaSource
	generator Generator
	fallback  Retriever
	cfg       SQLAgentConfig
	logger    *zap.Logger
}

func NewSQLAgent(repo DocumentRepositoryInterface, schema SchemaSource, generator Generator, fallback Retriever, cfg SQLAgentConfig, logger *zap.Logger) *SQLAgent {
	if cfg.TableName == "" {
		cfg.TableName = DefaultTableName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLAgent{
		repo:      repo,
		schema:    schema,
		generator: generator,
		fallback:  fallback,
		cfg:       cfg,
		logger:    logger,
	}
}

func (a *SQLAgent) Answer(ctx context.Context, query string, history domain.History, onProgress ProgressFunc) string {
	ctx, span := telemetry.StartSpan(ctx, "sql.answer", telemetry.SpanAttributes{
		Route:     string(domain.RouteSQL),
		Model:     a.cfg.LogicModel,
		Operation: "answer",
	})
	defer span.End()

	opts := GenerateOptions{OnProgress: onProgress}
	prompt := BuildSQLPrompt(a.cfg.TableName, query, a.schema.Keys(ctx), history)
	raw := a.generator.Generate(ctx, a.cfg.LogicModel, prompt, opts)

	stmt, err := SanitizeSQL(raw)
	if err != nil {
		metrics.SQLOutcomes.WithLabelValues("fallback").Inc()
		a.logger.Info("Synthesized text is not a SELECT, falling back to retrieval", zap.String("output", truncate(raw, 200)))
		return a.fallback.Retrieve(ctx, query, history, onProgress)
	}

	a.logger.Debug("Executing synthesized query", zap.String("sql", stmt))
	rows, err := a.repo.ExecuteReadQuery(ctx, stmt)
	if err != nil {
		metrics.SQLOutcomes.WithLabelValues("error").Inc()
		a.logger.Warn("Synthesized query failed", zap.String("sql", stmt), zap.Error(err))
		span.SetError(err)
		return "Error SQL: " + err.Error()
	}

	if isEmptyResult(rows) {
		metrics.SQLOutcomes.WithLabelValues("empty").Inc()
		states := a.schema.DiscoverValidStates(ctx)
		suggestion := fmt.Sprintf(`
Usuario buscó: "%s". SQL dio 0 resultados.
ESTADOS REALES: %s
INSTRUCCIONES: Di que no hay coincidencias y sugiere un estado real.
`, query, marshalUnescaped(states))
		return a.generator.Generate(ctx, a.cfg.NarrationModel, suggestion, opts)
	}

	metrics.SQLOutcomes.WithLabelValues("rows").Inc()
	narration := fmt.Sprintf("Pregunta: %s\nDatos: %s\nResponde natural. Si es lista: * [CODIGO]: [CLIENTE] ([ESTADO])",
		query, marshalUnescaped(rows))
	return a.generator.Generate(ctx, a.cfg.NarrationModel, narration, opts)
}

// BuildSQLPrompt is deterministic for a given table, question, key set and
// history.
func BuildSQLPrompt(table, query string, keys []string, history domain.History) string {
	return fmt.Sprintf(`
ERES UN EXPERTO EN SQL POSTGRESQL. TABLA: '%s'.
CLAVES METADATA: %s.

HISTORIAL: %s
PREGUNTA: '%s'

REGLAS OBLIGATORIAS:
1. **NO USES COLUMNAS DIRECTAS.** Usa SIEMPRE `+"`metadata->>'clave'`"+`.

2. **FECHAS Y AÑOS (REGLA MAESTRA):**
   - ¡NO USES COLUMNAS DE FECHA! BUSCA EN EL CÓDIGO DE OFERTA.
   - Si piden "del 2024" -> `+"`(metadata->>'codigo de oferta' ILIKE '%%OF-24%%' OR metadata->>'codigo de oferta' ILIKE '%%_24%%')`"+`
   - Si piden "del 2017" -> `+"`(metadata->>'codigo de oferta' ILIKE '%%OF-17%%' OR metadata->>'codigo de oferta' ILIKE '%%_17%%')`"+`
   - Si hay códigos SZ, busca `+"`_XX`"+` al final (ej: `+"`SZ%%_17`"+`).

3. **ESTADOS (LÓGICA EXACTA):**
   - "Adjudicadas" -> `+"`metadata->>'estado de oferta' ILIKE '%%ADJUDICAD%%' AND metadata->>'estado de oferta' NOT ILIKE '%%NO%%'`"+`
     (Esto es vital para no contar las 'NO ADJUDICADAS' como ganadas).
   - "No Adjudicadas" -> `+"`metadata->>'estado de oferta' ILIKE '%%NO ADJUDICAD%%'`"+`
   - "Pendientes/Disponibles" -> `+"`metadata->>'estado de oferta' ILIKE '%%PENDIENT%%'`"+`

4. **ANTI-CONTAMINACIÓN:**
   - Si la pregunta NO especifica año, NO filtres por año (aunque el historial lo mencione). Cuenta el TOTAL HISTÓRICO.

Genera SOLO SQL.
`, table, strings.Join(keys, ", "), history.Format(domain.PromptTurns), query)
}

// SanitizeSQL strips code fences and trailing separators and rejects
// anything that does not start with the SELECT keyword followed by a space,
// "(" or "*". Prose such as "Selection not possible" is rejected.
func SanitizeSQL(text string) (string, error) {
	clean := strings.TrimSpace(codeFencePattern.ReplaceAllString(text, ""))
	for strings.HasSuffix(clean, ";") {
		clean = strings.TrimSpace(strings.TrimSuffix(clean, ";"))
	}
	const keyword = "select"
	if len(clean) <= len(keyword) || !strings.EqualFold(clean[:len(keyword)], keyword) {
		return "", domain.ErrNotSelect
	}
	if next := rune(clean[len(keyword)]); next != '(' && next != '*' && !unicode.IsSpace(next) {
		return "", domain.ErrNotSelect
	}
	return clean, nil
}

// isEmptyResult treats a lone zero count as no rows.
func isEmptyResult(rows []map[string]any) bool {
	if len(rows) == 0 {
		return true
	}
	if len(rows) != 1 {
		return false
	}
	count, ok := rows[0]["count"]
	return ok && isZero(count)
}

func isZero(v any) bool {
	switch n := v.(type) {
	case int:
		return n == 0
	case int32:
		return n == 0
	case int64:
		return n == 0
	case float64:
		return n == 0
	case string:
		return n == "0"
	default:
		return false
	}
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
