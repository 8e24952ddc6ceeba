package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/cloo-solutions/licitai/internal/domain"
	"go.uber.org/zap"
)

var (
	codeTokenPattern   = regexp.MustCompile(`(?i)\b((?:OF|SZ|SZ\d)-[\w.-]+)\b`)
	numberTokenPattern = regexp.MustCompile(`\b(\d+)\b`)
)

// KeySource supplies the current metadata key set.
type KeySource interface {
	Keys(ctx context.Context) []string
}

// ExactMatcher looks up code-like and numeric tokens in identifier fields.
type ExactMatcher struct {
	repo   DocumentRepositoryInterface
	keys   KeySource
	logger *zap.Logger
}

func NewExactMatcher(repo DocumentRepositoryInterface, keys KeySource, logger *zap.Logger) *ExactMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExactMatcher{repo: repo, keys: keys, logger: logger}
}

// ExtractTokens returns code tokens then numeric tokens, deduplicated in
// first-seen order.
func ExtractTokens(query string) []string {
	seen := make(map[string]struct{})
	var tokens []string
	add := func(matches [][]string) {
		for _, m := range matches {
			if _, ok := seen[m[1]]; ok {
				continue
			}
			seen[m[1]] = struct{}{}
			tokens = append(tokens, m[1])
		}
	}
	add(codeTokenPattern.FindAllStringSubmatch(query, -1))
	add(numberTokenPattern.FindAllStringSubmatch(query, -1))
	return tokens
}

// Match never scans the table: a query without tokens returns immediately.
// A failing sub-lookup is logged and skipped.
func (m *ExactMatcher) Match(ctx context.Context, query string) []domain.EvidenceItem {
	tokens := ExtractTokens(query)
	if len(tokens) == 0 {
		return []domain.EvidenceItem{}
	}

	keys := m.keys.Keys(ctx)
	var identifierKeys []string
	hasIDExcel := false
	for _, k := range keys {
		if strings.Contains(k, "codigo") || strings.Contains(k, "oferta") {
			identifierKeys = append(identifierKeys, k)
		}
		if k == domain.MetaKeyIDExcel {
			hasIDExcel = true
		}
	}

	var items []domain.EvidenceItem
	seen := make(map[int64]struct{})
	collect := func(docs []domain.Document, provenance domain.Provenance) {
		for _, d := range docs {
			if _, ok := seen[d.ID]; ok {
				continue
			}
			seen[d.ID] = struct{}{}
			items = append(items, domain.EvidenceItem{Document: d, Provenance: provenance})
		}
	}

	for _, token := range tokens {
		for _, key := range identifierKeys {
			docs, err := m.repo.FilterMetadataILike(ctx, key, token)
			if err != nil {
				m.logger.Warn("Exact lookup failed", zap.String("key", key), zap.String("token", token), zap.Error(err))
				continue
			}
			collect(docs, domain.ExactProvenance(key))
		}

		if hasIDExcel && isDigits(token) {
			docs, err := m.repo.FilterMetadataEqual(ctx, domain.MetaKeyIDExcel, token)
			if err != nil {
				m.logger.Warn("ID lookup failed", zap.String("token", token), zap.Error(err))
				continue
			}
			collect(docs, domain.ProvenanceIDMatch)
		}
	}

	if items == nil {
		return []domain.EvidenceItem{}
	}
	return items
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
