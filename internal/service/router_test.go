package service

import (
	"context"
	"testing"

	"github.com/cloo-solutions/licitai/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestMatchRules(t *testing.T) {
	tests := []struct {
		query string
		want  domain.Route
		ok    bool
	}{
		{"Cuantos pendientes hay", domain.RouteSQL, true},
		{"Busca la oferta 10", domain.RouteSQL, true},
		{"qué hora es", domain.RouteWeb, true},
		{"noticias de hoy del 2025", domain.RouteSQL, true},
		{"precio del DÓLAR", domain.RouteWeb, true},
		{"Licitación de ACME", domain.RouteSQL, true},
		{"quien es Messi", domain.RouteWeb, true},
		{"cuéntame un chiste", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, ok := MatchRules(DefaultRouteRules, tt.query)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchRules_SQLBeforeWeb(t *testing.T) {
	// "hoy" is a WEB keyword and "202" a SQL one.
	route, ok := MatchRules(DefaultRouteRules, "qué pasó hoy con las del 2024")
	assert.True(t, ok)
	assert.Equal(t, domain.RouteSQL, route)
}

func TestMatchRules_CustomTable(t *testing.T) {
	rules := []RouteRule{{Route: domain.RouteRAG, Keywords: []string{"resumen"}}}
	route, ok := MatchRules(rules, "dame un RESUMEN")
	assert.True(t, ok)
	assert.Equal(t, domain.RouteRAG, route)
}

func TestRouter_Classify(t *testing.T) {
	ctx := context.Background()

	t.Run("keyword fast path skips the model", func(t *testing.T) {
		gen := new(MockGenerator)
		r := NewRouter(gen, "logic", nil)

		assert.Equal(t, domain.RouteSQL, r.Classify(ctx, "estado de OF-24-001", nil, nil))
		gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("model fallback is parsed", func(t *testing.T) {
		tests := map[string]domain.Route{
			"GENERAL":           domain.RouteGeneral,
			"sql":               domain.RouteSQL,
			" WEB.":             domain.RouteWeb,
			"RAG":               domain.RouteRAG,
			SaturatedMessage:    domain.RouteGeneral,
			"Error IA: timeout": domain.RouteGeneral,
		}
		for out, want := range tests {
			gen := new(MockGenerator)
			gen.On("Generate", mock.Anything, "logic", mock.Anything, mock.Anything).Return(out)
			r := NewRouter(gen, "logic", nil)
			assert.Equal(t, want, r.Classify(ctx, "cuéntame un chiste", nil, nil), out)
		}
	})
}
