package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTavilySearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req tavilyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-key", req.APIKey)
		assert.Equal(t, "precio del dólar hoy", req.Query)
		assert.Equal(t, 2, req.MaxResults)
		assert.True(t, req.IncludeAnswer)

		_ = json.NewEncoder(w).Encode(tavilyResponse{
			Answer: "3.75 soles",
			Results: []tavilyResult{
				{Title: "BCRP", URL: "https://bcrp.gob.pe", Content: " tipo de cambio ", Score: 0.9},
			},
		})
	}))
	defer server.Close()

	p, err := NewTavilyProvider("test-key", server.URL)
	require.NoError(t, err)

	results, err := p.Search(context.Background(), "precio del dólar hoy", Options{Limit: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "3.75 soles", results[0].Content)
	assert.Equal(t, "tipo de cambio", results[1].Content)
}

func TestTavilySearch_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p, err := NewTavilyProvider("bad", server.URL)
	require.NoError(t, err)

	_, err = p.Search(context.Background(), "clima", DefaultOptions())
	assert.ErrorContains(t, err, "status 401")
}

func TestBraveSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "brave-key", r.Header.Get("X-Subscription-Token"))
		assert.Equal(t, "noticias lima", r.URL.Query().Get("q"))
		assert.Equal(t, "es", r.URL.Query().Get("search_lang"))
		_, _ = w.Write([]byte(`{"web":{"results":[{"title":"A","url":"https://a","description":"uno"},{"title":"B","url":"https://b","description":"dos"}]}}`))
	}))
	defer server.Close()

	p, err := NewBraveProvider("brave-key", server.URL)
	require.NoError(t, err)

	results, err := p.Search(context.Background(), "noticias lima", DefaultOptions())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearxngSearch_RespectsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte(`{"results":[{"title":"1","url":"u1","content":"c1"},{"title":"2","url":"u2","content":"c2"},{"title":"3","url":"u3","content":"c3"}]}`))
	}))
	defer server.Close()

	p, err := NewSearxngProvider(server.URL + "/")
	require.NoError(t, err)

	results, err := p.Search(context.Background(), "clima", Options{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(Config{Provider: "tavily"})
	assert.Error(t, err, "tavily requires a key")

	p, err := NewProvider(Config{Provider: "SearXNG", APIURL: "http://searx"})
	require.NoError(t, err)
	assert.IsType(t, &SearxngProvider{}, p)

	_, err = NewProvider(Config{Provider: "bing"})
	assert.ErrorContains(t, err, "unsupported")
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "", Format(nil))

	long := strings.Repeat("x", maxSnippetChars+50)
	out := Format([]Result{{Title: "T", URL: "https://t", Content: "a\n  b"}, {Title: "L", URL: "u", Content: long}})
	assert.True(t, strings.HasPrefix(out, "RESULTADOS WEB:\n"))
	assert.Contains(t, out, "[1] T (https://t)\na b\n")
	assert.Contains(t, out, "...")
}
