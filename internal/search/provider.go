// Package search fetches live web results used to ground WEB-route answers.
package search

import (
	"context"
	"fmt"
	"strings"
)

const (
	ProviderTavily  = "tavily"
	ProviderBrave   = "brave"
	ProviderSearxng = "searxng"
)

// Provider defines the interface for web search providers.
type Provider interface {
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// Result represents a single search result.
type Result struct {
	Title   string
	URL     string
	Content string
	Score   float64
}

// Options controls search behavior across providers.
type Options struct {
	Limit    int
	Language string
}

// DefaultOptions targets Spanish results for the Peruvian audience.
func DefaultOptions() Options {
	return Options{Limit: 5, Language: "es"}
}

// Config selects and configures a provider.
type Config struct {
	Provider string
	APIKey   string
	APIURL   string
}

// NewProvider creates a search provider from configuration.
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderTavily, "":
		return NewTavilyProvider(cfg.APIKey, cfg.APIURL)
	case ProviderBrave:
		return NewBraveProvider(cfg.APIKey, cfg.APIURL)
	case ProviderSearxng:
		return NewSearxngProvider(cfg.APIURL)
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", cfg.Provider)
	}
}

// maxSnippetChars bounds each result so a handful fit in one prompt.
const maxSnippetChars = 600

// Format renders results as a prompt block. Empty input yields "".
func Format(results []Result) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("RESULTADOS WEB:\n")
	for i, r := range results {
		content := strings.Join(strings.Fields(r.Content), " ")
		if len(content) > maxSnippetChars {
			content = content[:maxSnippetChars] + "..."
		}
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n", i+1, r.Title, r.URL, content)
	}
	return b.String()
}
