// Package routing implements tool-suggestion lookups over the
// keyword-to-tool feedback weights accumulated by the tracking component:
// given a query, return the tools most likely to help, ranked by the
// success-weighted usage score already computed at write time.
package routing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agentmemory/backend/internal/store"
)

// Router is the capacity/routing intelligence component's suggestion half.
type Router struct {
	routing store.RoutingStore
}

// New constructs a Router over the given store.
func New(routing store.RoutingStore) *Router {
	return &Router{routing: routing}
}

// Suggestion is one ranked tool recommendation.
type Suggestion struct {
	ToolName   string  `json:"toolName"`
	ToolType   string  `json:"toolType"`
	Weight     float64 `json:"weight"`
	UsageCount int64   `json:"usageCount"`
	Keywords   []string `json:"keywords"`
}

// Suggest tokenizes query into keywords, looks up accumulated weights for
// each, and aggregates them per candidate tool by summing the weight of
// every matching keyword (a tool that hits on three keywords outranks one
// that hits on a single, heavier keyword). Ties break by usage_count
// descending, then tool name lexicographically, for deterministic output.
func (r *Router) Suggest(ctx context.Context, query string, topK int) ([]Suggestion, error) {
	if topK <= 0 {
		topK = 5
	}

	keywords := tokenize(query)
	if len(keywords) == 0 {
		return nil, nil
	}

	agg := make(map[string]*Suggestion) // toolName -> accumulated suggestion
	for _, kw := range keywords {
		entries, err := r.routing.ListByKeyword(ctx, kw)
		if err != nil {
			return nil, fmt.Errorf("list routing entries for %q: %w", kw, err)
		}
		for _, e := range entries {
			s, ok := agg[e.ToolName]
			if !ok {
				s = &Suggestion{ToolName: e.ToolName, ToolType: e.ToolType}
				agg[e.ToolName] = s
			}
			s.Weight += e.Weight
			if e.UsageCount > s.UsageCount {
				s.UsageCount = e.UsageCount
			}
			s.Keywords = append(s.Keywords, kw)
		}
	}

	out := make([]Suggestion, 0, len(agg))
	for _, s := range agg {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		if out[i].UsageCount != out[j].UsageCount {
			return out[i].UsageCount > out[j].UsageCount
		}
		return out[i].ToolName < out[j].ToolName
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// All returns every routing entry, for the admin/introspection surface.
func (r *Router) All(ctx context.Context) ([]*store.RoutingEntryData, error) {
	entries, err := r.routing.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list routing entries: %w", err)
	}
	return entries, nil
}

// Tokenize lowercases and splits on whitespace/punctuation, dropping
// anything shorter than 3 characters as too generic to route on. Exported
// so the tracking component can derive the same keyword set from a tool
// invocation that Suggest later matches against.
func Tokenize(query string) []string {
	return tokenize(query)
}

// tokenize lowercases and splits on whitespace/punctuation, dropping
// anything shorter than 3 characters as too generic to route on.
func tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len(f) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
