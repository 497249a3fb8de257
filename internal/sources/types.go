// Package sources contains clients for upstream model listing APIs.
package sources

import "context"

// Model is a single entry from the upstream model listing.
type Model struct {
	ID                       string
	DisplayName              string
	Provider                 string
	ContextWindow            int64
	MaxOutputTokens          int64
	PromptCostPerMillion     float64
	CompletionCostPerMillion float64
}

// Lister fetches the full upstream model listing.
type Lister interface {
	// ListModels returns every model the upstream currently advertises.
	// The returned slice is empty (not nil) when the upstream lists nothing.
	ListModels(ctx context.Context) ([]Model, error)
}
