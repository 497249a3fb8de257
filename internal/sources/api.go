package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/modelgate/modelgate-server/internal/httpclient"
)

const (
	// modelsPath is appended to the configured endpoint
	modelsPath = "/models"

	// maxFetchAttempts bounds retries within a single sync cycle; the
	// coordinator retries naturally on the next trigger anyway.
	maxFetchAttempts = 3
)

// listingResponse is the wire format of the upstream listing endpoint
type listingResponse struct {
	Data []listingModel `json:"data"`
}

// listingModel is a single model object as advertised by the upstream
type listingModel struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	OwnedBy         string        `json:"owned_by"`
	ContextWindow   int64         `json:"context_window"`
	MaxOutputTokens int64         `json:"max_output_tokens"`
	Pricing         listingPrices `json:"pricing"`
}

// listingPrices holds USD prices per million tokens
type listingPrices struct {
	Prompt     float64 `json:"prompt"`
	Completion float64 `json:"completion"`
}

// apiLister fetches model listings from an HTTP API endpoint
type apiLister struct {
	endpoint   string
	httpClient httpclient.Client
}

// NewAPILister creates a Lister backed by the given endpoint.
// The fetch timeout is enforced by the shared HTTP client.
func NewAPILister(endpoint string, timeout time.Duration) Lister {
	return &apiLister{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		httpClient: httpclient.ClientFor(timeout),
	}
}

// NewAPIListerWithClient creates a Lister with an explicit HTTP client,
// used by tests to inject failures.
func NewAPIListerWithClient(endpoint string, client httpclient.Client) Lister {
	return &apiLister{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		httpClient: client,
	}
}

// ListModels fetches and decodes the upstream listing, retrying transient
// failures with exponential backoff.
func (l *apiLister) ListModels(ctx context.Context) ([]Model, error) {
	url := l.endpoint + modelsPath

	operation := func() ([]byte, error) {
		body, err := l.httpClient.Get(ctx, url)
		if err != nil {
			var httpErr *httpclient.HTTPError
			if errors.As(err, &httpErr) && !isRetryable(httpErr.StatusCode) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return body, nil
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxFetchAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch model listing from %s: %w", url, err)
	}

	var listing listingResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("failed to parse model listing: %w", err)
	}

	models := make([]Model, 0, len(listing.Data))
	for _, m := range listing.Data {
		if m.ID == "" {
			continue
		}
		models = append(models, Model{
			ID:                       m.ID,
			DisplayName:              m.Name,
			Provider:                 m.OwnedBy,
			ContextWindow:            m.ContextWindow,
			MaxOutputTokens:          m.MaxOutputTokens,
			PromptCostPerMillion:     m.Pricing.Prompt,
			CompletionCostPerMillion: m.Pricing.Completion,
		})
	}

	return models, nil
}

// isRetryable reports whether a fetch with the given status is worth retrying
func isRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError
}
