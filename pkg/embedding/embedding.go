// Package embedding converts text into vectors through interchangeable
// providers. A cloud Gemini API is preferred when a key is configured,
// otherwise a local Ollama server is used. Transient provider failures are
// retried with exponential backoff.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"biobyia-go/internal/config"
	"biobyia-go/internal/model"
	"biobyia-go/pkg/log"
	"biobyia-go/pkg/retry"
)

// Client turns text into embedding vectors.
type Client interface {
	// EmbedOne embeds a single non-empty text.
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	// EmbedMany embeds every non-blank text, preserving input order.
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension reports the vector size for the configured model. When the
	// size is not known up front a probe call measures it; the result is
	// not cached.
	Dimension(ctx context.Context) (int, error)
	// Model returns the configured model name.
	Model() string
}

// provider is the raw transport behind the manager. Implementations do no
// retrying and no input validation of their own.
type provider interface {
	embedOne(ctx context.Context, text string) ([]float32, error)
	embedMany(ctx context.Context, texts []string) ([][]float32, error)
	// fixedDimension returns the known vector size for the model, or 0
	// when it has to be probed.
	fixedDimension() int
	model() string
	name() string
}

// APIError is a non-2xx response from an embedding provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// IsRetryable classifies provider errors. Rate limits, server errors and
// unreachable-service failures are worth retrying; auth failures, malformed
// input and cancellations are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, signature := range []string{
		"rate limit",
		"resource exhausted",
		"quota",
		"unavailable",
		"server busy",
		"connection refused",
		"connection reset",
		"timeout",
	} {
		if strings.Contains(msg, signature) {
			return true
		}
	}
	return false
}

type manager struct {
	provider provider
	retrier  *retry.Retrier
}

// Option adjusts a Client built by NewClient.
type Option func(*manager)

// WithRetrier replaces the default backoff schedule, mainly so tests can
// run without real delays.
func WithRetrier(r *retry.Retrier) Option {
	return func(m *manager) { m.retrier = r }
}

// NewClient selects an embedding provider by configuration priority: Gemini
// when an API key is present, otherwise Ollama. Construction fails with a
// ConfigurationError when the selected provider is missing its credential
// or endpoint.
func NewClient(cfg config.EmbeddingConfig, opts ...Option) (Client, error) {
	var p provider
	var err error
	if cfg.GeminiAPIKey != "" {
		p, err = newGeminiProvider(cfg)
	} else {
		p, err = newOllamaProvider(cfg)
	}
	if err != nil {
		return nil, err
	}
	log.Infof("[Embedding] provider selected: %s, model: %s", p.name(), p.model())

	m := &manager{
		provider: p,
		retrier: retry.New(retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
		}, retry.WithClassifier(IsRetryable), retry.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			log.Warnf("[Embedding] attempt %d failed, retrying in %s: %v", attempt, delay, err)
		})),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *manager) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, model.NewValidationError("embed", "text is empty")
	}

	var vector []float32
	err := m.retrier.Do(ctx, "embed", func() error {
		var callErr error
		vector, callErr = m.provider.embedOne(ctx, text)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

func (m *manager) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	valid := make([]string, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		return nil, model.NewValidationError("embed", "no non-empty texts to embed")
	}

	var vectors [][]float32
	err := m.retrier.Do(ctx, "embed batch", func() error {
		var callErr error
		vectors, callErr = m.provider.embedMany(ctx, valid)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

func (m *manager) Dimension(ctx context.Context) (int, error) {
	if d := m.provider.fixedDimension(); d > 0 {
		return d, nil
	}
	vector, err := m.EmbedOne(ctx, "test")
	if err != nil {
		return 0, fmt.Errorf("failed to probe embedding dimension: %w", err)
	}
	return len(vector), nil
}

func (m *manager) Model() string {
	return m.provider.model()
}
