// Package embedding wraps an OpenAI-compatible text embedding provider.
package embedding

import (
	"context"
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Sentinel error kinds for embedding failures. Callers classify with errors.Is.
var (
	// ErrInvalidInput indicates the text is empty after normalization.
	ErrInvalidInput = errors.New("invalid embedding input")
	// ErrDimensionMismatch indicates the provider returned a vector whose
	// length differs from the configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrInvalidValues indicates the provider returned NaN or infinite
	// components.
	ErrInvalidValues = errors.New("embedding contains invalid values")
	// ErrRateLimited indicates the provider signalled throttling. The client
	// does not retry internally; callers decide their own backoff.
	ErrRateLimited = errors.New("embedding provider rate limited")
	// ErrUnauthenticated indicates a missing or rejected credential. Fatal,
	// not retryable.
	ErrUnauthenticated = errors.New("embedding provider rejected credentials")
)

// Service is the vector embedding service interface.
type Service interface {
	// Embed generates a vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the vector dimension.
	Dimensions() int
}

// Config configures the embedding client. Any OpenAI-compatible provider
// works (openai, siliconflow, ollama, dashscope, etc.).
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int

	// RequestsPerSecond paces outbound calls. Zero disables pacing.
	RequestsPerSecond float64
}

type service struct {
	client     *openai.Client
	model      string
	dimensions int
	limiter    *rate.Limiter
}

// NewService creates a new embedding Service.
func NewService(cfg *Config) (Service, error) {
	if cfg.Model == "" {
		return nil, errors.New("embedding model is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, errors.Errorf("invalid embedding dimensions: %d", cfg.Dimensions)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &service{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		limiter:    limiter,
	}, nil
}

// Normalize trims the text and collapses internal whitespace runs to single
// spaces.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func (s *service) Embed(ctx context.Context, text string) ([]float32, error) {
	normalized := Normalize(text)
	if normalized == "" {
		return nil, errors.Wrap(ErrInvalidInput, "text is empty after normalization")
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "embedding rate limiter")
		}
	}

	req := openai.EmbeddingRequest{
		Input:          []string{normalized},
		Model:          openai.EmbeddingModel(s.model),
		Dimensions:     s.dimensions,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	resp, err := s.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, classifyProviderError(err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("empty embedding response")
	}

	vector := resp.Data[0].Embedding
	if err := Validate(vector, s.dimensions); err != nil {
		return nil, err
	}
	return vector, nil
}

func (s *service) Dimensions() int {
	return s.dimensions
}

// Validate is the hard integrity check run on every embedding before it is
// persisted: exact dimension and finite components.
func Validate(vector []float32, dimensions int) error {
	if len(vector) != dimensions {
		return errors.Wrapf(ErrDimensionMismatch, "got %d dimensions, expected %d", len(vector), dimensions)
	}
	for i, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.Wrapf(ErrInvalidValues, "component %d is not finite", i)
		}
	}
	return nil
}

// classifyProviderError maps provider HTTP failures onto the error taxonomy.
func classifyProviderError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429:
			return errors.Wrap(ErrRateLimited, apiErr.Message)
		case 401, 403:
			return errors.Wrap(ErrUnauthenticated, apiErr.Message)
		}
	}
	return errors.Wrap(err, "embedding provider call failed")
}
