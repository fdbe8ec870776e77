// Package gemini implements the remote embedding backend on top of the
// Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/bidworks/rfp-qualifier/internal/embedding"
	"github.com/bidworks/rfp-qualifier/internal/utils"
)

const (
	defaultModel      = "gemini-embedding-001"
	defaultDimension  = 768
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
)

// embedCaller is the slice of the genai client the backend needs. Tests
// substitute it with a stub.
type embedCaller interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Config configures the Gemini embedding backend.
type Config struct {
	APIKey     string
	Model      string
	Dimension  int
	Timeout    time.Duration
	MaxRetries int
}

// Backend embeds text batches through the Gemini API. It retries transient
// API errors a bounded number of times and reports everything else as
// embedding.ErrBackendUnavailable for the pipeline to act on.
type Backend struct {
	models     embedCaller
	model      string
	dimension  int
	timeout    time.Duration
	maxRetries int
	logger     *zap.Logger
}

// New creates a Backend connected to the Gemini API.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Backend, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newBackend(client.Models, cfg, logger), nil
}

func newBackend(models embedCaller, cfg Config, logger *zap.Logger) *Backend {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = defaultDimension
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Backend{
		models:     models,
		model:      model,
		dimension:  dimension,
		timeout:    timeout,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (b *Backend) Name() string { return "gemini" }

func (b *Backend) Dimension() int { return b.dimension }

// EmbedBatch embeds all texts in a single request, returning one vector per
// input in input order.
func (b *Backend) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	dim := int32(b.dimension) //nolint:gosec // validated positive at construction
	config := &genai.EmbedContentConfig{OutputDimensionality: &dim}

	var resp *genai.EmbedContentResponse
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, b.timeout)
		var err error
		resp, err = b.models.EmbedContent(callCtx, b.model, contents, config)
		cancel()

		if err == nil {
			break
		}

		if attempt >= b.maxRetries || !isTransient(err) {
			return nil, fmt.Errorf("%w: gemini embed batch: %v", embedding.ErrBackendUnavailable, err)
		}

		b.logger.Debug("retrying gemini embeddings",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", b.maxRetries),
			zap.Error(err),
		)

		if err := utils.WaitFor(ctx, backoff(attempt)); err != nil {
			return nil, fmt.Errorf("%w: %v", embedding.ErrBackendUnavailable, err)
		}
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: gemini returned %d embeddings for %d inputs",
			embedding.ErrBackendUnavailable, len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float64, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("%w: gemini returned an empty embedding at position %d",
				embedding.ErrBackendUnavailable, i)
		}

		vec := make([]float64, len(emb.Values))
		for j, v := range emb.Values {
			vec[j] = float64(v)
		}
		vectors[i] = vec
	}

	return vectors, nil
}

// isTransient reports whether the error is worth a bounded retry: rate
// limiting, server-side failures and plain timeouts.
func isTransient(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}

	return errors.Is(err, context.DeadlineExceeded)
}

func backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}

	return d
}
