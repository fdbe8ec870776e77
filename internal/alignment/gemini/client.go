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

	"github.com/bidworks/rfp-qualifier/internal/utils"
)

const (
	defaultModel      = "gemini-2.5-flash"
	defaultTimeout    = 45 * time.Second
	defaultMaxRetries = 3
)

// modelCaller is the slice of the genai client the generator needs. Tests
// substitute it with a stub.
type modelCaller interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator wraps the Google GenAI client to provide simple prompt-based interactions.
type Generator struct {
	models     modelCaller
	modelName  string
	timeout    time.Duration
	maxRetries int
	logger     *zap.Logger
}

// GeneratorConfig configures the Gemini text generation client.
type GeneratorConfig struct {
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, cfg GeneratorConfig, logger *zap.Logger) (*Generator, error) {
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

	return newGenerator(client.Models, cfg, logger), nil
}

func newGenerator(models modelCaller, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
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

	return &Generator{
		models:     models,
		modelName:  model,
		timeout:    timeout,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// GenerateContent sends the prompt to Gemini and returns the first textual
// response, retrying transient API errors a bounded number of times.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	var resp *genai.GenerateContentResponse
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		var err error
		resp, err = g.models.GenerateContent(callCtx, g.modelName, genai.Text(prompt), nil)
		cancel()

		if err == nil {
			break
		}

		if attempt >= g.maxRetries || !isTransient(err) {
			return "", fmt.Errorf("generate content: %w", err)
		}

		g.logger.Debug("retrying gemini generation",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", g.maxRetries),
			zap.Error(err),
		)

		if err := utils.WaitFor(ctx, backoff(attempt)); err != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}

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
