package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultModel is the model name sent to the generation endpoint.
	DefaultModel = "gpt2"

	// DefaultMaxTokens is the completion length requested per call.
	DefaultMaxTokens = 150

	// DefaultGenerateTimeout bounds one generation request.
	DefaultGenerateTimeout = 60 * time.Second

	// maxResponseSize limits the generation response body.
	maxResponseSize = 1 << 20
)

// ErrEmptyEndpoint is returned when no generation endpoint is configured.
var ErrEmptyEndpoint = errors.New("generation endpoint is empty")

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f(ctx, prompt).
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// GenerateRequest is the body posted to the generation endpoint.
type GenerateRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

// GenerateResponse is the body returned by the generation endpoint.
type GenerateResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// GenerateError reports a non-2xx answer from the endpoint.
type GenerateError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *GenerateError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("generation failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("generation failed with status %d: %s", e.StatusCode, e.Message)
}

// HTTPGenerator calls a model server over HTTP with a JSON body.
type HTTPGenerator struct {
	endpoint  string
	model     string
	maxTokens int
	headers   map[string]string
	client    *http.Client
}

// HTTPGeneratorOption configures an HTTPGenerator.
type HTTPGeneratorOption func(*HTTPGenerator)

// WithModel sets the model name.
func WithModel(model string) HTTPGeneratorOption {
	return func(g *HTTPGenerator) {
		if model != "" {
			g.model = model
		}
	}
}

// WithMaxTokens sets the completion length.
func WithMaxTokens(n int) HTTPGeneratorOption {
	return func(g *HTTPGenerator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithHeader adds a request header, e.g. an API key.
func WithHeader(key, value string) HTTPGeneratorOption {
	return func(g *HTTPGenerator) {
		g.headers[key] = value
	}
}

// WithClient sets the HTTP client.
func WithClient(client *http.Client) HTTPGeneratorOption {
	return func(g *HTTPGenerator) {
		if client != nil {
			g.client = client
		}
	}
}

// NewHTTPGenerator creates a generator that posts to endpoint.
func NewHTTPGenerator(endpoint string, opts ...HTTPGeneratorOption) *HTTPGenerator {
	g := &HTTPGenerator{
		endpoint:  endpoint,
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
		headers:   make(map[string]string),
		client:    &http.Client{Timeout: DefaultGenerateTimeout},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate posts the prompt and returns the generated text.
func (g *HTTPGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.endpoint == "" {
		return "", ErrEmptyEndpoint
	}

	body, err := json.Marshal(GenerateRequest{
		Model:     g.model,
		Prompt:    prompt,
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range g.headers {
		req.Header.Set(k, v)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call generation endpoint: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("failed to read generation response: %w", err)
	}

	var out GenerateResponse
	decodeErr := json.Unmarshal(data, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := out.Error
		if decodeErr != nil {
			msg = string(bytes.TrimSpace(data))
		}
		return "", &GenerateError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to decode generation response: %w", decodeErr)
	}

	return out.Text, nil
}
