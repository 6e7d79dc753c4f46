// Package api talks to the Gemini API through the official genai SDK.
package api

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	apierrors "github.com/diogo/nanogenius/internal/errors"
	"github.com/diogo/nanogenius/internal/models"
)

// Service is everything the chat layers need from the AI backend
type Service interface {
	StreamText(ctx context.Context, history []models.Message, text string) iter.Seq2[string, error]
	GenerateImage(ctx context.Context, prompt string, input *ImageInput) (*models.GenerationResult, error)
	Close()
}

// contentGenerator is the subset of *genai.Models the client uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// GeminiClient implements Service
type GeminiClient struct {
	apiKey      string
	textModel   string
	imageModel  string
	backend     genai.Backend
	httpOptions genai.HTTPOptions
	logger      zerolog.Logger

	models contentGenerator

	mu     sync.RWMutex
	closed bool
}

var _ Service = (*GeminiClient)(nil)

// ClientOption is a function that configures the client
type ClientOption func(*GeminiClient)

// WithAPIKey sets the API key
func WithAPIKey(key string) ClientOption {
	return func(c *GeminiClient) {
		c.apiKey = key
	}
}

// WithTextModel sets the model used for streamed text replies
func WithTextModel(model string) ClientOption {
	return func(c *GeminiClient) {
		if model != "" {
			c.textModel = model
		}
	}
}

// WithImageModel sets the model used for image generation and editing
func WithImageModel(model string) ClientOption {
	return func(c *GeminiClient) {
		if model != "" {
			c.imageModel = model
		}
	}
}

// BackendFromName maps a configured backend name onto the SDK backend.
// An empty name selects the Gemini API.
func BackendFromName(name string) (genai.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gemini", "gemini-api":
		return genai.BackendGeminiAPI, nil
	case "vertex", "vertexai", "vertex-ai":
		return genai.BackendVertexAI, nil
	}
	return genai.BackendUnspecified, fmt.Errorf("unknown API backend %q (use gemini or vertex)", name)
}

// WithBackend selects the Gemini API or Vertex AI backend
func WithBackend(backend genai.Backend) ClientOption {
	return func(c *GeminiClient) {
		c.backend = backend
	}
}

// WithHTTPOptions overrides base URL, API version or headers
func WithHTTPOptions(opts genai.HTTPOptions) ClientOption {
	return func(c *GeminiClient) {
		c.httpOptions = opts
	}
}

// WithLogger sets the request logger
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *GeminiClient) {
		c.logger = logger
	}
}

// withGenerator replaces the SDK transport; used by tests
func withGenerator(g contentGenerator) ClientOption {
	return func(c *GeminiClient) {
		c.models = g
	}
}

// NewClient creates a new GeminiClient. It fails with ErrNoAPIKey when no
// key was supplied.
func NewClient(ctx context.Context, opts ...ClientOption) (*GeminiClient, error) {
	client := &GeminiClient{
		textModel:  models.ModelTextDefault,
		imageModel: models.ModelImageDefault,
		backend:    genai.BackendGeminiAPI,
		logger:     zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.models != nil {
		return client, nil
	}

	if client.apiKey == "" {
		return nil, apierrors.ErrNoAPIKey
	}

	sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      client.apiKey,
		Backend:     client.backend,
		HTTPOptions: client.httpOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	client.models = sdk.Models

	return client, nil
}

// TextModel returns the model used for text replies
func (c *GeminiClient) TextModel() string {
	return c.textModel
}

// ImageModel returns the model used for images
func (c *GeminiClient) ImageModel() string {
	return c.imageModel
}

// Close marks the client closed. Subsequent calls fail with ErrClientClosed.
func (c *GeminiClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// IsClosed returns whether the client is closed
func (c *GeminiClient) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// toContents converts chat history into genai contents. Messages without
// text are skipped since the text model only sees text turns.
func toContents(history []models.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		if m.Text == "" {
			continue
		}
		var role genai.Role = genai.RoleUser
		if m.Role == models.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	return contents
}
