package api

import (
	"context"
	"iter"
	"sync"

	"github.com/diogo/nanogenius/internal/models"
)

// MockClient is a scripted Service for tests
type MockClient struct {
	// Chunks are yielded by StreamText in order.
	Chunks []string
	// StreamErr, when set, is yielded after Chunks.
	StreamErr error
	// Block, when non-nil, is received from before StreamText or
	// GenerateImage returns, letting tests hold an operation open.
	Block chan struct{}

	ImageResult *models.GenerationResult
	ImageErr    error

	mu          sync.Mutex
	LastHistory []models.Message
	LastText    string
	LastPrompt  string
	LastInput   *ImageInput
	StreamCalls int
	ImageCalls  int
	CloseCalled bool
}

var _ Service = (*MockClient)(nil)

func (m *MockClient) StreamText(ctx context.Context, history []models.Message, text string) iter.Seq2[string, error] {
	m.mu.Lock()
	m.StreamCalls++
	m.LastHistory = append([]models.Message(nil), history...)
	m.LastText = text
	m.mu.Unlock()

	return func(yield func(string, error) bool) {
		if m.Block != nil {
			select {
			case <-m.Block:
			case <-ctx.Done():
				yield("", ctx.Err())
				return
			}
		}
		for _, chunk := range m.Chunks {
			if !yield(chunk, nil) {
				return
			}
		}
		if m.StreamErr != nil {
			yield("", m.StreamErr)
		}
	}
}

func (m *MockClient) GenerateImage(ctx context.Context, prompt string, input *ImageInput) (*models.GenerationResult, error) {
	m.mu.Lock()
	m.ImageCalls++
	m.LastPrompt = prompt
	m.LastInput = input
	m.mu.Unlock()

	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.ImageErr != nil {
		return nil, m.ImageErr
	}
	if m.ImageResult == nil {
		return &models.GenerationResult{}, nil
	}
	return m.ImageResult, nil
}

func (m *MockClient) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
}
