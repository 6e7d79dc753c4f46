package api

import (
	"context"
	"iter"
	"strings"

	"google.golang.org/genai"

	apierrors "github.com/diogo/nanogenius/internal/errors"
	"github.com/diogo/nanogenius/internal/models"
)

const endpointStream = "streamGenerateContent"

// StreamText sends history plus text to the text model and yields reply
// fragments in arrival order. Iteration stops after the first error.
func (c *GeminiClient) StreamText(ctx context.Context, history []models.Message, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if c.IsClosed() {
			yield("", apierrors.ErrClientClosed)
			return
		}
		if strings.TrimSpace(text) == "" {
			yield("", apierrors.ErrEmptyPrompt)
			return
		}

		contents := append(toContents(history), genai.NewContentFromText(text, genai.RoleUser))
		c.logger.Debug().
			Str("model", c.textModel).
			Int("turns", len(contents)).
			Msg("streaming text")

		chunks := 0
		for resp, err := range c.models.GenerateContentStream(ctx, c.textModel, contents, nil) {
			if err != nil {
				err = apierrors.FromService(err, endpointStream)
				c.logger.Warn().Err(err).Int("chunks", chunks).Msg("text stream failed")
				yield("", err)
				return
			}
			if resp == nil {
				continue
			}
			if chunk := resp.Text(); chunk != "" {
				chunks++
				if !yield(chunk, nil) {
					return
				}
			}
		}

		c.logger.Debug().Int("chunks", chunks).Msg("text stream finished")
	}
}
