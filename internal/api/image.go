package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/genai"

	apierrors "github.com/diogo/nanogenius/internal/errors"
	"github.com/diogo/nanogenius/internal/models"
)

const endpointGenerate = "generateContent"

// ImageInput is an optional source image for editing requests
type ImageInput struct {
	Base64   string
	MIMEType string
}

// GenerateImage asks the image model to generate or edit an image.
// The source image, when given, is sent before the prompt. The reply's
// text parts are concatenated and the last inline image becomes a data URL.
// A reply with neither yields an empty, non-nil result.
func (c *GeminiClient) GenerateImage(ctx context.Context, prompt string, input *ImageInput) (*models.GenerationResult, error) {
	if c.IsClosed() {
		return nil, apierrors.ErrClientClosed
	}
	if prompt == "" {
		prompt = models.DefaultImagePrompt
	}

	parts := make([]*genai.Part, 0, 2)
	if input != nil {
		data, err := base64.StdEncoding.DecodeString(input.Base64)
		if err != nil {
			return nil, fmt.Errorf("invalid image data: %w", err)
		}
		mimeType := input.MIMEType
		if mimeType == "" {
			mimeType = models.DefaultImageMIMEType
		}
		parts = append(parts, genai.NewPartFromBytes(data, mimeType))
	}
	parts = append(parts, genai.NewPartFromText(prompt))

	c.logger.Debug().
		Str("model", c.imageModel).
		Bool("edit", input != nil).
		Msg("generating image")

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := c.models.GenerateContent(ctx, c.imageModel, contents, nil)
	if err != nil {
		err = apierrors.FromService(err, endpointGenerate)
		c.logger.Warn().Err(err).Msg("image generation failed")
		return nil, err
	}

	return extractResult(resp)
}

// extractResult folds the first candidate's parts into a GenerationResult
func extractResult(resp *genai.GenerateContentResponse) (*models.GenerationResult, error) {
	result := &models.GenerationResult{}
	if resp == nil {
		return result, nil
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		msg := fb.BlockReasonMessage
		if msg == "" {
			msg = string(fb.BlockReason)
		}
		return nil, apierrors.NewBlockedError(msg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return result, nil
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			result.ImageURL = models.DataURL(part.InlineData.MIMEType, part.InlineData.Data)
		}
	}
	result.Text = text.String()

	return result, nil
}
