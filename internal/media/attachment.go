// Package media handles image attachments and generated image payloads.
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageSize is the largest attachment accepted
const MaxImageSize = 20 * 1024 * 1024 // 20MB

// ErrUnsupportedType is returned for files that are not a supported image
var ErrUnsupportedType = errors.New("unsupported image type")

// SupportedImageTypes returns the MIME types accepted as attachments
func SupportedImageTypes() []string {
	return []string{
		"image/jpeg",
		"image/png",
		"image/gif",
		"image/webp",
	}
}

// Attachment is an image picked by the user for the next message
type Attachment struct {
	Path     string
	Name     string
	MIMEType string
	Size     int64
	// PreviewURL is a file:// URL shown in the user's message
	PreviewURL string
}

// LoadAttachment validates the image at path and describes it.
// A leading ~/ is expanded to the home directory.
func LoadAttachment(path string) (*Attachment, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("no file given")
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, rest)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxImageSize {
		return nil, fmt.Errorf("file size exceeds maximum %d bytes", MaxImageSize)
	}

	mtype, err := mimetype.DetectFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("mime detection failed: %w", err)
	}
	mimeType, ok := supportedType(mtype)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}

	return &Attachment{
		Path:       absPath,
		Name:       filepath.Base(absPath),
		MIMEType:   mimeType,
		Size:       info.Size(),
		PreviewURL: (&url.URL{Scheme: "file", Path: filepath.ToSlash(absPath)}).String(),
	}, nil
}

func supportedType(mtype *mimetype.MIME) (string, bool) {
	for _, t := range SupportedImageTypes() {
		if mtype.Is(t) {
			return t, true
		}
	}
	return "", false
}

// Base64 reads the file and returns its standard base64 encoding
func (a *Attachment) Base64() (string, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read attachment: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
