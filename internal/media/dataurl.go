package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/diogo/nanogenius/internal/models"
)

// ErrNotDataURL is returned when a URL is not a base64 data URL
var ErrNotDataURL = errors.New("not a base64 data URL")

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// ParseDataURL decodes a data:<mime>;base64,<payload> URL
func ParseDataURL(dataURL string) (mimeType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	mimeType, ok = strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, ErrNotDataURL
	}

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}
	return mimeType, data, nil
}

// SaveDataURL writes the image carried by dataURL into dir and returns the
// absolute path. The extension follows the MIME type. An empty name falls
// back to a timestamp.
func SaveDataURL(dataURL, dir, name string) (string, error) {
	mimeType, data, err := ParseDataURL(dataURL)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	filename := sanitizeFilename(name)
	if filename == "" {
		filename = "image_" + time.Now().Format("20060102_150405")
	}
	filename = models.TruncateRunes(filename, 50)
	filename += extensionFor(mimeType)

	path, err := filepath.Abs(filepath.Join(dir, filename))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return path, nil
}

func extensionFor(mimeType string) string {
	if m := mimetype.Lookup(mimeType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return ".png"
}

// sanitizeFilename removes characters not allowed in filenames
func sanitizeFilename(name string) string {
	return strings.TrimSpace(invalidFilenameChars.ReplaceAllString(name, "_"))
}
