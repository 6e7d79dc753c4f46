package models

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DataURL builds a data URL for raw image bytes
func DataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = DefaultImageMIMEType
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// IsDataURL reports whether url is an inline data URL
func IsDataURL(url string) bool {
	return strings.HasPrefix(url, "data:")
}
