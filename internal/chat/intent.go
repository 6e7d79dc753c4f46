package chat

import (
	"regexp"
	"strings"
)

// imageIntent matches a leading imperative verb asking for an image
var imageIntent = regexp.MustCompile(`(?i)^(generate|draw|create|paint|render|add|remove|change|make)\b`)

// IsImageRequest reports whether a turn goes to the image model: any turn
// with an attachment, or text whose first word is an image verb.
func IsImageRequest(text string, hasAttachment bool) bool {
	if hasAttachment {
		return true
	}
	return imageIntent.MatchString(strings.TrimSpace(text))
}
