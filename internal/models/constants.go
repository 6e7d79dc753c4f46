// Package models contains data types and constants for NanoGenius.
package models

// Gemini model identifiers
const (
	// ModelTextDefault is used for streamed text chat.
	ModelTextDefault = "gemini-2.5-flash"

	// ModelImageDefault is used for image generation and editing.
	ModelImageDefault = "gemini-2.5-flash-image"
)

// Session and message defaults
const (
	// StorageKey is the fixed key the session collection is stored under.
	StorageKey = "nanoGeniusSessions"

	// DefaultSessionTitle is the title of a freshly created session.
	DefaultSessionTitle = "New Conversation"

	// FallbackSessionTitle is used when no title can be derived.
	FallbackSessionTitle = "New Chat"

	// TitleMaxRunes bounds titles derived from the first message.
	TitleMaxRunes = 30

	// DefaultImagePrompt is sent when an image is attached without text.
	DefaultImagePrompt = "Describe this image"

	// ErrorReplyText is shown in place of a reply when a request fails.
	ErrorReplyText = "Sorry, I encountered an error processing your request. Please try again."

	// DefaultImageMIMEType is assumed for inline images without a type.
	DefaultImageMIMEType = "image/png"
)

// StarterPrompts are suggested on the empty conversation screen.
var StarterPrompts = []StarterPrompt{
	{Label: "🎨 Generate a cyberpunk city", Prompt: "Generate a cyberpunk city with neon lights"},
	{Label: "🧠 Explain quantum physics", Prompt: "Explain quantum physics in simple terms"},
	{Label: "📸 Add vintage filter (attach image)", Prompt: "Add a vintage filter to this image"},
	{Label: "🏛️ History of Rome", Prompt: "What is the history of Rome?"},
}

// StarterPrompt is a canned prompt offered on the welcome screen
type StarterPrompt struct {
	Label  string
	Prompt string
}

// AvailableTextModels returns the text models offered in the config
func AvailableTextModels() []string {
	return []string{
		"gemini-2.5-flash",
		"gemini-2.5-flash-lite",
		"gemini-2.5-pro",
	}
}
