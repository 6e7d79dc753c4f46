package chat

// EventKind identifies a step of a send operation
type EventKind int

const (
	// EventUserMessage: the user's message was appended
	EventUserMessage EventKind = iota
	// EventPlaceholder: an empty model message was appended for streaming
	EventPlaceholder
	// EventChunk: the placeholder text grew; Text holds the full reply so far
	EventChunk
	// EventReply: the final model message was committed
	EventReply
	// EventFailed: the error message replaced any partial reply
	EventFailed
	// EventDone: the operation finished and a new send may start
	EventDone
)

var eventNames = map[EventKind]string{
	EventUserMessage: "user_message",
	EventPlaceholder: "placeholder",
	EventChunk:       "chunk",
	EventReply:       "reply",
	EventFailed:      "failed",
	EventDone:        "done",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is delivered to the observer after the matching state change has
// been committed to the session manager.
type Event struct {
	Kind      EventKind
	SessionID string
	MessageID string
	Text      string
	ImageURL  string
	Err       error
}

// Observer receives events on the goroutine running Send
type Observer func(Event)
