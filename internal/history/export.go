package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/diogo/nanogenius/internal/models"
)

// ExportFormat represents the format for exporting conversations
type ExportFormat string

const (
	ExportFormatMarkdown ExportFormat = "markdown"
	ExportFormatJSON     ExportFormat = "json"
)

// ParseExportFormat accepts "markdown", "md" and "json"
func ParseExportFormat(name string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "md", "markdown":
		return ExportFormatMarkdown, nil
	case "json":
		return ExportFormatJSON, nil
	}
	return "", fmt.Errorf("unknown export format %q (use markdown or json)", name)
}

// ExportOptions configures how conversations are exported
type ExportOptions struct {
	Format ExportFormat
	// IncludeImages embeds data URLs; otherwise images become placeholders
	IncludeImages bool
	// IncludeErrors keeps failed replies
	IncludeErrors bool
}

// DefaultExportOptions returns the defaults used by `sessions export`
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Format: ExportFormatMarkdown,
	}
}

// Export renders s in the configured format
func Export(s models.ChatSession, opts ExportOptions) ([]byte, error) {
	switch opts.Format {
	case ExportFormatJSON:
		return ExportToJSON(s, opts)
	case ExportFormatMarkdown, "":
		return []byte(ExportToMarkdown(s, opts)), nil
	}
	return nil, fmt.Errorf("unknown export format %q", opts.Format)
}

// ExportToMarkdown exports a session to Markdown
func ExportToMarkdown(s models.ChatSession, opts ExportOptions) string {
	var sb strings.Builder

	sb.WriteString("# ")
	sb.WriteString(s.Title)
	sb.WriteString("\n\n")

	if s.UpdatedAt > 0 {
		sb.WriteString("**Updated:** ")
		sb.WriteString(time.UnixMilli(s.UpdatedAt).Format("2006-01-02 15:04:05"))
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "**Messages:** %d\n\n---\n\n", len(s.Messages))

	messages := exportable(s.Messages, opts)
	for i, msg := range messages {
		role := "User"
		if msg.Role == models.RoleModel {
			role = "NanoGenius"
		}

		sb.WriteString("## ")
		sb.WriteString(role)
		if msg.Timestamp > 0 {
			sb.WriteString(" (")
			sb.WriteString(time.UnixMilli(msg.Timestamp).Format("15:04:05"))
			sb.WriteString(")")
		}
		sb.WriteString("\n\n")

		if msg.Text != "" {
			sb.WriteString(msg.Text)
			sb.WriteString("\n")
		}
		if msg.ImageURL != "" {
			if opts.IncludeImages {
				fmt.Fprintf(&sb, "\n![image](%s)\n", msg.ImageURL)
			} else {
				sb.WriteString("\n*[image]*\n")
			}
		}

		if i < len(messages)-1 {
			sb.WriteString("\n---\n\n")
		}
	}

	return sb.String()
}

// ExportToJSON exports a session in the persisted layout
func ExportToJSON(s models.ChatSession, opts ExportOptions) ([]byte, error) {
	out := s.Clone()
	out.Messages = exportable(out.Messages, opts)
	if !opts.IncludeImages {
		for i := range out.Messages {
			if out.Messages[i].ImageURL != "" {
				out.Messages[i].ImageURL = "[image]"
			}
		}
	}
	return json.MarshalIndent(out, "", "  ")
}

func exportable(messages []models.Message, opts ExportOptions) []models.Message {
	out := make([]models.Message, 0, len(messages))
	for _, m := range messages {
		if m.IsError && !opts.IncludeErrors {
			continue
		}
		out = append(out, m)
	}
	return out
}

// SearchResult represents a search match in a session
type SearchResult struct {
	Session      models.ChatSession
	MatchSnippet string // Snippet where the term was found
	MatchField   string // "title" or "content"
	MatchIndex   int    // Message index if MatchField is "content", -1 for title
}

// Search finds query in session titles and optionally message text
func Search(sessions []models.ChatSession, query string, searchContent bool) []SearchResult {
	queryLower := strings.ToLower(query)
	var results []SearchResult

	for _, s := range sessions {
		if strings.Contains(strings.ToLower(s.Title), queryLower) {
			results = append(results, SearchResult{
				Session:      s,
				MatchSnippet: s.Title,
				MatchField:   "title",
				MatchIndex:   -1,
			})
			continue
		}

		if !searchContent {
			continue
		}
		for i, msg := range s.Messages {
			if msg.IsError {
				continue
			}
			if strings.Contains(strings.ToLower(msg.Text), queryLower) {
				results = append(results, SearchResult{
					Session:      s,
					MatchSnippet: extractSnippet(msg.Text, query, 100),
					MatchField:   "content",
					MatchIndex:   i,
				})
				break // one match per session
			}
		}
	}

	return results
}

// extractSnippet extracts a rune-safe snippet around the first occurrence of query
func extractSnippet(content, query string, maxLen int) string {
	runes := []rune(content)
	lower := strings.ToLower(content)
	idx := strings.Index(lower, strings.ToLower(query))
	if idx == -1 || utf8.RuneCountInString(lower) != len(runes) {
		return models.Preview(content, maxLen)
	}
	idx = utf8.RuneCountInString(lower[:idx])
	qlen := utf8.RuneCountInString(query)

	half := maxLen / 2
	start := idx - half
	end := idx + qlen + half

	if start < 0 {
		start = 0
		end = maxLen
	}
	if end > len(runes) {
		end = len(runes)
		start = max(0, end-maxLen)
	}

	snippet := string(runes[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(runes) {
		snippet += "..."
	}
	return snippet
}
