// Package history resolves, searches and exports saved conversations.
package history

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/diogo/nanogenius/internal/models"
)

// minPrefixLen is the shortest id prefix accepted as a reference
const minPrefixLen = 4

// Source is the session collection a Resolver reads from
type Source interface {
	Sessions() []models.ChatSession
	CurrentID() string
}

// Resolver resolves user-friendly references to session IDs
type Resolver struct {
	source Source
}

// NewResolver creates a new alias resolver
func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve converts a user-friendly reference to a session ID
//
// Supported references:
//   - "@current" - the selected session
//   - "@last" - most recently updated session
//   - "@first" - oldest entry in the list
//   - "1", "2", "3" - by list position (1-based)
//   - a full session ID or a unique prefix of one
//   - "substring" - match on title (error if multiple matches)
func (r *Resolver) Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty reference")
	}

	sessions := r.source.Sessions()
	if len(sessions) == 0 {
		return "", fmt.Errorf("no conversations found")
	}

	switch strings.ToLower(ref) {
	case "@current":
		return r.source.CurrentID(), nil
	case "@last":
		latest := sessions[0]
		for _, s := range sessions[1:] {
			if s.UpdatedAt > latest.UpdatedAt {
				latest = s
			}
		}
		return latest.ID, nil
	case "@first":
		return sessions[len(sessions)-1].ID, nil
	}

	if index, err := strconv.Atoi(ref); err == nil {
		if index < 1 || index > len(sessions) {
			return "", fmt.Errorf("index %d out of range (1-%d)", index, len(sessions))
		}
		return sessions[index-1].ID, nil
	}

	var prefixed []models.ChatSession
	for _, s := range sessions {
		if s.ID == ref {
			return s.ID, nil
		}
		if len(ref) >= minPrefixLen && strings.HasPrefix(s.ID, ref) {
			prefixed = append(prefixed, s)
		}
	}
	if len(prefixed) == 1 {
		return prefixed[0].ID, nil
	}
	if len(prefixed) > 1 {
		return "", ambiguous(ref, prefixed)
	}

	refLower := strings.ToLower(ref)
	var matches []models.ChatSession
	for _, s := range sessions {
		if strings.Contains(strings.ToLower(s.Title), refLower) {
			matches = append(matches, s)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no conversation matching '%s'", ref)
	case 1:
		return matches[0].ID, nil
	default:
		return "", ambiguous(ref, matches)
	}
}

func ambiguous(ref string, matches []models.ChatSession) error {
	var titles []string
	for _, m := range matches {
		titles = append(titles, fmt.Sprintf("'%s' (%s)", m.Title, models.TruncateRunes(m.ID, 8)))
	}
	return fmt.Errorf("multiple conversations match '%s': %s. Use the ID or be more specific",
		ref, strings.Join(titles, ", "))
}

// ListAliases returns information about supported references
func ListAliases() string {
	return `Supported references:
  @current       The selected conversation
  @last          Most recently updated conversation
  @first         Last entry in the list
  1, 2, 3        By position in 'sessions list'
  3f2a...        Conversation ID or a unique prefix (4+ characters)
  "text"         Search by title substring`
}
