package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	apierrors "github.com/diogo/nanogenius/internal/errors"
)

// formatErrorMessage formats an error with additional context from structured errors
func formatErrorMessage(err error, context string) string {
	if err == nil {
		return ""
	}

	errorStyle := lipgloss.NewStyle().Foreground(colorError)

	var sb strings.Builder
	sb.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s: %v", context, err)))

	if status := apierrors.GetHTTPStatus(err); status > 0 {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  HTTP Status: %d", status)))
	}

	var (
		apiErr     *apierrors.APIError
		timeoutErr *apierrors.TimeoutError
	)
	switch {
	case errors.As(err, &apiErr) && apiErr.Endpoint != "":
		sb.WriteString(dimStyle.Render("\n  Endpoint: " + apiErr.Endpoint))
	case errors.As(err, &timeoutErr) && timeoutErr.Endpoint != "":
		sb.WriteString(dimStyle.Render("\n  Endpoint: " + timeoutErr.Endpoint))
	}

	if hint := apierrors.Hint(err); hint != "" {
		sb.WriteString(dimStyle.Render("\n  Hint: " + hint))
	}

	return sb.String()
}
