package cmd

import (
	"errors"

	"github.com/nextlevelbuilder/clawlite/internal/providers"
)

// formatAgentError turns an agent run failure into a short message safe to
// deliver back over a channel — no stack traces or internal paths, just
// enough for the operator to know what to do next.
func formatAgentError(err error) string {
	if err == nil {
		return ""
	}

	var httpErr *providers.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Unauthorized():
			return "⚠️ The model provider rejected the request (invalid or missing API key). Check your provider configuration."
		case httpErr.RateLimited():
			return "⚠️ The model provider is rate-limiting requests right now. Please try again shortly."
		case httpErr.Status >= 500:
			return "⚠️ The model provider is having trouble right now. Please try again."
		}
	}

	return "⚠️ Something went wrong while processing that message. Please try again."
}
