// Package mcp provides an MCP (Model Context Protocol) server adapter for memex.
// It lets AI assistants query the index and govern refinement proposals.
package mcp

import (
	"errors"
	"fmt"

	"github.com/custodia-labs/memex/internal/core/domain"
)

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")

// errNotConfigured is returned by tools whose backing port was not wired.
var errNotConfigured = errors.New("not available on this server")

// toolError prefixes err with a short category an assistant can act on.
// The original error stays wrapped.
func toolError(op string, err error) error {
	var category string
	switch {
	case errors.Is(err, domain.ErrNotFound):
		category = "not found"
	case errors.Is(err, domain.ErrDuplicatePending):
		category = "already pending"
	case errors.Is(err, domain.ErrInvalidState):
		category = "invalid state"
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrValidation):
		category = "invalid input"
	case errors.Is(err, domain.ErrCapabilityUnavailable):
		category = "temporarily unavailable, retry later"
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s (%s): %w", op, category, err)
}

func invalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, fmt.Sprintf(format, args...))
}
