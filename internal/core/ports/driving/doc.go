// Package driving lists what the outside world may ask of memex. The CLI,
// the MCP server and the review TUI hold these interfaces and nothing else
// from the core; internal/core/services satisfies them.
package driving
