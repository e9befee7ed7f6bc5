// Package file keeps memex state that users are expected to edit by hand:
// config.toml, overridable per key by MEMEX_* variables, and the prompt
// templates used by the semantic splitter and the context enricher.
package file
