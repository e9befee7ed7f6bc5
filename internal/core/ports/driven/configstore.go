package driven

// ConfigStore holds flat, dot-separated configuration keys such as
// "refinement.window_size". Implementations convert between the stored
// representation and Go types; values that cannot be converted read as zero.
type ConfigStore interface {
	// Get returns the raw value for key and whether it is set.
	Get(key string) (any, bool)

	// GetString returns the value as a string, or "".
	GetString(key string) string

	// GetInt returns the value as an int, or 0.
	GetInt(key string) int

	// GetFloat returns the value as a float64. ok is false when the key is
	// unset or not numeric, so callers can fall back to a default even when
	// zero is a meaningful value.
	GetFloat(key string) (value float64, ok bool)

	// GetBool returns the value as a bool, or false.
	GetBool(key string) bool

	// GetStringSlice returns the value as a list. Comma-separated strings are split.
	GetStringSlice(key string) []string

	// Set stores a value and persists it.
	Set(key string, value any) error

	// Save persists the current values.
	Save() error

	// Load re-reads values from storage.
	Load() error

	// Path returns where values are persisted, or "" for in-memory stores.
	Path() string
}
