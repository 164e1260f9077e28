package driven

// ConfigStore is the persisted key/value configuration behind the settings
// service. Keys use dot notation ("embedding.provider", "batch.concurrency")
// and map onto nested tables in the file backend.
type ConfigStore interface {
	// Get returns the raw value and whether the key is set.
	Get(key string) (any, bool)

	// Typed getters return the zero value when the key is unset or holds
	// a different type.
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool

	// GetStringSlice may split a comma-separated string value.
	GetStringSlice(key string) []string

	// Set stores a value and persists it immediately.
	Set(key string, value any) error

	Save() error
	Load() error

	// Path names the backing file, or ":memory:" for in-memory stores.
	Path() string
}
