package output

// ConfigPort reads raw environment values, .env files included.
// Typed settings live in internal/config.
type ConfigPort interface {
	Get(key string) string
	GetWithDefault(key string, defaultValue string) string
	GetBool(key string, defaultValue bool) bool
	GetInt(key string, defaultValue int) int
	Require(key string) (string, error)
}
