package engine

// Config holds the settings needed to construct a Server for one tenant.
type Config struct {
	// DataPath is the SQLite DSN (or file path) for the tenant's store. An
	// empty DataPath opens an in-memory, private database — convenient for
	// tests.
	DataPath string

	// Region names the deployment region. The engine stores it here but
	// neither validates it nor includes it in any response.
	Region string

	// AuthSecrets are the symmetric HS256 keys accepted when verifying
	// bearer tokens, tried in order to support rotation.
	AuthSecrets [][]byte

	// AllowDevBypass, when set, makes the literal token "foo" bypass
	// authentication. It must never be set in a production deployment.
	AllowDevBypass bool
}

// ConfigOption mutates a Config during construction.
type ConfigOption func(*Config)

// WithDataPath sets the SQLite DSN used to open the tenant's store.
func WithDataPath(path string) ConfigOption {
	return func(c *Config) { c.DataPath = path }
}

// WithRegion sets Config.Region.
func WithRegion(region string) ConfigOption {
	return func(c *Config) { c.Region = region }
}

// WithAuthSecrets sets the accepted HS256 verification secrets.
func WithAuthSecrets(secrets ...[]byte) ConfigOption {
	return func(c *Config) { c.AuthSecrets = secrets }
}

// WithDevBypass toggles the "foo" development bypass token.
func WithDevBypass(allow bool) ConfigOption {
	return func(c *Config) { c.AllowDevBypass = allow }
}

// NewConfig builds a Config from defaults overridden by opts.
func NewConfig(opts ...ConfigOption) Config {
	c := Config{
		DataPath: ":memory:",
		Region:   "auto",
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
