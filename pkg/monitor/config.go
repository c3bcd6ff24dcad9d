package monitor

// DefaultMaxBodyBytes caps how much of a response is copied for inspection.
const DefaultMaxBodyBytes = 1 << 20

// Config holds the environment-driven monitor settings.
type Config struct {
	Enabled      bool  `env:"MONITOR_ENABLED" envDefault:"true"`
	MaxBodyBytes int64 `env:"MONITOR_MAX_BODY_BYTES" envDefault:"1048576"`
}
