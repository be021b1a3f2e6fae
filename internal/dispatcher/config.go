package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/promptslot/internal/logging"
)

// Config holds bus configuration options.
type Config struct {
	// EnableMetrics enables Prometheus dispatch metrics.
	EnableMetrics bool

	// Registerer receives the metrics collectors. Nil means the default
	// Prometheus registerer.
	Registerer prometheus.Registerer

	// RecoverFromPanic turns a handler panic into an unhandled result.
	RecoverFromPanic bool

	// Logger receives dispatch diagnostics. Nil disables logging.
	Logger *logging.Logger
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EnableMetrics:    false,
		RecoverFromPanic: true,
	}
}

// WithMetrics returns a copy of the config with metrics registered on reg.
func (c Config) WithMetrics(reg prometheus.Registerer) Config {
	c.EnableMetrics = true
	c.Registerer = reg
	return c
}

// WithPanicRecovery returns a copy of the config with panic recovery set.
func (c Config) WithPanicRecovery(recover bool) Config {
	c.RecoverFromPanic = recover
	return c
}

// WithLogger returns a copy of the config logging to l.
func (c Config) WithLogger(l *logging.Logger) Config {
	c.Logger = l
	return c
}
