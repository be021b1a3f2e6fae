package config

import (
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/dshills/promptslot/internal/logging"
	"github.com/dshills/promptslot/internal/node"
)

// Broadcast drivers.
const (
	DriverLocal = "local"
	DriverRedis = "redis"
)

// Config is the promptslot configuration.
type Config struct {
	// InstanceID addresses the editor on the broadcast channel.
	InstanceID string `mapstructure:"instance_id"`

	// Kinds enables placeholder kinds by name. An empty map enables every
	// built-in kind.
	Kinds map[string]bool `mapstructure:"kinds"`

	// BlurEscapeDelay is the delay between blur and the scheduled escape.
	BlurEscapeDelay time.Duration `mapstructure:"blur_escape_delay"`

	// ReadOnly blocks editing commands.
	ReadOnly bool `mapstructure:"read_only"`

	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Server    ServerConfig    `mapstructure:"server"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Mode is "production" for JSON output or "development" for console.
	Mode string `mapstructure:"mode"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// BroadcastConfig selects the broadcast channel.
type BroadcastConfig struct {
	// Driver is "local" or "redis".
	Driver    string `mapstructure:"driver"`
	RedisAddr string `mapstructure:"redis_addr"`
	// Channel is the Redis pub/sub channel name.
	Channel string `mapstructure:"channel"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BlurEscapeDelay: 200 * time.Millisecond,
		Log: LogConfig{
			Level: "info",
			Mode:  "development",
		},
		Broadcast: BroadcastConfig{
			Driver:  DriverLocal,
			Channel: "promptslot:events",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// defaultMap returns Default as a generic map, the base layer files and
// environment variables are merged over.
func defaultMap() map[string]any {
	d := Default()
	return map[string]any{
		"blur_escape_delay": d.BlurEscapeDelay.String(),
		"read_only":         d.ReadOnly,
		"log": map[string]any{
			"level": d.Log.Level,
			"mode":  d.Log.Mode,
		},
		"metrics": map[string]any{
			"enabled": d.Metrics.Enabled,
		},
		"broadcast": map[string]any{
			"driver":  d.Broadcast.Driver,
			"channel": d.Broadcast.Channel,
		},
		"server": map[string]any{
			"addr":          d.Server.Addr,
			"read_timeout":  d.Server.ReadTimeout.String(),
			"write_timeout": d.Server.WriteTimeout.String(),
		},
	}
}

// Validate checks the configuration and returns ValidationErrors listing
// every failure.
func (c *Config) Validate() error {
	var errs ValidationErrors
	fail := func(path, msg string, v any) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: v})
	}

	reg := node.DefaultRegistry()
	for name := range c.Kinds {
		if !reg.Has(node.Kind(name)) {
			fail("kinds."+name, "unknown placeholder kind", name)
		}
	}
	if c.BlurEscapeDelay < 0 {
		fail("blur_escape_delay", "must not be negative", c.BlurEscapeDelay)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		fail("log.level", "must be debug, info, warn or error", c.Log.Level)
	}
	switch c.Broadcast.Driver {
	case DriverLocal:
	case DriverRedis:
		if c.Broadcast.RedisAddr == "" {
			fail("broadcast.redis_addr", "required by the redis driver", c.Broadcast.RedisAddr)
		}
		if c.Broadcast.Channel == "" {
			fail("broadcast.channel", "required by the redis driver", c.Broadcast.Channel)
		}
	default:
		fail("broadcast.driver", "must be local or redis", c.Broadcast.Driver)
	}
	if c.Server.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
			fail("server.addr", "must be host:port", c.Server.Addr)
		}
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		fail("server", "timeouts must not be negative", fmt.Sprintf("%s/%s", c.Server.ReadTimeout, c.Server.WriteTimeout))
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// EnabledKinds returns the enabled kinds sorted by name, or nil when every
// kind is enabled.
func (c *Config) EnabledKinds() []node.Kind {
	if len(c.Kinds) == 0 {
		return nil
	}
	out := []node.Kind{}
	for name, on := range c.Kinds {
		if on {
			out = append(out, node.Kind(name))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = logging.ParseLevel(c.Log.Level)
	lc.Mode = c.Log.Mode
	return lc
}
