// Package config loads promptslot configuration.
//
// Configuration is read from a TOML or YAML file into a generic map, merged
// over the built-in defaults, overlaid with PROMPTSLOT_* environment
// variables and decoded into a Config:
//
//	cfg, err := config.Load("promptslot.toml")
//	if err != nil {
//	    return err
//	}
//
// A Watcher reloads the file when it changes:
//
//	w, err := config.NewWatcher("promptslot.toml", func(cfg *config.Config, err error) {
//	    ...
//	})
//	defer w.Close()
//
// Example TOML:
//
//	instance_id = "prompt-1"
//	blur_escape_delay = "200ms"
//	read_only = false
//
//	[kinds]
//	"context-block" = true
//	"query-block" = true
//
//	[log]
//	level = "debug"
//	mode = "development"
//
//	[broadcast]
//	driver = "redis"
//	redis_addr = "localhost:6379"
//
//	[server]
//	addr = ":8080"
package config
