package plugin

import "errors"

// Plugin system errors.
var (
	// ErrPluginNotFound is returned when a plugin is not registered.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrAlreadyRegistered is returned when registering a plugin name twice.
	ErrAlreadyRegistered = errors.New("plugin is already registered")

	// ErrInvalidPlugin is returned when a plugin is nil or has no name.
	ErrInvalidPlugin = errors.New("invalid plugin")

	// ErrManagerClosed is returned when registering on a closed manager.
	ErrManagerClosed = errors.New("plugin manager is closed")

	// ErrNoChannel is returned by plugins that need a broadcast channel
	// when the host has none.
	ErrNoChannel = errors.New("host has no broadcast channel")
)
