package engine

import (
	"github.com/dshills/promptslot/internal/logging"
	"github.com/dshills/promptslot/internal/node"
)

// DefaultMaxTransformRounds bounds the normalize/transform loop of one update.
const DefaultMaxTransformRounds = 16

// Option configures an Engine during creation.
type Option func(*Engine)

// WithRegistry sets the placeholder classes available to the document.
func WithRegistry(r *node.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithText sets the initial content. Transforms registered later do not see
// it; use SetText in an update to load text through the transforms.
func WithText(text string) Option {
	return func(e *Engine) {
		e.initText = text
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.OrNop(l).WithComponent("engine")
	}
}

// WithBatching defers update listeners until Flush or a discrete update.
func WithBatching() Option {
	return func(e *Engine) {
		e.batching = true
	}
}

// WithMaxTransformRounds sets how many normalize/transform rounds an update
// may run before failing with ErrTransformLoop.
func WithMaxTransformRounds(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRounds = n
		}
	}
}

// UpdateOption configures a single Update call.
type UpdateOption func(*updateConfig)

type updateConfig struct {
	discrete bool
	tags     []string
}

// Discrete delivers pending and current update notifications before Update
// returns, even when the engine batches.
func Discrete() UpdateOption {
	return func(c *updateConfig) {
		c.discrete = true
	}
}

// Tag attaches a label to the update, visible to listeners in UpdateInfo.
func Tag(tag string) UpdateOption {
	return func(c *updateConfig) {
		c.tags = append(c.tags, tag)
	}
}
