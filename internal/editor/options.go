package editor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/promptslot/internal/clock"
	"github.com/dshills/promptslot/internal/event"
	"github.com/dshills/promptslot/internal/logging"
	"github.com/dshills/promptslot/internal/node"
	"github.com/dshills/promptslot/internal/plugin"
)

// Options configures an editor.
type Options struct {
	// InstanceID addresses the editor on the broadcast channel. Empty
	// generates a random id.
	InstanceID string

	// Value is the initial text.
	Value string

	// Kinds lists the enabled placeholder kinds. Nil enables every kind of
	// Registry.
	Kinds []node.Kind

	// Registry lists the available classes. Nil uses the built-in classes.
	Registry *node.Registry

	// Payload sources for placeholders materialized from text.
	Datasets         []node.Dataset
	CanNotAddContext bool
	RoleName         node.RoleName
	FormInputs       []node.FormInput
	HITLNodeID       string

	// Scope lists the variables workflow-variable placeholders may refer
	// to. Nil accepts every variable.
	Scope *node.VariableScope

	// ReadOnly blocks insert, delete and deleting-key commands.
	ReadOnly bool

	// BlurEscapeDelay is the delay between blur and the scheduled escape.
	// Zero uses plugin.DefaultBlurEscapeDelay.
	BlurEscapeDelay time.Duration

	// Clock drives the blur timer. Nil uses the wall clock.
	Clock clock.Clock

	Logger *logging.Logger

	// Metrics receives command bus metrics. Nil disables them.
	Metrics prometheus.Registerer

	// Channel is the broadcast channel. Nil disables the update and
	// content-sync plugins.
	Channel event.Channel

	Callbacks Callbacks
}

// Callbacks are the host's callbacks. Every field may be left nil.
type Callbacks struct {
	// OnChange receives the document text after every committed update.
	OnChange func(text string)

	OnFocus func()
	OnBlur  func()

	// Blocks holds the insert and delete hooks per placeholder kind.
	Blocks map[node.Kind]plugin.BlockHooks

	// Decorations holds per-kind decoration callbacks. Per-node entries
	// are set with Editor.SetNodeCallbacks.
	Decorations map[node.Kind]node.Callbacks
}
