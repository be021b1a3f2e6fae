package editor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/promptslot/internal/clock"
	"github.com/dshills/promptslot/internal/dispatcher"
	"github.com/dshills/promptslot/internal/engine"
	"github.com/dshills/promptslot/internal/event"
	"github.com/dshills/promptslot/internal/logging"
	"github.com/dshills/promptslot/internal/node"
	"github.com/dshills/promptslot/internal/plugin"
	"github.com/dshills/promptslot/internal/selection"
	"github.com/dshills/promptslot/internal/transform"
)

// Update tags set by the editor.
const (
	TagLoad  = "editor.load"
	TagInput = "editor.input"
	TagKey   = "editor.key"
)

// Editor is one prompt editor instance.
//
// Editor implements plugin.Host.
type Editor struct {
	id       string
	registry *node.Registry
	engine   *engine.Engine
	bus      *dispatcher.Bus
	clock    clock.Clock
	channel  event.Channel
	logger   *logging.Logger

	transformer *transform.Transformer
	plugins     *plugin.Manager
	update      *plugin.Update
	sources     *sources
	callbacks   *callbackTable
	scope       *node.VariableScope

	readOnly atomic.Bool
	closed   atomic.Bool

	mu          sync.Mutex
	controllers map[node.Key]*selection.Controller

	teardown []func()
}

// New creates an editor. It fails when a configured kind is not registered
// or a plugin cannot be registered.
func New(opts Options) (*Editor, error) {
	logger := logging.OrNop(opts.Logger).WithComponent("editor")

	all := opts.Registry
	if all == nil {
		all = node.DefaultRegistry()
	}
	kinds := opts.Kinds
	if kinds == nil {
		kinds = all.Kinds()
	}
	if err := all.Require(kinds...); err != nil {
		return nil, fmt.Errorf("editor: %w", err)
	}
	reg := node.NewRegistry()
	for _, k := range kinds {
		c, _ := all.Class(k)
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("editor: %w", err)
		}
	}

	id := opts.InstanceID
	if id == "" {
		id = uuid.NewString()
	}
	logger = logger.With("instance", id)

	busConfig := dispatcher.DefaultConfig().WithLogger(logger)
	if opts.Metrics != nil {
		busConfig = busConfig.WithMetrics(opts.Metrics)
	}

	ed := &Editor{
		id:       id,
		registry: reg,
		engine:   engine.New(engine.WithRegistry(reg), engine.WithLogger(logger)),
		bus:      dispatcher.New(busConfig),
		clock:    clock.OrReal(opts.Clock),
		channel:  opts.Channel,
		logger:   logger,
		sources: &sources{
			datasets:         append([]node.Dataset{}, opts.Datasets...),
			canNotAddContext: opts.CanNotAddContext,
			roles:            opts.RoleName,
			formInputs:       append([]node.FormInput{}, opts.FormInputs...),
			hitlNodeID:       opts.HITLNodeID,
		},
		callbacks:   newCallbackTable(opts.Callbacks.Decorations),
		scope:       opts.Scope,
		controllers: make(map[node.Key]*selection.Controller),
	}
	ed.readOnly.Store(opts.ReadOnly)
	ed.bus.AddPreHook(ed.guard(dispatcher.BlockTypes(dispatcher.MutatingTypes()...)))

	t, err := transform.New(reg,
		transform.WithLogger(logger),
		transform.WithPayloadSource(ed.sources.payload))
	if err != nil {
		return nil, fmt.Errorf("editor: %w", err)
	}
	ed.transformer = t
	ed.teardown = append(ed.teardown,
		t.Attach(ed.engine),
		ed.engine.OnUpdate(ed.reconcile),
		dispatcher.Register(ed.bus, dispatcher.KeyBackspace, dispatcher.PriorityEditor, ed.deleteKey(true)),
		dispatcher.Register(ed.bus, dispatcher.KeyDelete, dispatcher.PriorityEditor, ed.deleteKey(false)),
	)

	ed.plugins = plugin.NewManager(ed)
	ed.teardown = append(ed.teardown, ed.plugins.Watch(ed.logPluginChange))
	if err := ed.plugins.RegisterAll(ed.defaultPlugins(opts)...); err != nil {
		ed.Close()
		return nil, fmt.Errorf("editor: %w", err)
	}

	if opts.Value != "" {
		if err := ed.engine.Update(func(tx *engine.Tx) error {
			return tx.SetText(opts.Value)
		}, engine.Tag(TagLoad), engine.Discrete()); err != nil {
			ed.Close()
			return nil, fmt.Errorf("editor: load value: %w", err)
		}
	}

	logger.Debug("editor ready", "kinds", len(kinds), "plugins", ed.plugins.Count())
	return ed, nil
}

func (ed *Editor) defaultPlugins(opts Options) []plugin.Plugin {
	var ps []plugin.Plugin
	for _, k := range ed.registry.Kinds() {
		ps = append(ps, plugin.NewBlock(k, opts.Callbacks.Blocks[k]))
	}
	ps = append(ps, plugin.NewFocusBlur(plugin.FocusBlurHooks{
		OnFocus: opts.Callbacks.OnFocus,
		OnBlur:  opts.Callbacks.OnBlur,
	}, opts.BlurEscapeDelay))
	if opts.Callbacks.OnChange != nil {
		ps = append(ps, plugin.NewOnChange(opts.Callbacks.OnChange, true))
	}
	if ed.channel != nil {
		ed.update = plugin.NewUpdate()
		ed.update.SetQuickInsert(!ed.readOnly.Load())
		ps = append(ps,
			ed.update,
			plugin.NewContentSync(plugin.ContentSyncHooks{
				OnDatasets: ed.sources.setDatasets,
				OnRoles:    ed.sources.setRoles,
			}))
	}
	return ps
}

func (ed *Editor) logPluginChange(c plugin.Change) {
	if c.Kind == plugin.ChangeFailed {
		ed.logger.Warn("plugin failed", "plugin", c.Plugin, "error", c.Err)
		return
	}
	ed.logger.Debug("plugin "+c.Kind.String(), "plugin", c.Plugin)
}

// guard applies block only while the editor is read-only.
func (ed *Editor) guard(block dispatcher.PreDispatchHook) dispatcher.PreDispatchHook {
	return func(t dispatcher.Type, payload any) bool {
		if !ed.readOnly.Load() {
			return true
		}
		return block(t, payload)
	}
}

// reconcile keeps one selection controller mounted per placeholder.
func (ed *Editor) reconcile(info engine.UpdateInfo) {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	for _, key := range info.Destroyed {
		if c, ok := ed.controllers[key]; ok {
			c.Unmount()
			delete(ed.controllers, key)
		}
		ed.callbacks.drop(key)
	}
	if ed.closed.Load() {
		return
	}
	for _, key := range info.Created {
		if _, ok := ed.controllers[key]; ok {
			continue
		}
		c, err := selection.Mount(ed.engine, ed.bus, key, ed.logger)
		if err != nil {
			// Removed again by a later update.
			ed.logger.Debug("skip controller mount", "key", key, "error", err)
			continue
		}
		ed.controllers[key] = c
	}
}

// InstanceID implements plugin.Host.
func (ed *Editor) InstanceID() string { return ed.id }

// Engine implements plugin.Host.
func (ed *Editor) Engine() *engine.Engine { return ed.engine }

// Bus implements plugin.Host.
func (ed *Editor) Bus() *dispatcher.Bus { return ed.bus }

// Clock implements plugin.Host.
func (ed *Editor) Clock() clock.Clock { return ed.clock }

// Channel implements plugin.Host.
func (ed *Editor) Channel() event.Channel { return ed.channel }

// Logger implements plugin.Host.
func (ed *Editor) Logger() *logging.Logger { return ed.logger }

// Registry returns the classes of the enabled kinds.
func (ed *Editor) Registry() *node.Registry { return ed.registry }

// Plugins returns the plugin manager.
func (ed *Editor) Plugins() *plugin.Manager { return ed.plugins }

// Transformer returns the attached transformer.
func (ed *Editor) Transformer() *transform.Transformer { return ed.transformer }

// Text returns the document text.
func (ed *Editor) Text() string { return ed.engine.RootText() }

// Version returns the committed document version.
func (ed *Editor) Version() uint64 { return ed.engine.Version() }

// ReadOnly reports whether editing is blocked.
func (ed *Editor) ReadOnly() bool { return ed.readOnly.Load() }

// SetReadOnly blocks or unblocks editing. Quick-insert broadcasts are
// ignored while read-only; update-value broadcasts still apply, like
// SetValue.
func (ed *Editor) SetReadOnly(v bool) {
	ed.readOnly.Store(v)
	if ed.update != nil {
		ed.update.SetQuickInsert(!v)
	}
}

// Controller returns the selection controller of a placeholder.
func (ed *Editor) Controller(key node.Key) (*selection.Controller, bool) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	c, ok := ed.controllers[key]
	return c, ok
}

// Controllers returns the mounted controllers ordered by key.
func (ed *Editor) Controllers() []*selection.Controller {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	out := make([]*selection.Controller, 0, len(ed.controllers))
	for _, c := range ed.controllers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// SetValue replaces the document with text.
func (ed *Editor) SetValue(text string) error {
	if ed.closed.Load() {
		return ErrClosed
	}
	return ed.engine.Update(func(tx *engine.Tx) error {
		return tx.SetText(text)
	}, engine.Tag(TagLoad), engine.Discrete())
}

// InsertText types text at the selection. Placeholder text typed this way
// materializes as placeholders.
func (ed *Editor) InsertText(text string) error {
	if err := ed.editable(); err != nil {
		return err
	}
	return ed.engine.Update(func(tx *engine.Tx) error {
		if tx.Selection() == nil {
			tx.SelectEnd()
		}
		return tx.InsertText(text)
	}, engine.Tag(TagInput))
}

// InsertParagraph splits the paragraph at the selection.
func (ed *Editor) InsertParagraph() error {
	if err := ed.editable(); err != nil {
		return err
	}
	return ed.engine.Update(func(tx *engine.Tx) error {
		if tx.Selection() == nil {
			tx.SelectEnd()
		}
		return tx.InsertParagraph()
	}, engine.Tag(TagInput))
}

// Select replaces the selection.
func (ed *Editor) Select(sel engine.Selection) error {
	if ed.closed.Load() {
		return ErrClosed
	}
	return ed.engine.Update(func(tx *engine.Tx) error {
		return tx.SetSelection(sel)
	})
}

// Insert dispatches the insert command of kind. A nil payload uses the
// kind's default; variable kinds have no usable default and need a name.
func (ed *Editor) Insert(kind node.Kind, payload node.Payload) error {
	if err := ed.editable(); err != nil {
		return err
	}
	cmd, ok := dispatcher.InsertCommand(kind)
	if !ok || !ed.registry.Has(kind) {
		return fmt.Errorf("editor: insert: %w", node.ErrKindNotRegistered)
	}
	if !dispatcher.Dispatch(ed.bus, cmd, payload) {
		return fmt.Errorf("editor: insert %s: not handled", kind)
	}
	return nil
}

// KeyDown dispatches a key. It reports whether a handler consumed it.
// Enter splits the paragraph.
func (ed *Editor) KeyDown(key string) bool {
	if ed.closed.Load() {
		return false
	}
	ev := &dispatcher.KeyEvent{Key: key}
	switch key {
	case "Backspace":
		return dispatcher.Dispatch(ed.bus, dispatcher.KeyBackspace, ev)
	case "Delete":
		return dispatcher.Dispatch(ed.bus, dispatcher.KeyDelete, ev)
	case "Escape":
		return dispatcher.Dispatch(ed.bus, dispatcher.KeyEscape, ev)
	case "Enter":
		return ed.InsertParagraph() == nil
	}
	return false
}

// Click dispatches a click on the element with reference ref.
func (ed *Editor) Click(ref string) bool {
	if ed.closed.Load() {
		return false
	}
	return dispatcher.Dispatch(ed.bus, dispatcher.Click, &dispatcher.PointerEvent{
		Target: dispatcher.Target{ID: ref},
	})
}

// Focus dispatches focus.
func (ed *Editor) Focus() bool {
	if ed.closed.Load() {
		return false
	}
	return dispatcher.Dispatch(ed.bus, dispatcher.Focus, dispatcher.FocusEvent{})
}

// Blur dispatches blur towards related, which may be nil.
func (ed *Editor) Blur(related *dispatcher.Target) bool {
	if ed.closed.Load() {
		return false
	}
	return dispatcher.Dispatch(ed.bus, dispatcher.Blur, dispatcher.BlurEvent{RelatedTarget: related})
}

// SetDatasets replaces the datasets of new and existing context placeholders.
func (ed *Editor) SetDatasets(datasets []node.Dataset) {
	ed.sources.setDatasets(datasets)
	plugin.SyncDatasets(ed, datasets)
}

// SetRoleName replaces the role names of new and existing history
// placeholders.
func (ed *Editor) SetRoleName(roles node.RoleName) {
	ed.sources.setRoles(roles)
	plugin.SyncRoles(ed, roles)
}

// ShareDatasets applies datasets like SetDatasets, then broadcasts them to
// every other editor on the channel.
func (ed *Editor) ShareDatasets(ctx context.Context, datasets []node.Dataset) error {
	if ed.closed.Load() {
		return ErrClosed
	}
	ed.SetDatasets(datasets)
	return ed.broadcast(ctx, event.TypeDatasetsUpdated, event.DatasetsUpdated{Datasets: datasets})
}

// ShareRoleName applies roles like SetRoleName, then broadcasts them to
// every other editor on the channel.
func (ed *Editor) ShareRoleName(ctx context.Context, roles node.RoleName) error {
	if ed.closed.Load() {
		return ErrClosed
	}
	ed.SetRoleName(roles)
	return ed.broadcast(ctx, event.TypeHistoryUpdated, event.HistoryUpdated{RoleName: roles})
}

func (ed *Editor) broadcast(ctx context.Context, typ event.Type, payload any) error {
	if ed.channel == nil {
		return fmt.Errorf("editor: broadcast %s: %w", typ, plugin.ErrNoChannel)
	}
	ev, err := event.New(typ, "", payload)
	if err != nil {
		return fmt.Errorf("editor: broadcast %s: %w", typ, err)
	}
	ev.Metadata.Source = ed.id
	if err := ed.channel.Publish(ctx, ev); err != nil {
		return fmt.Errorf("editor: broadcast %s: %w", typ, err)
	}
	return nil
}

func (ed *Editor) editable() error {
	if ed.closed.Load() {
		return ErrClosed
	}
	if ed.readOnly.Load() {
		return ErrReadOnly
	}
	return nil
}

// Close unregisters every plugin and controller. It is safe to call more
// than once.
func (ed *Editor) Close() error {
	if ed.closed.Swap(true) {
		return nil
	}

	var errs []error
	if ed.plugins != nil {
		errs = append(errs, ed.plugins.Close())
	}
	for i := len(ed.teardown) - 1; i >= 0; i-- {
		ed.teardown[i]()
	}

	ed.mu.Lock()
	for key, c := range ed.controllers {
		c.Unmount()
		delete(ed.controllers, key)
	}
	ed.mu.Unlock()

	ed.logger.Debug("editor closed")
	return errors.Join(errs...)
}
