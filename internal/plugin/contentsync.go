package plugin

import (
	"context"

	"github.com/dshills/promptslot/internal/engine"
	"github.com/dshills/promptslot/internal/event"
	"github.com/dshills/promptslot/internal/node"
)

// TagContentSync marks updates made by content-sync broadcasts.
const TagContentSync = "plugin.content-sync"

// ContentSyncHooks let the host keep its payload sources current. Either
// may be nil.
type ContentSyncHooks struct {
	OnDatasets func(datasets []node.Dataset)
	OnRoles    func(roles node.RoleName)
}

// ContentSync refreshes placeholders already in the document when the
// datasets-updated or history-updated broadcasts arrive. Events without an
// instance id apply to every editor. Broadcasts whose source is the host
// instance are skipped; the publisher has already applied them.
type ContentSync struct {
	hooks ContentSyncHooks
}

// NewContentSync creates the plugin.
func NewContentSync(hooks ContentSyncHooks) *ContentSync {
	return &ContentSync{hooks: hooks}
}

// Name implements Plugin.
func (*ContentSync) Name() string { return "content-sync" }

// Register implements Plugin. It fails with ErrNoChannel when the host has
// no broadcast channel.
func (c *ContentSync) Register(h Host) (func(), error) {
	ch := h.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}
	scope := event.WithFilter(event.All(
		event.AppliesToInstance(h.InstanceID()),
		event.ExcludeSource(h.InstanceID()),
	))

	var td teardowns
	sub, err := ch.Subscribe(event.TypeDatasetsUpdated, func(_ context.Context, ev event.Event) {
		v, err := event.Decode[event.DatasetsUpdated](ev)
		if err != nil {
			h.Logger().Warn("bad datasets payload", "error", err)
			return
		}
		if c.hooks.OnDatasets != nil {
			c.hooks.OnDatasets(v.Datasets)
		}
		SyncDatasets(h, v.Datasets)
	}, scope)
	if err != nil {
		return nil, err
	}
	td.add(sub.Cancel)

	sub, err = ch.Subscribe(event.TypeHistoryUpdated, func(_ context.Context, ev event.Event) {
		v, err := event.Decode[event.HistoryUpdated](ev)
		if err != nil {
			h.Logger().Warn("bad history payload", "error", err)
			return
		}
		if c.hooks.OnRoles != nil {
			c.hooks.OnRoles(v.RoleName)
		}
		SyncRoles(h, v.RoleName)
	}, scope)
	if err != nil {
		td.once()()
		return nil, err
	}
	td.add(sub.Cancel)
	return td.once(), nil
}

// SyncDatasets replaces the datasets of every context placeholder.
func SyncDatasets(h Host, datasets []node.Dataset) {
	syncKind(h, node.KindContext, func(old node.Payload) node.Payload {
		p := &node.ContextPayload{Datasets: append([]node.Dataset{}, datasets...)}
		if prev, ok := old.(*node.ContextPayload); ok && prev != nil {
			p.CanNotAddContext = prev.CanNotAddContext
		}
		return p
	})
}

// SyncRoles replaces the role names of every history placeholder.
func SyncRoles(h Host, roles node.RoleName) {
	syncKind(h, node.KindHistory, func(node.Payload) node.Payload {
		return &node.HistoryPayload{RoleName: roles}
	})
}

func syncKind(h Host, kind node.Kind, next func(old node.Payload) node.Payload) {
	err := h.Engine().Update(func(tx *engine.Tx) error {
		for _, p := range tx.Root().Placeholders() {
			if p.Kind() != kind {
				continue
			}
			if err := tx.SetPayload(p.Key(), next(p.Payload())); err != nil {
				return err
			}
		}
		return nil
	}, engine.Tag(TagContentSync))
	if err != nil {
		h.Logger().Warn("content sync failed", "kind", kind, "error", err)
	}
}
