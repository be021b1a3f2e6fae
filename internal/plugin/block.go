package plugin

import (
	"fmt"

	"github.com/dshills/promptslot/internal/dispatcher"
	"github.com/dshills/promptslot/internal/engine"
	"github.com/dshills/promptslot/internal/node"
)

// TagInsert marks updates made by an insert command.
const TagInsert = "plugin.insert"

// BlockHooks are the host callbacks of one placeholder kind. Either may be
// nil.
type BlockHooks struct {
	// OnInsert runs once per handled insert command with the key of the
	// inserted node, or "" when the command inserted literal text.
	OnInsert func(key node.Key)

	// OnDelete runs once per delete command with the key of the removed
	// node, or "" when the host dispatched the command itself.
	OnDelete func(key node.Key)
}

// Block owns the insert and delete commands of one placeholder kind.
type Block struct {
	kind  node.Kind
	hooks BlockHooks
}

// NewBlock creates the plugin of kind.
func NewBlock(kind node.Kind, hooks BlockHooks) *Block {
	return &Block{kind: kind, hooks: hooks}
}

// Kind returns the placeholder kind.
func (b *Block) Kind() node.Kind { return b.kind }

// Name implements Plugin.
func (b *Block) Name() string { return "block:" + string(b.kind) }

// Register implements Plugin. It fails when the kind is not in the
// engine's registry.
func (b *Block) Register(h Host) (func(), error) {
	if err := h.Engine().Registry().Require(b.kind); err != nil {
		return nil, err
	}
	insert, ok := dispatcher.InsertCommand(b.kind)
	if !ok {
		return nil, fmt.Errorf("%s: %w", b.kind, ErrInvalidPlugin)
	}
	del, _ := dispatcher.DeleteCommand(b.kind)

	var td teardowns
	td.add(dispatcher.Register(h.Bus(), insert, dispatcher.PriorityEditor, func(payload node.Payload) bool {
		return b.insert(h, payload)
	}))
	td.add(dispatcher.Register(h.Bus(), del, dispatcher.PriorityEditor, func(key node.Key) bool {
		if b.hooks.OnDelete != nil {
			b.hooks.OnDelete(key)
		}
		return true
	}))
	return td.once(), nil
}

func (b *Block) insert(h Host, payload node.Payload) bool {
	if b.kind == node.KindVariableValue && literalName(payload) == "" {
		h.Logger().Debug("insert without variable name ignored", "kind", b.kind)
		return false
	}
	var key node.Key
	err := h.Engine().Update(func(tx *engine.Tx) error {
		if tx.Selection() == nil {
			tx.SelectEnd()
		}
		if b.kind == node.KindVariableValue {
			return tx.InsertText(literalName(payload))
		}
		p, err := tx.CreatePlaceholder(b.kind, payload)
		if err != nil {
			return err
		}
		key = p.Key()
		return tx.InsertNodes(p)
	}, engine.Tag(TagInsert))
	if err != nil {
		h.Logger().Warn("insert placeholder failed", "kind", b.kind, "error", err)
		return false
	}
	if b.hooks.OnInsert != nil {
		b.hooks.OnInsert(key)
	}
	return true
}

// literalName returns the text a variable-value insert writes.
func literalName(payload node.Payload) string {
	if v, ok := payload.(*node.VariableValuePayload); ok && v != nil {
		return v.Name
	}
	return ""
}
