package editor

import (
	"github.com/dshills/promptslot/internal/dispatcher"
	"github.com/dshills/promptslot/internal/engine"
	"github.com/dshills/promptslot/internal/node"
)

// deleteKey is the editor-priority handler of the deleting keys. A collapsed
// caret next to a placeholder selects it instead of removing it, so the next
// press goes through the placeholder's controller. Multi-node selections are
// removed here and announced per placeholder.
func (ed *Editor) deleteKey(backward bool) func(*dispatcher.KeyEvent) bool {
	return func(ev *dispatcher.KeyEvent) bool {
		if ev != nil && ev.DefaultPrevented() {
			return true
		}

		var removed []*node.Placeholder
		err := ed.engine.Update(func(tx *engine.Tx) error {
			switch sel := tx.Selection().(type) {
			case nil:
				return nil
			case *engine.NodeSelection:
				for _, n := range tx.SelectedNodes() {
					if p, ok := n.(*node.Placeholder); ok && sel.Len() > 1 {
						removed = append(removed, p)
					}
				}
				return tx.DeleteSelection()
			}
			if p, ok := tx.Adjacent(backward).(*node.Placeholder); ok {
				return tx.SelectNode(p.Key())
			}
			return tx.DeleteCharacter(backward)
		}, engine.Tag(TagKey))
		if err != nil {
			ed.logger.Warn("delete key failed", "backward", backward, "error", err)
			return false
		}

		for _, p := range removed {
			if cmd, ok := dispatcher.DeleteCommand(p.Kind()); ok {
				dispatcher.Dispatch(ed.bus, cmd, p.Key())
			}
		}
		return true
	}
}
