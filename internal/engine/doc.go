// Package engine holds the document state of one editor: a tree of
// paragraphs and inline nodes, a selection, and a version counter.
//
// # Transactions
//
// All mutations run inside Update, which hands the update function a Tx
// working on a private copy of the document:
//
//	err := e.Update(func(tx *engine.Tx) error {
//		ph, err := tx.CreatePlaceholder(node.KindQuery, nil)
//		if err != nil {
//			return err
//		}
//		return tx.InsertNodes(ph)
//	})
//
// When the function returns nil the copy is normalized, passed through the
// registered transforms until no node is dirty, and published as the next
// version. An error discards the copy.
//
// # Selection
//
// A selection is either a RangeSelection of two points or a NodeSelection of
// whole nodes. Points address byte offsets inside text nodes or child
// indexes inside paragraphs; normalization keeps them pointing at live
// nodes.
//
// # Thread Safety
//
// Updates are serialized. Read and the State accessors see the last
// committed version and never observe a half-applied update. Listeners run
// after the commit, outside the update lock, in the updating goroutine.
package engine
