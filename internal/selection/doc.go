// Package selection binds a controller to every decorated placeholder node.
//
// A Controller makes its node selectable by clicking the node's rendered
// element and turns Backspace/Delete into node removal when the node is the
// sole node selection. When the node is merely covered by a range selection
// the controller only announces the deletion and lets the editor delete the
// range, so every removed node is announced exactly once.
package selection
