// Package plugin provides the building blocks an editor composes into its
// behaviour.
//
// A Plugin registers command handlers, update listeners or broadcast
// subscriptions against a Host and returns a teardown that removes all of
// them. The Manager registers plugins in order and tears them down in
// reverse order.
//
// # Provided plugins
//
//   - Block: one per placeholder kind. Owns INSERT_<KIND> and DELETE_<KIND>.
//   - FocusBlur: root focus and blur. A blur schedules KEY_ESCAPE after a
//     short delay unless focus moves to the variable search input;
//     CLEAR_HIDE_MENU_TIMEOUT cancels the pending escape.
//   - Update: applies the update-value and insert-quickly broadcasts
//     addressed to the host instance.
//   - ContentSync: refreshes context and history placeholders when the
//     datasets-updated and history-updated broadcasts arrive.
//   - OnChange: reports the document text after every commit.
//
// # Lifecycle
//
//	m := plugin.NewManager(host)
//	if err := m.Register(plugin.NewBlock(node.KindContext, plugin.BlockHooks{})); err != nil {
//	    return err
//	}
//	defer m.Close()
//
// After teardown no handler of the plugin remains registered; dispatching a
// command the plugin owned reports unhandled.
package plugin
