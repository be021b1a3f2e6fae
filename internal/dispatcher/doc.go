// Package dispatcher is the command bus of an editor.
//
// Commands are typed variants: a Command[P] names one Type and fixes the
// payload type P its handlers receive. Handlers are registered per command
// at a Priority and return whether they consumed the command.
//
// # Dispatch
//
// When a command is dispatched:
//
//  1. Pre-dispatch hooks run; any of them may cancel the command
//  2. Handlers run from PriorityCritical down to PriorityEditor, in
//     registration order within a priority
//  3. The first handler returning true stops the walk
//  4. Post-dispatch hooks observe the outcome
//  5. Metrics are recorded (if enabled)
//
// A command with no handlers, or whose handlers all return false, is
// reported as unhandled. Handlers run synchronously in the dispatching
// goroutine and may dispatch further commands.
//
// # Placeholder Commands
//
// Every placeholder kind has an INSERT_<KIND> and a DELETE_<KIND> variant,
// obtained with InsertCommand and DeleteCommand.
package dispatcher
