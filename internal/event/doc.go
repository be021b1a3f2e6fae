// Package event carries broadcast events between editor instances.
//
// Hosts talk to every mounted editor through a Channel rather than holding
// references to the editors. Four event types exist:
//
//	prompt-editor.update-value      - replace the whole value of one editor
//	prompt-editor.insert-quickly    - insert the quick-insert trigger "/"
//	prompt-editor.datasets-updated  - refresh context placeholders
//	prompt-editor.history-updated   - refresh history role names
//
// Every event carries an instance id. Editors ignore value and quick-insert
// events addressed to other instances; content-sync events with an empty
// instance id apply to every editor.
//
// # Types and patterns
//
// Event types use dot notation. Subscriptions take a pattern that may
// contain wildcards:
//
//	prompt-editor.*   - one segment
//	prompt-editor.**  - zero or more segments
//
// # Channels
//
// LocalChannel delivers synchronously in the publisher's goroutine, in
// publish order. RedisChannel publishes JSON envelopes on a Redis pub/sub
// channel and delivers them from one receiver goroutine per channel, so
// several processes can drive the same editors.
//
// # Payloads
//
// Payloads are JSON encoded in the envelope. Build events with New and read
// them back with Decode:
//
//	ev, err := event.New(event.TypeUpdateValue, "editor-1", event.UpdateValue{Value: "hi"})
//	...
//	v, err := event.Decode[event.UpdateValue](ev)
package event
