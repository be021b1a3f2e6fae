// Package node defines the typed inline node model of a prompt template.
//
// A document is a Root holding Paragraphs, and every Paragraph holds inline
// nodes: plain Text runs and Placeholder nodes. A Placeholder is an atomic,
// typed slot such as the conversation history or a workflow variable. Each
// placeholder kind is described by a Class that knows the kind's plain-text
// projection, how to recognise that projection in text, how to serialize the
// kind-specific payload and how to describe the node to a host renderer.
//
// # Projections
//
// Every placeholder collapses to a canonical string outside the structured
// view:
//
//	{{#context#}}          context-block
//	{{#histories#}}        history-block
//	{{#query#}}            query-block
//	{{#url#}}              request-url-block
//	{{#current#}}          current-block
//	{{#last_run#}}         last-run-block
//	{{#error_message#}}    error-message-block
//	{{name}}               variable-value-block
//	{{#1711.output.text#}} workflow-variable-block
//	{{#$output.name#}}     hitl-input-block
//
// Recognising a projection with its own class always yields an equivalent
// node, which keeps insert/transform cycles stable.
//
// # Immutability
//
// Text and Placeholder values are never mutated once built. Changing a payload
// or a run of text produces a new value that keeps the original Key. Root and
// Paragraph containers are cloned by the engine before a transaction mutates
// them.
package node
