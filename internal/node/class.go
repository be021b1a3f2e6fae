package node

import (
	"regexp"

	"github.com/tidwall/gjson"

	"github.com/dshills/promptslot/internal/logging"
)

// Class describes one placeholder kind: its projection, how the projection is
// recognised in text, how its payload is serialized and how it is decorated.
type Class interface {
	// Kind returns the kind this class describes.
	Kind() Kind

	// Version returns the serialization version of the kind.
	Version() int

	// Isolated reports whether nodes of this kind are isolated and top-level.
	Isolated() bool

	// Token returns the literal projection of fixed-token kinds, or "" for
	// parametrized kinds.
	Token() string

	// Pattern returns the matcher of parametrized kinds, or nil for
	// fixed-token kinds.
	Pattern() *regexp.Regexp

	// DefaultPayload returns the payload used when none is supplied.
	DefaultPayload() Payload

	// PayloadFromMatch builds a payload from regexp submatches, where
	// groups[0] is the whole match.
	PayloadFromMatch(groups []string) Payload

	// CheckPayload reports ErrInvalidPayload for payloads of the wrong type.
	CheckPayload(p Payload) error

	// Projection returns the plain-text projection for a payload.
	Projection(p Payload) string

	// EncodePayload writes payload fields into the JSON object doc.
	EncodePayload(doc string, p Payload) (string, error)

	// DecodePayload reads payload fields, falling back to documented
	// defaults for anything missing. It never fails.
	DecodePayload(obj gjson.Result) Payload

	// Props returns the renderer-facing properties of a node. An error marks
	// the decoration as degraded without affecting the document.
	Props(n *Placeholder, env DecorateEnv) (any, error)
}

// Callbacks are host functions resolved by kind and node key when a node is
// decorated. They are never stored inside nodes.
type Callbacks struct {
	OnEditRole        func(key Key, roles RoleName)
	OnAddContext      func(key Key)
	OnOpenVariable    func(key Key, path []string)
	OnFormInputChange func(key Key, input FormInput)
	GetVarType        func(path []string) string
}

// CallbackResolver looks up host callbacks for a node.
type CallbackResolver func(kind Kind, key Key) Callbacks

// ProjectionMatches reports whether text is recognised, in full, by the
// pattern of c. Fixed-token kinds always match.
func ProjectionMatches(c Class, text string) bool {
	re := c.Pattern()
	if re == nil {
		return true
	}
	loc := re.FindStringIndex(text)
	return loc != nil && loc[0] == 0 && loc[1] == len(text)
}

// VariableScope lists the variables a workflow-variable node may refer to.
// A nil scope accepts every variable.
type VariableScope struct {
	NodeIDs      []string
	Environment  []string
	Conversation []string
	RAG          []string
}

// DecorateEnv carries the editor context needed to decorate a node.
type DecorateEnv struct {
	Scope     *VariableScope
	Callbacks CallbackResolver
	Selected  func(key Key) bool
	Logger    *logging.Logger
}

// Decoration describes a placeholder to the host's content renderer.
type Decoration struct {
	Key       Key
	Kind      Kind
	Text      string
	Props     any
	Callbacks Callbacks
	Selected  bool
	Degraded  bool
	Err       error
}
