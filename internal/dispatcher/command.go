package dispatcher

import (
	"github.com/dshills/promptslot/internal/node"
)

// Type identifies a command variant.
type Type uint16

// Command variants. Every placeholder kind owns one insert and one delete
// variant.
const (
	TypeUnknown Type = iota
	TypeFocus
	TypeBlur
	TypeKeyEscape
	TypeKeyBackspace
	TypeKeyDelete
	TypeClick
	TypeClearHideMenuTimeout

	TypeInsertContext
	TypeInsertHistory
	TypeInsertQuery
	TypeInsertRequestURL
	TypeInsertCurrent
	TypeInsertLastRun
	TypeInsertErrorMessage
	TypeInsertVariableValue
	TypeInsertWorkflowVariable
	TypeInsertHITLInput

	TypeDeleteContext
	TypeDeleteHistory
	TypeDeleteQuery
	TypeDeleteRequestURL
	TypeDeleteCurrent
	TypeDeleteLastRun
	TypeDeleteErrorMessage
	TypeDeleteVariableValue
	TypeDeleteWorkflowVariable
	TypeDeleteHITLInput
)

var typeNames = map[Type]string{
	TypeFocus:                "FOCUS",
	TypeBlur:                 "BLUR",
	TypeKeyEscape:            "KEY_ESCAPE",
	TypeKeyBackspace:         "KEY_BACKSPACE",
	TypeKeyDelete:            "KEY_DELETE",
	TypeClick:                "CLICK",
	TypeClearHideMenuTimeout: "CLEAR_HIDE_MENU_TIMEOUT",
}

var (
	insertTypes = map[node.Kind]Type{
		node.KindContext:          TypeInsertContext,
		node.KindHistory:          TypeInsertHistory,
		node.KindQuery:            TypeInsertQuery,
		node.KindRequestURL:       TypeInsertRequestURL,
		node.KindCurrent:          TypeInsertCurrent,
		node.KindLastRun:          TypeInsertLastRun,
		node.KindErrorMessage:     TypeInsertErrorMessage,
		node.KindVariableValue:    TypeInsertVariableValue,
		node.KindWorkflowVariable: TypeInsertWorkflowVariable,
		node.KindHITLInput:        TypeInsertHITLInput,
	}
	deleteTypes = map[node.Kind]Type{
		node.KindContext:          TypeDeleteContext,
		node.KindHistory:          TypeDeleteHistory,
		node.KindQuery:            TypeDeleteQuery,
		node.KindRequestURL:       TypeDeleteRequestURL,
		node.KindCurrent:          TypeDeleteCurrent,
		node.KindLastRun:          TypeDeleteLastRun,
		node.KindErrorMessage:     TypeDeleteErrorMessage,
		node.KindVariableValue:    TypeDeleteVariableValue,
		node.KindWorkflowVariable: TypeDeleteWorkflowVariable,
		node.KindHITLInput:        TypeDeleteHITLInput,
	}
)

func init() {
	for k, t := range insertTypes {
		typeNames[t] = "INSERT_" + k.Command()
	}
	for k, t := range deleteTypes {
		typeNames[t] = "DELETE_" + k.Command()
	}
}

// String returns the command name, e.g. "INSERT_CONTEXT_BLOCK".
func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// Command is a typed handle on a command variant. P is the payload type
// handlers receive.
type Command[P any] struct {
	t Type
}

// Type returns the variant.
func (c Command[P]) Type() Type { return c.t }

// String returns the command name.
func (c Command[P]) String() string { return c.t.String() }

// Editor-level commands.
var (
	Focus                = Command[FocusEvent]{TypeFocus}
	Blur                 = Command[BlurEvent]{TypeBlur}
	KeyEscape            = Command[*KeyEvent]{TypeKeyEscape}
	KeyBackspace         = Command[*KeyEvent]{TypeKeyBackspace}
	KeyDelete            = Command[*KeyEvent]{TypeKeyDelete}
	Click                = Command[*PointerEvent]{TypeClick}
	ClearHideMenuTimeout = Command[struct{}]{TypeClearHideMenuTimeout}
)

// InsertCommand returns the insert command of a placeholder kind. The
// payload is the node payload; nil selects the kind's default.
func InsertCommand(kind node.Kind) (Command[node.Payload], bool) {
	t, ok := insertTypes[kind]
	return Command[node.Payload]{t}, ok
}

// DeleteCommand returns the delete notification command of a placeholder
// kind. The payload is the key of the removed node, or "" when the host
// dispatches it directly.
func DeleteCommand(kind node.Kind) (Command[node.Key], bool) {
	t, ok := deleteTypes[kind]
	return Command[node.Key]{t}, ok
}
