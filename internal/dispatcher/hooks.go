package dispatcher

// PreDispatchHook runs before the handlers of a command. Returning false
// cancels the command, which then reports unhandled.
type PreDispatchHook func(t Type, payload any) bool

// PostDispatchHook runs after the handlers of a command. err is ErrCancelled
// when a pre-dispatch hook cancelled the command and wraps ErrPanic when a
// recovered handler panicked.
type PostDispatchHook func(t Type, payload any, handled bool, err error)

// MutatingTypes returns the variants that change the document: every insert
// and delete command plus the deleting keys.
func MutatingTypes() []Type {
	out := []Type{TypeKeyBackspace, TypeKeyDelete}
	for t := TypeInsertContext; t <= TypeDeleteHITLInput; t++ {
		out = append(out, t)
	}
	return out
}

// BlockTypes returns a pre-dispatch hook cancelling the given variants.
func BlockTypes(types ...Type) PreDispatchHook {
	blocked := make(map[Type]struct{}, len(types))
	for _, t := range types {
		blocked[t] = struct{}{}
	}
	return func(t Type, _ any) bool {
		_, deny := blocked[t]
		return !deny
	}
}
