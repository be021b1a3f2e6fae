package dispatcher_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/promptslot/internal/dispatcher"
	"github.com/dshills/promptslot/internal/node"
)

func TestNewWithDefaults(t *testing.T) {
	b := dispatcher.NewWithDefaults()
	require.NotNil(t, b.Registry())
	assert.Nil(t, b.Metrics(), "metrics are off by default")
	assert.True(t, b.Config().RecoverFromPanic)
}

func TestType_String(t *testing.T) {
	insert, ok := dispatcher.InsertCommand(node.KindContext)
	require.True(t, ok)
	del, ok := dispatcher.DeleteCommand(node.KindHITLInput)
	require.True(t, ok)

	assert.Equal(t, "INSERT_CONTEXT_BLOCK", insert.String())
	assert.Equal(t, "DELETE_HITL_INPUT_BLOCK", del.String())
	assert.Equal(t, "CLEAR_HIDE_MENU_TIMEOUT", dispatcher.ClearHideMenuTimeout.String())
	assert.Equal(t, "UNKNOWN", dispatcher.Type(999).String())

	_, ok = dispatcher.InsertCommand(node.KindText)
	assert.False(t, ok)
}

func TestDispatch_NoHandler(t *testing.T) {
	b := dispatcher.NewWithDefaults()
	assert.False(t, dispatcher.Dispatch(b, dispatcher.Focus, dispatcher.FocusEvent{}))
	assert.False(t, b.Has(dispatcher.TypeFocus))
}

func TestDispatch_PriorityOrder(t *testing.T) {
	b := dispatcher.NewWithDefaults()
	var order []string
	add := func(name string, p dispatcher.Priority, handled bool) {
		dispatcher.Register(b, dispatcher.KeyEscape, p, func(*dispatcher.KeyEvent) bool {
			order = append(order, name)
			return handled
		})
	}
	add("editor", dispatcher.PriorityEditor, true)
	add("low-1", dispatcher.PriorityLow, false)
	add("critical", dispatcher.PriorityCritical, false)
	add("low-2", dispatcher.PriorityLow, false)
	add("normal", dispatcher.PriorityNormal, true)

	assert.True(t, dispatcher.Dispatch(b, dispatcher.KeyEscape, &dispatcher.KeyEvent{Key: "Escape"}))
	assert.Equal(t, []string{"critical", "normal"}, order)

	order = nil
	b2 := dispatcher.NewWithDefaults()
	b = b2
	add("low-1", dispatcher.PriorityLow, false)
	add("low-2", dispatcher.PriorityLow, false)
	assert.False(t, dispatcher.Dispatch(b, dispatcher.KeyEscape, &dispatcher.KeyEvent{}))
	assert.Equal(t, []string{"low-1", "low-2"}, order)
}

func TestRegister_Unregister(t *testing.T) {
	b := dispatcher.NewWithDefaults()
	insert, _ := dispatcher.InsertCommand(node.KindQuery)

	var got node.Payload = &node.VariableValuePayload{}
	unregister := dispatcher.Register(b, insert, dispatcher.PriorityEditor, func(p node.Payload) bool {
		got = p
		return true
	})
	assert.True(t, b.Has(insert.Type()))
	assert.True(t, dispatcher.Dispatch(b, insert, nil))
	assert.Nil(t, got)

	unregister()
	unregister()
	assert.False(t, b.Has(insert.Type()))
	assert.False(t, dispatcher.Dispatch(b, insert, nil))
	assert.Empty(t, b.Registry().List())
}

func TestDispatch_PayloadDelivered(t *testing.T) {
	b := dispatcher.NewWithDefaults()
	var got *dispatcher.KeyEvent
	dispatcher.Register(b, dispatcher.KeyBackspace, dispatcher.PriorityLow, func(e *dispatcher.KeyEvent) bool {
		got = e
		e.PreventDefault()
		return true
	})
	ev := &dispatcher.KeyEvent{Key: "Backspace"}
	require.True(t, dispatcher.Dispatch(b, dispatcher.KeyBackspace, ev))
	assert.Same(t, ev, got)
	assert.True(t, ev.DefaultPrevented())
}

func TestDispatch_NestedDispatch(t *testing.T) {
	b := dispatcher.NewWithDefaults()
	escaped := 0
	dispatcher.Register(b, dispatcher.KeyEscape, dispatcher.PriorityEditor, func(*dispatcher.KeyEvent) bool {
		escaped++
		return true
	})
	dispatcher.Register(b, dispatcher.Blur, dispatcher.PriorityEditor, func(dispatcher.BlurEvent) bool {
		return dispatcher.Dispatch(b, dispatcher.KeyEscape, &dispatcher.KeyEvent{})
	})
	assert.True(t, dispatcher.Dispatch(b, dispatcher.Blur, dispatcher.BlurEvent{}))
	assert.Equal(t, 1, escaped)
}

func TestDispatch_PanicRecovery(t *testing.T) {
	b := dispatcher.New(dispatcher.DefaultConfig().WithMetrics(prometheus.NewRegistry()))
	dispatcher.Register(b, dispatcher.Focus, dispatcher.PriorityHigh, func(dispatcher.FocusEvent) bool {
		panic("boom")
	})
	fallback := false
	dispatcher.Register(b, dispatcher.Focus, dispatcher.PriorityLow, func(dispatcher.FocusEvent) bool {
		fallback = true
		return true
	})

	var hookErr error
	b.AddPostHook(func(_ dispatcher.Type, _ any, _ bool, err error) { hookErr = err })

	assert.True(t, dispatcher.Dispatch(b, dispatcher.Focus, dispatcher.FocusEvent{}))
	assert.True(t, fallback)
	assert.ErrorIs(t, hookErr, dispatcher.ErrPanic)
	assert.Equal(t, 1.0, testutil.ToFloat64(b.Metrics().Panics(dispatcher.TypeFocus)))
}

func TestDispatch_PanicWithoutRecovery(t *testing.T) {
	b := dispatcher.New(dispatcher.DefaultConfig().WithPanicRecovery(false))
	dispatcher.Register(b, dispatcher.Focus, dispatcher.PriorityHigh, func(dispatcher.FocusEvent) bool {
		panic("boom")
	})
	assert.Panics(t, func() {
		dispatcher.Dispatch(b, dispatcher.Focus, dispatcher.FocusEvent{})
	})
}

func TestHooks_Cancel(t *testing.T) {
	b := dispatcher.NewWithDefaults()
	insert, _ := dispatcher.InsertCommand(node.KindQuery)
	called := false
	dispatcher.Register(b, insert, dispatcher.PriorityEditor, func(node.Payload) bool {
		called = true
		return true
	})
	dispatcher.Register(b, dispatcher.Focus, dispatcher.PriorityEditor, func(dispatcher.FocusEvent) bool {
		return true
	})

	var errs []error
	b.AddPreHook(dispatcher.BlockTypes(dispatcher.MutatingTypes()...))
	b.AddPostHook(func(_ dispatcher.Type, _ any, _ bool, err error) { errs = append(errs, err) })

	assert.False(t, dispatcher.Dispatch(b, insert, nil))
	assert.False(t, called)
	assert.True(t, dispatcher.Dispatch(b, dispatcher.Focus, dispatcher.FocusEvent{}))
	require.Len(t, errs, 2)
	assert.True(t, errors.Is(errs[0], dispatcher.ErrCancelled))
	assert.NoError(t, errs[1])
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := dispatcher.New(dispatcher.DefaultConfig().WithMetrics(reg))
	dispatcher.Register(b, dispatcher.Focus, dispatcher.PriorityEditor, func(dispatcher.FocusEvent) bool { return true })

	dispatcher.Dispatch(b, dispatcher.Focus, dispatcher.FocusEvent{})
	dispatcher.Dispatch(b, dispatcher.Focus, dispatcher.FocusEvent{})
	dispatcher.Dispatch(b, dispatcher.Blur, dispatcher.BlurEvent{})

	m := b.Metrics()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Dispatched(dispatcher.TypeFocus, true)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatched(dispatcher.TypeBlur, false)))

	// A second bus on the same registry shares the collectors.
	b2 := dispatcher.New(dispatcher.DefaultConfig().WithMetrics(reg))
	dispatcher.Dispatch(b2, dispatcher.Blur, dispatcher.BlurEvent{})
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Dispatched(dispatcher.TypeBlur, false)))
}

func TestTarget_HasMarker(t *testing.T) {
	var nilTarget *dispatcher.Target
	assert.False(t, nilTarget.HasMarker(dispatcher.SearchInputMarker))
	target := &dispatcher.Target{ID: "x", Markers: []string{dispatcher.SearchInputMarker}}
	assert.True(t, target.HasMarker(dispatcher.SearchInputMarker))
}
