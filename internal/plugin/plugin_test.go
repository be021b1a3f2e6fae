package plugin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dshills/promptslot/internal/clock"
	"github.com/dshills/promptslot/internal/dispatcher"
	"github.com/dshills/promptslot/internal/engine"
	"github.com/dshills/promptslot/internal/event"
	"github.com/dshills/promptslot/internal/node"
	"github.com/dshills/promptslot/internal/transform"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type harness struct {
	*Runtime
	clock   *clock.Manual
	channel *event.LocalChannel
	manager *Manager
}

func newHarness(t *testing.T, id string) *harness {
	t.Helper()
	e := engine.New()
	tr, err := transform.New(e.Registry())
	require.NoError(t, err)
	detach := tr.Attach(e)

	h := &harness{
		clock:   clock.NewManual(epoch),
		channel: event.NewLocalChannel(),
	}
	h.Runtime = &Runtime{
		ID:       id,
		Document: e,
		Commands: dispatcher.NewWithDefaults(),
		Timers:   h.clock,
		Events:   h.channel,
	}
	h.manager = NewManager(h.Runtime)
	t.Cleanup(func() {
		_ = h.manager.Close()
		detach()
		_ = h.channel.Close()
	})
	return h
}

func (h *harness) publish(t *testing.T, typ event.Type, instance string, payload any) {
	t.Helper()
	ev, err := event.New(typ, instance, payload)
	require.NoError(t, err)
	require.NoError(t, h.channel.Publish(context.Background(), ev))
}

func TestRuntime_Defaults(t *testing.T) {
	r := &Runtime{}
	assert.IsType(t, clock.Real{}, r.Clock())
	assert.NotNil(t, r.Logger())
	assert.Nil(t, r.Channel())
}

func TestBlock_RegistersExactlyTwoCommands(t *testing.T) {
	h := newHarness(t, "a")
	b := NewBlock(node.KindContext, BlockHooks{})
	teardown, err := b.Register(h)
	require.NoError(t, err)

	insert, _ := dispatcher.InsertCommand(node.KindContext)
	del, _ := dispatcher.DeleteCommand(node.KindContext)
	assert.Equal(t, []dispatcher.Type{insert.Type(), del.Type()}, h.Bus().Registry().List())

	teardown()
	teardown()
	assert.False(t, dispatcher.Dispatch(h.Bus(), insert, nil))
	assert.False(t, dispatcher.Dispatch(h.Bus(), del, ""))
	assert.Empty(t, h.Bus().Registry().List())
}

func TestBlock_UnregisteredKind(t *testing.T) {
	h := newHarness(t, "a")
	h.Document = engine.New(engine.WithRegistry(node.NewRegistry()))

	_, err := NewBlock(node.KindQuery, BlockHooks{}).Register(h)
	assert.ErrorIs(t, err, node.ErrKindNotRegistered)
	assert.Empty(t, h.Bus().Registry().List())
}

func TestBlock_Insert(t *testing.T) {
	h := newHarness(t, "a")
	var inserted []node.Key
	require.NoError(t, h.manager.Register(NewBlock(node.KindContext, BlockHooks{
		OnInsert: func(k node.Key) { inserted = append(inserted, k) },
	})))
	require.NoError(t, h.Engine().Update(func(tx *engine.Tx) error { return tx.InsertText("A ") }))

	insert, _ := dispatcher.InsertCommand(node.KindContext)
	assert.True(t, dispatcher.Dispatch(h.Bus(), insert, node.Payload(&node.ContextPayload{})))

	assert.Equal(t, "A {{#context#}}", h.Engine().RootText())
	require.Len(t, inserted, 1)
	s := h.Engine().State()
	n, ok := s.Node(inserted[0])
	require.True(t, ok)
	assert.Equal(t, node.KindContext, n.Kind())

	// The caret sits after the inserted node.
	require.NoError(t, h.Engine().Update(func(tx *engine.Tx) error { return tx.InsertText(" B") }))
	assert.Equal(t, "A {{#context#}} B", h.Engine().RootText())
}

func TestBlock_InsertWithoutSelectionAppends(t *testing.T) {
	h := newHarness(t, "a")
	require.NoError(t, h.manager.Register(NewBlock(node.KindQuery, BlockHooks{})))
	require.NoError(t, h.Engine().Update(func(tx *engine.Tx) error {
		if err := tx.SetText("ask: "); err != nil {
			return err
		}
		tx.ClearSelection()
		return nil
	}))

	insert, _ := dispatcher.InsertCommand(node.KindQuery)
	assert.True(t, dispatcher.Dispatch(h.Bus(), insert, nil))
	assert.Equal(t, "ask: {{#query#}}", h.Engine().RootText())
}

func TestBlock_InsertRejectsWrongPayload(t *testing.T) {
	h := newHarness(t, "a")
	calls := 0
	require.NoError(t, h.manager.Register(NewBlock(node.KindHistory, BlockHooks{
		OnInsert: func(node.Key) { calls++ },
	})))

	insert, _ := dispatcher.InsertCommand(node.KindHistory)
	assert.False(t, dispatcher.Dispatch(h.Bus(), insert, node.Payload(&node.ContextPayload{})))
	assert.Equal(t, 0, calls)
	assert.Equal(t, "", h.Engine().RootText())
}

func TestBlock_InsertRejectsPayloadWithoutProjection(t *testing.T) {
	tests := []struct {
		name    string
		kind    node.Kind
		payload node.Payload
	}{
		{"workflow default", node.KindWorkflowVariable, nil},
		{"workflow empty path", node.KindWorkflowVariable, &node.WorkflowVariablePayload{Path: []string{}}},
		{"workflow bad segment", node.KindWorkflowVariable, &node.WorkflowVariablePayload{Path: []string{"node", "bad name"}}},
		{"hitl default", node.KindHITLInput, nil},
		{"hitl bad name", node.KindHITLInput, &node.HITLPayload{VariableName: "1st"}},
		{"variable default", node.KindVariableValue, nil},
		{"variable empty name", node.KindVariableValue, &node.VariableValuePayload{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "a")
			var inserted []node.Key
			require.NoError(t, h.manager.Register(NewBlock(tt.kind, BlockHooks{
				OnInsert: func(k node.Key) { inserted = append(inserted, k) },
			})))
			require.NoError(t, h.Engine().Update(func(tx *engine.Tx) error { return tx.InsertText("A ") }))

			insert, _ := dispatcher.InsertCommand(tt.kind)
			assert.False(t, dispatcher.Dispatch(h.Bus(), insert, tt.payload))
			assert.Empty(t, inserted)
			assert.Equal(t, "A ", h.Engine().RootText())
		})
	}
}

func TestBlock_InsertKeyStaysLive(t *testing.T) {
	payloads := map[node.Kind]node.Payload{
		node.KindWorkflowVariable: &node.WorkflowVariablePayload{Path: []string{"1711", "output"}},
		node.KindHITLInput:        &node.HITLPayload{VariableName: "answer"},
	}
	for kind, payload := range payloads {
		h := newHarness(t, "a")
		var inserted []node.Key
		require.NoError(t, h.manager.Register(NewBlock(kind, BlockHooks{
			OnInsert: func(k node.Key) { inserted = append(inserted, k) },
		})))

		insert, _ := dispatcher.InsertCommand(kind)
		require.True(t, dispatcher.Dispatch(h.Bus(), insert, payload), kind)
		require.Len(t, inserted, 1, kind)
		n, ok := h.Engine().State().Node(inserted[0])
		require.True(t, ok, kind)
		assert.Equal(t, kind, n.Kind())
	}
}

func TestBlock_VariableValueInsertsLiteral(t *testing.T) {
	h := newHarness(t, "a")
	var inserted []node.Key
	require.NoError(t, h.manager.Register(NewBlock(node.KindVariableValue, BlockHooks{
		OnInsert: func(k node.Key) { inserted = append(inserted, k) },
	})))
	require.NoError(t, h.Engine().Update(func(tx *engine.Tx) error {
		tx.SelectEnd()
		return nil
	}))

	insert, _ := dispatcher.InsertCommand(node.KindVariableValue)
	assert.True(t, dispatcher.Dispatch(h.Bus(), insert, node.Payload(&node.VariableValuePayload{Name: "user.name"})))

	assert.Equal(t, "user.name", h.Engine().RootText())
	assert.Empty(t, h.Engine().State().Placeholders())
	assert.Equal(t, []node.Key{""}, inserted)
}

func TestBlock_VariableValueBracesMaterialize(t *testing.T) {
	h := newHarness(t, "a")
	require.NoError(t, h.manager.Register(NewBlock(node.KindVariableValue, BlockHooks{})))

	insert, _ := dispatcher.InsertCommand(node.KindVariableValue)
	assert.True(t, dispatcher.Dispatch(h.Bus(), insert, node.Payload(&node.VariableValuePayload{Name: "{{user_name}}"})))

	ps := h.Engine().State().Placeholders()
	require.Len(t, ps, 1)
	assert.Equal(t, node.KindVariableValue, ps[0].Kind())
}

func TestBlock_DeleteNotifiesOnce(t *testing.T) {
	h := newHarness(t, "a")
	var deleted []node.Key
	require.NoError(t, h.manager.Register(NewBlock(node.KindQuery, BlockHooks{
		OnDelete: func(k node.Key) { deleted = append(deleted, k) },
	})))

	del, _ := dispatcher.DeleteCommand(node.KindQuery)
	assert.True(t, dispatcher.Dispatch(h.Bus(), del, node.Key("k1")))
	assert.Equal(t, []node.Key{"k1"}, deleted)
}

func TestFocusBlur_FocusAndBlurHooks(t *testing.T) {
	h := newHarness(t, "a")
	var calls []string
	require.NoError(t, h.manager.Register(NewFocusBlur(FocusBlurHooks{
		OnFocus: func() { calls = append(calls, "focus") },
		OnBlur:  func() { calls = append(calls, "blur") },
	}, 0)))

	assert.True(t, dispatcher.Dispatch(h.Bus(), dispatcher.Focus, dispatcher.FocusEvent{}))
	assert.True(t, dispatcher.Dispatch(h.Bus(), dispatcher.Blur, dispatcher.BlurEvent{}))
	assert.Equal(t, []string{"focus", "blur"}, calls)
}

func TestFocusBlur_EscapeFiresOnce(t *testing.T) {
	h := newHarness(t, "a")
	fb := NewFocusBlur(FocusBlurHooks{}, 0)
	require.NoError(t, h.manager.Register(fb))
	assert.Equal(t, DefaultBlurEscapeDelay, fb.Delay())

	escapes := 0
	dispatcher.Register(h.Bus(), dispatcher.KeyEscape, dispatcher.PriorityEditor, func(ev *dispatcher.KeyEvent) bool {
		assert.Equal(t, "Escape", ev.Key)
		escapes++
		return true
	})

	other := &dispatcher.Target{ID: "toolbar"}
	dispatcher.Dispatch(h.Bus(), dispatcher.Blur, dispatcher.BlurEvent{RelatedTarget: other})
	h.clock.Advance(DefaultBlurEscapeDelay - time.Millisecond)
	assert.Equal(t, 0, escapes)

	h.clock.Advance(10 * time.Millisecond)
	assert.Equal(t, 1, escapes)
	h.clock.Advance(time.Second)
	assert.Equal(t, 1, escapes)
}

func TestFocusBlur_ClearTimerCancels(t *testing.T) {
	h := newHarness(t, "a")
	require.NoError(t, h.manager.Register(NewFocusBlur(FocusBlurHooks{}, 50*time.Millisecond)))
	escapes := 0
	dispatcher.Register(h.Bus(), dispatcher.KeyEscape, dispatcher.PriorityEditor, func(*dispatcher.KeyEvent) bool {
		escapes++
		return true
	})

	dispatcher.Dispatch(h.Bus(), dispatcher.Blur, dispatcher.BlurEvent{})
	h.clock.Advance(20 * time.Millisecond)
	assert.True(t, dispatcher.Dispatch(h.Bus(), dispatcher.ClearHideMenuTimeout, struct{}{}))
	h.clock.Advance(time.Second)
	assert.Equal(t, 0, escapes)
	assert.Equal(t, 0, h.clock.Pending())
}

func TestFocusBlur_SearchInputSkipsEscape(t *testing.T) {
	h := newHarness(t, "a")
	require.NoError(t, h.manager.Register(NewFocusBlur(FocusBlurHooks{}, 0)))

	search := &dispatcher.Target{ID: "var-search", Markers: []string{dispatcher.SearchInputMarker}}
	dispatcher.Dispatch(h.Bus(), dispatcher.Blur, dispatcher.BlurEvent{RelatedTarget: search})
	assert.Equal(t, 0, h.clock.Pending())
}

func TestFocusBlur_TeardownCancelsTimer(t *testing.T) {
	h := newHarness(t, "a")
	teardown, err := NewFocusBlur(FocusBlurHooks{}, 0).Register(h)
	require.NoError(t, err)

	dispatcher.Dispatch(h.Bus(), dispatcher.Blur, dispatcher.BlurEvent{})
	assert.Equal(t, 1, h.clock.Pending())
	teardown()
	assert.Equal(t, 0, h.clock.Pending())
	assert.False(t, h.Bus().Has(dispatcher.TypeBlur))
}

func TestUpdate_ReplaceValue(t *testing.T) {
	h := newHarness(t, "a")
	require.NoError(t, h.manager.Register(NewUpdate()))

	h.publish(t, event.TypeUpdateValue, "a", event.UpdateValue{Value: "A {{#context#}} B"})
	assert.Equal(t, "A {{#context#}} B", h.Engine().RootText())
	require.Len(t, h.Engine().State().Placeholders(), 1)

	h.publish(t, event.TypeUpdateValue, "b", event.UpdateValue{Value: "other"})
	h.publish(t, event.TypeUpdateValue, "", event.UpdateValue{Value: "nobody"})
	assert.Equal(t, "A {{#context#}} B", h.Engine().RootText())
}

func TestUpdate_QuickInsert(t *testing.T) {
	h := newHarness(t, "a")
	require.NoError(t, h.manager.RegisterAll(NewFocusBlur(FocusBlurHooks{}, 0), NewUpdate()))
	require.NoError(t, h.Engine().Update(func(tx *engine.Tx) error {
		tx.SelectEnd()
		return nil
	}))

	dispatcher.Dispatch(h.Bus(), dispatcher.Blur, dispatcher.BlurEvent{})
	require.Equal(t, 1, h.clock.Pending())

	h.publish(t, event.TypeInsertQuickly, "a", event.InsertQuickly{})
	assert.Equal(t, "/", h.Engine().RootText())
	assert.Equal(t, 0, h.clock.Pending(), "hide-menu timer cleared")

	h.publish(t, event.TypeInsertQuickly, "b", event.InsertQuickly{})
	assert.Equal(t, "/", h.Engine().RootText())
}

func TestUpdate_QuickInsertCanBePaused(t *testing.T) {
	h := newHarness(t, "a")
	u := NewUpdate()
	u.SetQuickInsert(false)
	require.NoError(t, h.manager.Register(u))

	h.publish(t, event.TypeInsertQuickly, "a", event.InsertQuickly{})
	assert.Equal(t, "", h.Engine().RootText())

	h.publish(t, event.TypeUpdateValue, "a", event.UpdateValue{Value: "x"})
	assert.Equal(t, "x", h.Engine().RootText(), "update-value stays live")

	u.SetQuickInsert(true)
	require.NoError(t, h.Engine().Update(func(tx *engine.Tx) error {
		tx.SelectEnd()
		return nil
	}))
	h.publish(t, event.TypeInsertQuickly, "a", event.InsertQuickly{})
	assert.Equal(t, "x/", h.Engine().RootText())

	require.NoError(t, h.manager.Unregister("update"))
	u.SetQuickInsert(false)
	u.SetQuickInsert(true)
}

func TestUpdate_RequiresChannel(t *testing.T) {
	h := newHarness(t, "a")
	h.Events = nil
	_, err := NewUpdate().Register(h)
	assert.ErrorIs(t, err, ErrNoChannel)
	_, err = NewContentSync(ContentSyncHooks{}).Register(h)
	assert.ErrorIs(t, err, ErrNoChannel)
}

func TestContentSync(t *testing.T) {
	h := newHarness(t, "a")
	var gotDatasets []node.Dataset
	var gotRoles node.RoleName
	require.NoError(t, h.manager.Register(NewContentSync(ContentSyncHooks{
		OnDatasets: func(ds []node.Dataset) { gotDatasets = ds },
		OnRoles:    func(r node.RoleName) { gotRoles = r },
	})))
	require.NoError(t, h.Engine().Update(func(tx *engine.Tx) error {
		return tx.SetText("{{#context#}} {{#histories#}}")
	}))
	before := h.Engine().State().Placeholders()
	require.Len(t, before, 2)

	datasets := []node.Dataset{{ID: "d1", Name: "Docs", Type: "text"}}
	h.publish(t, event.TypeDatasetsUpdated, "", event.DatasetsUpdated{Datasets: datasets})
	h.publish(t, event.TypeHistoryUpdated, "a", event.HistoryUpdated{RoleName: node.RoleName{User: "Human", Assistant: "Bot"}})
	h.publish(t, event.TypeHistoryUpdated, "b", event.HistoryUpdated{RoleName: node.RoleName{User: "ignored"}})

	assert.Equal(t, datasets, gotDatasets)
	assert.Equal(t, "Human", gotRoles.User)

	after := h.Engine().State().Placeholders()
	require.Len(t, after, 2)
	assert.Equal(t, before[0].Key(), after[0].Key(), "payload refresh keeps keys")
	ctx := after[0].Payload().(*node.ContextPayload)
	assert.Equal(t, datasets, ctx.Datasets)
	hist := after[1].Payload().(*node.HistoryPayload)
	assert.Equal(t, node.RoleName{User: "Human", Assistant: "Bot"}, hist.RoleName)
	assert.Equal(t, "{{#context#}} {{#histories#}}", h.Engine().RootText())
}

func TestContentSync_SkipsOwnBroadcasts(t *testing.T) {
	h := newHarness(t, "a")
	var calls int
	require.NoError(t, h.manager.Register(NewContentSync(ContentSyncHooks{
		OnDatasets: func([]node.Dataset) { calls++ },
	})))

	own, err := event.New(event.TypeDatasetsUpdated, "", event.DatasetsUpdated{})
	require.NoError(t, err)
	own.Metadata.Source = "a"
	require.NoError(t, h.channel.Publish(context.Background(), own))
	assert.Equal(t, 0, calls)

	peer, err := event.New(event.TypeDatasetsUpdated, "", event.DatasetsUpdated{})
	require.NoError(t, err)
	peer.Metadata.Source = "b"
	require.NoError(t, h.channel.Publish(context.Background(), peer))
	assert.Equal(t, 1, calls)
}

func TestOnChange(t *testing.T) {
	h := newHarness(t, "a")
	var all, content []string
	require.NoError(t, h.manager.RegisterAll(
		&namedOnChange{OnChange: NewOnChange(func(s string) { all = append(all, s) }, false), name: "all"},
		&namedOnChange{OnChange: NewOnChange(func(s string) { content = append(content, s) }, true), name: "content"},
	))

	require.NoError(t, h.Engine().Update(func(tx *engine.Tx) error { return tx.InsertText("hi") }))
	require.NoError(t, h.Engine().Update(func(tx *engine.Tx) error {
		tx.ClearSelection()
		return nil
	}))
	assert.Equal(t, []string{"hi", "hi"}, all)
	assert.Equal(t, []string{"hi"}, content)
}

type namedOnChange struct {
	*OnChange
	name string
}

func (n *namedOnChange) Name() string { return n.name }

func TestManager(t *testing.T) {
	h := newHarness(t, "a")
	var events []ChangeKind
	unwatch := h.manager.Watch(func(ev Change) { events = append(events, ev.Kind) })

	require.NoError(t, h.manager.Register(NewBlock(node.KindQuery, BlockHooks{})))
	require.NoError(t, h.manager.Register(NewFocusBlur(FocusBlurHooks{}, 0)))
	assert.ErrorIs(t, h.manager.Register(NewBlock(node.KindQuery, BlockHooks{})), ErrAlreadyRegistered)
	assert.ErrorIs(t, h.manager.Register(nil), ErrInvalidPlugin)

	assert.Equal(t, []string{"block:query-block", "focus-blur"}, h.manager.List())
	assert.Equal(t, StateActive, h.manager.State("focus-blur"))
	assert.Equal(t, StateUnregistered, h.manager.State("nope"))

	require.NoError(t, h.manager.Unregister("focus-blur"))
	assert.False(t, h.Bus().Has(dispatcher.TypeFocus))
	assert.ErrorIs(t, h.manager.Unregister("focus-blur"), ErrPluginNotFound)

	require.NoError(t, h.manager.Close())
	assert.Equal(t, 0, h.manager.Count())
	assert.Empty(t, h.Bus().Registry().List())
	assert.ErrorIs(t, h.manager.Register(NewUpdate()), ErrManagerClosed)

	unwatch()
	assert.Equal(t, []ChangeKind{
		ChangeRegistered, ChangeRegistered,
		ChangeUnregistered, ChangeUnregistered,
	}, events)
}

func TestManager_RecordsFailures(t *testing.T) {
	h := newHarness(t, "a")
	h.Events = nil
	var failed []Change
	defer h.manager.Watch(func(ev Change) { failed = append(failed, ev) })()
	h.manager.Watch(func(Change) { panic("boom") })

	err := h.manager.Register(NewUpdate())
	assert.ErrorIs(t, err, ErrNoChannel)
	assert.Equal(t, StateError, h.manager.State("update"))
	assert.Empty(t, h.manager.List())

	require.Len(t, failed, 1)
	assert.Equal(t, ChangeFailed, failed[0].Kind)
	assert.Equal(t, "update", failed[0].Plugin)
	assert.ErrorIs(t, failed[0].Err, ErrNoChannel)
	assert.Equal(t, "failed", failed[0].Kind.String())
}
