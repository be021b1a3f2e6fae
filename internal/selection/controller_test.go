package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/promptslot/internal/dispatcher"
	"github.com/dshills/promptslot/internal/engine"
	"github.com/dshills/promptslot/internal/node"
)

type fixture struct {
	engine  *engine.Engine
	bus     *dispatcher.Bus
	query   *node.Placeholder
	current *node.Placeholder
	deleted []node.Key
}

// newFixture builds "ab{{#query#}}cd{{#current#}}" with a delete recorder
// for both kinds.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{engine: engine.New(), bus: dispatcher.NewWithDefaults()}
	require.NoError(t, f.engine.Update(func(tx *engine.Tx) error {
		var err error
		if f.query, err = tx.CreatePlaceholder(node.KindQuery, nil); err != nil {
			return err
		}
		if f.current, err = tx.CreatePlaceholder(node.KindCurrent, nil); err != nil {
			return err
		}
		if err := tx.InsertText("ab"); err != nil {
			return err
		}
		if err := tx.InsertNodes(f.query); err != nil {
			return err
		}
		if err := tx.InsertText("cd"); err != nil {
			return err
		}
		return tx.InsertNodes(f.current)
	}))
	for _, kind := range []node.Kind{node.KindQuery, node.KindCurrent} {
		cmd, _ := dispatcher.DeleteCommand(kind)
		dispatcher.Register(f.bus, cmd, dispatcher.PriorityEditor, func(key node.Key) bool {
			f.deleted = append(f.deleted, key)
			return true
		})
	}
	return f
}

func (f *fixture) mount(t *testing.T, key node.Key) *Controller {
	t.Helper()
	c, err := Mount(f.engine, f.bus, key, nil)
	require.NoError(t, err)
	t.Cleanup(c.Unmount)
	return c
}

func (f *fixture) textKey(i int) node.Key {
	return f.engine.State().Root().Paragraph(0).Child(i).Key()
}

func TestMount_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := Mount(f.engine, f.bus, "missing", nil)
	assert.ErrorIs(t, err, engine.ErrNodeNotFound)

	_, err = Mount(f.engine, f.bus, f.textKey(0), nil)
	assert.ErrorIs(t, err, ErrNotPlaceholder)
}

func TestController_Accessors(t *testing.T) {
	f := newFixture(t)
	c := f.mount(t, f.query.Key())

	assert.Equal(t, f.query.Key(), c.Key())
	assert.Equal(t, node.KindQuery, c.Kind())
	assert.Equal(t, RefFor(f.query.Key()), c.Ref())
	assert.True(t, c.Mounted())
	assert.False(t, c.IsSelected())
}

func TestController_ClickSelects(t *testing.T) {
	f := newFixture(t)
	q := f.mount(t, f.query.Key())
	cur := f.mount(t, f.current.Key())

	ev := &dispatcher.PointerEvent{Target: dispatcher.Target{ID: q.Ref()}}
	assert.True(t, dispatcher.Dispatch(f.bus, dispatcher.Click, ev))
	assert.True(t, ev.DefaultPrevented())
	assert.True(t, q.IsSelected())
	assert.False(t, cur.IsSelected())

	assert.True(t, dispatcher.Dispatch(f.bus, dispatcher.Click,
		&dispatcher.PointerEvent{Target: dispatcher.Target{ID: cur.Ref()}}))
	assert.False(t, q.IsSelected())
	assert.True(t, cur.IsSelected())

	assert.False(t, dispatcher.Dispatch(f.bus, dispatcher.Click,
		&dispatcher.PointerEvent{Target: dispatcher.Target{ID: "elsewhere"}}))
	assert.True(t, cur.IsSelected())
}

func TestController_DeleteSoleSelection(t *testing.T) {
	for _, cmd := range []dispatcher.Command[*dispatcher.KeyEvent]{dispatcher.KeyBackspace, dispatcher.KeyDelete} {
		t.Run(cmd.String(), func(t *testing.T) {
			f := newFixture(t)
			c := f.mount(t, f.query.Key())
			f.mount(t, f.current.Key())
			require.NoError(t, c.Select())

			var tags []string
			f.engine.OnUpdate(func(info engine.UpdateInfo) { tags = append(tags, info.Tags...) })

			ev := &dispatcher.KeyEvent{Key: "Backspace"}
			assert.True(t, dispatcher.Dispatch(f.bus, cmd, ev))
			assert.True(t, ev.DefaultPrevented())
			assert.Equal(t, []node.Key{f.query.Key()}, f.deleted)
			assert.Equal(t, "abcd{{#current#}}", f.engine.RootText())
			assert.Contains(t, tags, TagDelete)
		})
	}
}

func TestController_RangeAnnouncesOnly(t *testing.T) {
	f := newFixture(t)
	f.mount(t, f.query.Key())
	f.mount(t, f.current.Key())

	ab, cd := f.textKey(0), f.textKey(2)
	require.NoError(t, f.engine.Update(func(tx *engine.Tx) error {
		return tx.SetSelection(engine.NewRange(engine.TextPoint(ab, 1), engine.TextPoint(cd, 1)))
	}))

	ev := &dispatcher.KeyEvent{Key: "Backspace"}
	assert.False(t, dispatcher.Dispatch(f.bus, dispatcher.KeyBackspace, ev))
	assert.False(t, ev.DefaultPrevented())
	assert.Equal(t, []node.Key{f.query.Key()}, f.deleted, "only the covered node is announced")
	assert.Equal(t, "ab{{#query#}}cd{{#current#}}", f.engine.RootText())
}

func TestController_RangeAnnouncesEachNodeOnce(t *testing.T) {
	f := newFixture(t)
	f.mount(t, f.query.Key())
	f.mount(t, f.current.Key())

	// Editor default: delete the range once every controller declined.
	dispatcher.Register(f.bus, dispatcher.KeyBackspace, dispatcher.PriorityEditor, func(*dispatcher.KeyEvent) bool {
		return f.engine.Update(func(tx *engine.Tx) error { return tx.DeleteSelection() }) == nil
	})

	ab := f.textKey(0)
	require.NoError(t, f.engine.Update(func(tx *engine.Tx) error {
		p := tx.Root().Paragraph(0)
		return tx.SetSelection(engine.NewRange(engine.TextPoint(ab, 1), engine.ElementPoint(p.Key(), p.Len())))
	}))

	assert.True(t, dispatcher.Dispatch(f.bus, dispatcher.KeyBackspace, &dispatcher.KeyEvent{}))
	assert.ElementsMatch(t, []node.Key{f.query.Key(), f.current.Key()}, f.deleted)
	assert.Equal(t, "a", f.engine.RootText())
}

func TestController_CollapsedCaretIgnored(t *testing.T) {
	f := newFixture(t)
	f.mount(t, f.query.Key())

	assert.False(t, dispatcher.Dispatch(f.bus, dispatcher.KeyBackspace, &dispatcher.KeyEvent{}))
	assert.Empty(t, f.deleted)
	assert.Equal(t, "ab{{#query#}}cd{{#current#}}", f.engine.RootText())
}

func TestController_Unmount(t *testing.T) {
	f := newFixture(t)
	c, err := Mount(f.engine, f.bus, f.query.Key(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, f.bus.Registry().Count(dispatcher.TypeClick))

	c.Unmount()
	c.Unmount()
	assert.False(t, c.Mounted())
	assert.False(t, f.bus.Has(dispatcher.TypeClick))
	assert.False(t, f.bus.Has(dispatcher.TypeKeyBackspace))
	assert.ErrorIs(t, c.Select(), ErrUnmounted)
}
