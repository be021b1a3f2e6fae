package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/promptslot/internal/clock"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
}

type reloadRecorder struct {
	mu   sync.Mutex
	cfgs []*Config
	errs []error
}

func (r *reloadRecorder) record(cfg *Config, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfgs = append(r.cfgs, cfg)
	r.errs = append(r.errs, err)
}

func (r *reloadRecorder) last() (*Config, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.cfgs)
	if n == 0 {
		return nil, 0, nil
	}
	return r.cfgs[n-1], n, r.errs[n-1]
}

func TestWatcher_Debounce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "promptslot.toml")
	writeFile(t, path, "[log]\nlevel = \"debug\"\n")

	clk := clock.NewManual(time.Unix(0, 0))
	rec := &reloadRecorder{}
	w, err := NewWatcher(path, rec.record,
		WithWatchClock(clk),
		WithWatchDebounce(50*time.Millisecond),
		WithWatchLoader(NewLoader(WithEnviron(func() []string { return nil }))))
	require.NoError(t, err)
	defer w.Close()

	ev := fsnotify.Event{Name: path, Op: fsnotify.Write}
	w.handle(ev)
	clk.Advance(20 * time.Millisecond)
	w.handle(ev)
	w.handle(fsnotify.Event{Name: filepath.Join(dir, "other.toml"), Op: fsnotify.Write})
	w.handle(fsnotify.Event{Name: path, Op: fsnotify.Chmod})
	clk.Advance(49 * time.Millisecond)
	assert.Equal(t, uint64(0), w.Reloads())

	clk.Advance(time.Millisecond)
	assert.Equal(t, uint64(1), w.Reloads())
	cfg, n, err := rec.last()
	assert.Equal(t, 1, n)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestWatcher_ReloadError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "promptslot.toml")
	writeFile(t, path, "[log]\nlevel = \"loud\"\n")

	clk := clock.NewManual(time.Unix(0, 0))
	rec := &reloadRecorder{}
	w, err := NewWatcher(path, rec.record, WithWatchClock(clk))
	require.NoError(t, err)
	defer w.Close()

	w.handle(fsnotify.Event{Name: path, Op: fsnotify.Create})
	clk.Advance(DefaultWatchDebounce)

	cfg, n, err := rec.last()
	assert.Equal(t, 1, n)
	assert.Nil(t, cfg)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestWatcher_CloseDropsPending(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "promptslot.toml")
	writeFile(t, path, "")

	clk := clock.NewManual(time.Unix(0, 0))
	w, err := NewWatcher(path, nil, WithWatchClock(clk))
	require.NoError(t, err)
	assert.Equal(t, path, w.Path())

	w.handle(fsnotify.Event{Name: path, Op: fsnotify.Write})
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	clk.Advance(time.Second)
	assert.Equal(t, uint64(0), w.Reloads())
}

func TestWatcher_FileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "promptslot.yaml")
	writeFile(t, path, "log:\n  level: info\n")

	rec := &reloadRecorder{}
	w, err := NewWatcher(path, rec.record,
		WithWatchDebounce(20*time.Millisecond),
		WithWatchLoader(NewLoader(WithEnviron(func() []string { return nil }))))
	require.NoError(t, err)
	defer w.Close()

	writeFile(t, path, "log:\n  level: error\n")

	require.Eventually(t, func() bool {
		cfg, n, err := rec.last()
		return n > 0 && err == nil && cfg.Log.Level == "error"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_MissingDir(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope", "c.toml"), nil)
	assert.Error(t, err)
}
