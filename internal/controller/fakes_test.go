package controller

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/riotswitch/internal/automation"
	"github.com/verte-zerg/riotswitch/internal/store"
)

type locateResult struct {
	point automation.Point
	ok    bool
	err   error
}

// fakeAutomator records every call as a short string.
type fakeAutomator struct {
	mu    sync.Mutex
	calls []string

	window   automation.Window
	found    bool
	restored *automation.Window
	locate   map[string]locateResult
	failOn   string

	// gate, when set, makes FindWindow signal entered and wait for release or ctx.
	entered chan struct{}
	release chan struct{}
}

func newFakeAutomator() *fakeAutomator {
	return &fakeAutomator{
		window: automation.Window{ID: "1", Title: "Riot Client", X: 100, Y: 50, Width: 1280, Height: 720, Visible: true},
		found:  true,
		locate: map[string]locateResult{},
	}
}

func (f *fakeAutomator) record(format string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := fmt.Sprintf(format, args...)
	f.calls = append(f.calls, call)
	if f.failOn != "" && strings.HasPrefix(call, f.failOn) {
		return fmt.Errorf("injected failure on %q", call)
	}
	return nil
}

func (f *fakeAutomator) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAutomator) FindWindow(ctx context.Context, title string) (automation.Window, bool, error) {
	if err := ctx.Err(); err != nil {
		return automation.Window{}, false, err
	}
	if err := f.record("find %s", title); err != nil {
		return automation.Window{}, false, err
	}
	if f.entered != nil {
		close(f.entered)
		f.entered = nil
		select {
		case <-f.release:
		case <-ctx.Done():
			return automation.Window{}, false, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.window, f.found, nil
}

func (f *fakeAutomator) RestoreWindow(_ context.Context, w automation.Window) error {
	if err := f.record("restore %s", w.ID); err != nil {
		return err
	}
	if f.restored != nil {
		f.mu.Lock()
		f.window = *f.restored
		f.mu.Unlock()
	}
	return nil
}

func (f *fakeAutomator) ActivateWindow(_ context.Context, w automation.Window) error {
	return f.record("activate %s", w.ID)
}

func (f *fakeAutomator) Locate(_ context.Context, templatePath string, confidence float64) (automation.Point, bool, error) {
	if err := f.record("locate %s %.2f", templatePath, confidence); err != nil {
		return automation.Point{}, false, err
	}
	r := f.locate[templatePath]
	return r.point, r.ok, r.err
}

func (f *fakeAutomator) Click(_ context.Context, p automation.Point) error {
	return f.record("click %s", p)
}

func (f *fakeAutomator) Hotkey(_ context.Context, keys ...string) error {
	return f.record("hotkey %s", strings.Join(keys, "+"))
}

func (f *fakeAutomator) Press(_ context.Context, key string) error {
	return f.record("press %s", key)
}

func (f *fakeAutomator) TypeText(_ context.Context, text string, interval time.Duration) error {
	return f.record("type %s @%s", text, interval)
}

// recordingSleeper captures requested pauses without sleeping.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleeper) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func newTestStore(t *testing.T) *store.FileStore {
	t.Helper()
	st, err := store.OpenFile(filepath.Join(t.TempDir(), "accounts.json"))
	require.NoError(t, err)
	return st
}

type harness struct {
	ctrl    *Controller
	store   *store.FileStore
	auto    *fakeAutomator
	sleeper *recordingSleeper
}

func newHarness(t *testing.T, cfg Config) harness {
	t.Helper()
	h := harness{
		store:   newTestStore(t),
		auto:    newFakeAutomator(),
		sleeper: &recordingSleeper{},
	}
	h.ctrl = New(h.store, h.auto, WithConfig(cfg), WithSleeper(h.sleeper))
	return h
}

func offsetConfig() Config {
	cfg := DefaultConfig()
	cfg.Strategy = StrategyOffset
	return cfg
}
