package automation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name  string
	args  []string
	stdin string
}

type response struct {
	out []byte
	err error
}

// fakeRunner answers by "<name> <first arg>" and records every invocation.
type fakeRunner struct {
	responses map[string]response
	calls     []call
}

func (f *fakeRunner) Run(_ context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	c := call{name: name, args: args}
	if stdin != nil {
		data, _ := io.ReadAll(stdin)
		c.stdin = string(data)
	}
	f.calls = append(f.calls, c)
	key := name
	if len(args) > 0 {
		key += " " + args[0]
	}
	r := f.responses[key]
	return r.out, r.err
}

func (f *fakeRunner) last() call {
	return f.calls[len(f.calls)-1]
}

const geometry = "WINDOW=4242\nX=100\nY=50\nWIDTH=1280\nHEIGHT=720\nSCREEN=0\n"

func TestFindWindowParsesGeometry(t *testing.T) {
	r := &fakeRunner{responses: map[string]response{
		"xdotool search":            {out: []byte("4242\n4243\n")},
		"xdotool getwindowgeometry": {out: []byte(geometry)},
		"xprop -id":                 {out: []byte("_NET_WM_STATE(ATOM) = _NET_WM_STATE_FOCUSED\n")},
	}}
	x := NewXDoTool(WithRunner(r))

	w, ok, err := x.FindWindow(context.Background(), "Riot Client")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Window{ID: "4242", Title: "Riot Client", X: 100, Y: 50, Width: 1280, Height: 720, Visible: true}, w)
	assert.Equal(t, []string{"search", "--name", `^Riot Client$`}, r.calls[0].args)
	assert.Equal(t, []string{"getwindowgeometry", "--shell", "4242"}, r.calls[1].args)
}

func TestFindWindowQuotesTitle(t *testing.T) {
	r := &fakeRunner{responses: map[string]response{
		"xdotool search": {err: fmt.Errorf("xdotool: %w", ErrCommandExit)},
	}}
	x := NewXDoTool(WithRunner(r))

	_, ok, err := x.FindWindow(context.Background(), "Client (beta)")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, `^Client \(beta\)$`, r.calls[0].args[2])
}

func TestFindWindowDetectsMinimized(t *testing.T) {
	r := &fakeRunner{responses: map[string]response{
		"xdotool search":            {out: []byte("7\n")},
		"xdotool getwindowgeometry": {out: []byte(geometry)},
		"xprop -id":                 {out: []byte("_NET_WM_STATE(ATOM) = _NET_WM_STATE_HIDDEN\n")},
	}}
	w, ok, err := NewXDoTool(WithRunner(r)).FindWindow(context.Background(), "Riot Client")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, w.Minimized)
	assert.False(t, w.Visible)
}

func TestFindWindowPropagatesMissingBinary(t *testing.T) {
	r := &fakeRunner{responses: map[string]response{
		"xdotool search": {err: errors.New("exec: \"xdotool\": executable file not found in $PATH")},
	}}
	_, _, err := NewXDoTool(WithRunner(r)).FindWindow(context.Background(), "Riot Client")
	require.Error(t, err)
}

func TestFindWindowRejectsBadGeometry(t *testing.T) {
	r := &fakeRunner{responses: map[string]response{
		"xdotool search":            {out: []byte("7\n")},
		"xdotool getwindowgeometry": {out: []byte("WINDOW=7\nX=1\n")},
	}}
	_, _, err := NewXDoTool(WithRunner(r)).FindWindow(context.Background(), "Riot Client")
	require.Error(t, err)
}

func TestInputCommands(t *testing.T) {
	r := &fakeRunner{}
	x := NewXDoTool(WithRunner(r))
	ctx := context.Background()
	w := Window{ID: "9"}

	require.NoError(t, x.RestoreWindow(ctx, w))
	assert.Equal(t, []string{"windowmap", "9"}, r.last().args)

	require.NoError(t, x.ActivateWindow(ctx, w))
	assert.Equal(t, []string{"windowactivate", "--sync", "9"}, r.last().args)

	require.NoError(t, x.Click(ctx, Point{X: 200, Y: 305}))
	assert.Equal(t, []string{"mousemove", "--sync", "200", "305", "click", "1"}, r.last().args)

	require.NoError(t, x.Hotkey(ctx, "ctrl", "a"))
	assert.Equal(t, []string{"key", "--clearmodifiers", "ctrl+a"}, r.last().args)

	require.NoError(t, x.Press(ctx, "enter"))
	assert.Equal(t, []string{"key", "--clearmodifiers", "Return"}, r.last().args)

	require.NoError(t, x.TypeText(ctx, "s3cret pass", 10*time.Millisecond))
	typed := r.last()
	assert.Equal(t, []string{"type", "--clearmodifiers", "--delay", "10", "--file", "-"}, typed.args)
	assert.Equal(t, "s3cret pass", typed.stdin)
	for _, arg := range typed.args {
		assert.NotContains(t, arg, "s3cret")
	}
}

func TestInputCommandErrorsAreWrapped(t *testing.T) {
	r := &fakeRunner{responses: map[string]response{
		"xdotool key": {err: fmt.Errorf("xdotool: %w: no display", ErrCommandExit)},
	}}
	err := NewXDoTool(WithRunner(r)).Press(context.Background(), "tab")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommandExit)
	assert.Contains(t, err.Error(), "Tab")
}

func TestLocateUsesCaptureAndTemplate(t *testing.T) {
	screen := checkerScreen(240, 160, 61, 45)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, screen))

	tmplPath := filepath.Join(t.TempDir(), "field.png")
	writePNG(t, tmplPath, checker(48, 24))

	r := &fakeRunner{responses: map[string]response{
		"grab --root": {out: buf.Bytes()},
	}}
	x := NewXDoTool(WithRunner(r), WithCaptureCommand("grab", "--root"))

	p, ok, err := x.Locate(context.Background(), tmplPath, 0.8)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Point{X: 85, Y: 57}, p)
}

func TestLocateMissingTemplate(t *testing.T) {
	x := NewXDoTool(WithRunner(&fakeRunner{}))
	_, ok, err := x.Locate(context.Background(), filepath.Join(t.TempDir(), "nope.png"), 0.8)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrTemplateMissing)
}

func TestLocateRejectsGarbageCapture(t *testing.T) {
	tmplPath := filepath.Join(t.TempDir(), "field.png")
	writePNG(t, tmplPath, checker(16, 16))
	r := &fakeRunner{responses: map[string]response{
		"import -window": {out: []byte("not a png")},
	}}
	_, _, err := NewXDoTool(WithRunner(r)).Locate(context.Background(), tmplPath, 0.8)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "decode screen capture"))
}

func TestKeyName(t *testing.T) {
	assert.Equal(t, "Return", KeyName("Enter"))
	assert.Equal(t, "Tab", KeyName("tab"))
	assert.Equal(t, "Delete", KeyName("delete"))
	assert.Equal(t, "F5", KeyName("F5"))
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}
