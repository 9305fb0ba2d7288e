package automation

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/riotswitch/internal/logging"
)

// Runner executes an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner. Non-zero exits are wrapped with ErrCommandExit.
func (ExecRunner) Run(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, fmt.Errorf("%s: %w: %s", name, ErrCommandExit, strings.TrimSpace(stderr.String()))
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// DefaultCaptureCommand grabs the root window as PNG on stdout (ImageMagick).
var DefaultCaptureCommand = []string{"import", "-window", "root", "png:-"}

// XDoTool drives an X11 session through the xdotool and xprop commands.
type XDoTool struct {
	runner  Runner
	binary  string
	capture []string
}

// XDoToolOption configures an XDoTool.
type XDoToolOption func(*XDoTool)

// WithRunner replaces the command runner.
func WithRunner(r Runner) XDoToolOption {
	return func(x *XDoTool) {
		x.runner = r
	}
}

// WithCaptureCommand replaces the screen capture command. It must write a PNG to stdout.
func WithCaptureCommand(argv ...string) XDoToolOption {
	return func(x *XDoTool) {
		if len(argv) > 0 {
			x.capture = argv
		}
	}
}

// NewXDoTool returns an Automator backed by xdotool.
func NewXDoTool(opts ...XDoToolOption) *XDoTool {
	x := &XDoTool{
		runner:  ExecRunner{},
		binary:  "xdotool",
		capture: DefaultCaptureCommand,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

func (x *XDoTool) run(ctx context.Context, args ...string) ([]byte, error) {
	logging.Debugf("%s %s", x.binary, strings.Join(args, " "))
	return x.runner.Run(ctx, nil, x.binary, args...)
}

// FindWindow implements Automator. The first window with an exactly matching title wins.
func (x *XDoTool) FindWindow(ctx context.Context, title string) (Window, bool, error) {
	out, err := x.run(ctx, "search", "--name", "^"+regexp.QuoteMeta(title)+"$")
	ids := strings.Fields(string(out))
	if err != nil {
		// xdotool search exits non-zero when nothing matches.
		if errors.Is(err, ErrCommandExit) && len(ids) == 0 {
			return Window{}, false, nil
		}
		return Window{}, false, fmt.Errorf("search window: %w", err)
	}
	if len(ids) == 0 {
		return Window{}, false, nil
	}

	w := Window{ID: ids[0], Title: title}
	geom, err := x.run(ctx, "getwindowgeometry", "--shell", w.ID)
	if err != nil {
		return Window{}, false, fmt.Errorf("window geometry: %w", err)
	}
	if err := parseGeometry(geom, &w); err != nil {
		return Window{}, false, err
	}
	w.Minimized = x.hidden(ctx, w.ID)
	w.Visible = !w.Minimized
	return w, true, nil
}

func (x *XDoTool) hidden(ctx context.Context, id string) bool {
	out, err := x.runner.Run(ctx, nil, "xprop", "-id", id, "_NET_WM_STATE")
	if err != nil {
		logging.Debugf("xprop %s: %v", id, err)
		return false
	}
	return strings.Contains(string(out), "_NET_WM_STATE_HIDDEN")
}

func parseGeometry(out []byte, w *Window) error {
	fields := map[string]*int{"X": &w.X, "Y": &w.Y, "WIDTH": &w.Width, "HEIGHT": &w.Height}
	seen := 0
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		target, ok := fields[key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("window geometry %s=%q: %w", key, value, err)
		}
		*target = n
		seen++
	}
	if seen < len(fields) {
		return fmt.Errorf("window geometry: incomplete output %q", strings.TrimSpace(string(out)))
	}
	return nil
}

// RestoreWindow implements Automator.
func (x *XDoTool) RestoreWindow(ctx context.Context, w Window) error {
	if _, err := x.run(ctx, "windowmap", w.ID); err != nil {
		return fmt.Errorf("restore window: %w", err)
	}
	return nil
}

// ActivateWindow implements Automator.
func (x *XDoTool) ActivateWindow(ctx context.Context, w Window) error {
	if _, err := x.run(ctx, "windowactivate", "--sync", w.ID); err != nil {
		return fmt.Errorf("activate window: %w", err)
	}
	return nil
}

// Click implements Automator.
func (x *XDoTool) Click(ctx context.Context, p Point) error {
	if _, err := x.run(ctx, "mousemove", "--sync", strconv.Itoa(p.X), strconv.Itoa(p.Y), "click", "1"); err != nil {
		return fmt.Errorf("click %s: %w", p, err)
	}
	return nil
}

// Hotkey implements Automator.
func (x *XDoTool) Hotkey(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = KeyName(k)
	}
	combo := strings.Join(names, "+")
	if _, err := x.run(ctx, "key", "--clearmodifiers", combo); err != nil {
		return fmt.Errorf("hotkey %s: %w", combo, err)
	}
	return nil
}

// Press implements Automator.
func (x *XDoTool) Press(ctx context.Context, key string) error {
	return x.Hotkey(ctx, key)
}

// TypeText implements Automator. The text is fed on stdin so it never shows up
// in the process list.
func (x *XDoTool) TypeText(ctx context.Context, text string, interval time.Duration) error {
	delay := strconv.FormatInt(interval.Milliseconds(), 10)
	logging.Debugf("%s type --delay %s (%d chars)", x.binary, delay, len([]rune(text)))
	_, err := x.runner.Run(ctx, strings.NewReader(text), x.binary,
		"type", "--clearmodifiers", "--delay", delay, "--file", "-")
	if err != nil {
		return fmt.Errorf("type text: %w", err)
	}
	return nil
}

// Locate implements Automator by capturing the screen and running MatchTemplate.
func (x *XDoTool) Locate(ctx context.Context, templatePath string, confidence float64) (Point, bool, error) {
	tmpl, err := LoadImage(templatePath)
	if err != nil {
		return Point{}, false, err
	}
	screen, err := x.captureScreen(ctx)
	if err != nil {
		return Point{}, false, err
	}
	p, score, ok := MatchTemplate(screen, tmpl, confidence)
	logging.Debugf("template %s best score %.3f", templatePath, score)
	return p, ok, nil
}

func (x *XDoTool) captureScreen(ctx context.Context) (image.Image, error) {
	out, err := x.runner.Run(ctx, nil, x.capture[0], x.capture[1:]...)
	if err != nil {
		return nil, fmt.Errorf("capture screen: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("decode screen capture: %w", err)
	}
	return img, nil
}

// LoadImage decodes a PNG file. Missing files are reported as ErrTemplateMissing.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateMissing, path)
		}
		return nil, fmt.Errorf("open template: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			// Best-effort close for read-only template.
			_ = cerr
		}
	}()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode template %s: %w", path, err)
	}
	return img, nil
}

var _ Automator = (*XDoTool)(nil)
