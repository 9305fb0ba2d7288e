// Package automation abstracts window lookup, on-screen template search and
// synthetic input behind the Automator interface.
package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrTemplateMissing is returned by Locate when the template image does not exist.
	ErrTemplateMissing = errors.New("template image not found")
	// ErrCommandExit marks an external command that ran but exited unsuccessfully.
	ErrCommandExit = errors.New("command exited with failure")
)

// Point is a screen coordinate.
type Point struct {
	X int
	Y int
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Window describes a top-level window found by title.
type Window struct {
	ID        string
	Title     string
	X         int
	Y         int
	Width     int
	Height    int
	Minimized bool
	Visible   bool
}

// Offset returns the point at dx,dy from the window's top-left corner.
func (w Window) Offset(dx, dy int) Point {
	return Point{X: w.X + dx, Y: w.Y + dy}
}

// Automator is the screen automation capability a login sequence drives.
type Automator interface {
	// FindWindow looks up a window whose title equals title.
	FindWindow(ctx context.Context, title string) (Window, bool, error)
	RestoreWindow(ctx context.Context, w Window) error
	ActivateWindow(ctx context.Context, w Window) error
	// Locate searches the screen for the template image and returns the centre of the best match.
	Locate(ctx context.Context, templatePath string, confidence float64) (Point, bool, error)
	Click(ctx context.Context, p Point) error
	// Hotkey presses keys together, e.g. Hotkey(ctx, "ctrl", "a").
	Hotkey(ctx context.Context, keys ...string) error
	Press(ctx context.Context, key string) error
	// TypeText types text with interval between characters.
	TypeText(ctx context.Context, text string, interval time.Duration) error
}

var keyNames = map[string]string{
	"enter":     "Return",
	"return":    "Return",
	"tab":       "Tab",
	"delete":    "Delete",
	"del":       "Delete",
	"backspace": "BackSpace",
	"esc":       "Escape",
	"escape":    "Escape",
	"space":     "space",
	"ctrl":      "ctrl",
	"control":   "ctrl",
	"shift":     "shift",
	"alt":       "alt",
	"super":     "super",
	"cmd":       "super",
}

// KeyName maps a portable key name to its X keysym name. Unknown names pass through.
func KeyName(key string) string {
	if name, ok := keyNames[strings.ToLower(key)]; ok {
		return name
	}
	return key
}
