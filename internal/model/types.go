// Package model defines shared data structures.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultRegion is assigned to stored accounts that carry no region.
const DefaultRegion = "NA"

// Account is a stored credential triple.
type Account struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Region   string `json:"region"`
}

// Speed selects the pause between synthetic input actions.
type Speed int

// Speed values as persisted in the store document.
const (
	SpeedSlow Speed = iota
	SpeedDefault
	SpeedFast
)

var speedNames = [...]string{"Slow", "Default", "Fast"}

var speedDelays = [...]time.Duration{
	200 * time.Millisecond,
	100 * time.Millisecond,
	10 * time.Millisecond,
}

// Valid reports whether s is one of the known speed values.
func (s Speed) Valid() bool {
	return s >= SpeedSlow && s <= SpeedFast
}

// String returns the display label.
func (s Speed) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Speed(%d)", int(s))
	}
	return speedNames[s]
}

// Delay returns the inter-action pause. Unknown values use the default delay.
func (s Speed) Delay() time.Duration {
	if !s.Valid() {
		return speedDelays[SpeedDefault]
	}
	return speedDelays[s]
}

// Next cycles Slow -> Default -> Fast -> Slow.
func (s Speed) Next() Speed {
	if !s.Valid() {
		return SpeedDefault
	}
	return (s + 1) % Speed(len(speedNames))
}

// ParseSpeed maps a label such as "Fast", "fast (0.01s)" or "2" to a Speed.
// Unrecognized labels fall back to SpeedDefault.
func ParseSpeed(label string) Speed {
	s, ok := LookupSpeed(label)
	if !ok {
		return SpeedDefault
	}
	return s
}

// LookupSpeed is ParseSpeed with an explicit ok flag.
func LookupSpeed(label string) (Speed, bool) {
	clean := strings.TrimSpace(label)
	if i := strings.Index(clean, " ("); i >= 0 {
		clean = clean[:i]
	}
	if n, err := strconv.Atoi(clean); err == nil {
		s := Speed(n)
		return s, s.Valid()
	}
	for i, name := range speedNames {
		if strings.EqualFold(clean, name) {
			return Speed(i), true
		}
	}
	return SpeedDefault, false
}

// Settings holds the persisted preferences.
type Settings struct {
	Speed Speed `json:"speed"`
}

// DefaultSettings returns the settings used for new or legacy documents.
func DefaultSettings() Settings {
	return Settings{Speed: SpeedDefault}
}

// Result is the uniform outcome of an action exposed to UI adapters.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Ok builds a successful Result.
func Ok(format string, args ...any) Result {
	return Result{Success: true, Message: fmt.Sprintf(format, args...)}
}

// Fail builds a failed Result.
func Fail(format string, args ...any) Result {
	return Result{Success: false, Message: fmt.Sprintf(format, args...)}
}

var regions = []string{
	"NA", "EUW", "EUNE", "PBE", "KR", "BR", "LAN", "LAS", "OCE", "TR",
	"RU", "JP", "PH", "SG", "TW", "VN", "TH", "HK", "CN", "SEA",
}

// Regions returns a copy of the supported region codes.
func Regions() []string {
	return append([]string(nil), regions...)
}
