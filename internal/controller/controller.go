// Package controller orchestrates the account store and the automated login
// sequence behind a small API that UI adapters call.
//
// Every action returns a model.Result; errors never cross the API boundary.
package controller

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/verte-zerg/riotswitch/internal/automation"
	"github.com/verte-zerg/riotswitch/internal/logging"
	"github.com/verte-zerg/riotswitch/internal/model"
	"github.com/verte-zerg/riotswitch/internal/store"
)

var (
	// ErrAccountNotFound means the username is not in the store.
	ErrAccountNotFound = errors.New("account not found")
	// ErrWindowNotFound means the client window could not be found or shown.
	ErrWindowNotFound = errors.New("window not found")
	// ErrFieldNotFound means no focus point for the username field could be computed.
	ErrFieldNotFound = errors.New("login field not found")
	// ErrAutomation wraps failures of the synthetic input sequence.
	ErrAutomation = errors.New("automation failed")
	// ErrBusy means another login attempt is in flight.
	ErrBusy = errors.New("login already in progress")
)

// Strategy selects how the username field is located.
type Strategy string

// Focus strategies.
const (
	StrategyAuto     Strategy = "auto"
	StrategyTemplate Strategy = "template"
	StrategyOffset   Strategy = "offset"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(name))); s {
	case StrategyAuto, StrategyTemplate, StrategyOffset:
		return s, nil
	default:
		return "", fmt.Errorf("unknown focus strategy %q (use auto, template or offset)", name)
	}
}

// Config tunes the login sequence.
type Config struct {
	WindowTitle string
	Strategy    Strategy
	// Templates are tried in order; the first match wins.
	Templates  []string
	Confidence float64
	OffsetX    int
	OffsetY    int
	// SubmitTabs is the number of tab presses between the password and enter.
	SubmitTabs int
	// Resubmit clicks the username field and presses enter again after submitting.
	Resubmit        bool
	ClearWithDelete bool
	Timeout         time.Duration
	RestoreDelay    time.Duration
	ActivateDelay   time.Duration
}

// DefaultConfig returns the settings tuned for the Riot Client login form.
func DefaultConfig() Config {
	return Config{
		WindowTitle:     "Riot Client",
		Strategy:        StrategyAuto,
		Templates:       []string{"username_field.png", "username_field_alt.png"},
		Confidence:      0.8,
		OffsetX:         100,
		OffsetY:         255,
		SubmitTabs:      6,
		Resubmit:        true,
		ClearWithDelete: true,
		Timeout:         30 * time.Second,
		RestoreDelay:    200 * time.Millisecond,
		ActivateDelay:   100 * time.Millisecond,
	}
}

// Sleeper waits between automation steps. It returns early with ctx.Err()
// when the context ends.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep implements Sleeper.
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Controller is the entry point for UI adapters.
type Controller struct {
	store   store.CredentialStore
	auto    automation.Automator
	regions []string
	cfg     Config
	sleeper Sleeper

	busy sync.Mutex
}

// Option configures a Controller.
type Option func(*Controller)

// WithRegions replaces the region table.
func WithRegions(regions []string) Option {
	return func(c *Controller) {
		c.regions = append([]string(nil), regions...)
	}
}

// WithConfig replaces the login sequence settings.
func WithConfig(cfg Config) Option {
	return func(c *Controller) {
		c.cfg = cfg
	}
}

// WithSleeper replaces the timing source used between automation steps.
func WithSleeper(s Sleeper) Option {
	return func(c *Controller) {
		c.sleeper = s
	}
}

// New builds a Controller over st and auto.
func New(st store.CredentialStore, auto automation.Automator, opts ...Option) *Controller {
	c := &Controller{
		store:   st,
		auto:    auto,
		regions: model.Regions(),
		cfg:     DefaultConfig(),
		sleeper: SleeperFunc(sleepContext),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Accounts returns the stored accounts, or none when the store cannot be read.
func (c *Controller) Accounts(ctx context.Context) []model.Account {
	accounts, err := c.store.All(ctx)
	if err != nil {
		logging.Errorf("failed to list accounts: %v", err)
		return []model.Account{}
	}
	return accounts
}

// Account returns a single account by username.
func (c *Controller) Account(ctx context.Context, username string) (model.Account, bool) {
	acc, err := c.store.Get(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logging.Errorf("failed to read account %q: %v", username, err)
		}
		return model.Account{}, false
	}
	return acc, true
}

// Regions returns the supported region codes.
func (c *Controller) Regions() []string {
	return append([]string(nil), c.regions...)
}

// SpeedSetting returns the persisted speed, or the default when it cannot be read.
func (c *Controller) SpeedSetting(ctx context.Context) model.Speed {
	speed, err := c.store.Speed(ctx)
	if err != nil {
		logging.Errorf("failed to read speed setting: %v", err)
		return model.SpeedDefault
	}
	return speed
}

// SetSpeedSetting persists a speed given as 0 (Slow), 1 (Default) or 2 (Fast).
func (c *Controller) SetSpeedSetting(ctx context.Context, speed int) model.Result {
	s := model.Speed(speed)
	if !s.Valid() {
		return model.Fail("Invalid speed setting %d (use 0=Slow, 1=Default, 2=Fast)", speed)
	}
	if err := c.store.SetSpeed(ctx, s); err != nil {
		return model.Fail("Error saving speed setting: %v", err)
	}
	return model.Ok("Speed setting updated to %s", s)
}

// SaveAccount creates or updates an account.
func (c *Controller) SaveAccount(ctx context.Context, username, password, region string) model.Result {
	if username == "" || password == "" || region == "" {
		return model.Fail("Username, password, and region are required")
	}
	if !slices.Contains(c.regions, region) {
		return model.Fail("Unknown region %q", region)
	}
	isUpdate, err := c.store.Upsert(ctx, username, password, region)
	if err != nil {
		return model.Fail("Error saving account: %v", err)
	}
	if isUpdate {
		return model.Ok("Account '%s' updated successfully", username)
	}
	return model.Ok("Account '%s' saved successfully", username)
}

// DeleteAccount removes an account.
func (c *Controller) DeleteAccount(ctx context.Context, username string) model.Result {
	found, err := c.store.Delete(ctx, username)
	if err != nil {
		return model.Fail("Error deleting account: %v", err)
	}
	if !found {
		return model.Fail("Account '%s' not found", username)
	}
	return model.Ok("Account '%s' deleted successfully", username)
}
