package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/verte-zerg/riotswitch/internal/automation"
	"github.com/verte-zerg/riotswitch/internal/logging"
	"github.com/verte-zerg/riotswitch/internal/model"
	"github.com/verte-zerg/riotswitch/internal/store"
)

// Login types the stored credentials of username into the client window.
// speedLabel is parsed with model.ParseSpeed. Success only means the input
// sequence completed; the client's authentication result is not observable.
func (c *Controller) Login(ctx context.Context, username, speedLabel string) model.Result {
	err := c.login(ctx, username, model.ParseSpeed(speedLabel))
	if err != nil {
		logging.Warnf("login for %q failed: %v", username, err)
		return c.loginFailure(err)
	}
	return model.Ok("Login attempted for '%s'. If unsuccessful, ensure %s is open and try positioning your cursor manually.",
		username, c.cfg.WindowTitle)
}

// LoginAsync runs Login on its own goroutine and delivers the result on the
// returned channel, which is closed afterwards.
func (c *Controller) LoginAsync(ctx context.Context, username, speedLabel string) <-chan model.Result {
	ch := make(chan model.Result, 1)
	go func() {
		defer close(ch)
		ch <- c.Login(ctx, username, speedLabel)
	}()
	return ch
}

func (c *Controller) loginFailure(err error) model.Result {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return model.Fail("Account not found")
	case errors.Is(err, ErrBusy):
		return model.Fail("Another login attempt is already running")
	case errors.Is(err, context.DeadlineExceeded):
		return model.Fail("Login attempt timed out")
	case errors.Is(err, context.Canceled):
		return model.Fail("Login attempt cancelled")
	case errors.Is(err, ErrWindowNotFound):
		return model.Fail("Could not locate %s window. Make sure it's open and visible.", c.cfg.WindowTitle)
	case errors.Is(err, ErrFieldNotFound):
		return model.Fail("Could not determine focus position.")
	default:
		return model.Fail("Error during login automation: %v", err)
	}
}

func (c *Controller) login(ctx context.Context, username string, speed model.Speed) error {
	acc, err := c.store.Get(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("read account: %w", err)
	}

	if !c.busy.TryLock() {
		return ErrBusy
	}
	defer c.busy.Unlock()

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	logging.Infof("attempting login for %q (speed %s)", username, speed)
	err = c.runSequence(ctx, acc, speed.Delay())
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (c *Controller) runSequence(ctx context.Context, acc model.Account, delay time.Duration) error {
	win, err := c.prepareWindow(ctx)
	if err != nil {
		return err
	}
	target, err := c.focusPoint(ctx, win)
	if err != nil {
		return err
	}
	logging.Debugf("username field at %s", target)
	return c.fillForm(ctx, acc, target, delay)
}

// prepareWindow finds, restores and activates the client window.
func (c *Controller) prepareWindow(ctx context.Context) (automation.Window, error) {
	win, err := c.findWindow(ctx)
	if err != nil {
		return automation.Window{}, err
	}
	if win.Minimized {
		if err := c.auto.RestoreWindow(ctx, win); err != nil {
			return automation.Window{}, fmt.Errorf("%w: %v", ErrAutomation, err)
		}
		if err := c.sleeper.Sleep(ctx, c.cfg.RestoreDelay); err != nil {
			return automation.Window{}, err
		}
		if win, err = c.findWindow(ctx); err != nil {
			return automation.Window{}, err
		}
	}
	if !win.Visible {
		return automation.Window{}, ErrWindowNotFound
	}
	if err := c.auto.ActivateWindow(ctx, win); err != nil {
		return automation.Window{}, fmt.Errorf("%w: %v", ErrAutomation, err)
	}
	if err := c.sleeper.Sleep(ctx, c.cfg.ActivateDelay); err != nil {
		return automation.Window{}, err
	}
	return win, nil
}

func (c *Controller) findWindow(ctx context.Context) (automation.Window, error) {
	win, ok, err := c.auto.FindWindow(ctx, c.cfg.WindowTitle)
	if err != nil {
		return automation.Window{}, fmt.Errorf("%w: %v", ErrAutomation, err)
	}
	if !ok {
		return automation.Window{}, ErrWindowNotFound
	}
	return win, nil
}

// focusPoint locates the username field by template, by window offset, or both.
func (c *Controller) focusPoint(ctx context.Context, win automation.Window) (automation.Point, error) {
	if c.cfg.Strategy != StrategyOffset {
		for _, tmpl := range c.cfg.Templates {
			p, ok, err := c.auto.Locate(ctx, tmpl, c.cfg.Confidence)
			if err != nil {
				if ctx.Err() != nil {
					return automation.Point{}, ctx.Err()
				}
				logging.Warnf("skipping template %s: %v", tmpl, err)
				continue
			}
			if ok {
				logging.Debugf("matched template %s", tmpl)
				return p, nil
			}
		}
	}
	if c.cfg.Strategy != StrategyTemplate {
		return win.Offset(c.cfg.OffsetX, c.cfg.OffsetY), nil
	}
	return automation.Point{}, ErrFieldNotFound
}

// fillForm replays the credentials, pausing delay after every action.
func (c *Controller) fillForm(ctx context.Context, acc model.Account, target automation.Point, delay time.Duration) error {
	steps := []func() error{
		func() error { return c.auto.Click(ctx, target) },
		func() error { return c.auto.Hotkey(ctx, "ctrl", "a") },
	}
	if c.cfg.ClearWithDelete {
		steps = append(steps, func() error { return c.auto.Press(ctx, "delete") })
	}
	steps = append(steps,
		func() error { return c.auto.TypeText(ctx, acc.Username, delay) },
		func() error { return c.auto.Press(ctx, "tab") },
		func() error { return c.auto.Hotkey(ctx, "ctrl", "a") },
		func() error { return c.auto.TypeText(ctx, acc.Password, delay) },
	)
	for i := 0; i < c.cfg.SubmitTabs; i++ {
		steps = append(steps, func() error { return c.auto.Press(ctx, "tab") })
	}
	steps = append(steps, func() error { return c.auto.Press(ctx, "enter") })
	if c.cfg.Resubmit {
		steps = append(steps,
			func() error { return c.auto.Click(ctx, target) },
			func() error { return c.auto.Press(ctx, "enter") },
		)
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step(); err != nil {
			return fmt.Errorf("%w: %v", ErrAutomation, err)
		}
		if err := c.sleeper.Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return nil
}
