package input

import (
	"context"
	"fmt"
	"runtime"

	"github.com/go-vgo/robotgo"

	"kakao-autopilot/src/osscript"
)

// Driver is the primitive synthetic-input surface.
type Driver interface {
	KeyTap(key string, mods ...string) error
	Move(x, y int)
	Click() error
	Activate(ctx context.Context, app string) error
}

// RobotDriver drives the real keyboard and mouse through robotgo.
type RobotDriver struct {
	Script osscript.Runner
	GOOS   string
}

func NewRobotDriver(script osscript.Runner) *RobotDriver {
	return &RobotDriver{Script: script, GOOS: runtime.GOOS}
}

func (d *RobotDriver) KeyTap(key string, mods ...string) error {
	args := make([]interface{}, len(mods))
	for i, m := range mods {
		args[i] = m
	}
	if err := robotgo.KeyTap(key, args...); err != nil {
		return fmt.Errorf("key %s%v: %w", key, mods, err)
	}
	return nil
}

func (d *RobotDriver) Move(x, y int) {
	robotgo.Move(x, y)
}

func (d *RobotDriver) Click() error {
	robotgo.Click("left", false)
	return nil
}

// Activate brings app to the foreground. macOS goes through osascript because
// robotgo activation by name is unreliable for sandboxed apps.
func (d *RobotDriver) Activate(ctx context.Context, app string) error {
	if d.GOOS == "darwin" {
		_, err := d.Script.Run(ctx, fmt.Sprintf("tell application %s to activate", osscript.Quote(app)))
		if err != nil {
			return fmt.Errorf("activate %s: %w", app, err)
		}
		return nil
	}
	if err := robotgo.ActiveName(app); err != nil {
		return fmt.Errorf("activate %s: %w", app, err)
	}
	return nil
}

// DefaultModifier is the platform's shortcut modifier.
func DefaultModifier(goos string) string {
	if goos == "darwin" {
		return "cmd"
	}
	return "ctrl"
}
