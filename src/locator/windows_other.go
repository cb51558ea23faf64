//go:build !darwin

package locator

import (
	"context"
	"fmt"

	"github.com/go-vgo/robotgo"

	"kakao-autopilot/src/screenshot"
)

// robotLister only sees the process's main window.
type robotLister struct{}

func newPlatformLister() WindowLister {
	return robotLister{}
}

func (robotLister) Windows(ctx context.Context, pid int32) ([]Window, error) {
	x, y, w, h := robotgo.GetBounds(int(pid))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("no bounds for pid %d", pid)
	}
	return []Window{{
		Title:  robotgo.GetTitle(int(pid)),
		Region: screenshot.Region{X: x, Y: y, Width: w, Height: h},
	}}, nil
}
