package locator

import (
	"context"
	"fmt"

	"kakao-autopilot/src/osscript"
)

const windowListScript = `tell application "System Events"
	set out to ""
	repeat with w in windows of (first process whose unix id is %d)
		set {px, py} to position of w
		set {sw, sh} to size of w
		set out to out & (name of w as text) & tab & px & tab & py & tab & sw & tab & sh & linefeed
	end repeat
	return out
end tell`

// scriptLister reads window geometry through the accessibility API.
type scriptLister struct {
	Runner osscript.Runner
}

func newPlatformLister() WindowLister {
	return scriptLister{Runner: osscript.Exec{}}
}

func (l scriptLister) Windows(ctx context.Context, pid int32) ([]Window, error) {
	out, err := l.Runner.Run(ctx, fmt.Sprintf(windowListScript, pid))
	if err != nil {
		return nil, err
	}
	return ParseWindowList(out), nil
}
