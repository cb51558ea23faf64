// Package locator resolves the screen region of the chat client's active window.
package locator

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"

	"kakao-autopilot/src/screenshot"
)

type Window struct {
	Title  string
	Region screenshot.Region
}

// WindowLister returns the process's windows, frontmost first.
type WindowLister interface {
	Windows(ctx context.Context, pid int32) ([]Window, error)
}

// ProcessFinder returns the pid of the running client.
type ProcessFinder interface {
	Find(ctx context.Context, app, bundleID string) (int32, error)
}

type Locator struct {
	App      string
	BundleID string
	Markers  []string
	Procs    ProcessFinder
	Lister   WindowLister
	Screen   func() (screenshot.Region, error)
}

func New(app, bundleID string, markers []string) *Locator {
	return &Locator{
		App:      app,
		BundleID: bundleID,
		Markers:  markers,
		Procs:    ProcessTable{},
		Lister:   newPlatformLister(),
		Screen:   screenshot.PrimaryRegion,
	}
}

// Locate never fails: any introspection error degrades to the primary screen.
func (l *Locator) Locate(ctx context.Context) screenshot.Region {
	region, err := l.locate(ctx)
	if err == nil {
		return region
	}
	log.Printf("locator: %v, falling back to primary screen", err)
	screen, serr := l.Screen()
	if serr != nil || screen.Empty() {
		log.Printf("locator: primary screen unavailable: %v", serr)
		return screenshot.Region{Width: 1920, Height: 1080}
	}
	return screen
}

func (l *Locator) locate(ctx context.Context) (screenshot.Region, error) {
	pid, err := l.Procs.Find(ctx, l.App, l.BundleID)
	if err != nil {
		return screenshot.Region{}, err
	}
	wins, err := l.Lister.Windows(ctx, pid)
	if err != nil {
		return screenshot.Region{}, fmt.Errorf("list windows of pid %d: %w", pid, err)
	}
	w, ok := Pick(wins, l.Markers)
	if !ok {
		return screenshot.Region{}, fmt.Errorf("pid %d has no usable window", pid)
	}
	log.Printf("locator: using window %q at %s", w.Title, w.Region)
	return w.Region, nil
}

// Pick prefers the first window whose title carries a popup marker, then the frontmost.
func Pick(wins []Window, markers []string) (Window, bool) {
	var usable []Window
	for _, w := range wins {
		if !w.Region.Empty() {
			usable = append(usable, w)
		}
	}
	for _, w := range usable {
		for _, m := range markers {
			if m != "" && strings.Contains(w.Title, m) {
				return w, true
			}
		}
	}
	if len(usable) == 0 {
		return Window{}, false
	}
	return usable[0], true
}

// ParseWindowList reads tab-separated "title x y w h" lines.
func ParseWindowList(out string) []Window {
	var wins []Window
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 5 {
			continue
		}
		n := len(fields)
		nums := make([]int, 4)
		ok := true
		for i := 0; i < 4; i++ {
			v, err := strconv.Atoi(strings.TrimSpace(fields[n-4+i]))
			if err != nil {
				ok = false
				break
			}
			nums[i] = v
		}
		if !ok {
			continue
		}
		wins = append(wins, Window{
			Title:  strings.Join(fields[:n-4], "\t"),
			Region: screenshot.Region{X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3]},
		})
	}
	return wins
}

// ProcessTable scans the OS process table with gopsutil.
type ProcessTable struct{}

func (ProcessTable) Find(ctx context.Context, app, bundleID string) (int32, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("list processes: %w", err)
	}
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		exe, _ := p.ExeWithContext(ctx)
		if MatchProcess(name, exe, app, bundleID) {
			return p.Pid, nil
		}
	}
	return 0, fmt.Errorf("process %q not running", app)
}

// MatchProcess matches by display name or by the app bundle in the executable path.
func MatchProcess(name, exe, app, bundleID string) bool {
	if app == "" && bundleID == "" {
		return false
	}
	trim := strings.TrimSuffix(name, filepath.Ext(name))
	if app != "" && (strings.EqualFold(name, app) || strings.EqualFold(trim, app)) {
		return true
	}
	if exe == "" {
		return false
	}
	if app != "" && strings.Contains(exe, "/"+app+".app/") {
		return true
	}
	return bundleID != "" && strings.Contains(exe, bundleID)
}
