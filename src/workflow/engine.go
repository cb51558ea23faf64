// Package workflow runs the friend-add and message-send state machines over
// a batch of subjects, one subject at a time.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/semaphore"

	"kakao-autopilot/src/artifacts"
	"kakao-autopilot/src/config"
	"kakao-autopilot/src/imageprep"
	"kakao-autopilot/src/logutil"
	"kakao-autopilot/src/ocr"
	"kakao-autopilot/src/screenshot"
	"kakao-autopilot/src/timing"
	"kakao-autopilot/src/vision"
)

// Actions is the input synthesizer surface the workflows drive.
type Actions interface {
	ActivateApp(ctx context.Context) error
	PasteText(ctx context.Context, text string) error
	PasteFile(ctx context.Context, path string) error
	CopyFiles(ctx context.Context, paths []string) error
	Paste(ctx context.Context) error
	Submit(ctx context.Context) error
	SubmitAndWaitPreview(ctx context.Context) error
	CloseActiveWindow(ctx context.Context) error
	Shortcut(ctx context.Context, key string) error
	Tap(ctx context.Context, key string, n int) error
	NextField(ctx context.Context) error
	ClearCompose(ctx context.Context) error
	ClickAt(ctx context.Context, p screenshot.Point) error
}

type RegionLocator interface {
	Locate(ctx context.Context) screenshot.Region
}

// ElementLocator is satisfied by vision.Chain.
type ElementLocator interface {
	Locate(ctx context.Context, region screenshot.Region) (vision.Candidate, string, error)
}

type Verifier interface {
	Verify(ctx context.Context, region screenshot.Region, crop ocr.Crop, classes []ocr.PhraseClass) (ocr.Outcome, error)
}

type Resetter interface {
	Reset() error
}

type Options struct {
	Actions   Actions
	Region    RegionLocator
	Verifier  Verifier
	AddDialog ElementLocator
	AddButton ElementLocator
	Artifacts Resetter
	Pacer     *timing.Pacer
	Profile   config.Profile
	// ParsePaths and Rasterize default to the imageprep implementations.
	ParsePaths func(content string) ([]string, error)
	Rasterize  func(path string) (string, func(), error)
}

type Engine struct {
	opts  Options
	focus *semaphore.Weighted
}

func New(opts Options) (*Engine, error) {
	switch {
	case opts.Actions == nil:
		return nil, errors.New("Actions is required")
	case opts.Region == nil:
		return nil, errors.New("Region is required")
	case opts.Verifier == nil:
		return nil, errors.New("Verifier is required")
	case opts.AddDialog == nil:
		return nil, errors.New("AddDialog is required")
	case opts.AddButton == nil:
		return nil, errors.New("AddButton is required")
	}
	if opts.Pacer == nil {
		opts.Pacer = timing.NewPacer(timing.RealClock{}, opts.Profile.Timings)
	}
	if opts.ParsePaths == nil {
		opts.ParsePaths = imageprep.ParsePaths
	}
	if opts.Rasterize == nil {
		opts.Rasterize = imageprep.Rasterize
	}
	return &Engine{opts: opts, focus: semaphore.NewWeighted(1)}, nil
}

// resetArtifacts clears the artifact directory once at the start of a batch.
func (e *Engine) resetArtifacts() {
	if e.opts.Artifacts == nil {
		return
	}
	if err := e.opts.Artifacts.Reset(); err != nil {
		log.Printf("workflow: artifact reset failed: %v", err)
	}
}

// subject accumulates one subject's result. needsClose is set once the
// client window has been brought forward, so the boundary closes it exactly once.
type subject struct {
	prefix     string
	res        Result
	needsClose bool
	done       bool
}

func (s *subject) logf(format string, args ...interface{}) {
	log.Printf("%s[%s]: %s", s.prefix, logutil.Sanitize(s.res.Key), fmt.Sprintf(format, args...))
}

// finish records a terminal status. The first call wins.
func (s *subject) finish(status Status, reason string) {
	if s.done {
		return
	}
	s.done = true
	s.res.Status = status
	s.res.Reason = reason
	s.logf("%s %s", status, logutil.Sanitize(reason))
}

func (s *subject) fail(format string, args ...interface{}) {
	s.finish(StatusFail, fmt.Sprintf(format, args...))
}

// run is the per-subject boundary: it holds the focus token, converts panics
// into a fail result and closes the window at most once.
func (e *Engine) run(ctx context.Context, prefix string, res Result, body func(context.Context, *subject)) Result {
	s := &subject{prefix: prefix, res: res}
	ctx = artifacts.WithSubject(ctx, res.Key)

	if err := e.focus.Acquire(ctx, 1); err != nil {
		s.fail("input focus unavailable: %v", err)
		return s.res
	}
	defer e.focus.Release(1)

	func() {
		defer func() {
			if r := recover(); r != nil {
				s.needsClose = true
				s.fail("unexpected error: %v", r)
			}
		}()
		body(ctx, s)
	}()

	if !s.done {
		s.fail("workflow ended without a result")
	}
	if s.needsClose {
		if err := e.opts.Actions.CloseActiveWindow(ctx); err != nil {
			s.logf("close failed: %v", err)
		} else {
			s.logf("closed")
		}
	}
	return s.res
}

func (e *Engine) pause(t timing.Tier) {
	e.opts.Pacer.Pause(t)
}
