package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kakao-autopilot/src/logutil"
	"kakao-autopilot/src/ocr"
	"kakao-autopilot/src/timing"
)

const messagePrefix = "sendmsg"

// preparedItem is a message item that passed validation.
type preparedItem struct {
	index int
	kind  string
	text  string
	paths []string
}

// SendMessages delivers each group in order and returns one result per group.
func (e *Engine) SendMessages(ctx context.Context, groups []MessageGroup) []Result {
	e.resetArtifacts()
	results := make([]Result, len(groups))
	for i, g := range groups {
		group := g
		res := Result{Key: groupKey(g, i), Username: g.Username}
		results[i] = e.run(ctx, messagePrefix, res, func(ctx context.Context, s *subject) {
			e.sendGroup(ctx, s, group)
		})
	}
	return results
}

func groupKey(g MessageGroup, i int) string {
	if name := strings.TrimSpace(g.Username); name != "" {
		return name
	}
	return fmt.Sprintf("group-%d", i+1)
}

// prepare validates items. Rejected items are reported as skipped and never sent.
func (e *Engine) prepare(s *subject, items []MessageItem) []preparedItem {
	var out []preparedItem
	for i, m := range items {
		switch m.Kind {
		case KindText:
			if strings.TrimSpace(m.Content) == "" {
				e.skipItem(s, i, m.Kind, "empty text")
				continue
			}
			out = append(out, preparedItem{index: i, kind: m.Kind, text: m.Content})
		case KindImage:
			paths, err := e.opts.ParsePaths(m.Content)
			if err != nil {
				e.skipItem(s, i, m.Kind, err.Error())
				continue
			}
			if len(paths) == 0 {
				e.skipItem(s, i, m.Kind, "no image paths")
				continue
			}
			out = append(out, preparedItem{index: i, kind: m.Kind, paths: paths})
		default:
			e.skipItem(s, i, m.Kind, fmt.Sprintf("unsupported message type %q", m.Kind))
		}
	}
	return out
}

func (e *Engine) skipItem(s *subject, index int, kind, reason string) {
	s.logf("item %d skipped: %s", index, logutil.Sanitize(reason))
	s.res.Items = append(s.res.Items, ItemResult{Index: index, Kind: kind, Status: StatusSkip, Reason: reason})
}

func (e *Engine) sendGroup(ctx context.Context, s *subject, g MessageGroup) {
	a := e.opts.Actions

	s.logf("activate")
	if err := a.ActivateApp(ctx); err != nil {
		s.fail("activation failed: %v", err)
		return
	}
	s.needsClose = true

	if len(g.Messages) == 0 {
		s.finish(StatusSkip, "no messages")
		return
	}
	items := e.prepare(s, g.Messages)
	if len(items) == 0 {
		s.finish(StatusSkip, "no valid messages")
		return
	}

	if err := e.openConversation(ctx, s, g.Username); err != nil {
		s.fail("open conversation: %v", err)
		return
	}

	for n, item := range items {
		s.logf("send item %d (%s)", item.index, item.kind)
		err := e.sendItem(ctx, s, item)
		if n == 0 {
			if err != nil {
				e.recordItem(s, item, err)
				e.abortRemaining(s, items[1:])
				s.fail("first message send failed: %v", err)
				return
			}
			if reason, ok := e.checkDelivery(ctx, s); !ok {
				e.recordItem(s, item, errors.New(reason))
				e.abortRemaining(s, items[1:])
				s.fail("first message status check failed: %s", reason)
				return
			}
			e.recordItem(s, item, nil)
			continue
		}
		if err != nil {
			s.logf("item %d failed (best effort): %v", item.index, err)
		}
		e.recordItem(s, item, err)
	}
	s.finish(StatusSuccess, "")
}

// openConversation searches the chat list for username and opens the first result.
// The opened room is not checked against username.
func (e *Engine) openConversation(ctx context.Context, s *subject, username string) error {
	a := e.opts.Actions
	keys := e.opts.Profile.Keys

	s.logf("search recipient")
	if err := a.Shortcut(ctx, keys.SearchTab); err != nil {
		return fmt.Errorf("search tab: %w", err)
	}
	if err := a.Shortcut(ctx, keys.Search); err != nil {
		return fmt.Errorf("search box: %w", err)
	}
	if err := a.PasteText(ctx, username); err != nil {
		return fmt.Errorf("search text: %w", err)
	}
	e.pause(timing.Long)
	if err := a.Tap(ctx, keys.Down, e.opts.Profile.Search.DownPresses); err != nil {
		return fmt.Errorf("select result: %w", err)
	}
	if err := a.Submit(ctx); err != nil {
		return fmt.Errorf("open result: %w", err)
	}
	e.pause(timing.Medium)
	s.logf("unverified recipient: opened first search result for %s", logutil.Sanitize(username))
	return nil
}

// checkDelivery reads the bottom of the conversation for failure phrases.
// No failure phrase means delivered.
func (e *Engine) checkDelivery(ctx context.Context, s *subject) (string, bool) {
	e.pause(timing.ExtraLong)
	region := e.opts.Region.Locate(ctx)
	classes := []ocr.PhraseClass{{Name: "failure", Phrases: e.opts.Profile.Phrases.MessageFailure}}
	out, err := e.opts.Verifier.Verify(ctx, region, ocr.BottomCrop(e.opts.Profile.OCR.StatusBottom), classes)
	if err != nil {
		return fmt.Sprintf("status OCR failed: %v", err), false
	}
	if !out.Indeterminate() {
		return fmt.Sprintf("failure phrase %q on screen", out.Phrase), false
	}
	s.logf("delivery check passed")
	return "", true
}

func (e *Engine) recordItem(s *subject, item preparedItem, err error) {
	r := ItemResult{Index: item.index, Kind: item.kind, Status: StatusSuccess}
	if err != nil {
		r.Status = StatusFail
		r.Reason = err.Error()
	}
	s.res.Items = append(s.res.Items, r)
}

func (e *Engine) abortRemaining(s *subject, rest []preparedItem) {
	for _, item := range rest {
		s.res.Items = append(s.res.Items, ItemResult{Index: item.index, Kind: item.kind, Status: StatusSkip, Reason: "not attempted"})
	}
}

func (e *Engine) sendItem(ctx context.Context, s *subject, item preparedItem) error {
	if item.kind == KindText {
		return e.sendText(ctx, item.text)
	}
	if len(item.paths) == 1 {
		return e.sendImage(ctx, s, item.paths[0])
	}
	return e.sendImages(ctx, s, item.paths)
}

func (e *Engine) sendText(ctx context.Context, text string) error {
	a := e.opts.Actions
	if err := a.ClearCompose(ctx); err != nil {
		return err
	}
	if err := a.PasteText(ctx, text); err != nil {
		return err
	}
	return a.Submit(ctx)
}

// raster converts vector images, falling back to the original file on failure.
func (e *Engine) raster(s *subject, path string) (string, func()) {
	out, cleanup, err := e.opts.Rasterize(path)
	if err != nil {
		s.logf("rasterize %s failed, sending original: %v", logutil.Sanitize(path), err)
		return path, func() {}
	}
	return out, cleanup
}

func (e *Engine) sendImage(ctx context.Context, s *subject, path string) error {
	file, cleanup := e.raster(s, path)
	defer cleanup()
	a := e.opts.Actions
	if err := a.PasteFile(ctx, file); err != nil {
		return err
	}
	return a.SubmitAndWaitPreview(ctx)
}

// sendImages transfers several files in one paste. Any failure along the way
// falls back to sending each file on its own.
func (e *Engine) sendImages(ctx context.Context, s *subject, paths []string) error {
	files := make([]string, 0, len(paths))
	for _, p := range paths {
		f, cleanup := e.raster(s, p)
		defer cleanup()
		files = append(files, f)
	}
	err := e.pasteTogether(ctx, files)
	if err == nil {
		return nil
	}
	s.logf("multi-image paste failed, sending %d images one by one: %v", len(files), err)

	var errs []error
	for _, f := range files {
		if err := e.sendImage(ctx, s, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) pasteTogether(ctx context.Context, files []string) error {
	a := e.opts.Actions
	if err := a.CopyFiles(ctx, files); err != nil {
		return fmt.Errorf("copy files: %w", err)
	}
	if err := a.ActivateApp(ctx); err != nil {
		return fmt.Errorf("reactivate: %w", err)
	}
	if err := a.Paste(ctx); err != nil {
		return err
	}
	return a.SubmitAndWaitPreview(ctx)
}
