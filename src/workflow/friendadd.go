package workflow

import (
	"context"
	"fmt"
	"strings"

	"kakao-autopilot/src/logutil"
	"kakao-autopilot/src/ocr"
	"kakao-autopilot/src/screenshot"
	"kakao-autopilot/src/timing"
)

const friendPrefix = "friendadd"

func (e *Engine) friendClasses() []ocr.PhraseClass {
	p := e.opts.Profile.Phrases
	return []ocr.PhraseClass{
		{Name: string(StatusSuccess), Phrases: p.FriendSuccess},
		{Name: string(StatusAlreadyRegistered), Phrases: p.FriendAlready},
		{Name: string(StatusNotAllowed), Phrases: p.FriendNotAllowed},
	}
}

// AddFriends registers every contact in order and returns one result per contact.
func (e *Engine) AddFriends(ctx context.Context, contacts []Contact) []Result {
	e.resetArtifacts()
	results := make([]Result, len(contacts))
	pending := 0
	for i, c := range contacts {
		results[i] = Result{Key: friendKey(c, i), Username: c.DisplayName(), Phone: c.Phone}
		if strings.TrimSpace(c.Phone) == "" {
			results[i].Status = StatusSkip
			results[i].Reason = "phone missing"
			continue
		}
		pending++
	}
	if pending == 0 {
		return results
	}

	if err := e.initialActivation(ctx); err != nil {
		for i := range results {
			if results[i].Status != StatusSkip {
				results[i].Status = StatusFail
				results[i].Reason = "activation failed: " + err.Error()
			}
		}
		return results
	}

	for i, c := range contacts {
		if results[i].Status == StatusSkip {
			continue
		}
		contact := c
		results[i] = e.run(ctx, friendPrefix, results[i], func(ctx context.Context, s *subject) {
			e.addFriend(ctx, s, contact)
		})
	}
	return results
}

func friendKey(c Contact, i int) string {
	if p := strings.TrimSpace(c.Phone); p != "" {
		return p
	}
	if c.Username != "" {
		return c.Username
	}
	return fmt.Sprintf("contact-%d", i+1)
}

// initialActivation confirms the client can be brought forward before any contact is touched.
func (e *Engine) initialActivation(ctx context.Context) error {
	if err := e.focus.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.focus.Release(1)
	return e.opts.Actions.ActivateApp(ctx)
}

func (e *Engine) addFriend(ctx context.Context, s *subject, c Contact) {
	a := e.opts.Actions
	keys := e.opts.Profile.Keys
	name := c.DisplayName()

	s.logf("activate")
	if err := a.ActivateApp(ctx); err != nil {
		s.fail("activation failed: %v", err)
		return
	}
	s.needsClose = true

	s.logf("navigate friends tab")
	if err := a.Shortcut(ctx, keys.FriendsTab); err != nil {
		s.fail("friends tab: %v", err)
		return
	}

	region := e.opts.Region.Locate(ctx)
	s.logf("open add dialog in %s", region)
	cand, strategy, err := e.opts.AddDialog.Locate(ctx, region)
	if err != nil {
		s.fail("add-friend button not found: %v", err)
		return
	}
	s.logf("add dialog via %s at (%d,%d)", strategy, cand.Point.X, cand.Point.Y)
	if err := a.ClickAt(ctx, cand.Point); err != nil {
		s.fail("open add dialog: %v", err)
		return
	}
	e.pause(timing.Medium)

	s.logf("enter name %s", logutil.Sanitize(name))
	if err := a.PasteText(ctx, name); err != nil {
		s.fail("enter name: %v", err)
		return
	}
	if err := a.NextField(ctx); err != nil {
		s.fail("move to phone field: %v", err)
		return
	}
	s.logf("enter phone")
	if err := a.PasteText(ctx, c.Phone); err != nil {
		s.fail("enter phone: %v", err)
		return
	}

	dialog := e.opts.Region.Locate(ctx)
	e.submitFriend(ctx, s, dialog)
	e.pause(timing.Long)

	dialog = e.opts.Region.Locate(ctx)
	s.logf("verify in %s", dialog)
	out, err := e.opts.Verifier.Verify(ctx, dialog, ocr.ModalCrop(e.opts.Profile.OCR.Modal), e.friendClasses())
	if err != nil {
		s.fail("verification failed: %v", err)
		return
	}
	if out.Indeterminate() {
		text := strings.TrimSpace(out.Text)
		if text == "" {
			text = "no text recognized"
		}
		s.finish(StatusFail, text)
		return
	}
	s.finish(Status(out.Class), out.Phrase)
}

// submitFriend clicks the confirm button when vision finds it, otherwise
// presses the confirm key. Neither path is verified here.
func (e *Engine) submitFriend(ctx context.Context, s *subject, dialog screenshot.Region) {
	a := e.opts.Actions
	cand, strategy, err := e.opts.AddButton.Locate(ctx, dialog)
	if err == nil {
		s.logf("submit via %s at (%d,%d)", strategy, cand.Point.X, cand.Point.Y)
		if err = a.ClickAt(ctx, cand.Point); err == nil {
			return
		}
	}
	s.logf("submit falls back to confirm key: %v", err)
	if err := a.Submit(ctx); err != nil {
		s.logf("confirm key failed: %v", err)
	}
}
