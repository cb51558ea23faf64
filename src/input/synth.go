// Package input composes clipboard writes, keystrokes and clicks into the
// actions the workflows perform. Every action is followed by a pause tier.
package input

import (
	"context"
	"fmt"
	"log"
	"runtime"

	"kakao-autopilot/src/config"
	"kakao-autopilot/src/screenshot"
	"kakao-autopilot/src/timing"
)

// Clipboard is what the synthesizer needs from the system clipboard.
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
	WriteFile(ctx context.Context, path string) error
	CopyFromFolder(ctx context.Context, paths []string) error
}

type Synth struct {
	Driver Driver
	Clip   Clipboard
	Pacer  *timing.Pacer
	Keys   config.KeyProfile
	App    string
}

func NewSynth(driver Driver, clip Clipboard, pacer *timing.Pacer, keys config.KeyProfile, app string) *Synth {
	if keys.Modifier == "" {
		keys.Modifier = DefaultModifier(runtime.GOOS)
	}
	return &Synth{Driver: driver, Clip: clip, Pacer: pacer, Keys: keys, App: app}
}

func (s *Synth) pause(t timing.Tier) {
	if s.Pacer != nil {
		s.Pacer.Pause(t)
	}
}

func (s *Synth) combo(key string) error {
	return s.Driver.KeyTap(key, s.Keys.Modifier)
}

func (s *Synth) ActivateApp(ctx context.Context) error {
	if err := s.Driver.Activate(ctx, s.App); err != nil {
		return err
	}
	s.pause(timing.Medium)
	return nil
}

func (s *Synth) Paste(ctx context.Context) error {
	if err := s.combo("v"); err != nil {
		return fmt.Errorf("paste: %w", err)
	}
	s.pause(timing.Short)
	return nil
}

func (s *Synth) PasteText(ctx context.Context, text string) error {
	if err := s.Clip.WriteText(ctx, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	s.pause(timing.Short)
	return s.Paste(ctx)
}

// PasteFile puts one file reference on the clipboard and pastes it.
func (s *Synth) PasteFile(ctx context.Context, path string) error {
	if err := s.Clip.WriteFile(ctx, path); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	s.pause(timing.Short)
	return s.Paste(ctx)
}

// CopyFiles copies several files as a single clipboard selection.
// Focus moves to the file manager, so the caller reactivates the app before pasting.
func (s *Synth) CopyFiles(ctx context.Context, paths []string) error {
	if err := s.Clip.CopyFromFolder(ctx, paths); err != nil {
		return err
	}
	s.pause(timing.Medium)
	return nil
}

func (s *Synth) Submit(ctx context.Context) error {
	if err := s.Driver.KeyTap(s.Keys.Confirm); err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	s.pause(timing.Short)
	return nil
}

// SubmitAndWaitPreview confirms and waits for previews or uploads to render.
func (s *Synth) SubmitAndWaitPreview(ctx context.Context) error {
	if err := s.Driver.KeyTap(s.Keys.Confirm); err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	s.pause(timing.Long)
	return nil
}

func (s *Synth) CloseActiveWindow(ctx context.Context) error {
	if err := s.combo(s.Keys.Close); err != nil {
		return fmt.Errorf("close window: %w", err)
	}
	s.pause(timing.Short)
	return nil
}

// Shortcut taps modifier+key and waits for the view to switch.
func (s *Synth) Shortcut(ctx context.Context, key string) error {
	if err := s.combo(key); err != nil {
		return fmt.Errorf("shortcut %s: %w", key, err)
	}
	s.pause(timing.Medium)
	return nil
}

func (s *Synth) Tap(ctx context.Context, key string, n int) error {
	for i := 0; i < n; i++ {
		if err := s.Driver.KeyTap(key); err != nil {
			return fmt.Errorf("tap %s (%d/%d): %w", key, i+1, n, err)
		}
		s.pause(timing.Short)
	}
	return nil
}

func (s *Synth) NextField(ctx context.Context) error {
	return s.Tap(ctx, s.Keys.NextField, 1)
}

// ClearCompose selects everything in the focused input and deletes it.
func (s *Synth) ClearCompose(ctx context.Context) error {
	if err := s.combo("a"); err != nil {
		return fmt.Errorf("select all: %w", err)
	}
	if err := s.Driver.KeyTap("backspace"); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	s.pause(timing.Short)
	return nil
}

func (s *Synth) ClickAt(ctx context.Context, p screenshot.Point) error {
	s.Driver.Move(p.X, p.Y)
	s.pause(timing.Short)
	if err := s.Driver.Click(); err != nil {
		return fmt.Errorf("click (%d,%d): %w", p.X, p.Y, err)
	}
	log.Printf("input: clicked (%d,%d)", p.X, p.Y)
	s.pause(timing.Medium)
	return nil
}
