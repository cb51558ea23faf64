package ocr

import (
	"context"
	"fmt"
	"image"
	"log"

	"kakao-autopilot/src/artifacts"
	"kakao-autopilot/src/screenshot"
	"kakao-autopilot/src/vision"
)

// Verifier captures part of a region, recognizes it and classifies the text.
type Verifier struct {
	Capturer   screenshot.Capturer
	Recognizer Recognizer
	Sink       artifacts.Sink
}

// Crop selects the sub-area of the region to read.
type Crop struct {
	Window vision.Window
	Stage  string
}

// ModalCrop reads the dialog body inside an inset rectangle.
func ModalCrop(in vision.Inset) Crop {
	return Crop{Window: in.Window(), Stage: "ocr_modal"}
}

// BottomCrop reads the lower fraction, where transient send status appears.
func BottomCrop(fraction float64) Crop {
	return Crop{Window: vision.Window{Left: 0, Top: 1 - fraction, Right: 1, Bottom: 1}, Stage: "ocr_status"}
}

// Verify returns an Outcome for any recognized text, including no match.
// Errors are reserved for capture or recognition failures.
func (v *Verifier) Verify(ctx context.Context, region screenshot.Region, crop Crop, classes []PhraseClass) (Outcome, error) {
	sub := crop.Window.Apply(region)
	if sub.Empty() {
		return Outcome{}, fmt.Errorf("empty OCR region from %s", region)
	}
	img, err := v.Capturer.Capture(ctx, sub, "")
	if err != nil {
		return Outcome{}, fmt.Errorf("OCR capture: %w", err)
	}
	if v.Sink != nil {
		v.Sink.Save(ctx, crop.Stage, img)
	}
	text, err := v.read(ctx, img)
	if err != nil {
		return Outcome{}, fmt.Errorf("OCR recognize: %w", err)
	}
	out := Classify(text, classes)
	log.Printf("ocr: %s class=%q phrase=%q chars=%d", crop.Stage, out.Class, out.Phrase, len([]rune(text)))
	return out, nil
}

func (v *Verifier) read(ctx context.Context, img image.Image) (string, error) {
	if uniform(img) {
		return "", nil
	}
	return v.Recognizer.Recognize(ctx, img)
}
