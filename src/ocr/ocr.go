// Package ocr turns a screen region into text and classifies that text
// against phrase vocabularies.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"

	"github.com/nfnt/resize"
	"github.com/otiai10/gosseract"

	"kakao-autopilot/src/llm"
	"kakao-autopilot/src/screenshot"
)

// Recognizer extracts raw text from an image.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Preprocess converts to grayscale and upscales by factor, which helps
// tesseract with the small UI font.
func Preprocess(img image.Image, factor float64) image.Image {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	if factor <= 1 {
		return gray
	}
	w := uint(float64(b.Dx()) * factor)
	h := uint(float64(b.Dy()) * factor)
	return resize.Resize(w, h, gray, resize.Lanczos3)
}

// Tesseract recognizes mixed Korean/English UI text with gosseract.
type Tesseract struct {
	Languages []string
	Upscale   float64
}

func NewTesseract(languages []string, upscale float64) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"kor", "eng"}
	}
	return &Tesseract{Languages: languages, Upscale: upscale}
}

func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	data, err := screenshot.EncodePNG(Preprocess(img, t.Upscale))
	if err != nil {
		return "", err
	}
	return withContext(ctx, func() (string, error) {
		client := gosseract.NewClient()
		defer client.Close()
		if err := client.SetLanguage(t.Languages...); err != nil {
			return "", fmt.Errorf("tesseract language %v: %w", t.Languages, err)
		}
		if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
			return "", fmt.Errorf("tesseract page mode: %w", err)
		}
		if err := client.SetImageFromBytes(data); err != nil {
			return "", fmt.Errorf("tesseract image: %w", err)
		}
		text, err := client.Text()
		if err != nil {
			return "", fmt.Errorf("tesseract: %w", err)
		}
		return text, nil
	})
}

// Vision sends the crop to an LLM vision model.
type Vision struct {
	Client *llm.Client
}

func (v *Vision) Recognize(ctx context.Context, img image.Image) (string, error) {
	data, err := screenshot.EncodePNG(img)
	if err != nil {
		return "", err
	}
	text, err := v.Client.QueryVision(ctx, data)
	if errors.Is(err, llm.ErrNoText) {
		return "", nil
	}
	return text, err
}

// withContext runs fn in a goroutine and stops waiting when ctx is done.
// The recognizer itself is not interruptible, so it finishes in the background.
func withContext(ctx context.Context, fn func() (string, error)) (string, error) {
	if _, ok := ctx.Deadline(); !ok && ctx.Done() == nil {
		return fn()
	}
	resCh := make(chan struct {
		text string
		err  error
	}, 1)
	go func() {
		text, err := fn()
		resCh <- struct {
			text string
			err  error
		}{text, err}
	}()
	select {
	case r := <-resCh:
		return r.text, r.err
	case <-ctx.Done():
		log.Printf("ocr: abandoning recognition: %v", ctx.Err())
		return "", ctx.Err()
	}
}

// uniform reports whether img is a single flat color, which never holds text.
func uniform(img image.Image) bool {
	b := img.Bounds()
	if b.Empty() {
		return true
	}
	first := color.GrayModel.Convert(img.At(b.Min.X, b.Min.Y))
	step := 1 + b.Dx()*b.Dy()/4096
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i++
			if i%step != 0 {
				continue
			}
			if color.GrayModel.Convert(img.At(x, y)) != first {
				return false
			}
		}
	}
	return true
}
