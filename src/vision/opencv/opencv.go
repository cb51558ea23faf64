// Package opencv implements the vision strategies on top of gocv.
package opencv

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log"

	"gocv.io/x/gocv"

	"kakao-autopilot/src/artifacts"
	"kakao-autopilot/src/screenshot"
	"kakao-autopilot/src/vision"
)

var (
	boxColor    = color.RGBA{R: 255, G: 160, B: 0, A: 255}
	chosenColor = color.RGBA{R: 0, G: 220, B: 0, A: 255}
)

type blob struct {
	box  image.Rectangle
	area float64
}

// grab captures region and converts it to a BGR Mat. The caller owns the Mat.
func grab(ctx context.Context, capturer screenshot.Capturer, region screenshot.Region) (gocv.Mat, image.Image, error) {
	img, err := capturer.Capture(ctx, region, "")
	if err != nil {
		return gocv.NewMat(), nil, fmt.Errorf("capture %s: %w", region, err)
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), nil, fmt.Errorf("convert capture: %w", err)
	}
	return mat, img, nil
}

func contours(mask gocv.Mat) []blob {
	pv := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer pv.Close()
	out := make([]blob, 0, pv.Size())
	for i := 0; i < pv.Size(); i++ {
		c := pv.At(i)
		out = append(out, blob{box: gocv.BoundingRect(c), area: gocv.ContourArea(c)})
	}
	return out
}

func center(r image.Rectangle) image.Point {
	return image.Pt(r.Min.X+r.Dx()/2, r.Min.Y+r.Dy()/2)
}

// snapshot draws every candidate box plus the chosen point and hands the result to sink.
func snapshot(ctx context.Context, sink artifacts.Sink, stage string, src gocv.Mat, boxes []image.Rectangle, chosen *image.Point, label string) {
	if sink == nil || src.Empty() {
		return
	}
	canvas := src.Clone()
	defer canvas.Close()
	for _, b := range boxes {
		gocv.Rectangle(&canvas, b, boxColor, 1)
	}
	if chosen != nil {
		gocv.Circle(&canvas, *chosen, 6, chosenColor, 2)
	}
	if label != "" {
		gocv.PutText(&canvas, label, image.Pt(4, 14), gocv.FontHersheyPlain, 1.0, chosenColor, 1)
	}
	img, err := canvas.ToImage()
	if err != nil {
		log.Printf("vision: snapshot %s: %v", stage, err)
		return
	}
	sink.Save(ctx, stage, img)
}

func candidateFrom(region screenshot.Region, imgW, imgH int, b blob, label string) vision.Candidate {
	c := center(b.box)
	min := vision.ToScreen(region, imgW, imgH, b.box.Min.X, b.box.Min.Y)
	max := vision.ToScreen(region, imgW, imgH, b.box.Max.X, b.box.Max.Y)
	return vision.Candidate{
		Point: vision.ToScreen(region, imgW, imgH, c.X, c.Y),
		Score: b.area,
		Box:   screenshot.Region{X: min.X, Y: min.Y, Width: max.X - min.X, Height: max.Y - min.Y},
		Label: label,
	}
}
