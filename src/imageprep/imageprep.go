// Package imageprep validates image paths and rasterizes vector images before transfer.
package imageprep

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"github.com/vcaesar/imgo"
)

var ErrInvalidPath = errors.New("invalid image path")

// maxRasterSide bounds the SVG render size.
const maxRasterSide = 4096

// ParsePaths splits comma-joined content and keeps absolute paths to existing
// regular files. Rejected entries are reported through the returned error,
// which wraps ErrInvalidPath.
func ParsePaths(content string) ([]string, error) {
	var valid, rejected []string
	for _, p := range strings.Split(content, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if err := check(p); err != nil {
			rejected = append(rejected, err.Error())
			continue
		}
		valid = append(valid, p)
	}
	if len(rejected) > 0 {
		return valid, fmt.Errorf("%w: %s", ErrInvalidPath, strings.Join(rejected, "; "))
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: empty content", ErrInvalidPath)
	}
	return valid, nil
}

func check(p string) error {
	if !filepath.IsAbs(p) {
		return fmt.Errorf("%s is not absolute", p)
	}
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("%s does not exist", p)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a file", p)
	}
	return nil
}

// ResolveUnderRoot maps a frontend-relative path into root. A leading slash is
// treated as relative to root. Paths that escape root are rejected.
func ResolveUnderRoot(root, rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if root == "" {
		return rel, nil
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("image root %s: %w", root, err)
	}
	joined := filepath.Join(root, strings.TrimLeft(rel, "/\\"))
	inside, err := filepath.Rel(root, joined)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s escapes %s", ErrInvalidPath, rel, root)
	}
	return joined, nil
}

// Rasterize returns a PNG path for SVG input and the original path for
// anything else. cleanup removes the temporary file and is never nil.
func Rasterize(path string) (string, func(), error) {
	noop := func() {}
	if !strings.EqualFold(filepath.Ext(path), ".svg") {
		return path, noop, nil
	}
	img, err := renderSVG(path)
	if err != nil {
		return path, noop, err
	}
	f, err := os.CreateTemp("", "kakao-svg-*.png")
	if err != nil {
		return path, noop, fmt.Errorf("temp file for %s: %w", filepath.Base(path), err)
	}
	out := f.Name()
	f.Close()
	cleanup := func() { os.Remove(out) }
	if err := imgo.Save(out, img); err != nil {
		cleanup()
		return path, noop, fmt.Errorf("write %s: %w", out, err)
	}
	return out, cleanup, nil
}

func renderSVG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	icon, err := oksvg.ReadIconStream(f, oksvg.WarnErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	w, h := int(icon.ViewBox.W), int(icon.ViewBox.H)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%s has no usable viewBox", filepath.Base(path))
	}
	if w > maxRasterSide || h > maxRasterSide {
		return nil, fmt.Errorf("%s viewBox %dx%d too large", filepath.Base(path), w, h)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)
	return rgba, nil
}
