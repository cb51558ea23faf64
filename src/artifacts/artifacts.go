// Package artifacts writes diagnostic screenshots for a batch run.
package artifacts

import (
	"context"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/vcaesar/imgo"
)

const DefaultDir = "debug_artifacts"

// Sink accepts labeled snapshots. Implementations must not fail the caller.
type Sink interface {
	Save(ctx context.Context, stage string, img image.Image)
}

type subjectKey struct{}

// WithSubject tags ctx so snapshots taken under it are named after the subject.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

func SubjectFrom(ctx context.Context) string {
	if s, ok := ctx.Value(subjectKey{}).(string); ok && s != "" {
		return s
	}
	return "batch"
}

// Store owns one artifact directory. Files are write-once.
type Store struct {
	Dir string
	Now func() time.Time

	mu sync.Mutex
}

func NewStore(dir string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{Dir: dir, Now: time.Now}
}

// Reset deletes and recreates the directory. Called once per batch.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("failed to clear artifact dir %s: %w", s.Dir, err)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact dir %s: %w", s.Dir, err)
	}
	return nil
}

// Save writes <subject>_<stage>_<timestamp>.png. Errors are logged only.
func (s *Store) Save(ctx context.Context, stage string, img image.Image) {
	if s == nil || img == nil {
		return
	}
	path, err := s.reserve(SubjectFrom(ctx), stage)
	if err != nil {
		log.Printf("artifacts: %v", err)
		return
	}
	if err := imgo.Save(path, img); err != nil {
		log.Printf("artifacts: failed to save %s: %v", path, err)
		return
	}
	log.Printf("artifacts: saved %s", path)
}

// reserve creates an empty file under a name that has not been used yet.
func (s *Store) reserve(subject, stage string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact dir %s: %w", s.Dir, err)
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	base := fmt.Sprintf("%s_%s_%s", safeName(subject), safeName(stage), now().Format("20060102_150405.000"))
	for n := 0; n < 1000; n++ {
		name := base + ".png"
		if n > 0 {
			name = fmt.Sprintf("%s_%d.png", base, n)
		}
		path := filepath.Join(s.Dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return path, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("failed to create %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("no free artifact name for %s", base)
}

func safeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-':
			return r
		default:
			return '-'
		}
	}, strings.TrimSpace(s))
	if s == "" {
		return "unnamed"
	}
	return s
}

// Discard drops every snapshot.
type Discard struct{}

func (Discard) Save(context.Context, string, image.Image) {}
