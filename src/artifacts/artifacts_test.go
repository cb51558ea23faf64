package artifacts

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time { return time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC) }

func TestSaveIsWriteOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "art")
	s := &Store{Dir: dir, Now: fixedNow}
	require.NoError(t, s.Reset())

	ctx := WithSubject(context.Background(), "홍길동")
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	s.Save(ctx, "icon", img)
	s.Save(ctx, "icon", img)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	names := []string{entries[0].Name(), entries[1].Name()}
	for _, n := range names {
		assert.True(t, strings.HasPrefix(n, "홍길동_icon_20240501_103000.000"), n)
	}
	assert.NotEqual(t, names[0], names[1])
}

func TestResetClearsPreviousRun(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "old.png")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))

	s := NewStore(dir)
	require.NoError(t, s.Reset())
	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestSubjectDefaultsAndSanitizes(t *testing.T) {
	assert.Equal(t, "batch", SubjectFrom(context.Background()))
	assert.Equal(t, "a-b-c", safeName("a/b c"))
	assert.Equal(t, "unnamed", safeName("  "))
}

func TestNilImageIgnored(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	s.Save(context.Background(), "x", nil)
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}
