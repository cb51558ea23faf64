package osscript

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuote(t *testing.T) {
	assert.Equal(t, `"plain"`, Quote("plain"))
	assert.Equal(t, `"say \"hi\" \\ bye"`, Quote(`say "hi" \ bye`))
}

func TestRunOutsideMacOS(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("osascript present")
	}
	_, err := Exec{}.Run(context.Background(), `return 1`)
	assert.ErrorIs(t, err, ErrUnavailable)
}
