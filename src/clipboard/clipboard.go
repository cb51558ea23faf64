package clipboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/vcaesar/imgo"
	"golang.design/x/clipboard"

	"kakao-autopilot/src/osscript"
)

var (
	writeMu sync.Mutex

	initOnce sync.Once
	initErr  error
)

// ErrUnsupported is returned for clipboard payloads the current platform cannot carry.
var ErrUnsupported = errors.New("clipboard payload not supported on this platform")

func Init() error {
	initOnce.Do(func() {
		initErr = clipboard.Init()
	})
	return initErr
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func Write(text string) error {
	if err := Init(); err != nil {
		return fmt.Errorf("clipboard init: %w", err)
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// Board puts text and file references on the system clipboard.
type Board struct {
	Script osscript.Runner
	GOOS   string
}

func NewBoard(script osscript.Runner) *Board {
	return &Board{Script: script, GOOS: runtime.GOOS}
}

func (b *Board) WriteText(ctx context.Context, text string) error {
	return Write(text)
}

// WriteFile places one file on the clipboard. macOS gets a Finder file
// reference; other platforms get the decoded image as PNG.
func (b *Board) WriteFile(ctx context.Context, path string) error {
	if b.GOOS == "darwin" {
		script := fmt.Sprintf("set the clipboard to (POSIX file %s)", osscript.Quote(path))
		if _, err := b.Script.Run(ctx, script); err != nil {
			return fmt.Errorf("clipboard file reference %s: %w", filepath.Base(path), err)
		}
		return nil
	}
	data, err := pngBytes(path)
	if err != nil {
		return err
	}
	if err := Init(); err != nil {
		return fmt.Errorf("clipboard init: %w", err)
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtImage, data)
	return nil
}

// CopyFromFolder selects exactly the named files in their shared folder and
// copies them as files. All paths must live in the same directory.
func (b *Board) CopyFromFolder(ctx context.Context, paths []string) error {
	if b.GOOS != "darwin" {
		return ErrUnsupported
	}
	script, err := FolderCopyScript(paths)
	if err != nil {
		return err
	}
	if _, err := b.Script.Run(ctx, script); err != nil {
		return fmt.Errorf("finder copy: %w", err)
	}
	return nil
}

// FolderCopyScript builds the Finder script that opens the folder, selects
// the files, copies them and closes the folder window.
func FolderCopyScript(paths []string) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("no files to copy")
	}
	dir := filepath.Dir(paths[0])
	items := make([]string, 0, len(paths))
	for _, p := range paths {
		if filepath.Dir(p) != dir {
			return "", fmt.Errorf("files span more than one folder: %s and %s", dir, filepath.Dir(p))
		}
		items = append(items, fmt.Sprintf("(POSIX file %s as alias)", osscript.Quote(p)))
	}
	var sb strings.Builder
	sb.WriteString("tell application \"Finder\"\n")
	sb.WriteString("\tactivate\n")
	fmt.Fprintf(&sb, "\topen (POSIX file %s as alias)\n", osscript.Quote(dir))
	sb.WriteString("\tdelay 0.7\n")
	fmt.Fprintf(&sb, "\tselect {%s}\n", strings.Join(items, ", "))
	sb.WriteString("end tell\n")
	sb.WriteString("delay 0.3\n")
	sb.WriteString("tell application \"System Events\" to keystroke \"c\" using command down\n")
	sb.WriteString("delay 0.3\n")
	sb.WriteString("tell application \"Finder\" to close front window")
	return sb.String(), nil
}

func pngBytes(path string) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		return data, nil
	}
	img, err := imgo.Read(path)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return buf.Bytes(), nil
}
