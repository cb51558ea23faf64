package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("APP_NAME", "KakaoTalkTest")
	t.Setenv("POPUP_MARKERS", "친구 추가, Add Contact ,")
	t.Setenv("ENABLE_FILE_LOGGING", "true")
	t.Setenv("SINGLEINSTANCE_PORT", "50123")
	t.Setenv("OCR_LANGUAGES", "kor")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "KakaoTalkTest", cfg.AppName)
	assert.Equal(t, []string{"친구 추가", "Add Contact"}, cfg.PopupMarkers)
	assert.True(t, cfg.EnableFileLogging)
	assert.Equal(t, 50123, cfg.InstancePort)
	assert.Equal(t, []string{"kor"}, cfg.OCRLanguages)
	assert.Equal(t, OCREngineTesseract, cfg.OCREngine)
	assert.Equal(t, defaultListenAddr, cfg.ListenAddr)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("SINGLEINSTANCE_PORT", "80")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("SINGLEINSTANCE_PORT", "")
	t.Setenv("OCR_ENGINE", "paddle")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadLLMEngineNeedsKeyAndModel(t *testing.T) {
	t.Setenv("OCR_ENGINE", "llm")
	t.Setenv(APIKeyPathEnvVar, filepath.Join(t.TempDir(), "missing"))
	t.Setenv("OPENROUTER_API_KEY", "")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("OPENROUTER_API_KEY", "test_api_key")
	t.Setenv("MODEL", "test_model")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "test_api_key", cfg.APIKey)
}

func TestOverridesWin(t *testing.T) {
	t.Setenv("LISTEN_ADDR", "127.0.0.1:7000")
	cfg, err := LoadWithOptions(LoadOptions{ListenAddrOverride: "127.0.0.1:7001"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7001", cfg.ListenAddr)
}

func TestLoadProfileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	body := `
timings:
  long: 2s
poll:
  timeout: 4s
search:
  down_presses: 3
phrases:
  message_failure: ["실패"]
vision:
  template:
    threshold: 0.8
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	p, err := LoadProfile(path)
	require.NoError(t, err)

	def := DefaultProfile()
	assert.Equal(t, 2*time.Second, p.Timings.Long)
	assert.Equal(t, def.Timings.Short, p.Timings.Short)
	assert.Equal(t, 4*time.Second, p.Poll.Timeout)
	assert.Equal(t, def.Poll.Interval, p.Poll.Interval)
	assert.Equal(t, 3, p.Search.DownPresses)
	assert.Equal(t, []string{"실패"}, p.Phrases.MessageFailure)
	assert.Equal(t, def.Phrases.FriendSuccess, p.Phrases.FriendSuccess)
	assert.InDelta(t, 0.8, p.Vision.Template.Threshold, 1e-9)
	assert.InDelta(t, def.Vision.Template.Margin, p.Vision.Template.Margin, 1e-9)
}

func TestLoadProfileValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vision:\n  template:\n    threshold: 1.5\n"), 0o600))
	_, err := LoadProfile(path)
	assert.Error(t, err)

	_, err = LoadProfile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
