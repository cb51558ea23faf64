package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvPathVar        = "KAKAO_AUTOPILOT_ENV"
	DefaultAPIKeyPath = "/run/secrets/api_keys/openrouter"
	APIKeyPathEnvVar  = "OPENROUTER_API_KEY_FILE"

	OCREngineTesseract = "tesseract"
	OCREngineLLM       = "llm"

	defaultAppName     = "KakaoTalk"
	defaultBundleID    = "com.kakao.KakaoTalkMac"
	defaultListenAddr  = "127.0.0.1:5001"
	defaultArtifactDir = "debug_artifacts"
	defaultPort        = 49600
)

type LoadOptions struct {
	ProfilePathOverride string
	APIKeyPathOverride  string
	ListenAddrOverride  string
}

type Config struct {
	AppName      string
	BundleID     string
	PopupMarkers []string

	ListenAddr        string
	ArtifactDir       string
	EnableFileLogging bool
	LogFile           string

	OCREngine    string
	OCRLanguages []string
	APIKey       string
	APIKeyPath   string
	Model        string
	Providers    []string

	ProfilePath       string
	JournalPath       string
	AddFriendTemplate string
	ImageRoot         string
	InstancePort      int

	Profile Profile
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order:
	// 1) .env next to the executable
	// 2) the file named by KAKAO_AUTOPILOT_ENV
	envPath := resolveEnvPath()
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	port := defaultPort
	if v := os.Getenv("SINGLEINSTANCE_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1024 || n > 65535 {
			return nil, fmt.Errorf("SINGLEINSTANCE_PORT must be an integer in [1024, 65535], got %q", v)
		}
		port = n
	}

	engine := strings.ToLower(getEnvWithDefault("OCR_ENGINE", OCREngineTesseract))
	if engine != OCREngineTesseract && engine != OCREngineLLM {
		return nil, fmt.Errorf("OCR_ENGINE must be %q or %q, got %q", OCREngineTesseract, OCREngineLLM, engine)
	}

	apiKeyPath := resolveAPIKeyPath(opts, dotenvValues)

	cfg := &Config{
		AppName:           getEnvWithDefault("APP_NAME", defaultAppName),
		BundleID:          getEnvWithDefault("APP_BUNDLE_ID", defaultBundleID),
		PopupMarkers:      splitList(os.Getenv("POPUP_MARKERS")),
		ListenAddr:        firstNonEmpty(opts.ListenAddrOverride, os.Getenv("LISTEN_ADDR"), defaultListenAddr),
		ArtifactDir:       getEnvWithDefault("ARTIFACT_DIR", defaultArtifactDir),
		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		LogFile:           os.Getenv("LOG_FILE"),
		OCREngine:         engine,
		OCRLanguages:      splitList(getEnvWithDefault("OCR_LANGUAGES", "kor,eng")),
		APIKey:            resolveAPIKey(apiKeyPath),
		APIKeyPath:        apiKeyPath,
		Model:             os.Getenv("MODEL"),
		Providers:         splitList(os.Getenv("PROVIDERS")),
		ProfilePath:       firstNonEmpty(opts.ProfilePathOverride, os.Getenv("PROFILE_FILE")),
		JournalPath:       os.Getenv("JOURNAL_PATH"),
		AddFriendTemplate: os.Getenv("ADD_FRIEND_TEMPLATE"),
		ImageRoot:         os.Getenv("IMAGE_ROOT"),
		InstancePort:      port,
	}
	if len(cfg.PopupMarkers) == 0 {
		cfg.PopupMarkers = []string{"친구 추가", "Add Friend"}
	}

	profile, err := LoadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}
	cfg.Profile = profile

	if cfg.OCREngine == OCREngineLLM && (cfg.APIKey == "" || cfg.Model == "") {
		return nil, fmt.Errorf("OCR_ENGINE=llm requires OPENROUTER_API_KEY (checked key file %s) and MODEL", cfg.APIKeyPath)
	}

	return cfg, nil
}

func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}
	if alt := os.Getenv(EnvPathVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}
	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}
	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}
	return values
}

func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := DefaultAPIKeyPath
	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		keyPath = envPath
	}
	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}
	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}
	return keyPath
}

func resolveAPIKey(keyPath string) string {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey
		}
	}
	return os.Getenv("OPENROUTER_API_KEY")
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
