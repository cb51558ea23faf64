package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"kakao-autopilot/src/timing"
	"kakao-autopilot/src/vision"
)

// Profile holds every tunable that depends on the target client's look and pace.
// A YAML file overlays the defaults field by field.
type Profile struct {
	Timings timing.Table  `yaml:"timings"`
	Poll    PollProfile   `yaml:"poll"`
	Keys    KeyProfile    `yaml:"keys"`
	Search  SearchProfile `yaml:"search"`
	Phrases PhraseProfile `yaml:"phrases"`
	Vision  VisionProfile `yaml:"vision"`
	OCR     OCRProfile    `yaml:"ocr"`
}

type PollProfile struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// KeyProfile names keys in robotgo notation. Modifier "" picks cmd on macOS, ctrl elsewhere.
type KeyProfile struct {
	Modifier   string `yaml:"modifier"`
	FriendsTab string `yaml:"friends_tab"`
	// SearchTab is pressed before the search shortcut when opening a conversation.
	SearchTab  string `yaml:"search_tab"`
	Search     string `yaml:"search"`
	Confirm    string `yaml:"confirm"`
	Close      string `yaml:"close"`
	NextField  string `yaml:"next_field"`
	Down       string `yaml:"down"`
}

type SearchProfile struct {
	// DownPresses moves the selection from the search box onto the first result.
	DownPresses int `yaml:"down_presses"`
}

type PhraseProfile struct {
	FriendSuccess    []string `yaml:"friend_success"`
	FriendAlready    []string `yaml:"friend_already"`
	FriendNotAllowed []string `yaml:"friend_not_allowed"`
	MessageFailure   []string `yaml:"message_failure"`
}

type VisionProfile struct {
	Icon           vision.IconParams     `yaml:"icon"`
	Button         vision.ButtonParams   `yaml:"button"`
	Template       vision.TemplateParams `yaml:"template"`
	AddFriendClick vision.Offset         `yaml:"add_friend_click"`
}

type OCRProfile struct {
	Modal        vision.Inset `yaml:"modal"`
	StatusBottom float64      `yaml:"status_bottom"`
	Upscale      float64      `yaml:"upscale"`
}

func DefaultProfile() Profile {
	return Profile{
		Timings: timing.DefaultTable(),
		Poll: PollProfile{
			Interval: 500 * time.Millisecond,
			Timeout:  10 * time.Second,
		},
		Keys: KeyProfile{
			FriendsTab: "1",
			SearchTab:  "1",
			Search:     "f",
			Confirm:    "enter",
			Close:      "w",
			NextField:  "tab",
			Down:       "down",
		},
		Search: SearchProfile{DownPresses: 2},
		Phrases: PhraseProfile{
			FriendSuccess: []string{
				"친구 등록에 성공했습니다",
				"친구 등록이 완료되었습니다",
				"친구 추가가 완료되었습니다",
				"친구 추가에 성공했습니다",
			},
			FriendAlready:    []string{"이미 등록된 친구입니다"},
			FriendNotAllowed: []string{"친구로 추가할 수 없습니다"},
			MessageFailure: []string{
				"전송 실패", "메시지를 보낼 수 없습니다",
				"차단", "수신 거부", "오류가 발생",
				"메시지 전송에 실패",
			},
		},
		Vision: VisionProfile{
			Icon:           vision.DefaultIconParams(),
			Button:         vision.DefaultButtonParams(),
			Template:       vision.DefaultTemplateParams(),
			AddFriendClick: vision.Offset{FX: 0.88, FY: 0.07},
		},
		OCR: OCRProfile{
			Modal:        vision.Inset{Left: 0.1, Top: 0.15, Right: 0.1, Bottom: 0.15},
			StatusBottom: 0.3,
			Upscale:      2,
		},
	}
}

// LoadProfile returns the defaults overlaid with the YAML file at path, if any.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read profile %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := p.validate(); err != nil {
		return p, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

func (p Profile) validate() error {
	if p.Poll.Interval <= 0 || p.Poll.Timeout <= 0 {
		return fmt.Errorf("poll interval and timeout must be positive")
	}
	if p.Search.DownPresses < 0 {
		return fmt.Errorf("search.down_presses must not be negative")
	}
	if p.Vision.Template.Threshold <= 0 || p.Vision.Template.Threshold > 1 {
		return fmt.Errorf("vision.template.threshold must be in (0,1]")
	}
	if len(p.Phrases.FriendSuccess) == 0 {
		return fmt.Errorf("phrases.friend_success must not be empty")
	}
	return nil
}
