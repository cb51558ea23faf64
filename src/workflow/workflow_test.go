package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kakao-autopilot/src/config"
	"kakao-autopilot/src/ocr"
	"kakao-autopilot/src/screenshot"
	"kakao-autopilot/src/timing"
	"kakao-autopilot/src/vision"
)

// fakeActions records every call as "Op arg". fail maps "Op" or "Op arg" to an error.
type fakeActions struct {
	events  []string
	fail    map[string]error
	panicOn string
}

func (f *fakeActions) do(op, arg string) error {
	ev := op
	if arg != "" {
		ev = op + " " + arg
	}
	f.events = append(f.events, ev)
	if f.panicOn != "" && (ev == f.panicOn || op == f.panicOn) {
		panic("boom in " + ev)
	}
	if err, ok := f.fail[ev]; ok {
		return err
	}
	if err, ok := f.fail[op]; ok {
		return err
	}
	return nil
}

func (f *fakeActions) count(op string) int {
	n := 0
	for _, ev := range f.events {
		if ev == op || strings.HasPrefix(ev, op+" ") {
			n++
		}
	}
	return n
}

func (f *fakeActions) ActivateApp(ctx context.Context) error { return f.do("Activate", "") }
func (f *fakeActions) PasteText(ctx context.Context, text string) error {
	return f.do("PasteText", text)
}
func (f *fakeActions) PasteFile(ctx context.Context, path string) error {
	return f.do("PasteFile", path)
}
func (f *fakeActions) CopyFiles(ctx context.Context, paths []string) error {
	return f.do("CopyFiles", strings.Join(paths, ","))
}
func (f *fakeActions) Paste(ctx context.Context) error                { return f.do("Paste", "") }
func (f *fakeActions) Submit(ctx context.Context) error               { return f.do("Submit", "") }
func (f *fakeActions) SubmitAndWaitPreview(ctx context.Context) error { return f.do("SubmitPreview", "") }
func (f *fakeActions) CloseActiveWindow(ctx context.Context) error    { return f.do("Close", "") }
func (f *fakeActions) Shortcut(ctx context.Context, key string) error { return f.do("Shortcut", key) }
func (f *fakeActions) Tap(ctx context.Context, key string, n int) error {
	return f.do("Tap", fmt.Sprintf("%s*%d", key, n))
}
func (f *fakeActions) NextField(ctx context.Context) error    { return f.do("NextField", "") }
func (f *fakeActions) ClearCompose(ctx context.Context) error { return f.do("ClearCompose", "") }
func (f *fakeActions) ClickAt(ctx context.Context, p screenshot.Point) error {
	return f.do("ClickAt", fmt.Sprintf("%d,%d", p.X, p.Y))
}

type fixedRegion struct{}

func (fixedRegion) Locate(ctx context.Context) screenshot.Region {
	return screenshot.Region{X: 0, Y: 0, Width: 400, Height: 600}
}

// textVerifier classifies canned OCR text with the real classifier.
type textVerifier struct {
	texts []string
	err   error
	calls int
	crops []string
}

func (v *textVerifier) Verify(ctx context.Context, region screenshot.Region, crop ocr.Crop, classes []ocr.PhraseClass) (ocr.Outcome, error) {
	v.calls++
	v.crops = append(v.crops, crop.Stage)
	if v.err != nil {
		return ocr.Outcome{}, v.err
	}
	text := ""
	if len(v.texts) > 0 {
		text = v.texts[0]
		if len(v.texts) > 1 {
			v.texts = v.texts[1:]
		}
	}
	return ocr.Classify(text, classes), nil
}

type stubLocate struct {
	cand vision.Candidate
	err  error
}

func (s stubLocate) Name() string { return "stub" }

func (s stubLocate) Locate(ctx context.Context, region screenshot.Region) (vision.Candidate, error) {
	return s.cand, s.err
}

type countingResetter struct{ n int }

func (r *countingResetter) Reset() error {
	r.n++
	return nil
}

type harness struct {
	engine   *Engine
	actions  *fakeActions
	verifier *textVerifier
	resets   *countingResetter
	clock    *timing.FakeClock
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		actions:  &fakeActions{fail: map[string]error{}},
		verifier: &textVerifier{},
		resets:   &countingResetter{},
		clock:    timing.NewFakeClock(),
	}
	profile := config.DefaultProfile()
	opts := Options{
		Actions:   h.actions,
		Region:    fixedRegion{},
		Verifier:  h.verifier,
		AddDialog: vision.Chain{stubLocate{err: vision.ErrNotFound}, vision.Offset{FX: 0.5, FY: 0.1}},
		AddButton: vision.Chain{stubLocate{cand: vision.Candidate{Point: screenshot.Point{X: 200, Y: 550}}}},
		Artifacts: h.resets,
		Pacer:     timing.NewPacer(h.clock, profile.Timings),
		Profile:   profile,
		ParsePaths: func(content string) ([]string, error) {
			var ok []string
			var bad []string
			for _, p := range strings.Split(content, ",") {
				p = strings.TrimSpace(p)
				if strings.HasPrefix(p, "/") {
					ok = append(ok, p)
				} else if p != "" {
					bad = append(bad, p)
				}
			}
			if len(bad) > 0 {
				return ok, fmt.Errorf("invalid: %v", bad)
			}
			return ok, nil
		},
		Rasterize: func(path string) (string, func(), error) { return path, func() {}, nil },
	}
	if mutate != nil {
		mutate(&opts)
	}
	e, err := New(opts)
	require.NoError(t, err)
	h.engine = e
	return h
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestPlaceholderName(t *testing.T) {
	assert.Equal(t, "연락처-5678", PlaceholderName("010-1234-5678"))
	assert.Equal(t, "연락처-12", PlaceholderName("12"))
	assert.Equal(t, "홍길동", Contact{Username: " 홍길동 ", Phone: "1"}.DisplayName())
}

func TestAddFriendsScenario(t *testing.T) {
	h := newHarness(t, nil)
	h.verifier.texts = []string{"친구 등록에\n성공했습니다"}

	results := h.engine.AddFriends(context.Background(), []Contact{
		{Username: "A", Phone: "01012345678"},
		{Username: "B", Phone: ""},
	})
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].Username)
	assert.Equal(t, StatusSuccess, results[0].Status)
	assert.Equal(t, StatusSkip, results[1].Status)
	assert.Equal(t, "phone missing", results[1].Reason)
	assert.Equal(t, "B", results[1].Username)

	assert.Equal(t, 1, h.actions.count("Close"), "close exactly once for A, never for B")
	assert.Equal(t, 1, h.resets.n)
	assert.Contains(t, h.actions.events, "PasteText A")
	assert.Contains(t, h.actions.events, "PasteText 01012345678")
	assert.Contains(t, h.actions.events, "ClickAt 200,60", "coordinate heuristic after icon miss")
	assert.Contains(t, h.actions.events, "ClickAt 200,550", "button found by vision")
	assert.Equal(t, []string{"ocr_modal"}, h.verifier.crops)
}

func TestEmptyPhoneNeverTouchesTheOS(t *testing.T) {
	h := newHarness(t, nil)
	results := h.engine.AddFriends(context.Background(), []Contact{{Username: "x"}, {Phone: "  "}})
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, StatusSkip, r.Status)
		assert.Equal(t, "phone missing", r.Reason)
	}
	assert.Empty(t, h.actions.events)
	assert.Equal(t, 0, h.verifier.calls)
}

func TestAddFriendsClassification(t *testing.T) {
	cases := []struct {
		text   string
		status Status
	}{
		{"이미 등록된 친구입니다.", StatusAlreadyRegistered},
		{"입력하신 번호를 친구로 추가할 수 없습니다", StatusNotAllowed},
		{"네트워크 오류", StatusFail},
	}
	for _, tc := range cases {
		h := newHarness(t, nil)
		h.verifier.texts = []string{tc.text}
		res := h.engine.AddFriends(context.Background(), []Contact{{Username: "u", Phone: "010"}})
		assert.Equal(t, tc.status, res[0].Status, tc.text)
		if tc.status == StatusFail {
			assert.Equal(t, tc.text, res[0].Reason, "indeterminate keeps raw text")
		}
	}
}

func TestBatchActivationFailureFailsEveryContact(t *testing.T) {
	h := newHarness(t, nil)
	h.actions.fail["Activate"] = errors.New("app not running")
	results := h.engine.AddFriends(context.Background(), []Contact{
		{Username: "a", Phone: "1"}, {Username: "b"}, {Username: "c", Phone: "3"},
	})
	require.Len(t, results, 3)
	assert.Equal(t, StatusFail, results[0].Status)
	assert.Contains(t, results[0].Reason, "activation failed")
	assert.Equal(t, StatusSkip, results[1].Status)
	assert.Equal(t, StatusFail, results[2].Status)
	assert.Equal(t, 1, h.actions.count("Activate"))
	assert.Equal(t, 0, h.actions.count("Close"))
}

func TestSubmitFallsBackToConfirmKey(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.AddButton = vision.Chain{stubLocate{err: vision.ErrTimeout}}
	})
	h.verifier.texts = []string{"친구 추가가 완료되었습니다"}
	res := h.engine.AddFriends(context.Background(), []Contact{{Username: "u", Phone: "010"}})
	assert.Equal(t, StatusSuccess, res[0].Status)
	assert.Equal(t, 1, h.actions.count("Submit"))
}

func TestDialogNotFoundFailsAndCloses(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.AddDialog = vision.Chain{stubLocate{err: vision.ErrNotFound}}
	})
	res := h.engine.AddFriends(context.Background(), []Contact{{Username: "u", Phone: "010"}, {Username: "v", Phone: "011"}})
	require.Len(t, res, 2)
	for _, r := range res {
		assert.Equal(t, StatusFail, r.Status)
		assert.Contains(t, r.Reason, "add-friend button not found")
	}
	assert.Equal(t, 2, h.actions.count("Close"))
	assert.Equal(t, 0, h.verifier.calls)
}

func TestPanicIsContainedPerSubject(t *testing.T) {
	h := newHarness(t, nil)
	h.actions.panicOn = "PasteText first"
	h.verifier.texts = []string{"친구 추가에 성공했습니다"}
	res := h.engine.AddFriends(context.Background(), []Contact{
		{Username: "first", Phone: "1"}, {Username: "second", Phone: "2"},
	})
	require.Len(t, res, 2)
	assert.Equal(t, StatusFail, res[0].Status)
	assert.Contains(t, res[0].Reason, "unexpected error")
	assert.Equal(t, StatusSuccess, res[1].Status)
	assert.Equal(t, 2, h.actions.count("Close"))
}

func TestVerifierErrorBecomesFail(t *testing.T) {
	h := newHarness(t, nil)
	h.verifier.err = screenshot.ErrCaptureTimeout
	res := h.engine.AddFriends(context.Background(), []Contact{{Username: "u", Phone: "010"}})
	assert.Equal(t, StatusFail, res[0].Status)
	assert.Contains(t, res[0].Reason, "verification failed")
}

func TestPausesFollowTheTable(t *testing.T) {
	h := newHarness(t, nil)
	h.verifier.texts = []string{"친구 등록이 완료되었습니다"}
	h.engine.AddFriends(context.Background(), []Contact{{Username: "u", Phone: "010"}})
	sleeps := h.clock.Sleeps()
	require.NotEmpty(t, sleeps)
	assert.Contains(t, sleeps, timing.DefaultTable().Long)
}

func TestSendMessagesEmptyGroupSkipsAndClosesOnce(t *testing.T) {
	h := newHarness(t, nil)
	res := h.engine.SendMessages(context.Background(), []MessageGroup{{Username: "kim"}})
	require.Len(t, res, 1)
	assert.Equal(t, StatusSkip, res[0].Status)
	assert.Equal(t, 1, h.actions.count("Close"))
	assert.Equal(t, 0, h.verifier.calls)
}

func TestFirstTextFailureAbortsGroup(t *testing.T) {
	h := newHarness(t, nil)
	h.actions.fail["PasteText hello"] = errors.New("clipboard busy")
	res := h.engine.SendMessages(context.Background(), []MessageGroup{{
		Username: "kim",
		Messages: []MessageItem{
			{Kind: KindText, Content: "hello"},
			{Kind: KindText, Content: "second"},
		},
	}})
	require.Len(t, res, 1)
	assert.Equal(t, StatusFail, res[0].Status)
	assert.Contains(t, res[0].Reason, "first message send failed")
	assert.Equal(t, 0, h.verifier.calls, "no OCR after a failed first send")
	assert.NotContains(t, h.actions.events, "PasteText second")
	assert.Equal(t, 1, h.actions.count("Close"))
	require.Len(t, res[0].Items, 2)
	assert.Equal(t, StatusSkip, res[0].Items[1].Status)
}

func TestFirstItemGovernsGroupStatus(t *testing.T) {
	h := newHarness(t, nil)
	h.actions.fail["PasteFile /pics/b.png"] = errors.New("upload stuck")
	h.verifier.texts = []string{"오후 3:12 안녕하세요"}
	res := h.engine.SendMessages(context.Background(), []MessageGroup{{
		Username: "kim",
		Messages: []MessageItem{
			{Kind: KindText, Content: "안녕하세요"},
			{Kind: KindImage, Content: "/pics/b.png"},
		},
	}})
	assert.Equal(t, StatusSuccess, res[0].Status)
	require.Len(t, res[0].Items, 2)
	assert.Equal(t, StatusSuccess, res[0].Items[0].Status)
	assert.Equal(t, StatusFail, res[0].Items[1].Status)
	assert.Equal(t, []string{"ocr_status"}, h.verifier.crops)
	assert.Contains(t, h.actions.events, "Tap down*2")
}

func TestDeliveryFailurePhraseFailsGroup(t *testing.T) {
	h := newHarness(t, nil)
	h.verifier.texts = []string{"메시지 전송 실패"}
	res := h.engine.SendMessages(context.Background(), []MessageGroup{{
		Username: "lee",
		Messages: []MessageItem{{Kind: KindText, Content: "hi"}, {Kind: KindText, Content: "later"}},
	}})
	assert.Equal(t, StatusFail, res[0].Status)
	assert.Contains(t, res[0].Reason, "first message status check failed")
	assert.NotContains(t, h.actions.events, "PasteText later")
}

func TestActivationFailureDoesNotClose(t *testing.T) {
	h := newHarness(t, nil)
	h.actions.fail["Activate"] = errors.New("no app")
	res := h.engine.SendMessages(context.Background(), []MessageGroup{
		{Username: "a", Messages: []MessageItem{{Kind: KindText, Content: "x"}}},
		{Username: "b", Messages: []MessageItem{{Kind: KindText, Content: "y"}}},
	})
	require.Len(t, res, 2)
	assert.Equal(t, "a", res[0].Key)
	assert.Equal(t, "b", res[1].Key)
	for _, r := range res {
		assert.Equal(t, StatusFail, r.Status)
		assert.Contains(t, r.Reason, "activation failed")
	}
	assert.Equal(t, 0, h.actions.count("Close"))
}

func TestInvalidImageItemsAreSkipped(t *testing.T) {
	h := newHarness(t, nil)
	res := h.engine.SendMessages(context.Background(), []MessageGroup{{
		Username: "park",
		Messages: []MessageItem{
			{Kind: KindImage, Content: "relative/a.png"},
			{Kind: KindText, Content: "hello"},
		},
	}})
	assert.Equal(t, StatusSuccess, res[0].Status)
	require.Len(t, res[0].Items, 2)
	assert.Equal(t, 0, res[0].Items[0].Index)
	assert.Equal(t, StatusSkip, res[0].Items[0].Status)
	assert.Equal(t, StatusSuccess, res[0].Items[1].Status)

	h = newHarness(t, nil)
	res = h.engine.SendMessages(context.Background(), []MessageGroup{{
		Username: "park",
		Messages: []MessageItem{{Kind: KindImage, Content: "nope.png"}, {Kind: "video", Content: "x"}},
	}})
	assert.Equal(t, StatusSkip, res[0].Status)
	assert.Equal(t, 1, h.actions.count("Close"))
	assert.Equal(t, 0, h.actions.count("Shortcut"))
}

func TestImageItemWithAnyInvalidPathIsSkipped(t *testing.T) {
	h := newHarness(t, nil)
	res := h.engine.SendMessages(context.Background(), []MessageGroup{{
		Username: "park",
		Messages: []MessageItem{
			{Kind: KindImage, Content: "/p/a.png,relative/b.png"},
			{Kind: KindText, Content: "hello"},
		},
	}})
	require.Len(t, res, 1)
	assert.Equal(t, StatusSuccess, res[0].Status)
	require.Len(t, res[0].Items, 2)
	assert.Equal(t, StatusSkip, res[0].Items[0].Status)
	assert.Contains(t, res[0].Items[0].Reason, "relative/b.png")
	assert.Equal(t, 1, res[0].Items[1].Index)
	assert.Equal(t, StatusSuccess, res[0].Items[1].Status)
	assert.Equal(t, 0, h.actions.count("PasteFile"))
	assert.Equal(t, 0, h.actions.count("CopyFiles"))
}

func TestDefaultPhrasesClassifyClientDialogs(t *testing.T) {
	h := newHarness(t, nil)
	friend := h.engine.friendClasses()
	cases := []struct {
		text  string
		class Status
	}{
		{"친구 등록에 성공했습니다", StatusSuccess},
		{"친구 등록이 완료되었습니다", StatusSuccess},
		{"친구 추가가 완료되었습니다", StatusSuccess},
		{"친구 추가에 성공했습니다", StatusSuccess},
		{"이미 등록된 친구입니다", StatusAlreadyRegistered},
		{"입력하신 번호를 친구로 추가할 수 없습니다", StatusNotAllowed},
	}
	for _, tc := range cases {
		assert.Equal(t, string(tc.class), ocr.Classify(tc.text, friend).Class, tc.text)
	}

	failure := []ocr.PhraseClass{{Name: "failure", Phrases: config.DefaultProfile().Phrases.MessageFailure}}
	for _, text := range []string{
		"전송 실패",
		"메시지를 보낼 수 없습니다",
		"차단된 사용자입니다",
		"수신 거부",
		"오류가 발생했습니다",
		"메시지 전송에 실패했습니다",
	} {
		assert.False(t, ocr.Classify(text, failure).Indeterminate(), text)
	}
	assert.True(t, ocr.Classify("오후 3:12 안녕하세요", failure).Indeterminate())
}

func TestBlockedRecipientFailsGroup(t *testing.T) {
	h := newHarness(t, nil)
	h.verifier.texts = []string{"차단된 사용자입니다"}
	res := h.engine.SendMessages(context.Background(), []MessageGroup{{
		Username: "kim",
		Messages: []MessageItem{{Kind: KindText, Content: "hi"}},
	}})
	assert.Equal(t, StatusFail, res[0].Status)
	assert.Contains(t, res[0].Reason, "차단")
}

func TestMultiImageFallsBackToSingles(t *testing.T) {
	h := newHarness(t, nil)
	h.actions.fail["CopyFiles"] = errors.New("finder unavailable")
	res := h.engine.SendMessages(context.Background(), []MessageGroup{{
		Username: "choi",
		Messages: []MessageItem{{Kind: KindImage, Content: "/p/a.png,/p/b.png"}},
	}})
	assert.Equal(t, StatusSuccess, res[0].Status)
	assert.Contains(t, h.actions.events, "PasteFile /p/a.png")
	assert.Contains(t, h.actions.events, "PasteFile /p/b.png")
	assert.Equal(t, 2, h.actions.count("SubmitPreview"))
}

func TestMultiImageTogether(t *testing.T) {
	h := newHarness(t, nil)
	res := h.engine.SendMessages(context.Background(), []MessageGroup{{
		Username: "choi",
		Messages: []MessageItem{{Kind: KindImage, Content: "/p/a.png, /p/b.png"}},
	}})
	assert.Equal(t, StatusSuccess, res[0].Status)
	assert.Contains(t, h.actions.events, "CopyFiles /p/a.png,/p/b.png")
	assert.Equal(t, 0, h.actions.count("PasteFile"))
	assert.Equal(t, 1, h.actions.count("SubmitPreview"))
}

func TestRasterizeCleanupAndFallback(t *testing.T) {
	cleaned := 0
	h := newHarness(t, func(o *Options) {
		o.Rasterize = func(path string) (string, func(), error) {
			if strings.Contains(path, "bad") {
				return path, func() {}, errors.New("corrupt svg")
			}
			return path + ".png", func() { cleaned++ }, nil
		}
	})
	res := h.engine.SendMessages(context.Background(), []MessageGroup{{
		Username: "jung",
		Messages: []MessageItem{{Kind: KindImage, Content: "/p/logo.svg"}, {Kind: KindImage, Content: "/p/bad.svg"}},
	}})
	assert.Equal(t, StatusSuccess, res[0].Status)
	assert.Contains(t, h.actions.events, "PasteFile /p/logo.svg.png")
	assert.Contains(t, h.actions.events, "PasteFile /p/bad.svg")
	assert.Equal(t, 1, cleaned)
}

func TestResultsKeepInputOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.verifier.texts = []string{"ok"}
	groups := []MessageGroup{
		{Username: "one", Messages: []MessageItem{{Kind: KindText, Content: "1"}}},
		{Username: "two"},
		{Username: "three", Messages: []MessageItem{{Kind: KindText, Content: "3"}}},
	}
	res := h.engine.SendMessages(context.Background(), groups)
	require.Len(t, res, len(groups))
	for i, g := range groups {
		assert.Equal(t, g.Username, res[i].Username)
	}
	assert.Equal(t, 1, h.resets.n)
}
