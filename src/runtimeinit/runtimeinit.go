package runtimeinit

import (
	"context"
	"fmt"
	"log"
	"time"

	"kakao-autopilot/src/artifacts"
	"kakao-autopilot/src/clipboard"
	"kakao-autopilot/src/config"
	"kakao-autopilot/src/input"
	"kakao-autopilot/src/journal"
	"kakao-autopilot/src/llm"
	"kakao-autopilot/src/locator"
	"kakao-autopilot/src/logutil"
	"kakao-autopilot/src/ocr"
	"kakao-autopilot/src/osscript"
	"kakao-autopilot/src/screenshot"
	"kakao-autopilot/src/timing"
	"kakao-autopilot/src/vision"
	"kakao-autopilot/src/vision/opencv"
	"kakao-autopilot/src/worker"
	"kakao-autopilot/src/workflow"
)

type Options struct {
	LoadOptions  config.LoadOptions
	SetupLogging func(cfg *config.Config)
	// SkipLLMPing disables the startup round-trip when OCR_ENGINE=llm.
	SkipLLMPing bool
	// WithLane starts the single batch lane used by the resident server.
	WithLane bool
}

// Runtime is everything a front end needs to run batches.
type Runtime struct {
	Config    *config.Config
	Engine    *workflow.Engine
	Artifacts *artifacts.Store
	Journal   *journal.Journal
	Lane      *worker.Lane
}

func (r *Runtime) Close() {
	if r.Lane != nil {
		r.Lane.Close()
	}
	if r.Journal != nil {
		if err := r.Journal.Close(); err != nil {
			log.Printf("runtime: journal close: %v", err)
		}
	}
}

func Bootstrap(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg)
	}

	if err := clipboard.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
	}

	recognizer, err := newRecognizer(ctx, cfg, !opts.SkipLLMPing)
	if err != nil {
		return nil, err
	}

	script := osscript.Exec{}
	capturer := screenshot.NewScreenCapturer()
	store := artifacts.NewStore(cfg.ArtifactDir)
	pacer := timing.NewPacer(timing.RealClock{}, cfg.Profile.Timings)

	synth := input.NewSynth(input.NewRobotDriver(script), clipboard.NewBoard(script), pacer, cfg.Profile.Keys, cfg.AppName)

	engine, err := workflow.New(workflow.Options{
		Actions:   synth,
		Region:    locator.New(cfg.AppName, cfg.BundleID, cfg.PopupMarkers),
		Verifier:  &ocr.Verifier{Capturer: capturer, Recognizer: recognizer, Sink: store},
		AddDialog: addDialogChain(cfg, capturer, store),
		AddButton: vision.Chain{&opencv.ButtonStrategy{
			Capturer: capturer,
			Params:   cfg.Profile.Vision.Button,
			Band:     opencv.Primary,
			Sink:     store,
		}},
		Artifacts: store,
		Pacer:     pacer,
		Profile:   cfg.Profile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build workflow engine: %w", err)
	}

	rt := &Runtime{Config: cfg, Engine: engine, Artifacts: store}

	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		rt.Journal = j
		log.Printf("Journal: %s", cfg.JournalPath)
	}
	if opts.WithLane {
		rt.Lane = worker.New()
	}
	return rt, nil
}

// addDialogChain tries the contour icon (polled while the window settles),
// then the reference template when one is configured, then the fixed offset.
func addDialogChain(cfg *config.Config, capturer screenshot.Capturer, sink artifacts.Sink) vision.Chain {
	v := cfg.Profile.Vision
	chain := vision.Chain{
		vision.Polling{
			Strategy: &opencv.IconStrategy{Capturer: capturer, Params: v.Icon, Sink: sink, Label: "add-friend"},
			Interval: cfg.Profile.Poll.Interval,
			Timeout:  cfg.Profile.Poll.Timeout,
		},
	}
	if cfg.AddFriendTemplate != "" {
		chain = append(chain, &opencv.TemplateStrategy{
			Capturer: capturer,
			Path:     cfg.AddFriendTemplate,
			Params:   v.Template,
			Sink:     sink,
		})
	}
	chain = append(chain, v.AddFriendClick)
	log.Printf("Add-friend locator chain: %v", chain.Names())
	return chain
}

func newRecognizer(ctx context.Context, cfg *config.Config, ping bool) (ocr.Recognizer, error) {
	if cfg.OCREngine != config.OCREngineLLM {
		log.Printf("OCR: tesseract %v", cfg.OCRLanguages)
		return ocr.NewTesseract(cfg.OCRLanguages, cfg.Profile.OCR.Upscale), nil
	}
	client, err := llm.NewClient(llm.Config{APIKey: cfg.APIKey, Model: cfg.Model, Providers: cfg.Providers})
	if err != nil {
		return nil, err
	}
	log.Printf("OCR: llm model=%s key=%s", cfg.Model, logutil.RedactKey(cfg.APIKey))
	if ping {
		pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := client.Ping(pctx); err != nil {
			return nil, fmt.Errorf("startup check failed: %w", err)
		}
		log.Printf("LLM ping succeeded")
	}
	return &ocr.Vision{Client: client}, nil
}
