package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"kakao-autopilot/src/api"
	"kakao-autopilot/src/config"
	"kakao-autopilot/src/logutil"
	"kakao-autopilot/src/runtimeinit"
	"kakao-autopilot/src/singleinstance"
)

type mainOptions struct {
	listen      string
	profilePath string
	apiKeyPath  string
	skipPing    bool
}

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	args = normalizeLegacyArgs(args)
	if len(args) == 0 {
		args = []string{"kakao-autopilot"}
	}
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "kakao-autopilot",
		Short:         "Resident chat automation server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(*opts)
		},
	}
	cmd.Flags().StringVar(&opts.listen, "listen", "", "HTTP listen address (overrides LISTEN_ADDR)")
	cmd.Flags().StringVar(&opts.profilePath, "profile", "", "Path to profile YAML (overrides PROFILE_FILE)")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	cmd.Flags().BoolVar(&opts.skipPing, "skip-llm-ping", false, "Skip the LLM startup check")
	return cmd
}

// normalizeLegacyArgs maps single-dash long flags to their double-dash form.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	normalized := make([]string, len(args))
	copy(normalized, args)
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"listen", "profile", "api-key-path", "skip-llm-ping"} {
			if arg == "-"+name || strings.HasPrefix(arg, "-"+name+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}
	return normalized
}

func setupLogging(cfg *config.Config) {
	if cfg.EnableFileLogging {
		logutil.Setup(true, cfg.LogFile)
		return
	}
	logutil.SetupStderr()
}

func serve(opts mainOptions) error {
	enableDPIAwareness()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions: config.LoadOptions{
			ProfilePathOverride: opts.profilePath,
			APIKeyPathOverride:  opts.apiKeyPath,
			ListenAddrOverride:  opts.listen,
		},
		SetupLogging: setupLogging,
		SkipLLMPing:  opts.skipPing,
		WithLane:     true,
	})
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.Config
	logMonitorConfiguration()

	instance, err := singleinstance.Acquire(ctx, cfg.InstancePort, "http://"+cfg.ListenAddr)
	if errors.Is(err, singleinstance.ErrAlreadyRunning) {
		return fmt.Errorf("%w (port %d)", err, cfg.InstancePort)
	}
	if err != nil {
		return err
	}
	defer instance.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	var j api.Journal
	if rt.Journal != nil {
		j = rt.Journal
	}
	api.NewHandler(rt.Engine, rt.Lane, j, cfg.ImageRoot).RegisterRoutes(e)

	log.Printf("Kakao autopilot initialized: app=%s ocr=%s artifacts=%s", cfg.AppName, cfg.OCREngine, cfg.ArtifactDir)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", cfg.ListenAddr)
		if err := e.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("Shutting down server...")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Printf("Server exited")
	return nil
}
