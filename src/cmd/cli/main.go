package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"kakao-autopilot/src/api"
	"kakao-autopilot/src/client"
	"kakao-autopilot/src/config"
	"kakao-autopilot/src/journal"
	"kakao-autopilot/src/logutil"
	"kakao-autopilot/src/runtimeinit"
	"kakao-autopilot/src/workflow"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

type cliOptions struct {
	filePath    string
	jsonOutput  bool
	verbose     bool
	profilePath string
	apiKeyPath  string
	standalone  bool
}

func main() {
	if err := run(os.Args, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		args = []string{"autopilot"}
	}
	opts := &cliOptions{}
	cmd := newRootCmd(opts, stdin, stdout)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions, stdin io.Reader, stdout io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "autopilot",
		Short:         "Run friend-add and message-send batches",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.filePath, "file", "", "Path to the JSON request body (use '-' for stdin)")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	root.PersistentFlags().StringVar(&opts.profilePath, "profile", "", "Path to profile YAML")
	root.PersistentFlags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	root.PersistentFlags().BoolVar(&opts.standalone, "standalone", false, "Do not delegate to a running resident")
	_ = root.MarkPersistentFlagRequired("file")

	root.AddCommand(&cobra.Command{
		Use:   "add-friends",
		Short: "Register contacts from {\"friends\": [...]}",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req api.AddFriendsRequest
			if err := readRequest(opts.filePath, stdin, &req); err != nil {
				return err
			}
			if req.Friends == nil {
				return fmt.Errorf("friends is required")
			}
			resp, err := execute(cmd.Context(), *opts, journal.KindFriendAdd,
				func(ctx context.Context, c *client.Client) (api.BatchResponse, error) { return c.AddFriends(ctx, req) },
				func(ctx context.Context, rt *runtimeinit.Runtime) []workflow.Result {
					return rt.Engine.AddFriends(ctx, req.Contacts())
				})
			if err != nil {
				return err
			}
			return writeResults(stdout, resp, opts.jsonOutput)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "send-messages",
		Short: "Send message groups from {\"message_groups\": [...]}",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req api.SendMessagesRequest
			if err := readRequest(opts.filePath, stdin, &req); err != nil {
				return err
			}
			if req.MessageGroups == nil {
				return fmt.Errorf("message_groups is required")
			}
			resp, err := execute(cmd.Context(), *opts, journal.KindMessageSend,
				func(ctx context.Context, c *client.Client) (api.BatchResponse, error) { return c.SendMessages(ctx, req) },
				func(ctx context.Context, rt *runtimeinit.Runtime) []workflow.Result {
					return rt.Engine.SendMessages(ctx, req.Groups(rt.Config.ImageRoot))
				})
			if err != nil {
				return err
			}
			return writeResults(stdout, resp, opts.jsonOutput)
		},
	})
	return root
}

func readRequest(path string, stdin io.Reader, dst interface{}) error {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(io.LimitReader(r, maxFileSize+1))
	if err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	if len(data) > maxFileSize {
		return fmt.Errorf("input exceeds maximum size of %d MB", maxFileSizeMB)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return fmt.Errorf("input is empty")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("invalid request JSON: %w", err)
	}
	return nil
}

type delegateFunc func(ctx context.Context, c *client.Client) (api.BatchResponse, error)
type localFunc func(ctx context.Context, rt *runtimeinit.Runtime) []workflow.Result

// execute forwards to a resident when one answers, otherwise runs in-process.
func execute(ctx context.Context, opts cliOptions, kind string, remote delegateFunc, local localFunc) (api.BatchResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.verbose {
		logutil.SetupStderr()
	} else {
		log.SetOutput(io.Discard)
	}

	loadOpts := config.LoadOptions{ProfilePathOverride: opts.profilePath, APIKeyPathOverride: opts.apiKeyPath}
	if !opts.standalone {
		cfg, err := config.LoadWithOptions(loadOpts)
		if err != nil {
			return api.BatchResponse{}, fmt.Errorf("failed to load configuration: %w", err)
		}
		dctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		c, err := client.Discover(dctx, cfg.InstancePort)
		cancel()
		if err == nil {
			log.Printf("Delegating to resident at %s", c.BaseURL)
			resp, err := remote(ctx, c)
			if errors.Is(err, client.ErrBusy) {
				return resp, fmt.Errorf("%w; retry when the current batch finishes", err)
			}
			return resp, err
		}
		log.Printf("No resident detected (%v), running standalone", err)
	}

	rt, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{LoadOptions: loadOpts})
	if err != nil {
		return api.BatchResponse{}, err
	}
	defer rt.Close()

	batchID := uuid.NewString()
	started := time.Now()
	results := local(ctx, rt)
	if rt.Journal != nil {
		b := journal.Batch{ID: batchID, Kind: kind, StartedAt: started, FinishedAt: time.Now()}
		if err := rt.Journal.Record(ctx, b, results); err != nil {
			log.Printf("ERROR: failed to journal batch %s: %v", batchID, err)
		}
	}
	return api.BatchResponse{BatchID: batchID, Results: results}, nil
}

func writeResults(w io.Writer, resp api.BatchResponse, jsonOutput bool) error {
	if jsonOutput {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(resp); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "batch %s\n", resp.BatchID)
	for _, r := range resp.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Key, r.Status, r.Reason)
		for _, it := range r.Items {
			fmt.Fprintf(tw, "  #%d %s\t%s\t%s\n", it.Index, it.Kind, it.Status, it.Reason)
		}
	}
	return tw.Flush()
}
