package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"kakao-autopilot/src/api"
	"kakao-autopilot/src/client"
	"kakao-autopilot/src/config"
)

type stressOptions struct {
	n        int
	url      string
	deadline time.Duration
}

type counts struct {
	ok, busy, err int32
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-lane",
		Short:         "Fire concurrent empty batches at a resident to check single admission",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(*opts, os.Stdout)
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().StringVar(&opts.url, "url", "", "resident base URL (discovered when empty)")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")

	return cmd
}

func runWithOptions(opts stressOptions, out io.Writer) error {
	c, err := resident(opts)
	if err != nil {
		return err
	}
	start := time.Now()
	got := fire(c, opts.n, opts.deadline)
	fmt.Fprintf(out, "launched=%d ok=%d busy=%d err=%d elapsed=%s\n", opts.n, got.ok, got.busy, got.err, time.Since(start))
	return nil
}

func resident(opts stressOptions) (*client.Client, error) {
	if opts.url != "" {
		return client.New(opts.url), nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return client.Discover(ctx, cfg.InstancePort)
}

// fire sends n empty friend-add batches at once. Empty batches never touch the UI.
func fire(c *client.Client, n int, deadline time.Duration) counts {
	var wg sync.WaitGroup
	var got counts
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), deadline)
			defer cancel()
			_, err := c.AddFriends(ctx, api.AddFriendsRequest{Friends: []api.FriendInput{}})
			switch {
			case err == nil:
				atomic.AddInt32(&got.ok, 1)
			case errors.Is(err, client.ErrBusy):
				atomic.AddInt32(&got.busy, 1)
			default:
				atomic.AddInt32(&got.err, 1)
			}
		}()
	}
	wg.Wait()
	return got
}
