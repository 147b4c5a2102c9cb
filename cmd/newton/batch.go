package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gonewton/newton/internal/banner"
	"github.com/gonewton/newton/internal/batch"
	"github.com/gonewton/newton/internal/cli"
	"github.com/gonewton/newton/internal/exitcode"
	"github.com/gonewton/newton/internal/ledger"
	"github.com/gonewton/newton/internal/logging"
	"github.com/gonewton/newton/internal/queue"
	"github.com/gonewton/newton/internal/schedule"
	sighandler "github.com/gonewton/newton/internal/signal"
)

func newBatchCmd() *cobra.Command {
	f := &cli.BatchFlags{}
	cmd := &cobra.Command{
		Use:   "batch <project-id>",
		Short: "Process queued plans for a project",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sleep, err := f.SleepInterval()
			if err != nil {
				return err
			}
			ws, err := workspaceDir(f.Workspace)
			if err != nil {
				return err
			}
			return runBatch(cmd.Context(), batch.Options{
				WorkspaceRoot: ws,
				ProjectID:     args[0],
				Once:          f.Once,
				Sleep:         sleep,
			})
		},
	}
	cli.BindBatchFlags(cmd, f)
	return cmd
}

// workspaceDir defaults to the current directory; the batch controller
// searches upward from it for the workspace root.
func workspaceDir(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	return os.Getwd()
}

func runBatch(parent context.Context, opts batch.Options) error {
	c, err := batch.New(opts)
	if err != nil {
		return err
	}

	l, err := ledger.New(ledger.Path(c.WorkspaceRoot()))
	if err != nil {
		logging.Warn(fmt.Sprintf("Run ledger disabled: %v", err))
	} else {
		defer l.Close()
		c.Ledger = l
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	handler := sighandler.Setup(ctx, cancel, func(sig os.Signal) {
		logging.Warn(fmt.Sprintf("Received %s, interrupting current plan", sig))
	})
	defer handler.Stop()

	banner.PrintBatchBanner(opts.ProjectID, c.Config.ProjectRoot, c.Queue.Root(), opts.Once)

	watcher := queue.NewWatcher(c.Queue)
	c.Wake = watcher.Wake()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watchQueue(gctx, watcher, opts.Sleep)
	})
	g.Go(func() error {
		// Stop the watcher once the controller is done, e.g. after --once.
		defer cancel()
		return c.Start(gctx)
	})
	err = g.Wait()

	if handler.Interrupted() {
		banner.PrintInterruptedBanner(handler.Signal())
		return &exitError{code: exitcode.Interrupted}
	}
	if errors.Is(err, batch.ErrPlanFailed) {
		return &exitError{code: exitcode.Error, err: err}
	}
	return err
}

// watchQueue runs w until ctx is done. A watch that cannot be set up is
// not fatal: the controller still polls every interval.
func watchQueue(ctx context.Context, w *queue.Watcher, interval time.Duration) error {
	if err := w.Start(ctx); err != nil {
		if interval <= 0 {
			interval = schedule.DefaultInterval
		}
		logging.Warn(fmt.Sprintf("Queue watcher disabled (%v); polling every %s", err, interval))
	}
	return nil
}
