package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-28c256/memimage"
	"github.com/moffa90/go-28c256/programmer"
	"github.com/moffa90/go-28c256/transport"
)

// runOperation runs op as a job, drawing progress on stderr until it
// finishes. Ctrl-C cancels the job.
func (a *app) runOperation(cmd *cobra.Command, op programmer.Operation, img *memimage.Image, verify bool) (programmer.Result, error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prog, err := a.newProgrammer(ctx, verify)
	if err != nil {
		return programmer.Result{}, err
	}
	a.log.Debug().Str("port", prog.Path()).Str("op", op.String()).Msg("starting")

	job, err := prog.Start(ctx, op, img)
	if err != nil {
		return programmer.Result{}, err
	}

	out := cmd.ErrOrStderr()
	bar := NewProgressBar(32)
	for done := false; !done; {
		select {
		case p := <-job.Updates():
			bar.Draw(out, p)
		case <-job.Done():
			done = true
		}
	}
	select {
	case p := <-job.Updates():
		bar.Draw(out, p)
	default:
	}
	fmt.Fprintln(out)

	res := job.Result()
	if res.Err != nil {
		return res, explain(fmt.Errorf("%w (%s)", res.Err, res.Status))
	}
	return res, nil
}

// explain adds a hint to port failures the user can act on.
func explain(err error) error {
	switch {
	case transport.IsBusy(err):
		return fmt.Errorf("%w: the port is in use by another program", err)
	case transport.IsDisconnected(err):
		return fmt.Errorf("%w: check that the programmer is plugged in", err)
	default:
		return err
	}
}
