package programmer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/moffa90/go-28c256/memimage"
)

// Job is an operation running in the background.
//
// Example:
//
//	job, err := prog.Start(ctx, programmer.OpWrite, img)
//	if err != nil {
//	    return err
//	}
//	for {
//	    select {
//	    case p := <-job.Updates():
//	        fmt.Printf("\r%5.1f%%", p.Percentage)
//	    case <-job.Done():
//	        res := job.Result()
//	        fmt.Println(res.Status)
//	        return res.Err
//	    }
//	}
type Job struct {
	op      Operation
	cancel  context.CancelFunc
	done    chan struct{}
	updates chan Progress

	mu       sync.Mutex
	progress Progress
	result   Result
}

// Start runs op in a new goroutine. It fails with ErrBusy if another
// operation is running. img is required for read, verify and write; a read
// replaces its contents when the job succeeds.
func (p *Programmer) Start(ctx context.Context, op Operation, img *memimage.Image) (*Job, error) {
	if !p.mu.TryLock() {
		return nil, fmt.Errorf("%s: %w", op, ErrBusy)
	}

	ctx, cancel := context.WithCancel(ctx)
	j := &Job{
		op:       op,
		cancel:   cancel,
		done:     make(chan struct{}),
		updates:  make(chan Progress, 1),
		progress: Progress{Operation: op, Total: Total},
	}

	go func() {
		defer p.mu.Unlock()
		defer cancel()

		start := time.Now()
		sum, err := p.exec(ctx, op, img, j.publish, nil)

		j.mu.Lock()
		j.result = Result{
			Operation: op,
			Status:    Classify(err),
			Err:       err,
			Summary:   sum,
			Elapsed:   time.Since(start),
		}
		j.mu.Unlock()
		close(j.done)
	}()

	return j, nil
}

// publish records p and offers it on the updates channel, replacing an
// update the consumer has not picked up yet.
func (j *Job) publish(p Progress) {
	j.mu.Lock()
	j.progress = p
	j.mu.Unlock()

	for {
		select {
		case j.updates <- p:
			return
		default:
		}
		select {
		case <-j.updates:
		default:
		}
	}
}

// Operation returns the operation the job runs.
func (j *Job) Operation() Operation { return j.op }

// Done is closed when the job has finished.
func (j *Job) Done() <-chan struct{} { return j.done }

// Updates delivers progress. Only the latest update is kept when the
// consumer falls behind. The channel is never closed; select on Done.
func (j *Job) Updates() <-chan Progress { return j.updates }

// Progress returns the most recent progress.
func (j *Job) Progress() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

// Result returns the outcome. It is the zero Result until Done is closed.
func (j *Job) Result() Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Wait blocks until the job finishes or ctx is done.
func (j *Job) Wait(ctx context.Context) (Result, error) {
	select {
	case <-j.done:
		return j.Result(), nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Cancel stops the job. The operation returns within one read window and
// the job finishes with StatusCancelled.
func (j *Job) Cancel() { j.cancel() }
