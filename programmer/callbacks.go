package programmer

import "time"

// Progress contains information about a running operation.
// Passed to ProgressCallback and published by Job.
type Progress struct {
	// Operation is the operation in progress
	Operation Operation

	// Done is the number of bytes covered so far (0 to Total).
	// For erase it advances with time rather than with device output.
	Done int

	// Total is the number of bytes the operation covers: the size of the
	// device, or the length of a ReadRange
	Total int

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// Written and Skipped count records sent and blank chunks skipped by Write
	Written int
	Skipped int

	// Elapsed is the time since the operation started
	Elapsed time.Duration
}

// ProgressCallback is called whenever an operation advances. Progress
// never decreases within one operation. Implementations should return
// quickly to avoid stalling the serial link.
//
// Example:
//
//	prog := programmer.New(port,
//	    programmer.WithProgressCallback(func(p programmer.Progress) {
//	        fmt.Printf("[%s] %d/%d\n", p.Operation, p.Done, p.Total)
//	    }),
//	)
type ProgressCallback func(Progress)

// ResultCallback receives the outcome of every operation.
type ResultCallback func(Result)

// tracker accumulates progress for one operation and forwards it to the
// configured sinks.
type tracker struct {
	op      Operation
	total   int
	start   time.Time
	sinks   []ProgressCallback
	current Progress
}

func newTracker(op Operation, sinks ...ProgressCallback) *tracker {
	t := &tracker{op: op, total: Total, start: time.Now()}
	for _, s := range sinks {
		if s != nil {
			t.sinks = append(t.sinks, s)
		}
	}
	t.current = Progress{Operation: op, Total: Total}
	return t
}

// limit sets the number of bytes the operation covers.
func (t *tracker) limit(total int) {
	t.total = total
	t.current.Total = total
}

// advance moves progress to done bytes. Values below the current position
// are ignored and values above the total are clamped.
func (t *tracker) advance(done int) {
	if done > t.total {
		done = t.total
	}
	if done < t.current.Done {
		return
	}
	t.current.Done = done
	t.report()
}

func (t *tracker) countWritten() { t.current.Written++ }
func (t *tracker) countSkipped() { t.current.Skipped++ }

func (t *tracker) report() {
	t.current.Percentage = float64(t.current.Done) / float64(t.total) * 100
	t.current.Elapsed = time.Since(t.start)
	for _, s := range t.sinks {
		s(t.current)
	}
}
