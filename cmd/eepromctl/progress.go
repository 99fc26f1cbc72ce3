package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/moffa90/go-28c256/programmer"
)

// ProgressBar renders a visual progress bar
type ProgressBar struct {
	width int
}

func NewProgressBar(width int) *ProgressBar {
	return &ProgressBar{width: width}
}

func (pb *ProgressBar) Render(percentage float64) string {
	filled := int(float64(pb.width) * percentage / 100.0)
	if filled > pb.width {
		filled = pb.width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", pb.width-filled)
	return fmt.Sprintf("[%s] %5.1f%%", bar, percentage)
}

// progressLine formats one progress update, with an ETA once there is
// something to extrapolate from.
func (pb *ProgressBar) progressLine(p programmer.Progress) string {
	var eta time.Duration
	if p.Percentage > 0 {
		total := time.Duration(float64(p.Elapsed) * 100.0 / p.Percentage)
		eta = total - p.Elapsed
	}

	line := fmt.Sprintf("%-10s %s | 0x%04X/0x%04X | Elapsed: %s | ETA: %s",
		p.Operation, pb.Render(p.Percentage), p.Done, p.Total,
		p.Elapsed.Round(time.Second), eta.Round(time.Second))
	if p.Operation == programmer.OpWrite {
		line += fmt.Sprintf(" | %d written, %d skipped", p.Written, p.Skipped)
	}
	return line
}

// Draw overwrites the current terminal line with p.
func (pb *ProgressBar) Draw(w io.Writer, p programmer.Progress) {
	fmt.Fprint(w, "\r\033[K"+pb.progressLine(p))
}
