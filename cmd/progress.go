package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/kozaktomas/library-sorter/internal/supervisor"
)

// progressReporter renders supervisor progress as a progress bar on stderr,
// starting a new bar whenever the phase or total changes.
type progressReporter struct {
	quiet bool

	mu    sync.Mutex
	bar   *progressbar.ProgressBar
	phase string
	total int
}

// phaseOf returns the "phase" part of a "phase: detail" message.
func phaseOf(msg string) string {
	phase, _, _ := strings.Cut(msg, ": ")
	return phase
}

func (r *progressReporter) observe(p supervisor.Progress) {
	if r.quiet {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	phase := phaseOf(p.Message)
	total := p.Total
	if p.Indeterminate {
		total = -1
	}
	if r.bar == nil || phase != r.phase || total != r.total {
		r.finishLocked()
		r.phase, r.total = phase, total
		r.bar = newBar(total, phase)
	}

	if p.Indeterminate {
		r.bar.Describe(p.Message)
		_ = r.bar.Add(1)
		return
	}
	_ = r.bar.Set(p.Processed)
}

func (r *progressReporter) finish() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishLocked()
}

func (r *progressReporter) finishLocked() {
	if r.bar == nil {
		return
	}
	_ = r.bar.Finish()
	fmt.Fprintln(os.Stderr)
	r.bar = nil
}

func newBar(total int, description string) *progressbar.ProgressBar {
	if total < 0 {
		return progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(description),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Minutes())/60, int(d.Minutes())%60)
}
