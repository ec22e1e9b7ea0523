package render

import (
	"fmt"
	"io"
	"sync"

	"github.com/pithecene-io/mwi/job"
)

// ProgressPrinter renders job notifications as plain text lines, one per
// distinct update. It is the non-TUI renderer for submit.
type ProgressPrinter struct {
	mu         sync.Mutex
	out        io.Writer
	printed    bool
	lastPct    float64
	lastStatus string
}

// NewProgressPrinter creates a printer writing to out.
func NewProgressPrinter(out io.Writer) *ProgressPrinter {
	return &ProgressPrinter{out: out}
}

// OnUpdate implements job.Observer. Repeated identical updates are skipped.
func (p *ProgressPrinter) OnUpdate(percent float64, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed && percent == p.lastPct && status == p.lastStatus {
		return
	}
	p.printed = true
	p.lastPct, p.lastStatus = percent, status
	fmt.Fprintf(p.out, "[%3.0f%%] %s\n", percent, status)
}

// OnSuccess implements job.Observer.
func (p *ProgressPrinter) OnSuccess(downloadURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "[100%%] done: %s\n", downloadURL)
}

// OnFailure implements job.Observer.
func (p *ProgressPrinter) OnFailure(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "failed: %s\n", message)
}

var _ job.Observer = (*ProgressPrinter)(nil)
