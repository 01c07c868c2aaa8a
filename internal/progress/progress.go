// Package progress folds C-MOVE status reports into a final outcome.
package progress

import (
	"fmt"
	"sync"

	"github.com/aotal/dicom-api-mcp-project/internal/models"
	"github.com/aotal/dicom-api-mcp-project/pkg/dimse"
)

// Report is one status message observed during a retrieve. The counters
// are cumulative as sent by the remote node; a negative counter means the
// message did not carry that field.
type Report struct {
	Status    uint16
	Completed int
	Failed    int
	Warning   int
}

// Aggregator accumulates reports from a single retrieve. Counters only
// move forward, so a report that restates a lower cumulative value never
// regresses the totals. Safe for concurrent use.
type Aggregator struct {
	mu         sync.Mutex
	seen       bool
	lastStatus uint16
	completed  int
	failed     int
	warning    int
}

// Observe folds one report into the aggregate.
func (a *Aggregator) Observe(r Report) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = true
	a.lastStatus = r.Status
	if r.Completed > a.completed {
		a.completed = r.Completed
	}
	if r.Failed > a.failed {
		a.failed = r.Failed
	}
	if r.Warning > a.warning {
		a.warning = r.Warning
	}
}

// Outcome renders the aggregate as a retrieve outcome. With no reports
// observed the state is UNKNOWN and the counters are zero.
func (a *Aggregator) Outcome(level models.QueryLevel) models.RetrieveOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := models.RetrieveOutcome{
		State:     models.RetrieveUnknown,
		Level:     level,
		Completed: a.completed,
		Failed:    a.failed,
		Warning:   a.warning,
	}
	if !a.seen {
		return out
	}

	out.Status = fmt.Sprintf("0x%04X", a.lastStatus)
	switch dimse.ClassifyStatus(a.lastStatus) {
	case dimse.ClassSuccess:
		if a.failed > 0 || a.warning > 0 {
			out.State = models.RetrievePartial
		} else {
			out.State = models.RetrieveSuccess
		}
	case dimse.ClassWarning:
		out.State = models.RetrievePartial
	case dimse.ClassFailure:
		out.State = models.RetrieveFailure
	default:
		// A pending status as the last word means the stream was cut.
		out.State = models.RetrieveUnknown
	}
	return out
}
