package pipeline

import (
	"sync"

	"github.com/nao1215/spidey/internal/model"
	"github.com/nao1215/spidey/internal/report"
)

// Run carries one crawl session through the pipeline. Steps read the
// session and attach what they persisted.
type Run struct {
	Session *model.Session

	// SessionID is the database row of the session, 0 until saved.
	SessionID int64

	// Downloads collects every attempted file save.
	Downloads []model.Download

	// Graphs collects the graph files written.
	Graphs []string

	// PerformedSteps lists the names of the steps that ran.
	PerformedSteps []string

	// Err is the error of the last failed step, if any.
	Err error

	mu sync.Mutex
}

// NewRun wraps session for a pipeline execution.
func NewRun(session *model.Session) *Run {
	return &Run{Session: session}
}

// AddDownloads appends download records.
func (r *Run) AddDownloads(downloads ...model.Download) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Downloads = append(r.Downloads, downloads...)
}

// AddGraph records a written graph file.
func (r *Run) AddGraph(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Graphs = append(r.Graphs, path)
}

// Report summarizes the run for the report writers.
func (r *Run) Report() *report.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return report.NewReport(r.Session, r.Downloads, r.Graphs)
}
