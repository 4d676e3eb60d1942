package model

import "time"

// Visit is the outcome of processing one frontier entry.
type Visit struct {
	// URL is the normalized URL of the entry.
	URL string `json:"url"`

	// Depth is the number of link hops from a seed.
	Depth int `json:"depth"`

	// Accepted is true when the page was written to the corpus.
	Accepted bool `json:"accepted"`

	// Reason is set for rejected entries.
	Reason RejectReason `json:"reason"`

	// StatusCode is the HTTP status, zero when no response was received.
	StatusCode int `json:"status_code,omitempty"`

	// ContentLength is the number of characters of extracted text.
	ContentLength int `json:"content_length,omitempty"`

	// Error holds the rejection detail for logs and reports.
	Error string `json:"error,omitempty"`
}

// RunSummary aggregates the results of one crawl run.
type RunSummary struct {
	// RunID uniquely identifies the run in the history database.
	RunID string `json:"run_id"`

	// Source is the configured source name, empty for ad-hoc seeds.
	Source string `json:"source,omitempty"`

	// StartedAt and FinishedAt bracket the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// OutputPath is the corpus file the run appended to.
	OutputPath string `json:"output_path"`

	// Seeds are the seed URLs after normalization and deduplication.
	Seeds []string `json:"seeds"`

	// MaxPages and MaxDepth echo the run limits.
	MaxPages int `json:"max_pages"`
	MaxDepth int `json:"max_depth"`

	// Persisted is the number of URLs already in the corpus at start.
	Persisted int `json:"persisted"`

	// Saved is the number of records written during this run.
	Saved int `json:"saved"`

	// Rejections counts discarded entries per reason.
	Rejections map[RejectReason]int `json:"rejections"`

	// Pending is the number of frontier entries left unprocessed.
	Pending int `json:"pending"`

	// Interrupted is true when the run was cancelled before a natural end.
	Interrupted bool `json:"interrupted,omitempty"`

	// Visits lists every processed entry in processing order.
	Visits []Visit `json:"visits"`
}

// NewRunSummary creates an empty summary for a run.
func NewRunSummary(runID, outputPath string) *RunSummary {
	return &RunSummary{
		RunID:      runID,
		OutputPath: outputPath,
		StartedAt:  time.Now(),
		Seeds:      make([]string, 0),
		Rejections: make(map[RejectReason]int),
		Visits:     make([]Visit, 0),
	}
}

// Record appends a visit and updates the counters.
func (s *RunSummary) Record(v Visit) {
	s.Visits = append(s.Visits, v)
	if v.Accepted {
		s.Saved++
		return
	}
	s.Rejections[v.Reason]++
}

// Rejected returns the total number of rejected entries.
func (s *RunSummary) Rejected() int {
	total := 0
	for _, n := range s.Rejections {
		total += n
	}
	return total
}

// Duration returns how long the run took.
// It returns zero while the run is still in progress.
func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// AcceptedURLs returns the URLs saved during the run in order.
func (s *RunSummary) AcceptedURLs() []string {
	urls := make([]string, 0, s.Saved)
	for _, v := range s.Visits {
		if v.Accepted {
			urls = append(urls, v.URL)
		}
	}
	return urls
}
