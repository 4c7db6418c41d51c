package engine

import "time"

type Status string

const (
	StatusUpdated Status = "updated"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// SkipReason explains a StatusSkipped outcome.
type SkipReason string

const (
	ReasonNotARepository SkipReason = "not-a-repository"
	ReasonBare           SkipReason = "bare"
	ReasonDirty          SkipReason = "dirty"
	ReasonBranchNotFound SkipReason = "branch-not-found"
)

// Outcome is the result of updating (or declining to update) one path.
//
// Exactly one Outcome is produced per dispatched path.
type Outcome struct {
	Path     string
	Status   Status
	Reason   SkipReason // set when Status == StatusSkipped
	Err      error      // set when Status == StatusFailed
	Duration time.Duration
}

func (o Outcome) Updated() bool {
	return o.Status == StatusUpdated
}

func updated(path string) Outcome {
	return Outcome{Path: path, Status: StatusUpdated}
}

func skipped(path string, reason SkipReason) Outcome {
	return Outcome{Path: path, Status: StatusSkipped, Reason: reason}
}

func failed(path string, err error) Outcome {
	return Outcome{Path: path, Status: StatusFailed, Err: err}
}

// Summary aggregates the outcomes of one run.
type Summary struct {
	Total    int
	Updated  int
	Skipped  int
	Failed   int
	Duration time.Duration
}

func (s *Summary) add(o Outcome) {
	s.Total++
	switch o.Status {
	case StatusUpdated:
		s.Updated++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
}
