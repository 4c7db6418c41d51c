package output

// Event is a lifecycle record for NDJSON streaming output.
//
// In NDJSON mode, sinks emit Events (one JSON object per line):
// - run.started
// - repo.finished (one per repository, carrying a RepoResult)
// - run.finished (carrying the RunSummary and exit code)
//
// JSON mode remains an aggregate of RepoResult values.
type Event struct {
	Type   string `json:"type"`
	RunID  string `json:"run_id,omitempty"`
	Parent string `json:"parent,omitempty"`
	Branch string `json:"branch,omitempty"`
	*RepoResult
	Summary  *RunSummary `json:"summary,omitempty"`
	ExitCode int         `json:"exit_code,omitempty"`
}

const (
	EventRunStarted   = "run.started"
	EventRepoFinished = "repo.finished"
	EventRunFinished  = "run.finished"
)

// RepoResult is the serialized outcome for one repository path.
type RepoResult struct {
	Path       string `json:"path"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type RunSummary struct {
	Total      int   `json:"total"`
	Updated    int   `json:"updated"`
	Skipped    int   `json:"skipped"`
	Failed     int   `json:"failed"`
	DurationMS int64 `json:"duration_ms"`
}

func eventFromResult(r RepoResult) Event {
	return Event{Type: EventRepoFinished, RepoResult: &r}
}

// resultOf returns the RepoResult carried by v, if any.
func resultOf(v any) (RepoResult, bool) {
	switch t := v.(type) {
	case RepoResult:
		return t, true
	case Event:
		if t.Type == EventRepoFinished && t.RepoResult != nil {
			return *t.RepoResult, true
		}
	}
	return RepoResult{}, false
}
