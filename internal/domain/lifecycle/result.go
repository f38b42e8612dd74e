// internal/domain/lifecycle/result.go
package lifecycle

// EntityError records one entity whose transition failed during a sweep.
type EntityError struct {
	EntityID int64  `json:"entityId"`
	Error    string `json:"error"`
}

// SweepResult aggregates one pass over the candidates of a single kind.
type SweepResult struct {
	Kind       Kind          `json:"kind"`
	Candidates int           `json:"candidates"`
	Updated    int           `json:"updated"`
	Skipped    int           `json:"skipped"`
	Notified   int           `json:"notified"`
	Errors     []EntityError `json:"errors"`
}

// NewSweepResult returns an empty result for kind.
func NewSweepResult(kind Kind) *SweepResult {
	return &SweepResult{Kind: kind, Errors: []EntityError{}}
}
