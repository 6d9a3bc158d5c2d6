// Package validation checks decisions before they are acted on. Three
// independent checks run concurrently against the same immutable decision
// and context snapshot; validation always returns a result, never an error.
package validation

// Decision is a proposed action on an item, produced by a pipeline run.
type Decision struct {
	PipelineID string            `json:"pipelineId"`
	ItemID     string            `json:"itemId"`
	Action     string            `json:"action"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Requires   []string          `json:"requires,omitempty"`
	Conflicts  []string          `json:"conflicts,omitempty"`
}

// Context is the immutable environment snapshot a decision is validated
// against. Available lists capabilities currently present; Active lists
// capabilities currently in use and therefore conflicting.
type Context struct {
	UserID      string            `json:"userId"`
	ContextType string            `json:"contextType"`
	Available   []string          `json:"available,omitempty"`
	Active      []string          `json:"active,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name      string   `json:"name"`
	HasIssues bool     `json:"hasIssues"`
	Issues    []string `json:"issues,omitempty"`
	Score     float64  `json:"score,omitempty"`
}

// ValidationResult aggregates the three checks. HasIssues is the OR of the
// per-check verdicts.
type ValidationResult struct {
	HasIssues   bool          `json:"hasIssues"`
	Issues      []string      `json:"issues"`
	Checks      []CheckResult `json:"checks"`
	ImpactScore float64       `json:"impactScore"`
}
