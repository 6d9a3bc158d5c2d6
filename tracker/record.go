package tracker

import (
	"time"

	"github.com/arbiterhq/arbiter/validation"
)

// Status is the lifecycle state of a tracked decision.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDecided   Status = "decided"
	StatusValidated Status = "validated"
	StatusCompleted Status = "completed"
)

// DecisionRecord tracks one pipeline run's decision lifecycle. The states
// advance linearly: pending, decided, validated, completed.
type DecisionRecord struct {
	PipelineID  string                       `json:"pipeline_id"`
	Context     map[string]string            `json:"context,omitempty"`
	Status      Status                       `json:"status"`
	RequestedAt time.Time                    `json:"requested_at"`
	DecidedAt   *time.Time                   `json:"decided_at,omitempty"`
	ValidatedAt *time.Time                   `json:"validated_at,omitempty"`
	CompletedAt *time.Time                   `json:"completed_at,omitempty"`
	Decision    *validation.Decision         `json:"decision,omitempty"`
	Validation  *validation.ValidationResult `json:"validation,omitempty"`
	Result      string                       `json:"result,omitempty"`
}

func (r *DecisionRecord) clone() *DecisionRecord {
	out := *r
	if r.Context != nil {
		out.Context = make(map[string]string, len(r.Context))
		for k, v := range r.Context {
			out.Context[k] = v
		}
	}
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		out.DecidedAt = &t
	}
	if r.ValidatedAt != nil {
		t := *r.ValidatedAt
		out.ValidatedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	if r.Decision != nil {
		d := *r.Decision
		out.Decision = &d
	}
	if r.Validation != nil {
		v := *r.Validation
		out.Validation = &v
	}
	return &out
}
