package pipeline

import (
	"time"

	"github.com/arbiterhq/arbiter/governor"
)

// RunContext describes one requested pipeline run.
type RunContext struct {
	UserID       string                      `json:"userId"`
	ContextType  string                      `json:"contextType"`
	Metadata     map[string]string           `json:"metadata,omitempty"`
	Requirements map[governor.Resource]int64 `json:"requirements,omitempty"`
}

// RunEvent is a fire-and-forget notification about a finished run.
type RunEvent struct {
	PipelineID string    `json:"pipelineId"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	Candidates int       `json:"candidates"`
	FinishedAt time.Time `json:"finishedAt"`
}

type run struct {
	pipelineID string
	ctx        RunContext
	allocation *governor.Allocation
}
