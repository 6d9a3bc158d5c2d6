// Package tracker records the decision lifecycle of pipeline runs. Events
// for unknown pipelines are tolerated as warn-level no-ops since late or
// duplicate events are expected during shutdown and retries.
package tracker

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/arbiterhq/arbiter/validation"
)

// Tracker owns the active and history tables. A single RWMutex guards both;
// the lock is never held across an external call.
type Tracker struct {
	mu      sync.RWMutex
	active  map[string]*DecisionRecord
	history map[string][]*DecisionRecord

	audit *AuditLog
	log   *logrus.Entry
}

// New creates a Tracker. audit may be nil to disable the write-through
// audit log.
func New(audit *AuditLog, log *logrus.Entry) *Tracker {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Tracker{
		active:  make(map[string]*DecisionRecord),
		history: make(map[string][]*DecisionRecord),
		audit:   audit,
		log:     log.WithField("component", "tracker"),
	}
}

// TrackRequest creates a new active record in pending state. A second call
// for the same pipeline ID overwrites the prior pending record; submitting
// one request per pipeline ID at a time is the caller's responsibility.
func (t *Tracker) TrackRequest(pipelineID string, context map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.active[pipelineID]; exists {
		t.log.WithField("pipeline_id", pipelineID).Warn("Overwriting active record for repeated request")
	}
	t.active[pipelineID] = &DecisionRecord{
		PipelineID:  pipelineID,
		Context:     context,
		Status:      StatusPending,
		RequestedAt: time.Now(),
	}
}

// TrackDecision advances an active record to decided. Unknown pipeline IDs
// are ignored with a warning.
func (t *Tracker) TrackDecision(pipelineID string, decision validation.Decision) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, exists := t.active[pipelineID]
	if !exists {
		t.log.WithField("pipeline_id", pipelineID).Warn("Decision event for unknown pipeline ignored")
		return
	}
	now := time.Now()
	record.Status = StatusDecided
	record.DecidedAt = &now
	record.Decision = &decision
}

// TrackValidation advances an active record to validated. Unknown pipeline
// IDs are ignored with a warning.
func (t *Tracker) TrackValidation(pipelineID string, result validation.ValidationResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, exists := t.active[pipelineID]
	if !exists {
		t.log.WithField("pipeline_id", pipelineID).Warn("Validation event for unknown pipeline ignored")
		return
	}
	now := time.Now()
	record.Status = StatusValidated
	record.ValidatedAt = &now
	record.Validation = &result
}

// TrackCompletion finishes an active record: it is stamped completed,
// appended to the pipeline's history and removed from the active table.
// Unknown pipeline IDs are ignored with a warning.
func (t *Tracker) TrackCompletion(pipelineID string, result string) {
	t.mu.Lock()
	record, exists := t.active[pipelineID]
	if !exists {
		t.mu.Unlock()
		t.log.WithField("pipeline_id", pipelineID).Warn("Completion event for unknown pipeline ignored")
		return
	}
	now := time.Now()
	record.Status = StatusCompleted
	record.CompletedAt = &now
	record.Result = result
	t.history[pipelineID] = append(t.history[pipelineID], record)
	delete(t.active, pipelineID)
	audit := t.audit
	snapshot := record.clone()
	t.mu.Unlock()

	if audit != nil {
		if err := audit.Append(snapshot); err != nil {
			t.log.WithField("pipeline_id", pipelineID).WithError(err).Warn("Audit append failed")
		}
	}
}

// GetStatus returns a copy of the active record, or nil when the pipeline
// is unknown or already completed.
func (t *Tracker) GetStatus(pipelineID string) *DecisionRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if record, exists := t.active[pipelineID]; exists {
		return record.clone()
	}
	return nil
}

// GetHistory returns copies of the pipeline's completed records, oldest
// first.
func (t *Tracker) GetHistory(pipelineID string) []*DecisionRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	records := t.history[pipelineID]
	out := make([]*DecisionRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.clone())
	}
	return out
}

// ActiveCount returns the number of currently active records.
func (t *Tracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.active)
}
