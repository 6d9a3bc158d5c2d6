// Package perf tracks pipeline throughput and latency. All shared state
// lives behind one mutex per tracker instance so concurrent start/finish
// events can never interleave on the counters.
package perf

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// StatusSuccess is the finish status counted as successful.
const StatusSuccess = "success"

// PipelineRecord is the per-pipeline measurement. Finished pipelines carry a
// duration and final status.
type PipelineRecord struct {
	PipelineID  string        `json:"pipeline_id"`
	Source      string        `json:"source"`
	PayloadSize int64         `json:"payload_size"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  *time.Time    `json:"finished_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Status      string        `json:"status,omitempty"`
}

// Summary is a consistent snapshot of the tracker's state.
type Summary struct {
	TotalPipelines        int64                      `json:"total_pipelines"`
	SuccessfulPipelines   int64                      `json:"successful_pipelines"`
	TotalDataProcessed    int64                      `json:"total_data_processed"`
	AverageProcessingTime time.Duration              `json:"average_processing_time"`
	Pipelines             map[string]*PipelineRecord `json:"pipelines"`
}

// Tracker accumulates pipeline performance metrics.
type Tracker struct {
	mu sync.Mutex

	totalPipelines      int64
	successfulPipelines int64
	totalDataProcessed  int64
	finishedPipelines   int64
	averageProcessing   time.Duration

	pipelines map[string]*PipelineRecord

	metrics *Metrics
	log     *logrus.Entry
}

// New creates a Tracker. metrics may be nil.
func New(metrics *Metrics, log *logrus.Entry) *Tracker {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Tracker{
		pipelines: make(map[string]*PipelineRecord),
		metrics:   metrics,
		log:       log.WithField("component", "perf"),
	}
}

// TrackStart records a pipeline's start time, source tag and payload size
// estimate, and bumps the global counters.
func (t *Tracker) TrackStart(pipelineID, source string, payloadSize int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalPipelines++
	t.totalDataProcessed += payloadSize
	t.pipelines[pipelineID] = &PipelineRecord{
		PipelineID:  pipelineID,
		Source:      source,
		PayloadSize: payloadSize,
		StartedAt:   time.Now(),
	}

	if t.metrics != nil {
		t.metrics.IncStarted()
		t.metrics.AddDataProcessed(payloadSize)
	}
}

// TrackFinish computes the pipeline's duration and folds it into the running
// mean. A finish with no matching start is a warn-level no-op: a duration
// against a missing start time would corrupt the mean.
func (t *Tracker) TrackFinish(pipelineID, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, exists := t.pipelines[pipelineID]
	if !exists || record.FinishedAt != nil {
		t.log.WithFields(logrus.Fields{
			"pipeline_id": pipelineID,
			"status":      status,
		}).Warn("Finish event without matching start ignored")
		return
	}

	now := time.Now()
	duration := now.Sub(record.StartedAt)
	record.FinishedAt = &now
	record.Duration = duration
	record.Status = status

	t.finishedPipelines++
	n := t.finishedPipelines
	t.averageProcessing = time.Duration(
		(int64(t.averageProcessing)*(n-1) + int64(duration)) / n,
	)

	if status == StatusSuccess {
		t.successfulPipelines++
	}

	if t.metrics != nil {
		t.metrics.ObserveDuration(status, duration)
	}
}

// GetSummary returns a deep-copied snapshot taken under the lock.
func (t *Tracker) GetSummary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	pipelines := make(map[string]*PipelineRecord, len(t.pipelines))
	for id, record := range t.pipelines {
		copied := *record
		if record.FinishedAt != nil {
			finished := *record.FinishedAt
			copied.FinishedAt = &finished
		}
		pipelines[id] = &copied
	}

	return Summary{
		TotalPipelines:        t.totalPipelines,
		SuccessfulPipelines:   t.successfulPipelines,
		TotalDataProcessed:    t.totalDataProcessed,
		AverageProcessingTime: t.averageProcessing,
		Pipelines:             pipelines,
	}
}
