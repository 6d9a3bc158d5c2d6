// Package pipeline runs the decision pipeline: admission, candidate
// generation, ranking, validation and tracking. Runs execute concurrently on
// a bounded worker pool; stages within one run execute in strict order.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/arbiterhq/arbiter/governor"
	"github.com/arbiterhq/arbiter/messaging"
	"github.com/arbiterhq/arbiter/perf"
	"github.com/arbiterhq/arbiter/recommend"
	"github.com/arbiterhq/arbiter/registry"
	"github.com/arbiterhq/arbiter/staging"
	"github.com/arbiterhq/arbiter/tracker"
	"github.com/arbiterhq/arbiter/validation"
)

const (
	resultSuccess          = "success"
	resultFailed           = "failed"
	resultValidationFailed = "validation_failed"
)

// Config tunes the coordinator's worker pool and staging behavior.
type Config struct {
	Workers    int
	QueueDepth int
	RunTimeout time.Duration

	// StagingThreshold is the encoded payload size above which candidate
	// sets are offloaded to the staging store (default: 256 KiB)
	StagingThreshold int64

	// DefaultRequirements applies when a run states no requirements
	DefaultRequirements map[governor.Resource]int64

	// Consumer is the module outbound messages are addressed to
	Consumer registry.ModuleIdentifier
}

// Coordinator wires the pipeline components together. All collaborators are
// injected; the coordinator owns only the worker pool and the event stream.
type Coordinator struct {
	id         registry.ModuleIdentifier
	governor   *governor.Governor
	generators []recommend.Generator
	ranker     *recommend.Ranker
	validator  *validation.Validator
	tracker    *tracker.Tracker
	perf       *perf.Tracker
	broker     messaging.Broker
	staging    staging.Store
	consumer   registry.ModuleIdentifier

	threshold int64
	defaults  map[governor.Resource]int64

	pool      *pool
	events    chan RunEvent
	closeOnce sync.Once
	log       *logrus.Entry
}

// New creates a Coordinator. staging may be nil to disable payload
// offloading; broker may be nil to disable outbound messages.
func New(
	cfg Config,
	gov *governor.Governor,
	generators []recommend.Generator,
	ranker *recommend.Ranker,
	validator *validation.Validator,
	track *tracker.Tracker,
	perfTracker *perf.Tracker,
	broker messaging.Broker,
	store staging.Store,
	log *logrus.Entry,
) *Coordinator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	entry := log.WithField("component", "coordinator")

	if cfg.StagingThreshold <= 0 {
		cfg.StagingThreshold = 256 * 1024
	}
	if len(cfg.DefaultRequirements) == 0 {
		cfg.DefaultRequirements = map[governor.Resource]int64{governor.ResourceSlots: 1}
	}
	if cfg.Consumer.IsZero() {
		cfg.Consumer = registry.NewModuleIdentifier("decision-consumer", registry.ComponentHandler, "handle")
	}

	c := &Coordinator{
		id:         registry.NewModuleIdentifier("coordinator", registry.ComponentService, "run"),
		governor:   gov,
		generators: generators,
		ranker:     ranker,
		validator:  validator,
		tracker:    track,
		perf:       perfTracker,
		broker:     broker,
		staging:    store,
		consumer:   cfg.Consumer,
		threshold:  cfg.StagingThreshold,
		defaults:   cfg.DefaultRequirements,
		events:     make(chan RunEvent, 32),
		log:        entry,
	}
	c.pool = newPool(cfg.Workers, cfg.QueueDepth, cfg.RunTimeout, c.executeRun, entry)
	return c
}

// Start launches the worker pool.
func (c *Coordinator) Start() {
	c.pool.start()
}

// Stop shuts the pool down and finalizes runs that were admitted but never
// executed so they do not disappear silently from tracking.
func (c *Coordinator) Stop() {
	c.pool.stop()
	for _, r := range c.pool.drain() {
		c.finishRun(r, resultFailed, "coordinator shut down before execution", 0)
	}
	c.closeOnce.Do(func() {
		close(c.events)
	})
}

// Events exposes fire-and-forget run completion notifications. Slow
// consumers miss events.
func (c *Coordinator) Events() <-chan RunEvent {
	return c.events
}

// SubmitRun admits and enqueues a run. Admission happens first: a run the
// governor refuses is denied immediately with ErrResourceDenied, never
// queued. On success the run's pipeline ID is returned and execution
// proceeds asynchronously.
func (c *Coordinator) SubmitRun(ctx context.Context, rc RunContext) (string, error) {
	requirements := rc.Requirements
	if len(requirements) == 0 {
		requirements = c.defaults
	}

	alloc, err := c.governor.TryAcquire(requirements)
	if err != nil {
		var denied *governor.DeniedError
		if errors.As(err, &denied) {
			return "", fmt.Errorf("%w: %s", ErrResourceDenied, denied.Error())
		}
		return "", err
	}

	pipelineID := uuid.NewString()

	trackingContext := map[string]string{
		"user_id":      rc.UserID,
		"context_type": rc.ContextType,
	}
	for k, v := range rc.Metadata {
		trackingContext[k] = v
	}
	c.tracker.TrackRequest(pipelineID, trackingContext)

	source := rc.Metadata["source"]
	if source == "" {
		source = "api"
	}
	c.perf.TrackStart(pipelineID, source, estimateSize(rc))

	r := &run{pipelineID: pipelineID, ctx: rc, allocation: alloc}
	if err := c.pool.submit(ctx, r); err != nil {
		c.finishRun(r, resultFailed, "submission aborted: "+err.Error(), 0)
		return "", err
	}

	c.log.WithFields(logrus.Fields{
		"pipeline_id":  pipelineID,
		"user_id":      rc.UserID,
		"context_type": rc.ContextType,
	}).Info("Run submitted")

	return pipelineID, nil
}

// executeRun walks one run through the pipeline stages. Every path releases
// the allocation and leaves terminal tracker and perf updates.
func (c *Coordinator) executeRun(ctx context.Context, r *run) {
	defer func() {
		if rec := recover(); rec != nil {
			c.log.WithField("pipeline_id", r.pipelineID).
				Errorf("Run panicked: %v", rec)
			c.finishRun(r, resultFailed, fmt.Sprintf("internal error: %v", rec), 0)
		}
	}()

	candidates := c.generateAll(ctx, r)
	if len(candidates) == 0 {
		c.publishError(ctx, r, ErrNoCandidates.Error(), nil, true)
		c.finishRun(r, resultFailed, ErrNoCandidates.Error(), 0)
		return
	}

	ranked, err := c.ranker.Rank(ctx, candidates, r.ctx.UserID, r.ctx.ContextType, r.ctx.Metadata)
	if err != nil {
		c.publishError(ctx, r, "ranking failed: "+err.Error(), nil, false)
		c.finishRun(r, resultFailed, "ranking failed: "+err.Error(), 0)
		return
	}
	if len(ranked) == 0 {
		c.publishError(ctx, r, ErrNoCandidates.Error(), nil, true)
		c.finishRun(r, resultFailed, ErrNoCandidates.Error(), 0)
		return
	}

	top := ranked[0]
	decision := validation.Decision{
		PipelineID: r.pipelineID,
		ItemID:     top.ItemID,
		Action:     "recommend",
		Parameters: map[string]string{
			"user_id":  r.ctx.UserID,
			"strategy": top.SourceStrategy,
		},
	}
	c.tracker.TrackDecision(r.pipelineID, decision)

	snapshot := validation.Context{
		UserID:      r.ctx.UserID,
		ContextType: r.ctx.ContextType,
		Metadata:    r.ctx.Metadata,
	}
	result := c.validator.Validate(ctx, decision, snapshot)
	c.tracker.TrackValidation(r.pipelineID, result)

	if result.HasIssues {
		c.publishError(ctx, r, ErrValidationFailed.Error(), result.Issues, false)
		c.finishRun(r, resultValidationFailed,
			(&ValidationError{PipelineID: r.pipelineID, Issues: result.Issues}).Error(),
			len(ranked))
		return
	}

	if err := c.publishRecommendation(ctx, r, ranked); err != nil {
		c.log.WithField("pipeline_id", r.pipelineID).WithError(err).
			Warn("Publishing recommendation failed")
	}
	c.finishRun(r, resultSuccess, "", len(ranked))
}

// generateAll fans out every generator and merges their filtered output
// after all have finished. A failing generator contributes an empty slice.
func (c *Coordinator) generateAll(ctx context.Context, r *run) []recommend.Candidate {
	results := make([][]recommend.Candidate, len(c.generators))

	var wg sync.WaitGroup
	for i, gen := range c.generators {
		wg.Add(1)
		go func(i int, gen recommend.Generator) {
			defer wg.Done()

			candidates, err := gen.Generate(ctx, r.ctx.UserID, r.ctx.ContextType, r.ctx.Metadata)
			if err != nil {
				c.log.WithFields(logrus.Fields{
					"pipeline_id": r.pipelineID,
					"strategy":    gen.Name(),
				}).WithError(err).Warn("Generator failed, contributing no candidates")
				return
			}

			filtered, err := gen.Filter(ctx, candidates, r.ctx.UserID, r.ctx.ContextType, r.ctx.Metadata)
			if err != nil {
				c.log.WithFields(logrus.Fields{
					"pipeline_id": r.pipelineID,
					"strategy":    gen.Name(),
				}).WithError(err).Warn("Filter failed, keeping unfiltered candidates")
				filtered = candidates
			}
			results[i] = filtered
		}(i, gen)
	}
	wg.Wait()

	var merged []recommend.Candidate
	for _, part := range results {
		merged = append(merged, part...)
	}
	return merged
}

// finishRun leaves the terminal tracker and perf updates, releases the
// allocation and emits a completion event. Failure is never silent: the
// result string always carries a reason.
func (c *Coordinator) finishRun(r *run, status, reason string, candidates int) {
	result := status
	if reason != "" {
		result = status + ": " + reason
	}
	c.tracker.TrackCompletion(r.pipelineID, result)

	perfStatus := status
	if status == resultValidationFailed {
		perfStatus = resultFailed
	}
	c.perf.TrackFinish(r.pipelineID, perfStatus)

	c.governor.Release(r.allocation)

	event := RunEvent{
		PipelineID: r.pipelineID,
		Status:     status,
		Reason:     reason,
		Candidates: candidates,
		FinishedAt: time.Now(),
	}
	select {
	case c.events <- event:
	default:
	}

	c.log.WithFields(logrus.Fields{
		"pipeline_id": r.pipelineID,
		"status":      status,
		"candidates":  candidates,
	}).Info("Run finished")
}

// publishRecommendation sends the ranked list as a recommendation message.
// Payloads above the staging threshold are offloaded and the message carries
// only the handle.
func (c *Coordinator) publishRecommendation(ctx context.Context, r *run, ranked []recommend.Candidate) error {
	if c.broker == nil {
		return nil
	}

	items := make([]messaging.RecommendedItem, 0, len(ranked))
	for _, candidate := range ranked {
		items = append(items, messaging.RecommendedItem{
			ItemID:        candidate.ItemID,
			CombinedScore: scoreOrZero(candidate.CombinedScore),
			Category:      candidate.Category,
		})
	}

	payload := messaging.RecommendationPayload{
		PipelineID:  r.pipelineID,
		UserID:      r.ctx.UserID,
		ContextType: r.ctx.ContextType,
		Items:       items,
	}

	if c.staging != nil {
		encoded, err := json.Marshal(items)
		if err == nil && int64(len(encoded)) > c.threshold {
			handle, err := c.staging.Put(ctx, r.pipelineID, encoded)
			if err != nil {
				return fmt.Errorf("staging candidate set: %w", err)
			}
			handleJSON, err := json.Marshal(handle)
			if err != nil {
				return fmt.Errorf("encoding staging handle: %w", err)
			}
			payload.Items = nil
			payload.StagedAt = string(handleJSON)
		}
	}

	msg := messaging.NewMessage(c.id, messaging.MessageTypeRecommendation).WithTarget(c.consumer)
	if err := msg.SetContent(payload); err != nil {
		return err
	}
	msg.SetStatus(messaging.StatusCompleted)
	return c.broker.Publish(ctx, msg)
}

// publishError sends a warn-level error message about a failed run.
func (c *Coordinator) publishError(ctx context.Context, r *run, reason string, issues []string, recoverable bool) {
	if c.broker == nil {
		return
	}

	msg := messaging.NewMessage(c.id, messaging.MessageTypeError).WithTarget(c.consumer)
	payload := messaging.ErrorPayload{
		PipelineID:  r.pipelineID,
		Reason:      reason,
		Issues:      issues,
		Recoverable: recoverable,
	}
	if err := msg.SetContent(payload); err != nil {
		c.log.WithError(err).Warn("Encoding error payload failed")
		return
	}
	msg.SetStatus(messaging.StatusFailed)
	if err := c.broker.Publish(ctx, msg); err != nil {
		c.log.WithField("pipeline_id", r.pipelineID).WithError(err).
			Warn("Publishing error message failed")
	}
}

func estimateSize(rc RunContext) int64 {
	data, err := json.Marshal(rc)
	if err != nil {
		return 0
	}
	return int64(len(data))
}

func scoreOrZero(score *float64) float64 {
	if score == nil {
		return 0
	}
	return *score
}
