package validation

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultImpactThreshold flags decisions whose mean impact score exceeds it.
const DefaultImpactThreshold = 0.8

// Validator runs the constraint, dependency and impact checks concurrently
// and aggregates their verdicts. A check error becomes a synthetic issue;
// Validate itself never returns an error.
type Validator struct {
	constraints     []Constraint
	areas           []ImpactArea
	impactThreshold float64
	log             *logrus.Entry
}

// NewValidator creates a Validator. A zero threshold falls back to the
// default of 0.8.
func NewValidator(constraints []Constraint, areas []ImpactArea, impactThreshold float64, log *logrus.Entry) *Validator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if impactThreshold <= 0 {
		impactThreshold = DefaultImpactThreshold
	}
	return &Validator{
		constraints:     constraints,
		areas:           areas,
		impactThreshold: impactThreshold,
		log:             log.WithField("component", "validator"),
	}
}

// Validate runs all three checks against the same decision and context and
// waits for every one before aggregating. The verdict is the OR of the
// per-check verdicts.
func (v *Validator) Validate(ctx context.Context, decision Decision, snapshot Context) ValidationResult {
	type outcome struct {
		index  int
		result CheckResult
		err    error
	}

	checks := []func() (CheckResult, error){
		func() (CheckResult, error) { return checkConstraintsAll(ctx, v.constraints, decision, snapshot) },
		func() (CheckResult, error) { return checkDependenciesAll(ctx, decision, snapshot) },
		func() (CheckResult, error) {
			return checkImpactAll(ctx, v.areas, v.impactThreshold, decision, snapshot)
		},
	}

	outcomes := make([]outcome, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check func() (CheckResult, error)) {
			defer wg.Done()
			result, err := check()
			outcomes[i] = outcome{index: i, result: result, err: err}
		}(i, check)
	}
	wg.Wait()

	aggregated := ValidationResult{Issues: []string{}}
	for _, o := range outcomes {
		result := o.result
		if o.err != nil {
			v.log.WithFields(logrus.Fields{
				"pipeline_id": decision.PipelineID,
				"check":       result.Name,
			}).WithError(o.err).Warn("Validation check failed internally")
			result.HasIssues = true
			result.Issues = append(result.Issues,
				fmt.Sprintf("%s check failed internally: %v", result.Name, o.err))
		}
		if result.Name == checkImpact {
			aggregated.ImpactScore = result.Score
		}
		if result.HasIssues {
			aggregated.HasIssues = true
			aggregated.Issues = append(aggregated.Issues, result.Issues...)
		}
		aggregated.Checks = append(aggregated.Checks, result)
	}

	v.log.WithFields(logrus.Fields{
		"pipeline_id":  decision.PipelineID,
		"item_id":      decision.ItemID,
		"has_issues":   aggregated.HasIssues,
		"issues":       len(aggregated.Issues),
		"impact_score": aggregated.ImpactScore,
	}).Debug("Decision validated")

	return aggregated
}
