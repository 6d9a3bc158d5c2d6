package validation

import (
	"context"
	"fmt"
)

const (
	checkConstraints  = "constraints"
	checkDependencies = "dependencies"
	checkImpact       = "impact"
)

// Constraint is one named rule over a decision and its context. Evaluate
// returns a human-readable violation, or empty when the rule holds.
type Constraint struct {
	Name     string
	Evaluate func(Decision, Context) string
}

// ImpactArea is one configured blast-radius dimension. Score must return a
// value in [0,1]; Weight scales the area's contribution.
type ImpactArea struct {
	Name   string
	Weight float64
	Score  func(Decision, Context) float64
}

// checkConstraintsAll evaluates every constraint, never short-circuiting, so
// the full violation set is always reported.
func checkConstraintsAll(ctx context.Context, constraints []Constraint, d Decision, c Context) (CheckResult, error) {
	result := CheckResult{Name: checkConstraints}
	for _, constraint := range constraints {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if constraint.Evaluate == nil {
			return result, fmt.Errorf("constraint %q has no evaluator", constraint.Name)
		}
		if violation := constraint.Evaluate(d, c); violation != "" {
			result.HasIssues = true
			result.Issues = append(result.Issues, fmt.Sprintf("constraint %s: %s", constraint.Name, violation))
		}
	}
	return result, nil
}

// checkDependenciesAll reports required capabilities missing from the
// context and declared conflicts with active capabilities.
func checkDependenciesAll(ctx context.Context, d Decision, c Context) (CheckResult, error) {
	result := CheckResult{Name: checkDependencies}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	available := make(map[string]bool, len(c.Available))
	for _, capability := range c.Available {
		available[capability] = true
	}
	active := make(map[string]bool, len(c.Active))
	for _, capability := range c.Active {
		active[capability] = true
	}

	for _, required := range d.Requires {
		if !available[required] {
			result.HasIssues = true
			result.Issues = append(result.Issues, fmt.Sprintf("missing dependency: %s", required))
		}
	}
	for _, conflict := range d.Conflicts {
		if active[conflict] {
			result.HasIssues = true
			result.Issues = append(result.Issues, fmt.Sprintf("conflicting dependency: %s", conflict))
		}
	}
	return result, nil
}

// checkImpactAll scores every configured area, averages into an overall
// impact score and flags the decision when that score exceeds the threshold
// on its own.
func checkImpactAll(ctx context.Context, areas []ImpactArea, threshold float64, d Decision, c Context) (CheckResult, error) {
	result := CheckResult{Name: checkImpact}
	if len(areas) == 0 {
		return result, nil
	}

	var total float64
	for _, area := range areas {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if area.Score == nil {
			return result, fmt.Errorf("impact area %q has no scorer", area.Name)
		}
		score := area.Score(d, c)
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		weight := area.Weight
		if weight == 0 {
			weight = 1
		}
		total += score * weight
	}

	result.Score = total / float64(len(areas))
	if result.Score > threshold {
		result.HasIssues = true
		result.Issues = append(result.Issues,
			fmt.Sprintf("impact score %.2f exceeds threshold %.2f", result.Score, threshold))
	}
	return result, nil
}
