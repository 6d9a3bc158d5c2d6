package validation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateZeroConstraintsClean(t *testing.T) {
	v := NewValidator(nil, nil, 0, nil)

	result := v.Validate(context.Background(), Decision{PipelineID: "p1", Action: "recommend"}, Context{})
	assert.False(t, result.HasIssues)
	assert.Empty(t, result.Issues)
	assert.Len(t, result.Checks, 3)
}

func TestValidateReportsAllConstraintViolations(t *testing.T) {
	constraints := []Constraint{
		{Name: "always-fails-a", Evaluate: func(Decision, Context) string { return "a broke" }},
		{Name: "passes", Evaluate: func(Decision, Context) string { return "" }},
		{Name: "always-fails-b", Evaluate: func(Decision, Context) string { return "b broke" }},
	}
	v := NewValidator(constraints, nil, 0, nil)

	result := v.Validate(context.Background(), Decision{PipelineID: "p1"}, Context{})
	assert.True(t, result.HasIssues)

	// no short-circuit: both violations must be present
	require.Len(t, result.Issues, 2)
	assert.Contains(t, result.Issues[0], "a broke")
	assert.Contains(t, result.Issues[1], "b broke")
}

func TestValidateDependencies(t *testing.T) {
	v := NewValidator(nil, nil, 0, nil)

	decision := Decision{
		PipelineID: "p1",
		Requires:   []string{"catalog", "scoring"},
		Conflicts:  []string{"maintenance"},
	}
	snapshot := Context{
		Available: []string{"catalog"},
		Active:    []string{"maintenance"},
	}

	result := v.Validate(context.Background(), decision, snapshot)
	assert.True(t, result.HasIssues)
	assert.Contains(t, result.Issues, "missing dependency: scoring")
	assert.Contains(t, result.Issues, "conflicting dependency: maintenance")
	assert.NotContains(t, result.Issues, "missing dependency: catalog")
}

func constantArea(name string, score float64) ImpactArea {
	return ImpactArea{Name: name, Weight: 1, Score: func(Decision, Context) float64 { return score }}
}

func TestImpactExactlyAtThresholdDoesNotFlag(t *testing.T) {
	v := NewValidator(nil, []ImpactArea{constantArea("availability", 0.80)}, 0.8, nil)

	result := v.Validate(context.Background(), Decision{PipelineID: "p1"}, Context{})
	assert.False(t, result.HasIssues)
	assert.InDelta(t, 0.80, result.ImpactScore, 1e-9)
}

func TestImpactAboveThresholdFlagsAlone(t *testing.T) {
	v := NewValidator(nil, []ImpactArea{constantArea("availability", 0.81)}, 0.8, nil)

	result := v.Validate(context.Background(), Decision{PipelineID: "p1"}, Context{})
	assert.True(t, result.HasIssues)
	assert.InDelta(t, 0.81, result.ImpactScore, 1e-9)
	require.Len(t, result.Issues, 1)
	assert.Contains(t, result.Issues[0], "impact score")
}

func TestImpactIsMeanAcrossAreas(t *testing.T) {
	areas := []ImpactArea{
		constantArea("availability", 0.4),
		constantArea("latency", 0.8),
	}
	v := NewValidator(nil, areas, 0.8, nil)

	result := v.Validate(context.Background(), Decision{PipelineID: "p1"}, Context{})
	assert.InDelta(t, 0.6, result.ImpactScore, 1e-9)
	assert.False(t, result.HasIssues)
}

func TestCheckErrorBecomesSyntheticIssue(t *testing.T) {
	// a constraint without an evaluator makes the constraint check error out
	v := NewValidator([]Constraint{{Name: "broken"}}, nil, 0, nil)

	result := v.Validate(context.Background(), Decision{PipelineID: "p1"}, Context{})
	assert.True(t, result.HasIssues)
	require.NotEmpty(t, result.Issues)
	assert.Contains(t, result.Issues[0], "failed internally")
}

func TestLoadPolicyAndCompile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	policyYAML := `
impact_threshold: 0.8
constraints:
  - name: action-allowed
    kind: allowed_actions
    actions: [recommend, promote]
  - name: needs-user
    kind: require_parameter
    key: user_id
impact_areas:
  - name: availability
    weight: 1.0
    metadata_key: impact_availability
    default: 0.2
`
	require.NoError(t, os.WriteFile(path, []byte(policyYAML), 0o644))

	policy, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, policy.ImpactThreshold, 1e-9)

	constraints, areas := policy.Compile()
	require.Len(t, constraints, 2)
	require.Len(t, areas, 1)

	v := NewValidator(constraints, areas, policy.ImpactThreshold, nil)

	clean := v.Validate(context.Background(), Decision{
		PipelineID: "p1",
		Action:     "recommend",
		Parameters: map[string]string{"user_id": "u1"},
	}, Context{})
	assert.False(t, clean.HasIssues)

	dirty := v.Validate(context.Background(), Decision{
		PipelineID: "p2",
		Action:     "delete",
	}, Context{Metadata: map[string]string{"impact_availability": "0.95"}})
	assert.True(t, dirty.HasIssues)
	assert.Len(t, dirty.Issues, 3)
}

func TestLoadPolicyRejectsUnknownKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
constraints:
  - name: weird
    kind: frobnicate
`), 0o644))

	_, err := LoadPolicy(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestLoadPolicyMissingFile(t *testing.T) {
	_, err := LoadPolicy("/nonexistent/policy.yaml")
	require.Error(t, err)
}
