package validation

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Policy is the declarative validation rule set loaded from YAML.
type Policy struct {
	ImpactThreshold float64            `yaml:"impact_threshold"`
	Constraints     []PolicyConstraint `yaml:"constraints"`
	ImpactAreas     []PolicyImpactArea `yaml:"impact_areas"`
}

// PolicyConstraint is one declarative rule. Supported kinds:
// allowed_actions, forbidden_actions, require_parameter.
type PolicyConstraint struct {
	Name    string   `yaml:"name"`
	Kind    string   `yaml:"kind"`
	Actions []string `yaml:"actions,omitempty"`
	Key     string   `yaml:"key,omitempty"`
}

// PolicyImpactArea scores an area from a context metadata key, falling back
// to a default when the key is absent or unparsable.
type PolicyImpactArea struct {
	Name        string  `yaml:"name"`
	Weight      float64 `yaml:"weight"`
	MetadataKey string  `yaml:"metadata_key"`
	Default     float64 `yaml:"default"`
}

// LoadPolicy reads and compiles a YAML policy file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("parsing policy file: %w", err)
	}
	for _, constraint := range policy.Constraints {
		switch constraint.Kind {
		case "allowed_actions", "forbidden_actions", "require_parameter":
		default:
			return nil, fmt.Errorf("constraint %q: unknown kind %q", constraint.Name, constraint.Kind)
		}
	}
	return &policy, nil
}

// Compile turns the declarative policy into evaluable constraints and
// impact areas.
func (p *Policy) Compile() ([]Constraint, []ImpactArea) {
	constraints := make([]Constraint, 0, len(p.Constraints))
	for _, pc := range p.Constraints {
		constraints = append(constraints, compileConstraint(pc))
	}

	areas := make([]ImpactArea, 0, len(p.ImpactAreas))
	for _, pa := range p.ImpactAreas {
		pa := pa
		weight := pa.Weight
		if weight == 0 {
			weight = 1
		}
		areas = append(areas, ImpactArea{
			Name:   pa.Name,
			Weight: weight,
			Score: func(d Decision, c Context) float64 {
				if raw, ok := c.Metadata[pa.MetadataKey]; ok {
					if score, err := strconv.ParseFloat(raw, 64); err == nil {
						return score
					}
				}
				return pa.Default
			},
		})
	}
	return constraints, areas
}

func compileConstraint(pc PolicyConstraint) Constraint {
	switch pc.Kind {
	case "allowed_actions":
		allowed := make(map[string]bool, len(pc.Actions))
		for _, action := range pc.Actions {
			allowed[action] = true
		}
		return Constraint{Name: pc.Name, Evaluate: func(d Decision, c Context) string {
			if !allowed[d.Action] {
				return fmt.Sprintf("action %q is not allowed", d.Action)
			}
			return ""
		}}
	case "forbidden_actions":
		forbidden := make(map[string]bool, len(pc.Actions))
		for _, action := range pc.Actions {
			forbidden[action] = true
		}
		return Constraint{Name: pc.Name, Evaluate: func(d Decision, c Context) string {
			if forbidden[d.Action] {
				return fmt.Sprintf("action %q is forbidden", d.Action)
			}
			return ""
		}}
	case "require_parameter":
		key := pc.Key
		return Constraint{Name: pc.Name, Evaluate: func(d Decision, c Context) string {
			if _, ok := d.Parameters[key]; !ok {
				return fmt.Sprintf("missing required parameter %q", key)
			}
			return ""
		}}
	default:
		return Constraint{Name: pc.Name, Evaluate: func(Decision, Context) string {
			return fmt.Sprintf("unknown constraint kind %q", pc.Kind)
		}}
	}
}
