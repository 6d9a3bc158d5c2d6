// Package recommend provides pluggable candidate generation strategies and a
// multi-pass ranker. Each pipeline stage consumes a candidate slice and
// returns a fresh one; slices are never shared mutably across stages.
package recommend

// Candidate is one recommendable item with its scoring state. Scores are
// filled in progressively: generators set SimilarityScore, the ranker sets
// the rest. Pointer scores distinguish "not scored" from "scored zero".
type Candidate struct {
	ItemID               string   `json:"itemId"`
	SourceStrategy       string   `json:"sourceStrategy"`
	SimilarityScore      float64  `json:"similarityScore"`
	RelevanceScore       *float64 `json:"relevanceScore,omitempty"`
	PersonalizationScore *float64 `json:"personalizationScore,omitempty"`
	CombinedScore        *float64 `json:"combinedScore,omitempty"`
	Category             string   `json:"category,omitempty"`
	Attributes           []string `json:"attributes,omitempty"`
}

// Clone returns a deep copy of the candidate.
func (c Candidate) Clone() Candidate {
	out := c
	if c.RelevanceScore != nil {
		v := *c.RelevanceScore
		out.RelevanceScore = &v
	}
	if c.PersonalizationScore != nil {
		v := *c.PersonalizationScore
		out.PersonalizationScore = &v
	}
	if c.CombinedScore != nil {
		v := *c.CombinedScore
		out.CombinedScore = &v
	}
	if c.Attributes != nil {
		out.Attributes = append([]string(nil), c.Attributes...)
	}
	return out
}

func cloneCandidates(in []Candidate) []Candidate {
	out := make([]Candidate, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}
