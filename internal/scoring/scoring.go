// Package scoring ranks eligible agents for a single dispatch decision.
package scoring

import (
	"sort"
)

// Subject holds the work item attributes that drive candidate matching.
// Empty fields impose no constraint.
type Subject struct {
	Area         string
	Developer    string
	PropertyType string
}

// AgentProfile is the scoring view of an active agent. Empty coverage
// lists mean the agent takes anything; a non-empty list is a hard filter.
type AgentProfile struct {
	ID              uint
	Areas           []string
	Developers      []string
	PropertyTypes   []string
	Rating          float64
	OpenAssignments int
}

// Candidate is the scored result for one agent. Ephemeral, never persisted.
type Candidate struct {
	AgentID         uint
	MatchBonus      float64
	RatingComponent float64
	LoadPenalty     float64
	Total           float64
}

// Rank filters and orders agents for the subject, descending by total
// score with agent ID as the deterministic tiebreak. Pure: no side
// effects, no I/O.
func Rank(subject Subject, agents []AgentProfile, w Weights) []Candidate {
	candidates := make([]Candidate, 0, len(agents))
	for _, a := range agents {
		if !eligible(subject, a) {
			continue
		}
		c := Candidate{AgentID: a.ID}
		if subject.Area != "" && contains(a.Areas, subject.Area) {
			c.MatchBonus += w.AreaMatchBonus
		}
		if subject.Developer != "" && contains(a.Developers, subject.Developer) {
			c.MatchBonus += w.DeveloperMatchBonus
		}
		c.RatingComponent = a.Rating * w.RatingMultiplier
		c.LoadPenalty = float64(a.OpenAssignments) * w.LoadPenalty
		c.Total = c.MatchBonus + c.RatingComponent - c.LoadPenalty
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Total != candidates[j].Total {
			return candidates[i].Total > candidates[j].Total
		}
		return candidates[i].AgentID < candidates[j].AgentID
	})
	return candidates
}

// eligible applies the hard coverage filter: an agent with a declared
// coverage list that does not include the subject's value is excluded
// entirely, not merely penalized.
func eligible(subject Subject, a AgentProfile) bool {
	if subject.Area != "" && len(a.Areas) > 0 && !contains(a.Areas, subject.Area) {
		return false
	}
	if subject.Developer != "" && len(a.Developers) > 0 && !contains(a.Developers, subject.Developer) {
		return false
	}
	if subject.PropertyType != "" && len(a.PropertyTypes) > 0 && !contains(a.PropertyTypes, subject.PropertyType) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
