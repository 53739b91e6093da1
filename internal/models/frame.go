package models

// ResolutionStatus classifies the outcome of resolving one entity reference.
type ResolutionStatus string

const (
	ResolutionUnique     ResolutionStatus = "unique"
	ResolutionAmbiguous  ResolutionStatus = "ambiguous"
	ResolutionUnresolved ResolutionStatus = "unresolved"
)

// EntityRef is a surface text span plus a declared type awaiting resolution.
type EntityRef struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Type string `json:"type"`
}

// Frame is one self-contained semantic unit extracted from a user query.
// A Frame is immutable once produced by extraction; resolutions are attached
// to the session state, never written back into the frame.
type Frame struct {
	ID       string      `json:"id"`
	Query    string      `json:"query"`
	Entities []EntityRef `json:"entities"`
	Concepts []string    `json:"concepts"`
}

// NeedsResolution reports whether the frame has anything to resolve.
func (f Frame) NeedsResolution() bool {
	return len(f.Entities) > 0 || len(f.Concepts) > 0
}

// EntityCandidate is one possible referent for an entity reference.
type EntityCandidate struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Type           string                 `json:"type"`
	Confidence     float64                `json:"confidence"`
	Disambiguation string                 `json:"disambiguation"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// ResolvedEntity is the result of resolving one entity reference. Candidates
// are ordered by descending confidence, name ascending on ties.
type ResolvedEntity struct {
	Ref        EntityRef         `json:"ref"`
	Candidates []EntityCandidate `json:"candidates"`
	Status     ResolutionStatus  `json:"status"`
}

// StatusFor derives the resolution status from a candidate count.
func StatusFor(candidates []EntityCandidate) ResolutionStatus {
	switch {
	case len(candidates) == 0:
		return ResolutionUnresolved
	case len(candidates) == 1:
		return ResolutionUnique
	default:
		return ResolutionAmbiguous
	}
}

// BestCandidate returns the highest-confidence candidate, or nil when the
// entity is unresolved.
func (r ResolvedEntity) BestCandidate() *EntityCandidate {
	if len(r.Candidates) == 0 {
		return nil
	}
	return &r.Candidates[0]
}

// CandidateByID looks up a candidate by its stable identifier.
func (r ResolvedEntity) CandidateByID(id string) (EntityCandidate, bool) {
	for _, c := range r.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return EntityCandidate{}, false
}

// IsAmbiguous reports whether the entity has multiple candidates at or above
// the given confidence.
func (r ResolvedEntity) IsAmbiguous(threshold float64) bool {
	n := 0
	for _, c := range r.Candidates {
		if c.Confidence >= threshold {
			n++
		}
	}
	return n > 1
}

// IsHighConfidence reports whether the best candidate clears the given
// confidence.
func (r ResolvedEntity) IsHighConfidence(threshold float64) bool {
	best := r.BestCandidate()
	return best != nil && best.Confidence >= threshold
}

// CandidateIDs returns the ids of all candidates at or above the given
// confidence, in ranked order.
func (r ResolvedEntity) CandidateIDs(threshold float64) []string {
	var ids []string
	for _, c := range r.Candidates {
		if c.Confidence >= threshold {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// Narrowed returns a copy of the entity restricted to the chosen candidate
// ids, preserving ranked order. The second return is false when any chosen id
// is not present in the candidate list.
func (r ResolvedEntity) Narrowed(ids []string) (ResolvedEntity, bool) {
	chosen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.CandidateByID(id); !ok {
			return ResolvedEntity{}, false
		}
		chosen[id] = true
	}

	narrowed := ResolvedEntity{Ref: r.Ref}
	for _, c := range r.Candidates {
		if chosen[c.ID] {
			narrowed.Candidates = append(narrowed.Candidates, c)
		}
	}
	narrowed.Status = StatusFor(narrowed.Candidates)
	return narrowed, true
}
