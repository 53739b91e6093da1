// Package resolver implements type-aware entity resolution with ambiguity
// preservation: every candidate above threshold survives to the
// orchestration layer, where the decision step may narrow the set.
package resolver

import (
	"context"
	"fmt"
	"sort"

	"analytics-orchestrator/internal/common/logger"
	"analytics-orchestrator/internal/common/metrics"
	"analytics-orchestrator/internal/models"
)

const (
	// DefaultThreshold is the minimum raw similarity a store match must
	// exceed to become a candidate.
	DefaultThreshold = 0.3

	// DefaultCrossTypeDiscount is applied to confidences from the
	// all-types fallback pass to compensate for the weaker type guarantee.
	DefaultCrossTypeDiscount = 0.10
)

type Resolver struct {
	store             EntityStore
	threshold         float64
	crossTypeDiscount float64
	logger            logger.Logger
}

type Option func(*Resolver)

func WithThreshold(t float64) Option {
	return func(r *Resolver) { r.threshold = t }
}

func WithCrossTypeDiscount(d float64) Option {
	return func(r *Resolver) { r.crossTypeDiscount = d }
}

func New(store EntityStore, log logger.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		store:             store,
		threshold:         DefaultThreshold,
		crossTypeDiscount: DefaultCrossTypeDiscount,
		logger:            log.WithFields(map[string]interface{}{"component": "resolver"}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve matches one entity reference against the store. An empty candidate
// list is a normal outcome (status "unresolved"), not an error; only a store
// failure returns a non-nil error.
func (r *Resolver) Resolve(ctx context.Context, ref models.EntityRef, tenantID string) (models.ResolvedEntity, error) {
	records, err := r.store.Search(ctx, ref.Text, tenantID, ref.Type, r.threshold)
	if err != nil {
		return models.ResolvedEntity{}, fmt.Errorf("resolve %q: %w", ref.Text, err)
	}

	candidates := r.toCandidates(records, 0, true)

	// Cross-type fallback: when the declared type yields nothing above
	// threshold, search all types with a confidence discount.
	if len(candidates) == 0 && ref.Type != "" {
		records, err = r.store.Search(ctx, ref.Text, tenantID, "", r.threshold)
		if err != nil {
			return models.ResolvedEntity{}, fmt.Errorf("resolve %q cross-type: %w", ref.Text, err)
		}
		candidates = r.toCandidates(records, r.crossTypeDiscount, false)
	}

	sortCandidates(candidates)

	resolved := models.ResolvedEntity{
		Ref:        ref,
		Candidates: candidates,
		Status:     models.StatusFor(candidates),
	}

	metrics.EntityResolutions.WithLabelValues(string(resolved.Status)).Inc()
	r.logger.Info("entity resolved", map[string]interface{}{
		"text":       ref.Text,
		"type":       ref.Type,
		"candidates": len(candidates),
		"status":     resolved.Status,
	})

	return resolved, nil
}

func (r *Resolver) toCandidates(records []StoreRecord, discount float64, sameType bool) []models.EntityCandidate {
	var candidates []models.EntityCandidate
	for _, rec := range records {
		confidence := TransformScore(rec.RawScore)
		if discount > 0 {
			confidence *= 1 - discount
			if confidence < 0 {
				confidence = 0
			}
		}
		candidates = append(candidates, models.EntityCandidate{
			ID:             rec.ID,
			Name:           rec.Name,
			Type:           rec.Type,
			Confidence:     confidence,
			Disambiguation: Disambiguation(rec, confidence, !sameType),
			Metadata:       rec.Metadata,
		})
	}
	return candidates
}

// TransformScore remaps raw store similarity to a presentation confidence.
// The narrow 0.3-0.7 raw band spreads into 0.5-1.0 so downstream decisions
// get a usable range. Monotonic by construction.
func TransformScore(raw float64) float64 {
	switch {
	case raw >= 0.7:
		return 1.0
	case raw >= 0.5:
		return 0.8 + (raw - 0.5)
	case raw >= 0.3:
		return 0.5 + (raw-0.3)*0.75
	default:
		return raw
	}
}

// sortCandidates orders by descending confidence, breaking ties by
// lexicographic name for determinism.
func sortCandidates(candidates []models.EntityCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Name < candidates[j].Name
	})
}
