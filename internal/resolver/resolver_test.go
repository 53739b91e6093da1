package resolver

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analytics-orchestrator/internal/common/logger"
	"analytics-orchestrator/internal/models"
)

type fakeStore struct {
	byType  map[string][]StoreRecord
	allType []StoreRecord
	err     error
	calls   []string
}

func (f *fakeStore) Search(_ context.Context, text, tenantID, entityType string, _ float64) ([]StoreRecord, error) {
	f.calls = append(f.calls, entityType)
	if f.err != nil {
		return nil, f.err
	}
	if entityType == "" {
		return f.allType, nil
	}
	return f.byType[entityType], nil
}

func TestTransformScore(t *testing.T) {
	tests := []struct {
		raw      float64
		expected float64
	}{
		{0.95, 1.0},
		{0.7, 1.0},
		{0.6, 0.9},
		{0.5, 0.8},
		{0.45, 0.6125},
		{0.35, 0.5375},
		{0.3, 0.5},
		{0.2, 0.2},
		{0.0, 0.0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.expected, TransformScore(tt.raw), 1e-9, "raw %v", tt.raw)
	}
}

func TestTransformScoreMonotonic(t *testing.T) {
	prev := -1.0
	for raw := 0.0; raw <= 1.0; raw += 0.01 {
		got := TransformScore(raw)
		assert.GreaterOrEqual(t, got, prev, "raw %v", raw)
		prev = got
	}
}

func TestResolveUniqueMatch(t *testing.T) {
	store := &fakeStore{byType: map[string][]StoreRecord{
		"event": {
			{ID: "evt-1", Name: "The Great Gatsby", Type: "event", RawScore: 0.82},
		},
	}}
	r := New(store, logger.NewTestLogger(t))

	resolved, err := r.Resolve(context.Background(), models.EntityRef{ID: "e1", Text: "gatsby", Type: "event"}, "tenant-1")
	require.NoError(t, err)

	assert.Equal(t, models.ResolutionUnique, resolved.Status)
	require.Len(t, resolved.Candidates, 1)
	assert.Equal(t, 1.0, resolved.Candidates[0].Confidence)
	assert.Equal(t, []string{"event"}, store.calls)
}

func TestResolveAmbiguityPreserved(t *testing.T) {
	store := &fakeStore{byType: map[string][]StoreRecord{
		"event": {
			{ID: "evt-2", Name: "Chicago the Musical", Type: "event", RawScore: 0.55},
			{ID: "evt-1", Name: "Chicago", Type: "event", RawScore: 0.65},
		},
	}}
	r := New(store, logger.NewTestLogger(t))

	resolved, err := r.Resolve(context.Background(), models.EntityRef{ID: "e1", Text: "chicago", Type: "event"}, "tenant-1")
	require.NoError(t, err)

	assert.Equal(t, models.ResolutionAmbiguous, resolved.Status)
	require.Len(t, resolved.Candidates, 2)
	assert.Equal(t, "evt-1", resolved.Candidates[0].ID)
	assert.InDelta(t, 0.95, resolved.Candidates[0].Confidence, 1e-9)
	assert.InDelta(t, 0.85, resolved.Candidates[1].Confidence, 1e-9)
}

func TestResolveCrossTypeFallback(t *testing.T) {
	store := &fakeStore{
		byType: map[string][]StoreRecord{"event": nil},
		allType: []StoreRecord{
			{ID: "ven-1", Name: "Gatsby Lounge", Type: "venue", RawScore: 0.8},
		},
	}
	r := New(store, logger.NewTestLogger(t))

	resolved, err := r.Resolve(context.Background(), models.EntityRef{ID: "e1", Text: "gatsby lounge", Type: "event"}, "tenant-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"event", ""}, store.calls)
	require.Len(t, resolved.Candidates, 1)
	// TransformScore(0.8) = 1.0, then the 10% cross-type discount.
	assert.InDelta(t, 0.9, resolved.Candidates[0].Confidence, 1e-9)
	assert.Contains(t, resolved.Candidates[0].Disambiguation, "(venue)")
}

func TestResolveNoFallbackWithoutType(t *testing.T) {
	store := &fakeStore{}
	r := New(store, logger.NewTestLogger(t))

	resolved, err := r.Resolve(context.Background(), models.EntityRef{ID: "e1", Text: "mystery"}, "tenant-1")
	require.NoError(t, err)

	assert.Equal(t, models.ResolutionUnresolved, resolved.Status)
	assert.Equal(t, []string{""}, store.calls)
}

func TestResolveTieBreakByName(t *testing.T) {
	store := &fakeStore{byType: map[string][]StoreRecord{
		"event": {
			{ID: "evt-b", Name: "Beta Show", Type: "event", RawScore: 0.6},
			{ID: "evt-a", Name: "Alpha Show", Type: "event", RawScore: 0.6},
		},
	}}
	r := New(store, logger.NewTestLogger(t))

	resolved, err := r.Resolve(context.Background(), models.EntityRef{ID: "e1", Text: "show", Type: "event"}, "tenant-1")
	require.NoError(t, err)

	require.Len(t, resolved.Candidates, 2)
	assert.Equal(t, "Alpha Show", resolved.Candidates[0].Name)
	assert.Equal(t, "Beta Show", resolved.Candidates[1].Name)
}

func TestResolveStoreError(t *testing.T) {
	store := &fakeStore{err: fmt.Errorf("connection refused")}
	r := New(store, logger.NewTestLogger(t))

	_, err := r.Resolve(context.Background(), models.EntityRef{ID: "e1", Text: "gatsby", Type: "event"}, "tenant-1")
	assert.Error(t, err)
}

func TestResolveCustomOptions(t *testing.T) {
	store := &fakeStore{
		byType: map[string][]StoreRecord{"event": nil},
		allType: []StoreRecord{
			{ID: "ven-1", Name: "Gatsby Lounge", Type: "venue", RawScore: 0.8},
		},
	}
	r := New(store, logger.NewTestLogger(t), WithThreshold(0.5), WithCrossTypeDiscount(0.2))

	resolved, err := r.Resolve(context.Background(), models.EntityRef{ID: "e1", Text: "gatsby lounge", Type: "event"}, "tenant-1")
	require.NoError(t, err)
	require.Len(t, resolved.Candidates, 1)
	assert.InDelta(t, 0.8, resolved.Candidates[0].Confidence, 1e-9)
}
