package orchestrator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analytics-orchestrator/internal/capability"
	"analytics-orchestrator/internal/common/errors"
	"analytics-orchestrator/internal/common/logger"
	"analytics-orchestrator/internal/models"
	"analytics-orchestrator/internal/taskgraph"
)

type scriptedOracle struct {
	decisions []models.Decision
	err       error
	calls     int
}

func (s *scriptedOracle) Decide(_ context.Context, _ DecisionContext) (models.Decision, error) {
	if s.err != nil {
		return models.Decision{}, s.err
	}
	if s.calls >= len(s.decisions) {
		return models.Decision{}, fmt.Errorf("oracle exhausted after %d calls", s.calls)
	}
	d := s.decisions[s.calls]
	s.calls++
	return d, nil
}

type stubResolver struct {
	entities map[string]models.ResolvedEntity
	err      error
}

func (s *stubResolver) Resolve(_ context.Context, ref models.EntityRef, _ string) (models.ResolvedEntity, error) {
	if s.err != nil {
		return models.ResolvedEntity{}, s.err
	}
	if resolved, ok := s.entities[ref.ID]; ok {
		return resolved, nil
	}
	return models.ResolvedEntity{Ref: ref, Status: models.ResolutionUnresolved}, nil
}

type funcCapability struct {
	desc capability.Descriptor
	fn   func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}

func (f funcCapability) Describe() capability.Descriptor { return f.desc }

func (f funcCapability) Execute(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	return f.fn(ctx, input)
}

func newTestRegistry(t *testing.T, caps ...capability.Capability) *capability.Registry {
	t.Helper()
	reg := capability.NewRegistry()
	for _, c := range caps {
		require.NoError(t, reg.Register(c))
	}
	return reg
}

func echoCapability(name string) funcCapability {
	return funcCapability{
		desc: capability.Descriptor{Name: name, Category: "test", Purpose: "echo input"},
		fn: func(_ context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{"echo": input}, nil
		},
	}
}

func frame(query string, entities ...models.EntityRef) models.Frame {
	return models.Frame{ID: "f1", Query: query, Entities: entities}
}

func newState(f models.Frame) *models.SessionState {
	return models.NewSessionState("sess-1", "tenant-1", f)
}

func TestRunExecuteThenComplete(t *testing.T) {
	oracle := &scriptedOracle{decisions: []models.Decision{
		{Action: models.ActionExecute, Capability: "echo", Input: map[string]interface{}{"q": "sales"}},
		{Action: models.ActionComplete, ResponseText: "done", Assumptions: []string{"assumed current year"}},
	}}
	o := New(&stubResolver{}, oracle, newTestRegistry(t, echoCapability("echo")), logger.NewTestLogger(t))

	state := newState(frame("how are sales"))
	final, err := o.Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, "done", final.ResponseText)
	assert.Equal(t, []string{"assumed current year"}, final.Assumptions)
	assert.False(t, final.Partial)
	require.Len(t, final.CompletedTasks, 1)
	assert.Equal(t, "t1", final.CompletedTasks[0].TaskID)
	assert.True(t, final.CompletedTasks[0].Success)
	assert.True(t, state.IsComplete())
	assert.Equal(t, 2, state.LoopCount)
}

func TestRunTaskChainThroughPlaceholders(t *testing.T) {
	var analysisInput map[string]interface{}
	analyze := funcCapability{
		desc: capability.Descriptor{Name: "analyze", Category: "test", Purpose: "analyze prior data"},
		fn: func(_ context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			analysisInput = input
			return map[string]interface{}{"summary": "ok"}, nil
		},
	}
	oracle := &scriptedOracle{decisions: []models.Decision{
		{Action: models.ActionExecute, Capability: "echo", Input: map[string]interface{}{"q": "regional sales"}},
		{Action: models.ActionExecute, Capability: "analyze", Input: map[string]interface{}{
			"data": map[string]interface{}{taskgraph.RefKey: "t1"},
		}},
		{Action: models.ActionComplete, ResponseText: "done"},
	}}
	o := New(&stubResolver{}, oracle, newTestRegistry(t, echoCapability("echo"), analyze), logger.NewTestLogger(t))

	final, err := o.Run(context.Background(), newState(frame("analyze regional sales")))
	require.NoError(t, err)

	require.Len(t, final.CompletedTasks, 2)
	assert.Equal(t, "t2", final.CompletedTasks[1].TaskID)
	require.NotNil(t, analysisInput)
	assert.Equal(t, map[string]interface{}{
		"data": map[string]interface{}{"echo": map[string]interface{}{"q": "regional sales"}},
	}, analysisInput)
}

func TestRunUnknownCapabilityIsTaskLocal(t *testing.T) {
	oracle := &scriptedOracle{decisions: []models.Decision{
		{Action: models.ActionExecute, Capability: "nope", Input: map[string]interface{}{}},
		{Action: models.ActionComplete, ResponseText: "recovered"},
	}}
	o := New(&stubResolver{}, oracle, newTestRegistry(t, echoCapability("echo")), logger.NewTestLogger(t))

	final, err := o.Run(context.Background(), newState(frame("q")))
	require.NoError(t, err)

	assert.Equal(t, "recovered", final.ResponseText)
	assert.False(t, final.Partial)
	require.Len(t, final.CompletedTasks, 1)
	assert.False(t, final.CompletedTasks[0].Success)
	assert.Equal(t, string(errors.ErrCodeUnknownCapability), final.CompletedTasks[0].ErrorCode)
}

func TestRunMissingPlaceholderIsTaskLocal(t *testing.T) {
	oracle := &scriptedOracle{decisions: []models.Decision{
		{Action: models.ActionExecute, Capability: "echo", Input: map[string]interface{}{
			"data": map[string]interface{}{taskgraph.RefKey: "t9"},
		}},
		{Action: models.ActionComplete, ResponseText: "recovered"},
	}}
	o := New(&stubResolver{}, oracle, newTestRegistry(t, echoCapability("echo")), logger.NewTestLogger(t))

	final, err := o.Run(context.Background(), newState(frame("q")))
	require.NoError(t, err)

	require.Len(t, final.CompletedTasks, 1)
	assert.False(t, final.CompletedTasks[0].Success)
	assert.Equal(t, string(errors.ErrCodePlaceholderResolutionFailed), final.CompletedTasks[0].ErrorCode)
}

func TestRunCeilingProducesPartial(t *testing.T) {
	decisions := make([]models.Decision, DefaultMaxLoops+1)
	for i := range decisions {
		decisions[i] = models.Decision{Action: models.ActionExecute, Capability: "echo", Input: map[string]interface{}{}}
	}
	oracle := &scriptedOracle{decisions: decisions}
	o := New(&stubResolver{}, oracle, newTestRegistry(t, echoCapability("echo")), logger.NewTestLogger(t))

	state := newState(frame("loop forever"))
	final, err := o.Run(context.Background(), state)
	require.NoError(t, err)

	assert.True(t, final.Partial)
	assert.Empty(t, final.Err)
	assert.Len(t, final.CompletedTasks, DefaultMaxLoops)
	assert.Equal(t, DefaultMaxLoops, oracle.calls)
	assert.Equal(t, DefaultMaxLoops, state.LoopCount)
	assert.NotEmpty(t, final.ResponseText)
}

func TestRunCancellationProducesPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancelling := funcCapability{
		desc: capability.Descriptor{Name: "slow", Category: "test", Purpose: "cancels mid-session"},
		fn: func(_ context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
			cancel()
			return map[string]interface{}{"partial": true}, nil
		},
	}
	oracle := &scriptedOracle{decisions: []models.Decision{
		{Action: models.ActionExecute, Capability: "slow", Input: map[string]interface{}{}},
	}}
	o := New(&stubResolver{}, oracle, newTestRegistry(t, cancelling), logger.NewTestLogger(t))

	final, err := o.Run(ctx, newState(frame("q")))
	require.NoError(t, err)

	assert.True(t, final.Partial)
	require.Len(t, final.CompletedTasks, 1)
	assert.True(t, final.CompletedTasks[0].Success)
	assert.Equal(t, 1, oracle.calls)
}

func TestRunEntitySelectionNarrowsState(t *testing.T) {
	res := &stubResolver{entities: map[string]models.ResolvedEntity{
		"e1": {
			Ref: models.EntityRef{ID: "e1", Text: "chicago", Type: "event"},
			Candidates: []models.EntityCandidate{
				{ID: "evt-1", Name: "Chicago", Type: "event", Confidence: 0.95},
				{ID: "evt-2", Name: "Chicago the Musical", Type: "event", Confidence: 0.85},
			},
			Status: models.ResolutionAmbiguous,
		},
	}}
	oracle := &scriptedOracle{decisions: []models.Decision{
		{
			Action:          models.ActionExecute,
			Capability:      "echo",
			Input:           map[string]interface{}{},
			EntitySelection: map[string][]string{"e1": {"evt-2"}},
		},
		{Action: models.ActionComplete, ResponseText: "done"},
	}}
	o := New(res, oracle, newTestRegistry(t, echoCapability("echo")), logger.NewTestLogger(t))

	state := newState(frame("chicago sales", models.EntityRef{ID: "e1", Text: "chicago", Type: "event"}))
	_, err := o.Run(context.Background(), state)
	require.NoError(t, err)

	narrowed, ok := state.ResolvedEntity("e1")
	require.True(t, ok)
	require.Len(t, narrowed.Candidates, 1)
	assert.Equal(t, "evt-2", narrowed.Candidates[0].ID)
	assert.Equal(t, models.ResolutionUnique, narrowed.Status)
}

func TestRunInvalidEntitySelectionIsTaskLocal(t *testing.T) {
	res := &stubResolver{entities: map[string]models.ResolvedEntity{
		"e1": {
			Ref: models.EntityRef{ID: "e1", Text: "chicago", Type: "event"},
			Candidates: []models.EntityCandidate{
				{ID: "evt-1", Name: "Chicago", Type: "event", Confidence: 0.95},
			},
			Status: models.ResolutionUnique,
		},
	}}
	oracle := &scriptedOracle{decisions: []models.Decision{
		{
			Action:          models.ActionExecute,
			Capability:      "echo",
			Input:           map[string]interface{}{},
			EntitySelection: map[string][]string{"e1": {"evt-404"}},
		},
		{Action: models.ActionComplete, ResponseText: "done"},
	}}
	o := New(res, oracle, newTestRegistry(t, echoCapability("echo")), logger.NewTestLogger(t))

	state := newState(frame("chicago sales", models.EntityRef{ID: "e1", Text: "chicago", Type: "event"}))
	final, err := o.Run(context.Background(), state)
	require.NoError(t, err)

	require.Len(t, final.CompletedTasks, 1)
	assert.Equal(t, string(errors.ErrCodeEntitySelectionInvalid), final.CompletedTasks[0].ErrorCode)

	// Session resolution is untouched by the rejected selection.
	resolved, ok := state.ResolvedEntity("e1")
	require.True(t, ok)
	assert.Len(t, resolved.Candidates, 1)
	assert.Equal(t, "evt-1", resolved.Candidates[0].ID)
}

func TestRunInputSchemaRejection(t *testing.T) {
	strict := funcCapability{
		desc: capability.Descriptor{
			Name:     "strict",
			Category: "test",
			Purpose:  "requires a query string",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"query"},
				"properties": map[string]interface{}{
					"query": map[string]interface{}{"type": "string"},
				},
			},
		},
		fn: func(_ context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
			t.Fatal("capability must not execute on invalid input")
			return nil, nil
		},
	}
	oracle := &scriptedOracle{decisions: []models.Decision{
		{Action: models.ActionExecute, Capability: "strict", Input: map[string]interface{}{"query": 42}},
		{Action: models.ActionComplete, ResponseText: "done"},
	}}
	o := New(&stubResolver{}, oracle, newTestRegistry(t, strict), logger.NewTestLogger(t))

	final, err := o.Run(context.Background(), newState(frame("q")))
	require.NoError(t, err)

	require.Len(t, final.CompletedTasks, 1)
	assert.Equal(t, string(errors.ErrCodeCapabilityInputInvalid), final.CompletedTasks[0].ErrorCode)
}

func TestRunCapabilityErrorIsTaskLocal(t *testing.T) {
	failing := funcCapability{
		desc: capability.Descriptor{Name: "failing", Category: "test", Purpose: "always fails"},
		fn: func(_ context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
			return nil, fmt.Errorf("upstream 500")
		},
	}
	oracle := &scriptedOracle{decisions: []models.Decision{
		{Action: models.ActionExecute, Capability: "failing", Input: map[string]interface{}{}},
		{Action: models.ActionComplete, ResponseText: "done despite failure"},
	}}
	o := New(&stubResolver{}, oracle, newTestRegistry(t, failing), logger.NewTestLogger(t))

	final, err := o.Run(context.Background(), newState(frame("q")))
	require.NoError(t, err)

	assert.Equal(t, "done despite failure", final.ResponseText)
	require.Len(t, final.CompletedTasks, 1)
	assert.False(t, final.CompletedTasks[0].Success)
	assert.Equal(t, string(errors.ErrCodeCapabilityExecutionFailed), final.CompletedTasks[0].ErrorCode)
}

func TestRunOracleFailureAbortsSession(t *testing.T) {
	oracle := &scriptedOracle{err: fmt.Errorf("connection refused")}
	o := New(&stubResolver{}, oracle, newTestRegistry(t, echoCapability("echo")), logger.NewTestLogger(t))

	final, err := o.Run(context.Background(), newState(frame("q")))
	require.Error(t, err)
	assert.True(t, final.Partial)
	assert.NotEmpty(t, final.Err)
}

func TestRunMalformedDecisionAbortsSession(t *testing.T) {
	oracle := &scriptedOracle{decisions: []models.Decision{
		{Action: models.ActionExecute},
	}}
	o := New(&stubResolver{}, oracle, newTestRegistry(t, echoCapability("echo")), logger.NewTestLogger(t))

	final, err := o.Run(context.Background(), newState(frame("q")))
	require.Error(t, err)
	assert.True(t, final.Partial)

	var stderr *errors.StandardError
	require.ErrorAs(t, err, &stderr)
	assert.Equal(t, errors.ErrCodeOracleDecisionInvalid, stderr.Code)
}

func TestRunResolverFailureAbortsSession(t *testing.T) {
	res := &stubResolver{err: fmt.Errorf("pg down")}
	oracle := &scriptedOracle{}
	o := New(res, oracle, newTestRegistry(t, echoCapability("echo")), logger.NewTestLogger(t))

	state := newState(frame("q", models.EntityRef{ID: "e1", Text: "gatsby", Type: "event"}))
	final, err := o.Run(context.Background(), state)
	require.Error(t, err)
	assert.True(t, final.Partial)
	assert.Zero(t, oracle.calls)
}
