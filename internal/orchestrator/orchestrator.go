// Package orchestrator runs the decision loop for one session: resolve the
// frame's entities, then alternate between asking the oracle what to do next
// and dispatching capabilities until the oracle completes, the iteration
// ceiling is hit, or the caller cancels.
package orchestrator

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"analytics-orchestrator/internal/capability"
	"analytics-orchestrator/internal/common/errors"
	"analytics-orchestrator/internal/common/logger"
	"analytics-orchestrator/internal/common/metrics"
	"analytics-orchestrator/internal/common/observability"
	"analytics-orchestrator/internal/models"
	"analytics-orchestrator/internal/taskgraph"
)

const DefaultMaxLoops = 10

const (
	ceilingResponseText   = "I could not fully complete this request within the allowed number of steps. Here is what I gathered so far."
	cancelledResponseText = "This request was cancelled before it finished. Here is what was completed."
)

// EntityResolver resolves one entity reference against the entity store.
type EntityResolver interface {
	Resolve(ctx context.Context, ref models.EntityRef, tenantID string) (models.ResolvedEntity, error)
}

// Orchestrator drives sessions. One Orchestrator serves many sessions; each
// Run call owns its SessionState exclusively.
type Orchestrator struct {
	resolver EntityResolver
	oracle   Oracle
	registry *capability.Registry
	obs      *observability.Observability
	logger   logger.Logger
	maxLoops int
}

type Option func(*Orchestrator)

func WithMaxLoops(n int) Option {
	return func(o *Orchestrator) { o.maxLoops = n }
}

func WithObservability(obs *observability.Observability) Option {
	return func(o *Orchestrator) { o.obs = obs }
}

func New(res EntityResolver, oracle Oracle, registry *capability.Registry, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver: res,
		oracle:   oracle,
		registry: registry,
		logger:   log,
		maxLoops: DefaultMaxLoops,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one session to completion and returns the final response. The
// returned error is non-nil only for infrastructure faults; ceiling breaches,
// cancellations, and task-level failures all produce a FinalResponse.
func (o *Orchestrator) Run(ctx context.Context, state *models.SessionState) (*models.FinalResponse, error) {
	log := o.logger.WithFields(map[string]interface{}{
		"sessionId": state.SessionID,
		"tenantId":  state.TenantID,
	})
	log.Info("session started", map[string]interface{}{
		"query":       state.Frame.Query,
		"entityCount": len(state.Frame.Entities),
	})

	if err := o.resolveFrame(ctx, state, log); err != nil {
		metrics.OrchestrationSessions.WithLabelValues("error").Inc()
		return o.failSession(state, err), err
	}

	for {
		if err := ctx.Err(); err != nil {
			log.Warn("session cancelled", map[string]interface{}{
				"loopCount":      state.LoopCount,
				"completedTasks": state.ResultCount(),
			})
			metrics.OrchestrationSessions.WithLabelValues("cancelled").Inc()
			return o.completeSession(state, cancelledResponseText, nil, true), nil
		}

		if state.LoopCount >= o.maxLoops {
			log.Warn("iteration ceiling reached", map[string]interface{}{
				"ceiling":        o.maxLoops,
				"completedTasks": state.ResultCount(),
			})
			metrics.OrchestrationSessions.WithLabelValues("ceiling").Inc()
			return o.completeSession(state, ceilingResponseText, nil, true), nil
		}
		state.LoopCount++
		metrics.OrchestrationIterations.WithLabelValues(state.TenantID).Inc()

		decision, err := o.decide(ctx, state)
		if err != nil {
			metrics.OrchestrationSessions.WithLabelValues("error").Inc()
			return o.failSession(state, err), err
		}

		switch decision.Action {
		case models.ActionComplete:
			log.Info("session complete", map[string]interface{}{
				"loopCount":      state.LoopCount,
				"completedTasks": state.ResultCount(),
			})
			metrics.OrchestrationSessions.WithLabelValues("complete").Inc()
			return o.completeSession(state, decision.ResponseText, decision.Assumptions, false), nil

		case models.ActionExecute:
			result := o.dispatch(ctx, state, decision, log)
			state.AddResult(result)

		default:
			err := errors.NewOracleDecisionInvalidError(fmt.Sprintf("action: %s", decision.Action))
			metrics.OrchestrationSessions.WithLabelValues("error").Inc()
			return o.failSession(state, err), err
		}
	}
}

// resolveFrame runs RESOLVING: every entity reference in the frame is
// resolved before the first decision. Ambiguity is preserved, not collapsed;
// a store failure aborts the session.
func (o *Orchestrator) resolveFrame(ctx context.Context, state *models.SessionState, log logger.Logger) error {
	for _, ref := range state.Frame.Entities {
		resolved, err := o.resolver.Resolve(ctx, ref, state.TenantID)
		if err != nil {
			log.WithError(err).Error("entity resolution failed", map[string]interface{}{
				"refId": ref.ID,
				"text":  ref.Text,
			})
			return errors.NewEntityStoreUnavailableError(err)
		}
		state.SetResolvedEntity(resolved)
	}
	return nil
}

func (o *Orchestrator) decide(ctx context.Context, state *models.SessionState) (models.Decision, error) {
	dc := BuildDecisionContext(state, o.registry.DescribeAll(), o.maxLoops)

	start := time.Now()
	decision, err := o.oracle.Decide(ctx, dc)
	if err != nil {
		if stderrors.Is(err, ErrOracleTimeout) {
			return models.Decision{}, errors.NewOracleTimeoutError(err)
		}
		return models.Decision{}, errors.NewOracleUnavailableError(err)
	}
	if err := decision.Validate(); err != nil {
		return models.Decision{}, errors.NewOracleDecisionInvalidError(err.Error())
	}

	if o.obs != nil {
		o.obs.RecordDecision(ctx, string(decision.Action))
		o.obs.RecordDecisionDuration(ctx, time.Since(start), string(decision.Action))
	}
	return decision, nil
}

// dispatch runs DISPATCHING for one execute decision. Every failure mode here
// is task-local: it is recorded as a failed result and the loop continues.
func (o *Orchestrator) dispatch(ctx context.Context, state *models.SessionState, decision models.Decision, log logger.Logger) models.TaskResult {
	task := models.Task{
		ID:              state.NextTaskID(),
		Capability:      decision.Capability,
		Input:           decision.Input,
		EntitySelection: decision.EntitySelection,
		CreatedAt:       time.Now().UTC(),
	}
	log = log.WithFields(map[string]interface{}{
		"taskId":     task.ID,
		"capability": task.Capability,
	})

	if err := o.applySelections(state, task.EntitySelection); err != nil {
		log.WithError(err).Warn("entity selection rejected", nil)
		return o.failedResult(task, err)
	}

	c, ok := o.registry.Get(task.Capability)
	if !ok {
		err := errors.NewUnknownCapabilityError(task.Capability)
		log.Warn("capability not registered", nil)
		return o.failedResult(task, err)
	}

	input, err := taskgraph.ResolvePlaceholders(task.Input, state)
	if err != nil {
		log.WithError(err).Warn("placeholder resolution failed", nil)
		return o.failedResult(task, errors.NewPlaceholderResolutionError(task.ID))
	}

	if err := validateInput(c.Describe(), input); err != nil {
		log.WithError(err).Warn("task input rejected", nil)
		return o.failedResult(task, err)
	}

	start := time.Now()
	output, err := c.Execute(ctx, input)
	metrics.CapabilityDuration.WithLabelValues(task.Capability).Observe(time.Since(start).Seconds())
	if err != nil {
		log.WithError(err).Error("capability execution failed", map[string]interface{}{
			"durationMs": time.Since(start).Milliseconds(),
		})
		return o.failedResult(task, errors.NewCapabilityExecutionError(task.Capability, err))
	}

	metrics.CapabilityExecutions.WithLabelValues(task.Capability, "success").Inc()
	log.Info("task completed", map[string]interface{}{
		"durationMs": time.Since(start).Milliseconds(),
	})
	return models.TaskResult{
		TaskID:     task.ID,
		Capability: task.Capability,
		Success:    true,
		Output:     output,
		Timestamp:  time.Now().UTC(),
	}
}

// applySelections narrows session entities to the candidates the decision
// chose. All selections are checked before any is applied, so a bad id leaves
// the session untouched.
func (o *Orchestrator) applySelections(state *models.SessionState, selections map[string][]string) *errors.StandardError {
	if len(selections) == 0 {
		return nil
	}

	narrowed := make(map[string]models.ResolvedEntity, len(selections))
	for refID, candidateIDs := range selections {
		resolved, ok := state.ResolvedEntity(refID)
		if !ok {
			return errors.NewEntitySelectionInvalidError(refID, "")
		}
		n, ok := resolved.Narrowed(candidateIDs)
		if !ok {
			return errors.NewEntitySelectionInvalidError(refID, fmt.Sprintf("%v", candidateIDs))
		}
		narrowed[refID] = n
	}
	for _, n := range narrowed {
		state.SetResolvedEntity(n)
	}
	return nil
}

// validateInput checks the resolved input against the capability's declared
// input schema. Capabilities without a schema accept anything.
func validateInput(desc capability.Descriptor, input map[string]interface{}) *errors.StandardError {
	if len(desc.InputSchema) == 0 {
		return nil
	}

	doc := input
	if doc == nil {
		doc = map[string]interface{}{}
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(desc.InputSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return errors.NewCapabilityInputInvalidError(desc.Name, err.Error())
	}
	if !result.Valid() {
		details, _ := json.Marshal(result.Errors())
		return errors.NewCapabilityInputInvalidError(desc.Name, string(details))
	}
	return nil
}

func (o *Orchestrator) failedResult(task models.Task, stderr *errors.StandardError) models.TaskResult {
	metrics.CapabilityExecutions.WithLabelValues(task.Capability, "failed").Inc()
	return models.TaskResult{
		TaskID:     task.ID,
		Capability: task.Capability,
		Success:    false,
		Error:      stderr.Message,
		ErrorCode:  string(stderr.Code),
		Timestamp:  time.Now().UTC(),
	}
}

func (o *Orchestrator) completeSession(state *models.SessionState, text string, assumptions []string, partial bool) *models.FinalResponse {
	final := &models.FinalResponse{
		ResponseText:   text,
		Assumptions:    assumptions,
		Partial:        partial,
		CompletedTasks: state.Results(),
	}
	state.Final = final
	return final
}

func (o *Orchestrator) failSession(state *models.SessionState, err error) *models.FinalResponse {
	final := &models.FinalResponse{
		Partial:        true,
		CompletedTasks: state.Results(),
		Err:            err.Error(),
	}
	state.Final = final
	return final
}
