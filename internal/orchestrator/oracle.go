package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"analytics-orchestrator/internal/common/logger"
	"analytics-orchestrator/internal/models"
)

var (
	ErrOracleUnavailable = stderrors.New("ORACLE_UNAVAILABLE")
	ErrOracleTimeout     = stderrors.New("ORACLE_TIMEOUT")
)

// Oracle produces the next decision for a session. Implementations must be
// safe for concurrent use across sessions.
type Oracle interface {
	Decide(ctx context.Context, dc DecisionContext) (models.Decision, error)
}

// OracleConfig holds the HTTP oracle settings.
type OracleConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// HTTPOracle asks a remote decision service for the next action. The full
// decision context is posted as JSON; the response body is a Decision.
type HTTPOracle struct {
	config OracleConfig
	client *http.Client
	logger logger.Logger
}

func NewHTTPOracle(config OracleConfig, log logger.Logger) *HTTPOracle {
	return &HTTPOracle{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		logger: log.WithFields(map[string]interface{}{
			"component": "oracle",
		}),
	}
}

func (o *HTTPOracle) Decide(ctx context.Context, dc DecisionContext) (models.Decision, error) {
	body, err := json.Marshal(dc)
	if err != nil {
		return models.Decision{}, fmt.Errorf("%w: encode context: %v", ErrOracleUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= o.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return models.Decision{}, ErrOracleTimeout
			}
		}

		// Rebuild the request each attempt so the body reader is fresh.
		req, reqErr := http.NewRequestWithContext(ctx, "POST", o.config.BaseURL+"/api/orchestration/decide", bytes.NewBuffer(body))
		if reqErr != nil {
			return models.Decision{}, fmt.Errorf("%w: %v", ErrOracleUnavailable, reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		if o.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+o.config.APIKey)
		}

		resp, lastErr = o.client.Do(req)

		if ctx.Err() != nil ||
			stderrors.Is(lastErr, context.DeadlineExceeded) ||
			stderrors.Is(lastErr, context.Canceled) {
			return models.Decision{}, ErrOracleTimeout
		}

		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}
	}

	if lastErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return models.Decision{}, ErrOracleTimeout
		}
		return models.Decision{}, fmt.Errorf("%w: %v", ErrOracleUnavailable, lastErr)
	}
	if resp == nil {
		return models.Decision{}, fmt.Errorf("%w: no successful response after retries", ErrOracleUnavailable)
	}
	defer resp.Body.Close()

	var decision models.Decision
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		return models.Decision{}, fmt.Errorf("%w: decode error: %v", ErrOracleUnavailable, err)
	}

	o.logger.Info("decision received", map[string]interface{}{
		"sessionId":  dc.SessionID,
		"action":     string(decision.Action),
		"capability": decision.Capability,
	})

	return decision, nil
}
