// Package eventanalysis asks the GenAI service to interpret data produced by
// earlier tasks, typically the rows a ticketing query returned.
package eventanalysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"analytics-orchestrator/internal/capability"
	"analytics-orchestrator/internal/common/httpclient"
	"analytics-orchestrator/internal/common/logger"
)

const Name = "event_analysis"

var (
	ErrAnalysisFailed  = errors.New("LLM_REQUEST_FAILED")
	ErrAnalysisTimeout = errors.New("LLM_TIMEOUT")
)

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Capability struct {
	config Config
	client *httpclient.Client
	logger logger.Logger
}

func New(config Config, log logger.Logger) *Capability {
	return &Capability{
		config: config,
		client: httpclient.NewClient(config.Timeout),
		logger: log.WithFields(map[string]interface{}{
			"capability": Name,
		}),
	}
}

func (c *Capability) Describe() capability.Descriptor {
	return capability.Descriptor{
		Name:     Name,
		Category: "analysis",
		Purpose:  "Interpret data from a prior task and explain trends, anomalies, or comparisons",
		InputSchema: map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"question", "data"},
			"properties": map[string]interface{}{
				"question": map[string]interface{}{"type": "string"},
				"data":     map[string]interface{}{"type": "object"},
			},
		},
		OutputShape: map[string]interface{}{
			"summary":  "string",
			"insights": "array",
		},
		Examples: []string{
			"why did sales dip in March",
			"compare these two events' performance",
		},
	}
}

func (c *Capability) Execute(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	question, _ := input["question"].(string)

	body, _ := json.Marshal(map[string]interface{}{
		"question": question,
		"data":     input["data"],
	})
	req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/api/ai/analyze", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrAnalysisTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrAnalysisFailed, resp.StatusCode)
	}

	var apiResponse struct {
		Summary  string   `json:"summary"`
		Insights []string `json:"insights"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrAnalysisFailed, err)
	}

	c.logger.Info("analysis completed", map[string]interface{}{
		"question":     question,
		"insightCount": len(apiResponse.Insights),
	})

	insights := make([]interface{}, len(apiResponse.Insights))
	for i, insight := range apiResponse.Insights {
		insights[i] = insight
	}
	return map[string]interface{}{
		"summary":  apiResponse.Summary,
		"insights": insights,
	}, nil
}
