// Package chat answers general conversational questions through the GenAI
// service. It is the fallback capability when no data query is needed.
package chat

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

const Name = "chat"

var (
	ErrChatFailed  = errors.New("LLM_REQUEST_FAILED")
	ErrChatTimeout = errors.New("LLM_TIMEOUT")
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
		Category: "conversation",
		Purpose:  "Answer general questions conversationally when no data lookup is required",
		InputSchema: map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"message"},
			"properties": map[string]interface{}{
				"message": map[string]interface{}{"type": "string"},
				"context": map[string]interface{}{"type": "object"},
			},
		},
		OutputShape: map[string]interface{}{
			"response": "string",
		},
		Examples: []string{
			"what can you help me with",
			"explain what a conversion rate is",
		},
	}
}

func (c *Capability) Execute(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	message, _ := input["message"].(string)

	requestBody := map[string]interface{}{
		"message": message,
	}
	if chatContext, ok := input["context"]; ok {
		requestBody["context"] = chatContext
	}

	body, _ := json.Marshal(requestBody)
	req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/api/ai/chat", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChatFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrChatTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrChatFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrChatFailed, resp.StatusCode)
	}

	var apiResponse struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrChatFailed, err)
	}

	c.logger.Info("chat response generated", map[string]interface{}{
		"messageLength":  len(message),
		"responseLength": len(apiResponse.Response),
	})

	return map[string]interface{}{
		"response": apiResponse.Response,
	}, nil
}
