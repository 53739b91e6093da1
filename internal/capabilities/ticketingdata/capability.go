// Package ticketingdata queries the ticketing analytics service for
// aggregated sales data: measures over dimensions with optional filters.
package ticketingdata

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

const Name = "ticketing_data"

var (
	ErrQueryFailed  = errors.New("CUBE_QUERY_FAILED")
	ErrQueryTimeout = errors.New("CUBE_QUERY_TIMEOUT")
)

type Config struct {
	BaseURL string
	Secret  string
	Timeout time.Duration
}

// Query is the analytical query shape forwarded to the cube service.
type Query struct {
	Measures   []string                 `json:"measures"`
	Dimensions []string                 `json:"dimensions,omitempty"`
	Filters    []map[string]interface{} `json:"filters,omitempty"`
	Order      map[string]string        `json:"order,omitempty"`
	Limit      int                      `json:"limit,omitempty"`
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
		Category: "data",
		Purpose:  "Query ticket sales data: counts, revenue, and trends by event, venue, or date range",
		InputSchema: map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"measures"},
			"properties": map[string]interface{}{
				"measures": map[string]interface{}{
					"type":     "array",
					"items":    map[string]interface{}{"type": "string"},
					"minItems": 1,
				},
				"dimensions": map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"type": "string"},
				},
				"filters": map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"type": "object"},
				},
				"order": map[string]interface{}{"type": "object"},
				"limit": map[string]interface{}{"type": "integer"},
				"tenantId": map[string]interface{}{"type": "string"},
			},
		},
		OutputShape: map[string]interface{}{
			"rows":     "array",
			"rowCount": "number",
		},
		Examples: []string{
			"how many tickets did gatsby sell last month",
			"revenue by venue for Q2",
		},
	}
}

func (c *Capability) Execute(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	query := Query{
		Measures:   stringSlice(input["measures"]),
		Dimensions: stringSlice(input["dimensions"]),
	}
	if filters, ok := input["filters"].([]interface{}); ok {
		for _, f := range filters {
			if m, ok := f.(map[string]interface{}); ok {
				query.Filters = append(query.Filters, m)
			}
		}
	}
	if order, ok := input["order"].(map[string]interface{}); ok {
		query.Order = make(map[string]string, len(order))
		for k, v := range order {
			if s, ok := v.(string); ok {
				query.Order[k] = s
			}
		}
	}
	if limit, ok := input["limit"].(float64); ok {
		query.Limit = int(limit)
	}

	body, _ := json.Marshal(map[string]interface{}{"query": query})
	req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/cubejs-api/v1/load", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.config.Secret)
	if tenantID, ok := input["tenantId"].(string); ok && tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrQueryTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrQueryFailed, resp.StatusCode)
	}

	var apiResponse struct {
		Data []map[string]interface{} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrQueryFailed, err)
	}

	c.logger.Info("ticketing query completed", map[string]interface{}{
		"measures": query.Measures,
		"rowCount": len(apiResponse.Data),
	})

	rows := make([]interface{}, len(apiResponse.Data))
	for i, row := range apiResponse.Data {
		rows[i] = row
	}
	return map[string]interface{}{
		"rows":     rows,
		"rowCount": float64(len(rows)),
	}, nil
}

func stringSlice(value interface{}) []string {
	items, ok := value.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
