// Package eventsearch finds events in the search index by free-text query,
// optionally filtered by venue or date range.
package eventsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"analytics-orchestrator/internal/capability"
	"analytics-orchestrator/internal/common/logger"
)

const Name = "event_search"

const defaultSize = 10

var (
	ErrSearchQueryFailed = errors.New("SEARCH_QUERY_FAILED")
	ErrSearchTimeout     = errors.New("SEARCH_TIMEOUT")
)

type Config struct {
	Index string
}

type Capability struct {
	config Config
	client *elasticsearch.Client
	logger logger.Logger
}

func New(config Config, client *elasticsearch.Client, log logger.Logger) *Capability {
	return &Capability{
		config: config,
		client: client,
		logger: log.WithFields(map[string]interface{}{
			"capability": Name,
		}),
	}
}

func (c *Capability) Describe() capability.Descriptor {
	return capability.Descriptor{
		Name:     Name,
		Category: "data",
		Purpose:  "Find events by name, description, or venue in the event search index",
		InputSchema: map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"query"},
			"properties": map[string]interface{}{
				"query": map[string]interface{}{"type": "string"},
				"venue": map[string]interface{}{"type": "string"},
				"limit": map[string]interface{}{"type": "integer"},
			},
		},
		OutputShape: map[string]interface{}{
			"hits":  "array",
			"total": "number",
		},
		Examples: []string{
			"find events at the Orpheum",
			"search for jazz concerts",
		},
	}
}

func (c *Capability) Execute(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	query, _ := input["query"].(string)

	size := defaultSize
	if limit, ok := input["limit"].(float64); ok && limit > 0 {
		size = int(limit)
	}

	body, _ := json.Marshal(buildSearchQuery(query, input))

	req := esapi.SearchRequest{
		Index: []string{c.config.Index},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrSearchTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchQueryFailed, res.Status())
	}

	var searchResponse struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string                 `json:"_id"`
				Score  float64                `json:"_score"`
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResponse); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrSearchQueryFailed, err)
	}

	hits := make([]interface{}, 0, len(searchResponse.Hits.Hits))
	for _, hit := range searchResponse.Hits.Hits {
		hits = append(hits, map[string]interface{}{
			"id":     hit.ID,
			"score":  hit.Score,
			"source": hit.Source,
		})
	}

	c.logger.Info("event search completed", map[string]interface{}{
		"query":    query,
		"hitCount": len(hits),
		"total":    searchResponse.Hits.Total.Value,
	})

	return map[string]interface{}{
		"hits":  hits,
		"total": float64(searchResponse.Hits.Total.Value),
	}, nil
}

func buildSearchQuery(query string, input map[string]interface{}) map[string]interface{} {
	mustClauses := []interface{}{
		map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"name^3", "description^2", "venue"},
				"type":   "best_fields",
			},
		},
	}
	filterClauses := []interface{}{}

	if venue, ok := input["venue"].(string); ok && venue != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"venue.keyword": venue},
		})
	}

	boolQuery := map[string]interface{}{"must": mustClauses}
	if len(filterClauses) > 0 {
		boolQuery["filter"] = filterClauses
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
	}
}
