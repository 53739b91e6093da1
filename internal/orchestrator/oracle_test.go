package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analytics-orchestrator/internal/common/logger"
	"analytics-orchestrator/internal/models"
)

func testContext() DecisionContext {
	return DecisionContext{
		SessionID: "sess-1",
		TenantID:  "tenant-1",
		Query:     "how many tickets did gatsby sell",
		LoopCount: 1,
		MaxLoops:  10,
	}
}

func TestHTTPOracleDecide(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orchestration/decide", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var dc DecisionContext
		require.NoError(t, json.NewDecoder(r.Body).Decode(&dc))
		assert.Equal(t, "sess-1", dc.SessionID)

		json.NewEncoder(w).Encode(models.Decision{
			Action:     models.ActionExecute,
			Capability: "ticketing_data",
			Input:      map[string]interface{}{"measure": "ticket_count"},
		})
	}))
	defer server.Close()

	oracle := NewHTTPOracle(OracleConfig{
		BaseURL:    server.URL,
		APIKey:     "test-key",
		Timeout:    2 * time.Second,
		MaxRetries: 1,
	}, logger.NewTestLogger(t))

	decision, err := oracle.Decide(context.Background(), testContext())
	require.NoError(t, err)
	assert.Equal(t, models.ActionExecute, decision.Action)
	assert.Equal(t, "ticketing_data", decision.Capability)
}

func TestHTTPOracleRetriesOnServerError(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(models.Decision{
			Action:       models.ActionComplete,
			ResponseText: "eventually",
		})
	}))
	defer server.Close()

	oracle := NewHTTPOracle(OracleConfig{
		BaseURL:    server.URL,
		Timeout:    5 * time.Second,
		MaxRetries: 3,
	}, logger.NewTestLogger(t))

	decision, err := oracle.Decide(context.Background(), testContext())
	require.NoError(t, err)
	assert.Equal(t, "eventually", decision.ResponseText)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestHTTPOracleExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	oracle := NewHTTPOracle(OracleConfig{
		BaseURL:    server.URL,
		Timeout:    5 * time.Second,
		MaxRetries: 1,
	}, logger.NewTestLogger(t))

	_, err := oracle.Decide(context.Background(), testContext())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOracleUnavailable)
}

func TestHTTPOracleTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	oracle := NewHTTPOracle(OracleConfig{
		BaseURL:    server.URL,
		Timeout:    50 * time.Millisecond,
		MaxRetries: 0,
	}, logger.NewTestLogger(t))

	_, err := oracle.Decide(context.Background(), testContext())
	assert.ErrorIs(t, err, ErrOracleTimeout)
}

func TestHTTPOracleMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	oracle := NewHTTPOracle(OracleConfig{
		BaseURL:    server.URL,
		Timeout:    time.Second,
		MaxRetries: 0,
	}, logger.NewTestLogger(t))

	_, err := oracle.Decide(context.Background(), testContext())
	assert.ErrorIs(t, err, ErrOracleUnavailable)
}
