// Package session persists final session snapshots so follow-up queries can
// reference a prior session's results after the loop has exited.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"analytics-orchestrator/internal/common/logger"
	"analytics-orchestrator/internal/models"
)

// ErrNotFound is returned when no snapshot exists for a session id.
var ErrNotFound = fmt.Errorf("session snapshot not found")

// Snapshot is what survives a session: the final response plus the task
// results it was assembled from.
type Snapshot struct {
	SessionID string               `json:"sessionId"`
	TenantID  string               `json:"tenantId"`
	Query     string               `json:"query"`
	Final     models.FinalResponse `json:"final"`
	SavedAt   time.Time            `json:"savedAt"`
}

// Store writes snapshots to Redis with a TTL. Snapshots are read-mostly and
// short-lived; there is no update path.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewStore(client *redis.Client, ttl time.Duration, log logger.Logger) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
		logger: log,
	}
}

func key(sessionID string) string {
	return "session:" + sessionID + ":result"
}

// Save persists the final state of a completed session.
func (s *Store) Save(ctx context.Context, state *models.SessionState) error {
	if state.Final == nil {
		return fmt.Errorf("session %s has no final response", state.SessionID)
	}

	snapshot := Snapshot{
		SessionID: state.SessionID,
		TenantID:  state.TenantID,
		Query:     state.Frame.Query,
		Final:     *state.Final,
		SavedAt:   time.Now().UTC(),
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := s.client.Set(ctx, key(state.SessionID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	s.logger.Debug("session snapshot saved", map[string]interface{}{
		"sessionId": state.SessionID,
		"ttl":       s.ttl.String(),
	})
	return nil
}

// Load retrieves the snapshot for a session id, or ErrNotFound once the TTL
// has expired.
func (s *Store) Load(ctx context.Context, sessionID string) (Snapshot, error) {
	payload, err := s.client.Get(ctx, key(sessionID)).Bytes()
	if err == redis.Nil {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, nil
}

// Delete removes a snapshot before its TTL.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, key(sessionID)).Err()
}
