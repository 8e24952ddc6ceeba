package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloo-solutions/licitai/internal/domain"
	"go.uber.org/zap"
)

const keyPrefix = "licitai:session:"

// listStore is the consumer interface over kv.Store.
type listStore interface {
	AppendCapped(ctx context.Context, key string, window int, ttl time.Duration, values ...string) error
	Range(ctx context.Context, key string) ([]string, error)
	Delete(ctx context.Context, keys ...string) error
}

// RedisStore keeps each session as a capped Redis list of JSON turns.
type RedisStore struct {
	store  listStore
	window int
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore creates a Redis-backed store. Idle sessions expire after ttl.
func NewRedisStore(store listStore, window int, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if window <= 0 {
		window = domain.HistoryWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{store: store, window: window, ttl: ttl, logger: logger}
}

func (s *RedisStore) History(ctx context.Context, sessionID string) (domain.History, error) {
	raw, err := s.store.Range(ctx, keyPrefix+sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session history: %w", err)
	}

	h := make(domain.History, 0, len(raw))
	for _, item := range raw {
		var turn domain.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			s.logger.Warn("Skipping malformed session turn", zap.String("session_id", sessionID), zap.Error(err))
			continue
		}
		h = append(h, turn)
	}
	return h.Trim(s.window), nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, turns ...domain.Turn) error {
	values := make([]string, 0, len(turns))
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("encode turn: %w", err)
		}
		values = append(values, string(data))
	}
	if err := s.store.AppendCapped(ctx, keyPrefix+sessionID, s.window, s.ttl, values...); err != nil {
		return fmt.Errorf("append session history: %w", err)
	}
	return nil
}

func (s *RedisStore) Reset(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, keyPrefix+sessionID); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	return nil
}
