// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"consultor-ia-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// SessionRepository 保存每个会话最近 N 轮问答。过期的会话视为没有历史。
type SessionRepository interface {
	GetHistory(ctx context.Context, sessionID string) ([]model.Turn, error)
	// AppendTurn 追加一轮并截断到最近 maxTurns 轮，发生截断时返回 true
	AppendTurn(ctx context.Context, sessionID string, turn model.Turn, maxTurns int) (bool, error)
	Clear(ctx context.Context, sessionID string) error
	ActiveSessions(ctx context.Context) (int, error)
}

type redisSessionRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewRedisSessionRepository 以会话超时作为 key 的 TTL，过期由 Redis 负责。
func NewRedisSessionRepository(redisClient *redis.Client, ttl time.Duration) SessionRepository {
	return &redisSessionRepository{redisClient: redisClient, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s:history", sessionID)
}

// GetHistory 从 Redis 获取会话历史。
func (r *redisSessionRepository) GetHistory(ctx context.Context, sessionID string) ([]model.Turn, error) {
	jsonData, err := r.redisClient.Get(ctx, sessionKey(sessionID)).Result()
	if err == redis.Nil {
		return []model.Turn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session history: %w", err)
	}
	var turns []model.Turn
	if err := json.Unmarshal([]byte(jsonData), &turns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session history: %w", err)
	}
	return turns, nil
}

// AppendTurn 读出历史、追加、截断后整体写回，并刷新 TTL。
func (r *redisSessionRepository) AppendTurn(ctx context.Context, sessionID string, turn model.Turn, maxTurns int) (bool, error) {
	turns, err := r.GetHistory(ctx, sessionID)
	if err != nil {
		return false, err
	}
	turns, truncated := appendBounded(turns, turn, maxTurns)

	jsonData, err := json.Marshal(turns)
	if err != nil {
		return false, fmt.Errorf("failed to marshal session history: %w", err)
	}
	if err := r.redisClient.Set(ctx, sessionKey(sessionID), jsonData, r.ttl).Err(); err != nil {
		return false, fmt.Errorf("failed to set session history: %w", err)
	}
	return truncated, nil
}

func (r *redisSessionRepository) Clear(ctx context.Context, sessionID string) error {
	if err := r.redisClient.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session history: %w", err)
	}
	return nil
}

// ActiveSessions 统计未过期的会话数。
func (r *redisSessionRepository) ActiveSessions(ctx context.Context) (int, error) {
	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := r.redisClient.Scan(ctx, cursor, "session:*:history", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan session keys: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// appendBounded 按先进先出丢弃最旧的轮次。
func appendBounded(turns []model.Turn, turn model.Turn, maxTurns int) ([]model.Turn, bool) {
	turns = append(turns, turn)
	if maxTurns > 0 && len(turns) > maxTurns {
		kept := make([]model.Turn, maxTurns)
		copy(kept, turns[len(turns)-maxTurns:])
		return kept, true
	}
	return turns, false
}
