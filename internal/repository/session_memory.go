package repository

import (
	"context"
	"sync"
	"time"

	"consultor-ia-go/internal/model"
)

type memorySession struct {
	turns      []model.Turn
	lastActive time.Time
}

// memorySessionRepository 在进程内保存会话，访问时按最后活跃时间判断是否过期。
type memorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	timeout  time.Duration
	now      func() time.Time
}

// NewMemorySessionRepository 创建进程内会话存储。now 为 nil 时使用 time.Now。
func NewMemorySessionRepository(timeout time.Duration, now func() time.Time) SessionRepository {
	if now == nil {
		now = time.Now
	}
	return &memorySessionRepository{
		sessions: make(map[string]*memorySession),
		timeout:  timeout,
		now:      now,
	}
}

// live 返回未过期的会话；过期的会话在此处被清除。调用方需持有锁。
func (r *memorySessionRepository) live(sessionID string) *memorySession {
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	if r.timeout > 0 && r.now().Sub(s.lastActive) > r.timeout {
		delete(r.sessions, sessionID)
		return nil
	}
	return s
}

func (r *memorySessionRepository) GetHistory(_ context.Context, sessionID string) ([]model.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.live(sessionID)
	if s == nil {
		return []model.Turn{}, nil
	}
	out := make([]model.Turn, len(s.turns))
	copy(out, s.turns)
	return out, nil
}

func (r *memorySessionRepository) AppendTurn(_ context.Context, sessionID string, turn model.Turn, maxTurns int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.live(sessionID)
	if s == nil {
		s = &memorySession{}
		r.sessions[sessionID] = s
	}
	var truncated bool
	s.turns, truncated = appendBounded(s.turns, turn, maxTurns)
	s.lastActive = r.now()
	return truncated, nil
}

func (r *memorySessionRepository) Clear(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}

func (r *memorySessionRepository) ActiveSessions(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for id := range r.sessions {
		if r.live(id) != nil {
			count++
		}
	}
	return count, nil
}
