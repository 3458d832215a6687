package chat

import (
	"context"
	"sync"
	"time"

	"github.com/zhouzirui/pulse-chat/backend/internal/model/chat"
	"github.com/zhouzirui/pulse-chat/backend/pkg/logger"
)

// SessionStarter 申请上游会话标识。
type SessionStarter interface {
	StartSession(ctx context.Context) (string, error)
}

// SessionManager acquires the upstream session identifier once per conversation.
// A failed start is logged and never retried; the identifier then stays unset.
type SessionManager struct {
	starter SessionStarter
	now     func() time.Time

	once    sync.Once
	mu      sync.RWMutex
	session chat.Session
	err     error
}

// NewSessionManager 创建会话管理器。
func NewSessionManager(starter SessionStarter, now func() time.Time) *SessionManager {
	if now == nil {
		now = time.Now
	}
	return &SessionManager{starter: starter, now: now}
}

// Start issues the start-session call on first use and memoises its outcome.
func (m *SessionManager) Start(ctx context.Context) (chat.Session, error) {
	m.once.Do(func() {
		id, err := m.starter.StartSession(ctx)

		m.mu.Lock()
		defer m.mu.Unlock()
		if err != nil {
			m.err = err
			logger.WithField("error", err).Error("failed to start chat session")
			return
		}
		m.session = chat.Session{ID: id, StartedAt: m.now().UTC()}
		logger.WithField("session", id).Info("chat session started")
	})

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session, m.err
}

// Session 返回当前会话，未获取时 ID 为空。
func (m *SessionManager) Session() chat.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// SessionID 返回会话标识或空串。
func (m *SessionManager) SessionID() string {
	return m.Session().ID
}
