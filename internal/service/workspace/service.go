package workspace

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/pulse-chat/backend/internal/model/chat"
	chatService "github.com/zhouzirui/pulse-chat/backend/internal/service/chat"
	"github.com/zhouzirui/pulse-chat/backend/pkg/logger"
)

var ErrWorkspaceNotFound = errors.New("workspace not found")

// Service 内存中的工作区管理。
type Service struct {
	backend chatService.Backend
	opts    chatService.Options
	now     func() time.Time

	mu         sync.RWMutex
	workspaces map[string]*State
}

// NewService creates a workspace service whose conversations talk to backend.
func NewService(backend chatService.Backend, opts chatService.Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		backend:    backend,
		opts:       opts,
		now:        now,
		workspaces: make(map[string]*State),
	}
}

// Create signs username into a fresh workspace and mounts its conversation. A failed
// session start does not fail the workspace; its sends are ignored instead.
func (s *Service) Create(ctx context.Context, username string) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	settings := chat.NewSettingsHolder(chat.DefaultSettings())
	state := &State{
		id:           uuid.NewString(),
		createdAt:    s.now().UTC(),
		settings:     settings,
		conversation: chatService.NewConversation(s.backend, settings, s.opts),
		theme:        DefaultTheme,
	}
	state.SignIn(username)
	session := state.conversation.Mount(ctx)

	s.mu.Lock()
	s.workspaces[state.id] = state
	s.mu.Unlock()

	logger.WithFields(logrus.Fields{
		"workspace":    state.id,
		"conversation": state.conversation.ID(),
		"session":      session.ID,
	}).Info("workspace created")
	return state, nil
}

// Get 按标识获取工作区。
func (s *Service) Get(id string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.workspaces[id]
	if !ok {
		return nil, ErrWorkspaceNotFound
	}
	return state, nil
}

// Remove signs the workspace out and releases its conversation.
func (s *Service) Remove(id string) error {
	s.mu.Lock()
	state, ok := s.workspaces[id]
	delete(s.workspaces, id)
	s.mu.Unlock()

	if !ok {
		return ErrWorkspaceNotFound
	}
	state.SignOut()
	state.conversation.Close()
	logger.WithField("workspace", id).Info("workspace removed")
	return nil
}

// Len 返回工作区数量。
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workspaces)
}

// Close 释放所有工作区，用于进程退出。
func (s *Service) Close() {
	s.mu.Lock()
	states := make([]*State, 0, len(s.workspaces))
	for id, state := range s.workspaces {
		states = append(states, state)
		delete(s.workspaces, id)
	}
	s.mu.Unlock()

	for _, state := range states {
		state.conversation.Close()
	}
}
