package chat

import (
	"errors"
	"sync"

	"github.com/zhouzirui/pulse-chat/backend/internal/model/chat"
)

// ErrMessageNotFound 表示会话中不存在该消息。
var ErrMessageNotFound = errors.New("message not found")

// Store is the ordered conversation. It only grows, except for Clear.
type Store struct {
	mu       sync.RWMutex
	messages []chat.Message
	events   *Broadcaster
}

// NewStore 创建会话存储，events 可为空。
func NewStore(events *Broadcaster) *Store {
	return &Store{
		messages: make([]chat.Message, 0, 16),
		events:   events,
	}
}

// Append adds a message to the end of the conversation.
func (s *Store) Append(message chat.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, message)
	s.mu.Unlock()

	if s.events != nil {
		s.events.Publish(Event{Type: EventMessage, Message: &message})
	}
}

// Messages returns a copy of the conversation in order.
func (s *Store) Messages() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]chat.Message, len(s.messages))
	copy(copied, s.messages)
	return copied
}

// Find looks up a message by identifier.
func (s *Store) Find(id string) (chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return chat.Message{}, ErrMessageNotFound
}

// Len 返回消息数量。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Clear drops every message.
func (s *Store) Clear() {
	s.mu.Lock()
	s.messages = make([]chat.Message, 0, 16)
	s.mu.Unlock()

	if s.events != nil {
		s.events.Publish(Event{Type: EventReset})
	}
}
