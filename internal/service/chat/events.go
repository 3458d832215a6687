package chat

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/pulse-chat/backend/internal/model/chat"
	"github.com/zhouzirui/pulse-chat/backend/pkg/logger"
)

// EventType 描述会话中发生的变化。
type EventType string

const (
	EventMessage EventType = "message"
	EventLoading EventType = "loading"
	EventReset   EventType = "reset"
)

// Event is pushed to live feed subscribers.
type Event struct {
	Type    EventType     `json:"type"`
	Message *chat.Message `json:"message,omitempty"`
	Loading bool          `json:"loading"`
	At      time.Time     `json:"at"`
}

// Broadcaster fans events out to subscribers. Slow subscribers lose events rather
// than block the conversation.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[uint64]chan Event
	next   uint64
	closed bool
}

// NewBroadcaster 创建事件分发器。
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]chan Event)}
}

// Subscribe registers a subscriber. The returned func unsubscribes and closes the channel.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Publish 非阻塞地把事件投递给所有订阅者。
func (b *Broadcaster) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			logger.WithFields(logrus.Fields{"subscriber": id, "event": ev.Type}).Warn("dropping event for slow subscriber")
		}
	}
}

// Close 关闭所有订阅通道，之后的订阅立即得到已关闭的通道。
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
