package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/pulse-chat/backend/internal/model/chat"
	"github.com/zhouzirui/pulse-chat/backend/pkg/logger"
)

// Backend is the slice of the analytics client a conversation needs.
type Backend interface {
	SessionStarter
	ChatBackend
}

// Options 配置会话行为。
type Options struct {
	RequestTimeout time.Duration
	Now            func() time.Time
}

// Conversation bundles the session, the message store and the request
// coordinator of one chat view.
type Conversation struct {
	id          string
	sessions    *SessionManager
	store       *Store
	coordinator *Coordinator
	events      *Broadcaster
	log         *logrus.Entry
}

// NewConversation 创建一个尚未获取会话标识的会话。
func NewConversation(backend Backend, settings SettingsSource, opts Options) *Conversation {
	id := uuid.NewString()
	log := logger.WithField("conversation", id)
	events := NewBroadcaster()
	store := NewStore(events)
	sessions := NewSessionManager(backend, opts.Now)

	return &Conversation{
		id:       id,
		sessions: sessions,
		store:    store,
		events:   events,
		log:      log,
		coordinator: NewCoordinator(CoordinatorConfig{
			Backend:  backend,
			Sessions: sessions,
			Store:    store,
			Settings: settings,
			Events:   events,
			Timeout:  opts.RequestTimeout,
			Now:      opts.Now,
			Log:      log,
		}),
	}
}

// ID 返回本地会话标识。
func (c *Conversation) ID() string { return c.id }

// Mount acquires the upstream session. Failure is logged and leaves the
// conversation without a session; sends are then ignored.
func (c *Conversation) Mount(ctx context.Context) chat.Session {
	session, err := c.sessions.Start(ctx)
	if err != nil {
		c.log.WithField("error", err).Warn("conversation mounted without session")
	}
	return session
}

// Session 返回上游会话。
func (c *Conversation) Session() chat.Session { return c.sessions.Session() }

// Send 见 Coordinator.Send。
func (c *Conversation) Send(text string) (*Ticket, error) { return c.coordinator.Send(text) }

// Cancel 见 Coordinator.Cancel。
func (c *Conversation) Cancel() bool { return c.coordinator.Cancel() }

// Reset 见 Coordinator.Reset。
func (c *Conversation) Reset() { c.coordinator.Reset() }

// State 返回协调器状态。
func (c *Conversation) State() State { return c.coordinator.State() }

// Input 返回输入缓冲区。
func (c *Conversation) Input() string { return c.coordinator.Input() }

// SetInput 设置输入缓冲区。
func (c *Conversation) SetInput(text string) { c.coordinator.SetInput(text) }

// Messages 返回会话消息副本。
func (c *Conversation) Messages() []chat.Message { return c.store.Messages() }

// Find 按标识查找消息。
func (c *Conversation) Find(id string) (chat.Message, error) { return c.store.Find(id) }

// Subscribe 订阅会话事件。
func (c *Conversation) Subscribe(buffer int) (<-chan Event, func()) {
	return c.events.Subscribe(buffer)
}

// Close stops the conversation: in-flight work is aborted and subscribers are released.
func (c *Conversation) Close() {
	c.coordinator.Close()
	c.events.Close()
}
