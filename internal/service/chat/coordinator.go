package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	model "github.com/zhouzirui/pulse-chat/backend/internal/model/analytics"
	"github.com/zhouzirui/pulse-chat/backend/internal/model/chat"
	"github.com/zhouzirui/pulse-chat/backend/internal/service/analytics"
	"github.com/zhouzirui/pulse-chat/backend/pkg/logger"
)

// DefaultRequestTimeout bounds a single chat request when no timeout is configured.
const DefaultRequestTimeout = 30 * time.Second

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrNoSession     = errors.New("chat session not started")
	ErrBusy          = errors.New("a question is already in flight")
	ErrClosed        = errors.New("conversation closed")
)

// IsRejection reports whether err is one of the Send rejections that callers treat as a no-op.
func IsRejection(err error) bool {
	return errors.Is(err, ErrEmptyQuestion) || errors.Is(err, ErrNoSession) || errors.Is(err, ErrBusy)
}

// ChatBackend sends one question upstream.
type ChatBackend interface {
	Chat(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error)
}

// SettingsSource 在请求时提供当前设置。
type SettingsSource interface {
	Settings() chat.Settings
}

// SessionSource 提供当前会话标识。
type SessionSource interface {
	SessionID() string
}

// State of the coordinator.
type State int

const (
	StateIdle State = iota
	StateSending
)

func (s State) String() string {
	if s == StateSending {
		return "sending"
	}
	return "idle"
}

// Outcome 描述一次请求的最终结果。
type Outcome string

const (
	OutcomeReplied   Outcome = "replied"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeCancelled Outcome = "cancelled"
)

// Result of a finished request.
type Result struct {
	Outcome Outcome
	Reply   *chat.Message
	Err     error
}

// Ticket tracks one accepted question.
type Ticket struct {
	id       uint64
	question chat.Message
	done     chan struct{}
	result   Result
}

// ID 返回请求序号。
func (t *Ticket) ID() uint64 { return t.id }

// Question 返回已追加到会话中的用户消息。
func (t *Ticket) Question() chat.Message { return t.question }

// Done is closed once the request has finished, whatever the outcome.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Result is only meaningful after Done is closed.
func (t *Ticket) Result() Result {
	select {
	case <-t.done:
		return t.result
	default:
		return Result{}
	}
}

// Wait blocks until the request finishes or ctx ends.
func (t *Ticket) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// flight is the cancellation token of one in-flight request. A completion only
// touches the conversation while its flight is still the coordinator's current one.
type flight struct {
	ticket *Ticket
	cancel context.CancelFunc
}

// Coordinator serialises questions: at most one request is in flight.
type Coordinator struct {
	backend  ChatBackend
	sessions SessionSource
	store    *Store
	settings SettingsSource
	events   *Broadcaster
	timeout  time.Duration
	now      func() time.Time
	log      *logrus.Entry

	mu      sync.Mutex
	state   State
	current *flight
	seq     uint64
	input   string
	closed  bool
	wg      sync.WaitGroup
}

// CoordinatorConfig 汇总协调器依赖。
type CoordinatorConfig struct {
	Backend  ChatBackend
	Sessions SessionSource
	Store    *Store
	Settings SettingsSource
	Events   *Broadcaster
	Timeout  time.Duration
	Now      func() time.Time
	Log      *logrus.Entry
}

// NewCoordinator 创建请求协调器。
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = logrus.NewEntry(logger.L())
	}
	if cfg.Events == nil {
		cfg.Events = NewBroadcaster()
	}
	if cfg.Store == nil {
		cfg.Store = NewStore(cfg.Events)
	}
	return &Coordinator{
		backend:  cfg.Backend,
		sessions: cfg.Sessions,
		store:    cfg.Store,
		settings: cfg.Settings,
		events:   cfg.Events,
		timeout:  cfg.Timeout,
		now:      cfg.Now,
		log:      cfg.Log,
	}
}

// Send appends the user message and starts the upstream request. The user message is
// in the store before Send returns. Rejections leave every piece of state untouched.
func (c *Coordinator) Send(text string) (*Ticket, error) {
	question := strings.TrimSpace(text)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	sessionID := c.sessions.SessionID()
	if sessionID == "" {
		return nil, ErrNoSession
	}
	if c.state == StateSending {
		return nil, ErrBusy
	}

	at := c.now()
	userMsg := chat.NewUserMessage(question, at)
	c.store.Append(userMsg)
	c.input = ""
	c.state = StateSending
	c.seq++

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	f := &flight{
		ticket: &Ticket{id: c.seq, question: userMsg, done: make(chan struct{})},
		cancel: cancel,
	}
	c.current = f

	req := BuildChatRequest(sessionID, question, c.settings.Settings(), at)
	c.events.Publish(Event{Type: EventLoading, Loading: true})

	c.wg.Add(1)
	go c.run(ctx, f, req)

	return f.ticket, nil
}

func (c *Coordinator) run(ctx context.Context, f *flight, req model.ChatRequest) {
	defer c.wg.Done()
	defer f.cancel()

	resp, err := c.backend.Chat(ctx, req)
	c.complete(f, resp, err)
}

func (c *Coordinator) complete(f *flight, resp *model.ChatResponse, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer close(f.ticket.done)

	log := c.log.WithField("request", f.ticket.id)

	if c.current != f {
		f.ticket.result = Result{Outcome: OutcomeCancelled, Err: err}
		log.Info("chat request cancelled, discarding completion")
		return
	}

	c.current = nil
	c.state = StateIdle
	c.events.Publish(Event{Type: EventLoading, Loading: false})

	switch {
	case err != nil && analytics.IsTimeout(err):
		f.ticket.result = Result{Outcome: OutcomeTimedOut, Err: err}
		log.WithField("timeout", c.timeout).Warn("chat request timed out")
	case err != nil:
		f.ticket.result = Result{Outcome: OutcomeFailed, Err: err}
		log.WithField("error", err).Error("failed to send message")
	case resp == nil:
		f.ticket.result = Result{Outcome: OutcomeFailed, Err: errors.New("empty chat response")}
		log.Error("failed to send message: empty response")
	default:
		reply := MapResult(resp.Result, chat.NewMessageID(), c.now())
		c.store.Append(reply)
		f.ticket.result = Result{Outcome: OutcomeReplied, Reply: &reply}
		log.WithFields(logrus.Fields{
			"chart": reply.ChartURL != "",
			"table": reply.HasTable(),
		}).Debug("chat reply appended")
	}
}

// Cancel aborts the in-flight request, if any, and returns to Idle immediately.
func (c *Coordinator) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.abortLocked("cancel")
}

// Reset cancels any in-flight request, then clears the conversation and the input
// buffer in one step, so a stale reply can never land in the cleared conversation.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.abortLocked("reset")
	c.store.Clear()
	c.input = ""
}

func (c *Coordinator) abortLocked(reason string) bool {
	f := c.current
	if f == nil {
		return false
	}
	f.cancel()
	c.current = nil
	c.state = StateIdle
	c.events.Publish(Event{Type: EventLoading, Loading: false})
	c.log.WithFields(logrus.Fields{"request": f.ticket.id, "reason": reason}).Info("chat request aborted")
	return true
}

// State 返回当前状态。
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Input 返回输入缓冲区内容。
func (c *Coordinator) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// SetInput 替换输入缓冲区内容。
func (c *Coordinator) SetInput(text string) {
	c.mu.Lock()
	c.input = text
	c.mu.Unlock()
}

// Close aborts any in-flight request, rejects further sends and waits for the
// request goroutine to exit.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.abortLocked("close")
	c.closed = true
	c.mu.Unlock()

	c.wg.Wait()
}
