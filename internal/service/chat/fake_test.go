package chat

import (
	"context"
	"sync"
	"time"

	model "github.com/zhouzirui/pulse-chat/backend/internal/model/analytics"
	"github.com/zhouzirui/pulse-chat/backend/internal/model/chat"
)

type fakeBackend struct {
	mu         sync.Mutex
	sessionID  string
	sessionErr error
	starts     int
	requests   []model.ChatRequest
	chatFn     func(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error)
}

func (f *fakeBackend) StartSession(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.sessionID, f.sessionErr
}

func (f *fakeBackend) Chat(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn := f.chatFn
	f.mu.Unlock()

	if fn == nil {
		return reply("ok"), nil
	}
	return fn(ctx, req)
}

func (f *fakeBackend) calls() []model.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ChatRequest(nil), f.requests...)
}

func reply(text string) *model.ChatResponse {
	return &model.ChatResponse{SessionID: "sess-1", Result: model.ChatResult{TextExplanation: text}}
}

func strPtr(s string) *string { return &s }

type staticSession string

func (s staticSession) SessionID() string { return string(s) }

var fixedNow = time.Date(2024, 3, 5, 14, 7, 9, 123_000_000, time.UTC)

func newTestCoordinator(backend ChatBackend, session string, timeout time.Duration) (*Coordinator, *Store) {
	events := NewBroadcaster()
	store := NewStore(events)
	c := NewCoordinator(CoordinatorConfig{
		Backend:  backend,
		Sessions: staticSession(session),
		Store:    store,
		Settings: chat.NewSettingsHolder(chat.DefaultSettings()),
		Events:   events,
		Timeout:  timeout,
		Now:      func() time.Time { return fixedNow },
	})
	return c, store
}
