package workspace

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	model "github.com/zhouzirui/pulse-chat/backend/internal/model/analytics"
	"github.com/zhouzirui/pulse-chat/backend/internal/model/chat"
	chatService "github.com/zhouzirui/pulse-chat/backend/internal/service/chat"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubBackend struct {
	mu         sync.Mutex
	sessionErr error
	questions  []model.ChatRequest
	block      chan struct{}
}

func (b *stubBackend) StartSession(context.Context) (string, error) {
	if b.sessionErr != nil {
		return "", b.sessionErr
	}
	return "sess-1", nil
}

func (b *stubBackend) Chat(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error) {
	b.mu.Lock()
	b.questions = append(b.questions, req)
	block := b.block
	b.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &model.ChatResponse{Result: model.ChatResult{TextExplanation: "answer"}}, nil
}

func (b *stubBackend) sent() []model.ChatRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.ChatRequest(nil), b.questions...)
}

func newService(backend chatService.Backend) *Service {
	return NewService(backend, chatService.Options{RequestTimeout: time.Second})
}

func TestCreateMountsConversation(t *testing.T) {
	svc := newService(&stubBackend{})
	defer svc.Close()

	state, err := svc.Create(context.Background(), "ana@example.com")
	require.NoError(t, err)

	assert.True(t, state.SignedIn())
	assert.Equal(t, "ana@example.com", state.Username())
	assert.Equal(t, ThemeDark, state.Theme())
	assert.Equal(t, chat.DefaultSettings(), state.Settings())
	assert.Equal(t, "sess-1", state.Conversation().Session().ID)

	got, err := svc.Get(state.ID())
	require.NoError(t, err)
	assert.Same(t, state, got)
	assert.Equal(t, 1, svc.Len())
}

func TestCreateSurvivesSessionFailure(t *testing.T) {
	svc := newService(&stubBackend{sessionErr: errors.New("upstream down")})
	defer svc.Close()

	state, err := svc.Create(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.False(t, state.Conversation().Session().Active())

	_, err = state.Conversation().Send("question")
	assert.ErrorIs(t, err, chatService.ErrNoSession)
}

func TestGetUnknownWorkspace(t *testing.T) {
	svc := newService(&stubBackend{})
	defer svc.Close()

	_, err := svc.Get("missing")
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)
	assert.ErrorIs(t, svc.Remove("missing"), ErrWorkspaceNotFound)
}

func TestRemoveCancelsInFlightRequest(t *testing.T) {
	backend := &stubBackend{block: make(chan struct{})}
	svc := newService(backend)
	defer svc.Close()

	state, err := svc.Create(context.Background(), "ana@example.com")
	require.NoError(t, err)

	ticket, err := state.Conversation().Send("question")
	require.NoError(t, err)

	require.NoError(t, svc.Remove(state.ID()))
	assert.False(t, state.SignedIn())
	assert.Empty(t, state.Conversation().Messages())

	select {
	case <-ticket.Done():
	case <-time.After(time.Second):
		t.Fatal("request was not cancelled")
	}
	assert.Equal(t, chatService.OutcomeCancelled, ticket.Result().Outcome)

	_, err = svc.Get(state.ID())
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)
}

func TestThemeTransitions(t *testing.T) {
	svc := newService(&stubBackend{})
	defer svc.Close()
	state, err := svc.Create(context.Background(), "ana@example.com")
	require.NoError(t, err)

	assert.Equal(t, ThemeLight, state.ToggleTheme())
	assert.Equal(t, ThemeDark, state.ToggleTheme())

	require.NoError(t, state.SetTheme(ThemeLight))
	assert.Equal(t, ThemeLight, state.Theme())
	assert.ErrorIs(t, state.SetTheme("sepia"), ErrInvalidTheme)
	assert.Equal(t, ThemeLight, state.Theme())
}

func TestUpdateSettingsAppliesToNextQuestion(t *testing.T) {
	backend := &stubBackend{}
	svc := newService(backend)
	defer svc.Close()
	state, err := svc.Create(context.Background(), "ana@example.com")
	require.NoError(t, err)

	updated := chat.DefaultSettings()
	updated.Language = "Spanish"
	updated.Creativity = 0.2
	require.NoError(t, state.UpdateSettings(updated))

	invalid := updated
	invalid.Creativity = 1.5
	assert.ErrorIs(t, state.UpdateSettings(invalid), chat.ErrInvalidSettings)
	assert.Equal(t, updated, state.Snapshot().Settings)

	ticket, err := state.Conversation().Send("question")
	require.NoError(t, err)
	<-ticket.Done()

	sent := backend.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Spanish", sent[0].Settings.Language)
	assert.Equal(t, 0.2, sent[0].Settings.Creativity)
}
