package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/zhouzirui/pulse-chat/backend/internal/model/analytics"
	"github.com/zhouzirui/pulse-chat/backend/internal/model/chat"
)

func waitResult(t *testing.T, ticket *Ticket) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := ticket.Wait(ctx)
	require.NoError(t, err)
	return res
}

func TestSendRejectsBlankInput(t *testing.T) {
	backend := &fakeBackend{}
	c, store := newTestCoordinator(backend, "sess-1", time.Second)
	defer c.Close()
	c.SetInput("draft")

	for _, text := range []string{"", "   ", "\n\t "} {
		ticket, err := c.Send(text)
		assert.ErrorIs(t, err, ErrEmptyQuestion)
		assert.Nil(t, ticket)
	}

	assert.Zero(t, store.Len())
	assert.Empty(t, backend.calls())
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, "draft", c.Input())
}

func TestSendWithoutSessionIsIgnored(t *testing.T) {
	backend := &fakeBackend{}
	c, store := newTestCoordinator(backend, "", time.Second)
	defer c.Close()

	_, err := c.Send("Provide the daily sales trend")

	assert.ErrorIs(t, err, ErrNoSession)
	assert.True(t, IsRejection(err))
	assert.Zero(t, store.Len())
	assert.Empty(t, backend.calls())
}

func TestSendAppendsUserMessageBeforeReply(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{chatFn: func(ctx context.Context, _ model.ChatRequest) (*model.ChatResponse, error) {
		<-release
		return reply("Daily sales are up"), nil
	}}
	c, store := newTestCoordinator(backend, "sess-1", time.Second)
	defer c.Close()
	c.SetInput("  Provide the daily sales trend ")

	ticket, err := c.Send("  Provide the daily sales trend ")
	require.NoError(t, err)

	messages := store.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, chat.SenderUser, messages[0].Sender)
	assert.Equal(t, "Provide the daily sales trend", messages[0].Content)
	assert.Equal(t, messages[0], ticket.Question())
	assert.Empty(t, c.Input())
	assert.Equal(t, StateSending, c.State())

	close(release)
	res := waitResult(t, ticket)

	assert.Equal(t, OutcomeReplied, res.Outcome)
	messages = store.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, chat.SenderBot, messages[1].Sender)
	assert.Equal(t, "Daily sales are up", messages[1].Content)
	assert.NotEqual(t, messages[0].ID, messages[1].ID)
	assert.Equal(t, StateIdle, c.State())

	calls := backend.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sess-1", calls[0].SessionID)
	assert.Equal(t, "Provide the daily sales trend", calls[0].Question)
	assert.Equal(t, "2024-03-05T00:00:00Z", calls[0].Date)
	assert.Equal(t, "14:07:09", calls[0].Time)
}

func TestSendWhileSendingIsRejected(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{chatFn: func(context.Context, model.ChatRequest) (*model.ChatResponse, error) {
		<-release
		return reply("done"), nil
	}}
	c, store := newTestCoordinator(backend, "sess-1", time.Second)
	defer c.Close()

	ticket, err := c.Send("first")
	require.NoError(t, err)

	_, err = c.Send("second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 1, store.Len())

	close(release)
	waitResult(t, ticket)
	assert.Len(t, backend.calls(), 1)
}

func TestFailureProducesNoBotMessage(t *testing.T) {
	backend := &fakeBackend{chatFn: func(context.Context, model.ChatRequest) (*model.ChatResponse, error) {
		return nil, errors.New("connection refused")
	}}
	c, store := newTestCoordinator(backend, "sess-1", time.Second)
	defer c.Close()

	ticket, err := c.Send("Provide the daily sales trend")
	require.NoError(t, err)
	res := waitResult(t, ticket)

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Nil(t, res.Reply)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, StateIdle, c.State())
}

func TestTimeoutReturnsToIdle(t *testing.T) {
	backend := &fakeBackend{chatFn: func(ctx context.Context, _ model.ChatRequest) (*model.ChatResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c, store := newTestCoordinator(backend, "sess-1", 20*time.Millisecond)
	defer c.Close()

	ticket, err := c.Send("slow question")
	require.NoError(t, err)
	res := waitResult(t, ticket)

	assert.Equal(t, OutcomeTimedOut, res.Outcome)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, StateIdle, c.State())
}

func TestCancelDiscardsReply(t *testing.T) {
	backend := &fakeBackend{chatFn: func(ctx context.Context, _ model.ChatRequest) (*model.ChatResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c, store := newTestCoordinator(backend, "sess-1", time.Second)
	defer c.Close()

	ticket, err := c.Send("question")
	require.NoError(t, err)

	assert.True(t, c.Cancel())
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.Cancel())

	res := waitResult(t, ticket)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Equal(t, 1, store.Len())
}

func TestResetWhilePendingKeepsConversationClear(t *testing.T) {
	started := make(chan struct{})
	backend := &fakeBackend{chatFn: func(ctx context.Context, _ model.ChatRequest) (*model.ChatResponse, error) {
		close(started)
		<-ctx.Done()
		// A reply that slips through after cancellation must still be dropped.
		return reply("stale"), nil
	}}
	c, store := newTestCoordinator(backend, "sess-1", time.Second)
	defer c.Close()
	c.SetInput("draft")

	ticket, err := c.Send("question")
	require.NoError(t, err)
	<-started

	c.Reset()
	assert.Zero(t, store.Len())
	assert.Empty(t, c.Input())
	assert.Equal(t, StateIdle, c.State())

	res := waitResult(t, ticket)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Zero(t, store.Len())
}

func TestStaleCompletionDoesNotTouchNewRequest(t *testing.T) {
	first := make(chan struct{})
	second := make(chan struct{})
	backend := &fakeBackend{chatFn: func(_ context.Context, req model.ChatRequest) (*model.ChatResponse, error) {
		// Both calls ignore cancellation to force a late completion.
		if req.Question == "old" {
			<-first
			return reply("old reply"), nil
		}
		<-second
		return reply("new reply"), nil
	}}
	c, store := newTestCoordinator(backend, "sess-1", time.Second)
	defer c.Close()

	oldTicket, err := c.Send("old")
	require.NoError(t, err)
	c.Reset()

	newTicket, err := c.Send("new")
	require.NoError(t, err)

	close(first)
	oldRes := waitResult(t, oldTicket)
	assert.Equal(t, OutcomeCancelled, oldRes.Outcome)
	assert.Equal(t, StateSending, c.State())
	assert.Equal(t, 1, store.Len())

	close(second)
	newRes := waitResult(t, newTicket)
	assert.Equal(t, OutcomeReplied, newRes.Outcome)

	messages := store.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "new", messages[0].Content)
	assert.Equal(t, "new reply", messages[1].Content)
}

func TestSettingsAreReadAtRequestTime(t *testing.T) {
	backend := &fakeBackend{}
	holder := chat.NewSettingsHolder(chat.DefaultSettings())
	c := NewCoordinator(CoordinatorConfig{
		Backend:  backend,
		Sessions: staticSession("sess-1"),
		Settings: holder,
		Now:      func() time.Time { return fixedNow },
	})
	defer c.Close()

	updated := chat.DefaultSettings()
	updated.ResponseLength = "Detailed"
	require.NoError(t, holder.Update(updated))

	ticket, err := c.Send("question")
	require.NoError(t, err)
	waitResult(t, ticket)

	calls := backend.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Detailed", calls[0].Settings.ResponseLength)
}

func TestLoadingEventsBracketRequest(t *testing.T) {
	backend := &fakeBackend{}
	c, _ := newTestCoordinator(backend, "sess-1", time.Second)
	defer c.Close()
	events, unsubscribe := c.events.Subscribe(8)
	defer unsubscribe()

	ticket, err := c.Send("question")
	require.NoError(t, err)
	waitResult(t, ticket)

	var types []EventType
	var loading []bool
	for i := 0; i < 4; i++ {
		select {
		case ev := <-events:
			types = append(types, ev.Type)
			if ev.Type == EventLoading {
				loading = append(loading, ev.Loading)
			}
		case <-time.After(time.Second):
			t.Fatalf("expected 4 events, got %v", types)
		}
	}

	assert.Equal(t, []EventType{EventMessage, EventLoading, EventLoading, EventMessage}, types)
	assert.Equal(t, []bool{true, false}, loading)
}

func TestCloseRejectsFurtherSends(t *testing.T) {
	c, _ := newTestCoordinator(&fakeBackend{}, "sess-1", time.Second)
	c.Close()

	_, err := c.Send("question")
	assert.ErrorIs(t, err, ErrClosed)
}
