package stream

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/pulse-chat/backend/internal/middleware"
	"github.com/zhouzirui/pulse-chat/backend/internal/model/chat"
	chatService "github.com/zhouzirui/pulse-chat/backend/internal/service/chat"
	"github.com/zhouzirui/pulse-chat/backend/pkg/logger"
	"github.com/zhouzirui/pulse-chat/backend/pkg/utils"
)

const (
	subscriberBuffer  = 32
	heartbeatInterval = 15 * time.Second
)

// Handler serves the conversation live feed over SSE and WebSocket.
// Routes must sit behind RequireWorkspace.
type Handler struct {
	upgrader  websocket.Upgrader
	heartbeat time.Duration
}

// New creates a stream handler. WebSocket handshakes are limited to allowedOrigins.
func New(allowedOrigins []string) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			CheckOrigin:     middleware.CheckOrigin(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		heartbeat: heartbeatInterval,
	}
}

// RegisterRoutes 注册实时推送路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/events", h.handleEvents)
	r.Get("/ws", h.handleWebSocket)
}

// Snapshot is the first frame of every feed so a client can render without a
// separate fetch.
type Snapshot struct {
	ConversationID string         `json:"conversationId"`
	SessionID      string         `json:"sessionId"`
	Loading        bool           `json:"loading"`
	Messages       []chat.Message `json:"messages"`
}

func snapshotOf(conv *chatService.Conversation) Snapshot {
	return Snapshot{
		ConversationID: conv.ID(),
		SessionID:      conv.Session().ID,
		Loading:        conv.State() == chatService.StateSending,
		Messages:       conv.Messages(),
	}
}

// handleEvents streams conversation events as Server-Sent Events until the client
// goes away or the conversation is closed.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	conv := middleware.WorkspaceFrom(r.Context()).Conversation()
	events, unsubscribe := conv.Subscribe(subscriberBuffer)
	defer unsubscribe()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	log := logger.WithField("conversation", conv.ID())
	log.Debug("sse feed opened")
	defer log.Debug("sse feed closed")

	if err := utils.SendSSEEvent(w, flusher, "snapshot", snapshotOf(conv)); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(ev.Type), ev); err != nil {
				log.WithField("error", err).Debug("sse write failed")
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}
