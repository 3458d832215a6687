package chat

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/pulse-chat/backend/internal/format"
	"github.com/zhouzirui/pulse-chat/backend/internal/middleware"
	"github.com/zhouzirui/pulse-chat/backend/internal/model/faq"
	chatService "github.com/zhouzirui/pulse-chat/backend/internal/service/chat"
	"github.com/zhouzirui/pulse-chat/backend/pkg/logger"
	"github.com/zhouzirui/pulse-chat/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器。路由需挂在 RequireWorkspace 之后。
type Handler struct {
	faqs     faq.Source
	renderer *format.Renderer
	now      func() time.Time
}

// New 创建聊天处理器
func New(faqs faq.Source, renderer *format.Renderer) *Handler {
	if renderer == nil {
		renderer = format.NewRenderer()
	}
	return &Handler{faqs: faqs, renderer: renderer, now: time.Now}
}

// RegisterRoutes 注册 /chat 路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/session", h.handleGetSession)
	r.Get("/messages", h.handleListMessages)
	r.Post("/messages", h.handleSendMessage)
	r.Get("/messages/{messageID}/table.csv", h.handleExportTable)
	r.Put("/input", h.handleSetInput)
	r.Post("/faqs/{faqID}", h.handleSendFAQ)
	r.Post("/cancel", h.handleCancel)
	r.Post("/reset", h.handleReset)
}

func conversationOf(r *http.Request) *chatService.Conversation {
	return middleware.WorkspaceFrom(r.Context()).Conversation()
}

type sessionResponse struct {
	ConversationID string    `json:"conversationId"`
	SessionID      string    `json:"sessionId"`
	Active         bool      `json:"active"`
	StartedAt      time.Time `json:"startedAt,omitempty"`
	State          string    `json:"state"`
	Input          string    `json:"input"`
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	conv := conversationOf(r)
	session := conv.Session()
	utils.RespondJSON(w, http.StatusOK, sessionResponse{
		ConversationID: conv.ID(),
		SessionID:      session.ID,
		Active:         session.Active(),
		StartedAt:      session.StartedAt,
		State:          conv.State().String(),
		Input:          conv.Input(),
	})
}

// handleListMessages 返回会话消息；render=html 时附带渲染后的标记。
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages := conversationOf(r).Messages()
	if r.URL.Query().Get("render") == "html" {
		utils.RespondJSON(w, http.StatusOK, h.renderer.RenderAll(messages))
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

type sendRequest struct {
	// Text nil means "send the input buffer".
	Text *string `json:"text"`
}

type sendResponse struct {
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	RequestID uint64 `json:"requestId,omitempty"`
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload sendRequest
	if err := utils.DecodeJSON(r, &payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv := conversationOf(r)
	text := conv.Input()
	if payload.Text != nil {
		text = *payload.Text
	}
	h.send(w, r, conv, text)
}

func (h *Handler) handleSendFAQ(w http.ResponseWriter, r *http.Request) {
	question, ok := h.faqs.Lookup(chi.URLParam(r, "faqID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "faq not found")
		return
	}
	h.send(w, r, conversationOf(r), question.Text)
}

// send answers 202 whether or not the question was accepted: a rejected send is a
// silent no-op for the client and is only reported in the status field.
func (h *Handler) send(w http.ResponseWriter, r *http.Request, conv *chatService.Conversation, text string) {
	ticket, err := conv.Send(text)
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusAccepted, sendResponse{
			Status:    "accepted",
			MessageID: ticket.Question().ID,
			RequestID: ticket.ID(),
		})
	case chatService.IsRejection(err):
		logger.WithFields(logrus.Fields{
			"conversation": conv.ID(),
			"reason":       err,
		}).Debug("send ignored")
		utils.RespondJSON(w, http.StatusAccepted, sendResponse{Status: "ignored", Reason: err.Error()})
	case errors.Is(err, chatService.ErrClosed):
		utils.RespondError(w, http.StatusConflict, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) handleSetInput(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	conversationOf(r).SetInput(payload.Text)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	cancelled := conversationOf(r).Cancel()
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	conversationOf(r).Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExportTable(w http.ResponseWriter, r *http.Request) {
	msg, err := conversationOf(r).Find(chi.URLParam(r, "messageID"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	if !msg.HasTable() {
		utils.RespondError(w, http.StatusNotFound, format.ErrNoTable.Error())
		return
	}

	csv, err := format.TableCSV(msg.TableHTML)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, format.ErrNoTable) {
			status = http.StatusNotFound
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv;charset=utf-8;")
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.CSVFilename(h.now())+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(csv)); err != nil {
		logger.WithField("error", err).Warn("failed to write csv export")
	}
}
