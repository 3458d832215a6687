package faq

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/pulse-chat/backend/internal/model/faq"
	"github.com/zhouzirui/pulse-chat/backend/pkg/utils"
)

// Handler FAQ 快捷问题的HTTP处理器
type Handler struct {
	faqs faq.Source
}

// New 创建FAQ处理器
func New(faqs faq.Source) *Handler {
	return &Handler{faqs: faqs}
}

// RegisterRoutes 注册FAQ路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/faqs", h.handleListFAQs)
}

func (h *Handler) handleListFAQs(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.faqs.List())
}
