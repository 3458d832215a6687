package workspace

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/pulse-chat/backend/internal/middleware"
	"github.com/zhouzirui/pulse-chat/backend/internal/model/chat"
	workspaceService "github.com/zhouzirui/pulse-chat/backend/internal/service/workspace"
	"github.com/zhouzirui/pulse-chat/backend/pkg/utils"
)

// Handler 工作区设置与主题的HTTP处理器。路由需挂在 RequireWorkspace 之后。
type Handler struct{}

// New 创建工作区处理器
func New() *Handler {
	return &Handler{}
}

// RegisterRoutes 注册 /workspace 路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/workspace", func(ws chi.Router) {
		ws.Get("/", h.handleGetWorkspace)
		ws.Get("/settings", h.handleGetSettings)
		ws.Put("/settings", h.handleUpdateSettings)
		ws.Get("/theme", h.handleGetTheme)
		ws.Put("/theme", h.handleSetTheme)
	})
}

func (h *Handler) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	state := middleware.WorkspaceFrom(r.Context())
	utils.RespondJSON(w, http.StatusOK, state.Snapshot())
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	state := middleware.WorkspaceFrom(r.Context())
	utils.RespondJSON(w, http.StatusOK, state.Settings())
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	state := middleware.WorkspaceFrom(r.Context())

	var payload chat.Settings
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := state.UpdateSettings(payload); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chat.ErrInvalidSettings) {
			status = http.StatusBadRequest
		}
		utils.RespondError(w, status, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, state.Settings())
}

type themePayload struct {
	Theme  string `json:"theme,omitempty"`
	Toggle bool   `json:"toggle,omitempty"`
}

func (h *Handler) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	state := middleware.WorkspaceFrom(r.Context())
	utils.RespondJSON(w, http.StatusOK, themePayload{Theme: string(state.Theme())})
}

// handleSetTheme sets an explicit theme, or flips it when toggle is true.
func (h *Handler) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	state := middleware.WorkspaceFrom(r.Context())

	var payload themePayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.Toggle {
		state.ToggleTheme()
	} else {
		theme, err := workspaceService.ParseTheme(payload.Theme)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		_ = state.SetTheme(theme)
	}
	utils.RespondJSON(w, http.StatusOK, themePayload{Theme: string(state.Theme())})
}
