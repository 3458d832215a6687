package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/pulse-chat/backend/internal/middleware"
	model "github.com/zhouzirui/pulse-chat/backend/internal/model/analytics"
	"github.com/zhouzirui/pulse-chat/backend/internal/service/analytics"
	"github.com/zhouzirui/pulse-chat/backend/internal/service/workspace"
	"github.com/zhouzirui/pulse-chat/backend/pkg/logger"
	"github.com/zhouzirui/pulse-chat/backend/pkg/utils"
)

const (
	msgInvalidCredentials = "Invalid username or password"
	msgLoginUnavailable   = "An error occurred. Please try again."
	msgResetFailed        = "Failed to send password reset request."
	msgCreateFailed       = "Failed to create account."
)

// Accounts 上游账号接口。
type Accounts interface {
	Login(ctx context.Context, username, password string) (bool, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	CreateAccount(ctx context.Context, req model.AccountRequest) error
}

// Workspaces creates and drops signed-in workspaces.
type Workspaces interface {
	Create(ctx context.Context, username string) (*workspace.State, error)
	Remove(id string) error
}

// Options 认证处理器配置。
type Options struct {
	CookieSecure bool
	// LoginLimit wraps the login route; nil leaves it unlimited.
	LoginLimit func(http.Handler) http.Handler
}

// Handler 账号相关的HTTP处理器
type Handler struct {
	accounts   Accounts
	workspaces Workspaces
	opts       Options
}

// New 创建认证处理器
func New(accounts Accounts, workspaces Workspaces, opts Options) *Handler {
	return &Handler{accounts: accounts, workspaces: workspaces, opts: opts}
}

// RegisterRoutes 注册 /auth 路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(auth chi.Router) {
		login := auth.With()
		if h.opts.LoginLimit != nil {
			login = auth.With(h.opts.LoginLimit)
		}
		login.Post("/login", h.handleLogin)
		auth.Post("/logout", h.handleLogout)
		auth.Post("/forgot-password", h.handleForgotPassword)
		auth.Post("/create-account", h.handleCreateAccount)
	})
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// readCredentials accepts the upstream's form encoding as well as JSON.
func readCredentials(r *http.Request) (credentials, error) {
	var c credentials
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		err := utils.DecodeJSON(r, &c)
		return c, err
	}
	if err := r.ParseForm(); err != nil {
		return c, err
	}
	c.Username = r.PostForm.Get("username")
	c.Password = r.PostForm.Get("password")
	return c, nil
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds, err := readCredentials(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" || creds.Password == "" {
		utils.RespondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	ok, err := h.accounts.Login(r.Context(), creds.Username, creds.Password)
	if err != nil {
		logger.WithField("error", err).Error("login request failed")
		utils.RespondError(w, http.StatusBadGateway, msgLoginUnavailable)
		return
	}
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}

	// Replace any workspace this client already had.
	if cookie, err := r.Cookie(middleware.WorkspaceCookie); err == nil && cookie.Value != "" {
		_ = h.workspaces.Remove(cookie.Value)
	}

	state, err := h.workspaces.Create(r.Context(), creds.Username)
	if err != nil {
		logger.WithField("error", err).Error("failed to create workspace")
		utils.RespondError(w, http.StatusInternalServerError, msgLoginUnavailable)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.WorkspaceCookie,
		Value:    state.ID(),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	utils.RespondJSON(w, http.StatusOK, state.Snapshot())
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.WorkspaceCookie); err == nil && cookie.Value != "" {
		if err := h.workspaces.Remove(cookie.Value); err != nil {
			logger.WithField("workspace", cookie.Value).Debug("logout for unknown workspace")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.WorkspaceCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var payload model.ForgotPasswordRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Email) == "" {
		utils.RespondError(w, http.StatusBadRequest, "email is required")
		return
	}

	msg, err := h.accounts.ForgotPassword(r.Context(), payload.Email)
	if err != nil {
		utils.RespondError(w, failureStatus(err), analytics.UserMessage(err, msgResetFailed))
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var payload model.AccountRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Email) == "" || strings.TrimSpace(payload.EmployeeID) == "" {
		utils.RespondError(w, http.StatusBadRequest, "email and employee_id are required")
		return
	}

	if err := h.accounts.CreateAccount(r.Context(), payload); err != nil {
		utils.RespondError(w, failureStatus(err), analytics.UserMessage(err, msgCreateFailed))
		return
	}
	utils.RespondJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

// failureStatus maps upstream rejections to 400 and everything else to 502.
func failureStatus(err error) int {
	if analytics.KindOf(err) == analytics.KindRejected {
		logger.WithField("error", err).Info("account request rejected")
		return http.StatusBadRequest
	}
	logger.WithField("error", err).Error("account request failed")
	return http.StatusBadGateway
}
