// Package analyticstest runs an in-process fake of the analytics backend for tests.
package analyticstest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	model "github.com/zhouzirui/pulse-chat/backend/internal/model/analytics"
	"github.com/zhouzirui/pulse-chat/backend/internal/service/analytics"
)

// Credentials accepted by the fake login endpoint.
const (
	Username  = "ana@example.com"
	Password  = "secret"
	SessionID = "sess-test"
)

// Server is a fake analytics backend.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	chats     []model.ChatRequest
	result    model.ChatResult
	hold      chan struct{}
	noSession bool
}

// New starts a fake backend that is closed with the test.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{result: model.ChatResult{TextExplanation: "Daily sales are up"}}

	mux := http.NewServeMux()
	mux.HandleFunc("/chatbot/start_session", s.handleStartSession)
	mux.HandleFunc("/chatbot/chat", s.handleChat)
	mux.HandleFunc("/user/login", s.handleLogin)
	mux.HandleFunc("/user/forgot-password", s.handleForgotPassword)
	mux.HandleFunc("/user/admin/create-account", s.handleCreateAccount)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(func() {
		s.Release()
		s.Close()
	})
	return s
}

// AnalyticsClient returns a client pointed at the fake.
func (s *Server) AnalyticsClient() *analytics.Client {
	return analytics.NewClient(s.URL, s.Server.Client())
}

// SetResult 设置后续聊天请求的返回结果。
func (s *Server) SetResult(r model.ChatResult) {
	s.mu.Lock()
	s.result = r
	s.mu.Unlock()
}

// Hold makes chat requests block until Release or until the caller gives up.
func (s *Server) Hold() {
	s.mu.Lock()
	s.hold = make(chan struct{})
	s.mu.Unlock()
}

// Release 放行被 Hold 阻塞的请求。
func (s *Server) Release() {
	s.mu.Lock()
	if s.hold != nil {
		close(s.hold)
		s.hold = nil
	}
	s.mu.Unlock()
}

// RefuseSessions makes start_session answer with an empty id.
func (s *Server) RefuseSessions() {
	s.mu.Lock()
	s.noSession = true
	s.mu.Unlock()
}

// Chats 返回收到的聊天请求。
func (s *Server) Chats() []model.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ChatRequest(nil), s.chats...)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleStartSession(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	refuse := s.noSession
	s.mu.Unlock()

	if refuse {
		writeJSON(w, http.StatusOK, map[string]string{})
		return
	}
	writeJSON(w, http.StatusOK, model.StartSessionResponse{SessionID: SessionID})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	// 读完请求体，服务端才能感知客户端断开。
	_, _ = io.Copy(io.Discard, r.Body)

	s.mu.Lock()
	s.chats = append(s.chats, req)
	hold := s.hold
	result := s.result
	s.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}
	writeJSON(w, http.StatusOK, model.ChatResponse{SessionID: req.SessionID, Result: result})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	detail := "false"
	if r.PostForm.Get("username") == Username && r.PostForm.Get("password") == Password {
		detail = "true"
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": detail})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req model.ForgotPasswordRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Email != Username {
		writeJSON(w, http.StatusNotFound, model.MessageResponse{Message: "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Password reset email sent"})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req model.AccountRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Email == Username {
		writeJSON(w, http.StatusBadRequest, model.MessageResponse{Detail: "400: Email already registered"})
		return
	}
	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Account created"})
}
