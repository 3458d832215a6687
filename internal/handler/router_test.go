package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/pulse-chat/backend/internal/format"
	"github.com/zhouzirui/pulse-chat/backend/internal/middleware"
	model "github.com/zhouzirui/pulse-chat/backend/internal/model/analytics"
	"github.com/zhouzirui/pulse-chat/backend/internal/model/chat"
	"github.com/zhouzirui/pulse-chat/backend/internal/model/faq"
	"github.com/zhouzirui/pulse-chat/backend/internal/service/analytics/analyticstest"
	chatService "github.com/zhouzirui/pulse-chat/backend/internal/service/chat"
	workspaceService "github.com/zhouzirui/pulse-chat/backend/internal/service/workspace"
)

type testEnv struct {
	t        *testing.T
	upstream *analyticstest.Server
	router   http.Handler
	cookie   *http.Cookie
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil)
}

func newTestEnvWith(t *testing.T, configure func(*Dependencies)) *testEnv {
	t.Helper()
	upstream := analyticstest.New(t)
	client := upstream.AnalyticsClient()
	workspaces := workspaceService.NewService(client, chatService.Options{RequestTimeout: 2 * time.Second})
	t.Cleanup(workspaces.Close)

	deps := Dependencies{
		Accounts:           client,
		Workspaces:         workspaces,
		FAQs:               faq.NewCatalog(faq.Seed()),
		Renderer:           format.NewRenderer(),
		LoginRatePerMinute: 100,
	}
	if configure != nil {
		configure(&deps)
	}
	router := NewRouter(deps)
	return &testEnv{t: t, upstream: upstream, router: router}
}

func (e *testEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func (e *testEnv) login() {
	e.t.Helper()
	form := url.Values{"username": {analyticstest.Username}, "password": {analyticstest.Password}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	require.Equal(e.t, http.StatusOK, resp.Code, resp.Body.String())

	for _, c := range resp.Result().Cookies() {
		if c.Name == middleware.WorkspaceCookie {
			e.cookie = c
		}
	}
	require.NotNil(e.t, e.cookie)
}

func (e *testEnv) messages() []chat.Message {
	e.t.Helper()
	resp := e.do(http.MethodGet, "/api/chat/messages", nil)
	require.Equal(e.t, http.StatusOK, resp.Code)
	var out []chat.Message
	require.NoError(e.t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}

func (e *testEnv) waitForMessages(n int) []chat.Message {
	e.t.Helper()
	var got []chat.Message
	require.Eventually(e.t, func() bool {
		got = e.messages()
		return len(got) == n
	}, 2*time.Second, 10*time.Millisecond)
	return got
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthz", nil).Code)
}

func TestChatRoutesRequireLogin(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/chat/messages", "/api/chat/session", "/api/workspace/settings"} {
		assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, path, nil).Code, path)
	}
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/faqs", nil).Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(http.MethodPost, "/api/auth/login", map[string]string{"username": analyticstest.Username, "password": "wrong"})

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "Invalid username or password", decode(t, resp)["error"])
	assert.Empty(t, resp.Result().Cookies())
}

func TestLoginStartsSession(t *testing.T) {
	env := newTestEnv(t)
	env.login()

	resp := env.do(http.MethodGet, "/api/chat/session", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode(t, resp)
	assert.Equal(t, analyticstest.SessionID, body["sessionId"])
	assert.Equal(t, true, body["active"])
	assert.Equal(t, "idle", body["state"])
}

func TestSendAndReceiveReply(t *testing.T) {
	env := newTestEnv(t)
	env.login()

	resp := env.do(http.MethodPost, "/api/chat/messages", map[string]string{"text": "Provide the daily sales trend"})
	require.Equal(t, http.StatusAccepted, resp.Code)
	assert.Equal(t, "accepted", decode(t, resp)["status"])

	messages := env.waitForMessages(2)
	assert.Equal(t, chat.SenderUser, messages[0].Sender)
	assert.Equal(t, "Provide the daily sales trend", messages[0].Content)
	assert.Equal(t, chat.SenderBot, messages[1].Sender)
	assert.Equal(t, "Daily sales are up", messages[1].Content)

	chats := env.upstream.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, analyticstest.SessionID, chats[0].SessionID)
	assert.Equal(t, "Medium", chats[0].Settings.ResponseLength)
}

func TestBlankSendIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.login()

	resp := env.do(http.MethodPost, "/api/chat/messages", map[string]string{"text": "   "})
	require.Equal(t, http.StatusAccepted, resp.Code)
	assert.Equal(t, "ignored", decode(t, resp)["status"])
	assert.Empty(t, env.messages())
}

func TestSendUsesInputBuffer(t *testing.T) {
	env := newTestEnv(t)
	env.login()

	require.Equal(t, http.StatusNoContent, env.do(http.MethodPut, "/api/chat/input", map[string]string{"text": "Identify the top 5 products by sales volume"}).Code)
	require.Equal(t, http.StatusAccepted, env.do(http.MethodPost, "/api/chat/messages", nil).Code)

	messages := env.waitForMessages(2)
	assert.Equal(t, "Identify the top 5 products by sales volume", messages[0].Content)

	session := decode(t, env.do(http.MethodGet, "/api/chat/session", nil))
	assert.Equal(t, "", session["input"])
}

func TestSendFAQ(t *testing.T) {
	env := newTestEnv(t)
	env.login()

	require.Equal(t, http.StatusAccepted, env.do(http.MethodPost, "/api/chat/faqs/daily-sales", nil).Code)
	messages := env.waitForMessages(2)
	assert.Equal(t, "Provide the daily sales trend", messages[0].Content)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, "/api/chat/faqs/unknown", nil).Code)
}

func TestCancelAndReset(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	env.upstream.Hold()
	defer env.upstream.Release()

	require.Equal(t, http.StatusAccepted, env.do(http.MethodPost, "/api/chat/messages", map[string]string{"text": "slow"}).Code)
	assert.Equal(t, "ignored", decode(t, env.do(http.MethodPost, "/api/chat/messages", map[string]string{"text": "second"}))["status"])

	resp := env.do(http.MethodPost, "/api/chat/cancel", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, true, decode(t, resp)["cancelled"])
	assert.Len(t, env.messages(), 1)

	require.Equal(t, http.StatusNoContent, env.do(http.MethodPost, "/api/chat/reset", nil).Code)
	assert.Empty(t, env.messages())
}

func TestTableExport(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	table := `<table><tr><th>Region</th><th>Sales</th></tr><tr><td>North</td><td>1,200</td></tr></table>`
	env.upstream.SetResult(model.ChatResult{
		TextExplanation:   "Here is the table",
		HTMLTableData:     &table,
		TableAcceptStatus: strPtr("yes"),
	})

	require.Equal(t, http.StatusAccepted, env.do(http.MethodPost, "/api/chat/messages", map[string]string{"text": "table please"}).Code)
	messages := env.waitForMessages(2)
	reply := messages[1]
	require.True(t, reply.HasTable())

	resp := env.do(http.MethodGet, "/api/chat/messages/"+reply.ID+"/table.csv", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "\"Region\",\"Sales\"\n\"North\",\"1,200\"", resp.Body.String())
	assert.Contains(t, resp.Header().Get("Content-Disposition"), `filename="data-`)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/chat/messages/"+messages[0].ID+"/table.csv", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/chat/messages/missing/table.csv", nil).Code)
}

func TestRenderedMessages(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	env.upstream.SetResult(model.ChatResult{TextExplanation: "1. **North** leads\n2. South follows"})

	require.Equal(t, http.StatusAccepted, env.do(http.MethodPost, "/api/chat/messages", map[string]string{"text": "rank regions"}).Code)
	env.waitForMessages(2)

	resp := env.do(http.MethodGet, "/api/chat/messages?render=html", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var views []format.View
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Contains(t, views[1].ContentHTML, `<div class="steps">`)
	assert.Contains(t, views[1].ContentHTML, `<strong class="font-semibold">North</strong>`)
}

func TestSettingsAndTheme(t *testing.T) {
	env := newTestEnv(t)
	env.login()

	settings := chat.DefaultSettings()
	settings.ResponseLength = "Detailed"
	require.Equal(t, http.StatusOK, env.do(http.MethodPut, "/api/workspace/settings", settings).Code)

	invalid := settings
	invalid.Language = "Klingon"
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPut, "/api/workspace/settings", invalid).Code)

	require.Equal(t, http.StatusAccepted, env.do(http.MethodPost, "/api/chat/messages", map[string]string{"text": "q"}).Code)
	env.waitForMessages(2)
	assert.Equal(t, "Detailed", env.upstream.Chats()[0].Settings.ResponseLength)

	assert.Equal(t, "dark", decode(t, env.do(http.MethodGet, "/api/workspace/theme", nil))["theme"])
	assert.Equal(t, "light", decode(t, env.do(http.MethodPut, "/api/workspace/theme", map[string]bool{"toggle": true}))["theme"])
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPut, "/api/workspace/theme", map[string]string{"theme": "sepia"}).Code)
}

func TestLogoutDropsWorkspace(t *testing.T) {
	env := newTestEnv(t)
	env.login()

	require.Equal(t, http.StatusNoContent, env.do(http.MethodPost, "/api/auth/logout", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/chat/messages", nil).Code)
}

func TestAccountProxies(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": analyticstest.Username})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Password reset email sent", decode(t, resp)["message"])

	resp = env.do(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "User not found", decode(t, resp)["error"])

	resp = env.do(http.MethodPost, "/api/auth/create-account", model.AccountRequest{Email: analyticstest.Username, EmployeeID: "E-1", CompanyPosition: "Analyst"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "Email already registered", decode(t, resp)["error"])

	resp = env.do(http.MethodPost, "/api/auth/create-account", model.AccountRequest{Email: "new@example.com", EmployeeID: "E-2", CompanyPosition: "Analyst"})
	assert.Equal(t, http.StatusCreated, resp.Code)
}

func strPtr(s string) *string { return &s }

func loginFrom(router http.Handler, forwardedFor string) int {
	form := url.Values{"username": {analyticstest.Username}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp.Code
}

func TestLoginLimitIgnoresForwardedHeadersByDefault(t *testing.T) {
	env := newTestEnvWith(t, func(d *Dependencies) { d.LoginRatePerMinute = 2 })

	assert.Equal(t, http.StatusUnauthorized, loginFrom(env.router, "10.0.0.1"))
	assert.Equal(t, http.StatusUnauthorized, loginFrom(env.router, "10.0.0.2"))
	assert.Equal(t, http.StatusTooManyRequests, loginFrom(env.router, "10.0.0.3"))
}

func TestLoginLimitUsesForwardedAddressBehindTrustedProxy(t *testing.T) {
	env := newTestEnvWith(t, func(d *Dependencies) {
		d.LoginRatePerMinute = 1
		d.TrustProxy = true
	})

	assert.Equal(t, http.StatusUnauthorized, loginFrom(env.router, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, loginFrom(env.router, "10.0.0.1"))
	assert.Equal(t, http.StatusUnauthorized, loginFrom(env.router, "10.0.0.2"))
}
