package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	model "github.com/zhouzirui/pulse-chat/backend/internal/model/analytics"
)

const (
	pathStartSession   = "/chatbot/start_session"
	pathChat           = "/chatbot/chat"
	pathLogin          = "/user/login"
	pathForgotPassword = "/user/forgot-password"
	pathCreateAccount  = "/user/admin/create-account"

	maxBodyBytes = 16 << 20
)

// Client talks to the analytics chatbot backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建上游客户端，httpClient 为空时使用默认配置。
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL 返回上游地址。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// StartSession 申请一个新的上游会话标识。
func (c *Client) StartSession(ctx context.Context) (string, error) {
	const op = "start session"

	var out model.StartSessionResponse
	status, err := c.post(ctx, op, pathStartSession, "", nil, &out)
	if err != nil {
		return "", err
	}
	if !isSuccess(status) {
		return "", &Error{Kind: KindStatus, Op: op, Status: status, Message: "unexpected status"}
	}
	if out.SessionID == "" {
		return "", &Error{Kind: KindRejected, Op: op, Status: status, Message: "empty session id"}
	}
	return out.SessionID, nil
}

// Chat 发送一个问题并返回原始分析结果。
func (c *Client) Chat(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error) {
	const op = "chat"

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Op: op, Message: "encode request", Cause: err}
	}

	var out model.ChatResponse
	status, err := c.post(ctx, op, pathChat, "application/json", bytes.NewReader(body), &out)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, &Error{Kind: KindStatus, Op: op, Status: status, Message: "unexpected status"}
	}
	return &out, nil
}

// post issues a POST and decodes a JSON body into out. Decode failures on non-2xx
// responses are ignored so callers can still inspect whatever fields were present.
func (c *Client) post(ctx context.Context, op, path, contentType string, body io.Reader, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return 0, &Error{Kind: KindUnknown, Op: op, Message: "build request", Cause: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &Error{Kind: KindTransport, Op: op, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, &Error{Kind: KindTransport, Op: op, Status: resp.StatusCode, Message: "read body", Cause: err}
	}

	if out == nil {
		return resp.StatusCode, nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		if isSuccess(resp.StatusCode) {
			return resp.StatusCode, &Error{Kind: KindDecode, Op: op, Status: resp.StatusCode, Message: "empty body"}
		}
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(raw, out); err != nil && isSuccess(resp.StatusCode) {
		return resp.StatusCode, &Error{Kind: KindDecode, Op: op, Status: resp.StatusCode, Message: fmt.Sprintf("decode %s response", op), Cause: err}
	}
	return resp.StatusCode, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
