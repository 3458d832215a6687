package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	model "github.com/zhouzirui/pulse-chat/backend/internal/model/analytics"
)

const (
	fallbackForgotPasswordMessage = "Failed to send password reset request."
	fallbackCreateAccountMessage  = "Failed to create account."
)

// Login 校验用户名密码。返回 false 且 err 为 nil 表示凭证被拒绝。
func (c *Client) Login(ctx context.Context, username, password string) (bool, error) {
	const op = "login"

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var out model.LoginResponse
	if _, err := c.post(ctx, op, pathLogin, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), &out); err != nil {
		return false, err
	}
	return out.Accepted(), nil
}

// ForgotPassword 触发密码重置邮件，成功时返回上游的提示信息。
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	const op = "forgot password"

	body, err := json.Marshal(model.ForgotPasswordRequest{Email: email})
	if err != nil {
		return "", &Error{Kind: KindUnknown, Op: op, Message: "encode request", Cause: err}
	}

	var out model.MessageResponse
	status, err := c.post(ctx, op, pathForgotPassword, "application/json", bytes.NewReader(body), &out)
	if err != nil {
		return "", err
	}
	if !isSuccess(status) {
		msg := out.Message
		if msg == "" {
			msg = fallbackForgotPasswordMessage
		}
		return "", &Error{Kind: KindRejected, Op: op, Status: status, Message: msg}
	}
	if out.Message == "" {
		return "", &Error{Kind: KindDecode, Op: op, Status: status, Message: "Unexpected response from server."}
	}
	return out.Message, nil
}

// CreateAccount 以管理员身份创建账号。
func (c *Client) CreateAccount(ctx context.Context, req model.AccountRequest) error {
	const op = "create account"

	body, err := json.Marshal(req)
	if err != nil {
		return &Error{Kind: KindUnknown, Op: op, Message: "encode request", Cause: err}
	}

	var out model.MessageResponse
	status, err := c.post(ctx, op, pathCreateAccount, "application/json", bytes.NewReader(body), &out)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return &Error{Kind: KindRejected, Op: op, Status: status, Message: accountFailureMessage(out.Detail)}
	}
	return nil
}

// accountFailureMessage keeps the text after the last colon of detail,
// e.g. "400: Email already registered" -> "Email already registered".
func accountFailureMessage(detail string) string {
	if idx := strings.LastIndex(detail, ":"); idx >= 0 {
		detail = detail[idx+1:]
	}
	if detail = strings.TrimSpace(detail); detail != "" {
		return detail
	}
	return fallbackCreateAccountMessage
}

// UserMessage 返回适合直接展示给用户的失败原因。
func UserMessage(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Kind == KindRejected && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
