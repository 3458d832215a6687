package analytics

import "encoding/json"

// StartSessionResponse 是 POST /chatbot/start_session 的响应。
type StartSessionResponse struct {
	SessionID string `json:"session_id"`
}

// ChatResult carries the raw analysis. Nullable upstream fields are pointers.
type ChatResult struct {
	TextExplanation   string  `json:"text_explanation"`
	ChartFileURL      *string `json:"chart_file_url"`
	ChartAnalysis     *string `json:"chart_analysis"`
	HTMLTableData     *string `json:"html_table_data"`
	TableAcceptStatus *string `json:"table_accept_status,omitempty"`
}

// ChatResponse 是 POST /chatbot/chat 的响应。
type ChatResponse struct {
	SessionID string     `json:"session_id"`
	Result    ChatResult `json:"result"`
}

// LoginResponse carries detail as raw JSON: validation failures send objects there.
type LoginResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// Accepted 只有 detail 恰好是字符串 "true" 才表示登录成功。
func (r LoginResponse) Accepted() bool {
	var detail string
	if err := json.Unmarshal(r.Detail, &detail); err != nil {
		return false
	}
	return detail == "true"
}

// MessageResponse 覆盖找回密码与创建账号接口的响应字段。
type MessageResponse struct {
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Deref 把可空字段转换为字符串，nil 视为空串。
func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
