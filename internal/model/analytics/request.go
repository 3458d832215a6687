package analytics

// SettingsPayload 是设置在上游协议中的 snake_case 形式。
type SettingsPayload struct {
	Language        string  `json:"language"`
	PolitenessLevel string  `json:"politeness_level"`
	Formality       string  `json:"formality"`
	Creativity      float64 `json:"creativity"`
	ResponseLength  string  `json:"response_length"`
}

// ChatRequest 是 POST /chatbot/chat 的请求体。
type ChatRequest struct {
	SessionID string          `json:"session_id"`
	Question  string          `json:"question"`
	Settings  SettingsPayload `json:"settings"`
	// Date is "<YYYY-MM-DD>T00:00:00Z".
	Date string `json:"date"`
	// Time is "HH:MM:SS" in UTC.
	Time string `json:"time"`
}

// AccountRequest 是管理员创建账号的请求体。
type AccountRequest struct {
	Email           string `json:"email"`
	EmployeeID      string `json:"employee_id"`
	CompanyPosition string `json:"company_position"`
}

// ForgotPasswordRequest 是找回密码的请求体。
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}
