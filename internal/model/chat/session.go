package chat

import "time"

// Session captures the upstream conversation scope. There is no renewal protocol: one
// session lives as long as the conversation that started it.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`
}

// Active 表示会话标识是否已获取。
func (s Session) Active() bool {
	return s.ID != ""
}
