package chat

import (
	"strings"
	"time"

	model "github.com/zhouzirui/pulse-chat/backend/internal/model/analytics"
	"github.com/zhouzirui/pulse-chat/backend/internal/model/chat"
)

// isoMillis matches the ISO-8601 rendering browsers produce for timestamps.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// BuildChatRequest assembles the upstream chat payload for one question.
func BuildChatRequest(sessionID, question string, settings chat.Settings, at time.Time) model.ChatRequest {
	date, clock := splitTimestamp(at)
	return model.ChatRequest{
		SessionID: sessionID,
		Question:  question,
		Settings:  SettingsPayload(settings),
		Date:      date,
		Time:      clock,
	}
}

// SettingsPayload 把设置字段转换为上游的 snake_case 协议。
func SettingsPayload(s chat.Settings) model.SettingsPayload {
	return model.SettingsPayload{
		Language:        s.Language,
		PolitenessLevel: s.PolitenessLevel,
		Formality:       s.Formality,
		Creativity:      s.Creativity,
		ResponseLength:  s.ResponseLength,
	}
}

// splitTimestamp cuts "2024-03-05T14:07:09.123Z" into "2024-03-05T00:00:00Z" and "14:07:09".
func splitTimestamp(at time.Time) (string, string) {
	stamp := at.UTC().Format(isoMillis)
	day, clock, _ := strings.Cut(stamp, "T")
	clock, _, _ = strings.Cut(clock, ".")
	return day + "T00:00:00Z", clock
}
