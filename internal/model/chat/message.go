package chat

import (
	"time"

	"github.com/google/uuid"
)

// Sender 标识一条消息的发出方。
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one chat turn. It is immutable once appended to a conversation.
type Message struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Sender      Sender    `json:"sender"`
	Timestamp   time.Time `json:"timestamp"`
	ChartURL    string    `json:"chartUrl,omitempty"`
	Explanation string    `json:"explanation,omitempty"`
	TableHTML   string    `json:"tableHtml,omitempty"`
}

// HasTable 表示消息是否携带被接受的表格。
func (m Message) HasTable() bool {
	return m.TableHTML != ""
}

// NewMessageID mints a time-ordered UUIDv7. Ids minted within the same millisecond
// remain distinct and ordered.
func NewMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewUserMessage 构造用户发出的消息。
func NewUserMessage(content string, at time.Time) Message {
	return Message{
		ID:        NewMessageID(),
		Content:   content,
		Sender:    SenderUser,
		Timestamp: at,
	}
}
