package format

import (
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/zhouzirui/pulse-chat/backend/internal/model/chat"
)

// View is a message with its display markup.
type View struct {
	ID              string      `json:"id"`
	Sender          chat.Sender `json:"sender"`
	Timestamp       time.Time   `json:"timestamp"`
	Content         string      `json:"content"`
	ContentHTML     string      `json:"contentHtml"`
	ChartURL        string      `json:"chartUrl,omitempty"`
	ExplanationHTML string      `json:"explanationHtml,omitempty"`
	TableHTML       string      `json:"tableHtml,omitempty"`
}

// Renderer 负责把消息渲染为展示用标记。
type Renderer struct {
	policy *bluemonday.Policy
}

// NewRenderer builds a renderer whose policy keeps table structure and the
// formatter's class names but strips scripts and event handlers.
func NewRenderer() *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Globally()
	policy.AllowStyles("text-align").Globally()
	return &Renderer{policy: policy}
}

// Render 渲染单条消息。用户消息只做换行与加粗处理，不做列表分组。
func (r *Renderer) Render(m chat.Message) View {
	view := View{
		ID:        m.ID,
		Sender:    m.Sender,
		Timestamp: m.Timestamp,
		Content:   m.Content,
		ChartURL:  m.ChartURL,
	}

	if m.Sender == chat.SenderBot {
		view.ContentHTML = r.policy.Sanitize(Message(m.Content))
	} else {
		view.ContentHTML = r.policy.Sanitize(emphasize(m.Content, "<strong>$1</strong>"))
	}
	if m.Explanation != "" {
		view.ExplanationHTML = r.policy.Sanitize(Explanation(m.Explanation))
	}
	if m.TableHTML != "" {
		view.TableHTML = r.policy.Sanitize(m.TableHTML)
	}
	return view
}

// RenderAll 渲染整段会话。
func (r *Renderer) RenderAll(messages []chat.Message) []View {
	views := make([]View, 0, len(messages))
	for _, m := range messages {
		views = append(views, r.Render(m))
	}
	return views
}
