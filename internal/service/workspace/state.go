package workspace

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zhouzirui/pulse-chat/backend/internal/model/chat"
	chatService "github.com/zhouzirui/pulse-chat/backend/internal/service/chat"
)

// Theme 界面主题，仅作为状态字段保存。
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// DefaultTheme 新工作区的主题。
const DefaultTheme = ThemeDark

var ErrInvalidTheme = errors.New("invalid theme")

// ParseTheme 校验主题取值。
func ParseTheme(v string) (Theme, error) {
	switch Theme(v) {
	case ThemeLight, ThemeDark:
		return Theme(v), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTheme, v)
	}
}

// State is the application state of one signed-in client: authentication, theme,
// settings and the single conversation it owns.
type State struct {
	id           string
	createdAt    time.Time
	settings     *chat.SettingsHolder
	conversation *chatService.Conversation

	mu       sync.RWMutex
	username string
	signedIn bool
	theme    Theme
}

// Snapshot is a read-only copy of a workspace.
type Snapshot struct {
	ID            string        `json:"id"`
	Username      string        `json:"username"`
	Authenticated bool          `json:"authenticated"`
	Theme         Theme         `json:"theme"`
	Settings      chat.Settings `json:"settings"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// ID 返回工作区标识。
func (s *State) ID() string { return s.id }

// Conversation 返回工作区唯一的会话。
func (s *State) Conversation() *chatService.Conversation { return s.conversation }

// SettingsHolder 返回请求时读取的设置容器。
func (s *State) SettingsHolder() *chat.SettingsHolder { return s.settings }

// SignIn marks the workspace authenticated for username.
func (s *State) SignIn(username string) {
	s.mu.Lock()
	s.username = username
	s.signedIn = true
	s.mu.Unlock()
}

// SignOut clears authentication and resets the conversation, cancelling any flight.
func (s *State) SignOut() {
	s.mu.Lock()
	s.signedIn = false
	s.username = ""
	s.mu.Unlock()

	s.conversation.Reset()
}

// SignedIn 是否已登录。
func (s *State) SignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signedIn
}

// Username 返回登录用户名。
func (s *State) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// Theme 返回当前主题。
func (s *State) Theme() Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// SetTheme 设置主题。
func (s *State) SetTheme(t Theme) error {
	if _, err := ParseTheme(string(t)); err != nil {
		return err
	}
	s.mu.Lock()
	s.theme = t
	s.mu.Unlock()
	return nil
}

// ToggleTheme switches between light and dark and returns the new theme.
func (s *State) ToggleTheme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.theme == ThemeDark {
		s.theme = ThemeLight
	} else {
		s.theme = ThemeDark
	}
	return s.theme
}

// Settings 返回当前设置。
func (s *State) Settings() chat.Settings { return s.settings.Settings() }

// UpdateSettings replaces the settings after validation. The change applies to the
// next question; a request already in flight keeps the settings it was sent with.
func (s *State) UpdateSettings(settings chat.Settings) error {
	return s.settings.Update(settings)
}

// Snapshot 返回工作区快照。
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ID:            s.id,
		Username:      s.username,
		Authenticated: s.signedIn,
		Theme:         s.theme,
		Settings:      s.settings.Settings(),
		CreatedAt:     s.createdAt,
	}
}
