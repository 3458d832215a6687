package chat

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidSettings wraps every settings validation failure.
var ErrInvalidSettings = errors.New("invalid settings")

var (
	Languages        = []string{"English", "Spanish", "French"}
	PolitenessLevels = []string{"Friendly", "Neutral", "Professional"}
	Formalities      = []string{"Formal", "Semi-formal", "Informal"}
	ResponseLengths  = []string{"Brief", "Medium", "Detailed"}
)

// Settings is the flat tuning record sent with every question.
type Settings struct {
	Language        string  `json:"language"`
	PolitenessLevel string  `json:"politenessLevel"`
	Formality       string  `json:"formality"`
	Creativity      float64 `json:"creativity"`
	ResponseLength  string  `json:"responseLength"`
}

// DefaultSettings 返回初始设置。
func DefaultSettings() Settings {
	return Settings{
		Language:        "English",
		PolitenessLevel: "Professional",
		Formality:       "Formal",
		Creativity:      0.7,
		ResponseLength:  "Medium",
	}
}

// Validate 校验枚举字段与 creativity 范围。
func (s Settings) Validate() error {
	if !contains(Languages, s.Language) {
		return fmt.Errorf("%w: language %q", ErrInvalidSettings, s.Language)
	}
	if !contains(PolitenessLevels, s.PolitenessLevel) {
		return fmt.Errorf("%w: politeness level %q", ErrInvalidSettings, s.PolitenessLevel)
	}
	if !contains(Formalities, s.Formality) {
		return fmt.Errorf("%w: formality %q", ErrInvalidSettings, s.Formality)
	}
	if s.Creativity < 0 || s.Creativity > 1 {
		return fmt.Errorf("%w: creativity %v outside [0,1]", ErrInvalidSettings, s.Creativity)
	}
	if !contains(ResponseLengths, s.ResponseLength) {
		return fmt.Errorf("%w: response length %q", ErrInvalidSettings, s.ResponseLength)
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// SettingsHolder is the mutable, memory-only settings singleton of one workspace.
// It is read at request time, so an update affects the next question only.
type SettingsHolder struct {
	mu       sync.RWMutex
	settings Settings
}

// NewSettingsHolder 以给定初始值创建设置容器。
func NewSettingsHolder(initial Settings) *SettingsHolder {
	return &SettingsHolder{settings: initial}
}

// Settings 返回当前设置的副本。
func (h *SettingsHolder) Settings() Settings {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.settings
}

// Update 校验后整体替换设置。
func (h *SettingsHolder) Update(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	h.mu.Lock()
	h.settings = s
	h.mu.Unlock()
	return nil
}
