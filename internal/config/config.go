package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Analytics AnalyticsConfig
	Log       LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	analytics, err := loadAnalyticsConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Analytics: analytics,
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr               string
	AllowedOrigins     []string
	LoginRatePerMinute int
	CookieSecure       bool
	// TrustProxy 为 true 时才采信 X-Forwarded-For / X-Real-IP，只应在可信反向代理之后开启。
	TrustProxy bool
}

// AnalyticsConfig 描述上游分析聊天机器人的访问方式。
type AnalyticsConfig struct {
	BaseURL string
	// RequestTimeout 限制单次聊天请求，超时按可取消失败处理。
	RequestTimeout time.Duration
	// HTTPTimeout 是底层 http.Client 的兜底超时。
	HTTPTimeout time.Duration
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string
	Format string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	var addr string
	switch {
	case strings.Contains(port, ":"):
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		addr = port
	case strings.Contains(port, " "):
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	default:
		addr = ":" + port
	}

	rate := 10
	if override, err := parseOptionalIntEnv("LOGIN_RATE_PER_MINUTE"); err != nil {
		return ServerConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return ServerConfig{}, fmt.Errorf("invalid LOGIN_RATE_PER_MINUTE value %d: must be positive", *override)
		}
		rate = *override
	}

	secure, err := parseBoolEnv("COOKIE_SECURE", false)
	if err != nil {
		return ServerConfig{}, err
	}

	trustProxy, err := parseBoolEnv("TRUST_PROXY", false)
	if err != nil {
		return ServerConfig{}, err
	}

	return ServerConfig{
		Addr:               addr,
		AllowedOrigins:     parseListEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
		LoginRatePerMinute: rate,
		CookieSecure:       secure,
		TrustProxy:         trustProxy,
	}, nil
}

func loadAnalyticsConfig() (AnalyticsConfig, error) {
	baseURL := strings.TrimRight(getEnvOrDefault("ANALYTICS_BASE_URL", DefaultAnalyticsBaseURL), "/")
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return AnalyticsConfig{}, fmt.Errorf("invalid ANALYTICS_BASE_URL value %q", baseURL)
	}

	requestTimeout, err := parseSecondsEnv("CHAT_REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return AnalyticsConfig{}, err
	}

	httpTimeout, err := parseSecondsEnv("UPSTREAM_HTTP_TIMEOUT", 60*time.Second)
	if err != nil {
		return AnalyticsConfig{}, err
	}

	return AnalyticsConfig{
		BaseURL:        baseURL,
		RequestTimeout: requestTimeout,
		HTTPTimeout:    httpTimeout,
	}, nil
}

// DefaultAnalyticsBaseURL 是上游服务的默认地址。
const DefaultAnalyticsBaseURL = "https://codefest-backend.azurewebsites.net"

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseListEnv(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}

	var items []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseSecondsEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	seconds, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if seconds == nil {
		return defaultValue, nil
	}
	if *seconds <= 0 {
		return 0, fmt.Errorf("invalid %s value %d: must be positive", key, *seconds)
	}
	return time.Duration(*seconds) * time.Second, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
