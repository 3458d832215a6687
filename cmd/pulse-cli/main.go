package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/pulse-chat/backend/internal/config"
	"github.com/zhouzirui/pulse-chat/backend/internal/service/analytics"
	"github.com/zhouzirui/pulse-chat/backend/pkg/logger"
)

var (
	baseURL  string
	timeout  time.Duration
	logLevel string

	cfg *config.Config
)

// rootCmd is the base command for the terminal client
var rootCmd = &cobra.Command{
	Use:   "pulse-cli",
	Short: "Terminal client for the analytics chatbot",
	Long: `pulse-cli talks to the analytics chatbot backend directly.

Available commands:
  chat  - Interactive chat session with line editing and history
  login - Check credentials against the backend
  faq   - List the predefined questions`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("base-url") {
			loaded.Analytics.BaseURL = baseURL
		}
		if cmd.Flags().Changed("timeout") {
			loaded.Analytics.RequestTimeout = timeout
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level = logLevel
		}
		cfg = loaded

		// Keep the terminal quiet unless asked otherwise.
		logger.SetOutput(os.Stderr)
		level := cfg.Log.Level
		if !cmd.Flags().Changed("log-level") && os.Getenv("LOG_LEVEL") == "" {
			level = "warn"
		}
		return logger.Init(level, cfg.Log.Format)
	},
}

func newClient() *analytics.Client {
	return analytics.NewClient(cfg.Analytics.BaseURL, analytics.NewHTTPClient(cfg.Analytics.HTTPTimeout))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", config.DefaultAnalyticsBaseURL, "Analytics backend URL (or set ANALYTICS_BASE_URL env)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Per-question timeout (or set CHAT_REQUEST_TIMEOUT env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(chatCmd, loginCmd, faqCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
