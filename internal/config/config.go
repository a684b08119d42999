// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds all runtime configuration for the service. Optional groups
// (Redis, Groq, QStash, Telegram) degrade their feature when absent instead
// of failing startup.
type Config struct {
	AppEnv        string
	Port          string
	LogLevel      string
	PublicBaseURL string

	TelegramToken string
	AdminChatID   int64
	BotUsername   string

	GroqAPIKey        string
	GroqModel         string
	GroqFallbackModel string

	RedisURL   string
	SessionTTL time.Duration

	EscalationPhrases []string

	QStashToken   string
	QStashURL     string
	ReminderDelay time.Duration
}

// LoadConfig reads configuration from environment variables.
func LoadConfig(logger *logrus.Logger) (*Config, error) {
	cfg := &Config{
		AppEnv:            os.Getenv("ENV"),
		Port:              getEnv("PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		PublicBaseURL:     strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		TelegramToken:     os.Getenv("TELEGRAM_BOT_TOKEN"),
		BotUsername:       os.Getenv("BOT_USERNAME"),
		GroqAPIKey:        os.Getenv("GROQ_API_KEY"),
		GroqModel:         getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
		GroqFallbackModel: getEnv("GROQ_FALLBACK_MODEL", "llama-3.1-8b-instant"),
		RedisURL:          os.Getenv("REDIS_URL"),
		QStashToken:       os.Getenv("QSTASH_TOKEN"),
		QStashURL:         os.Getenv("QSTASH_URL"),
	}

	if raw := os.Getenv("TELEGRAM_ADMIN_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			logger.WithError(err).Warn("Could not parse TELEGRAM_ADMIN_CHAT_ID, escalation disabled")
		} else {
			cfg.AdminChatID = id
		}
	}

	cfg.SessionTTL = time.Duration(getEnvInt("SESSION_TTL_SECONDS", 86400)) * time.Second
	cfg.ReminderDelay = time.Duration(getEnvInt("REMINDER_DELAY_SECONDS", 120)) * time.Second

	if raw := os.Getenv("ESCALATION_PHRASES"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.EscalationPhrases = append(cfg.EscalationPhrases, p)
			}
		}
	}

	if cfg.TelegramToken == "" {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, live chat escalation is disabled")
	}
	if cfg.AdminChatID == 0 {
		logger.Warn("TELEGRAM_ADMIN_CHAT_ID not set, live chat escalation is disabled")
	}
	if cfg.GroqAPIKey == "" {
		logger.Warn("GROQ_API_KEY not set, automated answers will degrade to a static response")
	}
	if cfg.RedisURL == "" {
		logger.Info("REDIS_URL not set, sessions are kept in memory only")
	}
	if cfg.QStashToken == "" {
		logger.Info("QSTASH_TOKEN not set, operator reminders are disabled")
	}

	logger.Info("Configuration loaded")
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
