// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []int64
	AlertChatID      int64 // chat that receives threshold alerts; 0 disables delivery
	MetricsAPIToken  string
	PollInterval     time.Duration
	ResetTime        string // "HH:MM" wall-clock time of the daily reset
	ResetTimezone    string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/monitor.db"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	var allowedUsers []int64
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			allowedUsers = append(allowedUsers, uid)
		}
	}

	var alertChatID int64
	if raw := os.Getenv("ALERT_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ALERT_CHAT_ID %q: %w", raw, err)
		}
		alertChatID = id
	}

	interval := 3 * time.Minute
	if raw := os.Getenv("POLL_INTERVAL_MINUTES"); raw != "" {
		mins, err := strconv.Atoi(raw)
		if err != nil || mins < 1 || mins > 1440 {
			return nil, fmt.Errorf("POLL_INTERVAL_MINUTES must be between 1 and 1440")
		}
		interval = time.Duration(mins) * time.Minute
	}

	resetTime := os.Getenv("RESET_TIME")
	if resetTime == "" {
		resetTime = "03:00"
	}
	if _, _, err := ParseClock(resetTime); err != nil {
		return nil, err
	}

	resetTZ := os.Getenv("RESET_TIMEZONE")
	if resetTZ == "" {
		resetTZ = "Europe/London"
	}
	if _, err := time.LoadLocation(resetTZ); err != nil {
		return nil, fmt.Errorf("invalid RESET_TIMEZONE %q: %w", resetTZ, err)
	}

	return &Config{
		TelegramBotToken: token,
		DatabasePath:     dbPath,
		LogLevel:         logLevel,
		AllowedUsers:     allowedUsers,
		AlertChatID:      alertChatID,
		MetricsAPIToken:  os.Getenv("METRICS_API_TOKEN"),
		PollInterval:     interval,
		ResetTime:        resetTime,
		ResetTimezone:    resetTZ,
	}, nil
}

// ParseClock parses a "HH:MM" wall-clock string.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock time %q, expected HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid clock time %q, expected HH:MM", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid clock time %q, expected HH:MM", s)
	}
	return hour, minute, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}
