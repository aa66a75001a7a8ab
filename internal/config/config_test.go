package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
		},
		Database: DatabaseConfig{
			Host:   "localhost",
			User:   "test",
			DBName: "test",
		},
		Mailbox: MailboxConfig{
			ClientID:     "test",
			ClientSecret: "test",
			RefreshToken: "test",
		},
		Telegram: TelegramConfig{
			BotToken: "test",
			ChatID:   "42",
		},
		Scheduler: SchedulerConfig{
			IntervalMinutes: 5,
			BatchSize:       50,
			Workers:         4,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
		},
	}
}

func TestConfigValidation(t *testing.T) {
	config := validConfig()
	assert.NoError(t, config.Validate())

	// Missing server port
	invalid := validConfig()
	invalid.Server.Port = ""
	assert.Error(t, invalid.Validate())

	// IMAP mode requires IMAP credentials instead of OAuth2
	imapConfig := validConfig()
	imapConfig.Mailbox = MailboxConfig{UseIMAP: true}
	assert.Error(t, imapConfig.Validate())
	imapConfig.Mailbox.IMAPUser = "user@example.com"
	imapConfig.Mailbox.IMAPPassword = "secret"
	assert.NoError(t, imapConfig.Validate())

	// Retry delays must be ordered
	badRetry := validConfig()
	badRetry.Retry.MaxDelay = badRetry.Retry.BaseDelay / 2
	assert.Error(t, badRetry.Validate())

	// Telegram credentials are mandatory
	noTelegram := validConfig()
	noTelegram.Telegram.BotToken = ""
	assert.Error(t, noTelegram.Validate())
}

func TestDatabaseDSN(t *testing.T) {
	config := DatabaseConfig{
		Host:     "localhost",
		Port:     3306,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	}

	dsn := config.GetDSN()
	expected := "testuser:testpass@tcp(localhost:3306)/testdb?charset=utf8mb4&parseTime=True&loc=Local"
	assert.Equal(t, expected, dsn)
}

func TestRuleLists(t *testing.T) {
	rules := RulesConfig{
		ImportantSenders:  "HR@Company.com, boss@company.com",
		ImportantKeywords: "urgent, Entretien ,deadline",
		NormalKeywords:    "",
	}

	assert.Equal(t, []string{"hr@company.com", "boss@company.com"}, rules.ImportantSendersList())
	assert.Equal(t, []string{"urgent", "entretien", "deadline"}, rules.ImportantKeywordsList())
	assert.Empty(t, rules.NormalKeywordsList())

	// Stray separators are dropped
	messy := RulesConfig{ImportantKeywords: ",urgent,, ,"}
	assert.Equal(t, []string{"urgent"}, messy.ImportantKeywordsList())
}
