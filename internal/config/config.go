package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"pr-review-digest/pkg/models"
)

// DefaultPath is the config file read when CONFIG_FILE is not set
const DefaultPath = "config.yaml"

// Config represents the application configuration
type Config struct {
	GitHub    GitHubConfig    `yaml:"github"`
	Review    ReviewConfig    `yaml:"review"`
	Notifiers NotifiersConfig `yaml:"notifiers"`
	Log       LogConfig       `yaml:"log"`
}

type GitHubConfig struct {
	Token          string              `yaml:"token" validate:"required"`
	APIURL         string              `yaml:"api_url" validate:"omitempty,url"`
	TimeoutSeconds int                 `yaml:"timeout_seconds" validate:"min=1"`
	Repositories   []models.Repository `yaml:"repositories" validate:"min=1,dive"`
}

type ReviewConfig struct {
	RequiredApprovals int      `yaml:"required_approvals" validate:"min=1"`
	IgnoreKeywords    []string `yaml:"ignore_keywords"`
	SkipDrafts        bool     `yaml:"skip_drafts"`
}

type NotifiersConfig struct {
	Slack SlackConfig `yaml:"slack"`
	Teams TeamsConfig `yaml:"teams"`
	SMTP  SMTPConfig  `yaml:"smtp"`
}

type SlackConfig struct {
	WebhookURL      string `yaml:"webhook_url" validate:"omitempty,url"`
	BotToken        string `yaml:"bot_token" validate:"required_without=WebhookURL"`
	Channel         string `yaml:"channel" validate:"required_with=BotToken"`
	Username        string `yaml:"username"`
	IconEmoji       string `yaml:"icon_emoji"`
	NotifyWhenEmpty bool   `yaml:"notify_when_empty"`
}

type TeamsConfig struct {
	WebhookURL string `yaml:"webhook_url" validate:"omitempty,url"`
}

// Enabled reports whether a Teams webhook is configured
func (t TeamsConfig) Enabled() bool {
	return t.WebhookURL != ""
}

type SMTPConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port" validate:"omitempty,min=1,max=65535"`
	User     string   `yaml:"user"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from" validate:"required_with=Host"`
	To       []string `yaml:"to" validate:"required_with=Host,dive,email"`
}

// Enabled reports whether email delivery is configured
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && len(s.To) > 0
}

type LogConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format     string `yaml:"format" validate:"omitempty,oneof=json text"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	Stdout     bool   `yaml:"stdout"`
}

// Path returns the config file location, honouring CONFIG_FILE
func Path() string {
	return getEnv("CONFIG_FILE", DefaultPath)
}

// Load builds the configuration from the YAML file at path (when it exists),
// a .env file (when it exists) and the process environment. Environment
// values override file values.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parsing config file %s", path)
		}
	case os.IsNotExist(err):
		slog.Debug("No config file found, using environment only", "path", path)
	default:
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.GitHub.Token = strings.TrimSpace(cfg.GitHub.Token)
	cfg.Notifiers.Slack.BotToken = strings.TrimSpace(cfg.Notifiers.Slack.BotToken)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its validation tags
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.GitHub.TimeoutSeconds = 15
	cfg.Review.RequiredApprovals = 2
	cfg.Notifiers.Slack.Username = "PR Digest"
	cfg.Notifiers.Slack.IconEmoji = ":robot_face:"
	cfg.Notifiers.SMTP.Port = 587
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Log.MaxSizeMB = 100
	cfg.Log.MaxBackups = 3
	cfg.Log.MaxAgeDays = 30
	cfg.Log.Stdout = true
	return cfg
}

func applyEnv(cfg *Config) error {
	cfg.GitHub.Token = getEnv("GITHUB_TOKEN", cfg.GitHub.Token)
	cfg.GitHub.APIURL = getEnv("GITHUB_API_URL", cfg.GitHub.APIURL)
	cfg.GitHub.TimeoutSeconds = getEnvAsInt("GITHUB_TIMEOUT_SECONDS", cfg.GitHub.TimeoutSeconds)
	if raw := os.Getenv("GITHUB_REPOS"); raw != "" {
		repos, err := ParseRepositories(raw)
		if err != nil {
			return err
		}
		cfg.GitHub.Repositories = repos
	}

	cfg.Review.RequiredApprovals = getEnvAsInt("REQUIRED_APPROVALS", cfg.Review.RequiredApprovals)
	cfg.Review.IgnoreKeywords = getEnvAsList("PR_IGNORE_KEYWORDS", cfg.Review.IgnoreKeywords)
	cfg.Review.SkipDrafts = getEnvAsBool("PR_SKIP_DRAFTS", cfg.Review.SkipDrafts)

	slack := &cfg.Notifiers.Slack
	slack.WebhookURL = getEnv("SLACK_WEBHOOK_URL", slack.WebhookURL)
	slack.BotToken = getEnv("SLACK_BOT_TOKEN", slack.BotToken)
	slack.Channel = getEnv("SLACK_CHANNEL", slack.Channel)
	slack.Username = getEnv("SLACK_USERNAME", slack.Username)
	slack.IconEmoji = getEnv("SLACK_ICON_EMOJI", slack.IconEmoji)
	slack.NotifyWhenEmpty = getEnvAsBool("NOTIFY_WHEN_EMPTY", slack.NotifyWhenEmpty)

	cfg.Notifiers.Teams.WebhookURL = getEnv("TEAMS_WEBHOOK_URL", cfg.Notifiers.Teams.WebhookURL)

	smtp := &cfg.Notifiers.SMTP
	smtp.Host = getEnv("SMTP_HOST", smtp.Host)
	smtp.Port = getEnvAsInt("SMTP_PORT", smtp.Port)
	smtp.User = getEnv("SMTP_USER", smtp.User)
	smtp.Password = getEnv("SMTP_PASSWORD", smtp.Password)
	smtp.From = getEnv("SMTP_FROM", smtp.From)
	smtp.To = getEnvAsList("SMTP_TO", smtp.To)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)
	cfg.Log.Stdout = getEnvAsBool("LOG_STDOUT", cfg.Log.Stdout)
	return nil
}

// ParseRepositories parses GITHUB_REPOS. Two formats are accepted:
//
//	[{"owner": "acme", "repo": "api", "icon": ":rocket:"}]
//	acme/api/:rocket:,acme/web
func ParseRepositories(raw string) ([]models.Repository, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		var repos []models.Repository
		// JSON is a subset of YAML
		if err := yaml.Unmarshal([]byte(raw), &repos); err != nil {
			return nil, errors.Wrap(err, "parsing GITHUB_REPOS as JSON")
		}
		return repos, nil
	}

	var repos []models.Repository
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, "/", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, errors.Errorf("invalid repository %q in GITHUB_REPOS, expected owner/repo[/icon]", item)
		}
		repo := models.Repository{Owner: parts[0], Name: parts[1]}
		if len(parts) == 3 {
			repo.Icon = parts[2]
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
		slog.Warn("Ignoring non-integer environment value", "key", key, "value", value)
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolValue
		}
		slog.Warn("Ignoring non-boolean environment value", "key", key, "value", value)
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
