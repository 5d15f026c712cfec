package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Database  DatabaseConfig
	GitHub    GitHubConfig
	AI        AIConfig
	Redis     RedisConfig
	Server    ServerConfig
	Scheduler SchedulerConfig
	Logging   LoggingConfig
	Telemetry TelemetryConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// GitHubConfig holds GitHub API configuration
type GitHubConfig struct {
	APIURL string
	// Token is the server-wide fallback used by the cron path.
	// Session tokens from authenticated requests take precedence.
	Token string
}

// AIConfig holds generative AI service configuration
type AIConfig struct {
	APIURL     string
	APIKey     string
	Model      string
	MaxRetries int
	RetryBase  time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL     string
	Enabled bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port       int
	Host       string
	CronSecret string
}

// SchedulerConfig holds the in-process auto-post scheduler configuration
type SchedulerConfig struct {
	Enabled    bool
	DailySpec  string
	WeeklySpec string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled           bool
	JaegerURL         string
	PrometheusEnabled bool
	PrometheusPort    int
	ServiceName       string
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	// Local development convenience; a missing .env file is fine
	_ = godotenv.Load()

	// Set defaults
	setDefaults()

	// Load from environment
	viper.SetEnvPrefix("GITSCRIBE")
	viper.AutomaticEnv()

	// Load from config file if exists
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.gitscribe")
	viper.AddConfigPath("/etc/gitscribe")

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found; this is OK if we have env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			URL: getString("database_url", ""),
		},
		GitHub: GitHubConfig{
			APIURL: getString("github_api_url", "https://api.github.com"),
			Token:  getString("github_token", ""),
		},
		AI: AIConfig{
			APIURL:     getString("ai_api_url", "https://generativelanguage.googleapis.com"),
			APIKey:     getString("ai_api_key", ""),
			Model:      getString("ai_model", "gemini-2.5-flash-lite"),
			MaxRetries: getInt("ai_max_retries", 3),
			RetryBase:  getDuration("ai_retry_base", 2*time.Second),
		},
		Redis: RedisConfig{
			URL:     getString("redis_url", ""),
			Enabled: getString("redis_url", "") != "",
		},
		Server: ServerConfig{
			Port:       getInt("http_server_port", 8080),
			Host:       getString("http_server_host", "0.0.0.0"),
			CronSecret: getString("cron_secret", ""),
		},
		Scheduler: SchedulerConfig{
			Enabled:    getBool("scheduler_enabled", false),
			DailySpec:  getString("scheduler_daily_spec", "0 9 * * *"),
			WeeklySpec: getString("scheduler_weekly_spec", "0 9 * * 1"),
		},
		Logging: LoggingConfig{
			Level:  getString("log_level", "INFO"),
			Format: getString("log_format", "json"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           getBool("telemetry_enabled", false),
			JaegerURL:         getString("jaeger_url", ""),
			PrometheusEnabled: getBool("prometheus_enabled", false),
			PrometheusPort:    getInt("prometheus_port", 9090),
			ServiceName:       getString("service_name", "gitscribe"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("github_api_url", "https://api.github.com")
	viper.SetDefault("ai_api_url", "https://generativelanguage.googleapis.com")
	viper.SetDefault("ai_model", "gemini-2.5-flash-lite")
	viper.SetDefault("ai_max_retries", 3)
	viper.SetDefault("ai_retry_base", "2s")
	viper.SetDefault("http_server_port", 8080)
	viper.SetDefault("http_server_host", "0.0.0.0")
	viper.SetDefault("scheduler_enabled", false)
	viper.SetDefault("scheduler_daily_spec", "0 9 * * *")
	viper.SetDefault("scheduler_weekly_spec", "0 9 * * 1")
	viper.SetDefault("log_level", "INFO")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("telemetry_enabled", false)
	viper.SetDefault("prometheus_enabled", false)
	viper.SetDefault("prometheus_port", 9090)
	viper.SetDefault("service_name", "gitscribe")
}

func getString(key, defaultValue string) string {
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	// Also check environment variable directly
	if val := os.Getenv("GITSCRIBE_" + toEnvKey(key)); val != "" {
		return val
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	if val := os.Getenv("GITSCRIBE_" + toEnvKey(key)); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	if val := os.Getenv("GITSCRIBE_" + toEnvKey(key)); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	if val := os.Getenv("GITSCRIBE_" + toEnvKey(key)); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultValue
}

func toEnvKey(key string) string {
	// Convert snake_case to UPPER_SNAKE_CASE
	result := ""
	for _, r := range key {
		if r == '-' || r == '_' {
			result += "_"
		} else if r >= 'a' && r <= 'z' {
			result += string(r - 'a' + 'A')
		} else {
			result += string(r)
		}
	}
	return result
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database_url is required")
	}
	if c.AI.APIKey == "" {
		return fmt.Errorf("ai_api_key is required")
	}
	if c.AI.MaxRetries < 0 || c.AI.MaxRetries > 10 {
		return fmt.Errorf("ai_max_retries must be between 0 and 10")
	}
	if c.AI.RetryBase <= 0 {
		return fmt.Errorf("ai_retry_base must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("http_server_port must be between 1 and 65535")
	}
	return nil
}
