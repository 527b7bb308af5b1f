package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Futuramistic/Bot/pkg/logging"
	"github.com/Futuramistic/Bot/pkg/session"
	"github.com/spf13/viper"
)

// Configuration keys.
const (
	keyConfig               = "config"
	keyAccessToken          = "spark_access_token"
	keyBaseURL              = "base_url"
	keyTimeout              = "timeout"
	keySingleRequestTimeout = "single_request_timeout"
	keyWaitOnRateLimit      = "wait_on_rate_limit"
	keyMaxRetryWait         = "max_retry_wait"
	keyListen               = "listen"
	keyPublicURL            = "public_url"
	keyWebhookName          = "webhook_name"
	keyInteractions         = "interactions"
	keyRedisURL             = "redis_url"
	keyLogLevel             = "log_level"
	keyLogPretty            = "log_pretty"
	keyNgrokAPI             = "ngrok_api"
	keyOutput               = "output"
)

const (
	envPrefix          = "HELLO_BOT"
	defaultWebhookName = "hello-bot-wb-hook"
	defaultNgrokAPI    = "http://127.0.0.1:4040/api/tunnels"
	webhookPath        = "/sparkwebhook"
)

// Config is the resolved CLI configuration.
type Config struct {
	AccessToken          string
	BaseURL              string
	Timeout              time.Duration
	SingleRequestTimeout time.Duration
	WaitOnRateLimit      bool
	MaxRetryWait         time.Duration

	Listen       string
	PublicURL    string
	WebhookName  string
	Interactions string
	RedisURL     string
	NgrokAPI     string

	LogLevel  logging.LogLevel
	LogPretty bool
	Output    string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyBaseURL, session.DefaultBaseURL)
	v.SetDefault(keyTimeout, time.Duration(0))
	v.SetDefault(keySingleRequestTimeout, session.DefaultSingleRequestTimeout)
	v.SetDefault(keyWaitOnRateLimit, session.DefaultWaitOnRateLimit)
	v.SetDefault(keyMaxRetryWait, session.DefaultMaxRetryWait)
	v.SetDefault(keyListen, ":5000")
	v.SetDefault(keyWebhookName, defaultWebhookName)
	v.SetDefault(keyInteractions, "interactions.csv")
	v.SetDefault(keyNgrokAPI, defaultNgrokAPI)
	v.SetDefault(keyLogLevel, string(logging.LevelInfo))
	v.SetDefault(keyOutput, outputTable)
}

// readConfigFile loads the --config file, or $HOME/.hello-bot/config.yaml
// when present. A missing default file is not an error.
func readConfigFile(v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if cfgFile := v.GetString(keyConfig); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(filepath.Join(home, ".hello-bot"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// loadConfig resolves the configuration from flags, environment, file and
// defaults, in that order.
func loadConfig(v *viper.Viper) (Config, error) {
	level, err := logging.ParseLevel(v.GetString(keyLogLevel))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AccessToken:          v.GetString(keyAccessToken),
		BaseURL:              v.GetString(keyBaseURL),
		Timeout:              v.GetDuration(keyTimeout),
		SingleRequestTimeout: v.GetDuration(keySingleRequestTimeout),
		WaitOnRateLimit:      v.GetBool(keyWaitOnRateLimit),
		MaxRetryWait:         v.GetDuration(keyMaxRetryWait),
		Listen:               v.GetString(keyListen),
		PublicURL:            v.GetString(keyPublicURL),
		WebhookName:          v.GetString(keyWebhookName),
		Interactions:         v.GetString(keyInteractions),
		RedisURL:             v.GetString(keyRedisURL),
		NgrokAPI:             v.GetString(keyNgrokAPI),
		LogLevel:             level,
		LogPretty:            v.GetBool(keyLogPretty),
		Output:               v.GetString(keyOutput),
	}

	if cfg.AccessToken == "" {
		token, err := session.TokenFromEnv()
		if err != nil {
			return Config{}, fmt.Errorf("%w (or %s_%s, or %s in the config file)",
				err, envPrefix, "SPARK_ACCESS_TOKEN", keyAccessToken)
		}
		cfg.AccessToken = token
	}

	switch cfg.Output {
	case outputTable, outputJSON, outputYAML:
	default:
		return Config{}, fmt.Errorf("unknown output format %q (want table, json or yaml)", cfg.Output)
	}

	return cfg, nil
}

// sessionConfig maps the CLI configuration onto a session configuration.
func (c Config) sessionConfig() session.Config {
	cfg := session.DefaultConfig(c.AccessToken)
	cfg.BaseURL = c.BaseURL
	cfg.Timeout = c.Timeout
	cfg.SingleRequestTimeout = c.SingleRequestTimeout
	cfg.WaitOnRateLimit = c.WaitOnRateLimit
	cfg.MaxRetryWait = c.MaxRetryWait
	return cfg
}
