package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "POLYBOT"

// Environment variable names kept for deployments that predate the POLYBOT_ prefix.
var legacyEnv = map[string]string{
	"telegram.token":      "TELEGRAM_TOKEN",
	"telegram.public_url": "TELEGRAM_APP_URL",
	"storage.bucket":      "BUCKET_NAME",
	"storage.prefix":      "BUCKET_PREFIX",
	"inference.host":      "YOLO5_NAME",
	"inference.port":      "YOLO5_PORT",
}

// Load loads and validates configuration from, in increasing priority:
//  1. default values
//  2. the YAML file at path, or ./config.yaml when path is empty
//  3. POLYBOT_* environment variables (and the legacy names in legacyEnv)
//
// A missing ./config.yaml is not an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy); err != nil {
			return nil, fmt.Errorf("%w: bind %s: %v", ErrConfiguration, key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: failed to read config file: %v", ErrConfiguration, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return cfg, nil
}

// Validate checks the validate tags of every section.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return err
	}
	if c.Telegram.PublicURL == "" && !c.Telegram.SkipWebhookSetup {
		return errors.New("telegram.public_url is required unless telegram.skip_webhook_setup is set")
	}
	if budget := c.PredictionRetryBudget(); c.Prediction.Timeout < budget {
		return fmt.Errorf("prediction.timeout %s is shorter than the inference and persistence retry budget %s",
			c.Prediction.Timeout, budget)
	}
	if c.Server.RequestTimeout <= c.Prediction.Timeout {
		return fmt.Errorf("server.request_timeout %s must be longer than prediction.timeout %s",
			c.Server.RequestTimeout, c.Prediction.Timeout)
	}
	return nil
}

// PredictionRetryBudget is the longest the inference and persistence retry
// loops can wait: every inference attempt running to its timeout plus every
// delay between attempts.
func (c *Config) PredictionRetryBudget() time.Duration {
	infer := time.Duration(c.Inference.MaxAttempts)*c.Inference.Timeout +
		time.Duration(max(c.Inference.MaxAttempts-1, 0))*c.Inference.RetryDelay
	persist := time.Duration(max(c.Prediction.PersistAttempts-1, 0)) * c.Prediction.PersistDelay
	return infer + persist
}

// resolveSecrets reads values that are provided as mounted secret files.
// A DSN file takes precedence over the inline DSN.
func (c *Config) resolveSecrets() error {
	if c.Database.DSNFile != "" {
		data, err := os.ReadFile(c.Database.DSNFile)
		if err != nil {
			return fmt.Errorf("read database dsn file: %w", err)
		}
		c.Database.DSN = strings.TrimSpace(string(data))
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn file %s is empty", c.Database.DSNFile)
		}
	}
	return nil
}

// WebhookURL is the public URL the chat platform delivers updates to.
func (c *Config) WebhookURL() string {
	return strings.TrimSuffix(c.Telegram.PublicURL, "/") + c.Server.WebhookPath
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.json", true)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.public_url", "")
	v.SetDefault("telegram.webhook_secret", "")
	v.SetDefault("telegram.drop_pending_updates", false)
	v.SetDefault("telegram.skip_webhook_setup", false)

	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.webhook_path", DefaultServerWebhookPath)
	v.SetDefault("server.max_concurrent", DefaultServerMaxConcurrent)
	v.SetDefault("server.request_timeout", DefaultServerRequestTimeout)
	v.SetDefault("server.shutdown_timeout", DefaultServerShutdownTimeout)

	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", DefaultStoragePrefix)
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.profile", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.use_path_style", false)

	v.SetDefault("inference.host", DefaultInferenceHost)
	v.SetDefault("inference.port", DefaultInferencePort)
	v.SetDefault("inference.timeout", DefaultInferenceTimeout)
	v.SetDefault("inference.max_attempts", DefaultInferenceMaxAttempts)
	v.SetDefault("inference.retry_delay", DefaultInferenceRetryDelay)

	v.SetDefault("prediction.timeout", DefaultPredictionTimeout)
	v.SetDefault("prediction.persist_attempts", DefaultPredictionPersistAttempts)
	v.SetDefault("prediction.persist_delay", DefaultPredictionPersistDelay)

	v.SetDefault("database.driver", DefaultDatabaseDriver)
	v.SetDefault("database.dsn", DefaultDatabaseDSN)
	v.SetDefault("database.dsn_file", "")
	v.SetDefault("database.max_open_conns", DefaultDatabaseMaxOpenConns)
	v.SetDefault("database.retention", DefaultDatabaseRetention)

	v.SetDefault("media_group.ttl", DefaultMediaGroupTTL)
	v.SetDefault("media_group.max_groups", DefaultMediaGroupMaxGroups)

	v.SetDefault("images.dir", DefaultImagesDir)
	v.SetDefault("images.max_age", DefaultImagesMaxAge)

	for name, task := range DefaultTasks {
		v.SetDefault("scheduler.tasks."+name+".enabled", task.Enabled)
		v.SetDefault("scheduler.tasks."+name+".schedule", task.Schedule)
	}

	v.SetDefault("messages.welcome", DefaultMessages.Welcome)
	v.SetDefault("messages.echo_prefix", DefaultMessages.EchoPrefix)
	v.SetDefault("messages.no_quote", DefaultMessages.NoQuote)
	v.SetDefault("messages.missing_action", DefaultMessages.MissingAction)
	v.SetDefault("messages.unknown_action", DefaultMessages.UnknownAction)
	v.SetDefault("messages.concat_needs_group", DefaultMessages.ConcatNeedsGroup)
	v.SetDefault("messages.error_prefix", DefaultMessages.ErrorPrefix)
	v.SetDefault("messages.try_again", DefaultMessages.TryAgain)
}
