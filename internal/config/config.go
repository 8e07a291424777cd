// Package config manages application configuration from defaults, an
// optional YAML file and POLYBOT_* environment variables.
package config

import (
	"errors"
	"time"
)

// ErrConfiguration wraps every loading or validation failure.
var ErrConfiguration = errors.New("configuration error")

// Config is the complete, validated application configuration. It is
// produced once at startup and never mutated afterwards.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Inference  InferenceConfig  `mapstructure:"inference"`
	Prediction PredictionConfig `mapstructure:"prediction"`
	Database   DatabaseConfig   `mapstructure:"database"`
	MediaGroup MediaGroupConfig `mapstructure:"media_group"`
	Images     ImagesConfig     `mapstructure:"images"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Messages   MessagesConfig   `mapstructure:"messages"`
}

// LogConfig configures the slog logger.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig configures the chat platform client and webhook registration.
type TelegramConfig struct {
	Token              string `mapstructure:"token"                validate:"required"`
	PublicURL          string `mapstructure:"public_url"           validate:"omitempty,url"`
	WebhookSecret      string `mapstructure:"webhook_secret"`
	DropPendingUpdates bool   `mapstructure:"drop_pending_updates"`
	SkipWebhookSetup   bool   `mapstructure:"skip_webhook_setup"`
}

// ServerConfig configures the HTTP server receiving webhook calls.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	WebhookPath     string        `mapstructure:"webhook_path"     validate:"required,startswith=/"`
	MaxConcurrent   int64         `mapstructure:"max_concurrent"   validate:"min=1"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"  validate:"min=1s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
}

// StorageConfig configures the S3 bucket holding uploaded and predicted images.
type StorageConfig struct {
	Bucket       string `mapstructure:"bucket"         validate:"required"`
	Prefix       string `mapstructure:"prefix"         validate:"required"`
	Region       string `mapstructure:"region"`
	Profile      string `mapstructure:"profile"`
	Endpoint     string `mapstructure:"endpoint"       validate:"omitempty,url"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// InferenceConfig configures the object-detection service client.
type InferenceConfig struct {
	Host        string        `mapstructure:"host"         validate:"required"`
	Port        int           `mapstructure:"port"         validate:"min=1,max=65535"`
	Timeout     time.Duration `mapstructure:"timeout"      validate:"min=1s"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1,max=10"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"  validate:"min=0"`
}

// PredictionConfig bounds the prediction sequence and its persistence retries.
type PredictionConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"          validate:"min=1s"`
	PersistAttempts int           `mapstructure:"persist_attempts" validate:"min=1,max=10"`
	PersistDelay    time.Duration `mapstructure:"persist_delay"    validate:"min=0"`
}

// DatabaseConfig configures the prediction result store.
type DatabaseConfig struct {
	Driver       string        `mapstructure:"driver"         validate:"required,oneof=sqlite pgx"`
	DSN          string        `mapstructure:"dsn"            validate:"required_without=DSNFile"`
	DSNFile      string        `mapstructure:"dsn_file"`
	MaxOpenConns int           `mapstructure:"max_open_conns" validate:"min=1"`
	Retention    time.Duration `mapstructure:"retention"      validate:"min=0"`
}

// MediaGroupConfig bounds the buffer of incomplete media groups.
type MediaGroupConfig struct {
	TTL       time.Duration `mapstructure:"ttl"        validate:"min=1s"`
	MaxGroups int           `mapstructure:"max_groups" validate:"min=1"`
}

// ImagesConfig configures where downloaded and generated images live.
type ImagesConfig struct {
	Dir    string        `mapstructure:"dir"     validate:"required"`
	MaxAge time.Duration `mapstructure:"max_age" validate:"min=0"`
}

// SchedulerConfig lists the maintenance tasks by name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig enables a task and sets its cron schedule.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// MessagesConfig holds every text the bot sends on its own.
type MessagesConfig struct {
	Welcome          string `mapstructure:"welcome"            validate:"required"`
	EchoPrefix       string `mapstructure:"echo_prefix"        validate:"required"`
	NoQuote          string `mapstructure:"no_quote"           validate:"required"`
	MissingAction    string `mapstructure:"missing_action"     validate:"required"`
	UnknownAction    string `mapstructure:"unknown_action"     validate:"required"`
	ConcatNeedsGroup string `mapstructure:"concat_needs_group" validate:"required"`
	ErrorPrefix      string `mapstructure:"error_prefix"       validate:"required"`
	TryAgain         string `mapstructure:"try_again"`
}
