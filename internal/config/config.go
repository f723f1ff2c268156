package config

import "fmt"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server ServerConfig `mapstructure:"server" validate:"required"`
	Tasks  TasksConfig  `mapstructure:"tasks" validate:"required"`
	Broker BrokerConfig `mapstructure:"broker" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// CallbackPath is where the push-queue delivers task callbacks.
	CallbackPath string `mapstructure:"callback_path" validate:"required,startswith=/"`
	// MaxBodyBytes caps the size of an inbound callback body.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" validate:"gt=0"`
}

// TasksConfig contains the settings consumed by task construction, the
// remote dispatch backend and the callback handler.
type TasksConfig struct {
	// URL is the default callback target for tasks that do not set one.
	URL string `mapstructure:"url" validate:"omitempty,url"`
	// ServiceAccountEmail is the identity-token principal the push-queue
	// uses to sign callbacks.
	ServiceAccountEmail string `mapstructure:"service_account_email" validate:"required_unless=Local true,omitempty,email"`
	// Secret is sent in the secret header and checked by the callback handler.
	Secret   string `mapstructure:"secret"`
	Project  string `mapstructure:"project" validate:"required_unless=Local true"`
	Location string `mapstructure:"location" validate:"required_unless=Local true"`
	// Queue is the default queue for tasks that do not set one.
	Queue string `mapstructure:"queue"`

	// Local routes dispatch to the local broker instead of the push-queue.
	Local bool `mapstructure:"local"`
	// Testing executes tasks synchronously on dispatch.
	Testing bool `mapstructure:"testing"`

	// VerifyIdentityToken enables OIDC verification of inbound callbacks.
	VerifyIdentityToken bool   `mapstructure:"verify_identity_token"`
	Audience            string `mapstructure:"audience" validate:"required_if=VerifyIdentityToken true"`
}

// BrokerConfig contains the local broker settings used in local mode.
type BrokerConfig struct {
	RedisURL    string `mapstructure:"redis_url" validate:"required,url"`
	Queue       string `mapstructure:"queue" validate:"required"`
	Concurrency int    `mapstructure:"concurrency" validate:"gt=0"`
	// MetricsAddr, when set, exposes worker metrics, e.g. ":9091".
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// DefaultQueue returns the configured default queue name or a SettingError
// when none is set.
func (c TasksConfig) DefaultQueue() (string, error) {
	if c.Queue == "" {
		return "", &SettingError{
			Key:    "tasks.queue",
			Reason: "default queue name not defined; set it on the task or in configuration",
		}
	}
	return c.Queue, nil
}

// DefaultURL returns the configured default callback URL or a SettingError
// when none is set.
func (c TasksConfig) DefaultURL() (string, error) {
	if c.URL == "" {
		return "", &SettingError{
			Key:    "tasks.url",
			Reason: "default task handler URL not defined; set it on the task or in configuration",
		}
	}
	return c.URL, nil
}

// Mode names the dispatch mode selected by the configuration.
func (c TasksConfig) Mode() string {
	switch {
	case c.Testing:
		return "testing"
	case c.Local:
		return "local"
	default:
		return "remote"
	}
}

// Address returns the server listen address in :port form.
func (c ServerConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}
