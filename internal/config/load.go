package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. CLOUDTASK_TASKS_PROJECT.
const EnvPrefix = "CLOUDTASK"

// ConfigFileEnv names the environment variable holding an optional config file path.
const ConfigFileEnv = EnvPrefix + "_CONFIG_FILE"

// keys lists every setting so that viper binds its environment variable even
// when no default exists.
var keys = []string{
	"server.port",
	"server.log_level",
	"server.callback_path",
	"server.max_body_bytes",
	"tasks.url",
	"tasks.service_account_email",
	"tasks.secret",
	"tasks.project",
	"tasks.location",
	"tasks.queue",
	"tasks.local",
	"tasks.testing",
	"tasks.verify_identity_token",
	"tasks.audience",
	"broker.redis_url",
	"broker.queue",
	"broker.concurrency",
	"broker.metrics_addr",
}

// setDefaults registers default values for optional settings.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.callback_path", "/tasks/run")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("tasks.local", false)
	v.SetDefault("tasks.testing", false)
	v.SetDefault("tasks.verify_identity_token", false)
	v.SetDefault("broker.redis_url", "redis://localhost:6379/0")
	v.SetDefault("broker.queue", "cloudtask")
	v.SetDefault("broker.concurrency", 1)
}

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from the config file.
// Returns a populated Config or an error wrapping ErrConfiguration if loading
// or validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("%w: binding %s: %v", ErrConfiguration, key, err)
		}
	}

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: reading config file: %v", ErrConfiguration, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: unable to decode into struct: %v", ErrConfiguration, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks a Config against its struct tags. Each failed field becomes a
// SettingError keyed by its dotted setting name.
func Validate(cfg *Config) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: validation failed: %v", ErrConfiguration, err)
	}

	settingErrs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		settingErrs = append(settingErrs, &SettingError{
			Key:    settingKey(fe.Namespace()),
			Reason: "failed on the '" + fe.Tag() + "' rule",
		})
	}
	return fmt.Errorf("config validation failed: %w", errors.Join(settingErrs...))
}

// settingKey turns a validator namespace such as "Config.tasks.project" into
// the dotted setting key "tasks.project".
func settingKey(namespace string) string {
	_, key, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}
	return key
}
