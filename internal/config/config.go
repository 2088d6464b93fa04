// Package config loads compass settings from file, environment and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. COMPASS_STORE_DSN.
const EnvPrefix = "COMPASS"

// Config keys.
const (
	KeyListenAddr           = "listen_addr"
	KeyStoreDSN             = "store_dsn"
	KeyUserID               = "user_id"
	KeyCredentialsFile      = "credentials_file"
	KeyTokenFile            = "token_file"
	KeyWebhookURL           = "webhook_url"
	KeyChannelExpirationMin = "channel_expiration_min"
	KeyMaintenanceCron      = "maintenance_cron"
	KeyLogLevel             = "log_level"
	KeyLogFormat            = "log_format"
	KeyShutdownTimeout      = "shutdown_timeout"
)

type Config struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	StoreDSN        string `mapstructure:"store_dsn"`
	UserID          string `mapstructure:"user_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`
	// WebhookURL is the public address Google posts notifications to.
	WebhookURL string `mapstructure:"webhook_url"`
	// ChannelExpirationMin is the requested lifetime of a push channel.
	ChannelExpirationMin int           `mapstructure:"channel_expiration_min"`
	MaintenanceCron      string        `mapstructure:"maintenance_cron"`
	LogLevel             string        `mapstructure:"log_level"`
	LogFormat            string        `mapstructure:"log_format"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyListenAddr, ":8080")
	v.SetDefault(KeyStoreDSN, "sqlite://compass.db")
	v.SetDefault(KeyUserID, "local")
	v.SetDefault(KeyCredentialsFile, "credentials.json")
	v.SetDefault(KeyTokenFile, "token.json")
	v.SetDefault(KeyWebhookURL, "")
	v.SetDefault(KeyChannelExpirationMin, 10080)
	v.SetDefault(KeyMaintenanceCron, "0 */6 * * *")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeyShutdownTimeout, "10s")
}

// DefaultPath is $HOME/.config/compass/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "compass", "config.yaml"), nil
}

// Init points v at cfgFile (or the default location), wires environment
// overrides and reads the file if there is one. It returns the file used.
func Init(v *viper.Viper, cfgFile string) (string, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		path, err := DefaultPath()
		if err != nil {
			return "", err
		}
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// The channel lifetime is also read unprefixed, as deployments set it.
	if err := v.BindEnv(KeyChannelExpirationMin, "CHANNEL_EXPIRATION_MIN", EnvPrefix+"_CHANNEL_EXPIRATION_MIN"); err != nil {
		return "", err
	}

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.CredentialsFile = ExpandPath(cfg.CredentialsFile)
	cfg.TokenFile = ExpandPath(cfg.TokenFile)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.ChannelExpirationMin <= 0 {
		return fmt.Errorf("%s must be a positive number of minutes, got %d", KeyChannelExpirationMin, c.ChannelExpirationMin)
	}
	if strings.TrimSpace(c.StoreDSN) == "" {
		return fmt.Errorf("%s is required", KeyStoreDSN)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("%s must be json or text, got %q", KeyLogFormat, c.LogFormat)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("%s must not be negative", KeyShutdownTimeout)
	}
	return nil
}

// Settings returns c keyed the way it is written to disk.
func (c Config) Settings() map[string]any {
	return map[string]any{
		KeyListenAddr:           c.ListenAddr,
		KeyStoreDSN:             c.StoreDSN,
		KeyUserID:               c.UserID,
		KeyCredentialsFile:      c.CredentialsFile,
		KeyTokenFile:            c.TokenFile,
		KeyWebhookURL:           c.WebhookURL,
		KeyChannelExpirationMin: c.ChannelExpirationMin,
		KeyMaintenanceCron:      c.MaintenanceCron,
		KeyLogLevel:             c.LogLevel,
		KeyLogFormat:            c.LogFormat,
		KeyShutdownTimeout:      c.ShutdownTimeout.String(),
	}
}

// Marshal renders c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c.Settings())
}

// Write saves cfg to path as YAML. The parent directory is created 0700 and
// the file replaced atomically with 0600 permissions.
func Write(path string, cfg Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".compass-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
