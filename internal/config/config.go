package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/shano/email-to-remarkable-sync/internal/credential"
)

// Config holds everything a sync run needs, resolved from the
// environment by Load.
type Config struct {
	// IMAPServer is the IMAP host to poll for unread messages.
	IMAPServer string `mapstructure:"imap_server"`

	// IMAPPort is the implicit-TLS IMAP port on IMAPServer.
	IMAPPort string `mapstructure:"imap_port"`

	// EmailUsername is the mailbox account name.
	EmailUsername string `mapstructure:"email_username"`

	// EmailPassword is the mailbox password or app password.
	EmailPassword string `mapstructure:"email_password"`

	// Mailbox is the mailbox scanned for unread messages.
	Mailbox string `mapstructure:"mailbox_to_check"`

	// DownloadDir is the staging root for attachment files. Everything
	// written under it during a run is removed before the run ends.
	DownloadDir string `mapstructure:"download_dir"`

	// DestFolder is the destination folder on the reMarkable cloud.
	DestFolder string `mapstructure:"remarkable_dest_folder"`

	// DeviceToken is the reMarkable device token. After Load it holds
	// the value resolved from the environment, the token file at
	// DeviceTokenPath, or the system keyring, in that order.
	DeviceToken string `mapstructure:"remarkable_token"`

	// DeviceTokenPath is the token file consulted when REMARKABLE_TOKEN
	// is not set.
	DeviceTokenPath string `mapstructure:"remarkable_token_path"`

	// SyncFilePath is where the reMarkable client keeps its item-tree
	// snapshot between runs.
	SyncFilePath string `mapstructure:"rm_sync_file_path"`

	// ClientLogPath is where the reMarkable client writes its own log.
	ClientLogPath string `mapstructure:"rm_log_file"`

	// LogLevel sets the application log level (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// AuthHost overrides the reMarkable authentication endpoint.
	// Empty means the production host.
	AuthHost string `mapstructure:"rm_auth_host"`

	// DiscoveryHost overrides the reMarkable service discovery endpoint.
	// Empty means the production host.
	DiscoveryHost string `mapstructure:"rm_discovery_host"`
}

// ConfigError reports a missing or unusable configuration value. Field
// names the environment variable the operator has to fix.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration: %s %s", e.Field, e.Reason)
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// envBindings maps viper keys to the environment variables they read.
var envBindings = map[string]string{
	"imap_server":            "IMAP_SERVER",
	"imap_port":              "IMAP_PORT",
	"email_username":         "EMAIL_USERNAME",
	"email_password":         "EMAIL_PASSWORD",
	"mailbox_to_check":       "MAILBOX_TO_CHECK",
	"download_dir":           "DOWNLOAD_DIR",
	"remarkable_dest_folder": "REMARKABLE_DEST_FOLDER",
	"remarkable_token":       "REMARKABLE_TOKEN",
	"remarkable_token_path":  "REMARKABLE_TOKEN_PATH",
	"rm_sync_file_path":      "RM_SYNC_FILE_PATH",
	"rm_log_file":            "RM_LOG_FILE",
	"log_level":              "LOG_LEVEL",
	"rm_auth_host":           "RM_AUTH_HOST",
	"rm_discovery_host":      "RM_DISCOVERY_HOST",
}

// Load resolves the configuration from the environment using Viper.
// Unset variables fall back to defaults; required credentials that are
// still missing afterwards produce a ConfigError naming the variable.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults so missing variables resolve to sensible values.
	// Required fields default to empty and are checked in validate.
	v.SetDefault("imap_server", "imap.gmail.com")
	v.SetDefault("imap_port", "993")
	v.SetDefault("email_username", "")
	v.SetDefault("email_password", "")
	v.SetDefault("mailbox_to_check", "INBOX")
	v.SetDefault("download_dir", "/tmp/downloaded_pdfs")
	v.SetDefault("remarkable_dest_folder", "From Email")
	v.SetDefault("remarkable_token", "")
	v.SetDefault("remarkable_token_path", "/etc/remarkable/token")
	v.SetDefault("rm_sync_file_path", "/tmp/rm_api_sync")
	v.SetDefault("rm_log_file", "/tmp/rm_api.log")
	v.SetDefault("log_level", "info")
	v.SetDefault("rm_auth_host", "")
	v.SetDefault("rm_discovery_host", "")

	for key, envVar := range envBindings {
		if err := v.BindEnv(key, envVar); err != nil {
			return nil, fmt.Errorf("binding %s: %w", envVar, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := cfg.resolveDeviceToken(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks the fields that have no usable default.
func (c *Config) validate() error {
	required := []struct {
		field string
		value string
	}{
		{"EMAIL_USERNAME", c.EmailUsername},
		{"EMAIL_PASSWORD", c.EmailPassword},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ConfigError{Field: r.field, Reason: "is required"}
		}
	}
	return nil
}

// keyringToken looks a credential up in the system keyring. It is a
// variable so tests can substitute the lookup.
var keyringToken = credential.Get

// resolveDeviceToken fills DeviceToken from the first source that has
// one: the environment, the token file, then the system keyring.
func (c *Config) resolveDeviceToken() error {
	if token := strings.TrimSpace(c.DeviceToken); token != "" {
		c.DeviceToken = token
		return nil
	}

	if data, err := os.ReadFile(c.DeviceTokenPath); err == nil {
		if token := strings.TrimSpace(string(data)); token != "" {
			c.DeviceToken = token
			return nil
		}
	}

	if token, err := keyringToken(credential.KeyDeviceToken); err == nil {
		if token = strings.TrimSpace(token); token != "" {
			c.DeviceToken = token
			return nil
		}
	}

	return &ConfigError{
		Field:  "REMARKABLE_TOKEN",
		Reason: fmt.Sprintf("is required (not set, and no token found at %s or in the keyring)", c.DeviceTokenPath),
	}
}
