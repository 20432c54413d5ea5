// Package config loads and validates the receiver configuration: listener
// addresses, the account routing table, notification topics, event
// priorities, the character map and queue tuning. The resulting Config is
// immutable after Load and shared read-only by every component.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/alxayo/go-galaxy-sia/internal/sia/text"
)

// DefaultAccount is the reserved routing table key matching any account that
// has no entry of its own.
const DefaultAccount = "default"

// Config is the complete receiver configuration.
//
// Sources (highest precedence first): environment variables (SIA_*), the
// YAML configuration file, built-in defaults.
type Config struct {
	// Listen is the SIA receiver listener.
	Listen ListenerConfig `mapstructure:"listen" yaml:"listen"`

	// IPCheck is the optional heartbeat echo listener on a second port. It
	// shares no state with the receiver.
	IPCheck IPCheckConfig `mapstructure:"ip_check" yaml:"ip_check"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Queue tunes the notification dispatch queue.
	Queue QueueConfig `mapstructure:"queue" yaml:"queue"`

	// Accounts maps a panel account number (or DefaultAccount) to its site
	// name and notification topic.
	Accounts map[string]AccountConfig `mapstructure:"accounts" yaml:"accounts" validate:"omitempty,dive"`

	// Priorities maps SIA event codes to ntfy priority 1..5. Codes not listed
	// use DefaultPriority.
	Priorities map[string]int `mapstructure:"priorities" yaml:"priorities" validate:"dive,min=1,max=5"`

	// DefaultPriority applies to unlisted event codes. Urgent by default so
	// unknown alarms are never silently demoted.
	DefaultPriority int `mapstructure:"default_priority" yaml:"default_priority" validate:"min=1,max=5"`

	// CharMap adds character map entries on top of the built-in table. Keys
	// are byte values ("0x8F" or decimal), values a single character.
	CharMap map[string]string `mapstructure:"char_map" yaml:"char_map"`

	// charMap is the parsed, merged character map.
	charMap map[byte]rune
}

// ListenerConfig is a TCP listen address.
type ListenerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" validate:"required"`
	Port int    `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
}

// HostPort renders the address in net.Listen form.
func (l ListenerConfig) HostPort() string {
	return fmt.Sprintf("%s:%d", l.Addr, l.Port)
}

// IPCheckConfig configures the heartbeat listener. Response selects what is
// sent back for a path viability ping.
type IPCheckConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Port     int    `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`
	Response string `mapstructure:"response" yaml:"response" validate:"omitempty,oneof=reject ack none"`
}

// HostPort renders the address in net.Listen form.
func (c IPCheckConfig) HostPort() string {
	return fmt.Sprintf("%s:%d", c.Addr, c.Port)
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
	// File redirects log output when non-empty; rotation is left to the
	// platform (logrotate, journald).
	File string `mapstructure:"file" yaml:"file"`
}

// QueueConfig tunes the dispatch queue. MaxRetries zero means retry forever.
type QueueConfig struct {
	MaxQueueSize        int    `mapstructure:"max_queue_size" yaml:"max_queue_size" validate:"min=1,max=1000"`
	MaxRetries          int    `mapstructure:"max_retries" yaml:"max_retries" validate:"min=0"`
	MaxRetryTimeMinutes int    `mapstructure:"max_retry_time_minutes" yaml:"max_retry_time_minutes" validate:"min=1,max=1000"`
	ShutdownPolicy      string `mapstructure:"shutdown_policy" yaml:"shutdown_policy" validate:"oneof=discard drain"`
}

// AccountConfig routes one panel account.
type AccountConfig struct {
	SiteName string     `mapstructure:"site_name" yaml:"site_name"`
	Ntfy     NtfyConfig `mapstructure:"ntfy" yaml:"ntfy"`
}

// NtfyConfig is the notification topic for one account.
type NtfyConfig struct {
	Enabled  bool        `mapstructure:"enabled" yaml:"enabled"`
	TopicURL string      `mapstructure:"topic_url" yaml:"topic_url" validate:"omitempty,url"`
	Title    string      `mapstructure:"title" yaml:"title"`
	Auth     *AuthConfig `mapstructure:"auth" yaml:"auth,omitempty"`
}

// AuthConfig carries per-topic credentials.
type AuthConfig struct {
	Method string `mapstructure:"method" yaml:"method" validate:"oneof=token userpass"`
	Token  string `mapstructure:"token" yaml:"token,omitempty"`
	User   string `mapstructure:"user" yaml:"user,omitempty"`
	Pass   string `mapstructure:"pass" yaml:"pass,omitempty"`
}

// SiteName resolves an account to its configured site name, falling back to
// the account number itself.
func (c *Config) SiteName(account string) string {
	if acct, ok := c.Accounts[account]; ok && acct.SiteName != "" {
		return acct.SiteName
	}
	return account
}

// Topic resolves the notification topic for an account: the account's own
// entry when enabled, otherwise the default entry when enabled, otherwise
// nothing (notification skipped).
func (c *Config) Topic(account string) (NtfyConfig, bool) {
	if acct, ok := c.Accounts[account]; ok && acct.Ntfy.Enabled && acct.Ntfy.TopicURL != "" {
		return acct.Ntfy, true
	}
	if def, ok := c.Accounts[DefaultAccount]; ok && def.Ntfy.Enabled && def.Ntfy.TopicURL != "" {
		return def.Ntfy, true
	}
	return NtfyConfig{}, false
}

// Priority returns the ntfy priority for an event code, always in 1..5.
func (c *Config) Priority(eventCode string) int {
	if p, ok := c.Priorities[eventCode]; ok {
		return p
	}
	return c.DefaultPriority
}

// CharacterMap returns the merged byte-to-rune map: built-in entries overlaid
// with configured ones.
func (c *Config) CharacterMap() map[byte]rune {
	return c.charMap
}

// Dump renders the effective configuration as YAML for startup debug logging.
func (c *Config) Dump() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("config.dump: %w", err)
	}
	return string(out), nil
}

// Load reads the configuration file, applies environment overrides and
// defaults, and validates the result. Errors here are fatal at startup.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := finish(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration, used when no file is given.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if err := finish(cfg); err != nil {
		// The built-in defaults always validate.
		panic(err)
	}
	return cfg
}

// finish normalizes, parses the character map and validates.
func finish(cfg *Config) error {
	normalize(cfg)

	charMap, err := parseCharMap(cfg.CharMap)
	if err != nil {
		return err
	}
	cfg.charMap = charMap

	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	for account, acct := range cfg.Accounts {
		if acct.Ntfy.Enabled && acct.Ntfy.TopicURL == "" {
			return fmt.Errorf("config validation: account %q has ntfy enabled but no topic_url", account)
		}
		if err := validateAuth(account, acct.Ntfy.Auth); err != nil {
			return err
		}
	}
	return nil
}

// normalize repairs viper's key case folding: event codes are uppercase on
// the wire, viper hands map keys back lowercased.
func normalize(cfg *Config) {
	if len(cfg.Priorities) > 0 {
		up := make(map[string]int, len(cfg.Priorities))
		for code, p := range cfg.Priorities {
			up[strings.ToUpper(code)] = p
		}
		cfg.Priorities = up
	}
	for account, acct := range cfg.Accounts {
		if acct.Ntfy.Auth != nil {
			acct.Ntfy.Auth.Method = strings.ToLower(acct.Ntfy.Auth.Method)
			cfg.Accounts[account] = acct
		}
	}
}

func validateAuth(account string, auth *AuthConfig) error {
	if auth == nil {
		return nil
	}
	switch auth.Method {
	case "token":
		if auth.Token == "" {
			return fmt.Errorf("config validation: account %q auth method token needs a token", account)
		}
	case "userpass":
		if auth.User == "" || auth.Pass == "" {
			return fmt.Errorf("config validation: account %q auth method userpass needs user and pass", account)
		}
	default:
		return fmt.Errorf("config validation: account %q has unknown auth method %q", account, auth.Method)
	}
	return nil
}

// parseCharMap merges configured entries over the built-in table. Keys accept
// hex ("0x8F") or decimal byte values; values are a single character.
func parseCharMap(entries map[string]string) (map[byte]rune, error) {
	merged := text.DefaultMap()
	for key, val := range entries {
		n, err := strconv.ParseUint(strings.TrimSpace(key), 0, 8)
		if err != nil {
			return nil, fmt.Errorf("config validation: char_map key %q is not a byte value: %w", key, err)
		}
		if utf8.RuneCountInString(val) != 1 {
			return nil, fmt.Errorf("config validation: char_map value %q must be a single character", val)
		}
		r, _ := utf8.DecodeRuneInString(val)
		merged[byte(n)] = r
	}
	return merged, nil
}
