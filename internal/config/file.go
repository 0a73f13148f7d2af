// Package config handles autobuy configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/autobuy/driver"
	"github.com/hazyhaar/autobuy/platform"
)

// Config is the top-level autobuy configuration.
type Config struct {
	LogLevel  string                           `yaml:"log_level"`
	Store     StoreConfig                      `yaml:"store"`
	Browser   BrowserConfig                    `yaml:"browser"`
	Checkout  CheckoutConfig                   `yaml:"checkout"`
	Delays    DelayConfig                      `yaml:"delays"`
	HTTP      HTTPConfig                       `yaml:"http"`
	Events    EventsConfig                     `yaml:"events"`
	Selectors map[platform.ID]driver.Selectors `yaml:"selectors"`
	Agents    []driver.PurchasingAgent         `yaml:"agents"`
}

// StoreConfig selects the state store backend.
type StoreConfig struct {
	Backend      string      `yaml:"backend"` // sqlite | redis
	Path         string      `yaml:"path"`
	Redis        RedisConfig `yaml:"redis"`
	HistoryLimit int         `yaml:"history_limit"`
}

// RedisConfig is used when Backend is redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Headless         bool          `yaml:"headless"`
	Bin              string        `yaml:"bin"`
	UserDataDir      string        `yaml:"user_data_dir"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	NavigateTimeout  time.Duration `yaml:"navigate_timeout"`
}

// CheckoutConfig holds the orchestration switches.
type CheckoutConfig struct {
	AutoConfirmOrders bool          `yaml:"auto_confirm_orders"`
	RetryOnFailure    bool          `yaml:"retry_on_failure"`
	InFlightMaxAge    time.Duration `yaml:"inflight_max_age"`
}

// DelayConfig paces driver steps.
type DelayConfig struct {
	Step     time.Duration `yaml:"step"`
	PageLoad time.Duration `yaml:"page_load"`
	Poll     time.Duration `yaml:"poll"`
}

// HTTPConfig controls the HTTP listener.
type HTTPConfig struct {
	Addr         string `yaml:"addr"`
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
}

// EventsConfig defines where ORDER_PROCESSED events go.
type EventsConfig struct {
	Stdout   bool            `yaml:"stdout"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig is one webhook destination.
type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Retries int           `yaml:"retries"`
	Backoff time.Duration `yaml:"backoff"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "sqlite"
	}
	if c.Store.Path == "" {
		c.Store.Path = "autobuy.db"
	}
	if c.Store.HistoryLimit <= 0 {
		c.Store.HistoryLimit = 100
	}
	if c.Store.Redis.Addr == "" {
		c.Store.Redis.Addr = "localhost:6379"
	}
	if c.Store.Redis.Prefix == "" {
		c.Store.Redis.Prefix = "autobuy"
	}
	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = 30 * time.Second
	}
	if c.Delays.Step <= 0 {
		c.Delays.Step = 800 * time.Millisecond
	}
	if c.Delays.PageLoad <= 0 {
		c.Delays.PageLoad = 15 * time.Second
	}
	if c.Delays.Poll <= 0 {
		c.Delays.Poll = 5 * time.Second
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "127.0.0.1:8427"
	}
	for i := range c.Events.Webhooks {
		if c.Events.Webhooks[i].Retries <= 0 {
			c.Events.Webhooks[i].Retries = 3
		}
		if c.Events.Webhooks[i].Backoff <= 0 {
			c.Events.Webhooks[i].Backoff = time.Second
		}
	}
}

// Validate reports the first inconsistency in c.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("config: store.backend %q: want sqlite or redis", c.Store.Backend)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log_level %q", c.LogLevel)
	}
	if (c.HTTP.Username == "") != (c.HTTP.PasswordHash == "") {
		return fmt.Errorf("config: http.username and http.password_hash go together")
	}
	for i, w := range c.Events.Webhooks {
		if w.URL == "" {
			return fmt.Errorf("config: events.webhooks[%d]: url is required", i)
		}
	}
	for id, sel := range c.Selectors {
		if !platform.Known(id) {
			return fmt.Errorf("config: selectors: unknown platform %q", id)
		}
		if sel.OrderNumberPattern != "" {
			if _, err := regexp.Compile(sel.OrderNumberPattern); err != nil {
				return fmt.Errorf("config: selectors.%s.order_number_pattern: %w", id, err)
			}
		}
	}
	for i, a := range c.Agents {
		if a.Name == "" || strings.Count(a.Template, "%s") != 1 {
			return fmt.Errorf("config: agents[%d]: name and a template with one %%s are required", i)
		}
	}
	return nil
}
