package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Host     HostConfig     `yaml:"host"`
	Control  ControlConfig  `yaml:"control"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Speech   SpeechConfig   `yaml:"speech"`
	Commands CommandsConfig `yaml:"commands"`
	Delegate DelegateConfig `yaml:"delegate"`
	Session  SessionConfig  `yaml:"session"`
	UI       UIConfig       `yaml:"ui"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type HostConfig struct {
	URL         string `yaml:"url"`
	Reconnect   string `yaml:"reconnect"`
	CallTimeout string `yaml:"call_timeout"`
}

type ControlConfig struct {
	Socket string `yaml:"socket"`
}

type MetricsConfig struct {
	// Addr of the /metrics listener; empty disables it.
	Addr string `yaml:"addr"`
}

type SpeechConfig struct {
	Language string  `yaml:"language"`
	Rate     float64 `yaml:"rate"`
	Pitch    float64 `yaml:"pitch"`

	// Input is panel, mic or inbox.
	Input string `yaml:"input"`
	// Output is panel or espeak.
	Output string `yaml:"output"`

	InboxDir      string `yaml:"inbox_dir"`
	InboxInterval string `yaml:"inbox_interval"`

	Model   string `yaml:"model"`
	Threads int    `yaml:"threads"`
	Cue     string `yaml:"cue"`
	Duck    bool   `yaml:"duck"`
}

type CommandsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	File    string `yaml:"file"`
}

type DelegateConfig struct {
	// Backend is openai, host or none.
	Backend string `yaml:"backend"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Proxy   string `yaml:"proxy"`
	// Timeout bounds one AI query; "0" disables it.
	Timeout string `yaml:"timeout"`
}

type SessionConfig struct {
	QueueSize int  `yaml:"queue_size"`
	Autostart bool `yaml:"autostart"`
}

type UIConfig struct {
	ShowStatusMessages *bool `yaml:"show_status_messages"`
}

// Load reads the YAML file at path, expanding ${VAR} references. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Host.URL == "" {
		c.Host.URL = "ws://127.0.0.1:8092"
	}
	if c.Host.Reconnect == "" {
		c.Host.Reconnect = "1s"
	}
	if c.Host.CallTimeout == "" {
		c.Host.CallTimeout = "10s"
	}
	if c.Control.Socket == "" {
		c.Control.Socket = "/tmp/voxcode.sock"
	}
	if c.Speech.Language == "" {
		c.Speech.Language = "en-US"
	}
	if c.Speech.Rate == 0 {
		c.Speech.Rate = 1.0
	}
	if c.Speech.Pitch == 0 {
		c.Speech.Pitch = 1.0
	}
	if c.Speech.Input == "" {
		c.Speech.Input = "panel"
	}
	if c.Speech.Output == "" {
		c.Speech.Output = "panel"
	}
	if c.Speech.InboxDir == "" {
		c.Speech.InboxDir = "./inbox"
	}
	if c.Speech.InboxInterval == "" {
		c.Speech.InboxInterval = "500ms"
	}
	if c.Delegate.Backend == "" {
		c.Delegate.Backend = "openai"
	}
	if c.Delegate.APIKey == "" {
		c.Delegate.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Delegate.Timeout == "" {
		c.Delegate.Timeout = "30s"
	}
	if c.Session.QueueSize == 0 {
		c.Session.QueueSize = 32
	}
}

func (c *Config) validate() error {
	switch c.Speech.Input {
	case "panel", "mic", "inbox":
	default:
		return fmt.Errorf("speech.input: unknown %q", c.Speech.Input)
	}
	switch c.Speech.Output {
	case "panel", "espeak":
	default:
		return fmt.Errorf("speech.output: unknown %q", c.Speech.Output)
	}
	switch c.Delegate.Backend {
	case "openai", "host", "none":
	default:
		return fmt.Errorf("delegate.backend: unknown %q", c.Delegate.Backend)
	}
	if c.Session.QueueSize < 0 {
		return fmt.Errorf("session.queue_size: must be positive, got %d", c.Session.QueueSize)
	}

	for name, v := range map[string]string{
		"host.reconnect":        c.Host.Reconnect,
		"host.call_timeout":     c.Host.CallTimeout,
		"speech.inbox_interval": c.Speech.InboxInterval,
		"delegate.timeout":      c.Delegate.Timeout,
	} {
		if _, err := parseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (c HostConfig) ReconnectDuration() time.Duration {
	d, _ := parseDuration(c.Reconnect)
	return d
}

func (c HostConfig) CallTimeoutDuration() time.Duration {
	d, _ := parseDuration(c.CallTimeout)
	return d
}

func (c SpeechConfig) InboxIntervalDuration() time.Duration {
	d, _ := parseDuration(c.InboxInterval)
	return d
}

func (c DelegateConfig) TimeoutDuration() time.Duration {
	d, _ := parseDuration(c.Timeout)
	return d
}

func (c CommandsConfig) BuiltinsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c UIConfig) StatusMessages() bool {
	return c.ShowStatusMessages == nil || *c.ShowStatusMessages
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}
