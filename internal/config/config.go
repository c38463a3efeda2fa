package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the doorbell binaries.
type Config struct {
	// Server configures doorbell-server.
	Server Server `yaml:"server" toml:"server"`
	// Client configures doorbell-client and doorbell-status.
	Client Client `yaml:"client" toml:"client"`
}

// Server holds the sensor and notification endpoint settings.
type Server struct {
	// ListenAddress is the host:port the WebSocket endpoint listens on.
	ListenAddress string `yaml:"listen_addr" toml:"listen_addr"`
	// Path is the HTTP path clients connect to.
	Path string `yaml:"path" toml:"path"`
	// MetricsPath is the HTTP path of the Prometheus endpoint. Empty disables it.
	MetricsPath string `yaml:"metrics_path" toml:"metrics_path"`
	// StatusAddress is the gRPC health endpoint address. Empty disables it.
	StatusAddress string `yaml:"status_addr" toml:"status_addr"`
	// GPIOChip is the GPIO character device name, e.g. gpiochip0.
	GPIOChip string `yaml:"gpio_chip" toml:"gpio_chip"`
	// GPIOPin is the line offset of the sensor on the chip (BCM numbering on a Raspberry Pi).
	GPIOPin int `yaml:"gpio_pin" toml:"gpio_pin"`
	// GPIOBias selects the input bias: pull-up, pull-down or disabled.
	GPIOBias string `yaml:"gpio_bias" toml:"gpio_bias"`
	// ActiveHigh inverts the default active-low polarity.
	ActiveHigh bool `yaml:"active_high" toml:"active_high"`
	// PollInterval is how often the sensor level is sampled.
	PollInterval time.Duration `yaml:"poll_interval" toml:"poll_interval"`
	// SuppressInterval is the pause after each triggered push.
	SuppressInterval time.Duration `yaml:"suppress_interval" toml:"suppress_interval"`
	// IdleInterval is the pause after each keepalive.
	IdleInterval time.Duration `yaml:"idle_interval" toml:"idle_interval"`
	// WriteTimeout bounds every single send to a client.
	WriteTimeout time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	// NATSURL enables publishing sensor events to NATS when set.
	NATSURL string `yaml:"nats_url" toml:"nats_url"`
	// NATSSubject is the subject sensor events are published to.
	NATSSubject string `yaml:"nats_subject" toml:"nats_subject"`
}

// Client holds the connection, retry and playback settings.
type Client struct {
	// ServerURL is the WebSocket URL of the doorbell endpoint.
	ServerURL string `yaml:"server_url" toml:"server_url"`
	// StatusAddress is the gRPC health endpoint queried by doorbell-status.
	StatusAddress string `yaml:"status_addr" toml:"status_addr"`
	// RetryDelay is the fixed pause between failed connection attempts.
	RetryDelay time.Duration `yaml:"retry_delay" toml:"retry_delay"`
	// MaxAttempts is the number of consecutive failed attempts before giving up.
	MaxAttempts int `yaml:"max_attempts" toml:"max_attempts"`
	// HandshakeTimeout bounds a single connection attempt.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" toml:"handshake_timeout"`
	// ReadTimeout drops a connection that stays silent for this long. A negative value disables it.
	ReadTimeout time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	// CallTimeout bounds each gRPC status call.
	CallTimeout time.Duration `yaml:"call_timeout" toml:"call_timeout"`
	// ClipName is the key the audio clip is registered under.
	ClipName string `yaml:"clip_name" toml:"clip_name"`
	// ClipPath is the audio file played for every ring.
	ClipPath string `yaml:"clip_path" toml:"clip_path"`
	// PlayerCommand overrides the audio player; the clip path is appended as the last argument.
	PlayerCommand []string `yaml:"player_command,omitempty" toml:"player_command,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "doorbell-settings.yaml"

	// DefaultPollInterval is the default sensor sampling period.
	DefaultPollInterval = 500 * time.Millisecond
	// DefaultSuppressInterval is the default pause after a triggered push.
	DefaultSuppressInterval = 2500 * time.Millisecond
	// DefaultIdleInterval is the default keepalive cadence.
	DefaultIdleInterval = 1 * time.Second
	// DefaultWriteTimeout is the default bound of a single send.
	DefaultWriteTimeout = 5 * time.Second

	// DefaultRetryDelay is the default pause between connection attempts.
	DefaultRetryDelay = 1 * time.Second
	// DefaultMaxAttempts is the default number of failed attempts before giving up.
	DefaultMaxAttempts = 30
	// DefaultHandshakeTimeout is the default bound of a connection attempt.
	DefaultHandshakeTimeout = 5 * time.Second
	// DefaultReadTimeout is the default silence tolerated on a connection.
	DefaultReadTimeout = 10 * time.Second
	// DefaultCallTimeout is the default bound of a status call.
	DefaultCallTimeout = 5 * time.Second
	// DefaultClipName is the default key of the audio clip.
	DefaultClipName = "doorbell"

	// DefaultGPIOChip is the default GPIO character device.
	DefaultGPIOChip = "gpiochip0"
	// DefaultGPIOBias is the default input bias.
	DefaultGPIOBias = BiasPullUp
	// DefaultNATSSubject is the default subject for sensor events.
	DefaultNATSSubject = "doorbell.events"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// Input bias names accepted in gpio_bias.
const (
	BiasPullUp   = "pull-up"
	BiasPullDown = "pull-down"
	BiasDisabled = "disabled"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errListenAddressRequired is returned when the server has no listen address.
	errListenAddressRequired = errors.New("server listen address must be provided")
	// errPathRequired is returned when the endpoint path is missing or relative.
	errPathRequired = errors.New("server path must be an absolute HTTP path")
	// errServerURLRequired is returned when the client has no server URL.
	errServerURLRequired = errors.New("client server URL must be provided")
	// errStatusAddressRequired is returned when doorbell-status has no address to query.
	errStatusAddressRequired = errors.New("status address must be provided")
	// errClipPathRequired is returned when the client has no clip to play.
	errClipPathRequired = errors.New("client clip path must be provided")
	// errUnknownBias is returned for unsupported gpio_bias values.
	errUnknownBias = errors.New("unknown GPIO bias")
)

// Load reads configuration from the provided path, decoding TOML for .toml
// files and YAML otherwise, and fills defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err = toml.Unmarshal(contents, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal TOML settings: %w", err)
		}
	} else if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the values that are set. Required
// endpoint values are checked per role by Server.Validate and Client.Validate.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := cfg.Server.applyDefaults(); err != nil {
		return err
	}

	cfg.Client.applyDefaults()

	return nil
}

// Validate checks the settings doorbell-server cannot run without.
func (s *Server) Validate() error {
	if s.ListenAddress == "" {
		return errListenAddressRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", s.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if !strings.HasPrefix(s.Path, "/") {
		return errPathRequired
	}

	if s.StatusAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", s.StatusAddress); err != nil {
			return fmt.Errorf("invalid status address: %w", err)
		}
	}

	return nil
}

// Validate checks the settings doorbell-client cannot run without.
func (c *Client) Validate() error {
	if c.ServerURL == "" {
		return errServerURLRequired
	}

	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid server URL scheme %q: want ws or wss", u.Scheme)
	}

	if c.ClipPath == "" {
		return errClipPathRequired
	}

	return nil
}

// ValidateStatus checks the settings doorbell-status cannot run without.
func (c *Client) ValidateStatus() error {
	if c.StatusAddress == "" {
		return errStatusAddressRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", c.StatusAddress); err != nil {
		return fmt.Errorf("invalid status address: %w", err)
	}

	return nil
}

func (s *Server) applyDefaults() error {
	if s.GPIOChip == "" {
		s.GPIOChip = DefaultGPIOChip
	}

	switch s.GPIOBias {
	case "":
		s.GPIOBias = DefaultGPIOBias
	case BiasPullUp, BiasPullDown, BiasDisabled:
	default:
		return fmt.Errorf("%w: %q", errUnknownBias, s.GPIOBias)
	}

	if s.PollInterval <= 0 {
		s.PollInterval = DefaultPollInterval
	}

	if s.SuppressInterval <= 0 {
		s.SuppressInterval = DefaultSuppressInterval
	}

	if s.IdleInterval <= 0 {
		s.IdleInterval = DefaultIdleInterval
	}

	if s.WriteTimeout <= 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}

	if s.NATSSubject == "" {
		s.NATSSubject = DefaultNATSSubject
	}

	return nil
}

func (c *Client) applyDefaults() {
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}

	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}

	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}

	// A negative read timeout disables the silence check.
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}

	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}

	if c.ClipName == "" {
		c.ClipName = DefaultClipName
	}
}
