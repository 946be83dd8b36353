// Package config loads driver-level tunables for the TDS core from YAML.
//
// This intentionally does not parse connection strings or store
// credentials — that belongs to the higher-level statement/result API
// and the driver's public entry point, both outside the core. What
// lives here are the knobs the protocol state machine and exchange
// engine need to operate: packet sizing, timeouts, and TLS mode.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TLSMode selects how the core negotiates encryption during PRELOGIN.
type TLSMode string

const (
	TLSOff       TLSMode = "off"       // ENCRYPT_NOT_SUP
	TLSPreferred TLSMode = "preferred" // ENCRYPT_ON if the server supports it, else plaintext
	TLSRequired  TLSMode = "required"  // ENCRYPT_REQ, fail if server can't
)

// Config holds the core's operating parameters.
type Config struct {
	// PacketSize is the packet size the client proposes to negotiate.
	// Must be in [512, 32767]; defaults to 4096 per spec.
	PacketSize int `yaml:"packet_size"`

	// DialTimeout bounds the initial TCP connect.
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// LoginTimeout bounds the PRELOGIN+LOGIN7 handshake.
	LoginTimeout time.Duration `yaml:"login_timeout"`

	// TLS selects the encryption negotiation mode.
	TLS TLSMode `yaml:"tls"`

	// QueryLogPreviewChars bounds how many characters of outbound SQL
	// batch text querylog.go will decode and log.
	QueryLogPreviewChars int `yaml:"query_log_preview_chars"`

	// ExchangeQueueDepth bounds the channel the exchange engine delivers
	// decoded response tokens through. The decoder blocks sending the
	// next token once the queue is full, so a slow downstream consumer
	// throttles how far ahead of it the socket read/decode loop runs.
	ExchangeQueueDepth int `yaml:"exchange_queue_depth"`
}

// Load reads and validates a core configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tds core config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing tds core config %s: %w", path, err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// Default returns a Config with every field set to its default value.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) validate() error {
	if c.PacketSize < 512 || c.PacketSize > 32767 {
		return fmt.Errorf("packet_size must be in [512, 32767], got %d", c.PacketSize)
	}
	switch c.TLS {
	case TLSOff, TLSPreferred, TLSRequired:
	default:
		return fmt.Errorf("tls must be one of off|preferred|required, got %q", c.TLS)
	}
	if c.ExchangeQueueDepth < 1 {
		return fmt.Errorf("exchange_queue_depth must be >= 1, got %d", c.ExchangeQueueDepth)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.PacketSize == 0 {
		c.PacketSize = 4096
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 15 * time.Second
	}
	if c.LoginTimeout == 0 {
		c.LoginTimeout = 30 * time.Second
	}
	if c.TLS == "" {
		c.TLS = TLSPreferred
	}
	if c.QueryLogPreviewChars == 0 {
		c.QueryLogPreviewChars = 256
	}
	if c.ExchangeQueueDepth == 0 {
		c.ExchangeQueueDepth = 1
	}
}
