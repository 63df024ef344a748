package config

import (
	"fmt"
	"net/url"

	"github.com/BioHazard786/droprelay/internal/signaling"
	"github.com/caarlos0/env/v11"
)

// Default configuration values (production)
const (
	DefaultURL        = "wss://api.scaledrone.com/v3/websocket"
	DefaultChannelID  = "C00ByYrXvpYm9Ror"
	DefaultClientName = "server"
	DefaultBrokerAddr = ":8080"
)

// Config holds the relay configuration.
type Config struct {
	// URL is the websocket endpoint of the pub/sub service.
	URL string `env:"DRONE_URL" envDefault:"wss://api.scaledrone.com/v3/websocket"`

	// ChannelID is the application credential sent in the handshake.
	ChannelID string `env:"DRONE_CHANNEL_ID" envDefault:"C00ByYrXvpYm9Ror"`

	// ClientName is advertised to the other members of the room.
	ClientName string `env:"DRONE_CLIENT_NAME" envDefault:"server"`

	// RoomHash selects the room. Empty means signaling.DefaultRoomHash.
	RoomHash string `env:"ROOM_HASH"`
}

// Options carries CLI flag overrides. Empty fields leave the environment
// or default value in place.
type Options struct {
	URL        string
	ChannelID  string
	ClientName string
	RoomHash   string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	override(&cfg.URL, opts.URL)
	override(&cfg.ChannelID, opts.ChannelID)
	override(&cfg.ClientName, opts.ClientName)
	override(&cfg.RoomHash, opts.RoomHash)

	if err := validateURL(cfg.URL); err != nil {
		return nil, err
	}
	if cfg.ChannelID == "" {
		return nil, fmt.Errorf("channel id cannot be empty")
	}

	return &cfg, nil
}

// Names returns the channel names derived from the room hash.
func (c *Config) Names() signaling.Names {
	return signaling.RoomNames(c.RoomHash)
}

// Session returns the room session settings.
func (c *Config) Session() signaling.Config {
	return signaling.Config{
		URL:        c.URL,
		ChannelID:  c.ChannelID,
		ClientName: c.ClientName,
		Names:      c.Names(),
	}
}

// BrokerConfig holds the local broker configuration.
type BrokerConfig struct {
	// Addr is the HTTP listen address.
	Addr string `env:"BROKER_ADDR" envDefault:":8080"`

	// ChannelID is the only channel the broker accepts handshakes for.
	ChannelID string `env:"BROKER_CHANNEL_ID" envDefault:"C00ByYrXvpYm9Ror"`
}

// BrokerOptions carries CLI flag overrides for the broker.
type BrokerOptions struct {
	Addr      string
	ChannelID string
}

// LoadBroker reads broker configuration with the same priority as Load.
func LoadBroker(opts BrokerOptions) (*BrokerConfig, error) {
	var cfg BrokerConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	override(&cfg.Addr, opts.Addr)
	override(&cfg.ChannelID, opts.ChannelID)

	if cfg.ChannelID == "" {
		return nil, fmt.Errorf("channel id cannot be empty")
	}

	return &cfg, nil
}

func override(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid server URL %q: scheme must be ws or wss", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid server URL %q: missing host", raw)
	}
	return nil
}
