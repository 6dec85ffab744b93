// Package config loads the daemon configuration from YAML and the
// environment.
//
// A missing field keeps its default, so an empty file is a valid
// configuration. Environment variables override the file and command-line
// flags override both.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/signalsfoundry/p2p-supplicant/internal/engine"
	"github.com/signalsfoundry/p2p-supplicant/internal/logging"
	"github.com/signalsfoundry/p2p-supplicant/internal/observability"
	"github.com/signalsfoundry/p2p-supplicant/internal/rpc"
	"github.com/signalsfoundry/p2p-supplicant/model"
	"github.com/signalsfoundry/p2p-supplicant/timectrl"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration.
type Config struct {
	GRPCAddr    string `yaml:"grpc_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	Log     logging.Config              `yaml:"log"`
	Tracing observability.TracingConfig `yaml:"tracing"`
	Engine  EngineConfig                `yaml:"engine"`

	// Interfaces are brought up when the daemon starts.
	Interfaces []string `yaml:"interfaces"`
	// Peers seed the simulated radio neighbourhood.
	Peers []PeerConfig `yaml:"peers"`
}

// EngineConfig tunes the simulated P2P engine.
type EngineConfig struct {
	MaxNetworks        int                   `yaml:"max_networks"`
	MaxServiceRequests int                   `yaml:"max_service_requests"`
	PeerTableSize      int                   `yaml:"peer_table_size"`
	ResponseDelay      time.Duration         `yaml:"response_delay"`
	Tick               time.Duration         `yaml:"tick"`
	Accelerated        bool                  `yaml:"accelerated"`
	ListenChannels     []engine.ChannelClass `yaml:"listen_channels"`
}

// PeerConfig describes one simulated peer device. Bonjour query and
// response records are hex encoded.
type PeerConfig struct {
	Address           string          `yaml:"address"`
	DeviceName        string          `yaml:"device_name"`
	PrimaryDeviceType string          `yaml:"primary_device_type"`
	ConfigMethods     uint16          `yaml:"config_methods"`
	DeviceCapability  uint8           `yaml:"device_capability"`
	GroupCapability   uint8           `yaml:"group_capability"`
	SSID              string          `yaml:"ssid"`
	Bonjour           []BonjourConfig `yaml:"bonjour"`
	Upnp              []UpnpConfig    `yaml:"upnp"`
}

// BonjourConfig is a hex-encoded DNS-SD record pair.
type BonjourConfig struct {
	Query    string `yaml:"query"`
	Response string `yaml:"response"`
}

// UpnpConfig is an advertised UPnP service.
type UpnpConfig struct {
	Version uint32 `yaml:"version"`
	Name    string `yaml:"name"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	limits := engine.DefaultLimits()
	return &Config{
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",
		Log:         logging.Config{Level: "info", Format: "text", AddSource: true},
		Tracing:     observability.DefaultTracingConfig(),
		Engine: EngineConfig{
			MaxNetworks:        limits.MaxNetworks,
			MaxServiceRequests: limits.MaxServiceRequests,
			PeerTableSize:      256,
			ResponseDelay:      limits.ResponseDelay,
			Tick:               100 * time.Millisecond,
			ListenChannels:     engine.DefaultChannelTable().Classes(),
		},
	}
}

// Load reads path over the defaults. An empty path returns Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays P2P_GRPC_ADDR, P2P_METRICS_ADDR, LOG_LEVEL, LOG_FORMAT
// and the tracing variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("P2P_GRPC_ADDR"); v != "" {
		c.GRPCAddr = v
	}
	if v := os.Getenv("P2P_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	c.Log = logging.ConfigFromEnv(c.Log)
	c.Tracing = observability.TracingConfigWithEnv(c.Tracing)
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var err error
	if c.GRPCAddr == "" {
		err = multierr.Append(err, errors.New("grpc_addr is required"))
	}
	if c.Engine.MaxNetworks < 0 {
		err = multierr.Append(err, fmt.Errorf("engine.max_networks %d is negative", c.Engine.MaxNetworks))
	}
	if c.Engine.MaxServiceRequests < 0 {
		err = multierr.Append(err, fmt.Errorf("engine.max_service_requests %d is negative", c.Engine.MaxServiceRequests))
	}
	if c.Engine.PeerTableSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("engine.peer_table_size must be positive, got %d", c.Engine.PeerTableSize))
	}
	if c.Engine.ResponseDelay < 0 {
		err = multierr.Append(err, fmt.Errorf("engine.response_delay %s is negative", c.Engine.ResponseDelay))
	}
	if c.Engine.Tick <= 0 {
		err = multierr.Append(err, fmt.Errorf("engine.tick must be positive, got %s", c.Engine.Tick))
	}
	if _, cerr := c.ChannelTable(); cerr != nil {
		err = multierr.Append(err, cerr)
	}
	if r := c.Tracing.SampleRatio; r < 0 || r > 1 {
		err = multierr.Append(err, fmt.Errorf("tracing.sample_ratio %v outside [0,1]", r))
	}

	seen := make(map[string]struct{}, len(c.Interfaces))
	for _, name := range c.Interfaces {
		if ierr := rpc.ValidateIfname(name); ierr != nil {
			err = multierr.Append(err, fmt.Errorf("interfaces: %w", ierr))
			continue
		}
		if _, dup := seen[name]; dup {
			err = multierr.Append(err, fmt.Errorf("interfaces: %q listed twice", name))
		}
		seen[name] = struct{}{}
	}
	for i := range c.Peers {
		if _, perr := c.Peers[i].Peer(); perr != nil {
			err = multierr.Append(err, fmt.Errorf("peers[%d]: %w", i, perr))
		}
	}
	return err
}

// Limits converts the engine section to engine.Limits.
func (c *Config) Limits() engine.Limits {
	return engine.Limits{
		MaxNetworks:        c.Engine.MaxNetworks,
		MaxServiceRequests: c.Engine.MaxServiceRequests,
		ResponseDelay:      c.Engine.ResponseDelay,
	}
}

// ChannelTable builds the listen channel table. No classes keeps the
// default social channels.
func (c *Config) ChannelTable() (*engine.ChannelTable, error) {
	if len(c.Engine.ListenChannels) == 0 {
		return engine.DefaultChannelTable(), nil
	}
	t, err := engine.NewChannelTable(c.Engine.ListenChannels)
	if err != nil {
		return nil, fmt.Errorf("engine.listen_channels: %w", err)
	}
	return t, nil
}

// TimeMode selects how the engine clock advances.
func (c *Config) TimeMode() timectrl.Mode {
	if c.Engine.Accelerated {
		return timectrl.Accelerated
	}
	return timectrl.RealTime
}

// Peer converts the entry to a model.Peer.
func (p PeerConfig) Peer() (*model.Peer, error) {
	addr, err := model.ParseMacAddr(p.Address)
	if err != nil {
		return nil, fmt.Errorf("address %q: %w", p.Address, err)
	}
	if addr.IsZero() {
		return nil, errors.New("address must not be all zeros")
	}
	out := &model.Peer{
		Address:           addr,
		DeviceName:        p.DeviceName,
		PrimaryDeviceType: p.PrimaryDeviceType,
		ConfigMethods:     p.ConfigMethods,
		DeviceCapability:  p.DeviceCapability,
		GroupCapability:   p.GroupCapability,
	}
	if p.SSID != "" {
		out.OperSSID = []byte(p.SSID)
	}
	for i, b := range p.Bonjour {
		query, err := hex.DecodeString(b.Query)
		if err != nil || len(query) == 0 {
			return nil, fmt.Errorf("bonjour[%d]: query must be non-empty hex", i)
		}
		resp, err := hex.DecodeString(b.Response)
		if err != nil {
			return nil, fmt.Errorf("bonjour[%d]: response: %w", i, err)
		}
		if err := engine.CheckBonjourRecord(query, resp); err != nil {
			return nil, fmt.Errorf("bonjour[%d]: %w", i, err)
		}
		out.BonjourServices = append(out.BonjourServices, model.BonjourService{Query: query, Response: resp})
	}
	for i, u := range p.Upnp {
		if u.Name == "" {
			return nil, fmt.Errorf("upnp[%d]: name is required", i)
		}
		if err := engine.CheckUpnpRecord(u.Version, u.Name); err != nil {
			return nil, fmt.Errorf("upnp[%d]: %w", i, err)
		}
		out.UpnpServices = append(out.UpnpServices, model.UpnpService{Version: u.Version, Name: u.Name})
	}
	return out, nil
}
