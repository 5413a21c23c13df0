// Package config loads the agent's config.toml through
// github.com/spf13/viper, with CLI flag overrides applied on top.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Client is the client.* config block.
type Client struct {
	IP         string
	Iface      string
	ListenPort uint16
}

// Server is the server.* config block, with documented defaults.
type Server struct {
	IP   string
	Port uint16
}

// Tick is the tick.* config block: the single stream aging knob shared by
// the TCP and UDP reconstructors, and the aging/emit period.
type Tick struct {
	StreamTimeout time.Duration
	Interval      time.Duration
}

// Estimator is the estimator.* config block: the near-link physical
// capacity ceiling used by the available-bandwidth estimator.
type Estimator struct {
	NearLinkCapacityBytesPerSec uint64
}

// Probe is the probe.* config block naming the optional external
// measurement tools. An empty binary path disables that probe.
type Probe struct {
	Interval time.Duration

	ICMPBin       string
	ThroughputBin string
	PathloadBin   string
}

// Config is the fully-resolved, immutable configuration record threaded at
// construction. There are no process-wide mutable singletons.
type Config struct {
	Client    Client
	Server    Server
	Tick      Tick
	Estimator Estimator
	Probe     Probe

	Debug        bool
	VerboseLevel int
}

const (
	defaultServerIP                       = "172.16.0.254"
	defaultServerPort                     = 40042
	defaultStreamTimeout                  = 30 * time.Second
	defaultTickInterval                   = 5 * time.Second
	defaultNearLinkCapacityBytesPerSecond = 125_000_000 // 1 Gbps
	defaultProbeInterval                  = time.Minute
	defaultConfigPath                     = "config.toml"
)

// setDefaults registers every default on v, so a missing config.toml (or a
// config.toml that omits a key) still yields a fully-specified Config.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.ip", defaultServerIP)
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("tick.stream_timeout", defaultStreamTimeout)
	v.SetDefault("tick.interval", defaultTickInterval)
	v.SetDefault("estimator.near_link_capacity_bytes_per_sec", defaultNearLinkCapacityBytesPerSecond)
	v.SetDefault("probe.interval", defaultProbeInterval)
	v.SetDefault("debug", false)
	v.SetDefault("verbose-level", 0)
}

// Overrides holds the CLI flag values that take precedence over whatever
// config.toml specifies.
type Overrides struct {
	Host  string
	Iface string
}

// Load reads configPath (if it exists; a missing file is not an error,
// the defaults above apply) and applies CLI overrides: flags win over file
// values, which win over defaults. A malformed existing file is fatal at
// boot (exit code 1, mapped by cmd/agent).
func Load(configPath string, overrides Overrides) (Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	// Viper reports a missing explicit config file as a bare path error,
	// not as ConfigFileNotFoundError, so check existence ourselves.
	if _, statErr := os.Stat(configPath); statErr == nil {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "failed to parse config file %s", configPath)
		}
	} else if !os.IsNotExist(statErr) {
		return Config{}, errors.Wrapf(statErr, "failed to read config file %s", configPath)
	}

	cfg := Config{
		Client: Client{
			IP:         v.GetString("client.ip"),
			Iface:      v.GetString("client.iface"),
			ListenPort: uint16(v.GetInt("client.listen_port")),
		},
		Server: Server{
			IP:   v.GetString("server.ip"),
			Port: uint16(v.GetInt("server.port")),
		},
		Tick: Tick{
			StreamTimeout: v.GetDuration("tick.stream_timeout"),
			Interval:      v.GetDuration("tick.interval"),
		},
		Estimator: Estimator{
			NearLinkCapacityBytesPerSec: uint64(v.GetInt64("estimator.near_link_capacity_bytes_per_sec")),
		},
		Probe: Probe{
			Interval:      v.GetDuration("probe.interval"),
			ICMPBin:       v.GetString("probe.icmp_bin"),
			ThroughputBin: v.GetString("probe.throughput_bin"),
			PathloadBin:   v.GetString("probe.pathload_bin"),
		},
		Debug:        v.GetBool("debug"),
		VerboseLevel: v.GetInt("verbose-level"),
	}

	if overrides.Host != "" {
		cfg.Client.IP = overrides.Host
	}
	if overrides.Iface != "" {
		cfg.Client.Iface = overrides.Iface
	}

	return cfg, nil
}
