// Package config loads the small set of options the core recognizes:
// the transport's UDP port, the discovery sequence's property-map
// acquisition timeout, the transport protocol to use, and the
// self-node's node-profile instance code.
package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// DefaultConfigFile is the config file name looked for in the current
// directory when no path is given explicitly.
const DefaultConfigFile = "config.toml"

// TransportProtocol selects the transport layer's wire protocol.
type TransportProtocol string

const (
	TransportUDP TransportProtocol = "udp"
	TransportTCP TransportProtocol = "tcp"
)

// Config holds the core's recognized options.
type Config struct {
	UDPPort                     int               `toml:"udp_port"`
	PropertyMapAcquireTimeoutMS int               `toml:"property_map_acquire_timeout_ms"`
	TransportProtocol           TransportProtocol `toml:"transport_protocol"`
	SelfNodeInstanceCode        byte              `toml:"self_node_instance_code"`
}

// NewConfig returns a Config with the core's documented default values.
func NewConfig() *Config {
	return &Config{
		UDPPort:                     3610,
		PropertyMapAcquireTimeoutMS: 20000,
		TransportProtocol:           TransportUDP,
		SelfNodeInstanceCode:        0x01,
	}
}

func (c *Config) validate() error {
	switch c.TransportProtocol {
	case TransportUDP, TransportTCP:
	default:
		return fmt.Errorf("config: unrecognized transport_protocol %q", c.TransportProtocol)
	}
	return nil
}

// LoadConfig loads configuration with the following priority:
//  1. the file at configPath, if given;
//  2. DefaultConfigFile in the current directory, if present;
//  3. defaults, if neither exists.
func LoadConfig(configPath string) (*Config, error) {
	cfg := NewConfig()

	filePath := configPath
	if filePath == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			filePath = DefaultConfigFile
		} else {
			return cfg, nil
		}
	}

	if _, err := toml.DecodeFile(filePath, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", filePath, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CommandLineArgs holds values parsed from the command line, along with
// whether each was explicitly specified (so ApplyCommandLineArgs only
// overrides options the caller actually passed).
type CommandLineArgs struct {
	UDPPort                     int
	UDPPortSpecified            bool
	PropertyMapAcquireTimeoutMS int
	PropertyMapAcquireTimeoutMSSpecified bool
	TransportProtocol           string
	TransportProtocolSpecified  bool
	SelfNodeInstanceCode        int
	SelfNodeInstanceCodeSpecified bool
}

// ApplyCommandLineArgs overrides c with every explicitly specified
// field in args.
func (c *Config) ApplyCommandLineArgs(args CommandLineArgs) {
	if args.UDPPortSpecified {
		c.UDPPort = args.UDPPort
	}
	if args.PropertyMapAcquireTimeoutMSSpecified {
		c.PropertyMapAcquireTimeoutMS = args.PropertyMapAcquireTimeoutMS
	}
	if args.TransportProtocolSpecified {
		c.TransportProtocol = TransportProtocol(args.TransportProtocol)
	}
	if args.SelfNodeInstanceCodeSpecified {
		c.SelfNodeInstanceCode = byte(args.SelfNodeInstanceCode)
	}
}

// ParseCommandLineArgs parses the process's command-line flags.
func ParseCommandLineArgs() CommandLineArgs {
	udpPortFlag := flag.Int("udp-port", 3610, "UDP port for the ECHONET Lite transport")
	timeoutFlag := flag.Int("property-map-timeout-ms", 20000, "per-object property-map acquisition timeout, in milliseconds")
	protocolFlag := flag.String("transport-protocol", "udp", "transport protocol (udp or tcp)")
	instanceCodeFlag := flag.Int("self-node-instance-code", 0x01, "instance code of the self-node's node-profile object")

	flag.Parse()

	specified := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { specified[f.Name] = true })

	return CommandLineArgs{
		UDPPort:                     *udpPortFlag,
		UDPPortSpecified:            specified["udp-port"],
		PropertyMapAcquireTimeoutMS: *timeoutFlag,
		PropertyMapAcquireTimeoutMSSpecified: specified["property-map-timeout-ms"],
		TransportProtocol:           *protocolFlag,
		TransportProtocolSpecified:  specified["transport-protocol"],
		SelfNodeInstanceCode:        *instanceCodeFlag,
		SelfNodeInstanceCodeSpecified: specified["self-node-instance-code"],
	}
}
