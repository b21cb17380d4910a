package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	c := NewConfig()
	assert.Equal(t, 3610, c.UDPPort)
	assert.Equal(t, 20000, c.PropertyMapAcquireTimeoutMS)
	assert.Equal(t, TransportUDP, c.TransportProtocol)
	assert.Equal(t, byte(0x01), c.SelfNodeInstanceCode)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
udp_port = 4000
property_map_acquire_timeout_ms = 5000
transport_protocol = "tcp"
self_node_instance_code = 2
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4000, c.UDPPort)
	assert.Equal(t, 5000, c.PropertyMapAcquireTimeoutMS)
	assert.Equal(t, TransportTCP, c.TransportProtocol)
	assert.Equal(t, byte(2), c.SelfNodeInstanceCode)
}

func TestLoadConfigRejectsUnknownTransportProtocol(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`transport_protocol = "carrier-pigeon"`), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestApplyCommandLineArgsOnlyOverridesSpecified(t *testing.T) {
	c := NewConfig()
	c.ApplyCommandLineArgs(CommandLineArgs{
		UDPPort:          9999,
		UDPPortSpecified: true,
	})
	assert.Equal(t, 9999, c.UDPPort)
	assert.Equal(t, 20000, c.PropertyMapAcquireTimeoutMS)
}
