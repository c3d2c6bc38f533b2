package main

import (
	"net/netip"
	"testing"
	"time"

	"artnetnode/internal/artnet"
	"artnetnode/internal/config"
	"artnetnode/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertConfigNode(t *testing.T) {
	cfg := config.Default().Node
	cfg.Subnet, cfg.Net = 3, 10
	cfg.Broadcast = "192.168.6.255"
	cfg.FallbackIP = "192.168.6.21"

	opts, err := ConvertConfigNode(logger.Discard(), cfg)
	require.NoError(t, err)
	assert.Equal(t, artnet.Address{Subnet: 3, Net: 10}, opts.Address)
	assert.Equal(t, netip.MustParseAddr("192.168.6.255"), opts.Broadcast)
	assert.Equal(t, netip.MustParseAddr("192.168.6.21"), opts.FallbackIP)
	assert.Equal(t, 512, opts.Channels)
	assert.Equal(t, time.Second, opts.RetryInterval)
	assert.True(t, opts.Unicast)
}

func TestConvertConfigNode_OutOfRangeAddress(t *testing.T) {
	cfg := config.Default().Node
	cfg.Subnet = 300

	opts, err := ConvertConfigNode(logger.Discard(), cfg)
	require.NoError(t, err)
	assert.Equal(t, artnet.Address{}, opts.Address)
}

func TestConvertConfigNode_BadIP(t *testing.T) {
	cfg := config.Default().Node
	cfg.Broadcast = "255.255.255"
	_, err := ConvertConfigNode(logger.Discard(), cfg)
	assert.Error(t, err)

	cfg = config.Default().Node
	cfg.FallbackIP = "host"
	_, err = ConvertConfigNode(logger.Discard(), cfg)
	assert.Error(t, err)
}

func TestConvertConfigBridge(t *testing.T) {
	cfg := config.Default().MQTT
	b := ConvertConfigBridge(cfg)
	assert.Equal(t, "tcp", b.Schema)
	assert.Equal(t, "artnet", b.TopicPrefix)
	assert.Equal(t, 40*time.Millisecond, b.PollInterval)
}
