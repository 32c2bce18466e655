package internal

import (
	"budget-grid/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadClientConfig_Defaults(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())

	config, err := LoadClientConfig()
	req.NoError(err)
	req.Equal("static", config.Discovery)
	req.Equal([]string{"127.0.0.1:5701"}, config.MemberList())
	req.Equal("dev", config.GroupName)
	req.Equal("dev-pass", config.GroupPassword)
	req.Equal(10, config.SpendWorkers)
	req.Equal(5*time.Minute, config.SpendTimeout)
	req.Equal("drop-oldest", config.Overflow)
	req.Equal("jclouds#hazelcast", config.EC2Group)
	req.Empty(config.KafkaBrokerList())
}

func TestLoadClientConfig_Overrides(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())
	t.Setenv("GRID_MEMBERS", "10.0.0.1:5701, 10.0.0.2:5701,")
	t.Setenv("SPEND_WORKERS", "4")
	t.Setenv("LOCK_TIMEOUT", "250ms")

	config, err := LoadClientConfig()
	req.NoError(err)
	req.Equal([]string{"10.0.0.1:5701", "10.0.0.2:5701"}, config.MemberList())
	req.Equal(4, config.SpendWorkers)
	req.Equal(250*time.Millisecond, config.LockTimeout)
}

func TestLoadClientConfig_Invalid(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())
	t.Setenv("QUEUE_OVERFLOW", "drop-all")

	_, err := LoadClientConfig()
	req.ErrorIs(err, errors.ErrInvalidArgument)
}

func TestLoadNodeConfig(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())
	t.Setenv("GRID_PUBLIC_ADDRESS", "54.0.0.1:5701")
	t.Setenv("GRID_PEERS", "54.0.0.2:5701")

	config, err := LoadNodeConfig()
	req.NoError(err)
	req.Equal("54.0.0.1:5701", config.Advertised())
	req.Equal("0.0.0.0:5701", config.ListenAddress())
	req.Equal([]string{"54.0.0.2:5701"}, config.PeerList())
	req.Equal(30*time.Second, config.LeaseTTL)
	req.Zero(config.EvictionMaxIdle)
}

func TestLoadNodeConfig_Invalid(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())
	t.Setenv("GRID_PORT", "70000")

	_, err := LoadNodeConfig()
	req.ErrorIs(err, errors.ErrInvalidArgument)
}
