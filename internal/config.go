package internal

import (
	"budget-grid/errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

// ClientConfig configures gridctl.
type ClientConfig struct {
	LogLevel        string `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	Colours         bool   `env:"COLOURS,default=true"`
	Discovery       string `env:"GRID_DISCOVERY,default=static" validate:"oneof=static ec2"`
	Members         string `env:"GRID_MEMBERS,default=127.0.0.1:5701"`
	Port            int    `env:"GRID_PORT,default=5701" validate:"min=1,max=65535"`
	EC2Region       string `env:"GRID_EC2_REGION,default=us-east-1"`
	EC2Profile      string `env:"GRID_EC2_PROFILE"`
	EC2Group        string `env:"GRID_EC2_GROUP,default=jclouds#hazelcast"`
	GroupName       string `env:"GRID_GROUP_NAME,default=dev" validate:"required"`
	GroupPassword   string `env:"GRID_GROUP_PASSWORD,default=dev-pass" validate:"required"`
	ConnectAttempts int    `env:"GRID_CONNECT_ATTEMPTS,default=3" validate:"min=1"`

	LockTimeout     time.Duration `env:"LOCK_TIMEOUT,default=10s" validate:"gt=0"`
	SpendWorkers    int           `env:"SPEND_WORKERS,default=10" validate:"min=1,max=1000"`
	SpendTimeout    time.Duration `env:"SPEND_TIMEOUT,default=5m" validate:"gt=0"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	RetryAttempts   int           `env:"RETRY_ATTEMPTS,default=3" validate:"min=1"`
	RetryDelay      time.Duration `env:"RETRY_DELAY,default=50ms"`

	QueueSize            int           `env:"QUEUE_SIZE,default=1024" validate:"min=1"`
	Overflow             string        `env:"QUEUE_OVERFLOW,default=drop-oldest" validate:"oneof=drop-oldest drop-newest"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s" validate:"gt=0"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=10s" validate:"gt=0"`
	LowCapacityThreshold int           `env:"LOW_CAPACITY_THRESHOLD,default=10" validate:"min=0,max=100"`
	KafkaBrokers         string        `env:"KAFKA_BROKERS"`
	KafkaTopic           string        `env:"KAFKA_TOPIC,default=budget-account-changes"`
}

// NodeConfig configures a grid node.
type NodeConfig struct {
	LogLevel          string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	Host              string        `env:"HOST,default=0.0.0.0"`
	Port              int           `env:"GRID_PORT,default=5701" validate:"min=1,max=65535"`
	PublicAddress     string        `env:"GRID_PUBLIC_ADDRESS"`
	Peers             string        `env:"GRID_PEERS"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,default=./data/grid"`
	InMemory          bool          `env:"BADGER_IN_MEMORY,default=false"`
	GroupName         string        `env:"GRID_GROUP_NAME,default=dev" validate:"required"`
	GroupPassword     string        `env:"GRID_GROUP_PASSWORD,default=dev-pass"`
	GroupPasswordHash string        `env:"GRID_GROUP_PASSWORD_HASH"`
	LeaseTTL          time.Duration `env:"LEASE_TTL,default=30s" validate:"gt=0"`
	EvictionMaxIdle   time.Duration `env:"EVICTION_MAX_IDLE,default=0s"`
	EvictionInterval  time.Duration `env:"EVICTION_INTERVAL,default=1m" validate:"gt=0"`
	StatsInterval     time.Duration `env:"STATS_INTERVAL,default=10s" validate:"gt=0"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	TelemetryBuffer   int           `env:"TELEMETRY_BUFFER,default=64" validate:"min=1"`
	DebugPort         int           `env:"DEBUG_PORT,default=0" validate:"min=0,max=65535"`
}

// LoadClientConfig reads the environment, after an optional .env file.
func LoadClientConfig() (ClientConfig, error) {
	var config ClientConfig
	if err := load(&config); err != nil {
		return ClientConfig{}, err
	}
	return config, nil
}

func LoadNodeConfig() (NodeConfig, error) {
	var config NodeConfig
	if err := load(&config); err != nil {
		return NodeConfig{}, err
	}
	if config.GroupPassword == "" && config.GroupPasswordHash == "" {
		return NodeConfig{}, fmt.Errorf("%w: GRID_GROUP_PASSWORD or GRID_GROUP_PASSWORD_HASH is required", errors.ErrInvalidArgument)
	}
	return config, nil
}

func load(config any) error {
	_ = godotenv.Load()
	if _, err := env.UnmarshalFromEnviron(config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidArgument, err)
	}
	return nil
}

// MemberList splits GRID_MEMBERS.
func (c ClientConfig) MemberList() []string {
	return SplitList(c.Members)
}

func (c ClientConfig) KafkaBrokerList() []string {
	return SplitList(c.KafkaBrokers)
}

func (c NodeConfig) PeerList() []string {
	return SplitList(c.Peers)
}

// Advertised is the address other members and clients use for this node.
// It defaults to the hostname, the way members are named in the grid.
func (c NodeConfig) Advertised() string {
	if c.PublicAddress != "" {
		return c.PublicAddress
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%s:%d", host, c.Port)
}

func (c NodeConfig) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SplitList splits a comma separated list, skipping blanks.
func SplitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
