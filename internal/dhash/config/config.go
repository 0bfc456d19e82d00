package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/pkg/merkle"
	"github.com/anthanhphan/gosdk/conflux"
	"github.com/anthanhphan/gosdk/logger"
)

// Storage engines.
const (
	EngineLSM    = "lsm"
	EngineBadger = "badger"
	EngineRedis  = "redis"
	EngineMemory = "memory"
)

// Version clocks for versioned blocks.
const (
	ClockSystem = "system"
	ClockRedis  = "redis"
)

// Config holds replication node configuration
type Config struct {
	Server      ServerConfig      `json:"server" yaml:"server"`
	Gossip      GossipConfig      `json:"gossip" yaml:"gossip"`
	Replication ReplicationConfig `json:"replication" yaml:"replication"`
	Merkle      merkle.Shape      `json:"merkle" yaml:"merkle"`
	Storage     StorageConfig     `json:"storage" yaml:"storage"`
	Blocks      BlocksConfig      `json:"blocks" yaml:"blocks"`
	Redis       RedisConfig       `json:"redis" yaml:"redis"`
	Logger      logger.Config     `json:"logger" yaml:"logger"`
}

type ServerConfig struct {
	NodeID   string `json:"node_id" yaml:"node_id"`
	Hostname string `json:"hostname" yaml:"hostname"`
	// Port serves the peer replication RPCs.
	Port     int    `json:"port" yaml:"port"`
	HTTPAddr string `json:"http_addr" yaml:"http_addr"`
	// Position overrides the ring position derived from the node id. 16 hex digits.
	Position string `json:"position" yaml:"position"`
}

type GossipConfig struct {
	Port  int      `json:"port" yaml:"port"`
	Seeds []string `json:"seeds" yaml:"seeds"`
}

type ReplicationConfig struct {
	Replicas           int  `json:"replicas" yaml:"replicas"`
	IntervalMS         int  `json:"interval_ms" yaml:"interval_ms"`
	RandomizeFirstTick bool `json:"randomize_first_tick" yaml:"randomize_first_tick"`
	RefreshIntervalMS  int  `json:"refresh_interval_ms" yaml:"refresh_interval_ms"`
	Workers            int  `json:"workers" yaml:"workers"`
	RPCTimeoutMS       int  `json:"rpc_timeout_ms" yaml:"rpc_timeout_ms"`
	BreakerFailures    int  `json:"breaker_failures" yaml:"breaker_failures"`
	BreakerOpenMS      int  `json:"breaker_open_ms" yaml:"breaker_open_ms"`
}

func (r ReplicationConfig) Interval() time.Duration {
	return time.Duration(r.IntervalMS) * time.Millisecond
}

func (r ReplicationConfig) RefreshInterval() time.Duration {
	return time.Duration(r.RefreshIntervalMS) * time.Millisecond
}

func (r ReplicationConfig) RPCTimeout() time.Duration {
	return time.Duration(r.RPCTimeoutMS) * time.Millisecond
}

func (r ReplicationConfig) BreakerOpen() time.Duration {
	return time.Duration(r.BreakerOpenMS) * time.Millisecond
}

type StorageConfig struct {
	Engine              string `json:"engine" yaml:"engine"`
	DataDir             string `json:"data_dir" yaml:"data_dir"`
	FSync               bool   `json:"fsync" yaml:"fsync"`
	CompactionThreshold int    `json:"compaction_threshold" yaml:"compaction_threshold"`
	// RedisPrefix namespaces block keys when Engine is redis.
	RedisPrefix string `json:"redis_prefix" yaml:"redis_prefix"`
}

type BlocksConfig struct {
	Kind         domain.Kind `json:"kind" yaml:"kind"`
	VersionClock string      `json:"version_clock" yaml:"version_clock"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Hostname: "127.0.0.1",
			Port:     8081,
			HTTPAddr: ":8091",
		},
		Gossip: GossipConfig{
			Port: 7946,
		},
		Replication: ReplicationConfig{
			Replicas:           3,
			IntervalMS:         60000,
			RandomizeFirstTick: true,
			RefreshIntervalMS:  30000,
			Workers:            4,
			RPCTimeoutMS:       5000,
			BreakerFailures:    3,
			BreakerOpenMS:      10000,
		},
		Merkle: merkle.DefaultShape,
		Storage: StorageConfig{
			Engine:              EngineLSM,
			DataDir:             "./data",
			CompactionThreshold: 4,
			RedisPrefix:         "dhash:block:",
		},
		Blocks: BlocksConfig{
			Kind:         domain.KindVersioned,
			VersionClock: ClockSystem,
		},
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
		},
		Logger: logger.Config{
			LogLevel:    logger.LevelInfo,
			LogEncoding: logger.EncodingJSON,
		},
	}
}

// Validate rejects settings the node cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive, got %d", c.Server.Port)
	}
	if c.Replication.Replicas < 1 {
		return fmt.Errorf("replication.replicas must be at least 1, got %d", c.Replication.Replicas)
	}
	if c.Replication.IntervalMS <= 0 || c.Replication.RefreshIntervalMS <= 0 {
		return fmt.Errorf("replication intervals must be positive")
	}
	if err := c.Merkle.Validate(); err != nil {
		return err
	}
	if _, err := domain.PolicyFor(c.Blocks.Kind); err != nil {
		return err
	}
	switch c.Storage.Engine {
	case EngineLSM, EngineBadger, EngineRedis, EngineMemory:
	default:
		return fmt.Errorf("unknown storage engine %q", c.Storage.Engine)
	}
	switch c.Blocks.VersionClock {
	case ClockSystem, ClockRedis:
	default:
		return fmt.Errorf("unknown version clock %q", c.Blocks.VersionClock)
	}
	return nil
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	configPath := path
	if configPath == "" {
		env := os.Getenv("ENV")
		if env == "" {
			env = "local"
		}
		configPath = filepath.Join("internal", "dhash", "config", env+".yaml")
	}

	cfg := DefaultConfig()

	parsedCfg, err := conflux.ParseConfig(configPath, cfg)
	if err != nil {
		log.Printf("Config file not found or failed to parse, using defaults if file not specified. Path: %s, Error: %v", configPath, err)
		if path != "" {
			return nil, err
		}
		return cfg, nil
	}

	if err := parsedCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return parsedCfg, nil
}
