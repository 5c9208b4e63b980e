package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"frameworks/almanac/pkg/config"
)

const defaultDialTimeout = 5 * time.Second

// Mode selects the Redis deployment topology.
type Mode string

const (
	ModeSingle   Mode = "single"
	ModeSentinel Mode = "sentinel"
	ModeCluster  Mode = "cluster"
)

// Config configures a topology-agnostic Redis connection.
type Config struct {
	Mode         Mode
	Addrs        []string // single: 1 addr, sentinel: sentinel addrs, cluster: seed nodes
	MasterName   string   // sentinel only
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LoadConfig reads REDIS_* variables. An empty Addrs means Redis is not
// configured.
func LoadConfig() Config {
	return Config{
		Mode:       Mode(strings.ToLower(config.GetEnv("REDIS_MODE", string(ModeSingle)))),
		Addrs:      config.GetEnvList("REDIS_ADDRS", nil),
		MasterName: config.GetEnv("REDIS_MASTER_NAME", ""),
		Username:   config.GetEnv("REDIS_USERNAME", ""),
		Password:   config.GetEnv("REDIS_PASSWORD", ""),
		DB:         config.GetEnvInt("REDIS_DB", 0),
	}
}

// Options converts Config into go-redis universal options. go-redis routes
// internally: MasterName set → Sentinel, multiple Addrs → Cluster, single
// Addr → standalone.
func (cfg Config) Options() (*goredis.UniversalOptions, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("at least one redis address is required")
	}
	switch cfg.Mode {
	case "", ModeSingle, ModeCluster:
	case ModeSentinel:
		if cfg.MasterName == "" {
			return nil, fmt.Errorf("redis sentinel mode requires a master name")
		}
	default:
		return nil, fmt.Errorf("unknown redis mode %q", cfg.Mode)
	}

	opts := &goredis.UniversalOptions{
		Addrs:        cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  orDefault(cfg.DialTimeout),
		ReadTimeout:  orDefault(cfg.ReadTimeout),
		WriteTimeout: orDefault(cfg.WriteTimeout),
	}
	if cfg.Mode == ModeSentinel {
		opts.MasterName = cfg.MasterName
	}
	return opts, nil
}

// NewUniversalClient creates a Redis client for the configured topology and
// verifies it with a ping.
func NewUniversalClient(ctx context.Context, cfg Config) (goredis.UniversalClient, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	client := goredis.NewUniversalClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Pinger adapts a go-redis client to a context-only Ping for health checks.
type Pinger struct {
	Client goredis.UniversalClient
}

func (p Pinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}

func orDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultDialTimeout
	}
	return d
}
