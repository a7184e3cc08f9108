package xconf

import (
	"errors"
	"fmt"
	"time"

	"github.com/omeyang/xguard/pkg/util/xpool"
)

// Settings 是 xguard 的完整配置。
type Settings struct {
	Redis     RedisSettings     `koanf:"redis" json:"redis"`
	Cache     CacheSettings     `koanf:"cache" json:"cache"`
	Refresher RefresherSettings `koanf:"refresher" json:"refresher"`
	IDGen     IDGenSettings     `koanf:"idgen" json:"idgen"`
	Breaker   BreakerSettings   `koanf:"breaker" json:"breaker"`
	Log       LogSettings       `koanf:"log" json:"log"`
}

// RedisSettings Redis 连接配置。
type RedisSettings struct {
	Addr        string        `koanf:"addr" json:"addr"`
	Password    string        `koanf:"password" json:"-"`
	DB          int           `koanf:"db" json:"db"`
	DialTimeout time.Duration `koanf:"dial_timeout" json:"dial_timeout"`
}

// CacheSettings 缓存客户端配置。
type CacheSettings struct {
	NullTTL       time.Duration            `koanf:"null_ttl" json:"null_ttl"`
	LockLease     time.Duration            `koanf:"lock_lease" json:"lock_lease"`
	RetryInterval time.Duration            `koanf:"retry_interval" json:"retry_interval"`
	MaxRetries    int                      `koanf:"max_retries" json:"max_retries"`
	DefaultTTL    time.Duration            `koanf:"default_ttl" json:"default_ttl"`
	EntityTTLs    map[string]time.Duration `koanf:"entity_ttls" json:"entity_ttls,omitempty"`
}

// TTLFor 返回实体的 TTL，未单独配置时使用 DefaultTTL。
func (c CacheSettings) TTLFor(entity string) time.Duration {
	if d, ok := c.EntityTTLs[entity]; ok && d > 0 {
		return d
	}
	return c.DefaultTTL
}

// RefresherSettings 后台刷新池配置。
type RefresherSettings struct {
	CoreWorkers int           `koanf:"core_workers" json:"core_workers"`
	MaxWorkers  int           `koanf:"max_workers" json:"max_workers"`
	QueueSize   int           `koanf:"queue_size" json:"queue_size"`
	KeepAlive   time.Duration `koanf:"keep_alive" json:"keep_alive"`
	Overflow    string        `koanf:"overflow" json:"overflow"`
}

// IDGenSettings ID 生成器配置。Epoch 为 Unix 秒。
type IDGenSettings struct {
	Epoch     int64  `koanf:"epoch" json:"epoch"`
	KeyPrefix string `koanf:"key_prefix" json:"key_prefix"`
	Backend   string `koanf:"backend" json:"backend"`
}

// ID 生成器后端。
const (
	BackendRedis     = "redis"
	BackendSonyflake = "sonyflake"
)

// BreakerSettings 存储熔断配置。
type BreakerSettings struct {
	Enabled             bool          `koanf:"enabled" json:"enabled"`
	ConsecutiveFailures uint32        `koanf:"consecutive_failures" json:"consecutive_failures"`
	OpenTimeout         time.Duration `koanf:"open_timeout" json:"open_timeout"`
}

// LogSettings 日志配置。File 为空时输出到 stderr。
type LogSettings struct {
	Level      string `koanf:"level" json:"level"`
	Format     string `koanf:"format" json:"format"`
	File       string `koanf:"file" json:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups" json:"max_backups"`
}

// Default 返回全部默认值。
func Default() Settings {
	return Settings{
		Redis: RedisSettings{
			Addr:        "127.0.0.1:6379",
			DialTimeout: 5 * time.Second,
		},
		Cache: CacheSettings{
			NullTTL:       2 * time.Minute,
			LockLease:     10 * time.Second,
			RetryInterval: 50 * time.Millisecond,
			MaxRetries:    40,
			DefaultTTL:    30 * time.Minute,
		},
		Refresher: RefresherSettings{
			CoreWorkers: 2,
			MaxWorkers:  5,
			QueueSize:   3,
			KeepAlive:   3 * time.Second,
			Overflow:    "drop_oldest",
		},
		IDGen: IDGenSettings{
			Epoch:     1684615337,
			KeyPrefix: "icr:",
			Backend:   BackendRedis,
		},
		Breaker: BreakerSettings{
			ConsecutiveFailures: 5,
			OpenTimeout:         30 * time.Second,
		},
		Log: LogSettings{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// Settings 在默认值之上应用配置内容并校验。
func (c *Config) Settings() (Settings, error) {
	s := Default()
	if err := c.Unmarshal("", &s); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadSettings 读取配置文件，path 为空时返回默认值。
func LoadSettings(path string) (Settings, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := New(path)
	if err != nil {
		return Settings{}, err
	}
	return cfg.Settings()
}

// Validate 校验配置，返回所有问题。
func (s Settings) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidSettings}, args...)...))
		}
	}

	check(s.Redis.Addr != "", "redis.addr is empty")
	check(s.Cache.NullTTL > 0, "cache.null_ttl must be positive, got %s", s.Cache.NullTTL)
	check(s.Cache.LockLease > 0, "cache.lock_lease must be positive, got %s", s.Cache.LockLease)
	check(s.Cache.RetryInterval >= 0, "cache.retry_interval must be non-negative")
	check(s.Cache.MaxRetries >= 0, "cache.max_retries must be non-negative")
	check(s.Refresher.CoreWorkers > 0, "refresher.core_workers must be positive")
	check(s.Refresher.MaxWorkers >= s.Refresher.CoreWorkers, "refresher.max_workers must be >= core_workers")
	check(s.Refresher.QueueSize > 0, "refresher.queue_size must be positive")
	_, ok := xpool.ParseOverflowPolicy(s.Refresher.Overflow)
	check(ok, "refresher.overflow %q is not one of drop_oldest, drop_newest, reject", s.Refresher.Overflow)
	check(s.IDGen.Backend == BackendRedis || s.IDGen.Backend == BackendSonyflake,
		"idgen.backend %q is not redis or sonyflake", s.IDGen.Backend)
	check(s.IDGen.Epoch > 0, "idgen.epoch must be positive")
	if s.Breaker.Enabled {
		check(s.Breaker.ConsecutiveFailures > 0, "breaker.consecutive_failures must be positive")
		check(s.Breaker.OpenTimeout > 0, "breaker.open_timeout must be positive")
	}
	return errors.Join(errs...)
}
