package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/omeyang/xguard/pkg/config/xconf"
	"github.com/omeyang/xguard/pkg/storage/xstore"
	"github.com/omeyang/xguard/pkg/util/xid"
)

// exitError 表示命令已完成输出，只需设置退出码。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// usageError 表示命令参数错误，退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// env 是一次命令执行所需的依赖，由全局选项与配置文件组装。
type env struct {
	settings xconf.Settings
	logger   *slog.Logger
	out      io.Writer

	logFile io.Closer
	redis   *xstore.Redis
	store   xstore.Store
}

// loadSettings 读取配置文件并应用命令行覆盖。
func loadSettings(cmd *cli.Command) (xconf.Settings, error) {
	s, err := xconf.LoadSettings(cmd.String("config"))
	if err != nil {
		return xconf.Settings{}, err
	}
	applyOverrides(cmd, &s)
	return s, s.Validate()
}

func applyOverrides(cmd *cli.Command, s *xconf.Settings) {
	if addr := cmd.String("redis"); addr != "" {
		s.Redis.Addr = addr
	}
	if level := cmd.String("log-level"); level != "" {
		s.Log.Level = level
	}
}

// newEnv 组装日志。Redis 连接延迟到 openStore。
func newEnv(cmd *cli.Command) (*env, error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	root := cmd.Root()
	logger, closer, err := newLogger(s.Log, root.ErrWriter)
	if err != nil {
		return nil, err
	}
	return &env{settings: s, logger: logger, logFile: closer, out: root.Writer}, nil
}

// newLogger 按配置构建 slog.Logger，file 非空时写入可轮转的日志文件。
func newLogger(cfg xconf.LogSettings, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, usageErrorf("invalid log level %q", cfg.Level)
	}

	w := stderr
	var closer io.Closer
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		w, closer = lj, lj
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	default:
		if closer != nil {
			_ = closer.Close()
		}
		return nil, nil, usageErrorf("invalid log format %q", cfg.Format)
	}
	return slog.New(h), closer, nil
}

// openStore 连接 Redis，breaker.enabled 时套上熔断。
func (e *env) openStore(ctx context.Context) (xstore.Store, error) {
	if e.store != nil {
		return e.store, nil
	}
	rc := e.settings.Redis
	client := redis.NewClient(&redis.Options{
		Addr:        rc.Addr,
		Password:    rc.Password,
		DB:          rc.DB,
		DialTimeout: rc.DialTimeout,
	})
	r, err := xstore.NewRedis(client)
	if err != nil {
		return nil, errors.Join(err, client.Close())
	}
	if err := r.Health(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("connect redis %s: %w", rc.Addr, err), r.Close())
	}
	e.redis = r
	e.store = r
	e.logger.Debug("redis connected", slog.String("addr", rc.Addr), slog.Int("db", rc.DB))

	if bc := e.settings.Breaker; bc.Enabled {
		b, err := xstore.NewBreaker(r,
			xstore.WithBreakerName("xguardctl"),
			xstore.WithConsecutiveFailures(bc.ConsecutiveFailures),
			xstore.WithOpenTimeout(bc.OpenTimeout),
			xstore.WithBreakerLogger(e.logger),
		)
		if err != nil {
			return nil, err
		}
		e.store = b
	}
	return e.store, nil
}

// idGenerator 按 idgen.backend 创建 ID 生成器。
func (e *env) idGenerator(ctx context.Context) (xid.IDGenerator, error) {
	cfg := e.settings.IDGen
	epoch := time.Unix(cfg.Epoch, 0)
	switch cfg.Backend {
	case xconf.BackendSonyflake:
		return xid.NewSonyflake(xid.WithStartTime(epoch))
	default:
		store, err := e.openStore(ctx)
		if err != nil {
			return nil, err
		}
		return xid.NewGenerator(store, xid.WithEpoch(epoch), xid.WithKeyPrefix(cfg.KeyPrefix))
	}
}

func (e *env) Close() error {
	var errs []error
	if e.redis != nil {
		errs = append(errs, e.redis.Close())
	}
	if e.logFile != nil {
		errs = append(errs, e.logFile.Close())
	}
	return errors.Join(errs...)
}

// withEnv 包装需要 env 的命令。
func withEnv(fn func(ctx context.Context, cmd *cli.Command, e *env) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) (err error) {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, e.Close()) }()
		return fn(ctx, cmd, e)
	}
}
