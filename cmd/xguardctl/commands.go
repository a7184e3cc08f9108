package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xguard/pkg/config/xconf"
	"github.com/omeyang/xguard/pkg/distributed/xdlock"
	"github.com/omeyang/xguard/pkg/storage/xstore"
	"github.com/omeyang/xguard/pkg/util/xcodec"
	"github.com/omeyang/xguard/pkg/util/xid"
)

// defaultLease lock 命令的默认租约。
const defaultLease = 10 * time.Second

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		createNextIDCommand(),
		createDecodeIDCommand(),
		createInspectCommand(),
		createInvalidateCommand(),
		createLockCommand(),
		createConfigCommand(),
	}
}

func createNextIDCommand() *cli.Command {
	return &cli.Command{
		Name:      "nextid",
		Usage:     "生成 ID",
		ArgsUsage: "<prefix>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "生成数量",
				Value:   1,
			},
		},
		OnUsageError: wrapUsageError,
		Action:       withEnv(cmdNextID),
	}
}

func cmdNextID(ctx context.Context, cmd *cli.Command, e *env) error {
	prefix := cmd.Args().First()
	if prefix == "" {
		return usageErrorf("nextid: missing <prefix>")
	}
	count := cmd.Int("count")
	if count < 1 {
		return usageErrorf("nextid: --count must be >= 1, got %d", count)
	}

	gen, err := e.idGenerator(ctx)
	if err != nil {
		return err
	}
	for range count {
		id, err := gen.NextID(ctx, prefix)
		if err != nil {
			return fmt.Errorf("nextid %s: %w", prefix, err)
		}
		fmt.Fprintln(e.out, id)
	}
	return nil
}

func createDecodeIDCommand() *cli.Command {
	return &cli.Command{
		Name:         "decode-id",
		Usage:        "解析 Redis 后端生成的 ID",
		ArgsUsage:    "<id>",
		OnUsageError: wrapUsageError,
		Action:       withEnv(cmdDecodeID),
	}
}

func cmdDecodeID(_ context.Context, cmd *cli.Command, e *env) error {
	raw := cmd.Args().First()
	if raw == "" {
		return usageErrorf("decode-id: missing <id>")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return usageErrorf("decode-id: invalid id %q", raw)
	}

	c := xid.Decompose(id, time.Unix(e.settings.IDGen.Epoch, 0))
	fmt.Fprintf(e.out, "id:        %d\n", c.ID)
	fmt.Fprintf(e.out, "timestamp: %d\n", c.Timestamp)
	fmt.Fprintf(e.out, "time:      %s\n", c.Time.UTC().Format(time.RFC3339))
	fmt.Fprintf(e.out, "sequence:  %d\n", c.Sequence)
	return nil
}

func createInspectCommand() *cli.Command {
	return &cli.Command{
		Name:         "inspect",
		Usage:        "查看缓存条目",
		ArgsUsage:    "<key>",
		OnUsageError: wrapUsageError,
		Action:       withEnv(cmdInspect),
	}
}

func cmdInspect(ctx context.Context, cmd *cli.Command, e *env) error {
	key := cmd.Args().First()
	if key == "" {
		return usageErrorf("inspect: missing <key>")
	}
	store, err := e.openStore(ctx)
	if err != nil {
		return err
	}

	val, err := store.Get(ctx, key)
	if errors.Is(err, xstore.ErrNotFound) {
		fmt.Fprintf(e.out, "%s: absent\n", key)
		return nil
	}
	if err != nil {
		return fmt.Errorf("inspect %s: %w", key, err)
	}

	ttl := "none"
	if d, err := e.redis.Client().PTTL(ctx, key).Result(); err == nil && d > 0 {
		ttl = d.Round(time.Millisecond).String()
	}

	data := []byte(val)
	switch {
	case val == "":
		fmt.Fprintf(e.out, "%s: null marker (ttl %s)\n", key, ttl)
	case xcodec.IsEnvelope(data):
		entry, err := xcodec.DecodeEnvelope(data)
		if err != nil {
			fmt.Fprintf(e.out, "%s: corrupt envelope: %v\n", key, err)
			return &exitError{code: 1}
		}
		state := "fresh"
		if entry.Expired(time.Now()) {
			state = "expired"
		}
		fmt.Fprintf(e.out, "%s: logical expire, %s at %s\n", key, state, entry.ExpireAt.UTC().Format(time.RFC3339Nano))
		fmt.Fprintln(e.out, xcodec.Pretty(entry.Payload))
	default:
		fmt.Fprintf(e.out, "%s: plain (ttl %s)\n", key, ttl)
		fmt.Fprintln(e.out, xcodec.Pretty(data))
	}
	return nil
}

func createInvalidateCommand() *cli.Command {
	return &cli.Command{
		Name:         "invalidate",
		Aliases:      []string{"del"},
		Usage:        "删除缓存条目",
		ArgsUsage:    "<key>...",
		OnUsageError: wrapUsageError,
		Action:       withEnv(cmdInvalidate),
	}
}

func cmdInvalidate(ctx context.Context, cmd *cli.Command, e *env) error {
	keys := cmd.Args().Slice()
	if len(keys) == 0 {
		return usageErrorf("invalidate: missing <key>")
	}
	store, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("invalidate: %w", err)
	}
	e.logger.Info("cache entries invalidated", "keys", keys)
	fmt.Fprintf(e.out, "invalidated %d key(s)\n", len(keys))
	return nil
}

func createLockCommand() *cli.Command {
	return &cli.Command{
		Name:      "lock",
		Usage:     "尝试获取租约锁",
		ArgsUsage: "<key>",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "lease",
				Usage: "租约时长",
				Value: defaultLease,
			},
			&cli.BoolFlag{
				Name:  "hold",
				Usage: "获取后不释放，等待租约自然过期",
			},
		},
		OnUsageError: wrapUsageError,
		Action:       withEnv(cmdLock),
	}
}

func cmdLock(ctx context.Context, cmd *cli.Command, e *env) error {
	key := cmd.Args().First()
	if key == "" {
		return usageErrorf("lock: missing <key>")
	}
	lease := cmd.Duration("lease")
	if lease <= 0 {
		return usageErrorf("lock: --lease must be positive")
	}
	store, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	locker, err := xdlock.NewStoreFactory(store)
	if err != nil {
		return err
	}
	defer func() { _ = locker.Close() }()

	h, err := locker.TryLock(ctx, key, xdlock.WithExpiry(lease))
	if err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}
	if h == nil {
		fmt.Fprintf(e.out, "%s: held by another owner\n", key)
		return &exitError{code: 1}
	}
	fmt.Fprintf(e.out, "%s: acquired token=%s lease=%s\n", h.Key(), h.Token(), lease)

	if cmd.Bool("hold") {
		return nil
	}
	if err := h.Unlock(ctx); err != nil {
		return fmt.Errorf("unlock %s: %w", h.Key(), err)
	}
	fmt.Fprintf(e.out, "%s: released\n", h.Key())
	return nil
}

func createConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "打印生效配置",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "监视配置文件，变更后重新打印（需要 --config）",
			},
		},
		OnUsageError: wrapUsageError,
		Action:       withEnv(cmdConfig),
	}
}

func cmdConfig(ctx context.Context, cmd *cli.Command, e *env) error {
	if err := printSettings(e, e.settings); err != nil {
		return err
	}
	if !cmd.Bool("watch") {
		return nil
	}

	path := cmd.String("config")
	if path == "" {
		return usageErrorf("config: --watch requires --config")
	}
	cfg, err := xconf.New(path)
	if err != nil {
		return err
	}
	w, err := xconf.Watch(cfg, func(c *xconf.Config, err error) {
		if err != nil {
			e.logger.Warn("config reload failed", "path", path, "error", err)
			return
		}
		s, err := c.Settings()
		if err == nil {
			applyOverrides(cmd, &s)
			err = s.Validate()
		}
		if err != nil {
			e.logger.Warn("config rejected", "path", path, "error", err)
			return
		}
		if err := printSettings(e, s); err != nil {
			e.logger.Warn("print config failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	e.logger.Info("watching config", "path", path)

	<-ctx.Done()
	return w.Stop()
}

func printSettings(e *env, s xconf.Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.out, string(data))
	return err
}
