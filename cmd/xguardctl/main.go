// xguardctl 是 xguard 的运维命令行工具，直接操作 Redis 中的缓存条目、锁与 ID 计数器。
//
// 用法:
//
//	xguardctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config     配置文件（YAML/JSON，可选）
//	    --redis      Redis 地址，覆盖 redis.addr（环境变量 XGUARD_REDIS）
//	    --log-level  日志级别，覆盖 log.level
//
// 命令:
//
//	nextid <prefix>      生成 ID（--count N）
//	decode-id <id>       解析 ID 的时间戳与序号
//	inspect <key>        查看缓存条目：普通值 / 空值标记 / 逻辑过期信封 / 不存在
//	invalidate <key>...  删除缓存条目
//	lock <key>           尝试获取租约锁（--lease，--hold 保留不释放）
//	config               打印生效配置（--watch 持续监视配置文件）
//
// 退出码:
//
//	0: 成功
//	1: 执行失败（lock 命令: 锁被占用）
//	2: 参数错误
//
// 示例:
//
//	xguardctl nextid order --count 3
//	xguardctl -c /etc/xguard.yaml inspect cache:shop:42
//	xguardctl --redis 10.0.0.5:6379 lock job:daily --lease 30s
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

// 版本信息（可通过 -ldflags 注入）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run())
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "xguardctl",
		Usage:   "xguard 缓存与 ID 运维工具",
		Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（YAML/JSON）",
				Sources: cli.EnvVars("XGUARD_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "redis",
				Usage:   "Redis 地址，覆盖配置中的 redis.addr",
				Sources: cli.EnvVars("XGUARD_REDIS"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "日志级别 (debug/info/warn/error)",
			},
		},
		Commands:     createCommands(),
		OnUsageError: wrapUsageError,
		// 退出码统一由 run() 映射，不让 urfave/cli 直接 os.Exit。
		ExitErrHandler: func(_ context.Context, cmd *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(cmd.Root().ErrWriter, err)
			}
		},
	}
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return exitCode(createApp().Run(ctx, os.Args), os.Stderr)
}

// exitCode 把命令错误映射为退出码，并输出尚未输出的错误信息。
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(stderr, "参数错误: %v\n", usageErr)
		return 2
	}
	// 未知命令等框架错误已由 ExitErrHandler 输出。
	if _, ok := err.(cli.ExitCoder); ok {
		return 2
	}
	fmt.Fprintf(stderr, "错误: %v\n", err)
	return 1
}

// wrapUsageError 把 flag 解析错误标记为参数错误。
func wrapUsageError(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return &usageError{msg: err.Error()}
}
