// marketguard 是市场管理平台的 API 网关进程，在各资源控制器前执行入站限流。
//
// 用法:
//
//	marketguard [全局选项] <命令>
//
// 全局选项:
//
//	-c, --config    配置文件路径 (默认: configs/marketguard.yaml，环境变量 MARKETGUARD_CONFIG)
//	    --env-file  启动前加载的 .env 文件（可重复）
//
// 命令:
//
//	serve          启动网关
//	check-config   校验配置并打印生效的限流策略表
//
// 退出码:
//
//	0: 正常退出（收到 SIGINT/SIGTERM 后优雅关闭也视为正常）
//	1: 运行失败
//	2: 配置错误
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

// 版本信息，通过 -ldflags "-X main.Version=..." 注入
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

const defaultConfigPath = "configs/marketguard.yaml"

func main() {
	os.Exit(run(context.Background(), os.Args))
}

func createApp() *cli.Command {
	return &cli.Command{
		Name:    "marketguard",
		Usage:   "marketplace API gateway with inbound rate limiting",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（.yaml/.yml/.json）",
				Value:   defaultConfigPath,
				Sources: cli.EnvVars("MARKETGUARD_CONFIG"),
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "启动前加载的 .env 文件",
			},
		},
		Before:   loadEnvFiles,
		Commands: []*cli.Command{serveCommand(), checkConfigCommand()},
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
	}
}

func run(ctx context.Context, args []string) int {
	if err := createApp().Run(ctx, args); err != nil {
		if errors.Is(err, errConfig) {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
			return 2
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
