package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/omeyang/marketguard/pkg/config/xconf"
	"github.com/omeyang/marketguard/pkg/observability/xlog"
	"github.com/omeyang/marketguard/pkg/resilience/xlimit"
)

var errConfig = errors.New("invalid configuration")

// appConfig 网关自身配置，限流配置位于 ratelimit 节点，由 xlimit.LoadConfig 读取
type appConfig struct {
	Server    serverConfig    `koanf:"server"`
	Log       logConfig       `koanf:"log"`
	Telemetry telemetryConfig `koanf:"telemetry"`
}

type serverConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
}

type logConfig struct {
	Level    string            `koanf:"level"`
	Format   string            `koanf:"format"`
	File     string            `koanf:"file"`
	Rotation xlog.FileRotation `koanf:"rotation"`
}

type telemetryConfig struct {
	// OTLPEndpoint OTLP/gRPC 追踪导出地址，为空时不导出
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	Insecure     bool   `koanf:"insecure"`
	ServiceName  string `koanf:"service_name"`
}

func defaultAppConfig() appConfig {
	return appConfig{
		Server: serverConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
			ReadTimeout:     10 * time.Second,
		},
		Log:       logConfig{Level: "info", Format: "json"},
		Telemetry: telemetryConfig{ServiceName: "marketguard"},
	}
}

// loadedConfig 一次加载的完整配置
type loadedConfig struct {
	source xconf.Config
	app    appConfig
	limit  xlimit.Config
}

func loadConfig(path string) (*loadedConfig, error) {
	src, err := xconf.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}
	app := defaultAppConfig()
	for _, section := range []struct {
		path   string
		target any
	}{
		{"server", &app.Server},
		{"log", &app.Log},
		{"telemetry", &app.Telemetry},
	} {
		if !src.Exists(section.path) {
			continue
		}
		if err := src.Unmarshal(section.path, section.target); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errConfig, section.path, err)
		}
	}
	limit, err := xlimit.LoadConfig(src, xlimit.DefaultConfigPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}
	return &loadedConfig{source: src, app: app, limit: limit}, nil
}

// loadEnvFiles 加载 --env-file 指定的文件，已存在的环境变量不会被覆盖
func loadEnvFiles(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	files := cmd.StringSlice("env-file")
	if len(files) == 0 {
		return ctx, nil
	}
	if err := godotenv.Load(files...); err != nil {
		return ctx, fmt.Errorf("%w: load env files: %w", errConfig, err)
	}
	return ctx, nil
}
