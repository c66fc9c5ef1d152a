package xlog

import (
	"log/slog"
	"time"
)

// 常用属性 Key
const (
	KeyError      = "error"
	KeyDuration   = "duration"
	KeyComponent  = "component"
	KeyOperation  = "operation"
	KeyRoute      = "route"
	KeyRateKey    = "rate_key"
	KeyClientIP   = "client_ip"
	KeyMethod     = "method"
	KeyPath       = "path"
	KeyStatusCode = "status_code"
)

// Err 创建错误属性，err 为 nil 时返回空属性（slog 会忽略）
//
//	if err != nil {
//	    logger.Error(ctx, "redis increment failed", xlog.Err(err))
//	}
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建耗时属性，输出如 "1.5ms"
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Component 标识日志来源组件
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Route 路由标识，如 "GET /products/{id}"
func Route(id string) slog.Attr {
	return slog.String(KeyRoute, id)
}

// RateKey 限流计数器 Key
func RateKey(key string) slog.Attr {
	return slog.String(KeyRateKey, key)
}

func ClientIP(ip string) slog.Attr {
	return slog.String(KeyClientIP, ip)
}

func Method(m string) slog.Attr {
	return slog.String(KeyMethod, m)
}

func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

func StatusCode(code int) slog.Attr {
	return slog.Int(KeyStatusCode, code)
}
