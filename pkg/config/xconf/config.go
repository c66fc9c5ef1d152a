package xconf

import "github.com/knadh/koanf/v2"

// Format 配置文件格式
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Config 配置接口，基础操作请直接使用 Client() 返回的 koanf 实例
type Config interface {
	Client() *koanf.Koanf

	// Unmarshal path 为空时反序列化整个配置
	Unmarshal(path string, target any) error

	// Exists 判断键是否存在
	Exists(path string) bool

	// Reload 重新读取文件，并发安全。从字节创建的配置返回 ErrNotReloadable。
	Reload() error

	// Path 从字节创建时返回空字符串
	Path() string

	Format() Format
}

// Options 配置加载选项
type Options struct {
	// Delim 键分隔符，默认 "."
	Delim string
	// Tag 结构体标签名，默认 "koanf"
	Tag string
}

// Option 配置选项函数
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{Delim: ".", Tag: "koanf"}
}

// WithDelim 设置键分隔符
func WithDelim(delim string) Option {
	return func(o *Options) {
		if delim != "" {
			o.Delim = delim
		}
	}
}

// WithTag 设置结构体标签名
func WithTag(tag string) Option {
	return func(o *Options) {
		if tag != "" {
			o.Tag = tag
		}
	}
}
