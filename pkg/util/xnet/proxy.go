package xnet

import (
	"fmt"
	"net/netip"

	"go4.org/netipx"
)

// ProxySet 可信代理集合，只读，并发安全
type ProxySet struct {
	set *netipx.IPSet
}

// NewProxySet 从单 IP / CIDR / 范围字符串构建可信代理集合。
// 空切片返回 nil，表示不信任任何代理（取 X-Forwarded-For 首个条目）。
func NewProxySet(entries []string) (*ProxySet, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	var b netipx.IPSetBuilder
	for _, e := range entries {
		r, err := ParseRange(e)
		if err != nil {
			return nil, fmt.Errorf("parse trusted proxy %q: %w", e, err)
		}
		b.AddRange(r)
	}
	set, err := b.IPSet()
	if err != nil {
		return nil, fmt.Errorf("build proxy set: %w", err)
	}
	return &ProxySet{set: set}, nil
}

// Contains 判断地址是否为可信代理。nil 集合不包含任何地址。
func (p *ProxySet) Contains(addr netip.Addr) bool {
	if p == nil || p.set == nil {
		return false
	}
	return p.set.Contains(addr.Unmap())
}

// Prefixes 返回集合的最小 CIDR 覆盖，用于启动日志
func (p *ProxySet) Prefixes() []netip.Prefix {
	if p == nil || p.set == nil {
		return nil
	}
	return p.set.Prefixes()
}
