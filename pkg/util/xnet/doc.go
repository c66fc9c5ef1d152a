// Package xnet 提供客户端 IP 解析相关的工具函数。
//
// 基于 [net/netip] 和 [go4.org/netipx] 构建：地址统一使用 [netip.Addr] 值类型，
// 代理白名单使用 [*netipx.IPSet]，查询为 O(log n)。
//
// # 核心功能
//
//   - parse.go: 单 IP / CIDR / 范围 解析，IPv4-mapped 地址统一还原为 IPv4
//   - proxy.go: [ProxySet] 可信代理集合
//   - client.go: 从 X-Forwarded-For 与连接地址推断客户端 IP
//
// # 快速示例
//
//	proxies, _ := xnet.NewProxySet([]string{"10.0.0.0/8"})
//	ip := xnet.ClientIP(r.Header.Get("X-Forwarded-For"), r.RemoteAddr, proxies)
//
// proxies 为 nil 时取 X-Forwarded-For 的第一个条目，与多数网关默认行为一致；
// 配置可信代理后，从右向左跳过可信跳，取第一个不可信地址，避免客户端伪造首个条目。
package xnet
