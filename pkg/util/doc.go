// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xnet: 客户端 IP 解析与可信代理集合，基于 net/netip + go4.org/netipx
package util
