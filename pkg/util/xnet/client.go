package xnet

import (
	"net/netip"
	"strings"
)

// UnknownIP 无法识别客户端地址时使用的占位值
const UnknownIP = "0.0.0.0"

// ClientIP 推断客户端 IP，返回规范化的字符串形式。
//
// 优先级：
//  1. X-Forwarded-For（proxies 为 nil 时取第一个可解析条目；
//     否则把 remoteAddr 视为最近一跳，从右向左跳过可信代理）
//  2. remoteAddr 的 host 部分
//  3. [UnknownIP]
func ClientIP(forwardedFor, remoteAddr string, proxies *ProxySet) string {
	if addr, ok := clientAddr(forwardedFor, remoteAddr, proxies); ok {
		return addr.String()
	}
	return UnknownIP
}

func clientAddr(forwardedFor, remoteAddr string, proxies *ProxySet) (netip.Addr, bool) {
	peer, peerErr := ParseHostAddr(remoteAddr)

	if forwardedFor != "" {
		hops := strings.Split(forwardedFor, ",")
		if proxies == nil {
			for _, h := range hops {
				if addr, err := ParseAddr(h); err == nil {
					return addr, true
				}
			}
		} else if peerErr == nil && proxies.Contains(peer) {
			if addr, ok := rightmostUntrusted(hops, proxies); ok {
				return addr, true
			}
		}
	}

	if peerErr == nil {
		return peer, true
	}
	return netip.Addr{}, false
}

// rightmostUntrusted 从右向左查找第一个不在可信集合中的地址。
// 全部可信时返回最左侧的可解析地址。
func rightmostUntrusted(hops []string, proxies *ProxySet) (netip.Addr, bool) {
	var leftmost netip.Addr
	found := false
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := ParseAddr(hops[i])
		if err != nil {
			continue
		}
		if !proxies.Contains(addr) {
			return addr, true
		}
		leftmost, found = addr, true
	}
	return leftmost, found
}
