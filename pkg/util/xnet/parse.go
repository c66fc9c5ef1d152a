package xnet

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"go4.org/netipx"
)

// ParseAddr 解析单个 IP 地址。
//
// 输入会去除首尾空白和方括号（"[::1]"），IPv4-mapped IPv6 地址还原为 IPv4，
// 以保证 "::ffff:1.2.3.4" 与 "1.2.3.4" 产生相同的限流 Key。
func ParseAddr(s string) (netip.Addr, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return addr.Unmap().WithZone(""), nil
}

// ParseHostAddr 解析 "host:port" 或裸 host 形式的连接地址。
func ParseHostAddr(s string) (netip.Addr, error) {
	s = strings.TrimSpace(s)
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.Addr().Unmap().WithZone(""), nil
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		return ParseAddr(host)
	}
	return ParseAddr(s)
}

// ParseRange 从字符串解析 IP 范围。支持 3 种格式：
//   - 单 IP: "192.168.1.1"
//   - CIDR: "192.168.1.0/24"
//   - 范围: "192.168.1.1-192.168.1.100"
//
// 拒绝包含 IPv6 zone 的输入，netipx 会静默丢弃 zone 导致匹配偏差。
func ParseRange(s string) (netipx.IPRange, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "%") {
		return netipx.IPRange{}, fmt.Errorf("%w: IPv6 zone ID is not supported: %s", ErrInvalidRange, s)
	}

	if start, end, ok := strings.Cut(s, "-"); ok {
		from, err := ParseAddr(start)
		if err != nil {
			return netipx.IPRange{}, fmt.Errorf("%w: invalid range start: %s", ErrInvalidRange, start)
		}
		to, err := ParseAddr(end)
		if err != nil {
			return netipx.IPRange{}, fmt.Errorf("%w: invalid range end: %s", ErrInvalidRange, end)
		}
		r := netipx.IPRangeFrom(from, to)
		if !r.IsValid() {
			return netipx.IPRange{}, fmt.Errorf("%w: %s", ErrInvalidRange, s)
		}
		return r, nil
	}

	if strings.Contains(s, "/") {
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			return netipx.IPRange{}, fmt.Errorf("%w: invalid CIDR: %w", ErrInvalidRange, err)
		}
		if prefix.Addr().Is4In6() && prefix.Bits() >= 96 {
			prefix = netip.PrefixFrom(prefix.Addr().Unmap(), prefix.Bits()-96)
		}
		return netipx.RangeOfPrefix(prefix.Masked()), nil
	}

	addr, err := ParseAddr(s)
	if err != nil {
		return netipx.IPRange{}, fmt.Errorf("%w: %w", ErrInvalidRange, err)
	}
	return netipx.IPRangeFrom(addr, addr), nil
}
