package utils

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync/atomic"
)

// trustedProxies forwarding header'larına güvenilen peer aralıkları
var trustedProxies atomic.Pointer[[]netip.Prefix]

// SetTrustedProxies X-Forwarded-For/X-Real-IP header'larının kabul edileceği
// proxy'leri ayarlar. CIDR veya tek IP kabul edilir; boş liste header'ları yok sayar.
func SetTrustedProxies(entries []string) error {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return fmt.Errorf("geçersiz trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return fmt.Errorf("geçersiz trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	trustedProxies.Store(&prefixes)
	return nil
}

func isTrusted(addr netip.Addr) bool {
	prefixes := trustedProxies.Load()
	if prefixes == nil {
		return false
	}
	for _, p := range *prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// parseIP header veya RemoteAddr değerinden portsuz IP çıkarır
func parseIP(raw string) (netip.Addr, bool) {
	raw = strings.TrimSpace(raw)
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	addr, err := netip.ParseAddr(strings.Trim(raw, "[]"))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap().WithZone(""), true
}

// GetClientIP client IP'sini döner. Forwarding header'ları sadece bağlantının
// karşı ucu trusted proxy ise okunur; X-Forwarded-For sağdan sola yürünür ve
// ilk güvenilmeyen adres client kabul edilir.
func GetClientIP(r *http.Request) string {
	peer, ok := parseIP(r.RemoteAddr)
	if !ok {
		return r.RemoteAddr
	}
	if !isTrusted(peer) {
		return peer.String()
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			addr, ok := parseIP(hops[i])
			if !ok {
				// bozuk hop'tan öncesine güvenilmez
				break
			}
			if !isTrusted(addr) {
				return addr.String()
			}
		}
	}

	for _, header := range []string{"X-Real-IP", "CF-Connecting-IP"} {
		if addr, ok := parseIP(r.Header.Get(header)); ok {
			return addr.String()
		}
	}

	return peer.String()
}
