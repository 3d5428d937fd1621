package imageload

import (
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// newHTTPClient - blockPrivate 이면 실제 접속 IP를 검사해 내부망 접근 차단
// (DNS 재바인딩을 피하기 위해 dial 시점에 검사)
func newHTTPClient(timeout time.Duration, blockPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	if blockPrivate {
		dialer.Control = func(network, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			ip := net.ParseIP(host)
			if ip == nil {
				return fmt.Errorf("unresolved address %q", address)
			}
			if isRestrictedIP(ip) {
				return fmt.Errorf("access to restricted network address %s is blocked", ip)
			}
			return nil
		}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

func isRestrictedIP(ip net.IP) bool {
	return ip.IsPrivate() ||
		ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
