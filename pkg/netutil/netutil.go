package netutil

import (
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

// maxProbeAttempts bounds the auto-switch scan above the requested port.
const maxProbeAttempts = 100

// Binding is the outcome of port resolution. The listener is the probed
// socket itself, so the port cannot be stolen between probe and serve.
type Binding struct {
	Listener net.Listener
	Port     int
	// Requested is set when auto-switching moved away from the port the
	// user asked for.
	Requested int
}

// Switched reports whether auto-switching picked a different port.
func (b Binding) Switched() bool {
	return b.Requested != 0 && b.Requested != b.Port
}

// Listen opens a listener on host:port. A failure other than
// address-in-use (for example a privileged port) is returned as-is.
func Listen(host string, port int) (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
}

// ResolvePort binds the requested port, auto-switching upwards through at
// most maxProbeAttempts candidates (never past 65534) when allowed. Port
// arithmetic happens in the int domain so the scan cannot overflow.
func ResolvePort(host string, requested int, allowSwitching bool) (Binding, error) {
	ln, err := Listen(host, requested)
	if err == nil {
		return Binding{Listener: ln, Port: requested}, nil
	}
	if !addrInUse(err) {
		return Binding{}, errors.Wrapf(err, "bind port %d", requested)
	}

	if !allowSwitching {
		return Binding{}, errors.Errorf(
			"port %d is already in use (auto-switching disabled by --no-port-switching)", requested)
	}

	limit := requested + maxProbeAttempts
	if limit > 65534 {
		limit = 65534
	}

	for candidate := requested + 1; candidate <= limit; candidate++ {
		ln, err := Listen(host, candidate)
		if err != nil {
			continue
		}
		return Binding{Listener: ln, Port: candidate, Requested: requested}, nil
	}

	return Binding{}, errors.Errorf(
		"port %d is occupied and no alternative found in %d-%d", requested, requested+1, limit)
}

func addrInUse(err error) bool {
	if errors.Is(err, syscall.EADDRINUSE) {
		return true
	}
	// Windows spells the condition differently.
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return strings.Contains(opErr.Err.Error(), "Only one usage of each socket address")
	}
	return false
}

// ExternalIPs enumerates non-loopback interface addresses. Used only for
// the "Network:" banner line; failures yield an empty slice.
func ExternalIPs() []net.IP {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var ips []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			ips = append(ips, ip)
		}
	}
	return ips
}

// FormatHostPort renders an address for display, bracketing IPv6.
func FormatHostPort(ip net.IP, port int) string {
	if ip.To4() == nil {
		return fmt.Sprintf("[%s]:%d", ip, port)
	}
	return fmt.Sprintf("%s:%d", ip, port)
}
