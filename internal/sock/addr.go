package sock

import (
	"fmt"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/searchktools/corehttp/internal/sysfd"
)

// AddrKind tags which variant an Addr holds.
type AddrKind uint8

const (
	KindIPv4 AddrKind = iota
	KindIPv6
	KindUnix
)

// maxUnixPathLinux and maxUnixPathBSD are the platform sun_path limits named
// in §3 ("Unix path ≤ platform limit (104 on BSD, 108 on Linux)").
const (
	maxUnixPathLinux = 108
	maxUnixPathBSD   = 104
)

// Addr is the tagged {IPv4, IPv6, Unix} socket address variant from §3.
type Addr struct {
	Kind  AddrKind
	IP    [16]byte // first 4 bytes significant for KindIPv4
	Port  int
	Zone  string // IPv6 scope/zone id
	Path  string // KindUnix
}

// ErrUnsupportedAddress is returned when an Addr cannot be encoded for the
// local platform (e.g. a Unix path over the platform's sun_path limit).
var ErrUnsupportedAddress = fmt.Errorf("sock: unsupported address")

func (a Addr) String() string {
	switch a.Kind {
	case KindIPv4:
		return fmt.Sprintf("%s:%d", sysfd.InetNtop(a.IP[:4]), a.Port)
	case KindIPv6:
		if a.Zone != "" {
			return fmt.Sprintf("[%s%%%s]:%d", sysfd.InetNtop(a.IP[:16]), a.Zone, a.Port)
		}
		return fmt.Sprintf("[%s]:%d", sysfd.InetNtop(a.IP[:16]), a.Port)
	case KindUnix:
		return "unix:" + a.Path
	default:
		return "<invalid addr>"
	}
}

func maxUnixPath() int {
	if isDarwinOrBSD {
		return maxUnixPathBSD
	}
	return maxUnixPathLinux
}

// toSockaddr validates and converts Addr to the golang.org/x/sys/unix
// Sockaddr used directly by the syscall shim.
func (a Addr) toSockaddr() (unix.Sockaddr, error) {
	switch a.Kind {
	case KindIPv4:
		if a.Port < 0 || a.Port > 0xffff {
			return nil, ErrUnsupportedAddress
		}
		return &unix.SockaddrInet4{Port: a.Port, Addr: [4]byte(a.IP[:4])}, nil
	case KindIPv6:
		if a.Port < 0 || a.Port > 0xffff {
			return nil, ErrUnsupportedAddress
		}
		return &unix.SockaddrInet6{Port: a.Port, Addr: [16]byte(a.IP), ZoneId: zoneID(a.Zone)}, nil
	case KindUnix:
		if len(a.Path) >= maxUnixPath() {
			return nil, ErrUnsupportedAddress
		}
		return &unix.SockaddrUnix{Name: a.Path}, nil
	default:
		return nil, ErrUnsupportedAddress
	}
}

func zoneID(zone string) uint32 {
	// Numeric zone ids are all this shim needs; symbolic interface names
	// would require an extra getifaddrs round trip the spec doesn't ask for.
	id, err := strconv.ParseUint(zone, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(id)
}

func fromSockaddr(sa unix.Sockaddr) (Addr, error) {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		a := Addr{Kind: KindIPv4, Port: v.Port}
		copy(a.IP[:4], v.Addr[:])
		return a, nil
	case *unix.SockaddrInet6:
		a := Addr{Kind: KindIPv6, Port: v.Port}
		copy(a.IP[:], v.Addr[:])
		return a, nil
	case *unix.SockaddrUnix:
		return Addr{Kind: KindUnix, Path: v.Name}, nil
	default:
		return Addr{}, ErrUnsupportedAddress
	}
}
