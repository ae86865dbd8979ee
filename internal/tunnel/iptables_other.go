//go:build !linux

package tunnel

import (
	"errors"

	"github.com/coreos/go-iptables/iptables"
)

// ErrUnsupportedPlatform is returned by SetupIPTables on non-Linux builds,
// where CleanupIPTables is a no-op: the ACCEPT-rule side effect is
// Linux-only per SPEC_FULL.md §6.
var ErrUnsupportedPlatform = errors.New("tunnel: iptables rules are only supported on linux")

func SetupIPTables(ifaceName string) (*iptables.IPTables, error) {
	return nil, ErrUnsupportedPlatform
}

func CleanupIPTables(ipt *iptables.IPTables, ifaceName string) error {
	return nil
}
