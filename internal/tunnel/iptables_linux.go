//go:build linux

package tunnel

import (
	"fmt"

	"github.com/coreos/go-iptables/iptables"
)

// SetupIPTables appends the two ACCEPT rules this system installs at
// startup so overlay traffic is not dropped by a default-deny filter
// table: inbound packets on the tunnel interface, and forwarded packets
// that both enter and leave the tunnel interface (VPN-to-VPN routing).
func SetupIPTables(ifaceName string) (*iptables.IPTables, error) {
	ipt, err := iptables.New()
	if err != nil {
		return nil, fmt.Errorf("tunnel: opening iptables: %w", err)
	}
	if err := ipt.AppendUnique("filter", "INPUT", "-i", ifaceName, "-j", "ACCEPT"); err != nil {
		return nil, fmt.Errorf("tunnel: appending INPUT accept rule: %w", err)
	}
	if err := ipt.AppendUnique("filter", "FORWARD", "-i", ifaceName, "-o", ifaceName, "-j", "ACCEPT"); err != nil {
		return nil, fmt.Errorf("tunnel: appending FORWARD accept rule: %w", err)
	}
	return ipt, nil
}

// CleanupIPTables removes the rules SetupIPTables installed. Failures are
// best-effort: shutdown I/O errors are logged by the caller but must not
// block process exit.
func CleanupIPTables(ipt *iptables.IPTables, ifaceName string) error {
	if ipt == nil {
		return nil
	}
	var firstErr error
	if err := ipt.Delete("filter", "INPUT", "-i", ifaceName, "-j", "ACCEPT"); err != nil {
		firstErr = fmt.Errorf("tunnel: removing INPUT accept rule: %w", err)
	}
	if err := ipt.Delete("filter", "FORWARD", "-i", ifaceName, "-o", ifaceName, "-j", "ACCEPT"); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("tunnel: removing FORWARD accept rule: %w", err)
	}
	return firstErr
}
