package conf

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net"
)

// DeriveHubID builds a stable 32-character hex identity from the first
// non-loopback hardware address found on the host, per spec.md §3. Returns
// an error only when no usable interface can be found at all.
func DeriveHubID() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("list network interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		sum := sha1.Sum(iface.HardwareAddr)
		return hex.EncodeToString(sum[:16]), nil
	}
	return "", fmt.Errorf("no network interface with a hardware address found")
}
