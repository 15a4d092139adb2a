package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os/exec"
)

// Route is one entry of the kernel routing table as reported by the ip
// tool's JSON output.
type Route struct {
	Dst     string `json:"dst"`
	Gateway string `json:"gateway"`
	Dev     string `json:"dev"`
	PrefSrc string `json:"prefsrc"`
}

// PrimaryInterface returns the address and default gateway of the
// interface carrying the default route.
func PrimaryInterface(ctx context.Context) (addr, gateway string, err error) {
	out, err := exec.CommandContext(ctx, "ip", "-json", "route", "show", "default").Output()
	if err != nil {
		return "", "", fmt.Errorf("failed to read default route: %w", err)
	}

	var routes []Route
	if err := json.Unmarshal(out, &routes); err != nil {
		return "", "", fmt.Errorf("failed to parse route table: %w", err)
	}
	if len(routes) == 0 {
		return "", "", fmt.Errorf("no default route present")
	}
	route := routes[0]

	if route.PrefSrc != "" {
		return route.PrefSrc, route.Gateway, nil
	}

	// No preferred source on the route; fall back to the first IPv4
	// address on the route's device.
	iface, err := net.InterfaceByName(route.Dev)
	if err != nil {
		return "", "", fmt.Errorf("failed to look up interface %s: %w", route.Dev, err)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return "", "", fmt.Errorf("failed to list addresses on %s: %w", route.Dev, err)
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String(), route.Gateway, nil
		}
	}

	return "", "", fmt.Errorf("no IPv4 address on primary interface %s", route.Dev)
}
