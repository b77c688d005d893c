package connectivity

import (
	"context"
	"fmt"
	"net"
)

// HostDriver treats the host's network interfaces as the link. The link is up
// when any non-loopback interface is up and has an address. Interfaces are
// reported by Scan as access points named after the interface.
type HostDriver struct{}

func (HostDriver) Connected() bool {
	ifaces, err := usableInterfaces()
	return err == nil && len(ifaces) > 0
}

func (HostDriver) Scan(ctx context.Context) ([]AccessPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ifaces, err := usableInterfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	aps := make([]AccessPoint, 0, len(ifaces))
	for _, iface := range ifaces {
		aps = append(aps, AccessPoint{SSID: iface.Name, BSSID: iface.HardwareAddr.String()})
	}
	return aps, nil
}

func (HostDriver) Join(ctx context.Context, ap AccessPoint, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ifaces, err := usableInterfaces()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrJoinTimeout, err)
	}
	for _, iface := range ifaces {
		if iface.Name == ap.SSID {
			return nil
		}
	}
	return fmt.Errorf("%w: interface %s is down", ErrJoinTimeout, ap.SSID)
}

func usableInterfaces() ([]net.Interface, error) {
	all, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []net.Interface
	for _, iface := range all {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil || len(addrs) == 0 {
			continue
		}
		out = append(out, iface)
	}
	return out, nil
}
