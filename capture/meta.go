package capture

import (
	"net"

	"github.com/pkg/errors"

	"github.com/netobserve/linkwatch/printer"
)

// Precision is the capture timestamp resolution requested of the adapter.
type Precision int

const (
	PrecisionMicrosecond Precision = iota
	PrecisionNanosecond
)

// InterfaceMeta is the immutable identity of a monitored interface: its
// name, own MAC, and own IP set. Built once at startup.
type InterfaceMeta struct {
	Name      string
	OwnMAC    net.HardwareAddr
	ownIPs    map[string]bool
	Precision Precision
}

// IsOwnIP reports whether ip belongs to this interface.
func (m InterfaceMeta) IsOwnIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	return m.ownIPs[ip.String()]
}

// NewStaticInterfaceMeta builds an InterfaceMeta from already-known values,
// bypassing the net.InterfaceByName lookup NewInterfaceMeta performs. Used
// by tests, and by any future caller that resolves interface addresses
// through a different path (e.g. a config-driven static address list).
func NewStaticInterfaceMeta(name string, mac net.HardwareAddr, ips []net.IP, precision Precision) InterfaceMeta {
	ownIPs := make(map[string]bool, len(ips))
	for _, ip := range ips {
		ownIPs[ip.String()] = true
	}
	return InterfaceMeta{Name: name, OwnMAC: mac, ownIPs: ownIPs, Precision: precision}
}

// NewInterfaceMeta resolves own MAC and IP addresses for a named interface.
func NewInterfaceMeta(interfaceName string, precision Precision) (InterfaceMeta, error) {
	iface, err := net.InterfaceByName(interfaceName)
	if err != nil {
		return InterfaceMeta{}, errors.Wrapf(err, "no network interface with name %s", interfaceName)
	}

	ownIPs := map[string]bool{}
	addrs, err := iface.Addrs()
	if err != nil {
		return InterfaceMeta{}, errors.Wrapf(err, "failed to get addresses on interface %s", iface.Name)
	}
	for _, addr := range addrs {
		switch a := addr.(type) {
		case *net.IPNet:
			ownIPs[a.IP.String()] = true
		case *net.IPAddr:
			ownIPs[a.IP.String()] = true
		default:
			printer.Warningf("Ignoring host address of unknown type on %s: %v\n", interfaceName, addr)
		}
	}

	return InterfaceMeta{
		Name:      interfaceName,
		OwnMAC:    iface.HardwareAddr,
		ownIPs:    ownIPs,
		Precision: precision,
	}, nil
}
