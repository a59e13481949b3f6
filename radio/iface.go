package radio

import (
	"fmt"
	"strings"
)

// Interface is the radio interface role a peer is bound to.
type Interface uint8

const (
	// InterfaceStation is the station (client) role.
	InterfaceStation Interface = iota
	// InterfaceAccessPoint is the soft access point role.
	InterfaceAccessPoint

	interfaceCount
)

// Interfaces lists every role in scan order, station first.
var Interfaces = [interfaceCount]Interface{InterfaceStation, InterfaceAccessPoint}

// Valid reports whether i is one of the known roles.
func (i Interface) Valid() bool {
	return i < interfaceCount
}

func (i Interface) String() string {
	switch i {
	case InterfaceStation:
		return "sta"
	case InterfaceAccessPoint:
		return "ap"
	default:
		return fmt.Sprintf("interface(%d)", uint8(i))
	}
}

// ParseInterface accepts "sta"/"station" and "ap"/"accesspoint".
func ParseInterface(s string) (Interface, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sta", "station":
		return InterfaceStation, nil
	case "ap", "accesspoint", "access_point":
		return InterfaceAccessPoint, nil
	}
	return 0, fmt.Errorf("%w: unknown interface %q", ErrValidation, s)
}

// InterfaceSet is the set of roles currently enabled on the device. The bit
// layout matches the Wi-Fi mode encoding: bit 0 station, bit 1 access point.
type InterfaceSet uint8

const (
	// NoInterfaces means the radio is not active.
	NoInterfaces InterfaceSet = 0
	// StationOnly has only the station role enabled.
	StationOnly InterfaceSet = 1 << InterfaceStation
	// AccessPointOnly has only the access point role enabled.
	AccessPointOnly InterfaceSet = 1 << InterfaceAccessPoint
	// StationAndAccessPoint has both roles enabled.
	StationAndAccessPoint = StationOnly | AccessPointOnly
)

// SetOf builds an InterfaceSet from roles.
func SetOf(roles ...Interface) InterfaceSet {
	var s InterfaceSet
	for _, r := range roles {
		if r.Valid() {
			s |= 1 << r
		}
	}
	return s
}

// Has reports whether role i is enabled.
func (s InterfaceSet) Has(i Interface) bool {
	return i.Valid() && s&(1<<i) != 0
}

// Empty reports whether no role is enabled.
func (s InterfaceSet) Empty() bool {
	return s&StationAndAccessPoint == 0
}

func (s InterfaceSet) String() string {
	if s.Empty() {
		return "none"
	}
	var parts []string
	for _, r := range Interfaces {
		if s.Has(r) {
			parts = append(parts, r.String())
		}
	}
	return strings.Join(parts, "+")
}
