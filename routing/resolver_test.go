package routing

import (
	"testing"

	"github.com/opd-ai/nowlink/radio"
	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		peer   radio.Interface
		active radio.InterfaceSet
		want   Resolution
	}{
		{"sta on sta", radio.InterfaceStation, radio.StationOnly, Resolution{Outcome: OK}},
		{"ap on ap", radio.InterfaceAccessPoint, radio.AccessPointOnly, Resolution{Outcome: OK}},
		{"sta on both", radio.InterfaceStation, radio.StationAndAccessPoint, Resolution{Outcome: OK}},
		{"ap on both", radio.InterfaceAccessPoint, radio.StationAndAccessPoint, Resolution{Outcome: OK}},
		{"sta on ap", radio.InterfaceStation, radio.AccessPointOnly, Resolution{Outcome: NeedsReassign, Target: radio.InterfaceAccessPoint}},
		{"ap on sta", radio.InterfaceAccessPoint, radio.StationOnly, Resolution{Outcome: NeedsReassign, Target: radio.InterfaceStation}},
		{"sta on none", radio.InterfaceStation, radio.NoInterfaces, Resolution{Outcome: Unreachable}},
		{"ap on none", radio.InterfaceAccessPoint, radio.NoInterfaces, Resolution{Outcome: Unreachable}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.peer, tt.active)
			assert.Equal(t, tt.want, got)
			// Deterministic on repeat.
			assert.Equal(t, got, Resolve(tt.peer, tt.active))
		})
	}
}

func TestResolveActiveMembershipAlwaysOK(t *testing.T) {
	for set := radio.InterfaceSet(0); set <= radio.StationAndAccessPoint; set++ {
		for _, role := range radio.Interfaces {
			if set.Has(role) {
				assert.Equal(t, OK, Resolve(role, set).Outcome, "role %s set %s", role, set)
			}
		}
	}
}

func TestSelectInterfaceScanOrder(t *testing.T) {
	got, ok := SelectInterface(radio.StationAndAccessPoint)
	assert.True(t, ok)
	assert.Equal(t, radio.InterfaceStation, got)

	got, ok = SelectInterface(radio.AccessPointOnly)
	assert.True(t, ok)
	assert.Equal(t, radio.InterfaceAccessPoint, got)

	_, ok = SelectInterface(radio.NoInterfaces)
	assert.False(t, ok)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "needs_reassign", NeedsReassign.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
