package radio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterfaceSetMembership(t *testing.T) {
	assert.True(t, NoInterfaces.Empty())
	assert.False(t, NoInterfaces.Has(InterfaceStation))

	assert.True(t, StationOnly.Has(InterfaceStation))
	assert.False(t, StationOnly.Has(InterfaceAccessPoint))

	assert.True(t, AccessPointOnly.Has(InterfaceAccessPoint))
	assert.Equal(t, StationAndAccessPoint, SetOf(InterfaceAccessPoint, InterfaceStation))
	assert.False(t, StationAndAccessPoint.Has(Interface(7)))
}

func TestInterfaceStrings(t *testing.T) {
	assert.Equal(t, "none", NoInterfaces.String())
	assert.Equal(t, "sta+ap", StationAndAccessPoint.String())
	assert.Equal(t, "interface(9)", Interface(9).String())

	i, err := ParseInterface("AP")
	assert.NoError(t, err)
	assert.Equal(t, InterfaceAccessPoint, i)

	_, err = ParseInterface("mesh")
	assert.ErrorIs(t, err, ErrValidation)
}
