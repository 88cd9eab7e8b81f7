package application_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xtrade-network/xtrade-daemon/internal/core/application"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	registry := application.NewProtocolRegistry()
	runner := newFakeRunner()

	err := registry.Register("T1", application.RoleBuyer, runner)
	require.NoError(t, err)

	got, ok := registry.Lookup("T1", application.RoleBuyer)
	require.True(t, ok)
	require.Equal(t, runner, got)

	_, ok = registry.Lookup("T1", application.RoleSeller)
	require.False(t, ok)

	got, role, ok := registry.LookupAny("T1")
	require.True(t, ok)
	require.Equal(t, application.RoleBuyer, role)
	require.Equal(t, runner, got)
}

func TestRegistryRejectsDuplicateId(t *testing.T) {
	registry := application.NewProtocolRegistry()

	require.NoError(t, registry.Register("T1", application.RoleBuyer, newFakeRunner()))

	// A second handle for the same id is refused whatever the role.
	err := registry.Register("T1", application.RoleBuyer, newFakeRunner())
	require.EqualError(t, err, application.ErrAlreadyRegistered.Error())

	err = registry.Register("T1", application.RoleSeller, newFakeRunner())
	require.EqualError(t, err, application.ErrAlreadyRegistered.Error())
}

func TestRegistryDeregister(t *testing.T) {
	registry := application.NewProtocolRegistry()
	runner := newFakeRunner()

	require.NoError(t, registry.Register("T1", application.RoleSeller, runner))

	registry.Deregister("T1")
	_, _, ok := registry.LookupAny("T1")
	require.False(t, ok)
	require.Equal(t, 1, runner.cleanupCount())

	// Idempotent, the handle is not cleaned up twice.
	registry.Deregister("T1")
	require.Equal(t, 1, runner.cleanupCount())

	// The id can be registered again, also in the other role.
	require.NoError(t, registry.Register("T1", application.RoleBuyer, newFakeRunner()))
}

func TestRegistryDeregisterUnknownIdIsNoop(t *testing.T) {
	registry := application.NewProtocolRegistry()
	registry.Deregister("unknown")
}
