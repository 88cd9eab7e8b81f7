package application

import (
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/xtrade-network/xtrade-daemon/internal/core/ports"
)

// Role tags a protocol handle with the side of the trade it runs.
type Role int

const (
	RoleBuyer Role = iota
	RoleSeller
)

func (r Role) String() string {
	if r == RoleSeller {
		return "seller"
	}
	return "buyer"
}

type registration struct {
	role   Role
	runner ports.ProtocolRunner
}

// ProtocolRegistry maps trade ids to their running negotiation protocol
// handle. A trade id holds at most one live handle across both roles.
type ProtocolRegistry struct {
	mtx     sync.Mutex
	handles map[string]registration
}

func NewProtocolRegistry() *ProtocolRegistry {
	return &ProtocolRegistry{handles: make(map[string]registration)}
}

// Register stores the handle for the given trade id. It fails with
// ErrAlreadyRegistered if any handle, in whatever role, is already live for
// that id.
func (r *ProtocolRegistry) Register(
	tradeId string, role Role, runner ports.ProtocolRunner,
) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.handles[tradeId]; ok {
		return ErrAlreadyRegistered
	}
	r.handles[tradeId] = registration{role, runner}
	return nil
}

// Lookup returns the handle registered for the trade id in the given role.
func (r *ProtocolRegistry) Lookup(
	tradeId string, role Role,
) (ports.ProtocolRunner, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	reg, ok := r.handles[tradeId]
	if !ok || reg.role != role {
		return nil, false
	}
	return reg.runner, true
}

// LookupAny returns the handle registered for the trade id in whatever role.
func (r *ProtocolRegistry) LookupAny(
	tradeId string,
) (ports.ProtocolRunner, Role, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	reg, ok := r.handles[tradeId]
	if !ok {
		return nil, 0, false
	}
	return reg.runner, reg.role, true
}

// Deregister removes the handle for the trade id from whichever role holds
// it and releases its resources. It is a no-op if no handle is registered.
func (r *ProtocolRegistry) Deregister(tradeId string) {
	r.mtx.Lock()
	reg, ok := r.handles[tradeId]
	if ok {
		delete(r.handles, tradeId)
	}
	r.mtx.Unlock()

	if !ok {
		return
	}
	log.Debugf("deregistered %s protocol for trade %s", reg.role, tradeId)
	reg.runner.Cleanup()
}
