package capture

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
)

// Exclusive tracks which session holds each capture device.
type Exclusive struct {
	mu   sync.Mutex
	held map[string]uuid.UUID
}

func NewExclusive() *Exclusive {
	return &Exclusive{held: make(map[string]uuid.UUID)}
}

// Acquire grants deviceID to owner. A device held by another owner fails
// with domain.ErrDeviceBusy; re-acquiring by the same owner is also refused
// so every lease has exactly one Release.
func (x *Exclusive) Acquire(deviceID string, owner uuid.UUID) (*Lease, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if holder, ok := x.held[deviceID]; ok {
		return nil, domain.ErrDeviceBusy.WithError(fmt.Errorf("device %q held by session %s", deviceID, holder))
	}

	x.held[deviceID] = owner
	return &Lease{registry: x, deviceID: deviceID, owner: owner}, nil
}

// Holder returns the session currently holding deviceID.
func (x *Exclusive) Holder(deviceID string) (uuid.UUID, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	owner, ok := x.held[deviceID]
	return owner, ok
}

func (x *Exclusive) release(deviceID string, owner uuid.UUID) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.held[deviceID] == owner {
		delete(x.held, deviceID)
	}
}

// Lease is a scoped grant of one device. Release is idempotent.
type Lease struct {
	registry *Exclusive
	deviceID string
	owner    uuid.UUID
	once     sync.Once
}

func (l *Lease) DeviceID() string {
	return l.deviceID
}

func (l *Lease) Release() {
	l.once.Do(func() {
		l.registry.release(l.deviceID, l.owner)
	})
}
