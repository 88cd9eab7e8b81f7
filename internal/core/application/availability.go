package application

import (
	"sync"

	"github.com/xtrade-network/xtrade-daemon/internal/core/domain"
	"github.com/xtrade-network/xtrade-daemon/internal/core/ports"
)

// offerChecker runs a single availability round-trip against the issuer of
// an offer. Whatever the outcome, the checker disposes itself exactly once
// before handing the result to the caller: it cancels the outstanding
// exchange and invokes onDisposed so the owner can drop its registration.
type offerChecker struct {
	offer      *domain.Offer
	messages   ports.MessageService
	onDisposed func()

	mtx      sync.Mutex
	exchange ports.Exchange
	dispose  sync.Once
	disposed bool
}

func newOfferChecker(
	offer *domain.Offer, messages ports.MessageService, onDisposed func(),
) *offerChecker {
	return &offerChecker{
		offer:      offer,
		messages:   messages,
		onDisposed: onDisposed,
	}
}

// check starts the round-trip. Exactly one of the continuations is invoked,
// after disposal, unless the checker is cancelled first.
func (c *offerChecker) check(
	onSuccess func(peer domain.Peer, state domain.OfferState),
	onFailure func(error),
) {
	exchange := c.messages.RequestOfferAvailability(
		c.offer,
		func(peer domain.Peer, state domain.OfferState) {
			c.disposeNow()
			if onSuccess != nil {
				onSuccess(peer, state)
			}
		},
		func(err error) {
			c.disposeNow()
			if onFailure != nil {
				onFailure(err)
			}
		},
	)

	c.mtx.Lock()
	c.exchange = exchange
	alreadyDisposed := c.disposed
	c.mtx.Unlock()

	// The response may have been delivered before the exchange handle was
	// recorded, in which case the cancel is issued here.
	if alreadyDisposed && exchange != nil {
		exchange.Cancel()
	}
}

// cancel disposes the checker without delivering any result. Safe to call
// concurrently with an in-flight response delivery and more than once.
func (c *offerChecker) cancel() {
	c.disposeNow()
}

func (c *offerChecker) disposeNow() {
	c.dispose.Do(func() {
		c.mtx.Lock()
		c.disposed = true
		exchange := c.exchange
		c.mtx.Unlock()

		if exchange != nil {
			exchange.Cancel()
		}
		if c.onDisposed != nil {
			c.onDisposed()
		}
	})
}
