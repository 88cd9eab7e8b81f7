package ports

import (
	"github.com/xtrade-network/xtrade-daemon/internal/core/domain"
)

// Exchange is the handle of an in-flight request/response round-trip.
// Cancel aborts the exchange; it is safe to call concurrently with the
// delivery of the response and after the exchange terminated.
type Exchange interface {
	Cancel()
}

// MessageService is the peer-to-peer transport used for the offer
// availability round-trip. The response or the failure is delivered
// asynchronously, at most once, on the transport's goroutine. Retry and
// backoff are the transport's own business: this core only learns about a
// delivered response or a terminal failure.
type MessageService interface {
	RequestOfferAvailability(
		offer *domain.Offer,
		onResponse func(peer domain.Peer, state domain.OfferState),
		onError func(error),
	) Exchange
}
