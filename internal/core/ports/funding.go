package ports

import (
	"github.com/xtrade-network/xtrade-daemon/internal/core/domain"
)

// FundingService runs the place-offer sub-protocol: it constructs and
// broadcasts the offer's on-chain listing fee transaction and publishes the
// offer on the shared offer book. Exactly one of the continuations is
// invoked, asynchronously, with the broadcast transaction id on success.
type FundingService interface {
	PlaceOffer(offer *domain.Offer, onSuccess func(txId string), onError func(error))
}
