package ports

import (
	"github.com/xtrade-network/xtrade-daemon/internal/core/domain"
)

// OfferBookService is the shared offer listing. Removal is confirmed or
// refused asynchronously through the given continuations, invoked exactly
// once on the collaborator's own goroutine.
type OfferBookService interface {
	RemoveOffer(offer *domain.Offer, onSuccess func(), onError func(error))
}
