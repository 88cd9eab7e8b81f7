package domain

import "context"

// TradeCollection names one of the three persisted trade collections.
type TradeCollection string

const (
	OpenOfferTrades TradeCollection = "openOfferTrades"
	PendingTrades   TradeCollection = "pendingTrades"
	ClosedTrades    TradeCollection = "closedTrades"
)

// TradeRepository is the abstraction for any kind of database intended to
// persist the trade collections. Every write replaces the whole collection
// snapshot, there are no partial or append writes.
type TradeRepository interface {
	// GetTrades returns the last snapshot written for the given collection,
	// or an empty list if none was ever written.
	GetTrades(ctx context.Context, collection TradeCollection) ([]*Trade, error)
	// PutTrades replaces the snapshot of the given collection.
	PutTrades(ctx context.Context, collection TradeCollection, trades []*Trade) error
}
