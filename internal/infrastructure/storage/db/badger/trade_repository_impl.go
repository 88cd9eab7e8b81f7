package dbbadger

import (
	"context"

	"github.com/timshannon/badgerhold/v4"
	"github.com/xtrade-network/xtrade-daemon/internal/core/domain"
)

// tradeSnapshot is the stored record: one whole collection per key.
type tradeSnapshot struct {
	Collection string
	Trades     []*domain.Trade
}

type tradeRepositoryImpl struct {
	db *DbManager
}

// NewTradeRepositoryImpl returns a badger TradeRepository implementation.
func NewTradeRepositoryImpl(db *DbManager) domain.TradeRepository {
	return tradeRepositoryImpl{db}
}

func (r tradeRepositoryImpl) GetTrades(
	ctx context.Context, collection domain.TradeCollection,
) ([]*domain.Trade, error) {
	var snapshot tradeSnapshot
	if err := r.db.Store.Get(string(collection), &snapshot); err != nil {
		if err == badgerhold.ErrNotFound {
			return make([]*domain.Trade, 0), nil
		}
		return nil, err
	}
	return snapshot.Trades, nil
}

func (r tradeRepositoryImpl) PutTrades(
	ctx context.Context, collection domain.TradeCollection,
	trades []*domain.Trade,
) error {
	snapshot := tradeSnapshot{
		Collection: string(collection),
		Trades:     trades,
	}
	return r.db.Store.Upsert(string(collection), snapshot)
}
