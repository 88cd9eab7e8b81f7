package inmemory

import (
	"context"
	"sync"

	"github.com/xtrade-network/xtrade-daemon/internal/core/domain"
)

type tradeRepositoryImpl struct {
	locker    *sync.RWMutex
	snapshots map[domain.TradeCollection][]*domain.Trade
}

// NewTradeRepositoryImpl returns a new inmemory TradeRepository
// implementation.
func NewTradeRepositoryImpl() domain.TradeRepository {
	return &tradeRepositoryImpl{
		locker:    &sync.RWMutex{},
		snapshots: make(map[domain.TradeCollection][]*domain.Trade),
	}
}

func (r *tradeRepositoryImpl) GetTrades(
	_ context.Context, collection domain.TradeCollection,
) ([]*domain.Trade, error) {
	r.locker.RLock()
	defer r.locker.RUnlock()

	trades := make([]*domain.Trade, len(r.snapshots[collection]))
	copy(trades, r.snapshots[collection])
	return trades, nil
}

func (r *tradeRepositoryImpl) PutTrades(
	_ context.Context, collection domain.TradeCollection,
	trades []*domain.Trade,
) error {
	r.locker.Lock()
	defer r.locker.Unlock()

	snapshot := make([]*domain.Trade, len(trades))
	copy(snapshot, trades)
	r.snapshots[collection] = snapshot
	return nil
}
