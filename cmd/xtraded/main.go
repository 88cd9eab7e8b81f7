package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/xtrade-network/xtrade-daemon/internal/config"
	"github.com/xtrade-network/xtrade-daemon/internal/core/domain"
	dbbadger "github.com/xtrade-network/xtrade-daemon/internal/infrastructure/storage/db/badger"
	"github.com/xtrade-network/xtrade-daemon/internal/infrastructure/storage/db/inmemory"
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Panic("invalid config")
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	var repo domain.TradeRepository
	switch config.GetString(config.DBTypeKey) {
	case config.DBInMemory:
		repo = inmemory.NewTradeRepositoryImpl()
	default:
		dbManager, err := dbbadger.NewDbManager(config.GetDbDir(), nil)
		if err != nil {
			log.WithError(err).Panic("error while opening database")
		}
		defer dbManager.Close()
		repo = dbbadger.NewTradeRepositoryImpl(dbManager)
	}

	log.Debug("starting daemon")

	ctx := context.Background()
	for _, collection := range []domain.TradeCollection{
		domain.OpenOfferTrades, domain.PendingTrades, domain.ClosedTrades,
	} {
		trades, err := repo.GetTrades(ctx, collection)
		if err != nil {
			log.WithError(err).Panicf("error while restoring %s", collection)
		}
		log.Infof("restored %d trades from %s", len(trades), collection)
	}

	// TODO: construct application.TradeManager here once the p2p transport,
	// mailbox, offer book and wallet funding services land, and call its
	// OnAllServicesInitialized after all of them are up.

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Debug("exiting")
}
