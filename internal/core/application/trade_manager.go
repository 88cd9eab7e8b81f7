package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/xtrade-network/xtrade-daemon/internal/core/domain"
	"github.com/xtrade-network/xtrade-daemon/internal/core/ports"
)

// TradeManager orchestrates the lifecycle of peer-to-peer trades: it places
// and withdraws offers, verifies offer availability, opens the role-specific
// negotiation runner for every trade, routes mailbox messages to the runner
// they belong to and checkpoints the three trade collections on every
// state-relevant mutation so an interrupted process can resume.
//
// Entry points mutating the collections must not be invoked concurrently by
// the same caller without external serialization; reactions delivered by
// collaborators on their own goroutines are serialized internally.
type TradeManager struct {
	identity domain.Identity
	settings domain.AccountSettings

	repo      domain.TradeRepository
	offerBook ports.OfferBookService
	mailbox   ports.MailboxService
	cipher    ports.Cipher
	messages  ports.MessageService
	funding   ports.FundingService
	runners   ports.RunnerFactory

	registry *ProtocolRegistry

	mtx             sync.Mutex
	openOfferTrades []*domain.Trade
	pendingTrades   []*domain.Trade
	closedTrades    []*domain.Trade
	checkers        map[string]*offerChecker
	mailboxBuf      map[string]ports.TradeMessage
	onChange        []func()
}

// NewTradeManager returns a manager with the three trade collections
// restored from the repository. Runners for unfinished trades are not
// recreated until OnAllServicesInitialized is called.
func NewTradeManager(
	identity domain.Identity,
	settings domain.AccountSettings,
	repo domain.TradeRepository,
	offerBook ports.OfferBookService,
	mailbox ports.MailboxService,
	cipher ports.Cipher,
	messages ports.MessageService,
	funding ports.FundingService,
	runners ports.RunnerFactory,
) (*TradeManager, error) {
	if repo == nil {
		return nil, fmt.Errorf("missing trade repository")
	}
	if offerBook == nil {
		return nil, fmt.Errorf("missing offer book service")
	}
	if mailbox == nil {
		return nil, fmt.Errorf("missing mailbox service")
	}
	if cipher == nil {
		return nil, fmt.Errorf("missing cipher")
	}
	if messages == nil {
		return nil, fmt.Errorf("missing message service")
	}
	if funding == nil {
		return nil, fmt.Errorf("missing funding service")
	}
	if runners == nil {
		return nil, fmt.Errorf("missing runner factory")
	}

	m := &TradeManager{
		identity:   identity,
		settings:   settings,
		repo:       repo,
		offerBook:  offerBook,
		mailbox:    mailbox,
		cipher:     cipher,
		messages:   messages,
		funding:    funding,
		runners:    runners,
		registry:   NewProtocolRegistry(),
		checkers:   make(map[string]*offerChecker),
		mailboxBuf: make(map[string]ports.TradeMessage),
	}
	if err := m.restore(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *TradeManager) restore() error {
	ctx := context.Background()
	var err error
	if m.openOfferTrades, err = m.repo.GetTrades(ctx, domain.OpenOfferTrades); err != nil {
		return fmt.Errorf("restoring open offer trades: %w", err)
	}
	if m.pendingTrades, err = m.repo.GetTrades(ctx, domain.PendingTrades); err != nil {
		return fmt.Errorf("restoring pending trades: %w", err)
	}
	if m.closedTrades, err = m.repo.GetTrades(ctx, domain.ClosedTrades); err != nil {
		return fmt.Errorf("restoring closed trades: %w", err)
	}
	return nil
}

// OnAllServicesInitialized recreates the protocol runners for open offers
// and interrupted pending trades, then drains the remote mailbox.
func (m *TradeManager) OnAllServicesInitialized() {
	recreated := make([]ports.ProtocolRunner, 0)
	m.mtx.Lock()
	for _, trade := range m.openOfferTrades {
		if runner := m.createBuyerRunnerLocked(trade); runner != nil {
			recreated = append(recreated, runner)
		}
	}
	for _, trade := range m.pendingTrades {
		if trade.IsClosed() {
			log.Debugf("not recreating runner for terminated trade %s", trade.Id)
			continue
		}
		var runner ports.ProtocolRunner
		if m.IsMyOffer(trade.Offer) {
			runner = m.createBuyerRunnerLocked(trade)
		} else {
			runner = m.createSellerRunnerLocked(trade)
		}
		if runner != nil {
			recreated = append(recreated, runner)
		}
	}
	m.mtx.Unlock()

	for _, runner := range recreated {
		runner.Start()
	}

	m.mailbox.FetchAll(m.identity.SigPubKey, func(envelopes []ports.EncryptedEnvelope) {
		m.processMailbox(envelopes)
		m.purgeMailbox()
	})
}

// IsMyOffer returns whether the local identity issued the given offer.
func (m *TradeManager) IsMyOffer(offer *domain.Offer) bool {
	return offer.IsIssuedBy(m.identity.SigPubKey)
}

// PlaceOffer builds an offer from the caller's terms, the current payment
// account and the account settings, then runs the funding sub-protocol. On
// success the resulting trade is checkpointed into the open offer collection
// and its buyer runner is started before onSuccess is invoked with the fee
// transaction id. On failure no trade is created and no state is persisted.
func (m *TradeManager) PlaceOffer(
	id string, direction domain.Direction, price decimal.Decimal,
	amount, minAmount btcutil.Amount,
	onSuccess func(txId string), onError func(error),
) {
	offer, err := domain.NewOffer(
		id, direction, price, amount, minAmount,
		m.identity.SigPubKey, m.settings.CurrentAccount, m.settings,
	)
	if err != nil {
		if onError != nil {
			onError(err)
		}
		return
	}

	m.funding.PlaceOffer(
		offer,
		func(txId string) {
			m.mtx.Lock()
			trade := domain.NewTrade(offer, domain.LifecycleOpenOffer)
			m.openOfferTrades = append(m.openOfferTrades, trade)
			m.checkpointLocked(domain.OpenOfferTrades)
			runner := m.createBuyerRunnerLocked(trade)
			m.mtx.Unlock()
			m.notifyChanged()

			if runner != nil {
				runner.Start()
			}
			if onSuccess != nil {
				onSuccess(txId)
			}
		},
		func(err error) {
			if onError != nil {
				onError(err)
			}
		},
	)
}

// CancelOpenOffer withdraws the offer from the shared offer book and, on
// confirmation, moves its trade to the closed collection with lifecycle
// Canceled and tears down its buyer runner. If the listing removal fails no
// local state changes.
func (m *TradeManager) CancelOpenOffer(
	offer *domain.Offer, onSuccess func(), onError func(error),
) {
	m.removeOpenOffer(offer, onSuccess, onError, true)
}

// CheckOfferAvailability verifies that the offer is still open on the issuer
// side. A request for an offer already being checked is dropped: the
// in-flight checker is neither replaced nor queued behind.
func (m *TradeManager) CheckOfferAvailability(offer *domain.Offer) {
	checker, err := m.registerChecker(offer)
	if err != nil {
		log.Errorf(
			"availability check already called for offer %s, request dropped",
			offer.Id,
		)
		return
	}

	checker.check(
		func(peer domain.Peer, state domain.OfferState) {
			log.Debugf(
				"offer %s reported %s by peer %s", offer.Id, state, peer.Id,
			)
		},
		func(err error) {
			log.WithError(err).Warnf(
				"availability check for offer %s failed", offer.Id,
			)
		},
	)
}

// CancelCheckOfferAvailability disposes the in-flight availability check for
// the offer, if any. Used when the caller is no longer interested in the
// outcome.
func (m *TradeManager) CancelCheckOfferAvailability(offer *domain.Offer) {
	m.disposeChecker(offer.Id)
}

// OnOfferRemovedFromOfferBook reacts to the offer disappearing from the
// shared listing by disposing any in-flight availability check for it.
func (m *TradeManager) OnOfferRemovedFromOfferBook(offer *domain.Offer) {
	m.disposeChecker(offer.Id)
}

// RequestTakeOffer checks the offer's availability and, if the issuer
// reports it Available, creates the pending trade, starts its seller runner
// and hands the trade to onTrade. A non-available offer, a failed check or a
// check already in flight is surfaced through onError.
func (m *TradeManager) RequestTakeOffer(
	amount btcutil.Amount, offer *domain.Offer,
	onTrade func(*domain.Trade), onError func(error),
) {
	checker, err := m.registerChecker(offer)
	if err != nil {
		if onError != nil {
			onError(ErrCheckAlreadyInProgress)
		}
		return
	}

	checker.check(
		func(peer domain.Peer, state domain.OfferState) {
			if state != domain.OfferStateAvailable {
				log.Debugf(
					"offer %s not taken, reported state is %s", offer.Id, state,
				)
				if onError != nil {
					onError(ErrOfferNotAvailable)
				}
				return
			}
			trade := m.takeAvailableOffer(amount, offer, peer)
			if onTrade != nil {
				onTrade(trade)
			}
		},
		func(err error) {
			if onError != nil {
				onError(err)
			}
		},
	)
}

// OnFiatPaymentStarted forwards the buyer's fiat payment confirmation to the
// trade's buyer runner and checkpoints the pending collection.
func (m *TradeManager) OnFiatPaymentStarted(tradeId string) {
	runner, ok := m.registry.Lookup(tradeId, RoleBuyer)
	if !ok {
		log.Warnf("no buyer protocol for trade %s, fiat payment start dropped", tradeId)
		return
	}
	runner.OnFiatPaymentStarted()

	m.mtx.Lock()
	m.checkpointLocked(domain.PendingTrades)
	m.mtx.Unlock()
}

// OnFiatPaymentReceived forwards the seller's fiat receipt confirmation to
// the trade's seller runner. The resulting process state change triggers its
// own checkpoint.
func (m *TradeManager) OnFiatPaymentReceived(tradeId string) {
	runner, ok := m.registry.Lookup(tradeId, RoleSeller)
	if !ok {
		log.Warnf("no seller protocol for trade %s, fiat payment receipt dropped", tradeId)
		return
	}
	runner.OnFiatPaymentReceived()
}

// OnWithdrawAtTradeCompleted terminates a trade once its payout has been
// withdrawn: the trade moves from the pending to the closed collection with
// lifecycle Completed and its runner is deregistered.
func (m *TradeManager) OnWithdrawAtTradeCompleted(trade *domain.Trade) {
	m.mtx.Lock()
	trade.Lifecycle = domain.LifecycleCompleted
	m.removePendingTradeLocked(trade.Id)
	m.checkpointLocked(domain.PendingTrades)
	m.closedTrades = append(m.closedTrades, trade)
	m.checkpointLocked(domain.ClosedTrades)
	m.mtx.Unlock()
	m.notifyChanged()

	m.registry.Deregister(trade.Id)
}

// OpenOfferTrades returns a copy of the open offer collection.
func (m *TradeManager) OpenOfferTrades() []*domain.Trade {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return copyTrades(m.openOfferTrades)
}

// PendingTrades returns a copy of the pending collection.
func (m *TradeManager) PendingTrades() []*domain.Trade {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return copyTrades(m.pendingTrades)
}

// ClosedTrades returns a copy of the closed collection.
func (m *TradeManager) ClosedTrades() []*domain.Trade {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return copyTrades(m.closedTrades)
}

// OnCollectionsChanged subscribes the given callback to mutations of the
// trade collections. Callbacks run on the goroutine performing the mutation.
func (m *TradeManager) OnCollectionsChanged(fn func()) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.onChange = append(m.onChange, fn)
}

func (m *TradeManager) removeOpenOffer(
	offer *domain.Offer, onSuccess func(), onError func(error),
	isCancelRequest bool,
) {
	m.offerBook.RemoveOffer(
		offer,
		func() {
			m.mtx.Lock()
			offer.State = domain.OfferStateRemoved
			if trade, ok := m.removeOpenOfferTradeLocked(offer.Id); ok {
				m.checkpointLocked(domain.OpenOfferTrades)
				if isCancelRequest {
					trade.Lifecycle = domain.LifecycleCanceled
					m.closedTrades = append(m.closedTrades, trade)
					m.checkpointLocked(domain.ClosedTrades)
				}
			}
			m.mtx.Unlock()
			m.notifyChanged()

			m.disposeChecker(offer.Id)
			if isCancelRequest {
				if _, ok := m.registry.Lookup(offer.Id, RoleBuyer); ok {
					m.registry.Deregister(offer.Id)
				}
			}

			if onSuccess != nil {
				onSuccess()
			}
		},
		func(err error) {
			if onError != nil {
				onError(err)
			}
		},
	)
}

func (m *TradeManager) takeAvailableOffer(
	amount btcutil.Amount, offer *domain.Offer, peer domain.Peer,
) *domain.Trade {
	m.mtx.Lock()
	trade := domain.NewTrade(offer, domain.LifecyclePending)
	trade.Amount = amount
	trade.Peer = &peer
	m.pendingTrades = append(m.pendingTrades, trade)
	m.checkpointLocked(domain.PendingTrades)
	runner := m.createSellerRunnerLocked(trade)
	m.mtx.Unlock()
	m.notifyChanged()

	if runner != nil {
		runner.Start()
	}
	return trade
}

func (m *TradeManager) createBuyerRunnerLocked(trade *domain.Trade) ports.ProtocolRunner {
	runner := m.runners.NewBuyerRunner(trade)
	if err := m.registry.Register(trade.Id, RoleBuyer, runner); err != nil {
		log.WithError(err).Errorf("buyer protocol for trade %s not created", trade.Id)
		runner.Cleanup()
		return nil
	}
	go m.dispatchBuyerEvents(trade, runner)
	m.deliverBufferedLocked(trade.Id, runner)
	return runner
}

func (m *TradeManager) createSellerRunnerLocked(trade *domain.Trade) ports.ProtocolRunner {
	runner := m.runners.NewSellerRunner(trade)
	if err := m.registry.Register(trade.Id, RoleSeller, runner); err != nil {
		log.WithError(err).Errorf("seller protocol for trade %s not created", trade.Id)
		runner.Cleanup()
		return nil
	}
	go m.dispatchSellerEvents(trade, runner)
	m.deliverBufferedLocked(trade.Id, runner)
	return runner
}

func (m *TradeManager) dispatchBuyerEvents(
	trade *domain.Trade, runner ports.ProtocolRunner,
) {
	for event := range runner.Events() {
		m.onBuyerProcessState(trade, event.State)
	}
}

func (m *TradeManager) dispatchSellerEvents(
	trade *domain.Trade, runner ports.ProtocolRunner,
) {
	for event := range runner.Events() {
		m.onSellerProcessState(trade, event.State)
	}
}

func (m *TradeManager) onBuyerProcessState(
	trade *domain.Trade, state domain.ProcessState,
) {
	log.Debugf("trade %s process state: %s", trade.Id, state)

	terminal := false
	changed := true
	m.mtx.Lock()
	switch state {
	case domain.ProcessInit:
		trade.Process = state
		changed = false
	case domain.ProcessFeeTxCreated:
		trade.Process = state
		m.checkpointLocked(domain.PendingTrades)
	case domain.ProcessDepositPublished:
		trade.Process = state
		// The offer is consumed by the deposit, withdraw it from the shared
		// listing. A failed removal must not hold back the trade.
		m.offerBook.RemoveOffer(
			trade.Offer,
			func() { log.Debugf("offer %s removed from offer book", trade.Id) },
			func(err error) {
				log.WithError(err).Errorf("failed to remove offer %s from offer book", trade.Id)
			},
		)
		trade.Lifecycle = domain.LifecyclePending
		m.removeOpenOfferTradeLocked(trade.Id)
		m.pendingTrades = append(m.pendingTrades, trade)
		m.checkpointLocked(domain.OpenOfferTrades)
		m.checkpointLocked(domain.PendingTrades)
	case domain.ProcessDepositConfirmed,
		domain.ProcessFiatPaymentStarted,
		domain.ProcessFiatPaymentReceived,
		domain.ProcessPayoutPublished:
		trade.Process = state
		m.checkpointLocked(domain.PendingTrades)
	case domain.ProcessFeePublishFailed,
		domain.ProcessMessageSendFailed,
		domain.ProcessFault:
		trade.Process = state
		trade.Lifecycle = domain.LifecycleFailed
		terminal = true
	default:
		changed = false
		log.Warnf("unhandled process state for trade %s: %s", trade.Id, state)
	}
	m.mtx.Unlock()

	if terminal {
		m.registry.Deregister(trade.Id)
	}
	if changed {
		m.notifyChanged()
	}
}

func (m *TradeManager) onSellerProcessState(
	trade *domain.Trade, state domain.ProcessState,
) {
	log.Debugf("trade %s process state: %s", trade.Id, state)

	terminal := false
	changed := true
	m.mtx.Lock()
	switch state {
	case domain.ProcessInit:
		trade.Process = state
		changed = false
	case domain.ProcessFeeTxCreated,
		domain.ProcessDepositPublished,
		domain.ProcessDepositConfirmed,
		domain.ProcessFiatPaymentStarted,
		domain.ProcessFiatPaymentReceived,
		domain.ProcessPayoutPublished:
		trade.Process = state
		m.checkpointLocked(domain.PendingTrades)
	case domain.ProcessMessageSendFailed, domain.ProcessFault:
		trade.Process = state
		trade.Lifecycle = domain.LifecycleFailed
		terminal = true
	default:
		changed = false
		log.Warnf("unhandled process state for trade %s: %s", trade.Id, state)
	}
	m.mtx.Unlock()

	if terminal {
		m.registry.Deregister(trade.Id)
	}
	if changed {
		m.notifyChanged()
	}
}

func (m *TradeManager) registerChecker(offer *domain.Offer) (*offerChecker, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if _, ok := m.checkers[offer.Id]; ok {
		return nil, ErrCheckAlreadyInProgress
	}
	checker := newOfferChecker(offer, m.messages, func() {
		m.mtx.Lock()
		delete(m.checkers, offer.Id)
		m.mtx.Unlock()
	})
	m.checkers[offer.Id] = checker
	return checker, nil
}

// disposeChecker cancels and drops the checker registered for the offer id,
// if any. Disposal is at-most-once however many paths race to it.
func (m *TradeManager) disposeChecker(offerId string) {
	m.mtx.Lock()
	checker, ok := m.checkers[offerId]
	m.mtx.Unlock()

	if ok {
		checker.cancel()
	}
}

func (m *TradeManager) processMailbox(envelopes []ports.EncryptedEnvelope) {
	log.Debugf("processing %d mailbox envelopes", len(envelopes))
	for _, envelope := range envelopes {
		msg, err := m.cipher.Decrypt(m.identity.EncPrivKey, envelope)
		if err != nil {
			log.WithError(err).Warn("skipping undecryptable mailbox envelope")
			continue
		}
		if msg == nil || msg.TradeId == "" {
			continue
		}
		m.routeTradeMessage(*msg)
	}
}

// routeTradeMessage hands the message to the trade's runner if one is live,
// otherwise buffers it (replacing any earlier buffered message for the same
// trade) until a runner is created.
func (m *TradeManager) routeTradeMessage(msg ports.TradeMessage) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if runner, role, ok := m.registry.LookupAny(msg.TradeId); ok {
		log.Debugf("delivering mailbox message to %s protocol for trade %s", role, msg.TradeId)
		runner.FeedMailboxMessage(msg)
		return
	}
	m.mailboxBuf[msg.TradeId] = msg
	log.Debugf("buffered mailbox message for trade %s", msg.TradeId)
}

func (m *TradeManager) deliverBufferedLocked(
	tradeId string, runner ports.ProtocolRunner,
) {
	msg, ok := m.mailboxBuf[tradeId]
	if !ok {
		return
	}
	delete(m.mailboxBuf, tradeId)
	log.Debugf("delivering buffered mailbox message for trade %s", tradeId)
	runner.FeedMailboxMessage(msg)
}

func (m *TradeManager) purgeMailbox() {
	m.mailbox.PurgeAll(
		m.identity.SigPubKey,
		func() { log.Debug("all mailbox entries removed") },
		func(err error) {
			log.WithError(err).Warn("failed to purge remote mailbox")
		},
	)
}

func (m *TradeManager) removeOpenOfferTradeLocked(tradeId string) (*domain.Trade, bool) {
	for i, trade := range m.openOfferTrades {
		if trade.Id == tradeId {
			m.openOfferTrades = append(m.openOfferTrades[:i], m.openOfferTrades[i+1:]...)
			return trade, true
		}
	}
	return nil, false
}

func (m *TradeManager) removePendingTradeLocked(tradeId string) (*domain.Trade, bool) {
	for i, trade := range m.pendingTrades {
		if trade.Id == tradeId {
			m.pendingTrades = append(m.pendingTrades[:i], m.pendingTrades[i+1:]...)
			return trade, true
		}
	}
	return nil, false
}

func (m *TradeManager) checkpointLocked(collection domain.TradeCollection) {
	var trades []*domain.Trade
	switch collection {
	case domain.OpenOfferTrades:
		trades = m.openOfferTrades
	case domain.PendingTrades:
		trades = m.pendingTrades
	case domain.ClosedTrades:
		trades = m.closedTrades
	}
	if err := m.repo.PutTrades(context.Background(), collection, trades); err != nil {
		log.WithError(err).Errorf("failed to checkpoint %s", collection)
	}
}

func (m *TradeManager) notifyChanged() {
	m.mtx.Lock()
	subscribers := make([]func(), len(m.onChange))
	copy(subscribers, m.onChange)
	m.mtx.Unlock()

	for _, fn := range subscribers {
		fn()
	}
}

func copyTrades(trades []*domain.Trade) []*domain.Trade {
	list := make([]*domain.Trade, len(trades))
	copy(list, trades)
	return list
}
