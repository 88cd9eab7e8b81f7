package application_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xtrade-network/xtrade-daemon/internal/core/domain"
	"github.com/xtrade-network/xtrade-daemon/internal/core/ports"
)

type fakeRunner struct {
	tradeId string
	events  chan ports.ProcessEvent

	mtx          sync.Mutex
	started      bool
	cleanups     int
	fed          []ports.TradeMessage
	fiatStarted  bool
	fiatReceived bool
	closeOnce    sync.Once
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{events: make(chan ports.ProcessEvent, 16)}
}

func (r *fakeRunner) Start() {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.started = true
}

func (r *fakeRunner) FeedMailboxMessage(msg ports.TradeMessage) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.fed = append(r.fed, msg)
}

func (r *fakeRunner) OnFiatPaymentStarted() {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.fiatStarted = true
}

func (r *fakeRunner) OnFiatPaymentReceived() {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.fiatReceived = true
}

func (r *fakeRunner) Events() <-chan ports.ProcessEvent {
	return r.events
}

func (r *fakeRunner) Cleanup() {
	r.mtx.Lock()
	r.cleanups++
	r.mtx.Unlock()
	r.closeOnce.Do(func() { close(r.events) })
}

func (r *fakeRunner) emit(state domain.ProcessState) {
	r.events <- ports.ProcessEvent{TradeId: r.tradeId, State: state}
}

func (r *fakeRunner) isStarted() bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.started
}

func (r *fakeRunner) cleanupCount() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.cleanups
}

func (r *fakeRunner) fedMessages() []ports.TradeMessage {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	msgs := make([]ports.TradeMessage, len(r.fed))
	copy(msgs, r.fed)
	return msgs
}

type fakeRunnerFactory struct {
	mtx     sync.Mutex
	buyers  map[string]*fakeRunner
	sellers map[string]*fakeRunner
}

func newFakeRunnerFactory() *fakeRunnerFactory {
	return &fakeRunnerFactory{
		buyers:  make(map[string]*fakeRunner),
		sellers: make(map[string]*fakeRunner),
	}
}

func (f *fakeRunnerFactory) NewBuyerRunner(trade *domain.Trade) ports.ProtocolRunner {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	runner := newFakeRunner()
	runner.tradeId = trade.Id
	f.buyers[trade.Id] = runner
	return runner
}

func (f *fakeRunnerFactory) NewSellerRunner(trade *domain.Trade) ports.ProtocolRunner {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	runner := newFakeRunner()
	runner.tradeId = trade.Id
	f.sellers[trade.Id] = runner
	return runner
}

func (f *fakeRunnerFactory) buyer(tradeId string) *fakeRunner {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.buyers[tradeId]
}

func (f *fakeRunnerFactory) seller(tradeId string) *fakeRunner {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.sellers[tradeId]
}

type fakeFunding struct {
	mtx  sync.Mutex
	txId string
	err  error
}

func (f *fakeFunding) PlaceOffer(
	_ *domain.Offer, onSuccess func(string), onError func(error),
) {
	f.mtx.Lock()
	txId, err := f.txId, f.err
	f.mtx.Unlock()

	if err != nil {
		onError(err)
		return
	}
	onSuccess(txId)
}

type fakeOfferBook struct {
	mtx     sync.Mutex
	err     error
	removed []string
}

func (f *fakeOfferBook) RemoveOffer(
	offer *domain.Offer, onSuccess func(), onError func(error),
) {
	f.mtx.Lock()
	if f.err != nil {
		err := f.err
		f.mtx.Unlock()
		onError(err)
		return
	}
	f.removed = append(f.removed, offer.Id)
	f.mtx.Unlock()
	onSuccess()
}

func (f *fakeOfferBook) removedOffers() []string {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	removed := make([]string, len(f.removed))
	copy(removed, f.removed)
	return removed
}

type fakeExchange struct {
	mtx        sync.Mutex
	cancelled  bool
	onResponse func(domain.Peer, domain.OfferState)
	onError    func(error)
}

func (e *fakeExchange) Cancel() {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.cancelled = true
}

func (e *fakeExchange) isCancelled() bool {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.cancelled
}

func (e *fakeExchange) respond(peer domain.Peer, state domain.OfferState) {
	e.onResponse(peer, state)
}

type fakeMessageService struct {
	mtx       sync.Mutex
	auto      bool
	peer      domain.Peer
	state     domain.OfferState
	err       error
	exchanges []*fakeExchange
}

func (f *fakeMessageService) RequestOfferAvailability(
	_ *domain.Offer,
	onResponse func(domain.Peer, domain.OfferState),
	onError func(error),
) ports.Exchange {
	f.mtx.Lock()
	exchange := &fakeExchange{onResponse: onResponse, onError: onError}
	f.exchanges = append(f.exchanges, exchange)
	auto, peer, state, err := f.auto, f.peer, f.state, f.err
	f.mtx.Unlock()

	if auto {
		if err != nil {
			onError(err)
		} else {
			onResponse(peer, state)
		}
	}
	return exchange
}

func (f *fakeMessageService) exchangeCount() int {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return len(f.exchanges)
}

func (f *fakeMessageService) lastExchange() *fakeExchange {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if len(f.exchanges) == 0 {
		return nil
	}
	return f.exchanges[len(f.exchanges)-1]
}

type fakeMailbox struct {
	mtx       sync.Mutex
	envelopes []ports.EncryptedEnvelope
	purges    int
	purgeErr  error
}

func (f *fakeMailbox) FetchAll(
	_ []byte, onMessages func([]ports.EncryptedEnvelope),
) {
	f.mtx.Lock()
	envelopes := f.envelopes
	f.mtx.Unlock()
	onMessages(envelopes)
}

func (f *fakeMailbox) PurgeAll(
	_ []byte, onSuccess func(), onError func(error),
) {
	f.mtx.Lock()
	f.purges++
	err := f.purgeErr
	f.mtx.Unlock()

	if err != nil {
		onError(err)
		return
	}
	onSuccess()
}

func (f *fakeMailbox) purgeCount() int {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.purges
}

// fakeCipher decrypts envelopes whose payload is a plain JSON encoding of a
// trade message and fails on anything else.
type fakeCipher struct{}

func (fakeCipher) Decrypt(
	_ []byte, envelope ports.EncryptedEnvelope,
) (*ports.TradeMessage, error) {
	var msg ports.TradeMessage
	if err := json.Unmarshal(envelope.Data, &msg); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}
	return &msg, nil
}

func sealedTradeMessage(tradeId string) ports.EncryptedEnvelope {
	data, _ := json.Marshal(ports.TradeMessage{
		TradeId: tradeId,
		Type:    "deposit",
		Payload: []byte("payload"),
	})
	return ports.EncryptedEnvelope{Data: data}
}

// recordingRepo wraps a TradeRepository counting snapshot writes per
// collection.
type recordingRepo struct {
	domain.TradeRepository

	mtx  sync.Mutex
	puts map[domain.TradeCollection]int
}

func newRecordingRepo(inner domain.TradeRepository) *recordingRepo {
	return &recordingRepo{
		TradeRepository: inner,
		puts:            make(map[domain.TradeCollection]int),
	}
}

func (r *recordingRepo) PutTrades(
	ctx context.Context, collection domain.TradeCollection,
	trades []*domain.Trade,
) error {
	r.mtx.Lock()
	r.puts[collection]++
	r.mtx.Unlock()
	return r.TradeRepository.PutTrades(ctx, collection, trades)
}

func (r *recordingRepo) putCount(collection domain.TradeCollection) int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.puts[collection]
}
