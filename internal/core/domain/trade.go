package domain

import (
	"github.com/btcsuite/btcd/btcutil"
)

// LifecycleState is the coarse bucket a trade belongs to. It determines which
// of the three persisted collections holds the trade.
type LifecycleState int

const (
	LifecycleOpenOffer LifecycleState = iota
	LifecyclePending
	LifecycleCompleted
	LifecycleFailed
	LifecycleCanceled
)

func (s LifecycleState) String() string {
	switch s {
	case LifecycleOpenOffer:
		return "OPEN_OFFER"
	case LifecyclePending:
		return "PENDING"
	case LifecycleCompleted:
		return "COMPLETED"
	case LifecycleFailed:
		return "FAILED"
	case LifecycleCanceled:
		return "CANCELED"
	default:
		return "UNDEFINED"
	}
}

// ProcessState is the fine-grained negotiation progress marker. It is
// advanced only by the trade's protocol runner.
type ProcessState int

const (
	ProcessInit ProcessState = iota
	ProcessFeeTxCreated
	ProcessDepositPublished
	ProcessDepositConfirmed
	ProcessFiatPaymentStarted
	ProcessFiatPaymentReceived
	ProcessPayoutPublished
	ProcessFeePublishFailed
	ProcessMessageSendFailed
	ProcessFault
)

func (s ProcessState) String() string {
	switch s {
	case ProcessInit:
		return "INIT"
	case ProcessFeeTxCreated:
		return "FEE_TX_CREATED"
	case ProcessDepositPublished:
		return "DEPOSIT_PUBLISHED"
	case ProcessDepositConfirmed:
		return "DEPOSIT_CONFIRMED"
	case ProcessFiatPaymentStarted:
		return "FIAT_PAYMENT_STARTED"
	case ProcessFiatPaymentReceived:
		return "FIAT_PAYMENT_RECEIVED"
	case ProcessPayoutPublished:
		return "PAYOUT_PUBLISHED"
	case ProcessFeePublishFailed:
		return "FEE_PUBLISH_FAILED"
	case ProcessMessageSendFailed:
		return "MESSAGE_SEND_FAILED"
	case ProcessFault:
		return "FAULT"
	default:
		return "UNDEFINED"
	}
}

// Peer is the network identity of a trade counterparty.
type Peer struct {
	Id     string
	PubKey []byte
}

// Trade is an agreement instance derived from an Offer once placed or taken.
// It shares its id with the offer it derives from.
type Trade struct {
	Id        string
	Offer     *Offer
	Amount    btcutil.Amount
	Peer      *Peer
	Lifecycle LifecycleState
	Process   ProcessState
}

// NewTrade returns a trade derived from the given offer with the given
// lifecycle state and process state Init.
func NewTrade(offer *Offer, lifecycle LifecycleState) *Trade {
	return &Trade{
		Id:        offer.Id,
		Offer:     offer,
		Amount:    offer.Amount,
		Lifecycle: lifecycle,
		Process:   ProcessInit,
	}
}

// IsFailed returns whether the trade terminated with a failure.
func (t *Trade) IsFailed() bool {
	return t.Lifecycle == LifecycleFailed
}

// IsCompleted returns whether the trade completed with a withdrawn payout.
func (t *Trade) IsCompleted() bool {
	return t.Lifecycle == LifecycleCompleted
}

// IsClosed returns whether the trade belongs to the closed collection.
func (t *Trade) IsClosed() bool {
	return t.Lifecycle == LifecycleCompleted ||
		t.Lifecycle == LifecycleFailed ||
		t.Lifecycle == LifecycleCanceled
}
