package ports

import (
	"github.com/xtrade-network/xtrade-daemon/internal/core/domain"
)

// ProcessEvent is emitted by a protocol runner whenever its trade's process
// state advances.
type ProcessEvent struct {
	TradeId string
	State   domain.ProcessState
}

// ProtocolRunner executes the negotiation protocol of one trade for one role.
// Its internal step sequencing (fee transaction, deposit, payout) is not this
// core's business: the orchestrator only starts it, feeds it mailbox
// messages, forwards fiat payment triggers and consumes its process state
// events.
//
// Events returns the channel the runner emits ProcessEvents on. Cleanup
// releases the runner's resources and closes the event channel, so that no
// further events are observed for a deregistered trade.
type ProtocolRunner interface {
	Start()
	FeedMailboxMessage(msg TradeMessage)
	OnFiatPaymentStarted()
	OnFiatPaymentReceived()
	Events() <-chan ProcessEvent
	Cleanup()
}

// RunnerFactory creates the role-specific protocol runner for a trade.
type RunnerFactory interface {
	NewBuyerRunner(trade *domain.Trade) ProtocolRunner
	NewSellerRunner(trade *domain.Trade) ProtocolRunner
}
