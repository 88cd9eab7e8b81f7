package domain

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OfferState represents the availability of an offer in the shared offer book.
type OfferState int

const (
	OfferStateUnknown OfferState = iota
	OfferStateAvailable
	OfferStateReserved
	OfferStateRemoved
	OfferStateNotAvailable
)

func (s OfferState) String() string {
	switch s {
	case OfferStateAvailable:
		return "AVAILABLE"
	case OfferStateReserved:
		return "RESERVED"
	case OfferStateRemoved:
		return "REMOVED"
	case OfferStateNotAvailable:
		return "NOT_AVAILABLE"
	default:
		return "UNKNOWN"
	}
}

// Direction tells whether the offer issuer wants to buy or sell the base
// currency.
type Direction int

const (
	DirectionBuy Direction = iota
	DirectionSell
)

func (d Direction) String() string {
	if d == DirectionSell {
		return "SELL"
	}
	return "BUY"
}

// Offer is a published intent to trade, owned by its issuer and referenced by
// every Trade created from it.
type Offer struct {
	Id                  string
	Direction           Direction
	Price               decimal.Decimal
	Amount              btcutil.Amount
	MinAmount           btcutil.Amount
	IssuerPubKey        []byte
	PaymentMethod       string
	Currency            string
	Country             string
	PaymentAccountId    string
	AcceptedArbitrators []string
	AcceptedCountries   []string
	SecurityDeposit     btcutil.Amount
	State               OfferState
}

// NewOffer returns a validated offer built from the issuer's current payment
// account and account settings. An empty id is replaced with a random one.
func NewOffer(
	id string, direction Direction, price decimal.Decimal,
	amount, minAmount btcutil.Amount, issuerPubKey []byte,
	account PaymentAccount, settings AccountSettings,
) (*Offer, error) {
	if id == "" {
		id = uuid.New().String()
	}
	if len(issuerPubKey) <= 0 {
		return nil, ErrOfferNullIssuerKey
	}
	if !price.IsPositive() {
		return nil, ErrOfferInvalidPrice
	}
	if minAmount <= 0 || amount < minAmount {
		return nil, ErrOfferInvalidAmounts
	}

	return &Offer{
		Id:                  id,
		Direction:           direction,
		Price:               price,
		Amount:              amount,
		MinAmount:           minAmount,
		IssuerPubKey:        issuerPubKey,
		PaymentMethod:       account.Method,
		Currency:            account.Currency,
		Country:             account.Country,
		PaymentAccountId:    account.Id,
		AcceptedArbitrators: settings.AcceptedArbitrators,
		AcceptedCountries:   settings.AcceptedCountries,
		SecurityDeposit:     settings.SecurityDeposit,
		State:               OfferStateUnknown,
	}, nil
}

// IsIssuedBy returns whether the offer was published by the identity owning
// the given network key.
func (o *Offer) IsIssuedBy(sigPubKey []byte) bool {
	return bytes.Equal(o.IssuerPubKey, sigPubKey)
}
