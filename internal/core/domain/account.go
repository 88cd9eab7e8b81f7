package domain

import "github.com/btcsuite/btcd/btcutil"

// Identity holds the local user's network keys: the signing public key that
// identifies the user to peers and the private key used to decrypt mailbox
// envelopes addressed to it.
type Identity struct {
	SigPubKey  []byte
	EncPrivKey []byte
}

// PaymentAccount is the fiat account an offer settles against.
type PaymentAccount struct {
	Id       string
	Method   string
	Currency string
	Country  string
}

// AccountSettings are the user's trading preferences applied to every offer
// it places.
type AccountSettings struct {
	AcceptedArbitrators []string
	AcceptedCountries   []string
	SecurityDeposit     btcutil.Amount
	CurrentAccount      PaymentAccount
}
