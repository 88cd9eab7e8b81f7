package ports

// EncryptedEnvelope is a sealed mailbox message addressed to some identity.
// Its content is opaque until decrypted with the recipient's private key.
type EncryptedEnvelope struct {
	Data []byte
}

// TradeMessage is a decrypted mailbox payload scoped to a single trade and
// understood by the matching negotiation runner.
type TradeMessage struct {
	TradeId string
	Type    string
	Payload []byte
}

// MailboxService is the pull-based store-and-forward channel peers use to
// reach parties that were offline when a negotiation message was sent.
type MailboxService interface {
	// FetchAll delivers every envelope addressed to the identity owning the
	// given signing key.
	FetchAll(sigPubKey []byte, onMessages func([]EncryptedEnvelope))
	// PurgeAll removes every envelope addressed to the identity from the
	// remote mailbox.
	PurgeAll(sigPubKey []byte, onSuccess func(), onError func(error))
}

// Cipher decrypts mailbox envelopes with the local identity's private key.
type Cipher interface {
	Decrypt(privKey []byte, envelope EncryptedEnvelope) (*TradeMessage, error)
}
