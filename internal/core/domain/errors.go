package domain

import "errors"

var (
	// ErrOfferNullIssuerKey ...
	ErrOfferNullIssuerKey = errors.New("offer issuer key must not be null")
	// ErrOfferInvalidPrice ...
	ErrOfferInvalidPrice = errors.New("offer price must be positive")
	// ErrOfferInvalidAmounts is thrown when the amount bounds are zero or
	// inverted.
	ErrOfferInvalidAmounts = errors.New("offer amounts must satisfy 0 < min <= amount")
)
