package application

import "errors"

var (
	// ErrAlreadyRegistered is thrown when registering a protocol handle for a
	// trade id that already has a live handle in any role.
	ErrAlreadyRegistered = errors.New("protocol already registered for trade id")
	// ErrCheckAlreadyInProgress is thrown when requesting to take an offer
	// whose availability is already being checked.
	ErrCheckAlreadyInProgress = errors.New("availability check already in progress for offer")
	// ErrOfferNotAvailable is thrown when trying to take an offer that the
	// counterparty reported as no longer available.
	ErrOfferNotAvailable = errors.New("offer is not available")
)
