package market

import "errors"

var (
	ErrUnauthorized      = errors.New("market: unauthorized")
	ErrInvalidPayAsset   = errors.New("market: pay asset must not be the zero address")
	ErrInvalidAmount     = errors.New("market: amount must be non-negative")
	ErrInvalidTerm       = errors.New("market: term must be positive")
	ErrInstanceLocked    = errors.New("market: token is locked")
	ErrNotApproved       = errors.New("market: instance transfer not approved")
	ErrDuplicateOffer    = errors.New("market: offer already created")
	ErrOfferNotFound     = errors.New("market: offer not found")
	ErrAlreadyRented     = errors.New("market: already rented")
	ErrTermOutOfRange    = errors.New("market: term out of range")
	ErrRentalStillActive = errors.New("market: rental term not elapsed")
	ErrNotActiveRental   = errors.New("market: no active rental")
	ErrPayoutMismatch    = errors.New("market: payout amount mismatch")
	ErrNoPendingRequest  = errors.New("market: no pending request")
	ErrLengthMismatch    = errors.New("market: array length mismatch")
)
