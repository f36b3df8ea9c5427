package market

import (
	"fmt"
	"math/big"
)

// ConsentOutcome tags the result of evaluating a two-party negotiation once
// the counterparty has answered. Side effects are committed only on
// ConsentResolved, which requires both agreement flags to read true within
// the same operation.
type ConsentOutcome uint8

const (
	ConsentPending ConsentOutcome = iota
	ConsentResolved
	ConsentAbandoned
)

// consentTransition is the pure "both flags true" rule shared by the refund
// and extension protocols. requesterAgree is the flag persisted by the
// requesting party; accept is the counterparty's answer in this operation.
func consentTransition(requesterAgree, accept bool) ConsentOutcome {
	switch {
	case !accept:
		return ConsentAbandoned
	case requesterAgree:
		return ConsentResolved
	default:
		return ConsentPending
	}
}

// activeRental loads the offer for the key and ensures it is an active
// rental, returning the occupant-facing errors the negotiation entry points
// share.
func (e *Engine) activeRental(collection, owner [20]byte, instance uint64) (*Offer, error) {
	offer, ok := e.state.OfferGet(collection, instance, owner)
	if !ok || offer.Cleared() {
		return nil, ErrOfferNotFound
	}
	if !offer.Active() {
		return nil, ErrNotActiveRental
	}
	return offer, nil
}

// RequestRefundToken opens or overwrites the renter's early-termination
// request. The landlord's previously recorded answer, if any, is preserved so
// the request record always reflects both parties' latest positions.
func (e *Engine) RequestRefundToken(caller, collection, owner [20]byte, instance uint64, payoutAmount *big.Int, agree bool) (*RefundRequest, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	payout, err := nonNegative(payoutAmount)
	if err != nil {
		return nil, err
	}
	offer, err := e.activeRental(collection, owner, instance)
	if err != nil {
		return nil, err
	}
	if caller != offer.Renter {
		return nil, ErrUnauthorized
	}
	req := &RefundRequest{
		Collection:   collection,
		Instance:     instance,
		Owner:        owner,
		PayoutAmount: payout,
		RenterAgree:  agree,
	}
	if prev, ok := e.state.RefundRequestGet(collection, instance, owner); ok {
		req.LandlordAgree = prev.LandlordAgree
	}
	if err := e.state.RefundRequestPut(req); err != nil {
		return nil, err
	}
	e.emit(NewRefundRequestedEvent(req))
	return req.Clone(), nil
}

// AcceptRefundToken records the landlord's answer to a pending refund
// request. The payout amount must match the stored request so a different
// number can never be accepted silently. Declining clears the request with no
// transfers; mutual agreement pays the renter from the owner, returns custody
// to the owner, and clears both the offer and the request.
func (e *Engine) AcceptRefundToken(caller, collection, owner [20]byte, instance uint64, payoutAmount *big.Int, agree bool) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	if caller != owner {
		return false, ErrUnauthorized
	}
	offer, err := e.activeRental(collection, owner, instance)
	if err != nil {
		return false, err
	}
	req, ok := e.state.RefundRequestGet(collection, instance, owner)
	if !ok {
		return false, ErrNoPendingRequest
	}
	if !payoutMatches(req.PayoutAmount, payoutAmount) {
		return false, ErrPayoutMismatch
	}
	switch consentTransition(req.RenterAgree, agree) {
	case ConsentAbandoned:
		if err := e.state.RefundRequestClear(collection, instance, owner); err != nil {
			return false, err
		}
		e.emit(NewRefundRetractedEvent(req))
		return false, nil
	case ConsentPending:
		req.LandlordAgree = true
		if err := e.state.RefundRequestPut(req); err != nil {
			return false, err
		}
		return false, nil
	}
	// The renter can block the custody return (revoke the approval, or lock
	// the instance while holding it); validate it before the payout commits.
	if err := e.ensureTransferable(collection, instance, offer.Renter); err != nil {
		return false, err
	}
	payout := req.PayoutAmount
	if payout != nil && payout.Sign() > 0 {
		if err := e.ledger.Transfer(offer.PayAsset, owner, offer.Renter, payout); err != nil {
			return false, fmt.Errorf("market: refund payout: %w", err)
		}
	}
	if err := e.custody.Transfer(collection, instance, offer.Renter, owner); err != nil {
		return false, fmt.Errorf("market: refund custody: %w", err)
	}
	if err := e.state.OfferPut(e.clearOffer(offer)); err != nil {
		return false, err
	}
	if err := e.state.RefundRequestClear(collection, instance, owner); err != nil {
		return false, err
	}
	e.emit(NewRefundResolvedEvent(offer, req))
	return true, nil
}

// RequestExtendRent opens or overwrites the renter's term-extension request.
// Requesting implies agreeing, so the renter flag is always set.
func (e *Engine) RequestExtendRent(caller, collection, owner [20]byte, instance uint64, payoutAmount *big.Int, extendedTerm uint64) (*ExtendRequest, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	payout, err := nonNegative(payoutAmount)
	if err != nil {
		return nil, err
	}
	if extendedTerm == 0 || extendedTerm > MaxRentalTerm {
		return nil, ErrInvalidTerm
	}
	offer, err := e.activeRental(collection, owner, instance)
	if err != nil {
		return nil, err
	}
	if caller != offer.Renter {
		return nil, ErrUnauthorized
	}
	req := &ExtendRequest{
		Collection:   collection,
		Instance:     instance,
		Owner:        owner,
		PayoutAmount: payout,
		ExtendedTerm: extendedTerm,
		RenterAgree:  true,
	}
	if prev, ok := e.state.ExtendRequestGet(collection, instance, owner); ok {
		req.LandlordAgree = prev.LandlordAgree
	}
	if err := e.state.ExtendRequestPut(req); err != nil {
		return nil, err
	}
	e.emit(NewExtendRequestedEvent(req))
	return req.Clone(), nil
}

// AcceptExtendRent records the landlord's answer to a pending extension
// request. Mutual agreement pays the owner from the renter and pushes the
// rental's end time out by the extended term, measured from the current end
// time rather than from now. The rental stays active under the renter either
// way; only the request record is consumed.
func (e *Engine) AcceptExtendRent(caller, collection, owner [20]byte, instance uint64, payoutAmount *big.Int, agree bool) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	if caller != owner {
		return false, ErrUnauthorized
	}
	offer, err := e.activeRental(collection, owner, instance)
	if err != nil {
		return false, err
	}
	req, ok := e.state.ExtendRequestGet(collection, instance, owner)
	if !ok {
		return false, ErrNoPendingRequest
	}
	if !payoutMatches(req.PayoutAmount, payoutAmount) {
		return false, ErrPayoutMismatch
	}
	switch consentTransition(req.RenterAgree, agree) {
	case ConsentAbandoned:
		if err := e.state.ExtendRequestClear(collection, instance, owner); err != nil {
			return false, err
		}
		e.emit(NewExtendRetractedEvent(req))
		return false, nil
	case ConsentPending:
		req.LandlordAgree = true
		if err := e.state.ExtendRequestPut(req); err != nil {
			return false, err
		}
		return false, nil
	}
	payout := req.PayoutAmount
	if payout != nil && payout.Sign() > 0 {
		if err := e.ledger.Transfer(offer.PayAsset, offer.Renter, owner, payout); err != nil {
			return false, fmt.Errorf("market: extension payment: %w", err)
		}
	}
	offer.EndTime += req.ExtendedTerm * SecondsPerDay
	if err := e.state.OfferPut(offer); err != nil {
		return false, err
	}
	if err := e.state.ExtendRequestClear(collection, instance, owner); err != nil {
		return false, err
	}
	e.emit(NewExtendResolvedEvent(offer, req))
	return true, nil
}

func payoutMatches(stored, supplied *big.Int) bool {
	if stored == nil {
		stored = big.NewInt(0)
	}
	if supplied == nil {
		supplied = big.NewInt(0)
	}
	return stored.Cmp(supplied) == 0
}
