package market

import (
	"errors"
	"math/big"
	"testing"
)

func TestConsentTransition(t *testing.T) {
	cases := []struct {
		name           string
		requesterAgree bool
		accept         bool
		want           ConsentOutcome
	}{
		{"both agree", true, true, ConsentResolved},
		{"counterparty declines", true, false, ConsentAbandoned},
		{"requester undecided", false, true, ConsentPending},
		{"both decline", false, false, ConsentAbandoned},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := consentTransition(tc.requesterAgree, tc.accept); got != tc.want {
				t.Fatalf("consentTransition(%v, %v) = %d, want %d", tc.requesterAgree, tc.accept, got, tc.want)
			}
		})
	}
}

// rentedEnv lists instance 1 and rents it for five days so negotiation entry
// points have an active rental to operate on.
func rentedEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	env.list(t, 1, 1, 10, 0, 0, 0)
	if _, err := env.engine.Rent(testRenter, testCollection, testOwner, testPayAsset, 1, 5); err != nil {
		t.Fatalf("rent: %v", err)
	}
	return env
}

func TestRequestRefundToken(t *testing.T) {
	env := rentedEnv(t)

	req, err := env.engine.RequestRefundToken(testRenter, testCollection, testOwner, 1, big.NewInt(40), true)
	if err != nil {
		t.Fatalf("request refund: %v", err)
	}
	if !req.RenterAgree || req.LandlordAgree {
		t.Fatalf("fresh request flags = %+v", req)
	}
	if req.PayoutAmount.Int64() != 40 {
		t.Fatalf("payout = %s, want 40", req.PayoutAmount)
	}
	stored, ok := env.state.RefundRequestGet(testCollection, 1, testOwner)
	if !ok || stored.PayoutAmount.Int64() != 40 {
		t.Fatal("request not persisted")
	}
}

func TestRequestRefundTokenValidations(t *testing.T) {
	env := rentedEnv(t)

	if _, err := env.engine.RequestRefundToken(testOwner, testCollection, testOwner, 1, big.NewInt(40), true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("owner as requester: err = %v, want %v", err, ErrUnauthorized)
	}
	if _, err := env.engine.RequestRefundToken(testRenter, testCollection, testOwner, 2, big.NewInt(40), true); !errors.Is(err, ErrOfferNotFound) {
		t.Fatalf("unknown instance: err = %v, want %v", err, ErrOfferNotFound)
	}
	if _, err := env.engine.RequestRefundToken(testRenter, testCollection, testOwner, 1, big.NewInt(-1), true); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative payout: err = %v, want %v", err, ErrInvalidAmount)
	}
}

func TestRequestRefundTokenVacantListing(t *testing.T) {
	env := newTestEnv(t)
	env.list(t, 1, 1, 10, 0, 100, 0)

	_, err := env.engine.RequestRefundToken(testRenter, testCollection, testOwner, 1, big.NewInt(40), true)
	if !errors.Is(err, ErrNotActiveRental) {
		t.Fatalf("err = %v, want %v", err, ErrNotActiveRental)
	}
}

func TestAcceptRefundTokenMutualConsent(t *testing.T) {
	env := rentedEnv(t)
	env.ledger.setBalance(testPayAsset, testOwner, 100)
	if _, err := env.engine.RequestRefundToken(testRenter, testCollection, testOwner, 1, big.NewInt(40), true); err != nil {
		t.Fatalf("request refund: %v", err)
	}

	resolved, err := env.engine.AcceptRefundToken(testOwner, testCollection, testOwner, 1, big.NewInt(40), true)
	if err != nil {
		t.Fatalf("accept refund: %v", err)
	}
	if !resolved {
		t.Fatal("expected resolution")
	}
	if got := env.ledger.balance(testPayAsset, testRenter); got.Int64() != 40 {
		t.Fatalf("renter payout = %s, want 40", got)
	}
	if got := env.ledger.balance(testPayAsset, testOwner); got.Int64() != 60 {
		t.Fatalf("owner balance = %s, want 60", got)
	}
	if holder := env.custody.holders[instanceKey{testCollection, 1}]; holder != testOwner {
		t.Fatalf("custody holder = %x, want owner", holder)
	}
	offer, _ := env.state.OfferGet(testCollection, 1, testOwner)
	if !offer.Cleared() {
		t.Fatalf("offer not cleared: %+v", offer)
	}
	if _, ok := env.state.RefundRequestGet(testCollection, 1, testOwner); ok {
		t.Fatal("request not cleared")
	}
}

func TestAcceptRefundTokenDeclineClearsWithoutTransfers(t *testing.T) {
	env := rentedEnv(t)
	env.ledger.setBalance(testPayAsset, testOwner, 100)
	if _, err := env.engine.RequestRefundToken(testRenter, testCollection, testOwner, 1, big.NewInt(40), true); err != nil {
		t.Fatalf("request refund: %v", err)
	}

	resolved, err := env.engine.AcceptRefundToken(testOwner, testCollection, testOwner, 1, big.NewInt(40), false)
	if err != nil {
		t.Fatalf("accept refund: %v", err)
	}
	if resolved {
		t.Fatal("decline must not resolve")
	}
	if env.ledger.transfers != 0 {
		t.Fatal("decline must not move funds")
	}
	if holder := env.custody.holders[instanceKey{testCollection, 1}]; holder != testRenter {
		t.Fatal("decline must not move custody")
	}
	offer, _ := env.state.OfferGet(testCollection, 1, testOwner)
	if !offer.Active() {
		t.Fatalf("rental must stay active: %+v", offer)
	}
	if _, ok := env.state.RefundRequestGet(testCollection, 1, testOwner); ok {
		t.Fatal("declined request must be cleared")
	}
}

func TestAcceptRefundTokenRenterUndecided(t *testing.T) {
	env := rentedEnv(t)
	if _, err := env.engine.RequestRefundToken(testRenter, testCollection, testOwner, 1, big.NewInt(40), false); err != nil {
		t.Fatalf("request refund: %v", err)
	}

	resolved, err := env.engine.AcceptRefundToken(testOwner, testCollection, testOwner, 1, big.NewInt(40), true)
	if err != nil {
		t.Fatalf("accept refund: %v", err)
	}
	if resolved {
		t.Fatal("one-sided consent must not resolve")
	}
	req, ok := env.state.RefundRequestGet(testCollection, 1, testOwner)
	if !ok || !req.LandlordAgree {
		t.Fatalf("landlord answer not recorded: %+v", req)
	}

	// The renter now agrees to the same number; the prior landlord answer is
	// preserved and the owner's next accept resolves.
	if _, err := env.engine.RequestRefundToken(testRenter, testCollection, testOwner, 1, big.NewInt(40), true); err != nil {
		t.Fatalf("re-request refund: %v", err)
	}
	req, _ = env.state.RefundRequestGet(testCollection, 1, testOwner)
	if !req.LandlordAgree {
		t.Fatal("landlord answer lost on re-request")
	}
	env.ledger.setBalance(testPayAsset, testOwner, 40)
	resolved, err = env.engine.AcceptRefundToken(testOwner, testCollection, testOwner, 1, big.NewInt(40), true)
	if err != nil || !resolved {
		t.Fatalf("final accept: resolved=%v err=%v", resolved, err)
	}
}

func TestAcceptRefundTokenValidations(t *testing.T) {
	env := rentedEnv(t)
	if _, err := env.engine.RequestRefundToken(testRenter, testCollection, testOwner, 1, big.NewInt(40), true); err != nil {
		t.Fatalf("request refund: %v", err)
	}

	if _, err := env.engine.AcceptRefundToken(testRenter, testCollection, testOwner, 1, big.NewInt(40), true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("renter as acceptor: err = %v, want %v", err, ErrUnauthorized)
	}
	if _, err := env.engine.AcceptRefundToken(testOwner, testCollection, testOwner, 1, big.NewInt(41), true); !errors.Is(err, ErrPayoutMismatch) {
		t.Fatalf("payout mismatch: err = %v, want %v", err, ErrPayoutMismatch)
	}
	if _, err := env.engine.AcceptRefundToken(testOwner, testCollection, testOwner, 2, big.NewInt(40), true); !errors.Is(err, ErrOfferNotFound) {
		t.Fatalf("unknown instance: err = %v, want %v", err, ErrOfferNotFound)
	}
}

func TestAcceptRefundTokenNoRequest(t *testing.T) {
	env := rentedEnv(t)

	_, err := env.engine.AcceptRefundToken(testOwner, testCollection, testOwner, 1, big.NewInt(40), true)
	if !errors.Is(err, ErrNoPendingRequest) {
		t.Fatalf("err = %v, want %v", err, ErrNoPendingRequest)
	}
}

func TestAcceptRefundTokenBlockedReturnFailsBeforePayout(t *testing.T) {
	env := rentedEnv(t)
	env.ledger.setBalance(testPayAsset, testOwner, 100)
	if _, err := env.engine.RequestRefundToken(testRenter, testCollection, testOwner, 1, big.NewInt(40), true); err != nil {
		t.Fatalf("request: %v", err)
	}
	env.custody.locks[instanceKey{testCollection, 1}] = true

	_, err := env.engine.AcceptRefundToken(testOwner, testCollection, testOwner, 1, big.NewInt(40), true)
	if !errors.Is(err, ErrInstanceLocked) {
		t.Fatalf("locked: err = %v, want %v", err, ErrInstanceLocked)
	}

	env.custody.locks[instanceKey{testCollection, 1}] = false
	env.custody.approvals[instanceKey{testCollection, 1}][testRenter] = false
	_, err = env.engine.AcceptRefundToken(testOwner, testCollection, testOwner, 1, big.NewInt(40), true)
	if !errors.Is(err, ErrNotApproved) {
		t.Fatalf("revoked: err = %v, want %v", err, ErrNotApproved)
	}

	if got := env.ledger.balance(testPayAsset, testOwner); got.Int64() != 100 {
		t.Fatalf("owner paid out despite blocked return: %s", got)
	}
	if env.ledger.transfers != 0 {
		t.Fatalf("payout moved despite blocked return")
	}
	if holder := env.custody.holders[instanceKey{testCollection, 1}]; holder != testRenter {
		t.Fatalf("custody holder = %x, want renter", holder)
	}
	offer, _ := env.state.OfferGet(testCollection, 1, testOwner)
	if !offer.Active() {
		t.Fatalf("rental cleared despite blocked return: %+v", offer)
	}
	if req, ok := env.state.RefundRequestGet(testCollection, 1, testOwner); !ok || !req.RenterAgree {
		t.Fatalf("request consumed despite blocked return")
	}
}

func TestRequestExtendRent(t *testing.T) {
	env := rentedEnv(t)

	req, err := env.engine.RequestExtendRent(testRenter, testCollection, testOwner, 1, big.NewInt(200), 3)
	if err != nil {
		t.Fatalf("request extend: %v", err)
	}
	if !req.RenterAgree {
		t.Fatal("requesting an extension implies agreement")
	}
	if req.ExtendedTerm != 3 || req.PayoutAmount.Int64() != 200 {
		t.Fatalf("request = %+v", req)
	}
}

func TestRequestExtendRentValidations(t *testing.T) {
	env := rentedEnv(t)

	if _, err := env.engine.RequestExtendRent(testRenter, testCollection, testOwner, 1, big.NewInt(200), 0); !errors.Is(err, ErrInvalidTerm) {
		t.Fatalf("zero term: err = %v, want %v", err, ErrInvalidTerm)
	}
	if _, err := env.engine.RequestExtendRent(testRenter, testCollection, testOwner, 1, big.NewInt(200), MaxRentalTerm+1); !errors.Is(err, ErrInvalidTerm) {
		t.Fatalf("term beyond limit: err = %v, want %v", err, ErrInvalidTerm)
	}
	if _, err := env.engine.RequestExtendRent(testOwner, testCollection, testOwner, 1, big.NewInt(200), 3); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("owner as requester: err = %v, want %v", err, ErrUnauthorized)
	}
}

func TestAcceptExtendRentMutualConsent(t *testing.T) {
	env := rentedEnv(t)
	env.ledger.setBalance(testPayAsset, testRenter, 200)
	if _, err := env.engine.RequestExtendRent(testRenter, testCollection, testOwner, 1, big.NewInt(200), 3); err != nil {
		t.Fatalf("request extend: %v", err)
	}
	before, _ := env.state.OfferGet(testCollection, 1, testOwner)

	resolved, err := env.engine.AcceptExtendRent(testOwner, testCollection, testOwner, 1, big.NewInt(200), true)
	if err != nil {
		t.Fatalf("accept extend: %v", err)
	}
	if !resolved {
		t.Fatal("expected resolution")
	}
	if got := env.ledger.balance(testPayAsset, testOwner); got.Int64() != 200 {
		t.Fatalf("owner balance = %s, want 200", got)
	}
	after, _ := env.state.OfferGet(testCollection, 1, testOwner)
	wantEnd := before.EndTime + 3*SecondsPerDay
	if after.EndTime != wantEnd {
		t.Fatalf("end time = %d, want %d", after.EndTime, wantEnd)
	}
	if after.Renter != testRenter {
		t.Fatal("extension must keep the renter in place")
	}
	if holder := env.custody.holders[instanceKey{testCollection, 1}]; holder != testRenter {
		t.Fatal("extension must not move custody")
	}
	if _, ok := env.state.ExtendRequestGet(testCollection, 1, testOwner); ok {
		t.Fatal("request not cleared")
	}
}

func TestAcceptExtendRentDecline(t *testing.T) {
	env := rentedEnv(t)
	env.ledger.setBalance(testPayAsset, testRenter, 200)
	if _, err := env.engine.RequestExtendRent(testRenter, testCollection, testOwner, 1, big.NewInt(200), 3); err != nil {
		t.Fatalf("request extend: %v", err)
	}
	before, _ := env.state.OfferGet(testCollection, 1, testOwner)

	resolved, err := env.engine.AcceptExtendRent(testOwner, testCollection, testOwner, 1, big.NewInt(200), false)
	if err != nil {
		t.Fatalf("accept extend: %v", err)
	}
	if resolved {
		t.Fatal("decline must not resolve")
	}
	if env.ledger.transfers != 0 {
		t.Fatal("decline must not move funds")
	}
	after, _ := env.state.OfferGet(testCollection, 1, testOwner)
	if after.EndTime != before.EndTime {
		t.Fatalf("end time changed on decline: %d -> %d", before.EndTime, after.EndTime)
	}
	if _, ok := env.state.ExtendRequestGet(testCollection, 1, testOwner); ok {
		t.Fatal("declined request must be cleared")
	}
}

func TestAcceptExtendRentValidations(t *testing.T) {
	env := rentedEnv(t)

	if _, err := env.engine.AcceptExtendRent(testOwner, testCollection, testOwner, 1, big.NewInt(200), true); !errors.Is(err, ErrNoPendingRequest) {
		t.Fatalf("no request: err = %v, want %v", err, ErrNoPendingRequest)
	}
	if _, err := env.engine.RequestExtendRent(testRenter, testCollection, testOwner, 1, big.NewInt(200), 3); err != nil {
		t.Fatalf("request extend: %v", err)
	}
	if _, err := env.engine.AcceptExtendRent(testOwner, testCollection, testOwner, 1, big.NewInt(199), true); !errors.Is(err, ErrPayoutMismatch) {
		t.Fatalf("payout mismatch: err = %v, want %v", err, ErrPayoutMismatch)
	}
	if _, err := env.engine.AcceptExtendRent(testRenter, testCollection, testOwner, 1, big.NewInt(200), true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("renter as acceptor: err = %v, want %v", err, ErrUnauthorized)
	}
}

func TestAcceptExtendRentPaymentFailure(t *testing.T) {
	env := rentedEnv(t)
	if _, err := env.engine.RequestExtendRent(testRenter, testCollection, testOwner, 1, big.NewInt(200), 3); err != nil {
		t.Fatalf("request extend: %v", err)
	}
	before, _ := env.state.OfferGet(testCollection, 1, testOwner)

	// Renter has no balance, so the extension payment fails.
	_, err := env.engine.AcceptExtendRent(testOwner, testCollection, testOwner, 1, big.NewInt(200), true)
	if err == nil {
		t.Fatal("expected payment failure")
	}
	after, _ := env.state.OfferGet(testCollection, 1, testOwner)
	if after.EndTime != before.EndTime {
		t.Fatal("end time changed despite failed payment")
	}
	if _, ok := env.state.ExtendRequestGet(testCollection, 1, testOwner); !ok {
		t.Fatal("request must survive a failed payment")
	}
}
