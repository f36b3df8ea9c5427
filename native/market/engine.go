package market

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"rentmarket/core/events"
	"rentmarket/core/types"
)

var (
	errNilState   = errors.New("market engine: state not configured")
	errNilCustody = errors.New("market engine: custody registry not configured")
	errNilLedger  = errors.New("market engine: token ledger not configured")
)

// engineState is the narrow persistence surface the engine mutates. The
// engine is the exclusive writer of all three tables.
type engineState interface {
	OfferPut(*Offer) error
	OfferGet(collection [20]byte, instance uint64, owner [20]byte) (*Offer, bool)
	RefundRequestPut(*RefundRequest) error
	RefundRequestGet(collection [20]byte, instance uint64, owner [20]byte) (*RefundRequest, bool)
	RefundRequestClear(collection [20]byte, instance uint64, owner [20]byte) error
	ExtendRequestPut(*ExtendRequest) error
	ExtendRequestGet(collection [20]byte, instance uint64, owner [20]byte) (*ExtendRequest, bool)
	ExtendRequestClear(collection [20]byte, instance uint64, owner [20]byte) error
}

// CustodyRegistry is the external asset-custody collaborator. The engine
// never inspects lock bookkeeping; it only consumes this capability surface.
type CustodyRegistry interface {
	// IsApproved reports whether the marketplace may transfer the instance on
	// behalf of the supplied holder.
	IsApproved(collection [20]byte, instance uint64, holder [20]byte) (bool, error)
	// IsLocked reports whether a third party currently restricts transfers of
	// the instance.
	IsLocked(collection [20]byte, instance uint64) (bool, error)
	// Transfer moves custody of the instance between holders.
	Transfer(collection [20]byte, instance uint64, from, to [20]byte) error
}

// TokenLedger is the external payment-asset collaborator.
type TokenLedger interface {
	Transfer(token [20]byte, from, to [20]byte, amount *big.Int) error
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine owns the offer, refund-request, and extend-request tables and drives
// every marketplace transition against the custody and ledger collaborators.
// Operations either complete entirely or abort with all tables untouched:
// validation runs to completion before the first mutation or collaborator
// call, and payment precedes custody which precedes the state write.
type Engine struct {
	state   engineState
	custody CustodyRegistry
	ledger  TokenLedger
	fees    FeeConfig
	admin   [20]byte
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a marketplace engine with a no-op emitter. The fee
// configuration is validated once here; stored prices derived from it are
// fee-inclusive for the engine's lifetime.
func NewEngine(fees FeeConfig) (*Engine, error) {
	if err := fees.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		fees:    fees,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}, nil
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetCustody configures the asset-custody collaborator.
func (e *Engine) SetCustody(custody CustodyRegistry) { e.custody = custody }

// SetLedger configures the payment-asset collaborator.
func (e *Engine) SetLedger(ledger TokenLedger) { e.ledger = ledger }

// SetAdmin configures the administrative identity allowed to force-reclaim
// assets regardless of elapsed term.
func (e *Engine) SetAdmin(addr [20]byte) { e.admin = addr }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// FeeConfig returns the fee configuration the engine was constructed with.
func (e *Engine) FeeConfig() FeeConfig { return e.fees }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.custody == nil {
		return errNilCustody
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return nil
}

func nonNegative(amount *big.Int) (*big.Int, error) {
	if amount == nil {
		return big.NewInt(0), nil
	}
	if amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return new(big.Int).Set(amount), nil
}

// ensureTransferable verifies that the custody movement a payment depends on
// can still succeed: the holder must have the marketplace approved and the
// instance must not be transfer-locked. Both can change after listing or
// renting through the custody surface, so money must never move ahead of
// this check.
func (e *Engine) ensureTransferable(collection [20]byte, instance uint64, holder [20]byte) error {
	approved, err := e.custody.IsApproved(collection, instance, holder)
	if err != nil {
		return err
	}
	if !approved {
		return ErrNotApproved
	}
	locked, err := e.custody.IsLocked(collection, instance)
	if err != nil {
		return err
	}
	if locked {
		return ErrInstanceLocked
	}
	return nil
}

// validateListing checks the preconditions shared by Offer and OfferAll for a
// single instance without mutating anything.
func (e *Engine) validateListing(caller, collection [20]byte, instance uint64) error {
	approved, err := e.custody.IsApproved(collection, instance, caller)
	if err != nil {
		return err
	}
	if !approved {
		return ErrNotApproved
	}
	locked, err := e.custody.IsLocked(collection, instance)
	if err != nil {
		return err
	}
	if locked {
		return ErrInstanceLocked
	}
	if existing, ok := e.state.OfferGet(collection, instance, caller); ok && !existing.Cleared() {
		return ErrDuplicateOffer
	}
	return nil
}

// Offer publishes a rental listing for one asset instance. Stored prices are
// marked up by the fee rate exactly once here.
func (e *Engine) Offer(caller, collection, payAsset [20]byte, instance uint64, minTerm, maxTerm, startDiscountTerm uint64, price, discountPrice *big.Int) (*Offer, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if payAsset == ([20]byte{}) {
		return nil, ErrInvalidPayAsset
	}
	nominal, err := nonNegative(price)
	if err != nil {
		return nil, err
	}
	nominalDiscount, err := nonNegative(discountPrice)
	if err != nil {
		return nil, err
	}
	if maxTerm > MaxRentalTerm {
		return nil, ErrInvalidTerm
	}
	if err := e.validateListing(caller, collection, instance); err != nil {
		return nil, err
	}
	offer := &Offer{
		Collection:        collection,
		Instance:          instance,
		Owner:             caller,
		PayAsset:          payAsset,
		MinTerm:           minTerm,
		MaxTerm:           maxTerm,
		StartDiscountTerm: startDiscountTerm,
		Price:             e.fees.WithFee(nominal),
		DiscountPrice:     e.fees.WithFee(nominalDiscount),
	}
	if err := e.state.OfferPut(offer); err != nil {
		return nil, err
	}
	e.emit(NewOfferCreatedEvent(offer))
	return offer.Clone(), nil
}

// OfferAll publishes listings for a batch of instances with a shared pay
// asset. Each parallel array may hold a single broadcast value or one value
// per instance; any other shape is rejected before any listing is stored.
// Batch listings carry no discount schedule; SetDiscountData adds one later.
func (e *Engine) OfferAll(caller, collection, payAsset [20]byte, instances []uint64, minTerms, maxTerms []uint64, prices []*big.Int) ([]*Offer, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if payAsset == ([20]byte{}) {
		return nil, ErrInvalidPayAsset
	}
	if len(instances) == 0 {
		return nil, ErrLengthMismatch
	}
	if !broadcastable(len(minTerms), len(instances)) ||
		!broadcastable(len(maxTerms), len(instances)) ||
		!broadcastable(len(prices), len(instances)) {
		return nil, ErrLengthMismatch
	}
	nominals := make([]*big.Int, len(prices))
	for i, price := range prices {
		nominal, err := nonNegative(price)
		if err != nil {
			return nil, err
		}
		nominals[i] = nominal
	}
	seen := make(map[uint64]struct{}, len(instances))
	for i, instance := range instances {
		if _, dup := seen[instance]; dup {
			return nil, ErrDuplicateOffer
		}
		seen[instance] = struct{}{}
		if broadcastUint(maxTerms, i) > MaxRentalTerm {
			return nil, ErrInvalidTerm
		}
		if err := e.validateListing(caller, collection, instance); err != nil {
			return nil, err
		}
	}
	offers := make([]*Offer, 0, len(instances))
	for i, instance := range instances {
		offer := &Offer{
			Collection: collection,
			Instance:   instance,
			Owner:      caller,
			PayAsset:   payAsset,
			MinTerm:    broadcastUint(minTerms, i),
			MaxTerm:    broadcastUint(maxTerms, i),
			Price:      e.fees.WithFee(broadcastBig(nominals, i)),
			// no discount threshold until SetDiscountData
			DiscountPrice: big.NewInt(0),
		}
		if err := e.state.OfferPut(offer); err != nil {
			return nil, err
		}
		e.emit(NewOfferCreatedEvent(offer))
		offers = append(offers, offer.Clone())
	}
	return offers, nil
}

// SetDiscountData overwrites the discount schedule of existing listings owned
// by the caller. Base price, renter, and end time are untouched, so the
// schedule may change while a rental is active.
func (e *Engine) SetDiscountData(caller, collection [20]byte, instances []uint64, startDiscountTerms []uint64, discountPrices []*big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if len(instances) == 0 {
		return ErrLengthMismatch
	}
	if !broadcastable(len(startDiscountTerms), len(instances)) ||
		!broadcastable(len(discountPrices), len(instances)) {
		return ErrLengthMismatch
	}
	nominals := make([]*big.Int, len(discountPrices))
	for i, price := range discountPrices {
		nominal, err := nonNegative(price)
		if err != nil {
			return err
		}
		nominals[i] = nominal
	}
	offers := make([]*Offer, len(instances))
	for i, instance := range instances {
		offer, ok := e.state.OfferGet(collection, instance, caller)
		if !ok || offer.Cleared() {
			return ErrOfferNotFound
		}
		offers[i] = offer
	}
	for i, offer := range offers {
		offer.StartDiscountTerm = broadcastUint(startDiscountTerms, i)
		offer.DiscountPrice = e.fees.WithFee(broadcastBig(nominals, i))
		if err := e.state.OfferPut(offer); err != nil {
			return err
		}
		e.emit(NewDiscountUpdatedEvent(offer))
	}
	return nil
}

// Rent transitions a listed offer into an active rental: the prorated,
// fee-inclusive amount moves from the caller straight to the owner, custody
// of the instance moves to the caller, and the term end is stamped. A failed
// payment aborts before custody or state are touched.
func (e *Engine) Rent(caller, collection, owner, payAsset [20]byte, instance uint64, term uint64) (*Offer, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	offer, ok := e.state.OfferGet(collection, instance, owner)
	if !ok || offer.Cleared() || offer.PayAsset != payAsset {
		return nil, ErrOfferNotFound
	}
	if offer.Renter != ([20]byte{}) {
		return nil, ErrAlreadyRented
	}
	if term < offer.MinTerm || term > offer.MaxTerm {
		return nil, ErrTermOutOfRange
	}
	// Approval can be revoked and locks placed after listing; payment must
	// not precede a custody transfer that is known to fail.
	if err := e.ensureTransferable(collection, instance, owner); err != nil {
		return nil, err
	}
	owed := RentalCost(offer, term)
	if owed.Sign() > 0 {
		if err := e.ledger.Transfer(payAsset, caller, owner, owed); err != nil {
			return nil, fmt.Errorf("market: rent payment: %w", err)
		}
	}
	if err := e.custody.Transfer(collection, instance, owner, caller); err != nil {
		return nil, fmt.Errorf("market: rent custody: %w", err)
	}
	offer.Renter = caller
	offer.EndTime = uint64(e.now()) + term*SecondsPerDay
	if err := e.state.OfferPut(offer); err != nil {
		return nil, err
	}
	e.emit(NewRentedEvent(offer, owed))
	return offer.Clone(), nil
}

// BackToken returns custody to the owner once the rental term has elapsed and
// clears the listing entirely; relisting requires a fresh Offer call. Calling
// it on a vacant listing simply delists it.
func (e *Engine) BackToken(caller, collection, owner [20]byte, instance uint64) error {
	if caller != owner {
		return ErrUnauthorized
	}
	return e.reclaim(collection, owner, instance, false)
}

// BackTokenAdmin is the emergency variant of BackToken: only the designated
// administrative identity may call it, and the elapsed-term requirement is
// waived.
func (e *Engine) BackTokenAdmin(caller, collection, owner [20]byte, instance uint64) error {
	if e == nil || e.admin == ([20]byte{}) || caller != e.admin {
		return ErrUnauthorized
	}
	return e.reclaim(collection, owner, instance, true)
}

func (e *Engine) reclaim(collection, owner [20]byte, instance uint64, force bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	offer, ok := e.state.OfferGet(collection, instance, owner)
	if !ok || offer.Cleared() {
		return ErrOfferNotFound
	}
	if offer.Renter != ([20]byte{}) {
		if !force && uint64(e.now()) < offer.EndTime {
			return ErrRentalStillActive
		}
		if err := e.custody.Transfer(collection, instance, offer.Renter, owner); err != nil {
			return fmt.Errorf("market: reclaim custody: %w", err)
		}
	}
	cleared := e.clearOffer(offer)
	if err := e.state.OfferPut(cleared); err != nil {
		return err
	}
	e.emit(NewReturnedEvent(offer, force))
	return nil
}

// clearOffer produces the zeroed tombstone written in place of a removed
// listing. Only the key fields survive.
func (e *Engine) clearOffer(offer *Offer) *Offer {
	return &Offer{
		Collection:    offer.Collection,
		Instance:      offer.Instance,
		Owner:         offer.Owner,
		Price:         big.NewInt(0),
		DiscountPrice: big.NewInt(0),
	}
}

// GetOffer returns a copy of the offer stored for the key, if any.
func (e *Engine) GetOffer(collection [20]byte, instance uint64, owner [20]byte) (*Offer, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	offer, ok := e.state.OfferGet(collection, instance, owner)
	if !ok {
		return nil, false
	}
	return offer.Clone(), true
}

// GetRefundRequest returns a copy of the pending refund negotiation for the
// key, if one is in flight.
func (e *Engine) GetRefundRequest(collection [20]byte, instance uint64, owner [20]byte) (*RefundRequest, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	req, ok := e.state.RefundRequestGet(collection, instance, owner)
	if !ok {
		return nil, false
	}
	return req.Clone(), true
}

// GetExtendRequest returns a copy of the pending extension negotiation for
// the key, if one is in flight.
func (e *Engine) GetExtendRequest(collection [20]byte, instance uint64, owner [20]byte) (*ExtendRequest, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	req, ok := e.state.ExtendRequestGet(collection, instance, owner)
	if !ok {
		return nil, false
	}
	return req.Clone(), true
}

func broadcastable(have, want int) bool {
	return have == 1 || have == want
}

func broadcastUint(values []uint64, i int) uint64 {
	if len(values) == 1 {
		return values[0]
	}
	return values[i]
}

func broadcastBig(values []*big.Int, i int) *big.Int {
	if len(values) == 1 {
		return values[0]
	}
	return values[i]
}
