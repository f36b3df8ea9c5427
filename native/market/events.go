package market

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"rentmarket/core/types"
)

const (
	EventTypeOfferCreated    = "market.offer.created"
	EventTypeDiscountUpdated = "market.offer.discount_updated"
	EventTypeRented          = "market.rented"
	EventTypeReturned        = "market.returned"
	EventTypeRefundRequested = "market.refund.requested"
	EventTypeRefundResolved  = "market.refund.resolved"
	EventTypeRefundRetracted = "market.refund.retracted"
	EventTypeExtendRequested = "market.extend.requested"
	EventTypeExtendResolved  = "market.extend.resolved"
	EventTypeExtendRetracted = "market.extend.retracted"
)

// NewOfferCreatedEvent returns the canonical payload for a freshly published
// listing.
func NewOfferCreatedEvent(o *Offer) *types.Event { return newOfferEvent(EventTypeOfferCreated, o) }

// NewDiscountUpdatedEvent returns the payload emitted when a listing's
// discount schedule changes.
func NewDiscountUpdatedEvent(o *Offer) *types.Event {
	return newOfferEvent(EventTypeDiscountUpdated, o)
}

// NewRentedEvent returns the payload emitted when a listing becomes an active
// rental, including the amount the renter paid the owner.
func NewRentedEvent(o *Offer, paid *big.Int) *types.Event {
	evt := newOfferEvent(EventTypeRented, o)
	if paid != nil {
		evt.Attributes["paid"] = paid.String()
	}
	return evt
}

// NewReturnedEvent returns the payload emitted when custody goes back to the
// owner and the listing is cleared. The offer is the pre-clearing record so
// the departing renter remains visible.
func NewReturnedEvent(o *Offer, admin bool) *types.Event {
	evt := newOfferEvent(EventTypeReturned, o)
	if admin {
		evt.Attributes["admin"] = "true"
	}
	return evt
}

// NewRefundRequestedEvent returns the payload for a renter's early-termination
// request.
func NewRefundRequestedEvent(r *RefundRequest) *types.Event {
	evt := newKeyEvent(EventTypeRefundRequested, r.Collection, r.Instance, r.Owner)
	evt.Attributes["payout"] = bigString(r.PayoutAmount)
	evt.Attributes["renterAgree"] = strconv.FormatBool(r.RenterAgree)
	return evt
}

// NewRefundResolvedEvent returns the payload emitted when both parties agreed
// and the rental terminated early.
func NewRefundResolvedEvent(o *Offer, r *RefundRequest) *types.Event {
	evt := newOfferEvent(EventTypeRefundResolved, o)
	evt.Attributes["payout"] = bigString(r.PayoutAmount)
	return evt
}

// NewRefundRetractedEvent returns the payload emitted when a refund request is
// cleared without side effects.
func NewRefundRetractedEvent(r *RefundRequest) *types.Event {
	evt := newKeyEvent(EventTypeRefundRetracted, r.Collection, r.Instance, r.Owner)
	evt.Attributes["payout"] = bigString(r.PayoutAmount)
	return evt
}

// NewExtendRequestedEvent returns the payload for a renter's term-extension
// request.
func NewExtendRequestedEvent(r *ExtendRequest) *types.Event {
	evt := newKeyEvent(EventTypeExtendRequested, r.Collection, r.Instance, r.Owner)
	evt.Attributes["payout"] = bigString(r.PayoutAmount)
	evt.Attributes["extendedTerm"] = strconv.FormatUint(r.ExtendedTerm, 10)
	return evt
}

// NewExtendResolvedEvent returns the payload emitted when both parties agreed
// and the rental's end time moved out.
func NewExtendResolvedEvent(o *Offer, r *ExtendRequest) *types.Event {
	evt := newOfferEvent(EventTypeExtendResolved, o)
	evt.Attributes["payout"] = bigString(r.PayoutAmount)
	evt.Attributes["extendedTerm"] = strconv.FormatUint(r.ExtendedTerm, 10)
	return evt
}

// NewExtendRetractedEvent returns the payload emitted when an extension
// request is cleared without side effects.
func NewExtendRetractedEvent(r *ExtendRequest) *types.Event {
	evt := newKeyEvent(EventTypeExtendRetracted, r.Collection, r.Instance, r.Owner)
	evt.Attributes["payout"] = bigString(r.PayoutAmount)
	return evt
}

func newKeyEvent(eventType string, collection [20]byte, instance uint64, owner [20]byte) *types.Event {
	id := OfferID(collection, instance, owner)
	attrs := map[string]string{
		"id":         hex.EncodeToString(id[:]),
		"collection": hex.EncodeToString(collection[:]),
		"instance":   strconv.FormatUint(instance, 10),
		"owner":      hex.EncodeToString(owner[:]),
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newOfferEvent(eventType string, o *Offer) *types.Event {
	if o == nil {
		return &types.Event{Type: eventType, Attributes: map[string]string{}}
	}
	evt := newKeyEvent(eventType, o.Collection, o.Instance, o.Owner)
	evt.Attributes["payAsset"] = hex.EncodeToString(o.PayAsset[:])
	evt.Attributes["minTerm"] = strconv.FormatUint(o.MinTerm, 10)
	evt.Attributes["maxTerm"] = strconv.FormatUint(o.MaxTerm, 10)
	evt.Attributes["startDiscountTerm"] = strconv.FormatUint(o.StartDiscountTerm, 10)
	evt.Attributes["price"] = bigString(o.Price)
	evt.Attributes["discountPrice"] = bigString(o.DiscountPrice)
	if o.Renter != ([20]byte{}) {
		evt.Attributes["renter"] = hex.EncodeToString(o.Renter[:])
		evt.Attributes["endTime"] = strconv.FormatUint(o.EndTime, 10)
	}
	return evt
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
