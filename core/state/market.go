package state

import (
	"math/big"

	"rentmarket/native/market"
)

// Stored mirrors keep the persisted encoding decoupled from the engine types.
// Offers are written in place when cleared, never deleted, so a zeroed record
// is a legitimate tombstone.
type storedOffer struct {
	PayAsset          [20]byte
	MinTerm           uint64
	MaxTerm           uint64
	StartDiscountTerm uint64
	Price             *big.Int
	DiscountPrice     *big.Int
	Renter            [20]byte
	EndTime           uint64
}

type storedRefundRequest struct {
	PayoutAmount  *big.Int
	RenterAgree   bool
	LandlordAgree bool
	Pending       bool
}

type storedExtendRequest struct {
	PayoutAmount  *big.Int
	ExtendedTerm  uint64
	RenterAgree   bool
	LandlordAgree bool
	Pending       bool
}

// OfferPut persists the offer record for its key.
func (m *Manager) OfferPut(o *market.Offer) error {
	clone := o.Clone()
	stored := storedOffer{
		PayAsset:          clone.PayAsset,
		MinTerm:           clone.MinTerm,
		MaxTerm:           clone.MaxTerm,
		StartDiscountTerm: clone.StartDiscountTerm,
		Price:             clone.Price,
		DiscountPrice:     clone.DiscountPrice,
		Renter:            clone.Renter,
		EndTime:           clone.EndTime,
	}
	return m.KVPut(offerKey(clone.Collection, clone.Instance, clone.Owner), &stored)
}

// OfferGet loads the offer record for the key, reporting whether one has ever
// been written. Cleared tombstones are returned as-is; callers use
// Offer.Cleared to distinguish them.
func (m *Manager) OfferGet(collection [20]byte, instance uint64, owner [20]byte) (*market.Offer, bool) {
	var stored storedOffer
	ok, err := m.KVGet(offerKey(collection, instance, owner), &stored)
	if err != nil || !ok {
		return nil, false
	}
	return &market.Offer{
		Collection:        collection,
		Instance:          instance,
		Owner:             owner,
		PayAsset:          stored.PayAsset,
		MinTerm:           stored.MinTerm,
		MaxTerm:           stored.MaxTerm,
		StartDiscountTerm: stored.StartDiscountTerm,
		Price:             stored.Price,
		DiscountPrice:     stored.DiscountPrice,
		Renter:            stored.Renter,
		EndTime:           stored.EndTime,
	}, true
}

// RefundRequestPut persists an in-flight refund negotiation.
func (m *Manager) RefundRequestPut(r *market.RefundRequest) error {
	clone := r.Clone()
	stored := storedRefundRequest{
		PayoutAmount:  clone.PayoutAmount,
		RenterAgree:   clone.RenterAgree,
		LandlordAgree: clone.LandlordAgree,
		Pending:       true,
	}
	return m.KVPut(refundRequestKey(clone.Collection, clone.Instance, clone.Owner), &stored)
}

// RefundRequestGet loads the pending refund negotiation for the key, if one
// is in flight.
func (m *Manager) RefundRequestGet(collection [20]byte, instance uint64, owner [20]byte) (*market.RefundRequest, bool) {
	var stored storedRefundRequest
	ok, err := m.KVGet(refundRequestKey(collection, instance, owner), &stored)
	if err != nil || !ok || !stored.Pending {
		return nil, false
	}
	return &market.RefundRequest{
		Collection:    collection,
		Instance:      instance,
		Owner:         owner,
		PayoutAmount:  stored.PayoutAmount,
		RenterAgree:   stored.RenterAgree,
		LandlordAgree: stored.LandlordAgree,
	}, true
}

// RefundRequestClear zeroes the refund negotiation record for the key.
func (m *Manager) RefundRequestClear(collection [20]byte, instance uint64, owner [20]byte) error {
	return m.KVPut(refundRequestKey(collection, instance, owner), &storedRefundRequest{PayoutAmount: big.NewInt(0)})
}

// ExtendRequestPut persists an in-flight extension negotiation.
func (m *Manager) ExtendRequestPut(r *market.ExtendRequest) error {
	clone := r.Clone()
	stored := storedExtendRequest{
		PayoutAmount:  clone.PayoutAmount,
		ExtendedTerm:  clone.ExtendedTerm,
		RenterAgree:   clone.RenterAgree,
		LandlordAgree: clone.LandlordAgree,
		Pending:       true,
	}
	return m.KVPut(extendRequestKey(clone.Collection, clone.Instance, clone.Owner), &stored)
}

// ExtendRequestGet loads the pending extension negotiation for the key, if
// one is in flight.
func (m *Manager) ExtendRequestGet(collection [20]byte, instance uint64, owner [20]byte) (*market.ExtendRequest, bool) {
	var stored storedExtendRequest
	ok, err := m.KVGet(extendRequestKey(collection, instance, owner), &stored)
	if err != nil || !ok || !stored.Pending {
		return nil, false
	}
	return &market.ExtendRequest{
		Collection:    collection,
		Instance:      instance,
		Owner:         owner,
		PayoutAmount:  stored.PayoutAmount,
		ExtendedTerm:  stored.ExtendedTerm,
		RenterAgree:   stored.RenterAgree,
		LandlordAgree: stored.LandlordAgree,
	}, true
}

// ExtendRequestClear zeroes the extension negotiation record for the key.
func (m *Manager) ExtendRequestClear(collection [20]byte, instance uint64, owner [20]byte) error {
	return m.KVPut(extendRequestKey(collection, instance, owner), &storedExtendRequest{PayoutAmount: big.NewInt(0)})
}
