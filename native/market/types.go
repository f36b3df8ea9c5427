package market

import (
	"encoding/binary"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SecondsPerDay converts whole-day rental terms into unix time offsets.
const SecondsPerDay uint64 = 86_400

// MaxRentalTerm bounds every term expressed in days (one hundred years) so
// term*SecondsPerDay arithmetic can never wrap an end time.
const MaxRentalTerm uint64 = 36_500

// Offer is a published rental listing for one asset instance by one owner,
// keyed by (collection, instance, owner). A non-cleared offer with a non-zero
// renter is an active rental; with a zero renter it is merely listed. Clearing
// zeroes the record in place rather than deleting it.
type Offer struct {
	Collection        [20]byte
	Instance          uint64
	Owner             [20]byte
	PayAsset          [20]byte
	MinTerm           uint64
	MaxTerm           uint64
	StartDiscountTerm uint64
	Price             *big.Int
	DiscountPrice     *big.Int
	Renter            [20]byte
	EndTime           uint64
}

// Clone returns a deep copy of the offer so callers can safely mutate the
// copy without affecting the stored instance.
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	clone := *o
	if o.Price != nil {
		clone.Price = new(big.Int).Set(o.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	if o.DiscountPrice != nil {
		clone.DiscountPrice = new(big.Int).Set(o.DiscountPrice)
	} else {
		clone.DiscountPrice = big.NewInt(0)
	}
	return &clone
}

// Cleared reports whether the offer has been logically removed. The pay asset
// is zeroed when the asset is returned, which is the tombstone subsequent
// offer calls look for.
func (o *Offer) Cleared() bool {
	return o == nil || o.PayAsset == ([20]byte{})
}

// Active reports whether the offer currently has a renter in custody of the
// instance.
func (o *Offer) Active() bool {
	return o != nil && !o.Cleared() && o.Renter != ([20]byte{})
}

// ID derives the deterministic 32-byte identifier for the offer key, used in
// event payloads and lookups by indexers.
func (o *Offer) ID() [32]byte {
	if o == nil {
		return [32]byte{}
	}
	return OfferID(o.Collection, o.Instance, o.Owner)
}

// OfferID hashes an offer key into its canonical identifier.
func OfferID(collection [20]byte, instance uint64, owner [20]byte) [32]byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], instance)
	return ethcrypto.Keccak256Hash(collection[:], buf[:], owner[:])
}

// RefundRequest is a pending early-termination negotiation over an active
// rental. It exists only while the negotiation is in flight and is zeroed on
// resolution or retraction.
type RefundRequest struct {
	Collection    [20]byte
	Instance      uint64
	Owner         [20]byte
	PayoutAmount  *big.Int
	RenterAgree   bool
	LandlordAgree bool
}

// Clone returns a deep copy of the request.
func (r *RefundRequest) Clone() *RefundRequest {
	if r == nil {
		return nil
	}
	clone := *r
	if r.PayoutAmount != nil {
		clone.PayoutAmount = new(big.Int).Set(r.PayoutAmount)
	} else {
		clone.PayoutAmount = big.NewInt(0)
	}
	return &clone
}

// ExtendRequest is a pending term-extension negotiation over an active
// rental. Same lifecycle as RefundRequest, with the extra duration term.
type ExtendRequest struct {
	Collection    [20]byte
	Instance      uint64
	Owner         [20]byte
	PayoutAmount  *big.Int
	ExtendedTerm  uint64
	RenterAgree   bool
	LandlordAgree bool
}

// Clone returns a deep copy of the request.
func (r *ExtendRequest) Clone() *ExtendRequest {
	if r == nil {
		return nil
	}
	clone := *r
	if r.PayoutAmount != nil {
		clone.PayoutAmount = new(big.Int).Set(r.PayoutAmount)
	} else {
		clone.PayoutAmount = big.NewInt(0)
	}
	return &clone
}
