package market

import (
	"errors"
	"math/big"
)

// FeeDenominator is the fixed denominator the marketplace fee rate is
// expressed over. A rate of 10 therefore marks prices up by 5%.
const FeeDenominator = 200

var (
	errFeeRateOutOfRange = errors.New("market: fee rate out of range")
	errZeroFeeRecipient  = errors.New("market: fee recipient must not be the zero address")
)

// FeeConfig captures the process-wide marketplace fee configuration. It is
// fixed at engine construction; administrative mutation happens by restarting
// the engine with a new configuration.
type FeeConfig struct {
	Rate      uint64
	Recipient [20]byte
}

// Validate reports whether the configuration can back an engine.
func (c FeeConfig) Validate() error {
	if c.Rate > FeeDenominator {
		return errFeeRateOutOfRange
	}
	if c.Recipient == ([20]byte{}) {
		return errZeroFeeRecipient
	}
	return nil
}

// WithFee converts a nominal price into its fee-inclusive form:
// nominal + floor(nominal*rate/denominator), truncating integer division.
// Stored prices are always fee-inclusive; the markup is applied exactly once
// when a price is first recorded.
func (c FeeConfig) WithFee(nominal *big.Int) *big.Int {
	if nominal == nil || nominal.Sign() == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(nominal, new(big.Int).SetUint64(c.Rate))
	fee.Div(fee, big.NewInt(FeeDenominator))
	return fee.Add(fee, nominal)
}

// RentalCost applies the proration rule to an offer for the requested term in
// days: full daily rate up to the discount threshold, discounted daily rate
// for every day past it. Prices on the offer are already fee-inclusive.
func RentalCost(o *Offer, term uint64) *big.Int {
	if o == nil {
		return big.NewInt(0)
	}
	price := o.Price
	if price == nil {
		price = big.NewInt(0)
	}
	if term <= o.StartDiscountTerm {
		return new(big.Int).Mul(price, new(big.Int).SetUint64(term))
	}
	discount := o.DiscountPrice
	if discount == nil {
		discount = big.NewInt(0)
	}
	base := new(big.Int).Mul(price, new(big.Int).SetUint64(o.StartDiscountTerm))
	rest := new(big.Int).Mul(discount, new(big.Int).SetUint64(term-o.StartDiscountTerm))
	return base.Add(base, rest)
}
