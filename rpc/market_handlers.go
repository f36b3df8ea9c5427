package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"rentmarket/core/state"
	"rentmarket/core/types"
	"rentmarket/native/market"
)

type offerParams struct {
	Caller            string `json:"caller"`
	Collection        string `json:"collection"`
	PayAsset          string `json:"payAsset"`
	Instance          uint64 `json:"instance"`
	MinTerm           uint64 `json:"minTerm"`
	MaxTerm           uint64 `json:"maxTerm"`
	StartDiscountTerm uint64 `json:"startDiscountTerm"`
	Price             string `json:"price"`
	DiscountPrice     string `json:"discountPrice"`
}

type offerAllParams struct {
	Caller     string   `json:"caller"`
	Collection string   `json:"collection"`
	PayAsset   string   `json:"payAsset"`
	Instances  []uint64 `json:"instances"`
	MinTerms   []uint64 `json:"minTerms"`
	MaxTerms   []uint64 `json:"maxTerms"`
	Prices     []string `json:"prices"`
}

type setDiscountParams struct {
	Caller             string   `json:"caller"`
	Collection         string   `json:"collection"`
	Instances          []uint64 `json:"instances"`
	StartDiscountTerms []uint64 `json:"startDiscountTerms"`
	DiscountPrices     []string `json:"discountPrices"`
}

type rentParams struct {
	Caller     string `json:"caller"`
	Collection string `json:"collection"`
	Owner      string `json:"owner"`
	PayAsset   string `json:"payAsset"`
	Instance   uint64 `json:"instance"`
	Term       uint64 `json:"term"`
}

type backTokenParams struct {
	Caller     string `json:"caller"`
	Collection string `json:"collection"`
	Owner      string `json:"owner"`
	Instance   uint64 `json:"instance"`
}

type refundRequestParams struct {
	Caller       string `json:"caller"`
	Collection   string `json:"collection"`
	Owner        string `json:"owner"`
	Instance     uint64 `json:"instance"`
	PayoutAmount string `json:"payoutAmount"`
	Agree        bool   `json:"agree"`
}

type extendRequestParams struct {
	Caller       string `json:"caller"`
	Collection   string `json:"collection"`
	Owner        string `json:"owner"`
	Instance     uint64 `json:"instance"`
	PayoutAmount string `json:"payoutAmount"`
	ExtendedTerm uint64 `json:"extendedTerm"`
}

type offerKeyParams struct {
	Collection string `json:"collection"`
	Instance   uint64 `json:"instance"`
	Owner      string `json:"owner"`
}

type offerJSON struct {
	ID                string `json:"id"`
	Collection        string `json:"collection"`
	Instance          uint64 `json:"instance"`
	Owner             string `json:"owner"`
	PayAsset          string `json:"payAsset"`
	MinTerm           uint64 `json:"minTerm"`
	MaxTerm           uint64 `json:"maxTerm"`
	StartDiscountTerm uint64 `json:"startDiscountTerm"`
	Price             string `json:"price"`
	DiscountPrice     string `json:"discountPrice"`
	Renter            string `json:"renter,omitempty"`
	EndTime           uint64 `json:"endTime,omitempty"`
	Cleared           bool   `json:"cleared"`
	Active            bool   `json:"active"`
}

type refundRequestJSON struct {
	PayoutAmount  string `json:"payoutAmount"`
	RenterAgree   bool   `json:"renterAgree"`
	LandlordAgree bool   `json:"landlordAgree"`
}

type extendRequestJSON struct {
	PayoutAmount  string `json:"payoutAmount"`
	ExtendedTerm  uint64 `json:"extendedTerm"`
	RenterAgree   bool   `json:"renterAgree"`
	LandlordAgree bool   `json:"landlordAgree"`
}

type acceptResultJSON struct {
	Resolved bool `json:"resolved"`
}

type feeInfoJSON struct {
	Rate        uint64 `json:"rate"`
	Denominator uint64 `json:"denominator"`
	Recipient   string `json:"recipient"`
}

func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: "exactly one parameter object expected"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: err.Error()}
	}
	return nil
}

func parseAddressParam(field, value string) ([20]byte, *RPCError) {
	addr, err := types.ParseAddress(value)
	if err != nil {
		return [20]byte{}, &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: fmt.Sprintf("%s: %v", field, err)}
	}
	return addr, nil
}

func parseAmountParam(field, value string) (*big.Int, *RPCError) {
	if value == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok || amount.Sign() < 0 {
		return nil, &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: fmt.Sprintf("%s must be a non-negative base-10 integer", field)}
	}
	return amount, nil
}

func parseAmountsParam(field string, values []string) ([]*big.Int, *RPCError) {
	amounts := make([]*big.Int, len(values))
	for i, value := range values {
		amount, rpcErr := parseAmountParam(field, value)
		if rpcErr != nil {
			return nil, rpcErr
		}
		amounts[i] = amount
	}
	return amounts, nil
}

func marketError(err error) *RPCError {
	code := codeMarketInternal
	switch {
	case errors.Is(err, market.ErrInvalidPayAsset),
		errors.Is(err, market.ErrInvalidAmount),
		errors.Is(err, market.ErrInvalidTerm),
		errors.Is(err, market.ErrLengthMismatch):
		code = codeMarketInvalidParams
	case errors.Is(err, market.ErrOfferNotFound),
		errors.Is(err, market.ErrNoPendingRequest):
		code = codeMarketNotFound
	case errors.Is(err, market.ErrUnauthorized),
		errors.Is(err, market.ErrNotApproved),
		errors.Is(err, market.ErrInstanceLocked):
		code = codeMarketForbidden
	case errors.Is(err, market.ErrDuplicateOffer),
		errors.Is(err, market.ErrAlreadyRented),
		errors.Is(err, market.ErrTermOutOfRange),
		errors.Is(err, market.ErrRentalStillActive),
		errors.Is(err, market.ErrNotActiveRental),
		errors.Is(err, market.ErrPayoutMismatch):
		code = codeMarketConflict
	case errors.Is(err, state.ErrInsufficientBalance),
		errors.Is(err, state.ErrInstanceNotFound),
		errors.Is(err, state.ErrNotHolder),
		errors.Is(err, state.ErrTransferRestricted),
		errors.Is(err, state.ErrOperatorDenied):
		code = codeMarketTransfer
	}
	return &RPCError{Code: code, Message: err.Error()}
}

func offerToJSON(o *market.Offer) offerJSON {
	id := o.ID()
	out := offerJSON{
		ID:                fmt.Sprintf("%x", id[:]),
		Collection:        types.FormatAddress(o.Collection),
		Instance:          o.Instance,
		Owner:             types.FormatAddress(o.Owner),
		PayAsset:          types.FormatAddress(o.PayAsset),
		MinTerm:           o.MinTerm,
		MaxTerm:           o.MaxTerm,
		StartDiscountTerm: o.StartDiscountTerm,
		Price:             o.Price.String(),
		DiscountPrice:     o.DiscountPrice.String(),
		Cleared:           o.Cleared(),
		Active:            o.Active(),
	}
	if o.Active() {
		out.Renter = types.FormatAddress(o.Renter)
		out.EndTime = o.EndTime
	}
	return out
}

func (s *Server) handleMarketOffer(req *RPCRequest) (interface{}, *RPCError) {
	var params offerParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	collection, rpcErr := parseAddressParam("collection", params.Collection)
	if rpcErr != nil {
		return nil, rpcErr
	}
	payAsset, rpcErr := parseAddressParam("payAsset", params.PayAsset)
	if rpcErr != nil {
		return nil, rpcErr
	}
	price, rpcErr := parseAmountParam("price", params.Price)
	if rpcErr != nil {
		return nil, rpcErr
	}
	discountPrice, rpcErr := parseAmountParam("discountPrice", params.DiscountPrice)
	if rpcErr != nil {
		return nil, rpcErr
	}
	offer, err := s.node.MarketOffer(caller, collection, payAsset, params.Instance, params.MinTerm, params.MaxTerm, params.StartDiscountTerm, price, discountPrice)
	if err != nil {
		return nil, marketError(err)
	}
	return offerToJSON(offer), nil
}

func (s *Server) handleMarketOfferAll(req *RPCRequest) (interface{}, *RPCError) {
	var params offerAllParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	collection, rpcErr := parseAddressParam("collection", params.Collection)
	if rpcErr != nil {
		return nil, rpcErr
	}
	payAsset, rpcErr := parseAddressParam("payAsset", params.PayAsset)
	if rpcErr != nil {
		return nil, rpcErr
	}
	prices, rpcErr := parseAmountsParam("prices", params.Prices)
	if rpcErr != nil {
		return nil, rpcErr
	}
	offers, err := s.node.MarketOfferAll(caller, collection, payAsset, params.Instances, params.MinTerms, params.MaxTerms, prices)
	if err != nil {
		return nil, marketError(err)
	}
	out := make([]offerJSON, len(offers))
	for i, offer := range offers {
		out[i] = offerToJSON(offer)
	}
	return out, nil
}

func (s *Server) handleMarketSetDiscountData(req *RPCRequest) (interface{}, *RPCError) {
	var params setDiscountParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	collection, rpcErr := parseAddressParam("collection", params.Collection)
	if rpcErr != nil {
		return nil, rpcErr
	}
	discountPrices, rpcErr := parseAmountsParam("discountPrices", params.DiscountPrices)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.MarketSetDiscountData(caller, collection, params.Instances, params.StartDiscountTerms, discountPrices); err != nil {
		return nil, marketError(err)
	}
	return true, nil
}

func (s *Server) handleMarketRent(req *RPCRequest) (interface{}, *RPCError) {
	var params rentParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	collection, rpcErr := parseAddressParam("collection", params.Collection)
	if rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := parseAddressParam("owner", params.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	payAsset, rpcErr := parseAddressParam("payAsset", params.PayAsset)
	if rpcErr != nil {
		return nil, rpcErr
	}
	offer, err := s.node.MarketRent(caller, collection, owner, payAsset, params.Instance, params.Term)
	if err != nil {
		return nil, marketError(err)
	}
	return offerToJSON(offer), nil
}

func (s *Server) handleMarketBackToken(req *RPCRequest) (interface{}, *RPCError) {
	return s.handleReclaim(req, false)
}

func (s *Server) handleMarketBackTokenAdmin(req *RPCRequest) (interface{}, *RPCError) {
	return s.handleReclaim(req, true)
}

func (s *Server) handleReclaim(req *RPCRequest, admin bool) (interface{}, *RPCError) {
	var params backTokenParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	collection, rpcErr := parseAddressParam("collection", params.Collection)
	if rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := parseAddressParam("owner", params.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var err error
	if admin {
		err = s.node.MarketBackTokenAdmin(caller, collection, owner, params.Instance)
	} else {
		err = s.node.MarketBackToken(caller, collection, owner, params.Instance)
	}
	if err != nil {
		return nil, marketError(err)
	}
	return true, nil
}

func (s *Server) handleMarketRequestRefundToken(req *RPCRequest) (interface{}, *RPCError) {
	var params refundRequestParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, collection, owner, payout, rpcErr := s.negotiationArgs(params.Caller, params.Collection, params.Owner, params.PayoutAmount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	request, err := s.node.MarketRequestRefundToken(caller, collection, owner, params.Instance, payout, params.Agree)
	if err != nil {
		return nil, marketError(err)
	}
	return refundRequestJSON{
		PayoutAmount:  request.PayoutAmount.String(),
		RenterAgree:   request.RenterAgree,
		LandlordAgree: request.LandlordAgree,
	}, nil
}

func (s *Server) handleMarketAcceptRefundToken(req *RPCRequest) (interface{}, *RPCError) {
	var params refundRequestParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, collection, owner, payout, rpcErr := s.negotiationArgs(params.Caller, params.Collection, params.Owner, params.PayoutAmount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	resolved, err := s.node.MarketAcceptRefundToken(caller, collection, owner, params.Instance, payout, params.Agree)
	if err != nil {
		return nil, marketError(err)
	}
	return acceptResultJSON{Resolved: resolved}, nil
}

func (s *Server) handleMarketRequestExtendRent(req *RPCRequest) (interface{}, *RPCError) {
	var params extendRequestParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, collection, owner, payout, rpcErr := s.negotiationArgs(params.Caller, params.Collection, params.Owner, params.PayoutAmount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	request, err := s.node.MarketRequestExtendRent(caller, collection, owner, params.Instance, payout, params.ExtendedTerm)
	if err != nil {
		return nil, marketError(err)
	}
	return extendRequestJSON{
		PayoutAmount:  request.PayoutAmount.String(),
		ExtendedTerm:  request.ExtendedTerm,
		RenterAgree:   request.RenterAgree,
		LandlordAgree: request.LandlordAgree,
	}, nil
}

func (s *Server) handleMarketAcceptExtendRent(req *RPCRequest) (interface{}, *RPCError) {
	var params refundRequestParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, collection, owner, payout, rpcErr := s.negotiationArgs(params.Caller, params.Collection, params.Owner, params.PayoutAmount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	resolved, err := s.node.MarketAcceptExtendRent(caller, collection, owner, params.Instance, payout, params.Agree)
	if err != nil {
		return nil, marketError(err)
	}
	return acceptResultJSON{Resolved: resolved}, nil
}

func (s *Server) negotiationArgs(callerStr, collectionStr, ownerStr, payoutStr string) ([20]byte, [20]byte, [20]byte, *big.Int, *RPCError) {
	caller, rpcErr := parseAddressParam("caller", callerStr)
	if rpcErr != nil {
		return [20]byte{}, [20]byte{}, [20]byte{}, nil, rpcErr
	}
	collection, rpcErr := parseAddressParam("collection", collectionStr)
	if rpcErr != nil {
		return [20]byte{}, [20]byte{}, [20]byte{}, nil, rpcErr
	}
	owner, rpcErr := parseAddressParam("owner", ownerStr)
	if rpcErr != nil {
		return [20]byte{}, [20]byte{}, [20]byte{}, nil, rpcErr
	}
	payout, rpcErr := parseAmountParam("payoutAmount", payoutStr)
	if rpcErr != nil {
		return [20]byte{}, [20]byte{}, [20]byte{}, nil, rpcErr
	}
	return caller, collection, owner, payout, nil
}

func (s *Server) handleMarketGetOffer(req *RPCRequest) (interface{}, *RPCError) {
	collection, instance, owner, rpcErr := s.offerKeyArgs(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	offer, ok := s.node.MarketGetOffer(collection, instance, owner)
	if !ok {
		return nil, marketError(market.ErrOfferNotFound)
	}
	return offerToJSON(offer), nil
}

func (s *Server) handleMarketGetRefundRequest(req *RPCRequest) (interface{}, *RPCError) {
	collection, instance, owner, rpcErr := s.offerKeyArgs(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	request, ok := s.node.MarketGetRefundRequest(collection, instance, owner)
	if !ok {
		return nil, marketError(market.ErrNoPendingRequest)
	}
	return refundRequestJSON{
		PayoutAmount:  request.PayoutAmount.String(),
		RenterAgree:   request.RenterAgree,
		LandlordAgree: request.LandlordAgree,
	}, nil
}

func (s *Server) handleMarketGetExtendRequest(req *RPCRequest) (interface{}, *RPCError) {
	collection, instance, owner, rpcErr := s.offerKeyArgs(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	request, ok := s.node.MarketGetExtendRequest(collection, instance, owner)
	if !ok {
		return nil, marketError(market.ErrNoPendingRequest)
	}
	return extendRequestJSON{
		PayoutAmount:  request.PayoutAmount.String(),
		ExtendedTerm:  request.ExtendedTerm,
		RenterAgree:   request.RenterAgree,
		LandlordAgree: request.LandlordAgree,
	}, nil
}

func (s *Server) handleMarketFeeInfo(req *RPCRequest) (interface{}, *RPCError) {
	fees := s.node.FeeConfig()
	return feeInfoJSON{
		Rate:        fees.Rate,
		Denominator: market.FeeDenominator,
		Recipient:   types.FormatAddress(fees.Recipient),
	}, nil
}

func (s *Server) offerKeyArgs(req *RPCRequest) ([20]byte, uint64, [20]byte, *RPCError) {
	var params offerKeyParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return [20]byte{}, 0, [20]byte{}, rpcErr
	}
	collection, rpcErr := parseAddressParam("collection", params.Collection)
	if rpcErr != nil {
		return [20]byte{}, 0, [20]byte{}, rpcErr
	}
	owner, rpcErr := parseAddressParam("owner", params.Owner)
	if rpcErr != nil {
		return [20]byte{}, 0, [20]byte{}, rpcErr
	}
	return collection, params.Instance, owner, nil
}
