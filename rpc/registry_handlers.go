package rpc

import (
	"errors"

	"rentmarket/core/state"
	"rentmarket/core/types"
)

type custodyMintParams struct {
	Collection string `json:"collection"`
	To         string `json:"to"`
	Quantity   uint64 `json:"quantity"`
}

type custodyApprovalParams struct {
	Collection string `json:"collection"`
	Holder     string `json:"holder"`
	Approved   bool   `json:"approved"`
}

type custodyLockParams struct {
	Collection string `json:"collection"`
	Instance   uint64 `json:"instance"`
	Caller     string `json:"caller"`
	Locker     string `json:"locker"`
}

type custodyInstanceParams struct {
	Collection string `json:"collection"`
	Instance   uint64 `json:"instance"`
	Caller     string `json:"caller"`
}

type ledgerMintParams struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type ledgerBalanceParams struct {
	Token   string `json:"token"`
	Account string `json:"account"`
}

type eventsLatestParams struct {
	Limit int `json:"limit"`
}

type custodyMintJSON struct {
	FirstInstance uint64 `json:"firstInstance"`
	Quantity      uint64 `json:"quantity"`
}

type custodyOwnerJSON struct {
	Owner string `json:"owner"`
}

type ledgerBalanceJSON struct {
	Balance string `json:"balance"`
}

func custodyError(err error) *RPCError {
	code := codeMarketInternal
	switch {
	case errors.Is(err, state.ErrInstanceNotFound):
		code = codeMarketNotFound
	case errors.Is(err, state.ErrNotHolder),
		errors.Is(err, state.ErrNotLockHolder),
		errors.Is(err, state.ErrOperatorDenied):
		code = codeMarketForbidden
	case errors.Is(err, state.ErrTransferRestricted):
		code = codeMarketConflict
	}
	return &RPCError{Code: code, Message: err.Error()}
}

func (s *Server) handleCustodyMint(req *RPCRequest) (interface{}, *RPCError) {
	var params custodyMintParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	collection, rpcErr := parseAddressParam("collection", params.Collection)
	if rpcErr != nil {
		return nil, rpcErr
	}
	to, rpcErr := parseAddressParam("to", params.To)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if params.Quantity == 0 {
		return nil, &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: "quantity must be positive"}
	}
	first, err := s.node.CustodyMint(collection, to, params.Quantity)
	if err != nil {
		return nil, custodyError(err)
	}
	return custodyMintJSON{FirstInstance: first, Quantity: params.Quantity}, nil
}

func (s *Server) handleCustodySetApproval(req *RPCRequest) (interface{}, *RPCError) {
	var params custodyApprovalParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	collection, rpcErr := parseAddressParam("collection", params.Collection)
	if rpcErr != nil {
		return nil, rpcErr
	}
	holder, rpcErr := parseAddressParam("holder", params.Holder)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.CustodySetApproval(collection, holder, params.Approved); err != nil {
		return nil, custodyError(err)
	}
	return true, nil
}

func (s *Server) handleCustodyLock(req *RPCRequest) (interface{}, *RPCError) {
	var params custodyLockParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	collection, rpcErr := parseAddressParam("collection", params.Collection)
	if rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	locker, rpcErr := parseAddressParam("locker", params.Locker)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.CustodyLock(collection, params.Instance, caller, locker); err != nil {
		return nil, custodyError(err)
	}
	return true, nil
}

func (s *Server) handleCustodyUnlock(req *RPCRequest) (interface{}, *RPCError) {
	var params custodyInstanceParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	collection, rpcErr := parseAddressParam("collection", params.Collection)
	if rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.CustodyUnlock(collection, params.Instance, caller); err != nil {
		return nil, custodyError(err)
	}
	return true, nil
}

func (s *Server) handleCustodyOwnerOf(req *RPCRequest) (interface{}, *RPCError) {
	var params custodyInstanceParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	collection, rpcErr := parseAddressParam("collection", params.Collection)
	if rpcErr != nil {
		return nil, rpcErr
	}
	owner, ok := s.node.CustodyOwnerOf(collection, params.Instance)
	if !ok {
		return nil, custodyError(state.ErrInstanceNotFound)
	}
	return custodyOwnerJSON{Owner: types.FormatAddress(owner)}, nil
}

func (s *Server) handleLedgerMint(req *RPCRequest) (interface{}, *RPCError) {
	var params ledgerMintParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	token, rpcErr := parseAddressParam("token", params.Token)
	if rpcErr != nil {
		return nil, rpcErr
	}
	to, rpcErr := parseAddressParam("to", params.To)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmountParam("amount", params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.LedgerMint(token, to, amount); err != nil {
		return nil, &RPCError{Code: codeMarketInvalidParams, Message: err.Error()}
	}
	return true, nil
}

func (s *Server) handleLedgerBalanceOf(req *RPCRequest) (interface{}, *RPCError) {
	var params ledgerBalanceParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	token, rpcErr := parseAddressParam("token", params.Token)
	if rpcErr != nil {
		return nil, rpcErr
	}
	account, rpcErr := parseAddressParam("account", params.Account)
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.node.LedgerBalanceOf(token, account)
	if err != nil {
		return nil, &RPCError{Code: codeMarketInternal, Message: err.Error()}
	}
	return ledgerBalanceJSON{Balance: balance.String()}, nil
}

func (s *Server) handleEventsLatest(req *RPCRequest) (interface{}, *RPCError) {
	limit := 0
	if len(req.Params) == 1 {
		var params eventsLatestParams
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
		limit = params.Limit
	}
	return s.node.EventsLatest(limit), nil
}
