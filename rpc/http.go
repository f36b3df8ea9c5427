package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rentmarket/core"
	"rentmarket/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// Stable error codes for marketplace failures, one per failure class.
const (
	codeMarketInvalidParams = -32031
	codeMarketNotFound      = -32032
	codeMarketForbidden     = -32033
	codeMarketConflict      = -32034
	codeMarketTransfer      = -32035
	codeMarketInternal      = -32036
)

// Server exposes the node over JSON-RPC 2.0. Mutating methods require the
// bearer token from RENTMARKET_RPC_TOKEN when one is configured.
type Server struct {
	node      *core.Node
	authToken string
}

func NewServer(node *core.Node) *Server {
	token := strings.TrimSpace(os.Getenv("RENTMARKET_RPC_TOKEN"))
	return &Server{node: node, authToken: token}
}

// Router assembles the HTTP surface: the RPC endpoint plus health and
// metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.Router())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// handlerFunc decodes the request parameters and executes one RPC method.
type handlerFunc func(req *RPCRequest) (interface{}, *RPCError)

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	metrics := observability.RPCMetrics()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", nil)
		return
	}

	handler, mutating := s.lookup(req.Method)
	if handler == nil {
		metrics.Observe(req.Method, "not_found", start)
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	if mutating {
		if authErr := s.requireAuth(r); authErr != nil {
			metrics.Observe(req.Method, "unauthorized", start)
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}

	result, rpcErr := handler(&req)
	if rpcErr != nil {
		metrics.Observe(req.Method, "error", start)
		metrics.ObserveError(req.Method, strconv.Itoa(rpcErr.Code))
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	metrics.Observe(req.Method, "ok", start)
	writeResult(w, req.ID, result)
}

// lookup resolves a method name to its handler and reports whether the
// method mutates state (and therefore requires auth).
func (s *Server) lookup(method string) (handlerFunc, bool) {
	switch method {
	case "market_offer":
		return s.handleMarketOffer, true
	case "market_offerAll":
		return s.handleMarketOfferAll, true
	case "market_setDiscountData":
		return s.handleMarketSetDiscountData, true
	case "market_rent":
		return s.handleMarketRent, true
	case "market_backToken":
		return s.handleMarketBackToken, true
	case "market_backTokenAdmin":
		return s.handleMarketBackTokenAdmin, true
	case "market_requestRefundToken":
		return s.handleMarketRequestRefundToken, true
	case "market_acceptRefundToken":
		return s.handleMarketAcceptRefundToken, true
	case "market_requestExtendRent":
		return s.handleMarketRequestExtendRent, true
	case "market_acceptExtendRent":
		return s.handleMarketAcceptExtendRent, true
	case "market_getOffer":
		return s.handleMarketGetOffer, false
	case "market_getRefundRequest":
		return s.handleMarketGetRefundRequest, false
	case "market_getExtendRequest":
		return s.handleMarketGetExtendRequest, false
	case "market_feeInfo":
		return s.handleMarketFeeInfo, false
	case "custody_mint":
		return s.handleCustodyMint, true
	case "custody_setApproval":
		return s.handleCustodySetApproval, true
	case "custody_lock":
		return s.handleCustodyLock, true
	case "custody_unlock":
		return s.handleCustodyUnlock, true
	case "custody_ownerOf":
		return s.handleCustodyOwnerOf, false
	case "ledger_mint":
		return s.handleLedgerMint, true
	case "ledger_balanceOf":
		return s.handleLedgerBalanceOf, false
	case "events_latest":
		return s.handleEventsLatest, false
	default:
		return nil, false
	}
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}
