package core

import (
	"math/big"
	"sync"

	"rentmarket/core/events"
	"rentmarket/core/state"
	"rentmarket/core/types"
	"rentmarket/native/market"
	"rentmarket/storage"
)

// Node is the central controller, wiring the marketplace engine to its state
// backend and collaborator registries. Every state-mutating operation runs to
// completion under a single mutex, giving operations on the same offer key a
// total submission order with no interleaving.
type Node struct {
	stateMu sync.Mutex

	db      storage.Database
	manager *state.Manager
	engine  *market.Engine
	custody *state.CustodyRegistry
	ledger  *state.TokenLedger
	events  *events.Buffer

	operator [20]byte
	admin    [20]byte
}

// NewNode builds a node over the supplied database. The operator identity is
// the marketplace's own account in the custody registry; the admin identity is
// the only caller BackTokenAdmin accepts.
func NewNode(db storage.Database, fees market.FeeConfig, admin, operator [20]byte) (*Node, error) {
	manager := state.NewManager(db)
	engine, err := market.NewEngine(fees)
	if err != nil {
		return nil, err
	}
	custody := manager.Custody()
	ledger := manager.Ledger()
	buffer := events.NewBuffer(512)

	engine.SetState(manager)
	engine.SetCustody(custody.WithOperator(operator))
	engine.SetLedger(ledger)
	engine.SetAdmin(admin)
	engine.SetEmitter(buffer)

	return &Node{
		db:       db,
		manager:  manager,
		engine:   engine,
		custody:  custody,
		ledger:   ledger,
		events:   buffer,
		operator: operator,
		admin:    admin,
	}, nil
}

// Engine exposes the underlying engine for tests that need to adjust its
// clock.
func (n *Node) Engine() *market.Engine { return n.engine }

// FeeConfig returns the fee configuration the node was started with.
func (n *Node) FeeConfig() market.FeeConfig { return n.engine.FeeConfig() }

// Operator returns the marketplace's custody operator identity.
func (n *Node) Operator() [20]byte { return n.operator }

// --- market operations ---

func (n *Node) MarketOffer(caller, collection, payAsset [20]byte, instance uint64, minTerm, maxTerm, startDiscountTerm uint64, price, discountPrice *big.Int) (*market.Offer, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.Offer(caller, collection, payAsset, instance, minTerm, maxTerm, startDiscountTerm, price, discountPrice)
}

func (n *Node) MarketOfferAll(caller, collection, payAsset [20]byte, instances []uint64, minTerms, maxTerms []uint64, prices []*big.Int) ([]*market.Offer, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.OfferAll(caller, collection, payAsset, instances, minTerms, maxTerms, prices)
}

func (n *Node) MarketSetDiscountData(caller, collection [20]byte, instances []uint64, startDiscountTerms []uint64, discountPrices []*big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.SetDiscountData(caller, collection, instances, startDiscountTerms, discountPrices)
}

func (n *Node) MarketRent(caller, collection, owner, payAsset [20]byte, instance uint64, term uint64) (*market.Offer, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.Rent(caller, collection, owner, payAsset, instance, term)
}

func (n *Node) MarketBackToken(caller, collection, owner [20]byte, instance uint64) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.BackToken(caller, collection, owner, instance)
}

func (n *Node) MarketBackTokenAdmin(caller, collection, owner [20]byte, instance uint64) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.BackTokenAdmin(caller, collection, owner, instance)
}

func (n *Node) MarketRequestRefundToken(caller, collection, owner [20]byte, instance uint64, payout *big.Int, agree bool) (*market.RefundRequest, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.RequestRefundToken(caller, collection, owner, instance, payout, agree)
}

func (n *Node) MarketAcceptRefundToken(caller, collection, owner [20]byte, instance uint64, payout *big.Int, agree bool) (bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.AcceptRefundToken(caller, collection, owner, instance, payout, agree)
}

func (n *Node) MarketRequestExtendRent(caller, collection, owner [20]byte, instance uint64, payout *big.Int, extendedTerm uint64) (*market.ExtendRequest, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.RequestExtendRent(caller, collection, owner, instance, payout, extendedTerm)
}

func (n *Node) MarketAcceptExtendRent(caller, collection, owner [20]byte, instance uint64, payout *big.Int, agree bool) (bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.AcceptExtendRent(caller, collection, owner, instance, payout, agree)
}

// --- market queries ---

func (n *Node) MarketGetOffer(collection [20]byte, instance uint64, owner [20]byte) (*market.Offer, bool) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.GetOffer(collection, instance, owner)
}

func (n *Node) MarketGetRefundRequest(collection [20]byte, instance uint64, owner [20]byte) (*market.RefundRequest, bool) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.GetRefundRequest(collection, instance, owner)
}

func (n *Node) MarketGetExtendRequest(collection [20]byte, instance uint64, owner [20]byte) (*market.ExtendRequest, bool) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.GetExtendRequest(collection, instance, owner)
}

// --- custody administration ---

func (n *Node) CustodyMint(collection, to [20]byte, qty uint64) (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.custody.Mint(collection, to, qty)
}

func (n *Node) CustodySetApproval(collection, holder [20]byte, approved bool) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.custody.SetApprovalForAll(collection, holder, n.operator, approved)
}

func (n *Node) CustodyLock(collection [20]byte, instance uint64, caller, locker [20]byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.custody.Lock(collection, instance, caller, locker)
}

func (n *Node) CustodyUnlock(collection [20]byte, instance uint64, caller [20]byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.custody.Unlock(collection, instance, caller)
}

func (n *Node) CustodyOwnerOf(collection [20]byte, instance uint64) ([20]byte, bool) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.custody.OwnerOf(collection, instance)
}

// --- ledger administration ---

func (n *Node) LedgerMint(token, to [20]byte, amount *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.ledger.Mint(token, to, amount)
}

func (n *Node) LedgerBalanceOf(token, account [20]byte) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.ledger.BalanceOf(token, account)
}

// --- events ---

func (n *Node) EventsLatest(limit int) []*types.Event {
	return n.events.Latest(limit)
}
