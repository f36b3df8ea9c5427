package state

import (
	"errors"
	"fmt"
)

var (
	ErrInstanceNotFound   = errors.New("custody: instance not found")
	ErrNotHolder          = errors.New("custody: caller does not hold instance")
	ErrTransferRestricted = errors.New("custody: instance locked by third party")
	ErrOperatorDenied     = errors.New("custody: operator not approved")
	ErrNotLockHolder      = errors.New("custody: caller does not hold the lock")
)

// CustodyRegistry is the ownership and transfer-authorization registry for
// non-fungible asset instances. It plays the role the lockable NFT contract
// plays next to the original marketplace: sequential minting per collection,
// operator approvals, third-party transfer locks, and authorized transfers.
type CustodyRegistry struct {
	manager *Manager
}

// Custody returns the custody registry bound to the manager.
func (m *Manager) Custody() *CustodyRegistry {
	if m == nil {
		return nil
	}
	return &CustodyRegistry{manager: m}
}

type storedLock struct {
	Locker [20]byte
	Locked bool
}

// Mint assigns qty sequential instance identifiers in the collection to the
// recipient and returns the first of them.
func (r *CustodyRegistry) Mint(collection, to [20]byte, qty uint64) (uint64, error) {
	if r == nil || r.manager == nil {
		return 0, fmt.Errorf("custody: registry unavailable")
	}
	if to == ([20]byte{}) {
		return 0, fmt.Errorf("custody: mint to zero address")
	}
	if qty == 0 {
		return 0, fmt.Errorf("custody: mint quantity must be positive")
	}
	var supply uint64
	if _, err := r.manager.KVGet(custodySupplyKey(collection), &supply); err != nil {
		return 0, err
	}
	for i := uint64(0); i < qty; i++ {
		if err := r.manager.KVPut(custodyOwnerKey(collection, supply+i), &to); err != nil {
			return 0, err
		}
	}
	next := supply + qty
	if err := r.manager.KVPut(custodySupplyKey(collection), &next); err != nil {
		return 0, err
	}
	return supply, nil
}

// TotalSupply returns the number of instances minted in the collection.
func (r *CustodyRegistry) TotalSupply(collection [20]byte) (uint64, error) {
	var supply uint64
	if _, err := r.manager.KVGet(custodySupplyKey(collection), &supply); err != nil {
		return 0, err
	}
	return supply, nil
}

// OwnerOf returns the current holder of the instance.
func (r *CustodyRegistry) OwnerOf(collection [20]byte, instance uint64) ([20]byte, bool) {
	var holder [20]byte
	ok, err := r.manager.KVGet(custodyOwnerKey(collection, instance), &holder)
	if err != nil || !ok {
		return [20]byte{}, false
	}
	return holder, true
}

// SetApprovalForAll grants or revokes an operator's right to transfer every
// instance the holder owns in the collection.
func (r *CustodyRegistry) SetApprovalForAll(collection, holder, operator [20]byte, approved bool) error {
	return r.manager.KVPut(custodyOperatorKey(collection, holder, operator), &approved)
}

// IsApprovedForAll reports whether the operator may transfer on behalf of the
// holder within the collection.
func (r *CustodyRegistry) IsApprovedForAll(collection, holder, operator [20]byte) (bool, error) {
	var approved bool
	ok, err := r.manager.KVGet(custodyOperatorKey(collection, holder, operator), &approved)
	if err != nil {
		return false, err
	}
	return ok && approved, nil
}

// Lock restricts transfers of the instance, naming the third party that alone
// may lift the restriction. Only the current holder can place a lock.
func (r *CustodyRegistry) Lock(collection [20]byte, instance uint64, caller, locker [20]byte) error {
	holder, ok := r.OwnerOf(collection, instance)
	if !ok {
		return ErrInstanceNotFound
	}
	if holder != caller {
		return ErrNotHolder
	}
	return r.manager.KVPut(custodyLockKey(collection, instance), &storedLock{Locker: locker, Locked: true})
}

// Unlock lifts a transfer restriction. Only the named lock holder can do so.
func (r *CustodyRegistry) Unlock(collection [20]byte, instance uint64, caller [20]byte) error {
	var lock storedLock
	ok, err := r.manager.KVGet(custodyLockKey(collection, instance), &lock)
	if err != nil {
		return err
	}
	if !ok || !lock.Locked {
		return nil
	}
	if lock.Locker != caller {
		return ErrNotLockHolder
	}
	return r.manager.KVPut(custodyLockKey(collection, instance), &storedLock{})
}

// IsLocked reports whether a third party currently restricts transfers of the
// instance.
func (r *CustodyRegistry) IsLocked(collection [20]byte, instance uint64) (bool, error) {
	var lock storedLock
	ok, err := r.manager.KVGet(custodyLockKey(collection, instance), &lock)
	if err != nil {
		return false, err
	}
	return ok && lock.Locked, nil
}

// Transfer moves custody of the instance from its holder to the recipient on
// the authority of the supplied operator. The operator must be the holder or
// hold a collection-wide approval, and the instance must not be locked.
func (r *CustodyRegistry) Transfer(collection [20]byte, instance uint64, from, to, operator [20]byte) error {
	holder, ok := r.OwnerOf(collection, instance)
	if !ok {
		return ErrInstanceNotFound
	}
	if holder != from {
		return ErrNotHolder
	}
	locked, err := r.IsLocked(collection, instance)
	if err != nil {
		return err
	}
	if locked {
		return ErrTransferRestricted
	}
	if operator != from {
		approved, err := r.IsApprovedForAll(collection, from, operator)
		if err != nil {
			return err
		}
		if !approved {
			return ErrOperatorDenied
		}
	}
	return r.manager.KVPut(custodyOwnerKey(collection, instance), &to)
}

// OperatorCustody adapts the registry to the engine's custody collaborator
// interface, binding the marketplace's own operator identity to every call.
type OperatorCustody struct {
	registry *CustodyRegistry
	operator [20]byte
}

// WithOperator returns an adapter that transfers on the named operator's
// authority.
func (r *CustodyRegistry) WithOperator(operator [20]byte) *OperatorCustody {
	return &OperatorCustody{registry: r, operator: operator}
}

// IsApproved reports whether the holder owns the instance and has granted the
// marketplace operator a collection-wide approval.
func (c *OperatorCustody) IsApproved(collection [20]byte, instance uint64, holder [20]byte) (bool, error) {
	actual, ok := c.registry.OwnerOf(collection, instance)
	if !ok || actual != holder {
		return false, nil
	}
	return c.registry.IsApprovedForAll(collection, holder, c.operator)
}

// IsLocked reports whether the instance is transfer-restricted.
func (c *OperatorCustody) IsLocked(collection [20]byte, instance uint64) (bool, error) {
	return c.registry.IsLocked(collection, instance)
}

// Transfer moves the instance between holders on the marketplace's authority.
func (c *OperatorCustody) Transfer(collection [20]byte, instance uint64, from, to [20]byte) error {
	return c.registry.Transfer(collection, instance, from, to, c.operator)
}
