package state

import "fmt"

// Key layout for every table the engine and its collaborators persist. Keys
// are human-readable so operators can inspect the store directly.
func offerKey(collection [20]byte, instance uint64, owner [20]byte) []byte {
	return []byte(fmt.Sprintf("market/offer/%x/%d/%x", collection, instance, owner))
}

func refundRequestKey(collection [20]byte, instance uint64, owner [20]byte) []byte {
	return []byte(fmt.Sprintf("market/refund/%x/%d/%x", collection, instance, owner))
}

func extendRequestKey(collection [20]byte, instance uint64, owner [20]byte) []byte {
	return []byte(fmt.Sprintf("market/extend/%x/%d/%x", collection, instance, owner))
}

func custodySupplyKey(collection [20]byte) []byte {
	return []byte(fmt.Sprintf("custody/supply/%x", collection))
}

func custodyOwnerKey(collection [20]byte, instance uint64) []byte {
	return []byte(fmt.Sprintf("custody/owner/%x/%d", collection, instance))
}

func custodyOperatorKey(collection, holder, operator [20]byte) []byte {
	return []byte(fmt.Sprintf("custody/operator/%x/%x/%x", collection, holder, operator))
}

func custodyLockKey(collection [20]byte, instance uint64) []byte {
	return []byte(fmt.Sprintf("custody/lock/%x/%d", collection, instance))
}

func ledgerBalanceKey(token, account [20]byte) []byte {
	return []byte(fmt.Sprintf("ledger/balance/%x/%x", token, account))
}
