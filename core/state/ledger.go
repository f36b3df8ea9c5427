package state

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrInsufficientBalance is returned when a transfer would overdraw the
// sender.
var ErrInsufficientBalance = errors.New("ledger: insufficient balance")

// TokenLedger is the fungible payment-asset balance ledger, keyed by (token,
// account). It plays the faucet ERC-20's role from the original repository:
// balances, minting, and guarded transfers.
type TokenLedger struct {
	manager *Manager
}

// Ledger returns the token ledger bound to the manager.
func (m *Manager) Ledger() *TokenLedger {
	if m == nil {
		return nil
	}
	return &TokenLedger{manager: m}
}

// BalanceOf returns the account's balance of the token.
func (l *TokenLedger) BalanceOf(token, account [20]byte) (*big.Int, error) {
	if l == nil || l.manager == nil {
		return nil, fmt.Errorf("ledger: unavailable")
	}
	balance := new(big.Int)
	ok, err := l.manager.KVGet(ledgerBalanceKey(token, account), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// Mint credits the account with freshly issued units of the token.
func (l *TokenLedger) Mint(token, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("ledger: mint amount must be positive")
	}
	balance, err := l.BalanceOf(token, to)
	if err != nil {
		return err
	}
	balance.Add(balance, amount)
	return l.manager.KVPut(ledgerBalanceKey(token, to), balance)
}

// Transfer moves amount units of the token between accounts, failing without
// any mutation when the sender's balance is short.
func (l *TokenLedger) Transfer(token, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("ledger: negative transfer amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBalance, err := l.BalanceOf(token, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	toBalance, err := l.BalanceOf(token, to)
	if err != nil {
		return err
	}
	fromBalance.Sub(fromBalance, amount)
	toBalance.Add(toBalance, amount)
	// Both sides land in one atomic write so no failure can leave a debit
	// without its matching credit.
	return l.manager.KVPutBatch(
		[][]byte{ledgerBalanceKey(token, from), ledgerBalanceKey(token, to)},
		[]interface{}{fromBalance, toBalance},
	)
}
