// Package ledger stores account balances and the trade log, and applies
// settlement to both.
//
// Lock order, shared with the order book: Ledger, then Book, then
// TransactionLog. Settle is the only place two of these are held together.
package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

func NewLedger() *Ledger {
	return &Ledger{
		accounts: make(map[string]*Account),
	}
}

func (l *Ledger) Create(name string, usd decimal.Decimal, coin int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[name]; ok {
		return fmt.Errorf("%w: %s", ErrAccountExists, name)
	}
	l.accounts[name] = &Account{Name: name, USD: usd, Coin: coin}
	return nil
}

func (l *Ledger) Delete(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[name]; !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, name)
	}
	delete(l.accounts, name)
	return nil
}

func (l *Ledger) Fund(name string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, name)
	}
	acc.USD = acc.USD.Add(amount)
	return nil
}

func (l *Ledger) Withdraw(name string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, name)
	}
	if amount.GreaterThan(acc.USD) {
		return fmt.Errorf("%w: %s has %s", ErrInsufficientFunds, name, acc.USD)
	}
	acc.USD = acc.USD.Sub(amount)
	return nil
}

// DepositCoin credits instrument units to an existing account.
func (l *Ledger) DepositCoin(name string, qty int64) error {
	if qty <= 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, name)
	}
	acc.Coin += qty
	return nil
}

func (l *Ledger) Balance(name string) (Balance, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acc, ok := l.accounts[name]
	if !ok {
		return Balance{}, fmt.Errorf("%w: %s", ErrAccountNotFound, name)
	}
	return Balance{USD: acc.USD, Coin: acc.Coin}, nil
}

// Accounts returns copies of every account sorted by name.
func (l *Ledger) Accounts() []Account {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Account, 0, len(l.accounts))
	for _, acc := range l.accounts {
		out = append(out, *acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// account returns the named account, creating an empty one if needed.
// Caller holds l.mu.
func (l *Ledger) account(name string) *Account {
	acc, ok := l.accounts[name]
	if !ok {
		acc = &Account{Name: name}
		l.accounts[name] = acc
	}
	return acc
}
