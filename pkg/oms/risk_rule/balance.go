package riskrule

import (
	"errors"
	"fmt"

	"github.com/joripage/matching-engine/pkg/ledger"
	"github.com/joripage/matching-engine/pkg/orderbook"
)

type BalanceReader interface {
	Balance(account string) (ledger.Balance, error)
}

// BalanceRule requires a buyer to hold qty*price USD and a seller qty coin.
// Nothing is reserved.
type BalanceRule struct {
	ledger BalanceReader
}

func NewBalanceRule(l BalanceReader) *BalanceRule {
	return &BalanceRule{ledger: l}
}

func (r *BalanceRule) Check(order *orderbook.Order) error {
	bal, err := r.ledger.Balance(order.Account)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, order.Account)
	}
	if err != nil {
		return err
	}

	switch order.Side {
	case orderbook.BUY:
		need := order.Notional()
		if bal.USD.LessThan(need) {
			return fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, need, bal.USD)
		}
	case orderbook.SELL:
		if bal.Coin < order.Qty {
			return fmt.Errorf("%w: need %d, have %d", ErrInsufficientCoin, order.Qty, bal.Coin)
		}
	}
	return nil
}
