// Package commander implements the engine's line-oriented command front end.
package commander

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCommand    = errors.New("invalid command")
	ErrInvalidSubcommand = errors.New("invalid subcommand")
	ErrInvalidArguments  = errors.New("invalid arguments")
)

type Command interface {
	isCommand()
}

type AccountAction string

const (
	AccountCreate       AccountAction = "create"
	AccountDelete       AccountAction = "delete"
	AccountQuery        AccountAction = "query"
	AccountFund         AccountAction = "fund"
	AccountWithdraw     AccountAction = "withdraw"
	AccountDeposit      AccountAction = "deposit"
	AccountTransactions AccountAction = "transactions"
)

type AccountCommand struct {
	Name   string
	Action AccountAction
	Amount decimal.Decimal
	Coin   int64
	Limit  int
}

type OrderCreateCommand struct {
	Account string
	Side    orderbook.Side
	Qty     int64
	Price   decimal.Decimal
}

type OrderCancelCommand struct {
	ID orderbook.OrderID
}

type StateCommand struct{}

type TransactionsCommand struct {
	Limit int
}

type ExitCommand struct{}

func (AccountCommand) isCommand()      {}
func (OrderCreateCommand) isCommand()  {}
func (OrderCancelCommand) isCommand()  {}
func (StateCommand) isCommand()        {}
func (TransactionsCommand) isCommand() {}
func (ExitCommand) isCommand()         {}

// Parse turns one input line into a command. An empty line yields nil.
func Parse(line string) (Command, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil, nil
	}

	switch tokens[0] {
	case "exit":
		return ExitCommand{}, nil
	case "state":
		return StateCommand{}, nil
	case "transactions":
		if len(tokens) < 2 {
			return nil, ErrInvalidArguments
		}
		n, err := parseLimit(tokens[1])
		if err != nil {
			return nil, err
		}
		return TransactionsCommand{Limit: n}, nil
	case "account":
		return parseAccount(tokens)
	case "order":
		return parseOrder(tokens)
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidCommand, tokens[0])
}

func parseAccount(tokens []string) (Command, error) {
	if len(tokens) < 3 {
		return nil, ErrInvalidArguments
	}
	cmd := AccountCommand{Name: tokens[1], Action: AccountAction(tokens[2])}

	switch cmd.Action {
	case AccountCreate, AccountDelete, AccountQuery:
		return cmd, nil
	case AccountFund, AccountWithdraw:
		if len(tokens) < 4 {
			return nil, ErrInvalidArguments
		}
		amount, err := decimal.NewFromString(tokens[3])
		if err != nil || !amount.IsPositive() {
			return nil, fmt.Errorf("%w: amount %q", ErrInvalidArguments, tokens[3])
		}
		cmd.Amount = amount
		return cmd, nil
	case AccountDeposit:
		if len(tokens) < 4 {
			return nil, ErrInvalidArguments
		}
		coin, err := strconv.ParseInt(tokens[3], 10, 64)
		if err != nil || coin <= 0 {
			return nil, fmt.Errorf("%w: coin %q", ErrInvalidArguments, tokens[3])
		}
		cmd.Coin = coin
		return cmd, nil
	case AccountTransactions:
		if len(tokens) < 4 {
			return nil, ErrInvalidArguments
		}
		n, err := parseLimit(tokens[3])
		if err != nil {
			return nil, err
		}
		cmd.Limit = n
		return cmd, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidSubcommand, tokens[2])
}

func parseOrder(tokens []string) (Command, error) {
	if len(tokens) < 2 {
		return nil, ErrInvalidArguments
	}

	switch tokens[1] {
	case "cancel":
		if len(tokens) < 3 {
			return nil, ErrInvalidArguments
		}
		id, err := orderbook.ParseOrderID(tokens[2])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
		return OrderCancelCommand{ID: id}, nil
	case "create":
		if len(tokens) < 6 {
			return nil, ErrInvalidArguments
		}
		side, err := orderbook.ParseSide(tokens[3])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
		qty, err := strconv.ParseInt(tokens[4], 10, 64)
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("%w: quantity %q", ErrInvalidArguments, tokens[4])
		}
		price, err := decimal.NewFromString(tokens[5])
		if err != nil || !price.IsPositive() {
			return nil, fmt.Errorf("%w: price %q", ErrInvalidArguments, tokens[5])
		}
		return OrderCreateCommand{Account: tokens[2], Side: side, Qty: qty, Price: price}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidSubcommand, tokens[1])
}

func parseLimit(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: count %q", ErrInvalidArguments, s)
	}
	return n, nil
}
