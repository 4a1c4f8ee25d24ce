package commander

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/joripage/matching-engine/pkg/ledger"
	"github.com/joripage/matching-engine/pkg/logging"
	"github.com/joripage/matching-engine/pkg/oms"
	"github.com/joripage/matching-engine/pkg/oms/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const prompt = "Enter Command: "

// Commander reads commands from a line stream and drives the engine.
type Commander struct {
	engine oms.IOMS
	out    io.Writer
	logger *logging.Logger
}

func New(engine oms.IOMS, out io.Writer, logger *logging.Logger) *Commander {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Commander{engine: engine, out: out, logger: logger}
}

// Run executes commands until exit, end of input or ctx is done. It always
// asks the engine to shut down before returning.
func (c *Commander) Run(ctx context.Context, in io.Reader) error {
	defer func() {
		if err := c.engine.Shutdown(ctx); err != nil {
			c.logger.Warn(ctx, "shutdown", zap.Error(err))
		}
	}()

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, prompt)
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		cmd, err := Parse(scanner.Text())
		if err != nil {
			c.printError(err)
			continue
		}
		if cmd == nil {
			continue
		}
		if _, ok := cmd.(ExitCommand); ok {
			return nil
		}

		reqCtx := logging.NewRequestContext(ctx)
		if err := c.Execute(reqCtx, cmd); err != nil {
			c.logger.Debug(reqCtx, "command failed", zap.String("line", scanner.Text()), zap.Error(err))
			c.printError(err)
		}
	}
}

func (c *Commander) Execute(ctx context.Context, cmd Command) error {
	switch cmd := cmd.(type) {
	case AccountCommand:
		return c.account(cmd)
	case OrderCreateCommand:
		return c.createOrder(ctx, cmd)
	case OrderCancelCommand:
		if cmd.ID.IsZero() {
			return nil
		}
		if err := c.engine.CancelOrder(ctx, &model.CancelOrder{OrderID: cmd.ID}); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Cancel requested for order %s\n", cmd.ID)
		return nil
	case StateCommand:
		RenderAccounts(c.out, c.engine.Accounts())
		RenderBook(c.out, c.engine.SnapshotBook())
		return nil
	case TransactionsCommand:
		RenderTransactions(c.out, "", c.engine.SnapshotTransactions("", cmd.Limit))
		return nil
	case ExitCommand:
		return nil
	}
	return ErrInvalidCommand
}

func (c *Commander) account(cmd AccountCommand) error {
	switch cmd.Action {
	case AccountCreate:
		if err := c.engine.CreateAccount(cmd.Name, decimal.Zero, 0); err != nil {
			return err
		}
		RenderAccounts(c.out, c.engine.Accounts())
		return nil
	case AccountDelete:
		if err := c.engine.DeleteAccount(cmd.Name); err != nil {
			return err
		}
		RenderAccounts(c.out, c.engine.Accounts())
		return nil
	}

	usd, coin, err := c.engine.GetBalance(cmd.Name)
	if err != nil {
		return err
	}

	switch cmd.Action {
	case AccountQuery:
		fmt.Fprintf(c.out, "Account Name: %s\nUSD Balance: %s\nCoin Balance: %d\n", cmd.Name, usd.StringFixed(2), coin)
	case AccountFund:
		return c.engine.Fund(cmd.Name, cmd.Amount)
	case AccountWithdraw:
		if err := c.engine.Withdraw(cmd.Name, cmd.Amount); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Sending %s to %s's linked bank account.\n", cmd.Amount, cmd.Name)
	case AccountDeposit:
		return c.engine.DepositCoin(cmd.Name, cmd.Coin)
	case AccountTransactions:
		RenderTransactions(c.out, cmd.Name, c.engine.SnapshotTransactions(cmd.Name, cmd.Limit))
	}
	return nil
}

func (c *Commander) createOrder(ctx context.Context, cmd OrderCreateCommand) error {
	res, err := c.engine.SubmitOrderSync(ctx, &model.AddOrder{
		Account:  cmd.Account,
		Side:     cmd.Side,
		Quantity: cmd.Qty,
		Price:    cmd.Price,
	})
	if err != nil {
		if errors.Is(err, oms.ErrOrderRejected) {
			reason := strings.TrimPrefix(err.Error(), oms.ErrOrderRejected.Error()+": ")
			fmt.Fprintf(c.out, "Order %s rejected: %s\n", res.OrderID, reason)
			return nil
		}
		return err
	}

	fmt.Fprintf(c.out, "Order %s accepted: filled %d, resting %d\n", res.OrderID, res.Filled, restingQty(res))
	for _, tx := range res.Trades {
		fmt.Fprintf(c.out, "  trade #%d %s buys %d from %s @ %s\n", tx.ID, tx.Buyer, tx.Qty, tx.Seller, tx.Price.StringFixed(2))
	}
	return nil
}

func restingQty(res oms.OrderResult) int64 {
	if res.Rested {
		return res.Residual
	}
	return 0
}

func (c *Commander) printError(err error) {
	switch {
	case errors.Is(err, ErrInvalidCommand):
		fmt.Fprintln(c.out, "Invalid command")
	case errors.Is(err, ErrInvalidSubcommand):
		fmt.Fprintln(c.out, "Invalid subcommand")
	case errors.Is(err, ErrInvalidArguments), errors.Is(err, oms.ErrInvalidInput):
		fmt.Fprintln(c.out, "Invalid arguments")
	case errors.Is(err, ledger.ErrAccountNotFound):
		fmt.Fprintln(c.out, "Account does not exist")
	case errors.Is(err, ledger.ErrAccountExists):
		fmt.Fprintln(c.out, "Account already exists")
	case errors.Is(err, oms.ErrAccountHasOrders):
		fmt.Fprintln(c.out, "Account has resting orders")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		fmt.Fprintln(c.out, "Insufficient funds")
	default:
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
}
