package riskrule

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/joripage/matching-engine/pkg/ledger"
	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func order(account string, side orderbook.Side, qty int64, price string) *orderbook.Order {
	return &orderbook.Order{
		ID:      orderbook.OrderID{Side: side, Seq: 99},
		Account: account,
		Side:    side,
		Qty:     qty,
		Price:   decimal.RequireFromString(price),
		Seq:     99,
	}
}

func TestBalanceRule(t *testing.T) {
	l := ledger.NewLedger()
	require.NoError(t, l.Create("bob", decimal.RequireFromString("300"), 20))
	rule := NewBalanceRule(l)

	// exactly affordable
	assert.NoError(t, rule.Check(order("bob", orderbook.BUY, 10, "30")))
	assert.ErrorIs(t, rule.Check(order("bob", orderbook.BUY, 10, "30.01")), ErrInsufficientFunds)

	assert.NoError(t, rule.Check(order("bob", orderbook.SELL, 20, "1000")))
	assert.ErrorIs(t, rule.Check(order("bob", orderbook.SELL, 21, "1")), ErrInsufficientCoin)

	assert.ErrorIs(t, rule.Check(order("nobody", orderbook.BUY, 1, "1")), ErrUnknownAccount)
}

func TestCrossPriceRule(t *testing.T) {
	book := orderbook.NewBook()
	require.NoError(t, book.Insert(order("alice", orderbook.SELL, 5, "30.00")))
	rule := NewCrossPriceRule(book)

	assert.ErrorIs(t, rule.Check(order("alice", orderbook.BUY, 1, "30")), ErrCrossPrice)
	// same side at the same price is allowed by this rule
	assert.NoError(t, rule.Check(order("alice", orderbook.SELL, 1, "30")))
	assert.NoError(t, rule.Check(order("bob", orderbook.BUY, 1, "30")))
	assert.NoError(t, rule.Check(order("alice", orderbook.BUY, 1, "29.99")))
}

func TestDuplicatePriceRule(t *testing.T) {
	book := orderbook.NewBook()
	require.NoError(t, book.Insert(order("alice", orderbook.SELL, 5, "30.00")))
	rule := NewDuplicatePriceRule(book)

	assert.ErrorIs(t, rule.Check(order("alice", orderbook.SELL, 5, "30")), ErrDuplicatePrice)
	assert.NoError(t, rule.Check(order("alice", orderbook.BUY, 5, "30")))
	assert.NoError(t, rule.Check(order("alice", orderbook.SELL, 5, "30.5")))
	assert.NoError(t, rule.Check(order("bob", orderbook.SELL, 5, "30")))
}

func TestAdmissionStopsAtFirstRejection(t *testing.T) {
	calls := 0
	counting := RiskRuleFunc(func(*orderbook.Order) error {
		calls++
		return nil
	})
	boom := errors.New("boom")
	failing := RiskRuleFunc(func(*orderbook.Order) error { return boom })

	adm := NewAdmission(counting, failing, counting)
	assert.ErrorIs(t, adm.Check(order("a", orderbook.BUY, 1, "1")), boom)
	assert.Equal(t, 1, calls)

	assert.NoError(t, NewAdmission().Check(order("a", orderbook.BUY, 1, "1")))
}

func TestLimitPriceRule(t *testing.T) {
	rule := NewLimitPriceRule(decimal.RequireFromString("10"), decimal.RequireFromString("20"))
	assert.NoError(t, rule.Check(order("a", orderbook.BUY, 1, "10")))
	assert.NoError(t, rule.Check(order("a", orderbook.BUY, 1, "20")))
	assert.ErrorIs(t, rule.Check(order("a", orderbook.BUY, 1, "20.01")), ErrPriceLimit)
	assert.ErrorIs(t, rule.Check(order("a", orderbook.SELL, 1, "9.99")), ErrPriceLimit)

	open := NewLimitPriceRule(decimal.Zero, decimal.Zero)
	assert.NoError(t, open.Check(order("a", orderbook.BUY, 1, "123456")))
}

func TestTickSizeRule(t *testing.T) {
	rule := NewTickSizeRule([]TickSizeConfig{
		{MaxPrice: decimal.RequireFromString("10"), Step: decimal.RequireFromString("0.01")},
		{MaxPrice: decimal.Zero, Step: decimal.RequireFromString("0.5")},
	})

	assert.NoError(t, rule.Check(order("a", orderbook.BUY, 1, "9.99")))
	assert.ErrorIs(t, rule.Check(order("a", orderbook.BUY, 1, "9.995")), ErrTickSize)
	assert.NoError(t, rule.Check(order("a", orderbook.BUY, 1, "22.50")))
	assert.ErrorIs(t, rule.Check(order("a", orderbook.BUY, 1, "22.25")), ErrTickSize)
}

func TestTickSizeRuleFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"maxPrice":"0","step":"0.25"}]`), 0o600))

	rule, err := NewTickSizeRuleFromFile(path)
	require.NoError(t, err)
	assert.NoError(t, rule.Check(order("a", orderbook.SELL, 1, "20.75")))
	assert.ErrorIs(t, rule.Check(order("a", orderbook.SELL, 1, "20.80")), ErrTickSize)

	_, err = NewTickSizeRuleFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadTickSizesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- max_price: \"10\"\n  step: \"0.01\"\n- max_price: \"0\"\n  step: \"0.05\"\n"), 0o600))

	ticks, err := LoadTickSizes(path)
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	assert.True(t, ticks[0].MaxPrice.Equal(decimal.NewFromInt(10)))
	assert.True(t, ticks[1].Step.Equal(decimal.RequireFromString("0.05")))
}
