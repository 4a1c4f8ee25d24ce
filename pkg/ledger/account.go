package ledger

import "github.com/shopspring/decimal"

// Account is a balance pair. Either balance may go negative through
// settlement; only admission keeps new orders from over-committing.
type Account struct {
	Name string
	USD  decimal.Decimal
	Coin int64
}

// Balance is a point-in-time copy of an account.
type Balance struct {
	USD  decimal.Decimal
	Coin int64
}
