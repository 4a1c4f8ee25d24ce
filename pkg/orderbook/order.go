package orderbook

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side uint8

const (
	BUY Side = iota + 1
	SELL
)

func (s Side) String() string {
	switch s {
	case BUY:
		return "buy"
	case SELL:
		return "sell"
	}
	return fmt.Sprintf("side(%d)", uint8(s))
}

func (s Side) Opposite() Side {
	if s == BUY {
		return SELL
	}
	return BUY
}

func (s Side) Valid() bool {
	return s == BUY || s == SELL
}

// ParseSide accepts "buy" / "sell" in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return BUY, nil
	case "sell":
		return SELL, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSide, s)
}

// OrderID identifies a resting order by side and per-side sequence.
// The zero value is the "no order" sentinel.
type OrderID struct {
	Side Side
	Seq  int64
}

func (id OrderID) IsZero() bool {
	return id.Seq == 0
}

// String renders the signed text form: buys are negative, sells positive.
func (id OrderID) String() string {
	if id.IsZero() {
		return "0"
	}
	if id.Side == BUY {
		return strconv.FormatInt(-id.Seq, 10)
	}
	return strconv.FormatInt(id.Seq, 10)
}

// ParseOrderID parses the signed text form. "0" yields the zero OrderID.
func ParseOrderID(s string) (OrderID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return OrderID{}, fmt.Errorf("%w: %q", ErrInvalidOrderID, s)
	}
	switch {
	case n < 0:
		return OrderID{Side: BUY, Seq: -n}, nil
	case n > 0:
		return OrderID{Side: SELL, Seq: n}, nil
	}
	return OrderID{}, nil
}

type Order struct {
	ID      OrderID
	Account string
	Side    Side
	Price   decimal.Decimal
	Qty     int64

	// Seq is the global creation sequence, used only to break price ties.
	Seq       uint64
	CreatedAt time.Time
}

func (o *Order) Notional() decimal.Decimal {
	return o.Price.Mul(decimal.NewFromInt(o.Qty))
}

func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSide, uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (id OrderID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *OrderID) UnmarshalText(b []byte) error {
	v, err := ParseOrderID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}
