package orderbook

import "errors"

var (
	ErrInvalidSide      = errors.New("invalid side")
	ErrInvalidOrderID   = errors.New("invalid order id")
	ErrEmptyOrder       = errors.New("order quantity must be positive")
	ErrDuplicateOrderID = errors.New("order id already resting")
)
