package riskrule

import "errors"

var (
	ErrUnknownAccount    = errors.New("unknown account")
	ErrInsufficientFunds = errors.New("insufficient usd balance")
	ErrInsufficientCoin  = errors.New("insufficient coin balance")
	ErrCrossPrice        = errors.New("account already rests the opposite side at this price")
	ErrDuplicatePrice    = errors.New("account already rests this side at this price")
	ErrPriceLimit        = errors.New("price limit violation")
	ErrTickSize          = errors.New("invalid tick size")
)
