package oms

import "errors"

var (
	ErrOrderRejected = errors.New("order rejected")
	ErrInvalidInput  = errors.New("invalid input")
	ErrEngineStopped = errors.New("engine stopped")
	ErrNotStarted    = errors.New("engine not started")

	ErrAccountHasOrders = errors.New("account has resting orders")
)
