package application

import "errors"

var (
	ErrMarketAlreadyExists = errors.New("market already exists")
	ErrMarketNotFunded     = errors.New("market not funded")
	ErrMarketFunded        = errors.New("market already funded")
	ErrInvalidDeposit      = errors.New("invalid partial deposit")
)
