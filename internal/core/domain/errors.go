package domain

import "errors"

var (
	ErrInvalidMarket    = errors.New("invalid market")
	ErrInvalidOutcome   = errors.New("invalid outcome")
	ErrInvalidBet       = errors.New("invalid bet")
	ErrInvalidAddress   = errors.New("invalid address")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrOracle           = errors.New("oracle error")
	ErrSettlement       = errors.New("settlement error")
	ErrPayout           = errors.New("payout error")
	ErrNetwork          = errors.New("network error")
	ErrMarketNotFound   = errors.New("market not found")
)
