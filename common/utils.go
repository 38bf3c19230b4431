package common

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

func BtcToSats(btc float64) (uint64, error) {
	amount, err := btcutil.NewAmount(btc)
	if err != nil {
		return 0, err
	}
	if amount < 0 {
		return 0, fmt.Errorf("negative amount %f", btc)
	}
	return uint64(amount), nil
}

func SatsToBtc(sats uint64) float64 {
	return btcutil.Amount(sats).ToBTC()
}
