package domain

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

type Outpoint struct {
	Txid string
	VOut uint32
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.Txid, o.VOut)
}

// Bet is a bettor's claim on the pool, funded by the given outpoint.
type Bet struct {
	PayoutAddress string
	Amount        uint64
	Txid          string
	VOut          uint32
}

func (b Bet) Outpoint() Outpoint {
	return Outpoint{b.Txid, b.VOut}
}

func (b Bet) validate() error {
	if b.Amount == 0 {
		return fmt.Errorf("%w: missing amount", ErrInvalidBet)
	}
	if len(b.PayoutAddress) <= 0 {
		return fmt.Errorf("%w: missing payout address", ErrInvalidBet)
	}
	if err := validateTxid(b.Txid); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidBet, err)
	}
	return nil
}

// Receiver is an output of a withdrawal template before it is bound to a
// network script.
type Receiver struct {
	Address string
	Amount  uint64
}

func validateTxid(txid string) error {
	if len(txid) != chainhash.MaxHashStringSize {
		return fmt.Errorf("invalid txid length %d", len(txid))
	}
	if _, err := chainhash.NewHashFromStr(txid); err != nil {
		return fmt.Errorf("invalid txid %s: %s", txid, err)
	}
	return nil
}
