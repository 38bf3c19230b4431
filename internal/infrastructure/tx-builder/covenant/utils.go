package txbuilder

import (
	"fmt"

	"github.com/ark-network/markstr/common"
	"github.com/ark-network/markstr/internal/core/domain"
	"github.com/ark-network/markstr/internal/core/ports"
	"github.com/btcsuite/btcd/wire"
)

func newTemplate(
	version int32, locktime, sequence uint32, outputs []*wire.TxOut,
) *wire.MsgTx {
	tx := wire.NewMsgTx(version)
	tx.LockTime = locktime
	tx.AddTxIn(&wire.TxIn{Sequence: sequence})
	for _, out := range outputs {
		tx.AddTxOut(out)
	}
	return tx
}

func receiverScript(addr string, net common.Network) ([]byte, error) {
	script, err := common.AddressScript(addr, net)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidAddress, err)
	}
	return script, nil
}

func validatePartial(partial *ports.PartialDeposit) error {
	if partial == nil || partial.Tx == nil {
		return fmt.Errorf("missing partial deposit tx")
	}
	if len(partial.Tx.TxIn) != 1 {
		return fmt.Errorf(
			"partial deposit %d must have exactly one input, got %d",
			partial.InputIndex, len(partial.Tx.TxIn),
		)
	}
	if len(partial.Tx.TxOut) != 1 {
		return fmt.Errorf(
			"partial deposit %d must have exactly one output, got %d",
			partial.InputIndex, len(partial.Tx.TxOut),
		)
	}
	return nil
}

// poolValue is the value of the funding output once every deposit fee is
// paid.
func poolValue(market *domain.Market) uint64 {
	fees := market.Fees.TotalDepositFees(len(market.Bets()))
	if fees >= market.TotalAmount {
		return 0
	}
	return market.TotalAmount - fees
}

func sumOutputs(tx *wire.MsgTx) uint64 {
	total := uint64(0)
	for _, out := range tx.TxOut {
		total += uint64(out.Value)
	}
	return total
}

func outputScripts(tx *wire.MsgTx) [][]byte {
	scripts := make([][]byte, 0, len(tx.TxOut))
	for _, out := range tx.TxOut {
		scripts = append(scripts, out.PkScript)
	}
	return scripts
}
