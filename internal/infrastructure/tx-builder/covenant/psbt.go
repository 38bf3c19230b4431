package txbuilder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ark-network/markstr/internal/core/ports"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
)

var INPUT_INDEX_PSBT_KEY = []byte("inputindex")

// EncodePartialDeposit renders a partial deposit as a base64 PSBT. The input
// index travels as an unknown input field, the signature, if any, as the
// taproot key spend signature. The prevout is optional.
func EncodePartialDeposit(partial ports.PartialDeposit, prevout *wire.TxOut) (string, error) {
	if err := validatePartial(&partial); err != nil {
		return "", err
	}

	unsigned := partial.Tx.Copy()
	witness := unsigned.TxIn[0].Witness
	unsigned.TxIn[0].Witness = nil
	unsigned.TxIn[0].SignatureScript = nil

	ptx, err := psbt.NewFromUnsignedTx(unsigned)
	if err != nil {
		return "", fmt.Errorf("failed to create psbt: %s", err)
	}

	var index [4]byte
	binary.LittleEndian.PutUint32(index[:], partial.InputIndex)
	ptx.Inputs[0].Unknowns = append(ptx.Inputs[0].Unknowns, &psbt.Unknown{
		Key:   INPUT_INDEX_PSBT_KEY,
		Value: index[:],
	})
	ptx.Inputs[0].SighashType = DepositSigHashType
	if prevout != nil {
		ptx.Inputs[0].WitnessUtxo = prevout
	}
	if len(witness) == 1 {
		ptx.Inputs[0].TaprootKeySpendSig = witness[0]
	}

	return ptx.B64Encode()
}

func DecodePartialDeposit(b64 string) (*ports.PartialDeposit, *wire.TxOut, error) {
	ptx, err := psbt.NewFromRawBytes(strings.NewReader(b64), true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse psbt: %s", err)
	}
	if len(ptx.Inputs) != 1 {
		return nil, nil, fmt.Errorf("partial deposit psbt must have exactly one input")
	}

	in := ptx.Inputs[0]
	var inputIndex *uint32
	for _, u := range in.Unknowns {
		if bytes.Contains(u.Key, INPUT_INDEX_PSBT_KEY) {
			if len(u.Value) != 4 {
				return nil, nil, fmt.Errorf("invalid input index field")
			}
			index := binary.LittleEndian.Uint32(u.Value)
			inputIndex = &index
		}
	}
	if inputIndex == nil {
		return nil, nil, fmt.Errorf("missing input index in partial deposit psbt")
	}

	tx := ptx.UnsignedTx.Copy()
	if len(in.TaprootKeySpendSig) > 0 {
		tx.TxIn[0].Witness = wire.TxWitness{in.TaprootKeySpendSig}
	}

	partial := &ports.PartialDeposit{Tx: tx, InputIndex: *inputIndex}
	if err := validatePartial(partial); err != nil {
		return nil, nil, err
	}
	return partial, in.WitnessUtxo, nil
}
