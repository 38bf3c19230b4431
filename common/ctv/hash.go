// Package ctv computes the template hash committed by OP_CHECKTEMPLATEVERIFY
// for transactions spending a single input at index 0.
package ctv

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/ark-network/markstr/common"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Template is the part of a transaction that a covenant hash binds.
type Template struct {
	Version  int32
	LockTime uint32
	Sequence uint32
	Outputs  []*wire.TxOut
}

// TemplateHash returns the covenant hash of a transaction with the given
// version and outputs, a zero locktime and one input whose sequence is lock,
// or the RBF sequence if lock is nil.
func TemplateHash(version int32, outputs []*wire.TxOut, lock *uint32) (chainhash.Hash, error) {
	sequence := uint32(common.SequenceRBFNoLocktime)
	if lock != nil {
		sequence = *lock
	}
	return Template{
		Version:  version,
		Sequence: sequence,
		Outputs:  outputs,
	}.Hash()
}

// TxHash returns the covenant hash of an already built transaction. The
// transaction must have exactly one input.
func TxHash(tx *wire.MsgTx) (chainhash.Hash, error) {
	if tx == nil {
		return chainhash.Hash{}, fmt.Errorf("missing transaction")
	}
	if len(tx.TxIn) != 1 {
		return chainhash.Hash{}, fmt.Errorf(
			"expected exactly one input, got %d", len(tx.TxIn),
		)
	}
	return Template{
		Version:  tx.Version,
		LockTime: tx.LockTime,
		Sequence: tx.TxIn[0].Sequence,
		Outputs:  tx.TxOut,
	}.Hash()
}

func (t Template) Hash() (chainhash.Hash, error) {
	outputsHash, err := hashOutputs(t.Outputs)
	if err != nil {
		return chainhash.Hash{}, err
	}

	var seq [4]byte
	binary.LittleEndian.PutUint32(seq[:], t.Sequence)
	sequencesHash := sha256.Sum256(seq[:])

	buf := bytes.NewBuffer(make([]byte, 0, 4*5+32*2))
	writeUint32(buf, uint32(t.Version))
	writeUint32(buf, t.LockTime)
	writeUint32(buf, 1)
	buf.Write(sequencesHash[:])
	writeUint32(buf, uint32(len(t.Outputs)))
	buf.Write(outputsHash[:])
	writeUint32(buf, 0)

	return chainhash.Hash(sha256.Sum256(buf.Bytes())), nil
}

func hashOutputs(outputs []*wire.TxOut) ([32]byte, error) {
	var buf bytes.Buffer
	for i, out := range outputs {
		if out == nil {
			return [32]byte{}, fmt.Errorf("missing output %d", i)
		}
		if err := wire.WriteTxOut(&buf, 0, 0, out); err != nil {
			return [32]byte{}, fmt.Errorf("failed to serialize output %d: %s", i, err)
		}
	}
	return sha256.Sum256(buf.Bytes()), nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
