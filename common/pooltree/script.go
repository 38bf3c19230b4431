package pooltree

import (
	"bytes"
	"fmt"

	"github.com/ark-network/markstr/common/oracle"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const (
	OP_CHECKTEMPLATEVERIFY = txscript.OP_NOP4
	OP_CHECKSIGFROMSTACK   = txscript.OP_NOP5

	outcomeScriptLen = 102
	escapeScriptLen  = 34
)

type Closure interface {
	Leaf() (*txscript.TapLeaf, error)
	Decode(script []byte) (bool, error)
}

// OutcomeClosure pays the committed template once the oracle signed the
// outcome commitment.
type OutcomeClosure struct {
	Commitment   [32]byte
	Oracle       *secp256k1.PublicKey
	CovenantHash chainhash.Hash
}

// EscapeClosure pays the committed template without any signature.
type EscapeClosure struct {
	CovenantHash chainhash.Hash
}

func NewOutcomeClosure(
	outcomeId string, oraclePubkey *secp256k1.PublicKey, covenantHash chainhash.Hash,
) (*OutcomeClosure, error) {
	if len(outcomeId) <= 0 {
		return nil, fmt.Errorf("missing outcome id")
	}
	if oraclePubkey == nil {
		return nil, fmt.Errorf("missing oracle pubkey")
	}
	return &OutcomeClosure{
		Commitment:   oracle.Commitment(outcomeId),
		Oracle:       oraclePubkey,
		CovenantHash: covenantHash,
	}, nil
}

func DecodeClosure(script []byte) (Closure, error) {
	var closure Closure

	closure = &OutcomeClosure{}
	if valid, err := closure.Decode(script); err == nil && valid {
		return closure, nil
	}

	closure = &EscapeClosure{}
	if valid, err := closure.Decode(script); err == nil && valid {
		return closure, nil
	}

	return nil, fmt.Errorf("invalid closure script")
}

func (c *OutcomeClosure) Script() ([]byte, error) {
	if c.Oracle == nil {
		return nil, fmt.Errorf("missing oracle pubkey")
	}
	return txscript.NewScriptBuilder().
		AddData(c.Commitment[:]).
		AddData(schnorr.SerializePubKey(c.Oracle)).
		AddOp(OP_CHECKSIGFROMSTACK).
		AddOp(txscript.OP_DROP).
		AddData(c.CovenantHash[:]).
		AddOp(OP_CHECKTEMPLATEVERIFY).
		Script()
}

func (c *OutcomeClosure) Leaf() (*txscript.TapLeaf, error) {
	script, err := c.Script()
	if err != nil {
		return nil, err
	}
	tapLeaf := txscript.NewBaseTapLeaf(script)
	return &tapLeaf, nil
}

func (c *OutcomeClosure) Decode(script []byte) (bool, error) {
	if len(script) != outcomeScriptLen {
		return false, nil
	}
	if script[0] != txscript.OP_DATA_32 || script[33] != txscript.OP_DATA_32 ||
		script[66] != OP_CHECKSIGFROMSTACK || script[67] != txscript.OP_DROP ||
		script[68] != txscript.OP_DATA_32 || script[101] != OP_CHECKTEMPLATEVERIFY {
		return false, nil
	}

	pubkey, err := schnorr.ParsePubKey(script[34:66])
	if err != nil {
		return false, err
	}

	copy(c.Commitment[:], script[1:33])
	copy(c.CovenantHash[:], script[69:101])
	c.Oracle = pubkey

	rebuilt, err := c.Script()
	if err != nil {
		return false, err
	}
	if !bytes.Equal(rebuilt, script) {
		return false, nil
	}

	return true, nil
}

func (c *EscapeClosure) Script() ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddData(c.CovenantHash[:]).
		AddOp(OP_CHECKTEMPLATEVERIFY).
		Script()
}

func (c *EscapeClosure) Leaf() (*txscript.TapLeaf, error) {
	script, err := c.Script()
	if err != nil {
		return nil, err
	}
	tapLeaf := txscript.NewBaseTapLeaf(script)
	return &tapLeaf, nil
}

func (c *EscapeClosure) Decode(script []byte) (bool, error) {
	if len(script) != escapeScriptLen {
		return false, nil
	}
	if script[0] != txscript.OP_DATA_32 || script[33] != OP_CHECKTEMPLATEVERIFY {
		return false, nil
	}
	copy(c.CovenantHash[:], script[1:33])
	return true, nil
}
