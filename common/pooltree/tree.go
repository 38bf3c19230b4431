// Package pooltree assembles the taproot tree locking a market pool: two
// outcome leaves and one escape leaf under an unspendable internal key.
package pooltree

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcwallet/waddrmgr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// nothing up my sleeve point, used as taproot internal key so that the pool
// can only be spent through one of its leaves.
var unspendablePoint = []byte{
	0x02, 0x50, 0x92, 0x9b, 0x74, 0xc1, 0xa0, 0x49, 0x54, 0xb7, 0x8b, 0x4b, 0x60, 0x35, 0xe9, 0x7a,
	0x5e, 0x07, 0x8a, 0x5a, 0x0f, 0x28, 0xec, 0x96, 0xd5, 0x47, 0xbf, 0xee, 0x9a, 0xce, 0x80, 0x3a, 0xc0,
}

func UnspendableKey() *secp256k1.PublicKey {
	key, _ := secp256k1.ParsePubKey(unspendablePoint)
	return key
}

// PoolTree is the tree [[A, B], Escape]: outcome leaves sit at depth 2, the
// escape leaf at depth 1.
type PoolTree struct {
	*txscript.IndexedTapScriptTree

	OutcomeA *OutcomeClosure
	OutcomeB *OutcomeClosure
	Escape   *EscapeClosure

	outputKey *secp256k1.PublicKey
}

func NewPoolTree(
	outcomeA, outcomeB *OutcomeClosure, escape *EscapeClosure,
) (*PoolTree, error) {
	if outcomeA == nil || outcomeB == nil || escape == nil {
		return nil, fmt.Errorf("missing pool closure")
	}

	leaves := make([]txscript.TapLeaf, 0, 3)
	for _, closure := range []Closure{outcomeA, outcomeB, escape} {
		leaf, err := closure.Leaf()
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, *leaf)
	}
	if leaves[0].TapHash() == leaves[1].TapHash() {
		return nil, fmt.Errorf("outcome leaves must differ")
	}

	tapTree := txscript.AssembleTaprootScriptTree(leaves...)
	root := tapTree.RootNode.TapHash()
	outputKey := txscript.ComputeTaprootOutputKey(UnspendableKey(), root[:])

	return &PoolTree{
		IndexedTapScriptTree: tapTree,
		OutcomeA:             outcomeA,
		OutcomeB:             outcomeB,
		Escape:               escape,
		outputKey:            outputKey,
	}, nil
}

func (t *PoolTree) OutputKey() *secp256k1.PublicKey {
	return t.outputKey
}

func (t *PoolTree) PkScript() ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_1).
		AddData(schnorr.SerializePubKey(t.outputKey)).
		Script()
}

func (t *PoolTree) Address(params *chaincfg.Params) (string, error) {
	addr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(t.outputKey), params)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

// ControlBlock returns the control block proving the given closure's leaf is
// committed in the output key.
func (t *PoolTree) ControlBlock(closure Closure) (*txscript.ControlBlock, []byte, error) {
	proof, err := t.merkleProof(closure)
	if err != nil {
		return nil, nil, err
	}

	controlBlock := proof.ToControlBlock(UnspendableKey())
	return &controlBlock, proof.Script, nil
}

// Tapscript describes the revealed leaf of a pool spend, in the form expected
// by the weight estimator.
func (t *PoolTree) Tapscript(closure Closure) (*waddrmgr.Tapscript, error) {
	controlBlock, script, err := t.ControlBlock(closure)
	if err != nil {
		return nil, err
	}
	return &waddrmgr.Tapscript{
		Type:           waddrmgr.TapscriptTypePartialReveal,
		ControlBlock:   controlBlock,
		RevealedScript: script,
	}, nil
}

func (t *PoolTree) merkleProof(closure Closure) (*txscript.TapscriptProof, error) {
	if closure == nil {
		return nil, fmt.Errorf("missing closure")
	}
	leaf, err := closure.Leaf()
	if err != nil {
		return nil, err
	}

	leafHash := leaf.TapHash()
	index, ok := t.LeafProofIndex[leafHash]
	if !ok {
		return nil, fmt.Errorf("leaf %s not found in tree", leafHash.String())
	}
	proof := t.LeafMerkleProofs[index]
	return &proof, nil
}
