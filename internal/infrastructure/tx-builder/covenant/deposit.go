package txbuilder

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ark-network/markstr/common"
	"github.com/ark-network/markstr/internal/core/domain"
	"github.com/ark-network/markstr/internal/core/ports"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// DepositSigHashType commits a deposit signature to its own input and to the
// output at the same index only, so that partials can be combined freely.
const DepositSigHashType = txscript.SigHashSingle | txscript.SigHashAnyOneCanPay

func (b *txBuilder) BuildPartialDeposit(
	market *domain.Market, bet domain.Bet, inputIndex uint32,
) (*ports.PartialDeposit, error) {
	if market == nil {
		return nil, fmt.Errorf("missing market")
	}
	found := false
	for _, placed := range market.Bets() {
		if placed == bet {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf(
			"%w: bet %s not found in market %s", domain.ErrInvalidBet, bet.Outpoint(), market.Id,
		)
	}
	if bet.Amount <= market.Fees.FeePerDepositOutput {
		return nil, fmt.Errorf(
			"%w: bet amount %d does not cover deposit fee %d",
			domain.ErrInvalidBet, bet.Amount, market.Fees.FeePerDepositOutput,
		)
	}

	net, tree, err := b.poolTree(market)
	if err != nil {
		return nil, err
	}
	poolScript, err := tree.PkScript()
	if err != nil {
		return nil, err
	}
	locktime, err := common.TimestampLocktime(market.SettlementTimestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidMarket, err)
	}
	hash, err := chainhash.NewHashFromStr(bet.Txid)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidBet, err)
	}

	tx := wire.NewMsgTx(net.TxVersion)
	tx.LockTime = uint32(locktime)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *wire.NewOutPoint(hash, bet.VOut),
		Sequence:         common.SequenceRBFNoLocktime,
	})
	tx.AddTxOut(wire.NewTxOut(
		int64(bet.Amount-market.Fees.FeePerDepositOutput), poolScript,
	))

	return &ports.PartialDeposit{
		Tx:         tx,
		InputIndex: inputIndex,
	}, nil
}

// SignPartialDeposit signs the only input of the partial as a BIP86 key
// spend of the given prevout. The returned signature carries the sighash
// type byte.
func (b *txBuilder) SignPartialDeposit(
	partial *ports.PartialDeposit, key *btcec.PrivateKey,
	prevoutValue int64, prevoutScript []byte,
) ([]byte, error) {
	if err := validatePartial(partial); err != nil {
		return nil, err
	}
	if key == nil {
		return nil, fmt.Errorf("missing signing key")
	}
	if !txscript.IsPayToTaproot(prevoutScript) {
		return nil, fmt.Errorf("%w: prevout is not a taproot output", domain.ErrInvalidSignature)
	}
	outputKey := txscript.ComputeTaprootKeyNoScript(key.PubKey())
	if !bytes.Equal(schnorr.SerializePubKey(outputKey), prevoutScript[2:]) {
		return nil, fmt.Errorf(
			"%w: signing key does not control the prevout", domain.ErrInvalidSignature,
		)
	}

	fetcher := txscript.NewCannedPrevOutputFetcher(prevoutScript, prevoutValue)
	sigHashes := txscript.NewTxSigHashes(partial.Tx, fetcher)

	sig, err := txscript.RawTxInTaprootSignature(
		partial.Tx, sigHashes, 0, prevoutValue, prevoutScript, []byte{},
		DepositSigHashType, key,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sign partial deposit: %s", err)
	}
	return sig, nil
}

func (b *txBuilder) AddDepositSignature(partial *ports.PartialDeposit, signature []byte) error {
	if err := validatePartial(partial); err != nil {
		return err
	}
	if len(signature) != schnorr.SignatureSize+1 {
		return fmt.Errorf(
			"%w: expected %d bytes, got %d",
			domain.ErrInvalidSignature, schnorr.SignatureSize+1, len(signature),
		)
	}
	if txscript.SigHashType(signature[schnorr.SignatureSize]) != DepositSigHashType {
		return fmt.Errorf(
			"%w: unexpected sighash type %#x",
			domain.ErrInvalidSignature, signature[schnorr.SignatureSize],
		)
	}
	if _, err := schnorr.ParseSignature(signature[:schnorr.SignatureSize]); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidSignature, err)
	}

	partial.Tx.TxIn[0].Witness = wire.TxWitness{signature}
	return nil
}

// CombinePartialDeposits merges the partials into the funding transaction,
// placing each input and output at its partial's index. The resulting
// transaction does not depend on the order partials are given in.
func (b *txBuilder) CombinePartialDeposits(partials []ports.PartialDeposit) (*wire.MsgTx, error) {
	if len(partials) <= 0 {
		return nil, fmt.Errorf("missing partial deposits to combine")
	}

	sorted := make([]ports.PartialDeposit, len(partials))
	copy(sorted, partials)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].InputIndex < sorted[j].InputIndex
	})

	for i := range sorted {
		if err := validatePartial(&sorted[i]); err != nil {
			return nil, err
		}
		if i > 0 && sorted[i].InputIndex == sorted[i-1].InputIndex {
			return nil, fmt.Errorf("duplicated partial deposit for index %d", sorted[i].InputIndex)
		}
	}

	first := sorted[0].Tx
	tx := wire.NewMsgTx(first.Version)
	tx.LockTime = first.LockTime
	for _, partial := range sorted {
		in := partial.Tx.TxIn[0]
		witness := make(wire.TxWitness, 0, len(in.Witness))
		for _, w := range in.Witness {
			witness = append(witness, append([]byte{}, w...))
		}
		tx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: in.PreviousOutPoint,
			SignatureScript:  append([]byte{}, in.SignatureScript...),
			Witness:          witness,
			Sequence:         in.Sequence,
		})

		out := partial.Tx.TxOut[0]
		tx.AddTxOut(wire.NewTxOut(out.Value, append([]byte{}, out.PkScript...)))
	}

	return tx, nil
}
