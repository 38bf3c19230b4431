package txbuilder

import (
	"fmt"

	"github.com/ark-network/markstr/common"
	"github.com/ark-network/markstr/common/ctv"
	"github.com/ark-network/markstr/common/oracle"
	"github.com/ark-network/markstr/common/pooltree"
	"github.com/ark-network/markstr/internal/core/domain"
	"github.com/ark-network/markstr/internal/core/ports"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"
)

// witness elements preceding the script and control block in a payout spend:
// the oracle signature and the outcome commitment.
const payoutLeafWitnessSize = 1 + schnorr.SignatureSize + 1 + 32

func (b *txBuilder) BuildWithdrawTx(params ports.WithdrawParams) (*wire.MsgTx, error) {
	market := params.Market
	if market == nil {
		return nil, fmt.Errorf("missing market")
	}
	net, err := market.GetNetwork()
	if err != nil {
		return nil, err
	}

	var tx *wire.MsgTx
	switch params.Type {
	case ports.WithdrawPayout:
		if !market.Settled || market.WinningOutcome == 0 {
			return nil, fmt.Errorf("%w: market %s is not settled", domain.ErrPayout, market.Id)
		}
		tx, err = payoutTemplate(market, net, market.WinningOutcome)
	case ports.WithdrawEscape:
		tx, err = escapeTemplate(market, net)
	default:
		return nil, fmt.Errorf("unknown withdraw type %d", params.Type)
	}
	if err != nil {
		return nil, err
	}
	tx.TxIn[0].PreviousOutPoint = params.PoolUtxo

	if params.FeeRate != nil {
		if err := b.checkWithdrawFee(tx, params); err != nil {
			return nil, err
		}
	}

	return tx, nil
}

// SignWithdrawTx fills the witness of the pool input. The leaf is rebuilt
// from the covenant hash of tx itself and must belong to the pool tree, so a
// tx diverging from the committed template is rejected here.
func (b *txBuilder) SignWithdrawTx(
	tx *wire.MsgTx, params ports.WithdrawParams, oracleSignature []byte,
) (*wire.MsgTx, error) {
	market := params.Market
	if market == nil {
		return nil, fmt.Errorf("missing market")
	}
	if tx == nil {
		return nil, fmt.Errorf("missing withdraw tx")
	}

	hash, err := ctv.TxHash(tx)
	if err != nil {
		return nil, err
	}
	_, tree, err := b.poolTree(market)
	if err != nil {
		return nil, err
	}

	var closure pooltree.Closure
	var prefix wire.TxWitness
	switch params.Type {
	case ports.WithdrawPayout:
		if !market.Settled || market.WinningOutcome == 0 {
			return nil, fmt.Errorf("%w: market %s is not settled", domain.ErrPayout, market.Id)
		}
		if len(oracleSignature) <= 0 {
			return nil, fmt.Errorf("%w: missing oracle signature", domain.ErrPayout)
		}
		outcome, err := market.Outcome(market.WinningOutcome)
		if err != nil {
			return nil, err
		}
		if err := oracle.VerifyCommitment(
			market.OraclePubkey, outcome.Id(), oracleSignature,
		); err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidSignature, err)
		}
		oracleKey, err := oracle.ParsePubKey(market.OraclePubkey)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidMarket, err)
		}
		outcomeClosure, err := pooltree.NewOutcomeClosure(outcome.Id(), oracleKey, hash)
		if err != nil {
			return nil, err
		}
		commitment := outcomeClosure.Commitment
		closure = outcomeClosure
		prefix = wire.TxWitness{oracleSignature, commitment[:]}
	case ports.WithdrawEscape:
		closure = &pooltree.EscapeClosure{CovenantHash: hash}
		prefix = wire.TxWitness{}
	default:
		return nil, fmt.Errorf("unknown withdraw type %d", params.Type)
	}

	controlBlock, script, err := tree.ControlBlock(closure)
	if err != nil {
		return nil, fmt.Errorf(
			"%w: %s tx does not match the committed template: %s",
			domain.ErrPayout, params.Type, err,
		)
	}
	controlBlockBytes, err := controlBlock.ToBytes()
	if err != nil {
		return nil, err
	}

	signed := tx.Copy()
	signed.TxIn[0].Witness = append(prefix, script, controlBlockBytes)
	return signed, nil
}

// checkWithdrawFee compares the fee left by the template with the one needed
// at the given rate. Templates are fixed once the pool address is published,
// so a low fee is only reported.
func (b *txBuilder) checkWithdrawFee(tx *wire.MsgTx, params ports.WithdrawParams) error {
	market := params.Market
	_, tree, err := b.poolTree(market)
	if err != nil {
		return err
	}

	var closure pooltree.Closure = tree.Escape
	witnessSize := 0
	if params.Type == ports.WithdrawPayout {
		closure = tree.OutcomeA
		if market.WinningOutcome == market.OutcomeB.Character {
			closure = tree.OutcomeB
		}
		witnessSize = payoutLeafWitnessSize
	}
	tapscript, err := tree.Tapscript(closure)
	if err != nil {
		return err
	}

	requiredFee, err := common.ComputeWithdrawTxFee(
		*params.FeeRate, tapscript, witnessSize, outputScripts(tx),
	)
	if err != nil {
		return err
	}

	available := poolValue(market)
	spent := sumOutputs(tx)
	if spent > available {
		log.Warnf(
			"%s tx of market %s spends %d sats, more than the %d sats of the pool",
			params.Type, market.Id, spent, available,
		)
		return nil
	}
	if fee := available - spent; fee < requiredFee {
		log.Warnf(
			"%s tx of market %s pays %d sats in fees, %d required at %d sat/kvB",
			params.Type, market.Id, fee, requiredFee, int64(*params.FeeRate),
		)
	}
	return nil
}
