package common

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcwallet/waddrmgr"
	"github.com/lightningnetwork/lnd/input"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
)

const DustLimit = 546

// ComputeWithdrawTxFee returns the fee required by a transaction spending the
// pool through the given tapscript leaf to the given outputs.
func ComputeWithdrawTxFee(
	feeRate chainfee.SatPerKVByte,
	tapscript *waddrmgr.Tapscript,
	witnessSize int,
	outputScripts [][]byte,
) (uint64, error) {
	txWeightEstimator := &input.TxWeightEstimator{}

	txWeightEstimator.AddTapscriptInput(
		lntypes.WeightUnit(witnessSize),
		tapscript,
	)

	for _, script := range outputScripts {
		if err := addOutput(txWeightEstimator, script); err != nil {
			return 0, err
		}
	}

	return feeForVSize(feeRate, txWeightEstimator), nil
}

// ComputeDepositInputFee returns the fee share of a single partial deposit,
// a taproot key-spend input signed with SIGHASH_SINGLE|ANYONECANPAY and its
// P2TR pool output.
func ComputeDepositInputFee(feeRate chainfee.SatPerKVByte) uint64 {
	txWeightEstimator := &input.TxWeightEstimator{}

	txWeightEstimator.AddTaprootKeySpendInput(
		txscript.SigHashSingle | txscript.SigHashAnyOneCanPay,
	)
	txWeightEstimator.AddP2TROutput()

	return feeForVSize(feeRate, txWeightEstimator)
}

func addOutput(estimator *input.TxWeightEstimator, script []byte) error {
	switch txscript.GetScriptClass(script) {
	case txscript.PubKeyHashTy:
		estimator.AddP2PKHOutput()
	case txscript.ScriptHashTy:
		estimator.AddP2SHOutput()
	case txscript.WitnessV0PubKeyHashTy:
		estimator.AddP2WKHOutput()
	case txscript.WitnessV0ScriptHashTy:
		estimator.AddP2WSHOutput()
	case txscript.WitnessV1TaprootTy:
		estimator.AddP2TROutput()
	default:
		return fmt.Errorf("unknown output script class for %x", script)
	}
	return nil
}

func feeForVSize(
	feeRate chainfee.SatPerKVByte, estimator *input.TxWeightEstimator,
) uint64 {
	return uint64(
		feeRate.FeeForVSize(lntypes.VByte(estimator.VSize())).ToUnit(btcutil.AmountSatoshi),
	)
}
