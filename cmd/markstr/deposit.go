package main

import (
	"fmt"

	"github.com/ark-network/markstr/common"
	"github.com/ark-network/markstr/internal/core/application"
	txbuilder "github.com/ark-network/markstr/internal/infrastructure/tx-builder/covenant"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var depositCommand = cli.Command{
	Name:  "deposit",
	Usage: "Build, sign, submit and combine the partial deposits funding a market",
	Subcommands: []*cli.Command{
		{
			Name:   "build",
			Usage:  "Build the unsigned partial deposit of a bet",
			Flags:  []cli.Flag{&marketFlag, &txidFlag, &voutFlag, &feeRateFlag},
			Action: buildDeposit,
		},
		{
			Name:   "sign",
			Usage:  "Sign a partial deposit spending a BIP86 output of the given key",
			Flags:  []cli.Flag{&psbtFlag, &prvkeyFlag, &prevoutValueFlag},
			Action: signDeposit,
		},
		{
			Name:   "submit",
			Usage:  "Submit a signed partial deposit",
			Flags:  []cli.Flag{&marketFlag, &psbtFlag},
			Action: submitDeposit,
		},
		{
			Name:   "combine",
			Usage:  "Combine the collected partial deposits into the funding transaction",
			Flags:  []cli.Flag{&marketFlag, &psbtsFlag},
			Action: combineDeposits,
		},
	},
}

func buildDeposit(ctx *cli.Context) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	marketId := ctx.String(marketFlag.Name)
	partial, err := svc.GetPartialDeposit(
		cntx, marketId, ctx.String(txidFlag.Name), uint32(ctx.Uint(voutFlag.Name)),
	)
	if err != nil {
		return err
	}

	b64, err := txbuilder.EncodePartialDeposit(*partial, nil)
	if err != nil {
		return err
	}
	res := map[string]interface{}{
		"inputIndex": partial.InputIndex,
		"psbt":       b64,
	}

	// The deposit fee is fixed by the market, only report whether it covers
	// the share of the funding tx paid by this partial at the given rate.
	if rate := ctx.Float64(feeRateFlag.Name); rate > 0 {
		info, err := svc.GetMarketInfo(cntx, marketId)
		if err != nil {
			return err
		}
		depositFee := info.Market.Fees.FeePerDepositOutput
		requiredFee := common.ComputeDepositInputFee(chainfee.SatPerKVByte(rate * 1000))
		if depositFee < requiredFee {
			log.Warnf(
				"deposit fee of %d sats is below the %d sats required at %.2f sat/vB",
				depositFee, requiredFee, rate,
			)
		}
		res["depositFee"] = depositFee
		res["requiredFee"] = requiredFee
	}
	return printJSON(res)
}

// signDeposit does not need the market, a partial deposit carries everything
// the bettor signs.
func signDeposit(ctx *cli.Context) error {
	partial, prevout, err := txbuilder.DecodePartialDeposit(ctx.String(psbtFlag.Name))
	if err != nil {
		return err
	}

	key, err := parsePrivateKey(ctx.String(prvkeyFlag.Name))
	if err != nil {
		return err
	}

	if prevout == nil {
		value := ctx.Int64(prevoutValueFlag.Name)
		if value <= 0 {
			return fmt.Errorf("missing prevout in psbt, --prevout-value is required")
		}
		script, err := txscript.PayToTaprootScript(
			txscript.ComputeTaprootKeyNoScript(key.PubKey()),
		)
		if err != nil {
			return err
		}
		prevout = wire.NewTxOut(value, script)
	}

	builder := txbuilder.NewTxBuilder()
	sig, err := builder.SignPartialDeposit(partial, key, prevout.Value, prevout.PkScript)
	if err != nil {
		return err
	}
	if err := builder.AddDepositSignature(partial, sig); err != nil {
		return err
	}

	b64, err := txbuilder.EncodePartialDeposit(*partial, prevout)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"inputIndex": partial.InputIndex,
		"psbt":       b64,
	})
}

func submitDeposit(ctx *cli.Context) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	status, err := submitPsbt(svc, ctx.String(marketFlag.Name), ctx.String(psbtFlag.Name))
	if err != nil {
		return err
	}
	return printJSON(toDepositStatusJSON(*status))
}

func combineDeposits(ctx *cli.Context) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	marketId := ctx.String(marketFlag.Name)

	for _, b64 := range ctx.StringSlice(psbtsFlag.Name) {
		if _, err := submitPsbt(svc, marketId, b64); err != nil {
			return err
		}
	}

	status, err := svc.CombineDeposits(cntx, marketId)
	if err != nil {
		return err
	}
	return printJSON(toDepositStatusJSON(*status))
}

func submitPsbt(
	svc application.Service, marketId, b64 string,
) (*application.DepositStatus, error) {
	partial, prevout, err := txbuilder.DecodePartialDeposit(b64)
	if err != nil {
		return nil, err
	}
	return svc.SubmitPartialDeposit(cntx, marketId, *partial, prevout)
}
