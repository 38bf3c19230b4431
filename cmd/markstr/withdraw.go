package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/ark-network/markstr/internal/core/application"
	"github.com/ark-network/markstr/internal/core/ports"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
	"github.com/urfave/cli/v2"
)

var withdrawCommand = cli.Command{
	Name:  "withdraw",
	Usage: "Build the signed transaction spending the pool through the payout or escape path",
	Flags: []cli.Flag{
		&marketFlag, &withdrawTypeFlag, &oracleSigFlag, &feeRateFlag, &utxoFlag,
	},
	Action: withdraw,
}

func withdraw(ctx *cli.Context) error {
	req := application.WithdrawRequest{
		MarketId: ctx.String(marketFlag.Name),
	}

	switch strings.ToLower(ctx.String(withdrawTypeFlag.Name)) {
	case ports.WithdrawPayout.String():
		req.Type = ports.WithdrawPayout
		sig, err := hex.DecodeString(ctx.String(oracleSigFlag.Name))
		if err != nil {
			return fmt.Errorf("invalid oracle signature: %s", err)
		}
		req.OracleSignature = sig
	case ports.WithdrawEscape.String():
		req.Type = ports.WithdrawEscape
	default:
		return fmt.Errorf("invalid withdraw type, must be payout or escape")
	}

	if rate := ctx.Float64(feeRateFlag.Name); rate > 0 {
		feeRate := chainfee.SatPerKVByte(rate * 1000)
		req.FeeRate = &feeRate
	}

	if utxo := ctx.String(utxoFlag.Name); len(utxo) > 0 {
		outpoint, err := parseOutpoint(utxo)
		if err != nil {
			return err
		}
		req.PoolUtxo = outpoint
	}

	svc, err := getService()
	if err != nil {
		return err
	}

	tx, err := svc.BuildWithdrawTx(cntx, req)
	if err != nil {
		return err
	}
	txHex, err := serializeTx(tx)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{
		"txid": tx.TxHash().String(),
		"hex":  txHex,
	})
}

func parseOutpoint(str string) (*wire.OutPoint, error) {
	parts := strings.Split(str, ":")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid outpoint %s, must be txid:vout", str)
	}
	hash, err := chainhash.NewHashFromStr(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid outpoint txid: %s", err)
	}
	vout, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid outpoint vout: %s", err)
	}
	return wire.NewOutPoint(hash, uint32(vout)), nil
}
