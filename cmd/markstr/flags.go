package main

import "github.com/urfave/cli/v2"

var (
	marketFlag = cli.StringFlag{
		Name:     "market",
		Usage:    "id of the market",
		Required: true,
	}
	questionFlag = cli.StringFlag{
		Name:     "question",
		Usage:    "question the market bets on",
		Required: true,
	}
	outcomeAFlag = cli.StringFlag{
		Name:     "outcome-a",
		Usage:    "description of outcome A",
		Required: true,
	}
	outcomeBFlag = cli.StringFlag{
		Name:     "outcome-b",
		Usage:    "description of outcome B",
		Required: true,
	}
	oracleFlag = cli.StringFlag{
		Name:     "oracle",
		Usage:    "x-only public key of the oracle (hex)",
		Required: true,
	}
	settlementFlag = cli.Uint64Flag{
		Name:     "settlement",
		Usage:    "settlement unix timestamp",
		Required: true,
	}
	timeoutFlag = cli.UintFlag{
		Name:  "withdraw-timeout",
		Usage: "seconds after settlement before bettors can get refunded, defaults to config",
	}
	outcomeFlag = cli.StringFlag{
		Name:     "outcome",
		Usage:    "outcome character, A or B",
		Required: true,
	}
	settleOutcomeFlag = cli.StringFlag{
		Name:  "outcome",
		Usage: "outcome character, A or B, required with --signature",
	}
	amountFlag = cli.Uint64Flag{
		Name:     "amount",
		Usage:    "amount in sats",
		Required: true,
	}
	addressFlag = cli.StringFlag{
		Name:     "address",
		Usage:    "bitcoin address",
		Required: true,
	}
	txidFlag = cli.StringFlag{
		Name:     "txid",
		Usage:    "txid of the outpoint",
		Required: true,
	}
	voutFlag = cli.UintFlag{
		Name:  "vout",
		Usage: "output index of the outpoint",
	}
	psbtFlag = cli.StringFlag{
		Name:     "psbt",
		Usage:    "base64 encoded partial deposit",
		Required: true,
	}
	psbtsFlag = cli.StringSliceFlag{
		Name:  "psbt",
		Usage: "base64 encoded signed partial deposit, can be repeated",
	}
	prvkeyFlag = cli.StringFlag{
		Name:     "prvkey",
		Usage:    "private key (hex)",
		Required: true,
	}
	prevoutValueFlag = cli.Int64Flag{
		Name:  "prevout-value",
		Usage: "value in sats of the spent output, required if missing in the psbt",
	}
	signatureFlag = cli.StringFlag{
		Name:  "signature",
		Usage: "oracle signature of the outcome assertion (hex)",
	}
	announcementFlag = cli.StringFlag{
		Name:  "announcement",
		Usage: "JSON encoded nostr event announcing the market, verified against it",
	}
	listOracleFlag = cli.StringFlag{
		Name:  "oracle",
		Usage: "only list the markets of this oracle (hex x-only pubkey), settled ones included",
	}
	eventFlag = cli.StringFlag{
		Name:  "event",
		Usage: "JSON encoded nostr event asserting the outcome",
	}
	withdrawTypeFlag = cli.StringFlag{
		Name:  "type",
		Usage: "withdraw path, payout or escape",
		Value: "payout",
	}
	oracleSigFlag = cli.StringFlag{
		Name:  "oracle-sig",
		Usage: "oracle signature over the outcome commitment (hex), required for payout",
	}
	feeRateFlag = cli.Float64Flag{
		Name:  "fee-rate",
		Usage: "optional fee rate in sat/vB the template fee is checked against",
	}
	utxoFlag = cli.StringFlag{
		Name:  "utxo",
		Usage: "pool outpoint to spend as txid:vout, defaults to the registered funding",
	}
	networkFlag = cli.StringFlag{
		Name:  "network",
		Usage: "network of the address (bitcoin, testnet, signet, regtest)",
		Value: "regtest",
	}
	unitFlag = cli.StringFlag{
		Name:  "unit",
		Usage: "unit of the amount to convert, btc or sat",
		Value: "btc",
	}
)
