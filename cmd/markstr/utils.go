package main

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/ark-network/markstr/common"
	"github.com/ark-network/markstr/common/oracle"
	"github.com/ark-network/markstr/internal/core/application"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var (
	oracleCommand = cli.Command{
		Name:  "oracle",
		Usage: "Oracle utilities",
		Subcommands: []*cli.Command{
			{
				Name:   "sign",
				Usage:  "Sign the assertion and the commitment of an outcome of a market",
				Flags:  []cli.Flag{&marketFlag, &outcomeFlag, &prvkeyFlag},
				Action: oracleSign,
			},
			{
				Name:   "announce",
				Usage:  "Sign the announcement of a market",
				Flags:  []cli.Flag{&marketFlag, &prvkeyFlag},
				Action: oracleAnnounce,
			},
		},
	}

	watchCommand = cli.Command{
		Name:   "watch",
		Usage:  "Keep running and report the markets whose escape path becomes spendable",
		Action: watch,
	}

	generateIdCommand = cli.Command{
		Name:   "generate-id",
		Usage:  "Generate a random 32-byte id",
		Action: generateId,
	}

	validateAddressCommand = cli.Command{
		Name:   "validate-address",
		Usage:  "Validate a bitcoin address for a network",
		Flags:  []cli.Flag{&addressFlag, &networkFlag},
		Action: validateAddress,
	}

	convertCommand = cli.Command{
		Name:      "convert",
		Usage:     "Convert an amount between BTC and sats",
		ArgsUsage: "<amount>",
		Flags:     []cli.Flag{&unitFlag},
		Action:    convert,
	}

	hashCommand = cli.Command{
		Name:      "hash",
		Usage:     "SHA256 of a message",
		ArgsUsage: "<message>",
		Action:    hash,
	}
)

type marketJSON struct {
	Id                  string  `json:"id"`
	Question            string  `json:"question"`
	OutcomeA            string  `json:"outcomeA"`
	OutcomeB            string  `json:"outcomeB"`
	OutcomeAId          string  `json:"outcomeAId"`
	OutcomeBId          string  `json:"outcomeBId"`
	Oracle              string  `json:"oracle"`
	Network             string  `json:"network"`
	SettlementTimestamp uint64  `json:"settlementTimestamp"`
	EscapeTimestamp     uint64  `json:"escapeTimestamp"`
	Status              string  `json:"status"`
	TotalA              uint64  `json:"totalA"`
	TotalB              uint64  `json:"totalB"`
	OddsA               float64 `json:"oddsA"`
	OddsB               float64 `json:"oddsB"`
	NumBets             int     `json:"numBets"`
	PoolAddress         string  `json:"poolAddress,omitempty"`
	MarketUtxo          string  `json:"marketUtxo,omitempty"`
	WinningOutcome      string  `json:"winningOutcome,omitempty"`

	// set by info --announcement
	AnnouncementVerified bool `json:"announcementVerified,omitempty"`
}

func toMarketJSON(info application.MarketInfo) marketJSON {
	m := info.Market
	res := marketJSON{
		Id:                  m.Id,
		Question:            m.Question,
		OutcomeA:            m.OutcomeA.Text,
		OutcomeB:            m.OutcomeB.Text,
		OutcomeAId:          m.OutcomeA.Id(),
		OutcomeBId:          m.OutcomeB.Id(),
		Oracle:              m.OraclePubkey,
		Network:             m.Network,
		SettlementTimestamp: m.SettlementTimestamp,
		EscapeTimestamp:     info.EscapeTimestamp,
		Status:              info.Status.String(),
		TotalA:              m.TotalA(),
		TotalB:              m.TotalB(),
		OddsA:               info.OddsA,
		OddsB:               info.OddsB,
		NumBets:             len(m.Bets()),
		PoolAddress:         info.PoolAddress,
	}
	if m.MarketUtxo != nil {
		res.MarketUtxo = m.MarketUtxo.String()
	}
	if m.Settled {
		res.WinningOutcome = string(m.WinningOutcome)
	}
	return res
}

type depositStatusJSON struct {
	MarketId       string   `json:"marketId"`
	SubmissionId   string   `json:"submissionId,omitempty"`
	Collected      int      `json:"collected"`
	Expected       int      `json:"expected"`
	MissingIndexes []uint32 `json:"missingIndexes"`
	FundingTxid    string   `json:"fundingTxid,omitempty"`
	FundingTx      string   `json:"fundingTx,omitempty"`
}

func toDepositStatusJSON(status application.DepositStatus) depositStatusJSON {
	res := depositStatusJSON{
		MarketId:       status.MarketId,
		SubmissionId:   status.SubmissionId,
		Collected:      status.Collected,
		Expected:       status.Expected,
		MissingIndexes: status.MissingIndexes,
	}
	if status.IsReady() {
		res.FundingTxid = status.FundingTx.TxHash().String()
		// A tx that does not serialize is never produced by the builder.
		res.FundingTx, _ = serializeTx(status.FundingTx)
	}
	return res
}

func oracleSign(ctx *cli.Context) error {
	character, err := parseOutcome(ctx.String(outcomeFlag.Name))
	if err != nil {
		return err
	}
	key, err := parsePrivateKey(ctx.String(prvkeyFlag.Name))
	if err != nil {
		return err
	}

	svc, err := getService()
	if err != nil {
		return err
	}
	info, err := svc.GetMarketInfo(cntx, ctx.String(marketFlag.Name))
	if err != nil {
		return err
	}
	outcome, err := info.Market.Outcome(character)
	if err != nil {
		return err
	}

	assertion := outcome.Assertion("")
	if err := assertion.Sign(key); err != nil {
		return err
	}
	commitmentSig, err := oracle.SignCommitment(key, outcome.Id())
	if err != nil {
		return err
	}

	event := assertion.Event()
	event.ID = event.GetID()
	return printJSON(map[string]interface{}{
		"outcomeId":     outcome.Id(),
		"signature":     assertion.Sig,
		"commitmentSig": hex.EncodeToString(commitmentSig),
		"event":         event,
	})
}

func oracleAnnounce(ctx *cli.Context) error {
	key, err := parsePrivateKey(ctx.String(prvkeyFlag.Name))
	if err != nil {
		return err
	}

	svc, err := getService()
	if err != nil {
		return err
	}
	info, err := svc.GetMarketInfo(cntx, ctx.String(marketFlag.Name))
	if err != nil {
		return err
	}

	announcement := info.Market.Announcement("")
	if err := announcement.Sign(key); err != nil {
		return err
	}
	event := announcement.Event()
	event.ID = event.GetID()
	return printJSON(map[string]interface{}{
		"marketId":  info.Market.Id,
		"signature": announcement.Sig,
		"event":     event,
	})
}

func watch(ctx *cli.Context) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	log.Info("starting escape watcher...")
	if err := svc.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info("shutting down escape watcher...")
	return nil
}

func generateId(ctx *cli.Context) error {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return err
	}
	return printJSON(map[string]string{"id": hex.EncodeToString(buf)})
}

func validateAddress(ctx *cli.Context) error {
	net, err := common.NetworkFromString(ctx.String(networkFlag.Name))
	if err != nil {
		return err
	}

	res := map[string]interface{}{
		"address": ctx.String(addressFlag.Name),
		"network": net.Name,
		"valid":   true,
	}
	if err := common.ValidateAddress(ctx.String(addressFlag.Name), net); err != nil {
		res["valid"] = false
		res["error"] = err.Error()
	}
	return printJSON(res)
}

func convert(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("missing amount to convert")
	}

	switch strings.ToLower(ctx.String(unitFlag.Name)) {
	case "btc":
		amount, err := strconv.ParseFloat(ctx.Args().First(), 64)
		if err != nil {
			return fmt.Errorf("invalid amount: %s", err)
		}
		sats, err := common.BtcToSats(amount)
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{"btc": amount, "sats": sats})
	case "sat", "sats":
		sats, err := strconv.ParseUint(ctx.Args().First(), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount: %s", err)
		}
		return printJSON(map[string]interface{}{"btc": common.SatsToBtc(sats), "sats": sats})
	default:
		return fmt.Errorf("invalid unit, must be btc or sat")
	}
}

func hash(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("missing message to hash")
	}
	digest := sha256.Sum256([]byte(ctx.Args().First()))
	return printJSON(map[string]string{"hash": hex.EncodeToString(digest[:])})
}

func parsePrivateKey(prvkey string) (*btcec.PrivateKey, error) {
	keyBytes, err := hex.DecodeString(prvkey)
	if err != nil || len(keyBytes) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("invalid private key")
	}
	key, _ := btcec.PrivKeyFromBytes(keyBytes)
	return key, nil
}

func serializeTx(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

func printJSON(resp interface{}) error {
	jsonBytes, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		return err
	}

	fmt.Println(string(jsonBytes))
	return nil
}
