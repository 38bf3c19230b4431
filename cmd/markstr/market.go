package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ark-network/markstr/internal/core/application"
	"github.com/nbd-wtf/go-nostr"
	"github.com/urfave/cli/v2"
)

var cntx = context.Background()

var (
	createCommand = cli.Command{
		Name:  "create",
		Usage: "Create a new prediction market",
		Flags: []cli.Flag{
			&questionFlag, &outcomeAFlag, &outcomeBFlag, &oracleFlag, &settlementFlag, &timeoutFlag,
		},
		Action: createMarket,
	}

	infoCommand = cli.Command{
		Name:   "info",
		Usage:  "Show market information",
		Flags:  []cli.Flag{&marketFlag, &announcementFlag},
		Action: marketInfo,
	}

	listCommand = cli.Command{
		Name:   "list",
		Usage:  "List the markets not yet settled",
		Flags:  []cli.Flag{&listOracleFlag},
		Action: listMarkets,
	}

	betCommand = cli.Command{
		Name:  "bet",
		Usage: "Place a bet funded by the given outpoint",
		Flags: []cli.Flag{
			&marketFlag, &outcomeFlag, &amountFlag, &addressFlag, &txidFlag, &voutFlag,
		},
		Action: placeBet,
	}

	addressCommand = cli.Command{
		Name:   "address",
		Usage:  "Show the pool address of a market",
		Flags:  []cli.Flag{&marketFlag},
		Action: poolAddress,
	}

	fundCommand = cli.Command{
		Name:   "fund",
		Usage:  "Register the pool outpoint created by the funding transaction",
		Flags:  []cli.Flag{&marketFlag, &txidFlag, &voutFlag},
		Action: registerFunding,
	}

	settleCommand = cli.Command{
		Name:   "settle",
		Usage:  "Settle a market with the oracle's outcome assertion",
		Flags:  []cli.Flag{&marketFlag, &settleOutcomeFlag, &signatureFlag, &eventFlag},
		Action: settleMarket,
	}
)

func createMarket(ctx *cli.Context) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	market, err := svc.CreateMarket(cntx, application.CreateMarketRequest{
		Question:            ctx.String(questionFlag.Name),
		OutcomeA:            ctx.String(outcomeAFlag.Name),
		OutcomeB:            ctx.String(outcomeBFlag.Name),
		OraclePubkey:        ctx.String(oracleFlag.Name),
		SettlementTimestamp: ctx.Uint64(settlementFlag.Name),
		WithdrawTimeout:     uint32(ctx.Uint(timeoutFlag.Name)),
	})
	if err != nil {
		return err
	}

	info, err := svc.GetMarketInfo(cntx, market.Id)
	if err != nil {
		return err
	}
	return printJSON(toMarketJSON(*info))
}

func marketInfo(ctx *cli.Context) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	marketId := ctx.String(marketFlag.Name)
	if announcement := ctx.String(announcementFlag.Name); len(announcement) > 0 {
		var event nostr.Event
		if err := json.Unmarshal([]byte(announcement), &event); err != nil {
			return fmt.Errorf("invalid announcement event: %s", err)
		}
		info, err := svc.VerifyAnnouncement(cntx, marketId, &event)
		if err != nil {
			return err
		}
		res := toMarketJSON(*info)
		res.AnnouncementVerified = true
		return printJSON(res)
	}

	info, err := svc.GetMarketInfo(cntx, marketId)
	if err != nil {
		return err
	}
	return printJSON(toMarketJSON(*info))
}

func listMarkets(ctx *cli.Context) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	var infos []application.MarketInfo
	if oraclePubkey := ctx.String(listOracleFlag.Name); len(oraclePubkey) > 0 {
		infos, err = svc.ListOracleMarkets(cntx, oraclePubkey)
	} else {
		infos, err = svc.ListOpenMarkets(cntx)
	}
	if err != nil {
		return err
	}
	markets := make([]marketJSON, 0, len(infos))
	for _, info := range infos {
		markets = append(markets, toMarketJSON(info))
	}
	return printJSON(markets)
}

func placeBet(ctx *cli.Context) error {
	character, err := parseOutcome(ctx.String(outcomeFlag.Name))
	if err != nil {
		return err
	}

	svc, err := getService()
	if err != nil {
		return err
	}

	marketId := ctx.String(marketFlag.Name)
	if _, err := svc.PlaceBet(cntx, marketId, application.BetRequest{
		Character:     character,
		Amount:        ctx.Uint64(amountFlag.Name),
		PayoutAddress: ctx.String(addressFlag.Name),
		Txid:          ctx.String(txidFlag.Name),
		VOut:          uint32(ctx.Uint(voutFlag.Name)),
	}); err != nil {
		return err
	}

	info, err := svc.GetMarketInfo(cntx, marketId)
	if err != nil {
		return err
	}
	return printJSON(toMarketJSON(*info))
}

func poolAddress(ctx *cli.Context) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	addr, err := svc.GetPoolAddress(cntx, ctx.String(marketFlag.Name))
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"address": addr})
}

func registerFunding(ctx *cli.Context) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	market, err := svc.RegisterFunding(
		cntx, ctx.String(marketFlag.Name), ctx.String(txidFlag.Name), uint32(ctx.Uint(voutFlag.Name)),
	)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"marketUtxo": market.MarketUtxo.String()})
}

func settleMarket(ctx *cli.Context) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	marketId := ctx.String(marketFlag.Name)

	if eventStr := ctx.String(eventFlag.Name); len(eventStr) > 0 {
		event := &nostr.Event{}
		if err := json.Unmarshal([]byte(eventStr), event); err != nil {
			return fmt.Errorf("invalid event: %s", err)
		}
		if _, err := svc.SettleMarketWithEvent(cntx, marketId, event); err != nil {
			return err
		}
	} else {
		character, err := parseOutcome(ctx.String(settleOutcomeFlag.Name))
		if err != nil {
			return err
		}
		sig := ctx.String(signatureFlag.Name)
		if len(sig) <= 0 {
			return fmt.Errorf("either --signature or --event is required")
		}
		if _, err := svc.SettleMarket(cntx, marketId, character, sig); err != nil {
			return err
		}
	}

	info, err := svc.GetMarketInfo(cntx, marketId)
	if err != nil {
		return err
	}
	return printJSON(toMarketJSON(*info))
}

func parseOutcome(outcome string) (byte, error) {
	outcome = strings.ToUpper(strings.TrimSpace(outcome))
	if outcome != "A" && outcome != "B" {
		return 0, fmt.Errorf("invalid outcome %q, must be A or B", outcome)
	}
	return outcome[0], nil
}
