package application

import (
	"context"

	"github.com/ark-network/markstr/internal/core/domain"
	"github.com/ark-network/markstr/internal/core/ports"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
	"github.com/nbd-wtf/go-nostr"
)

type Service interface {
	Start() error
	Stop()
	CreateMarket(ctx context.Context, req CreateMarketRequest) (*domain.Market, error)
	GetMarketInfo(ctx context.Context, marketId string) (*MarketInfo, error)
	ListOpenMarkets(ctx context.Context) ([]MarketInfo, error)
	ListOracleMarkets(ctx context.Context, oraclePubkey string) ([]MarketInfo, error)
	// VerifyAnnouncement checks that the event is the oracle's signed
	// announcement of the market.
	VerifyAnnouncement(
		ctx context.Context, marketId string, event *nostr.Event,
	) (*MarketInfo, error)
	PlaceBet(ctx context.Context, marketId string, req BetRequest) (*domain.Market, error)
	GetPoolAddress(ctx context.Context, marketId string) (string, error)
	GetPartialDeposit(
		ctx context.Context, marketId, txid string, vout uint32,
	) (*ports.PartialDeposit, error)
	// SubmitPartialDeposit stores a signed partial once it matches the one
	// expected for its index and its signature verifies against prevout.
	SubmitPartialDeposit(
		ctx context.Context, marketId string, partial ports.PartialDeposit,
		prevout *wire.TxOut,
	) (*DepositStatus, error)
	CombineDeposits(ctx context.Context, marketId string) (*DepositStatus, error)
	RegisterFunding(
		ctx context.Context, marketId, txid string, vout uint32,
	) (*domain.Market, error)
	SettleMarket(
		ctx context.Context, marketId string, character byte, signature string,
	) (*domain.Market, error)
	SettleMarketWithEvent(
		ctx context.Context, marketId string, event *nostr.Event,
	) (*domain.Market, error)
	BuildWithdrawTx(ctx context.Context, req WithdrawRequest) (*wire.MsgTx, error)
}

type CreateMarketRequest struct {
	Question            string
	OutcomeA            string
	OutcomeB            string
	OraclePubkey        string
	SettlementTimestamp uint64
	// Zero values fall back to the service defaults.
	WithdrawTimeout uint32
	Fees            *domain.MarketFees
}

type BetRequest struct {
	Character     byte
	Amount        uint64
	PayoutAddress string
	Txid          string
	VOut          uint32
}

type MarketInfo struct {
	Market          domain.Market
	Status          domain.MarketStatus
	OddsA           float64
	OddsB           float64
	EscapeTimestamp uint64
	// PoolAddress is empty until both sides have bets.
	PoolAddress string
}

// DepositStatus reports the progress of the deposit collection of a market.
// FundingTx is set only once every partial has been collected.
type DepositStatus struct {
	MarketId       string
	SubmissionId   string
	Collected      int
	Expected       int
	MissingIndexes []uint32
	FundingTx      *wire.MsgTx
}

func (s DepositStatus) IsReady() bool {
	return s.FundingTx != nil
}

type WithdrawRequest struct {
	MarketId string
	Type     ports.WithdrawType
	// PoolUtxo defaults to the market's funding outpoint.
	PoolUtxo *wire.OutPoint
	FeeRate  *chainfee.SatPerKVByte
	// OracleSignature is the commitment signature required by the payout
	// path.
	OracleSignature []byte
}
