package ports

import (
	"github.com/ark-network/markstr/internal/core/domain"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
)

const (
	WithdrawPayout WithdrawType = iota
	WithdrawEscape
)

type WithdrawType int

func (t WithdrawType) String() string {
	switch t {
	case WithdrawPayout:
		return "payout"
	case WithdrawEscape:
		return "escape"
	default:
		return "unknown"
	}
}

// PartialDeposit is a single bettor's slice of the funding transaction: one
// input and the output at the same index.
type PartialDeposit struct {
	Tx         *wire.MsgTx
	InputIndex uint32
}

type WithdrawParams struct {
	Market   *domain.Market
	Type     WithdrawType
	PoolUtxo wire.OutPoint
	// FeeRate is optional, when set the builder checks the fee the template
	// leaves to miners against it.
	FeeRate *chainfee.SatPerKVByte
}

type TxBuilder interface {
	PoolAddress(market *domain.Market) (string, error)
	PoolScript(market *domain.Market) ([]byte, error)
	BuildPartialDeposit(
		market *domain.Market, bet domain.Bet, inputIndex uint32,
	) (*PartialDeposit, error)
	SignPartialDeposit(
		partial *PartialDeposit, key *btcec.PrivateKey,
		prevoutValue int64, prevoutScript []byte,
	) ([]byte, error)
	AddDepositSignature(partial *PartialDeposit, signature []byte) error
	CombinePartialDeposits(partials []PartialDeposit) (*wire.MsgTx, error)
	BuildWithdrawTx(params WithdrawParams) (*wire.MsgTx, error)
	SignWithdrawTx(
		tx *wire.MsgTx, params WithdrawParams, oracleSignature []byte,
	) (*wire.MsgTx, error)
}
