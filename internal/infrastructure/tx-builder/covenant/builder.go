package txbuilder

import (
	"fmt"

	"github.com/ark-network/markstr/common"
	"github.com/ark-network/markstr/common/ctv"
	"github.com/ark-network/markstr/common/oracle"
	"github.com/ark-network/markstr/common/pooltree"
	"github.com/ark-network/markstr/internal/core/domain"
	"github.com/ark-network/markstr/internal/core/ports"
	"github.com/btcsuite/btcd/wire"
)

type txBuilder struct{}

func NewTxBuilder() ports.TxBuilder {
	return &txBuilder{}
}

// PoolAddress returns the taproot address bettors fund. It commits to the
// payout template of each outcome and to the escape template, so it changes
// with every bet placed.
func (b *txBuilder) PoolAddress(market *domain.Market) (string, error) {
	net, tree, err := b.poolTree(market)
	if err != nil {
		return "", err
	}
	addr, err := tree.Address(net.Params)
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode pool address: %s", domain.ErrNetwork, err)
	}
	return addr, nil
}

func (b *txBuilder) PoolScript(market *domain.Market) ([]byte, error) {
	_, tree, err := b.poolTree(market)
	if err != nil {
		return nil, err
	}
	return tree.PkScript()
}

func (b *txBuilder) poolTree(market *domain.Market) (common.Network, *pooltree.PoolTree, error) {
	if market == nil {
		return common.Network{}, nil, fmt.Errorf("missing market")
	}
	net, err := market.GetNetwork()
	if err != nil {
		return common.Network{}, nil, err
	}
	oracleKey, err := oracle.ParsePubKey(market.OraclePubkey)
	if err != nil {
		return common.Network{}, nil, fmt.Errorf("%w: %s", domain.ErrInvalidMarket, err)
	}

	closures := make([]*pooltree.OutcomeClosure, 0, 2)
	for _, outcome := range []domain.Outcome{market.OutcomeA, market.OutcomeB} {
		payoutTx, err := payoutTemplate(market, net, outcome.Character)
		if err != nil {
			return common.Network{}, nil, err
		}
		hash, err := ctv.TxHash(payoutTx)
		if err != nil {
			return common.Network{}, nil, err
		}
		closure, err := pooltree.NewOutcomeClosure(outcome.Id(), oracleKey, hash)
		if err != nil {
			return common.Network{}, nil, err
		}
		closures = append(closures, closure)
	}

	escapeTx, err := escapeTemplate(market, net)
	if err != nil {
		return common.Network{}, nil, err
	}
	escapeHash, err := ctv.TxHash(escapeTx)
	if err != nil {
		return common.Network{}, nil, err
	}

	tree, err := pooltree.NewPoolTree(
		closures[0], closures[1], &pooltree.EscapeClosure{CovenantHash: escapeHash},
	)
	if err != nil {
		return common.Network{}, nil, fmt.Errorf("failed to assemble pool tree: %s", err)
	}
	return net, tree, nil
}

// payoutTemplate is the transaction paying the given outcome's winners. The
// spent outpoint is left empty, it is not committed by the covenant.
func payoutTemplate(
	market *domain.Market, net common.Network, character byte,
) (*wire.MsgTx, error) {
	outputs, err := payoutOutputs(market, net, character)
	if err != nil {
		return nil, err
	}
	return newTemplate(net.TxVersion, 0, common.SequenceRBFNoLocktime, outputs), nil
}

// escapeTemplate refunds every bet once settlement + withdraw timeout is
// reached.
func escapeTemplate(market *domain.Market, net common.Network) (*wire.MsgTx, error) {
	outputs, err := escapeOutputs(market, net)
	if err != nil {
		return nil, err
	}
	locktime, err := common.EscapeLocktime(market.SettlementTimestamp, market.WithdrawTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidMarket, err)
	}
	return newTemplate(
		net.TxVersion, uint32(locktime), common.SequenceEnableLocktime, outputs,
	), nil
}

func payoutOutputs(
	market *domain.Market, net common.Network, character byte,
) ([]*wire.TxOut, error) {
	receivers, err := market.PayoutReceivers(character)
	if err != nil {
		return nil, err
	}

	outputs := make([]*wire.TxOut, 0, len(receivers)+1)
	for _, receiver := range receivers {
		script, err := receiverScript(receiver.Address, net)
		if err != nil {
			return nil, err
		}
		if receiver.Amount <= common.DustLimit {
			continue
		}
		outputs = append(outputs, wire.NewTxOut(int64(receiver.Amount), script))
	}

	fees := market.Fees
	if fees.HasAdministrator() && fees.AdministratorFee > 0 {
		script, err := receiverScript(fees.AdministratorAddress, net)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, wire.NewTxOut(int64(fees.AdministratorFee), script))
	}

	if len(outputs) <= 0 {
		return nil, fmt.Errorf(
			"%w: no payout output above dust for outcome %c", domain.ErrPayout, character,
		)
	}
	return outputs, nil
}

func escapeOutputs(market *domain.Market, net common.Network) ([]*wire.TxOut, error) {
	receivers, err := market.EscapeReceivers()
	if err != nil {
		return nil, err
	}

	outputs := make([]*wire.TxOut, 0, len(receivers))
	for _, receiver := range receivers {
		script, err := receiverScript(receiver.Address, net)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, wire.NewTxOut(int64(receiver.Amount), script))
	}
	return outputs, nil
}
