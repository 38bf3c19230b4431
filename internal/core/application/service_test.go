package application_test

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ark-network/markstr/common"
	"github.com/ark-network/markstr/common/oracle"
	"github.com/ark-network/markstr/internal/core/application"
	"github.com/ark-network/markstr/internal/core/domain"
	"github.com/ark-network/markstr/internal/core/ports"
	"github.com/ark-network/markstr/internal/infrastructure/db"
	inmemorylivestore "github.com/ark-network/markstr/internal/infrastructure/live-store/inmemory"
	txbuilder "github.com/ark-network/markstr/internal/infrastructure/tx-builder/covenant"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	oraclePubkey = "f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9"
	settlement   = uint64(1735689600)
	question     = "Who will win the match?"

	addr1       = "bcrt1qqvpsxqcrqvpsxqcrqvpsxqcrqvpsxqcruj60yu"
	addr2       = "bcrt1qqszqgpqyqszqgpqyqszqgpqyqszqgpqyuza2rq"
	addr3       = "bcrt1qq5zs2pg9q5zs2pg9q5zs2pg9q5zs2pg9ajutfp"
	mainnetAddr = "bc1qqvpsxqcrqvpsxqcrqvpsxqcrqvpsxqcr5ac3gx"
)

var (
	ctx       = context.Background()
	builder   = txbuilder.NewTxBuilder()
	oracleKey = privKey(3)
)

type bettor struct {
	key       *btcec.PrivateKey
	character byte
	amount    uint64
	address   string
	txid      string
	vout      uint32
}

var bettors = []bettor{
	{privKey(10), 'A', 100000, addr1, strings.Repeat("11", 32), 0},
	{privKey(11), 'A', 50000, addr2, strings.Repeat("22", 32), 0},
	{privKey(12), 'B', 150000, addr3, strings.Repeat("33", 32), 1},
}

type mockedScheduler struct {
	mock.Mock
}

func (m *mockedScheduler) Start() {
	m.Called()
}

func (m *mockedScheduler) Stop() {
	m.Called()
}

func (m *mockedScheduler) ScheduleTask(interval time.Duration, immediate bool, task func()) error {
	args := m.Called(interval, immediate, task)
	return args.Error(0)
}

func TestCreateMarket(t *testing.T) {
	svc := newService(t, nil)

	market, err := svc.CreateMarket(ctx, newMarketRequest(settlement))
	require.NoError(t, err)
	require.NotNil(t, market)
	require.Len(t, market.Id, 64)
	require.Equal(t, common.BitcoinRegTest.Name, market.Network)
	require.Equal(t, domain.DefaultWithdrawTimeout, market.WithdrawTimeout)
	require.Equal(t, domain.DefaultMarketFees(), market.Fees)

	info, err := svc.GetMarketInfo(ctx, market.Id)
	require.NoError(t, err)
	require.Equal(t, market.Id, info.Market.Id)
	require.Equal(t, domain.MarketStatusEscapable, info.Status)
	require.Empty(t, info.PoolAddress)
	require.Equal(t, settlement+uint64(domain.DefaultWithdrawTimeout), info.EscapeTimestamp)

	t.Run("invalid", func(t *testing.T) {
		_, err := svc.CreateMarket(ctx, newMarketRequest(settlement))
		require.ErrorIs(t, err, application.ErrMarketAlreadyExists)

		req := newMarketRequest(settlement)
		req.OraclePubkey = "abcd"
		_, err = svc.CreateMarket(ctx, req)
		require.ErrorIs(t, err, domain.ErrInvalidMarket)

		req = newMarketRequest(settlement)
		req.Fees = &domain.MarketFees{
			FeePerDepositOutput:  1000,
			FeePerWithdrawOutput: 1000,
			AdministratorFee:     5000,
			AdministratorAddress: mainnetAddr,
		}
		_, err = svc.CreateMarket(ctx, req)
		require.ErrorIs(t, err, domain.ErrInvalidAddress)

		_, err = svc.GetMarketInfo(ctx, strings.Repeat("ff", 32))
		require.ErrorIs(t, err, domain.ErrMarketNotFound)
	})

	t.Run("db failure", func(t *testing.T) {
		repoManager := newRepoManager(t)
		svc, err := application.NewService(
			application.ServiceConfig{Network: common.BitcoinRegTest},
			nil, &unavailableEventsRepoManager{repoManager}, builder,
			inmemorylivestore.NewLiveStore(),
		)
		require.NoError(t, err)
		t.Cleanup(svc.Stop)

		_, err = svc.CreateMarket(ctx, newMarketRequest(settlement))
		require.ErrorIs(t, err, errEventsUnavailable)
		require.NotErrorIs(t, err, application.ErrMarketAlreadyExists)

		_, err = repoManager.Markets().GetMarketWithId(ctx, market.Id)
		require.ErrorIs(t, err, domain.ErrMarketNotFound)
	})
}

func TestOracleMarkets(t *testing.T) {
	svc := newService(t, nil)

	market, err := svc.CreateMarket(ctx, newMarketRequest(settlement))
	require.NoError(t, err)
	other := newMarketRequest(settlement)
	other.OraclePubkey = pubkeyHex(privKey(4))
	_, err = svc.CreateMarket(ctx, other)
	require.NoError(t, err)

	markets, err := svc.ListOracleMarkets(ctx, oraclePubkey)
	require.NoError(t, err)
	require.Len(t, markets, 1)
	require.Equal(t, market.Id, markets[0].Market.Id)

	_, err = svc.ListOracleMarkets(ctx, "abcd")
	require.ErrorIs(t, err, domain.ErrOracle)

	announcement := market.Announcement("")
	require.NoError(t, announcement.Sign(oracleKey))
	event := announcement.Event()
	event.ID = event.GetID()

	info, err := svc.VerifyAnnouncement(ctx, market.Id, event)
	require.NoError(t, err)
	require.Equal(t, market.Id, info.Market.Id)

	t.Run("invalid", func(t *testing.T) {
		_, err := svc.VerifyAnnouncement(ctx, market.Id, nil)
		require.ErrorIs(t, err, domain.ErrOracle)

		unsigned := market.Announcement("").Event()
		_, err = svc.VerifyAnnouncement(ctx, market.Id, unsigned)
		require.ErrorIs(t, err, domain.ErrInvalidSignature)

		// A genuine announcement of another question.
		different := market.Announcement("")
		different.Question = "Who will lose the match?"
		require.NoError(t, different.Sign(oracleKey))
		_, err = svc.VerifyAnnouncement(ctx, market.Id, different.Event())
		require.ErrorIs(t, err, domain.ErrOracle)
	})
}

func TestPlaceBet(t *testing.T) {
	svc := newService(t, nil)

	market, err := svc.CreateMarket(ctx, newMarketRequest(settlement))
	require.NoError(t, err)

	market = placeBets(t, svc, market.Id)
	require.Len(t, market.BetsA, 2)
	require.Len(t, market.BetsB, 1)
	require.Equal(t, uint64(300000), market.TotalAmount)

	info, err := svc.GetMarketInfo(ctx, market.Id)
	require.NoError(t, err)
	require.InDelta(t, 2.0, info.OddsA, 0.0001)
	require.InDelta(t, 2.0, info.OddsB, 0.0001)

	addr, err := svc.GetPoolAddress(ctx, market.Id)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(addr, "bcrt1p"))
	require.Equal(t, addr, info.PoolAddress)

	markets, err := svc.ListOpenMarkets(ctx)
	require.NoError(t, err)
	require.Len(t, markets, 1)
	require.Equal(t, addr, markets[0].PoolAddress)

	t.Run("invalid", func(t *testing.T) {
		_, err := svc.PlaceBet(ctx, market.Id, application.BetRequest{
			Character:     'A',
			Amount:        1000,
			PayoutAddress: mainnetAddr,
			Txid:          strings.Repeat("44", 32),
		})
		require.ErrorIs(t, err, domain.ErrInvalidAddress)

		_, err = svc.PlaceBet(ctx, market.Id, application.BetRequest{
			Character:     'A',
			Amount:        1000,
			PayoutAddress: addr1,
			Txid:          bettors[0].txid,
			VOut:          bettors[0].vout,
		})
		require.ErrorIs(t, err, domain.ErrInvalidBet)

		_, err = svc.PlaceBet(ctx, strings.Repeat("ff", 32), application.BetRequest{
			Character:     'A',
			Amount:        1000,
			PayoutAddress: addr1,
			Txid:          strings.Repeat("44", 32),
		})
		require.Error(t, err)
	})
}

func TestDeposits(t *testing.T) {
	svc := newService(t, nil)

	market, err := svc.CreateMarket(ctx, newMarketRequest(settlement))
	require.NoError(t, err)
	market = placeBets(t, svc, market.Id)

	status, err := svc.CombineDeposits(ctx, market.Id)
	require.NoError(t, err)
	require.False(t, status.IsReady())
	require.Equal(t, []uint32{0, 1, 2}, status.MissingIndexes)

	t.Run("invalid", func(t *testing.T) {
		unsigned, err := svc.GetPartialDeposit(ctx, market.Id, bettors[0].txid, bettors[0].vout)
		require.NoError(t, err)
		partial, prevout := signedPartial(t, svc, market.Id, bettors[0])

		_, err = svc.SubmitPartialDeposit(ctx, market.Id, *unsigned, prevout)
		require.ErrorIs(t, err, domain.ErrInvalidSignature)

		_, err = svc.SubmitPartialDeposit(ctx, market.Id, *partial, nil)
		require.ErrorIs(t, err, application.ErrInvalidDeposit)

		wrongIndex := *partial
		wrongIndex.InputIndex = 2
		_, err = svc.SubmitPartialDeposit(ctx, market.Id, wrongIndex, prevout)
		require.ErrorIs(t, err, application.ErrInvalidDeposit)

		tampered := ports.PartialDeposit{Tx: partial.Tx.Copy(), InputIndex: partial.InputIndex}
		tampered.Tx.TxOut[0].Value += 1
		_, err = svc.SubmitPartialDeposit(ctx, market.Id, tampered, prevout)
		require.ErrorIs(t, err, application.ErrInvalidDeposit)

		otherPrevout := bip86Prevout(t, bettors[1].key, prevout.Value)
		_, err = svc.SubmitPartialDeposit(ctx, market.Id, *partial, otherPrevout)
		require.ErrorIs(t, err, domain.ErrInvalidSignature)

		wrongValue := wire.NewTxOut(prevout.Value+1, prevout.PkScript)
		_, err = svc.SubmitPartialDeposit(ctx, market.Id, *partial, wrongValue)
		require.ErrorIs(t, err, application.ErrInvalidDeposit)

		_, err = svc.GetPartialDeposit(ctx, market.Id, strings.Repeat("44", 32), 0)
		require.ErrorIs(t, err, domain.ErrInvalidBet)
	})

	// Partials are submitted in reverse order.
	for i := len(bettors) - 1; i >= 0; i-- {
		partial, prevout := signedPartial(t, svc, market.Id, bettors[i])
		status, err := svc.SubmitPartialDeposit(ctx, market.Id, *partial, prevout)
		require.NoError(t, err)
		require.NotEmpty(t, status.SubmissionId)
		require.Equal(t, len(bettors)-i, status.Collected)
		require.Equal(t, len(bettors), status.Expected)
		require.Len(t, status.MissingIndexes, i)

		if i == 1 {
			_, err := svc.SubmitPartialDeposit(ctx, market.Id, *partial, prevout)
			require.Error(t, err)

			status, err := svc.CombineDeposits(ctx, market.Id)
			require.NoError(t, err)
			require.False(t, status.IsReady())
			require.Equal(t, []uint32{0}, status.MissingIndexes)
		}
	}

	status, err = svc.CombineDeposits(ctx, market.Id)
	require.NoError(t, err)
	require.True(t, status.IsReady())
	require.Empty(t, status.MissingIndexes)

	fundingTx := status.FundingTx
	require.Len(t, fundingTx.TxIn, len(bettors))
	require.Len(t, fundingTx.TxOut, len(bettors))
	poolScript, err := builder.PoolScript(market)
	require.NoError(t, err)

	prevouts := make(map[wire.OutPoint]*wire.TxOut)
	for i, b := range bettors {
		in := fundingTx.TxIn[i]
		require.Equal(t, b.txid, in.PreviousOutPoint.Hash.String())
		require.Equal(t, poolScript, fundingTx.TxOut[i].PkScript)
		require.Equal(t, int64(b.amount-domain.DefaultFeePerDepositOutput), fundingTx.TxOut[i].Value)
		prevouts[in.PreviousOutPoint] = bip86Prevout(t, b.key, int64(b.amount))
	}
	fetcher := txscript.NewMultiPrevOutFetcher(prevouts)
	sigHashes := txscript.NewTxSigHashes(fundingTx, fetcher)
	for i := range fundingTx.TxIn {
		prevout := fetcher.FetchPrevOutput(fundingTx.TxIn[i].PreviousOutPoint)
		engine, err := txscript.NewEngine(
			prevout.PkScript, fundingTx, i, txscript.StandardVerifyFlags, nil,
			sigHashes, prevout.Value, fetcher,
		)
		require.NoError(t, err)
		require.NoError(t, engine.Execute())
	}

	txid := fundingTx.TxHash().String()
	funded, err := svc.RegisterFunding(ctx, market.Id, txid, 0)
	require.NoError(t, err)
	require.True(t, funded.IsFunded())
	require.Equal(t, txid, funded.MarketUtxo.Txid)

	_, err = svc.CombineDeposits(ctx, market.Id)
	require.ErrorIs(t, err, application.ErrMarketFunded)
	_, err = svc.GetPartialDeposit(ctx, market.Id, bettors[0].txid, bettors[0].vout)
	require.ErrorIs(t, err, application.ErrMarketFunded)
	_, err = svc.RegisterFunding(ctx, market.Id, txid, 1)
	require.ErrorIs(t, err, domain.ErrInvalidMarket)
}

func TestDepositsAfterLateBet(t *testing.T) {
	svc := newService(t, nil)

	market, err := svc.CreateMarket(ctx, newMarketRequest(settlement))
	require.NoError(t, err)
	market = placeBets(t, svc, market.Id)

	partial, prevout := signedPartial(t, svc, market.Id, bettors[2])
	status, err := svc.SubmitPartialDeposit(ctx, market.Id, *partial, prevout)
	require.NoError(t, err)
	require.Equal(t, 1, status.Collected)

	// The late bet on A moves the B bet from index 2 to 3.
	late := bettor{privKey(13), 'A', 20000, addr1, strings.Repeat("55", 32), 0}
	market, err = svc.PlaceBet(ctx, market.Id, application.BetRequest{
		Character:     late.character,
		Amount:        late.amount,
		PayoutAddress: late.address,
		Txid:          late.txid,
		VOut:          late.vout,
	})
	require.NoError(t, err)

	status, err = svc.CombineDeposits(ctx, market.Id)
	require.NoError(t, err)
	require.Zero(t, status.Collected)
	require.Equal(t, []uint32{0, 1, 2, 3}, status.MissingIndexes)

	all := []bettor{bettors[0], bettors[1], late, bettors[2]}
	for _, b := range all {
		partial, prevout := signedPartial(t, svc, market.Id, b)
		_, err := svc.SubmitPartialDeposit(ctx, market.Id, *partial, prevout)
		require.NoError(t, err)
	}

	status, err = svc.CombineDeposits(ctx, market.Id)
	require.NoError(t, err)
	require.True(t, status.IsReady())
	require.Len(t, status.FundingTx.TxIn, len(all))

	poolScript, err := builder.PoolScript(market)
	require.NoError(t, err)
	for i, b := range all {
		require.Equal(t, b.txid, status.FundingTx.TxIn[i].PreviousOutPoint.Hash.String())
		require.Equal(t, poolScript, status.FundingTx.TxOut[i].PkScript)
	}
}

func TestCombineEvictsStaleDeposits(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	liveStore := inmemorylivestore.NewLiveStore()
	svc, err := application.NewService(
		application.ServiceConfig{Network: common.BitcoinRegTest},
		nil, newRepoManager(t), builder, liveStore,
	)
	require.NoError(t, err)
	t.Cleanup(svc.Stop)

	market, err := svc.CreateMarket(ctx, newMarketRequest(settlement))
	require.NoError(t, err)
	market = placeBets(t, svc, market.Id)

	partial, prevout := signedPartial(t, svc, market.Id, bettors[0])
	_, err = svc.SubmitPartialDeposit(ctx, market.Id, *partial, prevout)
	require.NoError(t, err)

	// A partial paying a pool script that no longer matches the market.
	stale, _ := signedPartial(t, svc, market.Id, bettors[1])
	stale.Tx.TxOut[0].PkScript = prevout.PkScript
	require.NoError(t, liveStore.Deposits().Push(ctx, market.Id, *stale))

	status, err := svc.CombineDeposits(ctx, market.Id)
	require.NoError(t, err)
	require.False(t, status.IsReady())
	require.Equal(t, 1, status.Collected)
	require.Equal(t, []uint32{1, 2}, status.MissingIndexes)

	count, err := liveStore.Deposits().Len(ctx, market.Id)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.NotNil(t, hook.LastEntry())
	require.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	require.Contains(t, hook.LastEntry().Message, "evicted 1 stale partial deposits")

	for _, b := range bettors[1:] {
		partial, prevout := signedPartial(t, svc, market.Id, b)
		_, err := svc.SubmitPartialDeposit(ctx, market.Id, *partial, prevout)
		require.NoError(t, err)
	}
	status, err = svc.CombineDeposits(ctx, market.Id)
	require.NoError(t, err)
	require.True(t, status.IsReady())
}

func TestSettleAndWithdraw(t *testing.T) {
	svc := newService(t, nil)

	market, err := svc.CreateMarket(ctx, newMarketRequest(settlement))
	require.NoError(t, err)
	market = placeBets(t, svc, market.Id)

	_, err = svc.BuildWithdrawTx(ctx, application.WithdrawRequest{
		MarketId: market.Id,
		Type:     ports.WithdrawEscape,
	})
	require.ErrorIs(t, err, application.ErrMarketNotFunded)

	fundingTxid := strings.Repeat("ab", 32)
	_, err = svc.RegisterFunding(ctx, market.Id, fundingTxid, 0)
	require.NoError(t, err)

	escapeTx, err := svc.BuildWithdrawTx(ctx, application.WithdrawRequest{
		MarketId: market.Id,
		Type:     ports.WithdrawEscape,
	})
	require.NoError(t, err)
	require.Equal(t, fundingTxid, escapeTx.TxIn[0].PreviousOutPoint.Hash.String())
	require.Len(t, escapeTx.TxIn[0].Witness, 2)
	require.Len(t, escapeTx.TxOut, len(bettors))
	for i, b := range bettors {
		require.Equal(t, int64(b.amount), escapeTx.TxOut[i].Value)
	}

	outcome, err := market.Outcome('B')
	require.NoError(t, err)
	commitmentSig, err := oracle.SignCommitment(oracleKey, outcome.Id())
	require.NoError(t, err)

	_, err = svc.BuildWithdrawTx(ctx, application.WithdrawRequest{
		MarketId:        market.Id,
		Type:            ports.WithdrawPayout,
		OracleSignature: commitmentSig,
	})
	require.ErrorIs(t, err, domain.ErrPayout)

	_, err = svc.SettleMarket(ctx, market.Id, 'B', strings.Repeat("00", 64))
	require.ErrorIs(t, err, domain.ErrInvalidSignature)

	assertion := outcome.Assertion("")
	require.NoError(t, assertion.Sign(oracleKey))
	settled, err := svc.SettleMarket(ctx, market.Id, 'B', assertion.Sig)
	require.NoError(t, err)
	require.True(t, settled.Settled)
	require.Equal(t, byte('B'), settled.WinningOutcome)

	_, err = svc.SettleMarket(ctx, market.Id, 'B', assertion.Sig)
	require.ErrorIs(t, err, domain.ErrSettlement)

	info, err := svc.GetMarketInfo(ctx, market.Id)
	require.NoError(t, err)
	require.Equal(t, domain.MarketStatusSettled, info.Status)

	markets, err := svc.ListOpenMarkets(ctx)
	require.NoError(t, err)
	require.Empty(t, markets)

	// The escape path stays spendable on chain after settlement.
	escapeTx, err = svc.BuildWithdrawTx(ctx, application.WithdrawRequest{
		MarketId: market.Id,
		Type:     ports.WithdrawEscape,
	})
	require.NoError(t, err)
	require.Equal(t, uint32(settled.EscapeTimestamp()), escapeTx.LockTime)

	otherUtxo := wire.OutPoint{Index: 1}
	payoutTx, err := svc.BuildWithdrawTx(ctx, application.WithdrawRequest{
		MarketId:        market.Id,
		Type:            ports.WithdrawPayout,
		PoolUtxo:        &otherUtxo,
		OracleSignature: commitmentSig,
	})
	require.NoError(t, err)
	require.Equal(t, otherUtxo, payoutTx.TxIn[0].PreviousOutPoint)
	require.Len(t, payoutTx.TxIn[0].Witness, 4)
	require.Len(t, payoutTx.TxOut, 1)
	require.Equal(t, int64(299000), payoutTx.TxOut[0].Value)

	wrongOutcome, err := market.Outcome('A')
	require.NoError(t, err)
	wrongSig, err := oracle.SignCommitment(oracleKey, wrongOutcome.Id())
	require.NoError(t, err)
	_, err = svc.BuildWithdrawTx(ctx, application.WithdrawRequest{
		MarketId:        market.Id,
		Type:            ports.WithdrawPayout,
		OracleSignature: wrongSig,
	})
	require.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestSettleWithEvent(t *testing.T) {
	svc := newService(t, nil)

	market, err := svc.CreateMarket(ctx, newMarketRequest(settlement))
	require.NoError(t, err)

	outcome, err := market.Outcome('A')
	require.NoError(t, err)
	assertion := outcome.Assertion("")
	require.NoError(t, assertion.Sign(oracleKey))

	event := assertion.Event()
	event.ID = event.GetID()

	t.Run("invalid", func(t *testing.T) {
		_, err := svc.SettleMarketWithEvent(ctx, market.Id, nil)
		require.ErrorIs(t, err, domain.ErrOracle)

		tampered := *event
		tampered.Content = "Team B wins"
		tampered.ID = ""
		_, err = svc.SettleMarketWithEvent(ctx, market.Id, &tampered)
		require.Error(t, err)

		early := outcome
		early.Timestamp = settlement - 1
		earlyAssertion := early.Assertion("")
		require.NoError(t, earlyAssertion.Sign(oracleKey))
		_, err = svc.SettleMarketWithEvent(ctx, market.Id, earlyAssertion.Event())
		require.ErrorIs(t, err, domain.ErrOracle)
	})

	settled, err := svc.SettleMarketWithEvent(ctx, market.Id, event)
	require.NoError(t, err)
	require.True(t, settled.Settled)
	require.Equal(t, byte('A'), settled.WinningOutcome)
	require.Equal(t, assertion.Sig, settled.OracleSignature)
}

func TestEscapeWatcher(t *testing.T) {
	hook := logtest.NewGlobal()
	logrus.SetLevel(logrus.InfoLevel)
	defer hook.Reset()

	var task func()
	scheduler := &mockedScheduler{}
	scheduler.On("Start").Return()
	scheduler.On("Stop").Return()
	scheduler.On("ScheduleTask", time.Minute, true, mock.Anything).
		Run(func(args mock.Arguments) {
			task = args.Get(2).(func())
		}).
		Return(nil)

	svc := newService(t, scheduler)
	require.NoError(t, svc.Start())
	require.NotNil(t, task)
	scheduler.AssertCalled(t, "Start")
	scheduler.AssertCalled(t, "ScheduleTask", time.Minute, true, mock.Anything)
	scheduler.AssertNotCalled(t, "Stop")

	expired, err := svc.CreateMarket(ctx, newMarketRequest(settlement))
	require.NoError(t, err)

	future := uint64(time.Now().Add(24 * time.Hour).Unix())
	active, err := svc.CreateMarket(ctx, newMarketRequest(future))
	require.NoError(t, err)

	_, err = svc.RegisterFunding(ctx, active.Id, strings.Repeat("ab", 32), 0)
	require.ErrorIs(t, err, domain.ErrInvalidMarket)
	active = placeBets(t, svc, active.Id)
	_, err = svc.RegisterFunding(ctx, active.Id, strings.Repeat("ab", 32), 0)
	require.NoError(t, err)

	// Only the locktime keeps the escape of an active market from being mined.
	escapeTx, err := svc.BuildWithdrawTx(ctx, application.WithdrawRequest{
		MarketId: active.Id,
		Type:     ports.WithdrawEscape,
	})
	require.NoError(t, err)
	require.Equal(t, uint32(active.EscapeTimestamp()), escapeTx.LockTime)

	hook.Reset()
	task()
	task()

	reported := escapeReports(hook)
	require.Len(t, reported, 1)
	require.Contains(t, reported[0], expired.Id)

	svc.Stop()
	scheduler.AssertExpectations(t)
}

var errEventsUnavailable = fmt.Errorf("event store unavailable")

type unavailableEventsRepo struct {
	domain.MarketEventRepository
}

func (r *unavailableEventsRepo) Load(ctx context.Context, id string) (*domain.Market, error) {
	return nil, errEventsUnavailable
}

type unavailableEventsRepoManager struct {
	ports.RepoManager
}

func (m *unavailableEventsRepoManager) Events() domain.MarketEventRepository {
	return &unavailableEventsRepo{m.RepoManager.Events()}
}

func newRepoManager(t *testing.T) ports.RepoManager {
	repoManager, err := db.NewService(db.ServiceConfig{
		EventStoreType:   "badger",
		DataStoreType:    "badger",
		EventStoreConfig: []interface{}{"", nil},
		DataStoreConfig:  []interface{}{"", nil},
	})
	require.NoError(t, err)
	return repoManager
}

func newService(t *testing.T, scheduler ports.SchedulerService) application.Service {
	repoManager := newRepoManager(t)

	interval := time.Duration(0)
	if scheduler != nil {
		interval = time.Minute
	}

	svc, err := application.NewService(
		application.ServiceConfig{
			Network:             common.BitcoinRegTest,
			EscapeCheckInterval: interval,
		},
		scheduler, repoManager, builder, inmemorylivestore.NewLiveStore(),
	)
	require.NoError(t, err)
	if scheduler == nil {
		t.Cleanup(svc.Stop)
	}
	return svc
}

func newMarketRequest(settlementTimestamp uint64) application.CreateMarketRequest {
	return application.CreateMarketRequest{
		Question:            question,
		OutcomeA:            "Team A wins",
		OutcomeB:            "Team B wins",
		OraclePubkey:        oraclePubkey,
		SettlementTimestamp: settlementTimestamp,
	}
}

func placeBets(t *testing.T, svc application.Service, marketId string) *domain.Market {
	var market *domain.Market
	for _, b := range bettors {
		var err error
		market, err = svc.PlaceBet(ctx, marketId, application.BetRequest{
			Character:     b.character,
			Amount:        b.amount,
			PayoutAddress: b.address,
			Txid:          b.txid,
			VOut:          b.vout,
		})
		require.NoError(t, err)
	}
	return market
}

func signedPartial(
	t *testing.T, svc application.Service, marketId string, b bettor,
) (*ports.PartialDeposit, *wire.TxOut) {
	partial, err := svc.GetPartialDeposit(ctx, marketId, b.txid, b.vout)
	require.NoError(t, err)

	prevout := bip86Prevout(t, b.key, int64(b.amount))
	sig, err := builder.SignPartialDeposit(partial, b.key, prevout.Value, prevout.PkScript)
	require.NoError(t, err)
	require.NoError(t, builder.AddDepositSignature(partial, sig))
	return partial, prevout
}

func bip86Prevout(t *testing.T, key *btcec.PrivateKey, value int64) *wire.TxOut {
	outputKey := txscript.ComputeTaprootKeyNoScript(key.PubKey())
	script, err := txscript.PayToTaprootScript(outputKey)
	require.NoError(t, err)
	return wire.NewTxOut(value, script)
}

func escapeReports(hook *logtest.Hook) []string {
	reports := make([]string, 0)
	for _, entry := range hook.AllEntries() {
		if strings.Contains(entry.Message, "escape path spendable") {
			reports = append(reports, entry.Message)
		}
	}
	return reports
}

func pubkeyHex(key *btcec.PrivateKey) string {
	return hex.EncodeToString(schnorr.SerializePubKey(key.PubKey()))
}

func privKey(b byte) *btcec.PrivateKey {
	buf := make([]byte, 32)
	buf[31] = b
	key, _ := btcec.PrivKeyFromBytes(buf)
	return key
}
