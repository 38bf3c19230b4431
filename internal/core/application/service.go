package application

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ark-network/markstr/common"
	"github.com/ark-network/markstr/common/oracle"
	"github.com/ark-network/markstr/internal/core/domain"
	"github.com/ark-network/markstr/internal/core/ports"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type ServiceConfig struct {
	Network             common.Network
	WithdrawTimeout     uint32
	Fees                domain.MarketFees
	EscapeCheckInterval time.Duration
}

type service struct {
	network             common.Network
	withdrawTimeout     uint32
	fees                domain.MarketFees
	escapeCheckInterval time.Duration

	scheduler   ports.SchedulerService
	repoManager ports.RepoManager
	builder     ports.TxBuilder
	liveStore   ports.LiveStore

	locks     *marketLocks
	escapable *escapableMarkets
}

func NewService(
	config ServiceConfig,
	schedulerSvc ports.SchedulerService, repoManager ports.RepoManager,
	builder ports.TxBuilder, liveStore ports.LiveStore,
) (Service, error) {
	if config.Network.Params == nil {
		return nil, fmt.Errorf("missing network")
	}
	if config.WithdrawTimeout == 0 {
		config.WithdrawTimeout = domain.DefaultWithdrawTimeout
	}
	if config.Fees == (domain.MarketFees{}) {
		config.Fees = domain.DefaultMarketFees()
	}
	if config.Fees.HasAdministrator() {
		if err := common.ValidateAddress(config.Fees.AdministratorAddress, config.Network); err != nil {
			return nil, fmt.Errorf("invalid administrator address: %s", err)
		}
	}

	svc := &service{
		network:             config.Network,
		withdrawTimeout:     config.WithdrawTimeout,
		fees:                config.Fees,
		escapeCheckInterval: config.EscapeCheckInterval,
		scheduler:           schedulerSvc,
		repoManager:         repoManager,
		builder:             builder,
		liveStore:           liveStore,
		locks:               newMarketLocks(),
		escapable:           newEscapableMarkets(),
	}

	repoManager.RegisterEventsHandler(
		func(market *domain.Market) {
			go func() {
				defer func() {
					if r := recover(); r != nil {
						log.Errorf("recovered from panic in events handler: %v", r)
						log.Debugf("%s", debug.Stack())
					}
				}()
				svc.onMarketEvent(market)
			}()
		},
	)

	return svc, nil
}

func (s *service) Start() error {
	if s.scheduler == nil || s.escapeCheckInterval <= 0 {
		log.Debug("escape watcher disabled")
		return nil
	}
	s.scheduler.Start()
	return s.scheduler.ScheduleTask(s.escapeCheckInterval, true, s.checkEscapableMarkets)
}

func (s *service) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
		log.Debug("stopped escape watcher")
	}
	s.liveStore.Close()
	log.Debug("closed connection to live store")
	s.repoManager.Close()
	log.Debug("closed connection to db")
}

func (s *service) CreateMarket(
	ctx context.Context, req CreateMarketRequest,
) (*domain.Market, error) {
	timeout := req.WithdrawTimeout
	if timeout == 0 {
		timeout = s.withdrawTimeout
	}
	fees := s.fees
	if req.Fees != nil {
		fees = *req.Fees
	}

	market, err := domain.NewMarket(
		req.Question, req.OutcomeA, req.OutcomeB, req.OraclePubkey, req.SettlementTimestamp,
		domain.WithNetwork(s.network),
		domain.WithWithdrawTimeout(timeout),
		domain.WithFees(fees),
	)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lockMarket(market.Id)
	defer unlock()

	if _, err := s.repoManager.Events().Load(ctx, market.Id); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrMarketAlreadyExists, market.Id)
	} else if !errors.Is(err, domain.ErrMarketNotFound) {
		return nil, err
	}

	saved, err := s.saveEvents(ctx, market.Id, market.Events())
	if err != nil {
		return nil, err
	}
	log.Infof("created market %s", market.Id)
	return saved, nil
}

func (s *service) GetMarketInfo(ctx context.Context, marketId string) (*MarketInfo, error) {
	market, err := s.repoManager.Markets().GetMarketWithId(ctx, marketId)
	if err != nil {
		return nil, err
	}
	return s.marketInfo(market)
}

func (s *service) ListOpenMarkets(ctx context.Context) ([]MarketInfo, error) {
	markets, err := s.repoManager.Markets().GetOpenMarkets(ctx)
	if err != nil {
		return nil, err
	}
	return s.marketInfos(markets)
}

func (s *service) ListOracleMarkets(
	ctx context.Context, oraclePubkey string,
) ([]MarketInfo, error) {
	if _, err := oracle.ParsePubKey(oraclePubkey); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrOracle, err)
	}
	markets, err := s.repoManager.Markets().GetMarketsWithOracle(ctx, oraclePubkey)
	if err != nil {
		return nil, err
	}
	return s.marketInfos(markets)
}

func (s *service) VerifyAnnouncement(
	ctx context.Context, marketId string, event *nostr.Event,
) (*MarketInfo, error) {
	announcement, err := oracle.ParseMarketAnnouncement(event)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrOracle, err)
	}
	if err := announcement.Verify(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidSignature, err)
	}

	market, err := s.repoManager.Markets().GetMarketWithId(ctx, marketId)
	if err != nil {
		return nil, err
	}
	if id := announcement.Id(); id != market.Id {
		return nil, fmt.Errorf(
			"%w: announcement %s does not describe market %s", domain.ErrOracle, id, market.Id,
		)
	}
	return s.marketInfo(market)
}

func (s *service) PlaceBet(
	ctx context.Context, marketId string, req BetRequest,
) (*domain.Market, error) {
	unlock := s.locks.lockMarket(marketId)
	defer unlock()

	market, err := s.repoManager.Events().Load(ctx, marketId)
	if err != nil {
		return nil, err
	}
	net, err := market.GetNetwork()
	if err != nil {
		return nil, err
	}
	if err := common.ValidateAddress(req.PayoutAddress, net); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidAddress, err)
	}

	events, err := market.PlaceBet(req.Character, req.Amount, req.PayoutAddress, req.Txid, req.VOut)
	if err != nil {
		return nil, err
	}

	saved, err := s.saveEvents(ctx, marketId, events)
	if err != nil {
		return nil, err
	}
	log.Debugf("placed bet of %d sats on %c in market %s", req.Amount, req.Character, marketId)

	// A new bet changes the pool script and may shift the bet indexes, any
	// partial deposit collected so far must be signed again.
	s.dropDeposits(ctx, marketId)
	return saved, nil
}

func (s *service) GetPoolAddress(ctx context.Context, marketId string) (string, error) {
	market, err := s.repoManager.Events().Load(ctx, marketId)
	if err != nil {
		return "", err
	}
	return s.builder.PoolAddress(market)
}

func (s *service) GetPartialDeposit(
	ctx context.Context, marketId, txid string, vout uint32,
) (*ports.PartialDeposit, error) {
	market, err := s.repoManager.Events().Load(ctx, marketId)
	if err != nil {
		return nil, err
	}
	if market.IsFunded() {
		return nil, fmt.Errorf("%w: %s", ErrMarketFunded, market.MarketUtxo)
	}

	bet, index, err := betIndex(market, txid, vout)
	if err != nil {
		return nil, err
	}
	return s.builder.BuildPartialDeposit(market, bet, index)
}

func (s *service) SubmitPartialDeposit(
	ctx context.Context, marketId string, partial ports.PartialDeposit,
	prevout *wire.TxOut,
) (*DepositStatus, error) {
	if partial.Tx == nil || len(partial.Tx.TxIn) != 1 {
		return nil, fmt.Errorf("%w: partial must have exactly one input", ErrInvalidDeposit)
	}
	if prevout == nil {
		return nil, fmt.Errorf("%w: missing prevout of the deposit input", ErrInvalidDeposit)
	}

	unlock := s.locks.lockMarket(marketId)
	defer unlock()

	market, err := s.repoManager.Events().Load(ctx, marketId)
	if err != nil {
		return nil, err
	}
	if market.IsFunded() {
		return nil, fmt.Errorf("%w: %s", ErrMarketFunded, market.MarketUtxo)
	}

	outpoint := partial.Tx.TxIn[0].PreviousOutPoint
	bet, index, err := betIndex(market, outpoint.Hash.String(), outpoint.Index)
	if err != nil {
		return nil, err
	}
	if index != partial.InputIndex {
		return nil, fmt.Errorf(
			"%w: bet %s has index %d, got %d",
			ErrInvalidDeposit, bet.Outpoint(), index, partial.InputIndex,
		)
	}
	expected, err := s.builder.BuildPartialDeposit(market, bet, index)
	if err != nil {
		return nil, err
	}
	if err := matchPartial(*expected, partial); err != nil {
		return nil, err
	}

	witness := partial.Tx.TxIn[0].Witness
	if len(witness) != 1 {
		return nil, fmt.Errorf("%w: partial deposit is not signed", domain.ErrInvalidSignature)
	}
	if err := s.builder.AddDepositSignature(expected, witness[0]); err != nil {
		return nil, err
	}
	if prevout.Value != int64(bet.Amount) {
		return nil, fmt.Errorf(
			"%w: prevout value %d does not match bet amount %d",
			ErrInvalidDeposit, prevout.Value, bet.Amount,
		)
	}
	if err := verifyDepositSignature(expected.Tx, prevout); err != nil {
		return nil, err
	}

	if err := s.liveStore.Deposits().Push(ctx, marketId, *expected); err != nil {
		return nil, err
	}

	status, err := s.depositStatus(ctx, market)
	if err != nil {
		return nil, err
	}
	status.SubmissionId = uuid.New().String()
	log.Debugf(
		"collected partial deposit %d for market %s (%d/%d)",
		partial.InputIndex, marketId, status.Collected, status.Expected,
	)
	return status, nil
}

func (s *service) CombineDeposits(ctx context.Context, marketId string) (*DepositStatus, error) {
	unlock := s.locks.lockMarket(marketId)
	defer unlock()

	market, err := s.repoManager.Events().Load(ctx, marketId)
	if err != nil {
		return nil, err
	}
	if market.IsFunded() {
		return nil, fmt.Errorf("%w: %s", ErrMarketFunded, market.MarketUtxo)
	}

	partials, err := s.liveStore.Deposits().Get(ctx, marketId)
	if err != nil {
		return nil, err
	}

	bets := market.Bets()
	stale := make([]bool, len(partials))
	g, _ := errgroup.WithContext(ctx)
	for i, p := range partials {
		i, partial := i, p
		g.Go(func() error {
			if int(partial.InputIndex) >= len(bets) {
				stale[i] = true
				return nil
			}
			expected, err := s.builder.BuildPartialDeposit(
				market, bets[partial.InputIndex], partial.InputIndex,
			)
			if err != nil {
				return err
			}
			if err := matchPartial(*expected, partial); err != nil {
				log.WithError(err).Debugf(
					"stale partial deposit %d for market %s", partial.InputIndex, marketId,
				)
				stale[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	valid := make([]ports.PartialDeposit, 0, len(partials))
	for i, partial := range partials {
		if !stale[i] {
			valid = append(valid, partial)
		}
	}
	if len(valid) != len(partials) {
		if err := s.evictDeposits(ctx, marketId, valid); err != nil {
			return nil, err
		}
		log.Warnf(
			"evicted %d stale partial deposits of market %s",
			len(partials)-len(valid), marketId,
		)
	}

	status := s.newDepositStatus(market, valid)
	if len(status.MissingIndexes) > 0 {
		return status, nil
	}

	fundingTx, err := s.builder.CombinePartialDeposits(valid)
	if err != nil {
		return nil, err
	}
	status.FundingTx = fundingTx
	log.Infof("combined %d partial deposits of market %s", len(valid), marketId)
	return status, nil
}

func (s *service) RegisterFunding(
	ctx context.Context, marketId, txid string, vout uint32,
) (*domain.Market, error) {
	unlock := s.locks.lockMarket(marketId)
	defer unlock()

	market, err := s.repoManager.Events().Load(ctx, marketId)
	if err != nil {
		return nil, err
	}
	events, err := market.RegisterFunding(txid, vout)
	if err != nil {
		return nil, err
	}

	saved, err := s.saveEvents(ctx, marketId, events)
	if err != nil {
		return nil, err
	}
	if err := s.liveStore.Deposits().Delete(ctx, marketId); err != nil {
		log.WithError(err).Warnf("failed to drop partial deposits of market %s", marketId)
	}
	log.Infof("market %s funded with %s:%d", marketId, txid, vout)
	return saved, nil
}

func (s *service) SettleMarket(
	ctx context.Context, marketId string, character byte, signature string,
) (*domain.Market, error) {
	unlock := s.locks.lockMarket(marketId)
	defer unlock()

	market, err := s.repoManager.Events().Load(ctx, marketId)
	if err != nil {
		return nil, err
	}
	outcome, err := market.Outcome(character)
	if err != nil {
		return nil, err
	}
	events, err := market.Settle(outcome, signature)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, market, events)
}

func (s *service) SettleMarketWithEvent(
	ctx context.Context, marketId string, event *nostr.Event,
) (*domain.Market, error) {
	assertion, err := oracle.ParseOutcomeAssertion(event)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrOracle, err)
	}

	unlock := s.locks.lockMarket(marketId)
	defer unlock()

	market, err := s.repoManager.Events().Load(ctx, marketId)
	if err != nil {
		return nil, err
	}
	events, err := market.SettleWithAssertion(*assertion)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, market, events)
}

func (s *service) BuildWithdrawTx(ctx context.Context, req WithdrawRequest) (*wire.MsgTx, error) {
	market, err := s.repoManager.Events().Load(ctx, req.MarketId)
	if err != nil {
		return nil, err
	}

	utxo := req.PoolUtxo
	if utxo == nil {
		if !market.IsFunded() {
			return nil, fmt.Errorf("%w: %s", ErrMarketNotFunded, market.Id)
		}
		hash, err := chainhash.NewHashFromStr(market.MarketUtxo.Txid)
		if err != nil {
			return nil, err
		}
		utxo = wire.NewOutPoint(hash, market.MarketUtxo.VOut)
	}

	params := ports.WithdrawParams{
		Market:   market,
		Type:     req.Type,
		PoolUtxo: *utxo,
		FeeRate:  req.FeeRate,
	}
	tx, err := s.builder.BuildWithdrawTx(params)
	if err != nil {
		return nil, err
	}
	return s.builder.SignWithdrawTx(tx, params, req.OracleSignature)
}

func (s *service) settle(
	ctx context.Context, market *domain.Market, events []domain.MarketEvent,
) (*domain.Market, error) {
	saved, err := s.saveEvents(ctx, market.Id, events)
	if err != nil {
		return nil, err
	}
	s.escapable.delete(market.Id)
	log.Infof("market %s settled with outcome %c", market.Id, saved.WinningOutcome)
	return saved, nil
}

func (s *service) saveEvents(
	ctx context.Context, id string, events []domain.MarketEvent,
) (*domain.Market, error) {
	if len(events) <= 0 {
		return nil, fmt.Errorf("no events to save for market %s", id)
	}
	market, err := s.repoManager.Events().Save(ctx, id, events...)
	if err != nil {
		return nil, err
	}
	if err := s.repoManager.Markets().AddOrUpdateMarket(ctx, *market); err != nil {
		return nil, err
	}
	return market, nil
}

func (s *service) depositStatus(ctx context.Context, market *domain.Market) (*DepositStatus, error) {
	partials, err := s.liveStore.Deposits().Get(ctx, market.Id)
	if err != nil {
		return nil, err
	}
	return s.newDepositStatus(market, partials), nil
}

func (s *service) newDepositStatus(
	market *domain.Market, partials []ports.PartialDeposit,
) *DepositStatus {
	expected := len(market.Bets())
	return &DepositStatus{
		MarketId:       market.Id,
		Collected:      len(partials),
		Expected:       expected,
		MissingIndexes: missingIndexes(partials, expected),
	}
}

func (s *service) dropDeposits(ctx context.Context, marketId string) {
	count, err := s.liveStore.Deposits().Len(ctx, marketId)
	if err != nil {
		log.WithError(err).Warnf("failed to count partial deposits of market %s", marketId)
		return
	}
	if count <= 0 {
		return
	}
	if err := s.liveStore.Deposits().Delete(ctx, marketId); err != nil {
		log.WithError(err).Warnf("failed to drop partial deposits of market %s", marketId)
		return
	}
	log.Infof("dropped %d partial deposits of market %s after new bet", count, marketId)
}

// evictDeposits replaces the partials stored for the market with the given
// ones.
func (s *service) evictDeposits(
	ctx context.Context, marketId string, keep []ports.PartialDeposit,
) error {
	if err := s.liveStore.Deposits().Delete(ctx, marketId); err != nil {
		return err
	}
	for _, partial := range keep {
		if err := s.liveStore.Deposits().Push(ctx, marketId, partial); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) marketInfos(markets []domain.Market) ([]MarketInfo, error) {
	infos := make([]MarketInfo, 0, len(markets))
	for i := range markets {
		info, err := s.marketInfo(&markets[i])
		if err != nil {
			return nil, err
		}
		infos = append(infos, *info)
	}
	return infos, nil
}

func (s *service) marketInfo(market *domain.Market) (*MarketInfo, error) {
	info := &MarketInfo{
		Market:          *market,
		Status:          market.Status(time.Now().Unix()),
		OddsA:           market.OddsA(),
		OddsB:           market.OddsB(),
		EscapeTimestamp: market.EscapeTimestamp(),
	}
	if len(market.BetsA) > 0 && len(market.BetsB) > 0 {
		addr, err := s.builder.PoolAddress(market)
		if err != nil {
			return nil, err
		}
		info.PoolAddress = addr
	}
	return info, nil
}

func (s *service) onMarketEvent(market *domain.Market) {
	if market.Settled {
		s.escapable.delete(market.Id)
	}
	log.Debugf("market %s updated to version %d", market.Id, market.Version)
}

// checkEscapableMarkets reports the unsettled markets whose escape path
// became spendable, once per market.
func (s *service) checkEscapableMarkets() {
	ctx := context.Background()
	now := time.Now().Unix()

	markets, err := s.repoManager.Markets().GetUnsettledMarketsBefore(ctx, uint64(now))
	if err != nil {
		log.WithError(err).Warn("failed to fetch unsettled markets")
		return
	}

	for _, market := range markets {
		if !market.IsEscapable(now) {
			continue
		}
		if s.escapable.push(market.Id) {
			log.Infof(
				"market %s was not settled in time, escape path spendable since %d",
				market.Id, market.EscapeTimestamp(),
			)
		}
	}
}

func verifyDepositSignature(tx *wire.MsgTx, prevout *wire.TxOut) error {
	fetcher := txscript.NewCannedPrevOutputFetcher(prevout.PkScript, prevout.Value)
	engine, err := txscript.NewEngine(
		prevout.PkScript, tx, 0, txscript.StandardVerifyFlags, nil,
		txscript.NewTxSigHashes(tx, fetcher), prevout.Value, fetcher,
	)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidSignature, err)
	}
	if err := engine.Execute(); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidSignature, err)
	}
	return nil
}
