package domain

import (
	"fmt"
	"math"
	"math/bits"
	"time"

	"github.com/ark-network/markstr/common"
	"github.com/ark-network/markstr/common/oracle"
)

const (
	MarketStatusActive MarketStatus = iota
	MarketStatusAwaitingSettlement
	MarketStatusEscapable
	MarketStatusSettled
)

type MarketStatus int

func (s MarketStatus) String() string {
	switch s {
	case MarketStatusActive:
		return "ACTIVE"
	case MarketStatusAwaitingSettlement:
		return "AWAITING_SETTLEMENT"
	case MarketStatusEscapable:
		return "ESCAPABLE"
	case MarketStatusSettled:
		return "SETTLED"
	default:
		return "UNDEFINED"
	}
}

type Market struct {
	Id                  string
	Question            string
	OutcomeA            Outcome
	OutcomeB            Outcome
	OraclePubkey        string
	SettlementTimestamp uint64
	Network             string
	MarketUtxo          *Outpoint
	TotalAmount         uint64
	BetsA               []Bet
	BetsB               []Bet
	Settled             bool
	WinningOutcome      byte
	OracleSignature     string
	WithdrawTimeout     uint32
	Fees                MarketFees
	CreatedAt           int64
	SettledAt           int64
	Version             uint
	changes             []MarketEvent
}

type marketConfig struct {
	network         common.Network
	withdrawTimeout uint32
	fees            MarketFees
}

type MarketOption func(*marketConfig) error

func WithNetwork(net common.Network) MarketOption {
	return func(c *marketConfig) error {
		if net.Params == nil {
			return fmt.Errorf("%w: missing network params", ErrNetwork)
		}
		c.network = net
		return nil
	}
}

func WithWithdrawTimeout(timeout uint32) MarketOption {
	return func(c *marketConfig) error {
		if timeout == 0 {
			return fmt.Errorf("%w: withdraw timeout must be greater than zero", ErrInvalidMarket)
		}
		c.withdrawTimeout = timeout
		return nil
	}
}

func WithFees(fees MarketFees) MarketOption {
	return func(c *marketConfig) error {
		c.fees = fees
		return nil
	}
}

// NewMarket derives the outcome and market ids from the given content. The
// same content always yields the same market id.
func NewMarket(
	question, outcomeA, outcomeB, oraclePubkey string, settlementTimestamp uint64,
	opts ...MarketOption,
) (*Market, error) {
	cfg := &marketConfig{
		network:         common.BitcoinRegTest,
		withdrawTimeout: DefaultWithdrawTimeout,
		fees:            DefaultMarketFees(),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if _, err := oracle.ParsePubKey(oraclePubkey); err != nil {
		return nil, fmt.Errorf("%w: oracle pubkey must be a 32-byte x-only key: %s", ErrInvalidMarket, err)
	}
	if len(question) <= 0 {
		return nil, fmt.Errorf("%w: missing question", ErrInvalidMarket)
	}
	if _, err := common.TimestampLocktime(settlementTimestamp); err != nil {
		return nil, fmt.Errorf("%w: settlement %s", ErrInvalidMarket, err)
	}
	if _, err := common.EscapeLocktime(settlementTimestamp, cfg.withdrawTimeout); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMarket, err)
	}
	if cfg.fees.HasAdministrator() {
		if err := common.ValidateAddress(cfg.fees.AdministratorAddress, cfg.network); err != nil {
			return nil, fmt.Errorf("%w: administrator address: %s", ErrInvalidAddress, err)
		}
	}

	a, err := NewOutcome(outcomeA, oraclePubkey, settlementTimestamp, oracle.OutcomeA)
	if err != nil {
		return nil, err
	}
	b, err := NewOutcome(outcomeB, oraclePubkey, settlementTimestamp, oracle.OutcomeB)
	if err != nil {
		return nil, err
	}

	announcement := oracle.MarketAnnouncement{
		Oracle:              oraclePubkey,
		SettlementTimestamp: settlementTimestamp,
		Question:            question,
		OutcomeIds:          [2]string{a.Id(), b.Id()},
	}

	m := &Market{}
	m.raise(MarketCreated{
		Id:                  announcement.Id(),
		Question:            question,
		OutcomeA:            a,
		OutcomeB:            b,
		OraclePubkey:        oraclePubkey,
		SettlementTimestamp: settlementTimestamp,
		Network:             cfg.network.Name,
		WithdrawTimeout:     cfg.withdrawTimeout,
		Fees:                cfg.fees,
		Timestamp:           time.Now().Unix(),
	})
	return m, nil
}

func NewMarketFromEvents(events []MarketEvent) *Market {
	m := &Market{}

	for _, event := range events {
		m.On(event, true)
	}

	m.changes = append([]MarketEvent{}, events...)

	return m
}

func (m *Market) Events() []MarketEvent {
	return m.changes
}

func (m *Market) On(event MarketEvent, replayed bool) {
	switch e := event.(type) {
	case MarketCreated:
		m.Id = e.Id
		m.Question = e.Question
		m.OutcomeA = e.OutcomeA
		m.OutcomeB = e.OutcomeB
		m.OraclePubkey = e.OraclePubkey
		m.SettlementTimestamp = e.SettlementTimestamp
		m.Network = e.Network
		m.WithdrawTimeout = e.WithdrawTimeout
		m.Fees = e.Fees
		m.CreatedAt = e.Timestamp
		m.BetsA = make([]Bet, 0)
		m.BetsB = make([]Bet, 0)
	case BetPlaced:
		switch e.Character {
		case oracle.OutcomeA:
			m.BetsA = append(m.BetsA, e.Bet)
		case oracle.OutcomeB:
			m.BetsB = append(m.BetsB, e.Bet)
		}
		m.TotalAmount += e.Bet.Amount
	case MarketFunded:
		m.MarketUtxo = &Outpoint{e.Txid, e.VOut}
	case MarketSettled:
		m.Settled = true
		m.WinningOutcome = e.WinningOutcome
		m.OracleSignature = e.Signature
		m.SettledAt = e.Timestamp
	}

	if replayed {
		m.Version++
	}
}

func (m *Market) PlaceBet(
	character byte, amount uint64, payoutAddress, txid string, vout uint32,
) ([]MarketEvent, error) {
	if m.Settled {
		return nil, fmt.Errorf("%w: market has already been settled", ErrInvalidBet)
	}
	character = normalizeCharacter(character)
	if !oracle.IsValidCharacter(character) {
		return nil, fmt.Errorf("%w: outcome must be 'A' or 'B'", ErrInvalidBet)
	}
	if m.MarketUtxo != nil {
		return nil, fmt.Errorf("%w: market pool already funded", ErrInvalidBet)
	}

	bet := Bet{
		PayoutAddress: payoutAddress,
		Amount:        amount,
		Txid:          txid,
		VOut:          vout,
	}
	if err := bet.validate(); err != nil {
		return nil, err
	}
	if m.TotalAmount > math.MaxUint64-amount {
		return nil, fmt.Errorf("%w: total amount overflow", ErrInvalidBet)
	}
	for _, b := range m.Bets() {
		if b.Outpoint() == bet.Outpoint() {
			return nil, fmt.Errorf("%w: outpoint %s already used", ErrInvalidBet, bet.Outpoint())
		}
	}

	event := BetPlaced{
		Id:        m.Id,
		Character: character,
		Bet:       bet,
	}
	m.raise(event)

	return []MarketEvent{event}, nil
}

// RegisterFunding records the outpoint of the combined deposit transaction.
func (m *Market) RegisterFunding(txid string, vout uint32) ([]MarketEvent, error) {
	if m.MarketUtxo != nil {
		return nil, fmt.Errorf("%w: market already funded with %s", ErrInvalidMarket, m.MarketUtxo)
	}
	if len(m.Bets()) <= 0 {
		return nil, fmt.Errorf("%w: market has no bets to fund", ErrInvalidMarket)
	}
	if err := validateTxid(txid); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMarket, err)
	}

	event := MarketFunded{
		Id:   m.Id,
		Txid: txid,
		VOut: vout,
	}
	m.raise(event)

	return []MarketEvent{event}, nil
}

// Settle accepts the oracle's assertion of the given outcome. The signature
// must be a BIP340 signature over the outcome id made by the market's oracle.
func (m *Market) Settle(outcome Outcome, signature string) ([]MarketEvent, error) {
	if m.Settled {
		return nil, fmt.Errorf("%w: market %s already settled", ErrSettlement, m.Id)
	}

	outcome.Character = normalizeCharacter(outcome.Character)
	if err := outcome.Assertion(signature).Verify(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}
	if outcome.Oracle != m.OraclePubkey {
		return nil, fmt.Errorf(
			"%w: outcome signed by %s, expected %s", ErrOracle, outcome.Oracle, m.OraclePubkey,
		)
	}
	if outcome.Timestamp < m.SettlementTimestamp {
		return nil, fmt.Errorf(
			"%w: outcome asserted at %d, before settlement time %d",
			ErrOracle, outcome.Timestamp, m.SettlementTimestamp,
		)
	}

	expected, err := m.Outcome(outcome.Character)
	if err != nil {
		return nil, err
	}
	if outcome.Id() != expected.Id() {
		return nil, fmt.Errorf(
			"%w: outcome id %s does not match expected %s", ErrOracle, outcome.Id(), expected.Id(),
		)
	}

	event := MarketSettled{
		Id:             m.Id,
		WinningOutcome: outcome.Character,
		Signature:      signature,
		Timestamp:      time.Now().Unix(),
	}
	m.raise(event)

	return []MarketEvent{event}, nil
}

func (m *Market) SettleWithAssertion(assertion oracle.OutcomeAssertion) ([]MarketEvent, error) {
	return m.Settle(OutcomeFromAssertion(assertion), assertion.Sig)
}

// Announcement is the oracle message describing the market, its id is the
// market id.
func (m *Market) Announcement(sig string) oracle.MarketAnnouncement {
	return oracle.MarketAnnouncement{
		Oracle:              m.OraclePubkey,
		SettlementTimestamp: m.SettlementTimestamp,
		Question:            m.Question,
		OutcomeIds:          [2]string{m.OutcomeA.Id(), m.OutcomeB.Id()},
		Sig:                 sig,
	}
}

func (m *Market) Outcome(character byte) (Outcome, error) {
	switch normalizeCharacter(character) {
	case oracle.OutcomeA:
		return m.OutcomeA, nil
	case oracle.OutcomeB:
		return m.OutcomeB, nil
	default:
		return Outcome{}, fmt.Errorf("%w: outcome must be 'A' or 'B'", ErrInvalidOutcome)
	}
}

func (m *Market) BetsFor(character byte) ([]Bet, error) {
	switch normalizeCharacter(character) {
	case oracle.OutcomeA:
		return m.BetsA, nil
	case oracle.OutcomeB:
		return m.BetsB, nil
	default:
		return nil, fmt.Errorf("%w: outcome must be 'A' or 'B'", ErrInvalidOutcome)
	}
}

// Bets returns every bet, side A first.
func (m *Market) Bets() []Bet {
	bets := make([]Bet, 0, len(m.BetsA)+len(m.BetsB))
	bets = append(bets, m.BetsA...)
	return append(bets, m.BetsB...)
}

func (m *Market) GetNetwork() (common.Network, error) {
	net, err := common.NetworkFromString(m.Network)
	if err != nil {
		return common.Network{}, fmt.Errorf("%w: %s", ErrNetwork, err)
	}
	return net, nil
}

func (m *Market) TotalA() uint64 {
	return sumBets(m.BetsA)
}

func (m *Market) TotalB() uint64 {
	return sumBets(m.BetsB)
}

func (m *Market) OddsA() float64 {
	return odds(m.TotalA(), m.TotalB())
}

func (m *Market) OddsB() float64 {
	return odds(m.TotalB(), m.TotalA())
}

// CalculatePayout returns the share of the pool, net of payout fees, owed to
// a bet of the given amount on a side totalling winningSideTotal.
func (m *Market) CalculatePayout(betAmount, winningSideTotal uint64) uint64 {
	if winningSideTotal == 0 {
		return 0
	}
	return m.payout(betAmount, winningSideTotal, m.winnerCount(winningSideTotal))
}

// PayoutReceivers lists the proportional payouts of the bets on the given
// side, in bet order. Dust is not filtered here.
func (m *Market) PayoutReceivers(character byte) ([]Receiver, error) {
	bets, err := m.BetsFor(character)
	if err != nil {
		return nil, err
	}
	if len(bets) <= 0 {
		return nil, fmt.Errorf(
			"%w: no bets on outcome %c", ErrPayout, normalizeCharacter(character),
		)
	}
	total := sumBets(bets)
	if total == 0 {
		return nil, fmt.Errorf(
			"%w: zero total on outcome %c", ErrPayout, normalizeCharacter(character),
		)
	}

	receivers := make([]Receiver, 0, len(bets))
	for _, bet := range bets {
		receivers = append(receivers, Receiver{
			Address: bet.PayoutAddress,
			Amount:  m.payout(bet.Amount, total, len(bets)),
		})
	}
	return receivers, nil
}

// EscapeReceivers refunds every bet at its original stake, side A first.
func (m *Market) EscapeReceivers() ([]Receiver, error) {
	bets := m.Bets()
	if len(bets) <= 0 {
		return nil, fmt.Errorf("%w: no bets to refund", ErrPayout)
	}

	receivers := make([]Receiver, 0, len(bets))
	for _, bet := range bets {
		receivers = append(receivers, Receiver{
			Address: bet.PayoutAddress,
			Amount:  bet.Amount,
		})
	}
	return receivers, nil
}

func (m *Market) EscapeTimestamp() uint64 {
	return m.SettlementTimestamp + uint64(m.WithdrawTimeout)
}

func (m *Market) IsPastSettlement(now int64) bool {
	return now >= 0 && uint64(now) >= m.SettlementTimestamp
}

// IsEscapable tells whether the escape path can be mined at the given time.
// It is derived, never stored.
func (m *Market) IsEscapable(now int64) bool {
	return !m.Settled && now >= 0 && uint64(now) >= m.EscapeTimestamp()
}

func (m *Market) Status(now int64) MarketStatus {
	switch {
	case m.Settled:
		return MarketStatusSettled
	case m.IsEscapable(now):
		return MarketStatusEscapable
	case m.IsPastSettlement(now):
		return MarketStatusAwaitingSettlement
	default:
		return MarketStatusActive
	}
}

func (m *Market) IsFunded() bool {
	return m.MarketUtxo != nil
}

func (m *Market) winnerCount(winningSideTotal uint64) int {
	if m.Settled {
		bets, _ := m.BetsFor(m.WinningOutcome)
		return len(bets)
	}
	if totalA := m.TotalA(); totalA == winningSideTotal {
		return len(m.BetsA)
	}
	if totalB := m.TotalB(); totalB == winningSideTotal {
		return len(m.BetsB)
	}
	return 0
}

func (m *Market) payout(betAmount, winningSideTotal uint64, numWinners int) uint64 {
	pool := m.Fees.PoolAfterFees(m.TotalAmount, numWinners)
	return mulDiv(betAmount, pool, winningSideTotal)
}

func (m *Market) raise(event MarketEvent) {
	if m.changes == nil {
		m.changes = make([]MarketEvent, 0)
	}
	m.changes = append(m.changes, event)
	m.On(event, false)
}

// mulDiv computes floor(a*b/c) on a 128-bit intermediate.
func mulDiv(a, b, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return math.MaxUint64
	}
	quo, _ := bits.Div64(hi, lo, c)
	return quo
}

func sumBets(bets []Bet) uint64 {
	total := uint64(0)
	for _, b := range bets {
		total += b.Amount
	}
	return total
}

func odds(side, other uint64) float64 {
	if side == 0 {
		return 1.0
	}
	return float64(side+other) / float64(side)
}
