package domain

type EventType int

const (
	EventTypeUndefined EventType = iota
	EventTypeMarketCreated
	EventTypeBetPlaced
	EventTypeMarketFunded
	EventTypeMarketSettled
)

type MarketEvent interface {
	GetType() EventType
}

func (e MarketCreated) GetType() EventType { return EventTypeMarketCreated }
func (e BetPlaced) GetType() EventType     { return EventTypeBetPlaced }
func (e MarketFunded) GetType() EventType  { return EventTypeMarketFunded }
func (e MarketSettled) GetType() EventType { return EventTypeMarketSettled }

type MarketCreated struct {
	Id                  string
	Question            string
	OutcomeA            Outcome
	OutcomeB            Outcome
	OraclePubkey        string
	SettlementTimestamp uint64
	Network             string
	WithdrawTimeout     uint32
	Fees                MarketFees
	Timestamp           int64
}

type BetPlaced struct {
	Id        string
	Character byte
	Bet       Bet
}

type MarketFunded struct {
	Id   string
	Txid string
	VOut uint32
}

type MarketSettled struct {
	Id             string
	WinningOutcome byte
	Signature      string
	Timestamp      int64
}
