package ports

import "context"

type LiveStore interface {
	Deposits() DepositsStore
	Close()
}

// DepositsStore holds the partial deposits collected for a market until they
// are combined. At most one partial is kept per input index.
type DepositsStore interface {
	Push(ctx context.Context, marketId string, partial PartialDeposit) error
	Get(ctx context.Context, marketId string) ([]PartialDeposit, error)
	Delete(ctx context.Context, marketId string) error
	Len(ctx context.Context, marketId string) (int, error)
}
