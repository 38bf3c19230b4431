package domain

const (
	DefaultFeePerDepositOutput  = uint64(1000)
	DefaultFeePerWithdrawOutput = uint64(1000)
	DefaultWithdrawTimeout      = uint32(86400)
)

type MarketFees struct {
	FeePerDepositOutput  uint64
	FeePerWithdrawOutput uint64
	AdministratorFee     uint64
	AdministratorAddress string
}

func DefaultMarketFees() MarketFees {
	return MarketFees{
		FeePerDepositOutput:  DefaultFeePerDepositOutput,
		FeePerWithdrawOutput: DefaultFeePerWithdrawOutput,
	}
}

func (f MarketFees) HasAdministrator() bool {
	return len(f.AdministratorAddress) > 0
}

func (f MarketFees) TotalDepositFees(numOutputs int) uint64 {
	return uint64(numOutputs) * f.FeePerDepositOutput
}

// TotalPayoutFees is the amount withheld from the pool when paying the given
// number of winners. The administrator fee only counts if there is an address
// to pay it to.
func (f MarketFees) TotalPayoutFees(numWinners int) uint64 {
	fees := uint64(numWinners) * f.FeePerWithdrawOutput
	if f.HasAdministrator() {
		fees += f.AdministratorFee
	}
	return fees
}

func (f MarketFees) PoolAfterFees(pool uint64, numWinners int) uint64 {
	fees := f.TotalPayoutFees(numWinners)
	if fees >= pool {
		return 0
	}
	return pool - fees
}
