package common

import (
	"fmt"
	"math"

	"github.com/btcsuite/btcd/wire"
)

const (
	// SequenceRBFNoLocktime is the sequence of every input that neither
	// enforces a relative timelock nor disables the absolute one.
	SequenceRBFNoLocktime = wire.MaxTxInSequenceNum - 2
	// SequenceEnableLocktime is non-final so that nLockTime is enforced,
	// while BIP68 relative locks stay disabled (bit 31 set).
	SequenceEnableLocktime = wire.MaxTxInSequenceNum - 1

	// before this value, nLocktime is interpreted as blockheight
	nLocktimeMinSeconds = 500_000_000
)

// AbsoluteLocktime represents an nLocktime value
type AbsoluteLocktime uint32

func (l AbsoluteLocktime) IsSeconds() bool {
	return l >= nLocktimeMinSeconds
}

// TimestampLocktime converts a unix timestamp into a time based nLocktime.
func TimestampLocktime(timestamp uint64) (AbsoluteLocktime, error) {
	if timestamp > math.MaxUint32 {
		return 0, fmt.Errorf("timestamp %d too large", timestamp)
	}
	locktime := AbsoluteLocktime(timestamp)
	if !locktime.IsSeconds() {
		return 0, fmt.Errorf(
			"timestamp %d would be interpreted as a block height", timestamp,
		)
	}
	return locktime, nil
}

// EscapeLocktime returns the earliest time the escape transaction can be
// mined: settlement timestamp plus the withdraw timeout.
func EscapeLocktime(settlementTimestamp uint64, withdrawTimeout uint32) (AbsoluteLocktime, error) {
	return TimestampLocktime(settlementTimestamp + uint64(withdrawTimeout))
}
