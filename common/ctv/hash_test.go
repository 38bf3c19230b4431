package ctv_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/ark-network/markstr/common"
	"github.com/ark-network/markstr/common/ctv"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

var (
	scriptA = append([]byte{0x00, 0x14}, bytes.Repeat([]byte{0x03}, 20)...)
	scriptB = append([]byte{0x00, 0x14}, bytes.Repeat([]byte{0x04}, 20)...)
)

func TestTemplateHash(t *testing.T) {
	lock := uint32(1735776000)

	fixtures := []struct {
		name     string
		version  int32
		outputs  []*wire.TxOut
		lock     *uint32
		expected string
	}{
		{
			name:     "single output",
			version:  3,
			outputs:  []*wire.TxOut{wire.NewTxOut(100000, scriptA)},
			expected: "4d03359dea45ea7fc3a3b5403732d1e6479d8be3c75bf740bb5476aeefc1af74",
		},
		{
			name:    "two outputs",
			version: 3,
			outputs: []*wire.TxOut{
				wire.NewTxOut(100000, scriptA), wire.NewTxOut(50000, scriptB),
			},
			expected: "564c7cc09d47686c0ae090c548fc0a65262d30e88bd39faf46035518d36df45a",
		},
		{
			name:    "with lock",
			version: 2,
			outputs: []*wire.TxOut{
				wire.NewTxOut(100000, scriptA), wire.NewTxOut(50000, scriptB),
			},
			lock:     &lock,
			expected: "e1bd5da3c0ca7f2c75f17398a41a24d1eb339a380e1d35ec7161785058d76956",
		},
	}

	for _, f := range fixtures {
		t.Run(f.name, func(t *testing.T) {
			hash, err := ctv.TemplateHash(f.version, f.outputs, f.lock)
			require.NoError(t, err)
			require.Equal(t, f.expected, hex.EncodeToString(hash[:]))

			again, err := ctv.TemplateHash(f.version, f.outputs, f.lock)
			require.NoError(t, err)
			require.Equal(t, hash, again)
		})
	}
}

func TestTemplateHashSensitivity(t *testing.T) {
	outputs := []*wire.TxOut{
		wire.NewTxOut(100000, scriptA), wire.NewTxOut(50000, scriptB),
	}
	base, err := ctv.TemplateHash(3, outputs, nil)
	require.NoError(t, err)

	changes := map[string][]*wire.TxOut{
		"amount": {
			wire.NewTxOut(100001, scriptA), wire.NewTxOut(50000, scriptB),
		},
		"address": {
			wire.NewTxOut(100000, scriptB), wire.NewTxOut(50000, scriptB),
		},
		"order": {
			wire.NewTxOut(50000, scriptB), wire.NewTxOut(100000, scriptA),
		},
		"count": {
			wire.NewTxOut(100000, scriptA),
		},
	}
	for name, outs := range changes {
		t.Run(name, func(t *testing.T) {
			hash, err := ctv.TemplateHash(3, outs, nil)
			require.NoError(t, err)
			require.NotEqual(t, base, hash)
		})
	}

	t.Run("version", func(t *testing.T) {
		hash, err := ctv.TemplateHash(2, outputs, nil)
		require.NoError(t, err)
		require.NotEqual(t, base, hash)
	})

	t.Run("sequence", func(t *testing.T) {
		lock := uint32(common.SequenceEnableLocktime)
		hash, err := ctv.TemplateHash(3, outputs, &lock)
		require.NoError(t, err)
		require.NotEqual(t, base, hash)
	})
}

func TestTxHash(t *testing.T) {
	outputs := []*wire.TxOut{
		wire.NewTxOut(100000, scriptA), wire.NewTxOut(50000, scriptB),
	}

	t.Run("matches template", func(t *testing.T) {
		tx := wire.NewMsgTx(3)
		tx.AddTxIn(&wire.TxIn{Sequence: common.SequenceRBFNoLocktime})
		for _, out := range outputs {
			tx.AddTxOut(out)
		}

		fromTx, err := ctv.TxHash(tx)
		require.NoError(t, err)
		fromTemplate, err := ctv.TemplateHash(3, outputs, nil)
		require.NoError(t, err)
		require.Equal(t, fromTemplate, fromTx)

		// the spent outpoint and the witness are not committed
		tx.TxIn[0].PreviousOutPoint.Index = 7
		tx.TxIn[0].Witness = wire.TxWitness{{0x01}}
		again, err := ctv.TxHash(tx)
		require.NoError(t, err)
		require.Equal(t, fromTx, again)
	})

	t.Run("commits locktime", func(t *testing.T) {
		tx := wire.NewMsgTx(3)
		tx.LockTime = 1735776000
		tx.AddTxIn(&wire.TxIn{Sequence: common.SequenceEnableLocktime})
		for _, out := range outputs {
			tx.AddTxOut(out)
		}

		hash, err := ctv.TxHash(tx)
		require.NoError(t, err)
		require.Equal(
			t, "ef9750f9907dda51c8be377d6b002628946e701894ecfc0d76397fcdb9e78e97",
			hex.EncodeToString(hash[:]),
		)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := ctv.TxHash(nil)
		require.Error(t, err)

		tx := wire.NewMsgTx(3)
		_, err = ctv.TxHash(tx)
		require.Error(t, err)

		tx.AddTxIn(&wire.TxIn{})
		tx.AddTxIn(&wire.TxIn{})
		_, err = ctv.TxHash(tx)
		require.Error(t, err)
	})
}
