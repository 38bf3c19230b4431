package common

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
)

type Network struct {
	Name string
	// TxVersion is the version used for every transaction template committed
	// by a covenant on this network.
	TxVersion int32
	Params    *chaincfg.Params
}

var Bitcoin = Network{
	Name:      "bitcoin",
	TxVersion: 2,
	Params:    &chaincfg.MainNetParams,
}

var BitcoinTestNet = Network{
	Name:      "testnet",
	TxVersion: 2,
	Params:    &chaincfg.TestNet3Params,
}

var BitcoinSigNet = Network{
	Name:      "signet",
	TxVersion: 2,
	Params:    &chaincfg.SigNetParams,
}

var BitcoinRegTest = Network{
	Name:      "regtest",
	TxVersion: 3,
	Params:    &chaincfg.RegressionNetParams,
}

var networks = map[string]Network{
	"bitcoin": Bitcoin,
	"mainnet": Bitcoin,
	"testnet": BitcoinTestNet,
	"signet":  BitcoinSigNet,
	"regtest": BitcoinRegTest,
}

func NetworkFromString(name string) (Network, error) {
	net, ok := networks[strings.ToLower(name)]
	if !ok {
		return Network{}, fmt.Errorf("unknown network %s", name)
	}
	return net, nil
}

func (n Network) String() string {
	return n.Name
}
