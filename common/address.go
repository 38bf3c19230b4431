package common

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
)

// DecodeAddress parses the given address and makes sure it belongs to the
// network.
func DecodeAddress(addr string, net Network) (btcutil.Address, error) {
	if len(addr) <= 0 {
		return nil, fmt.Errorf("missing address")
	}
	decoded, err := btcutil.DecodeAddress(addr, net.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to parse address %s: %s", addr, err)
	}
	if !decoded.IsForNet(net.Params) {
		return nil, fmt.Errorf("address %s is not valid for network %s", addr, net.Name)
	}
	return decoded, nil
}

func ValidateAddress(addr string, net Network) error {
	_, err := DecodeAddress(addr, net)
	return err
}

// AddressScript returns the output script paying to the given address.
func AddressScript(addr string, net Network) ([]byte, error) {
	decoded, err := DecodeAddress(addr, net)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(decoded)
}
