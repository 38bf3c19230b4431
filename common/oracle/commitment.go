package oracle

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Commitment is the message checked by OP_CHECKSIGFROMSTACK in an outcome
// leaf: the sha256 of the hex outcome id taken as text.
func Commitment(outcomeId string) [32]byte {
	return sha256.Sum256([]byte(outcomeId))
}

// SignCommitment produces the oracle signature placed in a payout witness.
func SignCommitment(key *btcec.PrivateKey, outcomeId string) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("missing signing key")
	}
	msg := Commitment(outcomeId)
	sig, err := schnorr.Sign(key, msg[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign commitment: %s", err)
	}
	return sig.Serialize(), nil
}

func VerifyCommitment(oracle string, outcomeId string, signature []byte) error {
	pubkey, err := ParsePubKey(oracle)
	if err != nil {
		return err
	}
	if len(signature) != schnorr.SignatureSize {
		return fmt.Errorf(
			"invalid signature length, expected %d bytes, got %d",
			schnorr.SignatureSize, len(signature),
		)
	}
	sig, err := schnorr.ParseSignature(signature)
	if err != nil {
		return fmt.Errorf("malformed signature: %s", err)
	}
	msg := Commitment(outcomeId)
	if !sig.Verify(msg[:], pubkey) {
		return fmt.Errorf("commitment signature does not verify against %s", oracle)
	}
	return nil
}
