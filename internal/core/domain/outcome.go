package domain

import (
	"fmt"

	"github.com/ark-network/markstr/common/oracle"
)

const maxOutcomeTextLen = 255

type Outcome struct {
	Text      string
	Oracle    string
	Timestamp uint64
	Character byte
}

func NewOutcome(text, oraclePubkey string, timestamp uint64, character byte) (Outcome, error) {
	o := Outcome{
		Text:      text,
		Oracle:    oraclePubkey,
		Timestamp: timestamp,
		Character: normalizeCharacter(character),
	}
	if err := o.validate(); err != nil {
		return Outcome{}, err
	}
	return o, nil
}

// Id is the id of the kind 42 event asserting this outcome, the value the
// oracle is expected to sign.
func (o Outcome) Id() string {
	return o.Assertion("").Id()
}

func (o Outcome) Assertion(sig string) oracle.OutcomeAssertion {
	return oracle.OutcomeAssertion{
		Oracle:    o.Oracle,
		Timestamp: o.Timestamp,
		Character: o.Character,
		Text:      o.Text,
		Sig:       sig,
	}
}

func OutcomeFromAssertion(a oracle.OutcomeAssertion) Outcome {
	return Outcome{
		Text:      a.Text,
		Oracle:    a.Oracle,
		Timestamp: a.Timestamp,
		Character: normalizeCharacter(a.Character),
	}
}

func (o Outcome) validate() error {
	if len(o.Text) <= 0 {
		return fmt.Errorf("%w: missing outcome text", ErrInvalidOutcome)
	}
	if len(o.Text) > maxOutcomeTextLen {
		return fmt.Errorf(
			"%w: outcome text must be at most %d bytes, got %d",
			ErrInvalidOutcome, maxOutcomeTextLen, len(o.Text),
		)
	}
	if !oracle.IsValidCharacter(o.Character) {
		return fmt.Errorf("%w: outcome must be 'A' or 'B'", ErrInvalidOutcome)
	}
	if _, err := oracle.ParsePubKey(o.Oracle); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidOutcome, err)
	}
	return nil
}

func normalizeCharacter(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}
