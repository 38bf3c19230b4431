// Package oracle defines the messages an oracle publishes about a market and
// the outcome it attests, rendered as kind 42 nostr events.
package oracle

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/nbd-wtf/go-nostr"
)

const (
	EventKind = nostr.KindChannelMessage

	outcomeTag  = "outcome"
	outcomesTag = "outcomes"

	OutcomeA = 'A'
	OutcomeB = 'B'
)

// OutcomeAssertion is the oracle's statement that an outcome happened. Its id
// is the id of the equivalent nostr event.
type OutcomeAssertion struct {
	Oracle    string
	Timestamp uint64
	Character byte
	Text      string
	Sig       string
}

// MarketAnnouncement binds a question to its two outcomes.
type MarketAnnouncement struct {
	Oracle              string
	SettlementTimestamp uint64
	Question            string
	OutcomeIds          [2]string
	Sig                 string
}

func IsValidCharacter(c byte) bool {
	return c == OutcomeA || c == OutcomeB
}

func (o OutcomeAssertion) Event() *nostr.Event {
	return &nostr.Event{
		PubKey:    o.Oracle,
		CreatedAt: nostr.Timestamp(o.Timestamp),
		Kind:      EventKind,
		Tags:      nostr.Tags{{outcomeTag, string(o.Character)}},
		Content:   o.Text,
		Sig:       o.Sig,
	}
}

func (o OutcomeAssertion) Id() string {
	return o.Event().GetID()
}

// Sign signs the assertion id with the oracle key, which must match Oracle.
func (o *OutcomeAssertion) Sign(key *btcec.PrivateKey) error {
	sig, err := signEvent(key, o.Oracle, o.Event())
	if err != nil {
		return err
	}
	o.Sig = sig
	return nil
}

// Verify checks the BIP340 signature over the raw 32-byte id against the
// assertion's own oracle key.
func (o OutcomeAssertion) Verify() error {
	return verifyEvent(o.Event())
}

func ParseOutcomeAssertion(event *nostr.Event) (*OutcomeAssertion, error) {
	if err := validateEvent(event); err != nil {
		return nil, err
	}
	if len(event.Tags) != 1 || len(event.Tags[0]) != 2 || event.Tags[0][0] != outcomeTag {
		return nil, fmt.Errorf("invalid outcome assertion tags")
	}
	if len(event.Tags[0][1]) != 1 || !IsValidCharacter(event.Tags[0][1][0]) {
		return nil, fmt.Errorf("invalid outcome character %s", event.Tags[0][1])
	}

	return &OutcomeAssertion{
		Oracle:    event.PubKey,
		Timestamp: uint64(event.CreatedAt),
		Character: event.Tags[0][1][0],
		Text:      event.Content,
		Sig:       event.Sig,
	}, nil
}

func (m MarketAnnouncement) Event() *nostr.Event {
	return &nostr.Event{
		PubKey:    m.Oracle,
		CreatedAt: nostr.Timestamp(m.SettlementTimestamp),
		Kind:      EventKind,
		Tags:      nostr.Tags{{outcomesTag, m.OutcomeIds[0], m.OutcomeIds[1]}},
		Content:   m.Question,
		Sig:       m.Sig,
	}
}

func (m MarketAnnouncement) Id() string {
	return m.Event().GetID()
}

func (m *MarketAnnouncement) Sign(key *btcec.PrivateKey) error {
	sig, err := signEvent(key, m.Oracle, m.Event())
	if err != nil {
		return err
	}
	m.Sig = sig
	return nil
}

func (m MarketAnnouncement) Verify() error {
	return verifyEvent(m.Event())
}

func ParseMarketAnnouncement(event *nostr.Event) (*MarketAnnouncement, error) {
	if err := validateEvent(event); err != nil {
		return nil, err
	}
	if len(event.Tags) != 1 || len(event.Tags[0]) != 3 || event.Tags[0][0] != outcomesTag {
		return nil, fmt.Errorf("invalid market announcement tags")
	}

	return &MarketAnnouncement{
		Oracle:              event.PubKey,
		SettlementTimestamp: uint64(event.CreatedAt),
		Question:            event.Content,
		OutcomeIds:          [2]string{event.Tags[0][1], event.Tags[0][2]},
		Sig:                 event.Sig,
	}, nil
}

// ParsePubKey parses a hex encoded x-only public key.
func ParsePubKey(pubkey string) (*btcec.PublicKey, error) {
	buf, err := hex.DecodeString(pubkey)
	if err != nil {
		return nil, fmt.Errorf("invalid pubkey format: %s", err)
	}
	if len(buf) != schnorr.PubKeyBytesLen {
		return nil, fmt.Errorf(
			"invalid pubkey length, expected %d bytes, got %d",
			schnorr.PubKeyBytesLen, len(buf),
		)
	}
	key, err := schnorr.ParsePubKey(buf)
	if err != nil {
		return nil, fmt.Errorf("invalid pubkey: %s", err)
	}
	return key, nil
}

func validateEvent(event *nostr.Event) error {
	if event == nil {
		return fmt.Errorf("missing event")
	}
	if event.Kind != EventKind {
		return fmt.Errorf("invalid event kind %d, expected %d", event.Kind, EventKind)
	}
	if event.CreatedAt < 0 {
		return fmt.Errorf("invalid event timestamp")
	}
	if _, err := ParsePubKey(event.PubKey); err != nil {
		return err
	}
	if len(event.ID) > 0 && event.ID != event.GetID() {
		return fmt.Errorf("event id does not match its content")
	}
	return nil
}

func signEvent(key *btcec.PrivateKey, oracle string, event *nostr.Event) (string, error) {
	if key == nil {
		return "", fmt.Errorf("missing signing key")
	}
	if hex.EncodeToString(schnorr.SerializePubKey(key.PubKey())) != oracle {
		return "", fmt.Errorf("signing key does not match oracle %s", oracle)
	}
	if event.CreatedAt < 0 {
		return "", fmt.Errorf("invalid timestamp")
	}

	id, err := hex.DecodeString(event.GetID())
	if err != nil {
		return "", err
	}
	sig, err := schnorr.Sign(key, id)
	if err != nil {
		return "", fmt.Errorf("failed to sign event: %s", err)
	}
	return hex.EncodeToString(sig.Serialize()), nil
}

func verifyEvent(event *nostr.Event) error {
	if len(event.Sig) <= 0 {
		return fmt.Errorf("missing signature")
	}
	ok, err := event.CheckSignature()
	if err != nil {
		return fmt.Errorf("malformed signature: %s", err)
	}
	if !ok {
		return fmt.Errorf("signature does not verify against %s", event.PubKey)
	}
	return nil
}
