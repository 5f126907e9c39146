package core

import (
	"encoding/hex"
	"fmt"
)

// PubkeyLen is the size of an account identity
const PubkeyLen = 32

// Pubkey identifies an account, a token mint or a router
type Pubkey [PubkeyLen]byte

// SystemProgram owns every account that has not been assigned yet
var SystemProgram = Pubkey{}

func (p Pubkey) String() string {
	return hex.EncodeToString(p[:])
}

// IsZero reports whether p is the all-zero key
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// ParsePubkey decodes a 64-character hex string
func ParsePubkey(s string) (Pubkey, error) {
	var p Pubkey
	raw, err := hex.DecodeString(s)
	if err != nil {
		return p, fmt.Errorf("decode pubkey %q: %w", s, err)
	}
	if len(raw) != PubkeyLen {
		return p, fmt.Errorf("pubkey %q: want %d bytes, got %d", s, PubkeyLen, len(raw))
	}
	copy(p[:], raw)
	return p, nil
}

// MarshalText lets pubkeys appear as hex in YAML and JSON
func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// TradeDirection is the side of a rebalance step
type TradeDirection string

const (
	DirectionSell TradeDirection = "SELL"
	DirectionBuy  TradeDirection = "BUY"
)
