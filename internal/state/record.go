// Package state holds the persistent per-owner strategy record and its fixed wire layout
package state

import (
	"encoding/binary"
	"fmt"

	"mev_engine/internal/core"
	apperrors "mev_engine/pkg/errors"

	"github.com/shopspring/decimal"
)

// RecordLen is the serialized size of a Record:
// owner(32) arb_tx_price(8) enable_trading(1) token_pair(8) trading_balance(8)
// is_slippage_set(1) slippage_percent(1) mev_enabled(1) liquidity_threshold(8)
const RecordLen = core.PubkeyLen + 8 + 1 + 8 + 8 + 1 + 1 + 1 + 8

// MaxSlippagePercent bounds SlippagePercent
const MaxSlippagePercent = 100

// Record is the strategy configuration owned by exactly one identity
type Record struct {
	Owner                  core.Pubkey
	ArbTxPrice             uint64
	EnableTrading          bool
	TokenPair              uint64
	TradingBalanceInTokens uint64
	IsSlippageSet          bool
	SlippagePercent        uint8
	MEVEnabled             bool
	LiquidityThreshold     uint64
}

// MarshalBinary encodes the record little-endian in field order
func (r *Record) MarshalBinary() ([]byte, error) {
	buf := make([]byte, RecordLen)
	off := copy(buf, r.Owner[:])
	binary.LittleEndian.PutUint64(buf[off:], r.ArbTxPrice)
	off += 8
	buf[off] = boolByte(r.EnableTrading)
	off++
	binary.LittleEndian.PutUint64(buf[off:], r.TokenPair)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], r.TradingBalanceInTokens)
	off += 8
	buf[off] = boolByte(r.IsSlippageSet)
	off++
	buf[off] = r.SlippagePercent
	off++
	buf[off] = boolByte(r.MEVEnabled)
	off++
	binary.LittleEndian.PutUint64(buf[off:], r.LiquidityThreshold)
	return buf, nil
}

// UnmarshalBinary decodes exactly RecordLen bytes. Any other length or a boolean
// byte outside {0,1} is ErrDeserialization.
func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) != RecordLen {
		return fmt.Errorf("%w: want %d bytes, got %d", apperrors.ErrDeserialization, RecordLen, len(data))
	}
	var out Record
	off := copy(out.Owner[:], data)
	out.ArbTxPrice = binary.LittleEndian.Uint64(data[off:])
	off += 8
	var err error
	if out.EnableTrading, err = byteBool(data[off], "enable_trading"); err != nil {
		return err
	}
	off++
	out.TokenPair = binary.LittleEndian.Uint64(data[off:])
	off += 8
	out.TradingBalanceInTokens = binary.LittleEndian.Uint64(data[off:])
	off += 8
	if out.IsSlippageSet, err = byteBool(data[off], "is_slippage_set"); err != nil {
		return err
	}
	off++
	out.SlippagePercent = data[off]
	off++
	if out.MEVEnabled, err = byteBool(data[off], "mev_enabled"); err != nil {
		return err
	}
	off++
	out.LiquidityThreshold = binary.LittleEndian.Uint64(data[off:])
	*r = out
	return nil
}

// Decode is a convenience wrapper around UnmarshalBinary
func Decode(data []byte) (*Record, error) {
	r := &Record{}
	if err := r.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return r, nil
}

// Encode never fails for a Record; the error return is kept for the BinaryMarshaler contract.
func Encode(r *Record) []byte {
	buf, _ := r.MarshalBinary()
	return buf
}

// SlippageFraction returns the configured tolerance as a fraction, zero when unset
func (r *Record) SlippageFraction() decimal.Decimal {
	if !r.IsSlippageSet {
		return decimal.Zero
	}
	return decimal.New(int64(r.SlippagePercent), -2)
}

// MinimumOutput is the smallest fill acceptable for an expected output under the
// configured slippage tolerance, rounded down.
func (r *Record) MinimumOutput(expected uint64) uint64 {
	exp := decimal.NewFromUint64(expected)
	min := exp.Sub(exp.Mul(r.SlippageFraction())).Floor()
	if min.Sign() <= 0 {
		return 0
	}
	return min.BigInt().Uint64()
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func byteBool(b byte, field string) (bool, error) {
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: %s byte %#x", apperrors.ErrDeserialization, field, b)
	}
}
