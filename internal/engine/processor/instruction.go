package processor

import (
	"encoding/binary"
	"fmt"

	"mev_engine/internal/core"
	apperrors "mev_engine/pkg/errors"
)

// Op selects the operation an instruction runs
type Op string

const (
	OpInitialize            Op = "initialize"
	OpTransfer              Op = "transfer"
	OpApprove               Op = "approve"
	OpSetSlippage           Op = "set_slippage"
	OpEnableMEV             Op = "enable_mev"
	OpEnableTrading         Op = "enable_trading"
	OpSetLiquidityThreshold Op = "set_liquidity_threshold"
	OpUpdateTradingBalance  Op = "update_trading_balance"
	OpWithdraw              Op = "withdraw"
	OpEvaluateArbitrage     Op = "evaluate_arbitrage"
	OpRebalance             Op = "rebalance"
	OpProvideLiquidity      Op = "provide_liquidity"
	OpPerformMEV            Op = "perform_mev"
	OpSPLArbitrage          Op = "spl_arbitrage"
)

type opSpec struct {
	accounts int
	signed   bool
}

// positional account requirements per op; signed ops need accounts[0] to be the signer
var opSpecs = map[Op]opSpec{
	OpInitialize:            {accounts: 4, signed: true},
	OpTransfer:              {accounts: 7, signed: true},
	OpApprove:               {accounts: 5, signed: true},
	OpSetSlippage:           {accounts: 2, signed: true},
	OpEnableMEV:             {accounts: 2, signed: true},
	OpEnableTrading:         {accounts: 2, signed: true},
	OpSetLiquidityThreshold: {accounts: 2, signed: true},
	OpUpdateTradingBalance:  {accounts: 2, signed: true},
	OpWithdraw:              {accounts: 3, signed: true},
	OpEvaluateArbitrage:     {accounts: 6},
	OpRebalance:             {accounts: 5, signed: true},
	OpProvideLiquidity:      {accounts: 5, signed: true},
	OpPerformMEV:            {accounts: 5, signed: true},
	OpSPLArbitrage:          {accounts: 5, signed: true},
}

// Ops lists every supported op in a stable order
func Ops() []Op {
	return []Op{
		OpInitialize, OpTransfer, OpApprove, OpSetSlippage, OpEnableMEV, OpEnableTrading,
		OpSetLiquidityThreshold, OpUpdateTradingBalance, OpWithdraw, OpEvaluateArbitrage,
		OpRebalance, OpProvideLiquidity, OpPerformMEV, OpSPLArbitrage,
	}
}

// Instruction is one request at the host boundary
type Instruction struct {
	Op       Op
	Signer   core.Pubkey
	Accounts []core.Pubkey
	Data     []byte
}

func (ix *Instruction) validate() error {
	req, ok := opSpecs[ix.Op]
	if !ok {
		return fmt.Errorf("%w: %q", apperrors.ErrUnknownInstruction, ix.Op)
	}
	if len(ix.Accounts) < req.accounts {
		return fmt.Errorf("%w: %s needs %d, got %d", apperrors.ErrNotEnoughAccountKeys, ix.Op, req.accounts, len(ix.Accounts))
	}
	if req.signed && ix.Accounts[0] != ix.Signer {
		return fmt.Errorf("%w: %s", apperrors.ErrMissingSignature, ix.Accounts[0])
	}
	return nil
}

// EncodeU64 is the little-endian amount payload
func EncodeU64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}

// EncodeU32 is the little-endian step-count payload
func EncodeU32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

// EncodePair packs two amounts back to back
func EncodePair(a, b uint64) []byte {
	return binary.LittleEndian.AppendUint64(EncodeU64(a), b)
}

// EncodeBool is a single 0/1 byte
func EncodeBool(b bool) []byte {
	if b {
		return []byte{1}
	}
	return []byte{0}
}

func decodeU64(data []byte) (uint64, error) {
	if len(data) < 8 {
		return 0, fmt.Errorf("%w: want 8 byte amount, got %d bytes", apperrors.ErrInvalidInstructionData, len(data))
	}
	return binary.LittleEndian.Uint64(data[:8]), nil
}

func decodePair(data []byte) (uint64, uint64, error) {
	if len(data) < 16 {
		return 0, 0, fmt.Errorf("%w: want two 8 byte amounts, got %d bytes", apperrors.ErrInvalidInstructionData, len(data))
	}
	return binary.LittleEndian.Uint64(data[:8]), binary.LittleEndian.Uint64(data[8:16]), nil
}

func decodeU8(data []byte) (uint8, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("%w: empty payload", apperrors.ErrInvalidInstructionData)
	}
	return data[0], nil
}

func decodeBool(data []byte) (bool, error) {
	b, err := decodeU8(data)
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: bool byte %#x", apperrors.ErrInvalidInstructionData, b)
	}
}

// decodeSteps returns def for an empty payload
func decodeSteps(data []byte, def uint32) (uint32, error) {
	if len(data) == 0 {
		return def, nil
	}
	if len(data) < 4 {
		return 0, fmt.Errorf("%w: want 4 byte step count, got %d bytes", apperrors.ErrInvalidInstructionData, len(data))
	}
	return binary.LittleEndian.Uint32(data[:4]), nil
}
