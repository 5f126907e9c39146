package apperrors

import "errors"

// Engine errors. Every failing operation returns one of these, possibly wrapped,
// and leaves persisted state untouched.
var (
	ErrNotAuthorized          = errors.New("caller is not the state owner")
	ErrAlreadyInitialized     = errors.New("state account already initialized")
	ErrDeserialization        = errors.New("state account data malformed")
	ErrInvalidInstructionData = errors.New("invalid instruction data")
	ErrPriceQuote             = errors.New("price quote failed")
	ErrTradeExecution         = errors.New("trade execution failed")
	ErrDivisionByZero         = errors.New("division by zero")
	ErrZeroSteps              = errors.New("step count must be positive")
)

// Host errors
var (
	ErrAccountNotFound         = errors.New("account not found")
	ErrNotEnoughAccountKeys    = errors.New("not enough account keys")
	ErrMissingSignature        = errors.New("missing required signature")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrAccountRetired          = errors.New("state account has been withdrawn")
	ErrInvalidAccountData      = errors.New("invalid account data")
	ErrUnknownInstruction      = errors.New("unknown instruction")
	ErrTradingDisabled         = errors.New("trading disabled")
	ErrMEVDisabled             = errors.New("mev disabled")
	ErrBelowLiquidityThreshold = errors.New("liquidity below threshold")
)
