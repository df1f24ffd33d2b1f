package types

import "errors"

// Validation errors: the request itself is malformed or violates a pricing
// constraint. Nothing is persisted.
var (
	ErrInvalidAmount        = errors.New("pool: amount must be positive")
	ErrRateTooHigh          = errors.New("pool: daily interest rate too high")
	ErrLoanDurationTooShort = errors.New("pool: loan duration too short")
	ErrLoanDurationTooLong  = errors.New("pool: loan duration too long")
	ErrLTVNotRespected      = errors.New("pool: LTV not respected")
	ErrIncorrectPayment     = errors.New("pool: incorrect refund amount")
	ErrPoolExists           = errors.New("pool: pool already exists for collection and LTV")
	ErrInitialDepositTooLow = errors.New("pool: initial deposit below minimum")
)

// Authorization errors.
var (
	ErrOracleSignature = errors.New("oracle: NFT loan not accepted")
	ErrOracleExpired   = errors.New("oracle: signed loan terms expired")
	ErrOracleNonceUsed = errors.New("oracle: nonce already used")
)

// State errors: the entity exists but the requested transition is not legal
// from its current state.
var (
	ErrPoolNotFound          = errors.New("pool: pool does not exist")
	ErrLoanNotFound          = errors.New("pool: loan does not exist")
	ErrLoanAlreadyOpen       = errors.New("pool: loan already open for token")
	ErrLoanClosed            = errors.New("pool: loan is closed")
	ErrLoanExpired           = errors.New("pool: loan has expired")
	ErrLoanInLiquidation     = errors.New("pool: loan is in liquidation")
	ErrPaymentNotLate        = errors.New("pool: loan payment not late")
	ErrNotVested             = errors.New("pool: vesting time not respected")
	ErrInsufficientLiquidity = errors.New("pool: insufficient liquidity")
	ErrInsufficientShares    = errors.New("pool: insufficient shares")
	ErrLiquidationNotFound   = errors.New("liquidator: liquidation does not exist")
	ErrLiquidationEnded      = errors.New("liquidator: liquidation is not active")
	ErrPaymentBelowPrice     = errors.New("liquidator: payment below current price")
)

// External call failures: a boundary collaborator rejected the operation.
// The enclosing transaction is rolled back in full.
var (
	ErrSettlementFailed   = errors.New("settlement: purchase execution failed")
	ErrUnsupportedManager = errors.New("settlement: settlement manager not supported")
)

var validationErrors = []error{
	ErrInvalidAmount, ErrRateTooHigh, ErrLoanDurationTooShort,
	ErrLoanDurationTooLong, ErrLTVNotRespected, ErrIncorrectPayment,
	ErrPoolExists, ErrInitialDepositTooLow,
}

var authorizationErrors = []error{
	ErrOracleSignature, ErrOracleExpired, ErrOracleNonceUsed,
}

var stateErrors = []error{
	ErrPoolNotFound, ErrLoanNotFound, ErrLoanAlreadyOpen, ErrLoanClosed,
	ErrLoanExpired, ErrLoanInLiquidation, ErrPaymentNotLate, ErrNotVested,
	ErrInsufficientLiquidity, ErrInsufficientShares, ErrLiquidationNotFound,
	ErrLiquidationEnded, ErrPaymentBelowPrice,
}

func matchesAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// IsValidationError reports whether err belongs to the validation taxonomy.
func IsValidationError(err error) bool { return matchesAny(err, validationErrors) }

// IsAuthorizationError reports whether err belongs to the authorization taxonomy.
func IsAuthorizationError(err error) bool { return matchesAny(err, authorizationErrors) }

// IsStateError reports whether err belongs to the state-transition taxonomy.
func IsStateError(err error) bool { return matchesAny(err, stateErrors) }

// IsNotFound reports whether err identifies a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPoolNotFound) || errors.Is(err, ErrLoanNotFound) ||
		errors.Is(err, ErrLiquidationNotFound)
}
