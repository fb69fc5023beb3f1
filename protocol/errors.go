package protocol

import "errors"

// Kind classifies a protocol error so callers can tell "retry with different
// parameters" apart from "this asset is gone".
type Kind uint8

const (
	KindUnknown Kind = iota
	KindState
	KindAuthorization
	KindCapacity
	KindValidation
	KindArithmetic
	KindTiming
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case KindState:
		return "StateError"
	case KindAuthorization:
		return "AuthorizationError"
	case KindCapacity:
		return "CapacityError"
	case KindValidation:
		return "ValidationError"
	case KindArithmetic:
		return "ArithmeticError"
	case KindTiming:
		return "TimingError"
	default:
		return "UnknownError"
	}
}

// Error is a protocol failure with a stable code and kind.
type Error struct {
	Kind Kind
	Code string
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(kind Kind, code, msg string) *Error {
	return NewError(kind, code, "protocol: "+msg)
}

// NewError creates a kinded sentinel. msg is used verbatim as the error text.
func NewError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, msg: msg}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// State errors.
var (
	ErrNotActive          = newError(KindState, "NotActive", "account not active")
	ErrNotInitialized     = newError(KindState, "NotInitialized", "account not initialized")
	ErrAlreadyInitialized = newError(KindState, "AlreadyInitialized", "account already initialized")
	ErrAlreadyClaimed     = newError(KindState, "AlreadyClaimed", "returns already claimed this cycle")
	ErrAlreadyPaid        = newError(KindState, "AlreadyPaid", "distribution already paid this cycle")
	ErrAlreadySettled     = newError(KindState, "AlreadySettled", "listing already sold or cancelled")
)

// Authorization errors.
var (
	ErrUnauthorized = newError(KindAuthorization, "Unauthorized", "caller does not hold the required authority")
)

// Capacity errors.
var (
	ErrSoldOut             = newError(KindCapacity, "SoldOut", "sold out")
	ErrNotEnough           = newError(KindCapacity, "NotEnough", "not enough units remaining")
	ErrInsufficientFunds   = newError(KindCapacity, "InsufficientFunds", "insufficient pool funds")
	ErrInsufficientBalance = newError(KindCapacity, "InsufficientBalance", "insufficient balance")
)

// Validation errors.
var (
	ErrPriceTooLow    = newError(KindValidation, "PriceTooLow", "price below minimum")
	ErrNFTNotOwned    = newError(KindValidation, "NFTNotOwned", "holding does not contain exactly one unit")
	ErrInvalidOwner   = newError(KindValidation, "InvalidOwner", "holding owner does not match caller")
	ErrAssetNotFound  = newError(KindValidation, "AssetNotFound", "asset not registered")
	ErrAssetLocked    = newError(KindValidation, "AssetLocked", "asset is locked")
	ErrInvalidAmount  = newError(KindValidation, "InvalidAmount", "amount must be positive")
	ErrFieldTooLong   = newError(KindValidation, "FieldTooLong", "field exceeds maximum length")
	ErrInvalidTerm    = newError(KindValidation, "InvalidTerm", "term must be at least one year")
	ErrInvalidParams  = newError(KindValidation, "InvalidParams", "invalid protocol parameters")
	ErrInvalidAccount = newError(KindValidation, "InvalidAccount", "account does not match derived address")
)

// Arithmetic errors.
var (
	ErrOverflow  = newError(KindArithmetic, "Overflow", "arithmetic overflow")
	ErrUnderflow = newError(KindArithmetic, "Underflow", "arithmetic underflow")
)

// Timing errors.
var (
	ErrWrongDay = newError(KindTiming, "WrongDay", "outside distribution window")
)
