// Package consensuserrors defines the closed, stable-coded error taxonomy
// the consensus core surfaces across its external interface (spec.md §7).
// The package mirrors the teacher's domain/consensus/ruleerrors package: a
// single wrapper type carrying a stable ErrorCode, dispatched with
// errors.As, wrapped at call sites with github.com/pkg/errors for stack
// context.
package consensuserrors

import "github.com/pkg/errors"

// ErrorCode is a stable integer discriminant for a RuleError. Clients may
// persist or compare on this value; the associated message text may change.
type ErrorCode int

// Locality groups the four kinds of consensuserrors.ErrorCode per spec.md §7.
type Locality int

// The four localities of the error taxonomy.
const (
	// LocalityStateless errors are recoverable at the transaction source;
	// the transaction is dropped and the sender may retry.
	LocalityStateless Locality = iota
	// LocalityPreExecution errors reject a block or transaction before any
	// state change is made.
	LocalityPreExecution
	// LocalityExecutionTime errors orphan a single transaction inside an
	// otherwise-admitted block; fee stays deducted, nonce stays advanced.
	LocalityExecutionTime
	// LocalityFatal errors abort block admission atomically and require
	// operator intervention.
	LocalityFatal
)

// Stateless validation error codes (category 1).
const (
	ErrInvalidFormat ErrorCode = iota + 1000
	ErrInvalidSignature
	ErrInvalidVersion
	ErrSizeLimit
	ErrInvalidProof
)

// Pre-execution rejection error codes (category 2).
const (
	ErrNonceTooLow ErrorCode = iota + 2000
	ErrNonceTooHigh
	ErrMissingParent
	ErrInvalidBlockHeight
	ErrTimestampIsInFuture
	ErrTimestampIsLessThanParent
	ErrKClusterViolation
	ErrDuplicateBlock
	ErrKnownInvalid
	ErrTooManyParents
	ErrTooFewParents
	ErrOverflow
	ErrInvalidDifficulty
)

// Execution-time failure error codes (category 3).
const (
	ErrInsufficientBalance ErrorCode = iota + 3000
	ErrContractRevert
	ErrBalanceOverflow
)

// Fatal error codes (category 4).
const (
	ErrStorageError ErrorCode = iota + 4000
	ErrCorrupted
	ErrInvariantViolation
	ErrReachabilityCapacityExhausted
)

// localityByCode classifies every code above into its locality, so callers
// can dispatch on category without hand-maintaining a parallel switch.
var localityByCode = map[ErrorCode]Locality{
	ErrInvalidFormat:    LocalityStateless,
	ErrInvalidSignature: LocalityStateless,
	ErrInvalidVersion:   LocalityStateless,
	ErrSizeLimit:        LocalityStateless,
	ErrInvalidProof:     LocalityStateless,

	ErrNonceTooLow:               LocalityPreExecution,
	ErrNonceTooHigh:              LocalityPreExecution,
	ErrMissingParent:             LocalityPreExecution,
	ErrInvalidBlockHeight:        LocalityPreExecution,
	ErrTimestampIsInFuture:       LocalityPreExecution,
	ErrTimestampIsLessThanParent: LocalityPreExecution,
	ErrKClusterViolation:         LocalityPreExecution,
	ErrDuplicateBlock:            LocalityPreExecution,
	ErrKnownInvalid:              LocalityPreExecution,
	ErrTooManyParents:            LocalityPreExecution,
	ErrTooFewParents:             LocalityPreExecution,
	ErrOverflow:                  LocalityPreExecution,
	ErrInvalidDifficulty:         LocalityPreExecution,

	ErrInsufficientBalance: LocalityExecutionTime,
	ErrContractRevert:      LocalityExecutionTime,
	ErrBalanceOverflow:     LocalityExecutionTime,

	ErrStorageError:                  LocalityFatal,
	ErrCorrupted:                     LocalityFatal,
	ErrInvariantViolation:            LocalityFatal,
	ErrReachabilityCapacityExhausted: LocalityFatal,
}

// RuleError is a consensus error carrying a stable code alongside its
// message, analogous to the teacher's ruleerrors.RuleError.
type RuleError struct {
	ErrorCode ErrorCode
	Message   string
}

// Error implements the error interface.
func (e RuleError) Error() string {
	return e.Message
}

// Locality reports which of the four spec.md §7 categories this error
// belongs to.
func (e RuleError) Locality() Locality {
	if locality, ok := localityByCode[e.ErrorCode]; ok {
		return locality
	}
	return LocalityFatal
}

// New constructs a RuleError with the given code and message.
func New(code ErrorCode, message string) error {
	return RuleError{ErrorCode: code, Message: message}
}

// Newf constructs a RuleError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) error {
	return RuleError{ErrorCode: code, Message: errors.Errorf(format, args...).Error()}
}

// Is reports whether err is a RuleError with the given code, unwrapping
// github.com/pkg/errors-style wrapped causes.
func Is(err error, code ErrorCode) bool {
	var ruleErr RuleError
	if errors.As(err, &ruleErr) {
		return ruleErr.ErrorCode == code
	}
	return false
}

// Code extracts the ErrorCode from err, if it is (or wraps) a RuleError.
func Code(err error) (ErrorCode, bool) {
	var ruleErr RuleError
	if errors.As(err, &ruleErr) {
		return ruleErr.ErrorCode, true
	}
	return 0, false
}
