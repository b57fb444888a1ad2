package fault

import (
	"errors"
	"fmt"
)

// Class partitions core errors into the four categories callers care about:
// arithmetic failures and invariant violations are bugs or hostile inputs and
// abort the whole operation; precondition errors mean the caller operated on
// bad state; policy rejections are expected, caller-recoverable outcomes
// (slippage, supply floor) and must never be confused with the first three.
type Class int32

const (
	ClassUnknown Class = iota
	ClassArithmetic
	ClassInvariant
	ClassPrecondition
	ClassPolicy
)

func (c Class) String() string {
	switch c {
	case ClassArithmetic:
		return "Arithmetic"
	case ClassInvariant:
		return "Invariant"
	case ClassPrecondition:
		return "Precondition"
	case ClassPolicy:
		return "Policy"
	default:
		return "Unknown"
	}
}

// Error is a classified core error.
type Error struct {
	class Class
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.class, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.class, e.msg)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Arithmeticf reports an overflow/underflow or other fixed-point failure.
func Arithmeticf(format string, args ...interface{}) *Error {
	return newError(ClassArithmetic, format, args...)
}

// Invariantf reports a violated ledger or collateralization invariant.
func Invariantf(format string, args ...interface{}) *Error {
	return newError(ClassInvariant, format, args...)
}

// Preconditionf reports an operation attempted against bad state.
func Preconditionf(format string, args ...interface{}) *Error {
	return newError(ClassPrecondition, format, args...)
}

// Policyf reports an expected, caller-recoverable rejection.
func Policyf(format string, args ...interface{}) *Error {
	return newError(ClassPolicy, format, args...)
}

func newError(c Class, format string, args ...interface{}) *Error {
	// Preserve a wrapped cause when the caller used %w.
	err := fmt.Errorf(format, args...)
	return &Error{
		class: c,
		msg:   err.Error(),
		cause: errors.Unwrap(err),
	}
}

// ClassOf extracts the class of err, or ClassUnknown for unclassified errors.
func ClassOf(err error) Class {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.class
	}
	return ClassUnknown
}

// Is reports whether err carries the given class.
func Is(err error, c Class) bool {
	return ClassOf(err) == c
}
