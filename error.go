// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package gravity

import (
	"errors"
	"fmt"
)

// Error is a protocol error kind. Every rejected transition returns one of
// the sentinels below, possibly wrapped with detail.
type Error struct {
	Code    int32
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("gravity error %d: %s", e.Code, e.Message)
}

var (
	ErrStaleNonce                    = &Error{Code: 1, Message: "stale nonce"}
	ErrCurrentSetMismatch            = &Error{Code: 2, Message: "current validator set does not match checkpoint"}
	ErrUnsortedOrDuplicateValidators = &Error{Code: 3, Message: "validators not in strictly ascending order"}
	ErrInsufficientSigningPower      = &Error{Code: 4, Message: "insufficient signing power"}
	ErrMalformedSignature            = &Error{Code: 5, Message: "malformed signature"}
	ErrBatchExpired                  = &Error{Code: 6, Message: "batch expired"}
	ErrLengthMismatch                = &Error{Code: 7, Message: "parallel array length mismatch"}
	ErrInvalidSignature              = &Error{Code: 8, Message: "invalid signature"}
	ErrMalformedValidatorSet         = &Error{Code: 9, Message: "malformed validator set"}
	ErrFeeExceedsAmount              = &Error{Code: 10, Message: "transfer fee exceeds amount"}
	ErrPowerOverflow                 = &Error{Code: 11, Message: "power overflow"}
	ErrMalformedBatch                = &Error{Code: 12, Message: "malformed batch"}
)

// CodeOf returns the code of the protocol error wrapped in err, or 0 if err
// does not carry one.
func CodeOf(err error) int32 {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}

// Reason returns a short label for err suitable for metrics.
func Reason(err error) string {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Message
	}
	return "other"
}
