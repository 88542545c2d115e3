package retry

import (
	"time"

	"github.com/sulaimonao/selfhostedsearch/pkg/failure"
	"github.com/sulaimonao/selfhostedsearch/pkg/timeutil"
)

// Result carries the outcome of a retried operation: the value on
// success, the final classified error on failure, and how many attempts
// were consumed either way.
type Result[T any] struct {
	value    T
	err      failure.ClassifiedError
	attempts int
}

// NewSuccessResult wraps a successful value with its attempt count.
func NewSuccessResult[T any](value T, attempts int) Result[T] {
	return Result[T]{
		value:    value,
		attempts: attempts,
	}
}

// Value returns the successful value, or the zero value on failure.
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the final error, or nil on success.
func (r Result[T]) Err() failure.ClassifiedError {
	return r.err
}

// Attempts returns how many attempts were made, including the successful
// one.
func (r Result[T]) Attempts() int {
	return r.attempts
}

// IsSuccess reports whether the operation finished without an error.
func (r Result[T]) IsSuccess() bool {
	return r.err == nil
}

// IsFailure reports whether the operation ended with an error.
func (r Result[T]) IsFailure() bool {
	return r.err != nil
}

// RetryParam holds the parameters for retry logic.
// These parameters are passed from outside (e.g., config) and should not
// be known by the retry handler internally.
type RetryParam struct {
	BaseDelay    time.Duration
	Jitter       time.Duration
	RandomSeed   int64
	MaxAttempts  int
	BackoffParam timeutil.BackoffParam
}

// NewRetryParam creates a new RetryParam with the given settings.
func NewRetryParam(
	baseDelay time.Duration,
	jitter time.Duration,
	randomSeed int64,
	maxAttempts int,
	backoffParam timeutil.BackoffParam,
) RetryParam {
	return RetryParam{
		BaseDelay:    baseDelay,
		Jitter:       jitter,
		RandomSeed:   randomSeed,
		MaxAttempts:  maxAttempts,
		BackoffParam: backoffParam,
	}
}
