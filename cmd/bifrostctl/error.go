package main

import (
	"errors"
)

type usageError struct {
	error
}

func newUsageError(msg string) usageError {
	return usageError{error: errors.New(msg)}
}

var errorWantedOneArg = newUsageError("expected exactly one argument, the method name")
var errorWantedNoArgs = newUsageError("expected no (non-flag) arguments")
var errorInvalidOutputFormat = newUsageError("invalid output format specified (want text, json or yaml)")

// errFailedOutcome makes the command exit non-zero once a failed
// outcome has been printed.
var errFailedOutcome = errors.New("call did not succeed")
