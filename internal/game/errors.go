package game

import (
	"errors"
	"fmt"
	"time"
)

// ObservationTimeout is a failure to observe an expected screen state within
// its poll budget. Every typed failure in this package implements it.
type ObservationTimeout interface {
	error
	Op() string
	Target() string
	Waited() time.Duration
	Timeout() bool
}

type timeout struct {
	op     string
	target string
	waited time.Duration
}

func (t timeout) Op() string            { return t.op }
func (t timeout) Target() string        { return t.target }
func (t timeout) Waited() time.Duration { return t.waited }
func (t timeout) Timeout() bool         { return true }

func (t timeout) format(what string) string {
	return fmt.Sprintf("%s: %s %q (waited %s)", what, t.op, t.target, t.waited)
}

// ContainerNotAccessibleError: the container never showed as open.
type ContainerNotAccessibleError struct{ timeout }

func (e *ContainerNotAccessibleError) Error() string { return e.format("container not accessible") }

// ContainerNotClosableError: the container stayed open after closing it.
type ContainerNotClosableError struct{ timeout }

func (e *ContainerNotClosableError) Error() string { return e.format("container not closable") }

// TravelNotInitiatedError: the travel flow never produced the transition cue.
// Usually a menu or targeting problem; repeating the flow often helps.
type TravelNotInitiatedError struct{ timeout }

func (e *TravelNotInitiatedError) Error() string { return e.format("travel not initiated") }

// TravelFailedError: the destination could not be selected at all.
type TravelFailedError struct{ timeout }

func (e *TravelFailedError) Error() string { return e.format("travel failed") }

// PlayerDidNotSpawnError: travel started but the player never loaded in.
// Usually a crash or an unreachable server.
type PlayerDidNotSpawnError struct{ timeout }

func (e *PlayerDidNotSpawnError) Error() string { return e.format("player did not spawn") }

// DepositTimedOutError: a deposit was never confirmed.
type DepositTimedOutError struct{ timeout }

func (e *DepositTimedOutError) Error() string { return e.format("deposit timed out") }

// ItemsNotAddedError: a take was never confirmed.
type ItemsNotAddedError struct{ timeout }

func (e *ItemsNotAddedError) Error() string { return e.format("items not added") }

func newTimeout(op, target string, waited time.Duration) timeout {
	return timeout{op: op, target: target, waited: waited}
}

// IsObservationTimeout reports whether err wraps any typed timeout.
func IsObservationTimeout(err error) bool {
	var t ObservationTimeout
	return errors.As(err, &t)
}
