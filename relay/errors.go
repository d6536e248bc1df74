package relay

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTooFewGroups is returned by Connect when less than two groups are given.
	ErrTooFewGroups = errors.New("relay: at least two groups required")
	// ErrEmptyGroup is returned by Connect for a group without actors.
	ErrEmptyGroup = errors.New("relay: empty group")
	// ErrAlreadyConnected is returned when Connect is called more than once or
	// an actor is already wired by another relay.
	ErrAlreadyConnected = errors.New("relay: already connected")
	// ErrNotConnected is returned by Start when Connect was not called.
	ErrNotConnected = errors.New("relay: not connected")
	// ErrAlreadyStarted is returned when Start is called more than once.
	ErrAlreadyStarted = errors.New("relay: already started")
	// ErrTypeMismatch is returned by Connect when the payload type produced by
	// a group does not match the payload type consumed by the next one.
	ErrTypeMismatch = errors.New("relay: payload type mismatch")
	// ErrNoLoop is returned by Connect for actors without an inbound queue
	// that do not implement Looper, and for actors that implement neither
	// Looper nor Receiver.
	ErrNoLoop = errors.New("relay: actor needs a loop")
	// ErrNotSender is returned by Send on actors without an outbound queue.
	ErrNotSender = errors.New("relay: actor is not a sender")
	// ErrNotReceiver is returned by the default pump of actors without an
	// inbound queue.
	ErrNotReceiver = errors.New("relay: actor is not a receiver")
)

// ActorError reports the failure of a single actor.
type ActorError struct {
	Group string
	Actor string
	Err   error
}

func (e *ActorError) Error() string {
	return fmt.Sprintf("relay: [%s] (%s): %v", e.Group, e.Actor, e.Err)
}

func (e *ActorError) Unwrap() error {
	return e.Err
}

// RecoveryError wraps a panic value with the stack trace.
type RecoveryError struct {
	// Hook names the lifecycle hook that panicked.
	Hook string
	// PanicValue is the original value that was passed to panic().
	PanicValue any
	// StackTrace contains the full stack trace at the point of panic.
	StackTrace string
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("panic recovered in %s: %v", e.Hook, e.PanicValue)
}

// stage names the group and the actor for configuration errors.
func stage(group, actor string) string {
	var b strings.Builder
	b.WriteString("group ")
	b.WriteString(group)
	if actor != "" {
		b.WriteString(" actor ")
		b.WriteString(actor)
	}
	return b.String()
}
