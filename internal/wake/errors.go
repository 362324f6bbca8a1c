package wake

import "errors"

var (
	// ErrInvalidGate is returned when the gate factory hands out a gate that
	// is not armed. Nothing is issued and nothing is subscribed.
	ErrInvalidGate = errors.New("gate not armed")

	// ErrCancelled accompanies a Cancelled result.
	ErrCancelled = errors.New("wake cancelled")

	// ErrInvalidTimeout is returned for a negative timeout.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrRadioDisabled is returned when the radio reports itself disabled.
	ErrRadioDisabled = errors.New("radio disabled")

	// ErrNilCollaborator is returned by New for a missing collaborator.
	ErrNilCollaborator = errors.New("nil collaborator")
)
