package moderation

import "github.com/pkg/errors"

var (
	// ErrConfirmationRequired is returned by CreateDeleteJob when the
	// threshold exceeds the confirmation gate and the caller did not confirm.
	ErrConfirmationRequired = errors.New("deletion threshold requires explicit confirmation")

	// ErrJobNotFound is returned by StopAuto when no recurring job is
	// registered for the given threshold.
	ErrJobNotFound = errors.New("no recurring job for threshold")

	// ErrInvalidThreshold is returned when a job threshold falls outside the
	// allowed bounds.
	ErrInvalidThreshold = errors.New("threshold out of bounds")

	// ErrPermissionDenied is returned when a non-admin attempts a privileged
	// operation.
	ErrPermissionDenied = errors.New("operation requires admin privileges")
)
