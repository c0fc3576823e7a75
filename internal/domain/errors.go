package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job id is not in the job table
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidJob is returned when an enqueue request fails validation
	ErrInvalidJob = errors.New("invalid job")

	// ErrClaimNotFound is returned by the persistence collaborator for unknown claims
	ErrClaimNotFound = errors.New("claim not found")

	// ErrCredentialsNotFound is returned when an organization has no configuration for a rail
	ErrCredentialsNotFound = errors.New("rail credentials not found")

	// ErrInvalidCredentials is returned when stored credentials cannot build a connector
	ErrInvalidCredentials = errors.New("invalid rail credentials")

	// ErrUnknownRail is returned when no connector is registered for a rail id
	ErrUnknownRail = errors.New("unknown rail")
)
