package domain

// JobKind identifies the work a job performs against a rail
type JobKind string

const (
	JobKindSubmit     JobKind = "submit"
	JobKindPollStatus JobKind = "poll-status"
)

// Valid reports whether k is a known job kind
func (k JobKind) Valid() bool {
	return k == JobKindSubmit || k == JobKindPollStatus
}

// JobStatus is the lifecycle state of a job
type JobStatus string

// Job status constants
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transition can leave s
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// CanTransition reports whether from → to is an edge of the job state machine:
// queued → running → {succeeded, failed, queued}
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusQueued:
		return to == JobStatusRunning
	case JobStatusRunning:
		return to == JobStatusSucceeded || to == JobStatusFailed || to == JobStatusQueued
	default:
		return false
	}
}

// ClaimStatus is the externally visible state of a claim
type ClaimStatus string

// Claim status constants
const (
	ClaimStatusDraft     ClaimStatus = "draft"
	ClaimStatusReady     ClaimStatus = "ready"
	ClaimStatusSubmitted ClaimStatus = "submitted"
	ClaimStatusAccepted  ClaimStatus = "accepted"
	ClaimStatusRejected  ClaimStatus = "rejected"
	ClaimStatusPaid      ClaimStatus = "paid"
	ClaimStatusDenied    ClaimStatus = "denied"
)

// IsFinal reports whether the payer has reached a decision on the claim
func (s ClaimStatus) IsFinal() bool {
	switch s {
	case ClaimStatusRejected, ClaimStatusPaid, ClaimStatusDenied:
		return true
	}
	return false
}
