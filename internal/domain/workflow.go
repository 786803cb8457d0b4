package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrRunConflict means another worker already holds or finished the same
// unit of work (same idempotency key).
var ErrRunConflict = errors.New("workflow run already claimed or completed")

// RunKind identifies the workflow a persisted run belongs to.
type RunKind string

const (
	RunKindAutoVerify    RunKind = "auto_verify"
	RunKindReverify      RunKind = "reverify"
	RunKindVerifyPending RunKind = "verify_pending"
)

// RunStatus is the persisted state of a workflow run.
type RunStatus string

const (
	RunScheduled RunStatus = "scheduled"
	RunClaimed   RunStatus = "claimed"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// WorkflowRun is the durable record behind a long-running workflow. Sleeping
// is modelled as NextDueAt; a worker loop picks the row up once it is due.
type WorkflowRun struct {
	ID              string          `json:"id"`
	Kind            RunKind         `json:"kind"`
	TrackedDomainID string          `json:"tracked_domain_id"`
	IdempotencyKey  string          `json:"idempotency_key,omitempty"`
	Attempt         int             `json:"attempt"`
	Status          RunStatus       `json:"status"`
	NextDueAt       time.Time       `json:"next_due_at"`
	ClaimedBy       string          `json:"claimed_by,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
