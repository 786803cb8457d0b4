// Package worker contains the long-running verification workflows: the
// auto-verify scheduler, the daily re-verification and pending sweeps, and
// the maintenance loops that recover stale runs and prune old rows.
//
// Workflow state lives in workflow_runs. A run that is waiting is just a
// row with a future next_due_at; no goroutine sleeps on its behalf.
package worker
