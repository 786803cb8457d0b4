// Package monitor refreshes the stored snapshot of a tracked domain and
// notifies the owner about what changed since the previous one.
//
// The first snapshot of a domain is a baseline and never notifies. A
// section that cannot be fetched keeps its previous value, so a transient
// lookup failure is not reported as a change.
package monitor
