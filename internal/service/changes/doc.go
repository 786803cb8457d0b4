// Package changes compares two snapshots of a tracked domain and reports
// what changed in its registration, leaf certificate and providers.
//
// Every function here is deterministic and does no I/O. Sets (nameservers,
// registry statuses) are compared as normalized unordered sets. A missing
// previous snapshot, or a section missing on either side, is a baseline:
// nothing is reported as changed.
package changes
