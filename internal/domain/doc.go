// Package domain defines the core business types for domainwatch.
//
// Types in this package are pure value objects with no behavior beyond
// validation and small derivations, no database dependencies, and no HTTP
// concerns. They are the shared language between handlers, services,
// workers, and repositories.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON tags are allowed (they're metadata, not behavior)
//   - Constants and enums belong here
package domain
