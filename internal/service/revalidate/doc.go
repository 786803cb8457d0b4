// Package revalidate refreshes one cached section of a domain on demand.
//
// The set of sections is closed. Each section is a type implementing the
// unexported revalidate method of Section, so a section without a handler
// does not compile.
package revalidate
