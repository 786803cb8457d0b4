// Package notification decides which channels a message goes to and
// delivers it.
//
// Resolver applies the precedence rules: a per-domain override for the
// category replaces the owner's global preference outright, and a domain
// that cannot be found resolves to no channels at all. Dispatcher renders
// the message with Liquid, then sends email through an EmailSender and
// stores an in-app row through the repository.
package notification
