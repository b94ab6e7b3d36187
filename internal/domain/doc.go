// Package domain holds the core types and contracts of the service.
//
// Files are concept-oriented (user.go, session.go, viewer.go, errors.go):
// plain structs, repository interfaces, and sentinel errors. No
// implementation code lives here, which keeps adapters free to import the
// domain without creating cycles.
package domain
