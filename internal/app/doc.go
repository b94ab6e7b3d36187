// Package app provides the application service layer.
//
// Orchestrates use cases: registration, login, logout, viewer resolution,
// theme changes. Sits between HTTP handlers and domain repositories.
// Depends on domain interfaces, not concrete implementations.
package app
