// Package app provides the application service layer.
//
// Service owns every mutation of the state store: each operation runs inside
// one atomic transaction (creating an account session uses two sequential
// ones), applies the transition-tied primary metadata side effect, and
// publishes a snapshot on the matching event bus strictly after commit.
// Reads and live subscriptions live in queries.go. Depends on domain
// interfaces, not concrete implementations.
package app
