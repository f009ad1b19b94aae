// Package eventbus provides the bounded broadcast channels that fan out
// state-change notifications.
//
// Two independent Bus instances exist (account-state-changed and
// session-state-changed), owned by the application service for its own
// lifetime. Each subscriber gets a bounded buffer sized to absorb reentrant
// emissions: a handler may synchronously trigger further state updates while
// processing an event. Overflowing the buffer is a fatal ErrBufferOverflow,
// never a silent drop. Consecutive duplicate snapshots are suppressed per
// subscriber.
package eventbus
