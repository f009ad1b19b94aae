package domain

// AccountEvent is one state-change notification. Both notification kinds
// (account-state-changed and session-state-changed) carry a full snapshot of
// the owning account as committed; the session kind is emitted for the
// account whose SessionState changed.
type AccountEvent struct {
	// ID is a ULID assigned at publish time, unique and sortable per bus.
	ID      string  `json:"id"`
	Account Account `json:"account"`
}
