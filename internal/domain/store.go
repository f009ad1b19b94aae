package domain

import "context"

// StateStore is the durable storage for accounts, sessions and their derived
// records. Mutations only happen through InTx; a transaction either fully
// commits or has no visible effect. The store never encrypts, decrypts or
// emits notifications - both are the coordinator's responsibility.
type StateStore interface {
	// InTx runs fn inside one atomic transaction. Reads issued through the
	// transaction observe writes made earlier in the same transaction.
	InTx(ctx context.Context, fn func(tx StateTx) error) error

	GetAccount(ctx context.Context, userID string) (*Account, error)
	GetAccountBySession(ctx context.Context, sessionID string) (*Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)

	GetSession(ctx context.Context, sessionID string) (*Session, error)
	ListSessions(ctx context.Context) ([]Session, error)

	GetSessionDetails(ctx context.Context, sessionID string) (*SessionDetails, error)
	GetHumanVerificationDetails(ctx context.Context, sessionID string) (*HumanVerificationDetails, error)

	// GetPrimaryUserID returns the user whose metadata has the greatest
	// PrimaryAt for the product, or ErrNoPrimaryAccount.
	GetPrimaryUserID(ctx context.Context, product string) (string, error)

	// Ping reports whether the underlying database is reachable.
	Ping(ctx context.Context) error
}

// StateTx is the per-entity write surface available inside a transaction.
// Get methods observe earlier writes of the same transaction.
type StateTx interface {
	UpsertAccount(a Account) error
	GetAccount(userID string) (*Account, error)
	GetAccountBySession(sessionID string) (*Account, error)
	DeleteAccount(userID string) error

	UpsertSession(s Session) error
	GetSession(sessionID string) (*Session, error)
	DeleteSession(sessionID string) error
	UpdateSessionScopes(sessionID string, scopes []string) error
	UpdateSessionHeaders(sessionID, tokenType, tokenCode string) error
	UpdateSessionToken(sessionID, accessToken, refreshToken string) error

	UpsertSessionDetails(d SessionDetails) error
	ClearSessionPassword(sessionID string) error
	DeleteSessionDetails(sessionID string) error

	UpsertHumanVerificationDetails(d HumanVerificationDetails) error
	DeleteHumanVerificationDetails(sessionID string) error

	UpsertAccountMetadata(m AccountMetadata) error
	DeleteAccountMetadata(userID, product string) error
}
