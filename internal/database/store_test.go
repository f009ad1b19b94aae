package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/accounthub/internal/domain"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Connect(filepath.Join(t.TempDir(), "accounthub.db"))
	require.NoError(t, err)
	require.NoError(t, store.RunMigrations())

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func insertAccount(t *testing.T, store *Store, a domain.Account) {
	t.Helper()

	err := store.InTx(context.Background(), func(tx domain.StateTx) error {
		return tx.UpsertAccount(a)
	})
	require.NoError(t, err)
}

func TestStore_UpsertAndGetAccount(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	insertAccount(t, store, domain.Account{
		UserID:   "u1",
		Username: "alice",
		State:    domain.AccountNotReady,
	})

	account, err := store.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", account.Username)
	assert.Equal(t, domain.AccountNotReady, account.State)
	assert.Empty(t, account.SessionID)
	assert.Empty(t, account.SessionState)

	// Upsert again with a session binding.
	insertAccount(t, store, domain.Account{
		UserID:       "u1",
		Username:     "alice",
		State:        domain.AccountReady,
		SessionID:    "s1",
		SessionState: domain.SessionAuthenticated,
	})

	account, err = store.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.AccountReady, account.State)
	assert.Equal(t, "s1", account.SessionID)
	assert.Equal(t, domain.SessionAuthenticated, account.SessionState)
}

func TestStore_GetAccountNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetAccount(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestStore_GetAccountBySession(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	insertAccount(t, store, domain.Account{
		UserID:       "u1",
		Username:     "alice",
		State:        domain.AccountReady,
		SessionID:    "s1",
		SessionState: domain.SessionAuthenticated,
	})

	account, err := store.GetAccountBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", account.UserID)

	_, err = store.GetAccountBySession(ctx, "other")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestStore_SessionRoundtrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	session := domain.Session{
		SessionID:    "s1",
		UserID:       "u1",
		Product:      "mail",
		AccessToken:  "access",
		RefreshToken: "refresh",
		Scopes:       []string{"full", "self", "payments"},
		TokenType:    "Bearer",
	}
	err := store.InTx(ctx, func(tx domain.StateTx) error {
		return tx.UpsertSession(session)
	})
	require.NoError(t, err)

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, session.Scopes, got.Scopes)
	assert.Equal(t, "Bearer", got.TokenType)

	_, err = store.GetSession(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestStore_SessionFieldUpdates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.InTx(ctx, func(tx domain.StateTx) error {
		return tx.UpsertSession(domain.Session{
			SessionID: "s1", UserID: "u1", Product: "mail",
			AccessToken: "a", RefreshToken: "r",
		})
	})
	require.NoError(t, err)

	err = store.InTx(ctx, func(tx domain.StateTx) error {
		if err := tx.UpdateSessionScopes("s1", []string{"full"}); err != nil {
			return err
		}
		if err := tx.UpdateSessionHeaders("s1", "Bearer", "code"); err != nil {
			return err
		}
		return tx.UpdateSessionToken("s1", "a2", "r2")
	})
	require.NoError(t, err)

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"full"}, got.Scopes)
	assert.Equal(t, "Bearer", got.TokenType)
	assert.Equal(t, "code", got.TokenCode)
	assert.Equal(t, "a2", got.AccessToken)
	assert.Equal(t, "r2", got.RefreshToken)

	// Updating an unknown session surfaces ErrSessionNotFound.
	err = store.InTx(ctx, func(tx domain.StateTx) error {
		return tx.UpdateSessionScopes("ghost", []string{"full"})
	})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestStore_TransactionRollsBackOnError(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.InTx(ctx, func(tx domain.StateTx) error {
		if err := tx.UpsertAccount(domain.Account{UserID: "u1", Username: "alice", State: domain.AccountReady}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.GetAccount(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestStore_TransactionSeesOwnWrites(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.InTx(ctx, func(tx domain.StateTx) error {
		if err := tx.UpsertAccount(domain.Account{UserID: "u1", Username: "alice", State: domain.AccountNotReady}); err != nil {
			return err
		}
		account, err := tx.GetAccount("u1")
		if err != nil {
			return err
		}
		account.State = domain.AccountReady
		return tx.UpsertAccount(*account)
	})
	require.NoError(t, err)

	account, err := store.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.AccountReady, account.State)
}

func TestStore_AccountDetailsAttached(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.InTx(ctx, func(tx domain.StateTx) error {
		if err := tx.UpsertAccount(domain.Account{
			UserID: "u1", Username: "alice", State: domain.AccountReady,
			SessionID: "s1", SessionState: domain.SessionAuthenticated,
		}); err != nil {
			return err
		}
		if err := tx.UpsertSessionDetails(domain.SessionDetails{
			SessionID:           "s1",
			InitialEventID:      "evt-1",
			RequiredAccountType: "internal",
			SecondFactorEnabled: true,
			TwoPassModeEnabled:  true,
			Password:            "enc-password",
		}); err != nil {
			return err
		}
		return tx.UpsertHumanVerificationDetails(domain.HumanVerificationDetails{
			SessionID:                "s1",
			VerificationMethods:      []domain.VerificationMethod{domain.VerificationCaptcha, domain.VerificationEmail},
			CaptchaVerificationToken: "captcha-token",
		})
	})
	require.NoError(t, err)

	account, err := store.GetAccount(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, account.Details.Session)
	assert.Equal(t, "evt-1", account.Details.Session.InitialEventID)
	assert.True(t, account.Details.Session.SecondFactorEnabled)
	require.NotNil(t, account.Details.HumanVerification)
	assert.Equal(t,
		[]domain.VerificationMethod{domain.VerificationCaptcha, domain.VerificationEmail},
		account.Details.HumanVerification.VerificationMethods)
}

func TestStore_ClearSessionPasswordKeepsRest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.InTx(ctx, func(tx domain.StateTx) error {
		return tx.UpsertSessionDetails(domain.SessionDetails{
			SessionID:      "s1",
			InitialEventID: "evt-1",
			Password:       "enc-password",
		})
	})
	require.NoError(t, err)

	err = store.InTx(ctx, func(tx domain.StateTx) error {
		return tx.ClearSessionPassword("s1")
	})
	require.NoError(t, err)

	details, err := store.GetSessionDetails(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.Empty(t, details.Password)
	assert.Equal(t, "evt-1", details.InitialEventID)
}

func TestStore_DetailsAbsentReturnsNil(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	details, err := store.GetSessionDetails(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, details)

	hv, err := store.GetHumanVerificationDetails(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, hv)
}

func TestStore_PrimaryUserID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetPrimaryUserID(ctx, "mail")
	assert.ErrorIs(t, err, domain.ErrNoPrimaryAccount)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	err = store.InTx(ctx, func(tx domain.StateTx) error {
		if err := tx.UpsertAccountMetadata(domain.AccountMetadata{UserID: "u1", Product: "mail", PrimaryAt: base}); err != nil {
			return err
		}
		return tx.UpsertAccountMetadata(domain.AccountMetadata{UserID: "u2", Product: "mail", PrimaryAt: base.Add(time.Minute)})
	})
	require.NoError(t, err)

	// Latest PrimaryAt wins.
	userID, err := store.GetPrimaryUserID(ctx, "mail")
	require.NoError(t, err)
	assert.Equal(t, "u2", userID)

	// Other products are unaffected.
	_, err = store.GetPrimaryUserID(ctx, "drive")
	assert.ErrorIs(t, err, domain.ErrNoPrimaryAccount)

	err = store.InTx(ctx, func(tx domain.StateTx) error {
		return tx.DeleteAccountMetadata("u2", "mail")
	})
	require.NoError(t, err)

	userID, err = store.GetPrimaryUserID(ctx, "mail")
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	meta, err := store.getAccountMetadata(ctx, "u1", "mail")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, base.UnixMilli(), meta.PrimaryAt.UnixMilli())
}

func TestStore_ListAccountsAndSessions(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	insertAccount(t, store, domain.Account{UserID: "u1", Username: "alice", State: domain.AccountReady})
	insertAccount(t, store, domain.Account{UserID: "u2", Username: "bob", State: domain.AccountDisabled})

	err := store.InTx(ctx, func(tx domain.StateTx) error {
		if err := tx.UpsertSession(domain.Session{SessionID: "s1", UserID: "u1", Product: "mail", AccessToken: "a", RefreshToken: "r"}); err != nil {
			return err
		}
		return tx.UpsertSession(domain.Session{SessionID: "s2", UserID: "u2", Product: "mail", AccessToken: "a", RefreshToken: "r"})
	})
	require.NoError(t, err)

	accounts, err := store.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	sessions, err := store.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestStore_DeleteAccountAndSession(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	insertAccount(t, store, domain.Account{UserID: "u1", Username: "alice", State: domain.AccountReady})
	err := store.InTx(ctx, func(tx domain.StateTx) error {
		return tx.UpsertSession(domain.Session{SessionID: "s1", UserID: "u1", Product: "mail", AccessToken: "a", RefreshToken: "r"})
	})
	require.NoError(t, err)

	err = store.InTx(ctx, func(tx domain.StateTx) error {
		if err := tx.DeleteSession("s1"); err != nil {
			return err
		}
		return tx.DeleteAccount("u1")
	})
	require.NoError(t, err)

	_, err = store.GetAccount(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	_, err = store.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
