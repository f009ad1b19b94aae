package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/accounthub/internal/crypto"
	"github.com/pscheid92/accounthub/internal/domain"
	"github.com/pscheid92/accounthub/internal/eventbus"
	"github.com/pscheid92/accounthub/internal/metrics"
)

// Service is the application layer - the single writer of the state store
// and the only component that references multiple domain components. It
// orchestrates all lifecycle operations.
type Service struct {
	store      domain.StateStore
	crypto     crypto.Service
	product    string
	clock      clockwork.Clock
	accountBus *eventbus.Bus
	sessionBus *eventbus.Bus
	primaryBus *eventbus.Bus
}

// NewService creates the application layer service. product is the tenant
// scope that partitions primary-account selection. The two event buses are
// owned by the service for its lifetime - no package-level broadcast state.
func NewService(store domain.StateStore, cryptoSvc crypto.Service, product string, clock clockwork.Clock) *Service {
	return &Service{
		store:      store,
		crypto:     cryptoSvc,
		product:    product,
		clock:      clock,
		accountBus: eventbus.New("account"),
		sessionBus: eventbus.New("session"),
		primaryBus: eventbus.New("primary"),
	}
}

// Stop cancels all event subscriptions. Called on shutdown.
func (s *Service) Stop() {
	s.accountBus.Close()
	s.sessionBus.Close()
	s.primaryBus.Close()
}

// SubscriberCounts reports the combined subscriber count of all buses.
func (s *Service) SubscriberCounts() int {
	return s.accountBus.SubscriberCount() + s.sessionBus.SubscriberCount() + s.primaryBus.SubscriberCount()
}

// inTx runs one store transaction and records its duration.
func (s *Service) inTx(ctx context.Context, op string, fn func(tx domain.StateTx) error) error {
	start := s.clock.Now()
	err := s.store.InTx(ctx, fn)
	metrics.TransactionDuration.WithLabelValues(op).Observe(s.clock.Since(start).Seconds())
	return err
}

// CreateOrUpdateAccountSession persists an account together with its new
// session. The requested account state is taken from account.State; the
// session state from account.SessionState, defaulting to Authenticated.
// SessionDetails and HumanVerificationDetails are persisted too when
// supplied on account.Details.
//
// The operation runs as two sequential transactions: the first parks the
// account in NotReady with no session binding so no reader can observe a
// Ready account bound to a half-persisted session; the second persists the
// session and flips the account to the requested states. A crash between the
// two leaves the account NotReady without a session - safe and recoverable.
// When the account was already bound to a different session, that session and
// its detail records are deleted in the second transaction - an account holds
// at most one session.
func (s *Service) CreateOrUpdateAccountSession(ctx context.Context, account domain.Account, session domain.Session) (*domain.Account, error) {
	if !session.Valid() {
		return nil, domain.ErrInvalidSession
	}

	accountState := account.State
	sessionState := account.SessionState
	if sessionState == "" {
		sessionState = domain.SessionAuthenticated
	}

	var oldSessionID string
	err := s.inTx(ctx, "create_account_session_park", func(tx domain.StateTx) error {
		existing, err := tx.GetAccount(account.UserID)
		if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
			return err
		}
		if existing != nil {
			oldSessionID = existing.SessionID
		}
		return tx.UpsertAccount(domain.Account{
			UserID:   account.UserID,
			Username: account.Username,
			State:    domain.AccountNotReady,
		})
	})
	if err != nil {
		return nil, err
	}

	encrypted, err := s.encryptSession(session)
	if err != nil {
		return nil, err
	}

	var details *domain.SessionDetails
	if account.Details.Session != nil {
		d := *account.Details.Session
		d.SessionID = session.SessionID
		if d.Password, err = s.encryptField(d.Password); err != nil {
			return nil, fmt.Errorf("failed to encrypt password: %w", err)
		}
		details = &d
	}

	var fresh *domain.Account
	err = s.inTx(ctx, "create_account_session", func(tx domain.StateTx) error {
		if oldSessionID != "" && oldSessionID != session.SessionID {
			if err := tx.DeleteSessionDetails(oldSessionID); err != nil {
				return err
			}
			if err := tx.DeleteHumanVerificationDetails(oldSessionID); err != nil {
				return err
			}
			if err := tx.DeleteSession(oldSessionID); err != nil {
				return err
			}
		}
		if err := tx.UpsertSession(encrypted); err != nil {
			return err
		}
		if details != nil {
			if err := tx.UpsertSessionDetails(*details); err != nil {
				return err
			}
		}
		if hv := account.Details.HumanVerification; hv != nil {
			h := *hv
			h.SessionID = session.SessionID
			if err := tx.UpsertHumanVerificationDetails(h); err != nil {
				return err
			}
		}
		if err := tx.UpsertAccount(domain.Account{
			UserID:       account.UserID,
			Username:     account.Username,
			State:        accountState,
			SessionID:    session.SessionID,
			SessionState: sessionState,
		}); err != nil {
			return err
		}
		if err := s.applyPrimaryMetadata(tx, account.UserID, accountState); err != nil {
			return err
		}
		var getErr error
		fresh, getErr = tx.GetAccount(account.UserID)
		return getErr
	})
	if err != nil {
		return nil, err
	}

	metrics.AccountTransitionsTotal.WithLabelValues(string(accountState)).Inc()
	metrics.SessionTransitionsTotal.WithLabelValues(string(sessionState)).Inc()
	slog.Info("Account session persisted",
		"user_id", account.UserID, "session_id", session.SessionID,
		"state", accountState, "session_state", sessionState)

	if err := s.publishAccount(*fresh); err != nil {
		return fresh, err
	}
	return fresh, s.publishSession(*fresh)
}

// UpdateAccountState persists the requested target state for the account.
// The legality of the edge is not checked - callers are trusted to request
// valid transitions. Ready upserts the primary metadata row; every other
// state deletes it, in the same transaction.
func (s *Service) UpdateAccountState(ctx context.Context, userID string, state domain.AccountState) (*domain.Account, error) {
	var fresh *domain.Account
	err := s.inTx(ctx, "update_account_state", func(tx domain.StateTx) error {
		account, err := tx.GetAccount(userID)
		if err != nil {
			return err
		}
		account.State = state
		if err := tx.UpsertAccount(*account); err != nil {
			return err
		}
		if err := s.applyPrimaryMetadata(tx, userID, state); err != nil {
			return err
		}
		fresh, err = tx.GetAccount(userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.AccountTransitionsTotal.WithLabelValues(string(state)).Inc()
	slog.Info("Account state updated", "user_id", userID, "state", state)

	return fresh, s.publishAccount(*fresh)
}

// UpdateAccountStateBySession resolves the owning account of the session and
// updates its state. A session not bound to any account is a silent no-op.
func (s *Service) UpdateAccountStateBySession(ctx context.Context, sessionID string, state domain.AccountState) (*domain.Account, error) {
	account, err := s.store.GetAccountBySession(ctx, sessionID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.UpdateAccountState(ctx, account.UserID, state)
}

// UpdateSessionState persists the target session state on the owning account
// and emits a session-state-changed event for it. A session not bound to any
// account is a silent no-op.
func (s *Service) UpdateSessionState(ctx context.Context, sessionID string, state domain.SessionState) (*domain.Account, error) {
	var fresh *domain.Account
	err := s.inTx(ctx, "update_session_state", func(tx domain.StateTx) error {
		account, err := tx.GetAccountBySession(sessionID)
		if err != nil {
			return err
		}
		account.SessionState = state
		if err := tx.UpsertAccount(*account); err != nil {
			return err
		}
		fresh, err = tx.GetAccount(account.UserID)
		return err
	})
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	metrics.SessionTransitionsTotal.WithLabelValues(string(state)).Inc()
	slog.Info("Session state updated", "session_id", sessionID, "session_state", state)

	return fresh, s.publishSession(*fresh)
}

// UpdateSessionScopes replaces the scope list of the session, preserving
// order.
func (s *Service) UpdateSessionScopes(ctx context.Context, sessionID string, scopes []string) error {
	return s.inTx(ctx, "update_session_scopes", func(tx domain.StateTx) error {
		return tx.UpdateSessionScopes(sessionID, scopes)
	})
}

// UpdateSessionHeaders replaces the token type and token code of the
// session. Both pass through the encryption gateway before storage.
func (s *Service) UpdateSessionHeaders(ctx context.Context, sessionID, tokenType, tokenCode string) error {
	encType, err := s.encryptField(tokenType)
	if err != nil {
		return fmt.Errorf("failed to encrypt token type: %w", err)
	}
	encCode, err := s.encryptField(tokenCode)
	if err != nil {
		return fmt.Errorf("failed to encrypt token code: %w", err)
	}
	return s.inTx(ctx, "update_session_headers", func(tx domain.StateTx) error {
		return tx.UpdateSessionHeaders(sessionID, encType, encCode)
	})
}

// UpdateSessionToken replaces the access and refresh tokens of the session.
// Both pass through the encryption gateway before storage.
func (s *Service) UpdateSessionToken(ctx context.Context, sessionID, accessToken, refreshToken string) error {
	encAccess, err := s.encryptField(accessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	encRefresh, err := s.encryptField(refreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}
	return s.inTx(ctx, "update_session_token", func(tx domain.StateTx) error {
		return tx.UpdateSessionToken(sessionID, encAccess, encRefresh)
	})
}

// SetAsPrimary marks the account as the primary one for the product by
// stamping its metadata with the current time (latest stamp wins). Fails
// with ErrAccountNotReady unless the persisted state is exactly Ready;
// metadata stays untouched in that case. The account state itself does not
// change, so the event goes out on the primary bus - the account bus would
// suppress an unchanged snapshot as a duplicate.
func (s *Service) SetAsPrimary(ctx context.Context, userID string) error {
	var snapshot *domain.Account
	err := s.inTx(ctx, "set_as_primary", func(tx domain.StateTx) error {
		account, err := tx.GetAccount(userID)
		if err != nil {
			return err
		}
		if account.State != domain.AccountReady {
			return fmt.Errorf("%w: user %s is %s", domain.ErrAccountNotReady, userID, account.State)
		}
		if err := tx.UpsertAccountMetadata(domain.AccountMetadata{
			UserID:    userID,
			Product:   s.product,
			PrimaryAt: s.clock.Now().UTC(),
		}); err != nil {
			return err
		}
		snapshot = account
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("Primary account changed", "user_id", userID, "product", s.product)
	return s.primaryBus.Publish(sanitizeForEvent(*snapshot))
}

// DeleteAccount removes the account row, its primary metadata and - when a
// session is bound - the session and its detail records. Deleting an unknown
// account is a no-op. A final account event with state Removed is published
// after commit.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	var snapshot *domain.Account
	err := s.inTx(ctx, "delete_account", func(tx domain.StateTx) error {
		account, err := tx.GetAccount(userID)
		if err != nil {
			return err
		}
		snapshot = account
		if account.HasSession() {
			if err := tx.DeleteSessionDetails(account.SessionID); err != nil {
				return err
			}
			if err := tx.DeleteHumanVerificationDetails(account.SessionID); err != nil {
				return err
			}
			if err := tx.DeleteSession(account.SessionID); err != nil {
				return err
			}
		}
		if err := tx.DeleteAccountMetadata(userID, s.product); err != nil {
			return err
		}
		return tx.DeleteAccount(userID)
	})
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("Account deleted", "user_id", userID)

	snapshot.State = domain.AccountRemoved
	snapshot.SessionID = ""
	snapshot.SessionState = ""
	snapshot.Details = domain.AccountDetails{}
	return s.publishAccount(*snapshot)
}

// DeleteSession removes the session and its detail records and detaches it
// from the owning account, leaving the account itself in place. The detached
// account is published on the session bus after commit.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	var fresh *domain.Account
	err := s.inTx(ctx, "delete_session", func(tx domain.StateTx) error {
		account, err := tx.GetAccountBySession(sessionID)
		if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
			return err
		}
		if account != nil {
			account.SessionID = ""
			account.SessionState = ""
			account.Details = domain.AccountDetails{}
			if err := tx.UpsertAccount(*account); err != nil {
				return err
			}
		}
		if err := tx.DeleteSessionDetails(sessionID); err != nil {
			return err
		}
		if err := tx.DeleteHumanVerificationDetails(sessionID); err != nil {
			return err
		}
		if err := tx.DeleteSession(sessionID); err != nil {
			return err
		}
		if account != nil {
			fresh, err = tx.GetAccount(account.UserID)
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("Session deleted", "session_id", sessionID)

	if fresh == nil {
		return nil
	}
	return s.publishSession(*fresh)
}

// SetSessionDetails upserts the detail record of the session. The password
// passes through the encryption gateway before storage.
func (s *Service) SetSessionDetails(ctx context.Context, details domain.SessionDetails) error {
	encPassword, err := s.encryptField(details.Password)
	if err != nil {
		return fmt.Errorf("failed to encrypt password: %w", err)
	}
	details.Password = encPassword

	return s.inTx(ctx, "set_session_details", func(tx domain.StateTx) error {
		if _, err := tx.GetSession(details.SessionID); err != nil {
			return err
		}
		return tx.UpsertSessionDetails(details)
	})
}

// ClearSessionDetails clears only the stored password, keeping the rest of
// the detail record intact.
func (s *Service) ClearSessionDetails(ctx context.Context, sessionID string) error {
	return s.inTx(ctx, "clear_session_details", func(tx domain.StateTx) error {
		return tx.ClearSessionPassword(sessionID)
	})
}

// SetHumanVerificationDetails upserts the pending human verification record
// of the session.
func (s *Service) SetHumanVerificationDetails(ctx context.Context, details domain.HumanVerificationDetails) error {
	return s.inTx(ctx, "set_human_verification", func(tx domain.StateTx) error {
		if _, err := tx.GetSession(details.SessionID); err != nil {
			return err
		}
		return tx.UpsertHumanVerificationDetails(details)
	})
}

// UpdateHumanVerificationCompleted deletes the pending human verification
// record of the session.
func (s *Service) UpdateHumanVerificationCompleted(ctx context.Context, sessionID string) error {
	return s.inTx(ctx, "human_verification_completed", func(tx domain.StateTx) error {
		return tx.DeleteHumanVerificationDetails(sessionID)
	})
}

// applyPrimaryMetadata enforces the side effect tied to account state
// transitions: metadata exists for (userID, product) iff the state is Ready.
// Every state value is listed so a new one cannot slip through unmapped.
func (s *Service) applyPrimaryMetadata(tx domain.StateTx, userID string, state domain.AccountState) error {
	switch state {
	case domain.AccountReady:
		return tx.UpsertAccountMetadata(domain.AccountMetadata{
			UserID:    userID,
			Product:   s.product,
			PrimaryAt: s.clock.Now().UTC(),
		})
	case domain.AccountNotReady,
		domain.AccountDisabled,
		domain.AccountRemoved,
		domain.AccountTwoPassModeNeeded,
		domain.AccountTwoPassModeSuccess,
		domain.AccountTwoPassModeFailed,
		domain.AccountCreateAddressNeeded,
		domain.AccountCreateAddressSuccess,
		domain.AccountCreateAddressFailed,
		domain.AccountUnlockFailed,
		domain.AccountChangePasswordNeeded:
		return tx.DeleteAccountMetadata(userID, s.product)
	default:
		return fmt.Errorf("unmapped account state %q", state)
	}
}

// encryptField and decryptField route one sensitive field through the
// encryption gateway. Empty fields stay empty: optional columns (cleared
// password, absent token code) hold the empty string rather than an
// encrypted empty string.
func (s *Service) encryptField(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	return s.crypto.Encrypt(value)
}

func (s *Service) decryptField(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	return s.crypto.Decrypt(value)
}

// encryptSession routes the sensitive session fields through the encryption
// gateway before they reach storage.
func (s *Service) encryptSession(session domain.Session) (domain.Session, error) {
	var err error
	if session.AccessToken, err = s.encryptField(session.AccessToken); err != nil {
		return session, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	if session.RefreshToken, err = s.encryptField(session.RefreshToken); err != nil {
		return session, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}
	if session.TokenType, err = s.encryptField(session.TokenType); err != nil {
		return session, fmt.Errorf("failed to encrypt token type: %w", err)
	}
	if session.TokenCode, err = s.encryptField(session.TokenCode); err != nil {
		return session, fmt.Errorf("failed to encrypt token code: %w", err)
	}
	return session, nil
}

// sanitizeForEvent strips the at-rest password from a snapshot before it
// leaves on a bus. Event payloads never carry stored secrets.
func sanitizeForEvent(account domain.Account) domain.Account {
	if account.Details.Session != nil {
		details := *account.Details.Session
		details.Password = ""
		account.Details.Session = &details
	}
	return account
}

func (s *Service) publishAccount(account domain.Account) error {
	return s.accountBus.Publish(sanitizeForEvent(account))
}

func (s *Service) publishSession(account domain.Account) error {
	return s.sessionBus.Publish(sanitizeForEvent(account))
}
