package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pscheid92/accounthub/internal/domain"
)

// GetAccount retrieves one account by user id, with detail fields decrypted.
func (s *Service) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	account, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.decryptAccount(account); err != nil {
		return nil, err
	}
	return account, nil
}

// GetAccountBySession retrieves the account a session is bound to.
func (s *Service) GetAccountBySession(ctx context.Context, sessionID string) (*domain.Account, error) {
	account, err := s.store.GetAccountBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.decryptAccount(account); err != nil {
		return nil, err
	}
	return account, nil
}

// ListAccounts returns all persisted accounts.
func (s *Service) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		if err := s.decryptAccount(&accounts[i]); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

// GetSession retrieves one session with its token fields decrypted.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.decryptSession(session); err != nil {
		return nil, err
	}
	return session, nil
}

// ListSessions returns all persisted sessions with token fields decrypted.
func (s *Service) ListSessions(ctx context.Context) ([]domain.Session, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if err := s.decryptSession(&sessions[i]); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

// GetSessionDetails retrieves the detail record of a session, password
// decrypted. Returns nil without error when no record exists.
func (s *Service) GetSessionDetails(ctx context.Context, sessionID string) (*domain.SessionDetails, error) {
	details, err := s.store.GetSessionDetails(ctx, sessionID)
	if err != nil || details == nil {
		return details, err
	}
	if details.Password, err = s.decryptField(details.Password); err != nil {
		return nil, fmt.Errorf("failed to decrypt password: %w", err)
	}
	return details, nil
}

// GetHumanVerificationDetails retrieves the pending human verification
// record of a session, or nil when none exists.
func (s *Service) GetHumanVerificationDetails(ctx context.Context, sessionID string) (*domain.HumanVerificationDetails, error) {
	return s.store.GetHumanVerificationDetails(ctx, sessionID)
}

// GetPrimaryUserID returns the user id of the primary account for the
// service's product, or domain.ErrNoPrimaryAccount.
func (s *Service) GetPrimaryUserID(ctx context.Context) (string, error) {
	return s.store.GetPrimaryUserID(ctx, s.product)
}

// OnAccountStateChanged subscribes to account-state-changed events. With
// initialState, one synthetic event per currently persisted account is
// delivered before any live event.
func (s *Service) OnAccountStateChanged(ctx context.Context, initialState bool) (<-chan domain.AccountEvent, func(), error) {
	var initial []domain.Account
	if initialState {
		accounts, err := s.store.ListAccounts(ctx)
		if err != nil {
			return nil, nil, err
		}
		for _, account := range accounts {
			initial = append(initial, sanitizeForEvent(account))
		}
	}
	ch, cancel := s.accountBus.Subscribe(initial)
	return ch, cancel, nil
}

// OnSessionStateChanged subscribes to session-state-changed events. With
// initialState, one synthetic event per account currently bound to a session
// is delivered before any live event.
func (s *Service) OnSessionStateChanged(ctx context.Context, initialState bool) (<-chan domain.AccountEvent, func(), error) {
	var initial []domain.Account
	if initialState {
		accounts, err := s.store.ListAccounts(ctx)
		if err != nil {
			return nil, nil, err
		}
		for _, account := range accounts {
			if account.HasSession() {
				initial = append(initial, sanitizeForEvent(account))
			}
		}
	}
	ch, cancel := s.sessionBus.Subscribe(initial)
	return ch, cancel, nil
}

// WatchAccount follows one account: its current snapshot (if it exists)
// followed by every state change, consecutive duplicates suppressed.
func (s *Service) WatchAccount(ctx context.Context, userID string) (<-chan domain.AccountEvent, func(), error) {
	var initial []domain.Account
	account, err := s.store.GetAccount(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, nil, err
	}
	if account != nil {
		initial = append(initial, sanitizeForEvent(*account))
	}

	in, cancel := s.accountBus.Subscribe(initial)
	out := filterEvents(in, func(ev domain.AccountEvent) bool {
		return ev.Account.UserID == userID
	})
	return out, cancel, nil
}

// WatchSession follows the account bound to one session: state changes of
// that binding, consecutive duplicates suppressed.
func (s *Service) WatchSession(ctx context.Context, sessionID string) (<-chan domain.AccountEvent, func(), error) {
	var initial []domain.Account
	account, err := s.store.GetAccountBySession(ctx, sessionID)
	if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, nil, err
	}
	if account != nil {
		initial = append(initial, sanitizeForEvent(*account))
	}

	in, cancel := s.sessionBus.Subscribe(initial)
	out := filterEvents(in, func(ev domain.AccountEvent) bool {
		return ev.Account.SessionID == sessionID
	})
	return out, cancel, nil
}

// WatchPrimaryUserID follows the primary account selection for the product:
// the current value first, then a recomputed value after every account event
// and every explicit primary change. The empty string means no primary
// account. Consecutive duplicates are suppressed.
func (s *Service) WatchPrimaryUserID(ctx context.Context) (<-chan string, func(), error) {
	current, err := s.GetPrimaryUserID(ctx)
	if err != nil && !errors.Is(err, domain.ErrNoPrimaryAccount) {
		return nil, nil, err
	}

	accountEvents, cancelAccounts := s.accountBus.Subscribe(nil)
	primaryEvents, cancelPrimary := s.primaryBus.Subscribe(nil)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			cancelAccounts()
			cancelPrimary()
		})
	}

	out := make(chan string, 1)
	out <- current

	go func() {
		defer close(out)
		last := current
		for accountEvents != nil || primaryEvents != nil {
			var ok bool
			select {
			case _, ok = <-accountEvents:
				if !ok {
					accountEvents = nil
					continue
				}
			case _, ok = <-primaryEvents:
				if !ok {
					primaryEvents = nil
					continue
				}
			case <-done:
				return
			}
			userID, err := s.GetPrimaryUserID(ctx)
			if err != nil && !errors.Is(err, domain.ErrNoPrimaryAccount) {
				continue
			}
			if userID == last {
				continue
			}
			last = userID
			select {
			case out <- userID:
			case <-done:
				return
			}
		}
	}()
	return out, cancel, nil
}

// filterEvents forwards matching events, suppressing consecutive duplicates
// within the filtered stream. The returned channel closes when the upstream
// subscription is cancelled.
func filterEvents(in <-chan domain.AccountEvent, match func(domain.AccountEvent) bool) <-chan domain.AccountEvent {
	out := make(chan domain.AccountEvent)
	go func() {
		defer close(out)
		var last *domain.Account
		for ev := range in {
			if !match(ev) {
				continue
			}
			if last != nil && last.Equal(ev.Account) {
				continue
			}
			snapshot := ev.Account
			last = &snapshot
			out <- ev
		}
	}()
	return out
}

// decryptAccount routes the sensitive detail fields of an account through
// the encryption gateway on the read path. Decryption failures propagate
// unmodified - no field is ever replaced by a default.
func (s *Service) decryptAccount(account *domain.Account) error {
	if account.Details.Session == nil {
		return nil
	}
	password, err := s.decryptField(account.Details.Session.Password)
	if err != nil {
		return fmt.Errorf("failed to decrypt password: %w", err)
	}
	account.Details.Session.Password = password
	return nil
}

// decryptSession routes the token fields of a session through the
// encryption gateway on the read path.
func (s *Service) decryptSession(session *domain.Session) error {
	var err error
	if session.AccessToken, err = s.decryptField(session.AccessToken); err != nil {
		return fmt.Errorf("failed to decrypt access token: %w", err)
	}
	if session.RefreshToken, err = s.decryptField(session.RefreshToken); err != nil {
		return fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	if session.TokenType, err = s.decryptField(session.TokenType); err != nil {
		return fmt.Errorf("failed to decrypt token type: %w", err)
	}
	if session.TokenCode, err = s.decryptField(session.TokenCode); err != nil {
		return fmt.Errorf("failed to decrypt token code: %w", err)
	}
	return nil
}
