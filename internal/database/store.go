package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pscheid92/accounthub/internal/domain"
)

// accountColumns must match the Scan order in scanAccount.
const accountColumns = `user_id, username, state, session_id, session_state`

// sessionColumns must match the Scan order in scanSession.
const sessionColumns = `session_id, user_id, product, access_token, refresh_token, scopes, token_type, token_code`

// Store implements domain.StateStore on SQLite.
type Store struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx so reads can be shared
// between the store and in-flight transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InTx runs fn inside one transaction. Any error from fn rolls everything
// back; otherwise the transaction commits.
func (s *Store) InTx(ctx context.Context, fn func(tx domain.StateTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(&stateTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	return getAccount(ctx, s.db, userID)
}

func (s *Store) GetAccountBySession(ctx context.Context, sessionID string) (*domain.Account, error) {
	return getAccountBySession(ctx, s.db, sessionID)
}

func (s *Store) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccountRows(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	for i := range accounts {
		if err := loadAccountDetails(ctx, s.db, &accounts[i]); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return getSession(ctx, s.db, sessionID)
}

func (s *Store) ListSessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

func (s *Store) GetSessionDetails(ctx context.Context, sessionID string) (*domain.SessionDetails, error) {
	return getSessionDetails(ctx, s.db, sessionID)
}

func (s *Store) GetHumanVerificationDetails(ctx context.Context, sessionID string) (*domain.HumanVerificationDetails, error) {
	return getHumanVerificationDetails(ctx, s.db, sessionID)
}

func (s *Store) GetPrimaryUserID(ctx context.Context, product string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM account_metadata
		WHERE product = ?
		ORDER BY primary_at_ms DESC, user_id
		LIMIT 1
	`, product).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNoPrimaryAccount
	}
	if err != nil {
		return "", fmt.Errorf("failed to query primary account: %w", err)
	}
	return userID, nil
}

// stateTx implements domain.StateTx on an open *sql.Tx.
type stateTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *stateTx) UpsertAccount(a domain.Account) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO accounts (user_id, username, state, session_id, session_state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE SET
			username = excluded.username,
			state = excluded.state,
			session_id = excluded.session_id,
			session_state = excluded.session_state,
			updated_at = CURRENT_TIMESTAMP
	`, a.UserID, a.Username, string(a.State), nullIfEmpty(a.SessionID), nullIfEmpty(string(a.SessionState)))
	if err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	return nil
}

func (t *stateTx) GetAccount(userID string) (*domain.Account, error) {
	return getAccount(t.ctx, t.tx, userID)
}

func (t *stateTx) GetAccountBySession(sessionID string) (*domain.Account, error) {
	return getAccountBySession(t.ctx, t.tx, sessionID)
}

func (t *stateTx) DeleteAccount(userID string) error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM accounts WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

func (t *stateTx) UpsertSession(s domain.Session) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO sessions (session_id, user_id, product, access_token, refresh_token, scopes, token_type, token_code, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (session_id) DO UPDATE SET
			user_id = excluded.user_id,
			product = excluded.product,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			scopes = excluded.scopes,
			token_type = excluded.token_type,
			token_code = excluded.token_code,
			updated_at = CURRENT_TIMESTAMP
	`, s.SessionID, s.UserID, s.Product, s.AccessToken, s.RefreshToken,
		strings.Join(s.Scopes, " "), s.TokenType, s.TokenCode)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

func (t *stateTx) GetSession(sessionID string) (*domain.Session, error) {
	return getSession(t.ctx, t.tx, sessionID)
}

func (t *stateTx) DeleteSession(sessionID string) error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (t *stateTx) UpdateSessionScopes(sessionID string, scopes []string) error {
	return t.updateSession(sessionID,
		`UPDATE sessions SET scopes = ?, updated_at = CURRENT_TIMESTAMP WHERE session_id = ?`,
		strings.Join(scopes, " "), sessionID)
}

func (t *stateTx) UpdateSessionHeaders(sessionID, tokenType, tokenCode string) error {
	return t.updateSession(sessionID,
		`UPDATE sessions SET token_type = ?, token_code = ?, updated_at = CURRENT_TIMESTAMP WHERE session_id = ?`,
		tokenType, tokenCode, sessionID)
}

func (t *stateTx) UpdateSessionToken(sessionID, accessToken, refreshToken string) error {
	return t.updateSession(sessionID,
		`UPDATE sessions SET access_token = ?, refresh_token = ?, updated_at = CURRENT_TIMESTAMP WHERE session_id = ?`,
		accessToken, refreshToken, sessionID)
}

func (t *stateTx) updateSession(sessionID, query string, args ...any) error {
	res, err := t.tx.ExecContext(t.ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (t *stateTx) UpsertSessionDetails(d domain.SessionDetails) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO session_details (session_id, initial_event_id, required_account_type, second_factor_enabled, two_pass_mode_enabled, password)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			initial_event_id = excluded.initial_event_id,
			required_account_type = excluded.required_account_type,
			second_factor_enabled = excluded.second_factor_enabled,
			two_pass_mode_enabled = excluded.two_pass_mode_enabled,
			password = excluded.password
	`, d.SessionID, d.InitialEventID, d.RequiredAccountType, d.SecondFactorEnabled, d.TwoPassModeEnabled, d.Password)
	if err != nil {
		return fmt.Errorf("failed to upsert session details: %w", err)
	}
	return nil
}

func (t *stateTx) ClearSessionPassword(sessionID string) error {
	_, err := t.tx.ExecContext(t.ctx,
		`UPDATE session_details SET password = '' WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear session password: %w", err)
	}
	return nil
}

func (t *stateTx) DeleteSessionDetails(sessionID string) error {
	_, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM session_details WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session details: %w", err)
	}
	return nil
}

func (t *stateTx) UpsertHumanVerificationDetails(d domain.HumanVerificationDetails) error {
	methods := make([]string, len(d.VerificationMethods))
	for i, m := range d.VerificationMethods {
		methods[i] = string(m)
	}

	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO human_verification_details (session_id, verification_methods, captcha_verification_token)
		VALUES (?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			verification_methods = excluded.verification_methods,
			captcha_verification_token = excluded.captcha_verification_token
	`, d.SessionID, strings.Join(methods, ","), d.CaptchaVerificationToken)
	if err != nil {
		return fmt.Errorf("failed to upsert human verification details: %w", err)
	}
	return nil
}

func (t *stateTx) DeleteHumanVerificationDetails(sessionID string) error {
	_, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM human_verification_details WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete human verification details: %w", err)
	}
	return nil
}

func (t *stateTx) UpsertAccountMetadata(m domain.AccountMetadata) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO account_metadata (user_id, product, primary_at_ms)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, product) DO UPDATE SET
			primary_at_ms = excluded.primary_at_ms
	`, m.UserID, m.Product, m.PrimaryAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert account metadata: %w", err)
	}
	return nil
}

func (t *stateTx) DeleteAccountMetadata(userID, product string) error {
	_, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM account_metadata WHERE user_id = ? AND product = ?`, userID, product)
	if err != nil {
		return fmt.Errorf("failed to delete account metadata: %w", err)
	}
	return nil
}

// --- shared reads ---

func getAccount(ctx context.Context, q querier, userID string) (*domain.Account, error) {
	account, err := scanAccount(q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ?`, userID))
	if err != nil {
		return nil, err
	}
	if err := loadAccountDetails(ctx, q, account); err != nil {
		return nil, err
	}
	return account, nil
}

func getAccountBySession(ctx context.Context, q querier, sessionID string) (*domain.Account, error) {
	account, err := scanAccount(q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE session_id = ?`, sessionID))
	if err != nil {
		return nil, err
	}
	if err := loadAccountDetails(ctx, q, account); err != nil {
		return nil, err
	}
	return account, nil
}

func getSession(ctx context.Context, q querier, sessionID string) (*domain.Session, error) {
	return scanSession(q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID))
}

func getSessionDetails(ctx context.Context, q querier, sessionID string) (*domain.SessionDetails, error) {
	var d domain.SessionDetails
	err := q.QueryRowContext(ctx, `
		SELECT session_id, initial_event_id, required_account_type, second_factor_enabled, two_pass_mode_enabled, password
		FROM session_details
		WHERE session_id = ?
	`, sessionID).Scan(
		&d.SessionID, &d.InitialEventID, &d.RequiredAccountType,
		&d.SecondFactorEnabled, &d.TwoPassModeEnabled, &d.Password,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session details: %w", err)
	}
	return &d, nil
}

func getHumanVerificationDetails(ctx context.Context, q querier, sessionID string) (*domain.HumanVerificationDetails, error) {
	var d domain.HumanVerificationDetails
	var methods string
	err := q.QueryRowContext(ctx, `
		SELECT session_id, verification_methods, captcha_verification_token
		FROM human_verification_details
		WHERE session_id = ?
	`, sessionID).Scan(&d.SessionID, &methods, &d.CaptchaVerificationToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read human verification details: %w", err)
	}
	if methods != "" {
		for _, m := range strings.Split(methods, ",") {
			d.VerificationMethods = append(d.VerificationMethods, domain.VerificationMethod(m))
		}
	}
	return &d, nil
}

// loadAccountDetails attaches the derived detail records of the bound
// session, if any.
func loadAccountDetails(ctx context.Context, q querier, account *domain.Account) error {
	if !account.HasSession() {
		return nil
	}

	details, err := getSessionDetails(ctx, q, account.SessionID)
	if err != nil {
		return err
	}
	account.Details.Session = details

	hv, err := getHumanVerificationDetails(ctx, q, account.SessionID)
	if err != nil {
		return err
	}
	account.Details.HumanVerification = hv
	return nil
}

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var a domain.Account
	var sessionID, sessionState sql.NullString
	err := row.Scan(&a.UserID, &a.Username, &a.State, &sessionID, &sessionState)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	a.SessionID = sessionID.String
	a.SessionState = domain.SessionState(sessionState.String)
	return &a, nil
}

func scanAccountRows(rows *sql.Rows) (*domain.Account, error) {
	var a domain.Account
	var sessionID, sessionState sql.NullString
	if err := rows.Scan(&a.UserID, &a.Username, &a.State, &sessionID, &sessionState); err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	a.SessionID = sessionID.String
	a.SessionState = domain.SessionState(sessionState.String)
	return &a, nil
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var s domain.Session
	var scopes string
	err := row.Scan(&s.SessionID, &s.UserID, &s.Product, &s.AccessToken, &s.RefreshToken, &scopes, &s.TokenType, &s.TokenCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	if scopes != "" {
		s.Scopes = strings.Split(scopes, " ")
	}
	return &s, nil
}

func scanSessionRows(rows *sql.Rows) (*domain.Session, error) {
	var s domain.Session
	var scopes string
	if err := rows.Scan(&s.SessionID, &s.UserID, &s.Product, &s.AccessToken, &s.RefreshToken, &scopes, &s.TokenType, &s.TokenCode); err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	if scopes != "" {
		s.Scopes = strings.Split(scopes, " ")
	}
	return &s, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *Store) getAccountMetadata(ctx context.Context, userID, product string) (*domain.AccountMetadata, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx, `
		SELECT primary_at_ms FROM account_metadata WHERE user_id = ? AND product = ?
	`, userID, product).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account metadata: %w", err)
	}
	return &domain.AccountMetadata{UserID: userID, Product: product, PrimaryAt: time.UnixMilli(ms)}, nil
}
