package domain

// SessionState is the lifecycle state of a server-granted session, tracked
// independently of the owning account's state.
type SessionState string

const (
	SessionAuthenticated      SessionState = "Authenticated"
	SessionSecondFactorNeeded SessionState = "SecondFactorNeeded"
	SessionSecondFactorFailed SessionState = "SecondFactorFailed"
	SessionForceLogout        SessionState = "ForceLogout"
)

// Session is a server-granted authentication session bound to at most one
// account at a time.
//
// Tokens are kept in the Session struct for simplicity. Rationale:
// - Session and tokens have identical lifecycle (created/updated together)
// - No use case for querying sessions without tokens or vice versa
// - Token encryption is handled at the coordinator layer, not here
type Session struct {
	SessionID    string `json:"session_id"`
	UserID       string `json:"user_id"`
	Product      string `json:"product"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// Scopes preserves the order the identity service granted them in.
	Scopes    []string `json:"scopes"`
	TokenType string   `json:"token_type,omitempty"`
	TokenCode string   `json:"token_code,omitempty"`
}

// Valid reports whether the session carries the fields required before any
// persistence may happen: non-blank id, access token and refresh token.
func (s Session) Valid() bool {
	return s.SessionID != "" && s.AccessToken != "" && s.RefreshToken != ""
}
