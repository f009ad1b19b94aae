package domain

// SessionDetails holds the second-factor / two-pass bookkeeping for one
// session (1:1 with the session row). Password is encrypted at rest and
// clearable independently of the rest of the record.
type SessionDetails struct {
	SessionID           string `json:"session_id"`
	InitialEventID      string `json:"initial_event_id,omitempty"`
	RequiredAccountType string `json:"required_account_type,omitempty"`
	SecondFactorEnabled bool   `json:"second_factor_enabled"`
	TwoPassModeEnabled  bool   `json:"two_pass_mode_enabled"`
	Password            string `json:"password,omitempty"`
}

// VerificationMethod is one way a human verification challenge can be solved.
type VerificationMethod string

const (
	VerificationCaptcha VerificationMethod = "captcha"
	VerificationEmail   VerificationMethod = "email"
	VerificationSMS     VerificationMethod = "sms"
)

// HumanVerificationDetails tracks a pending human verification sub-flow for
// one session (1:1 with the session row). The record is deleted when the
// verification completes.
type HumanVerificationDetails struct {
	SessionID                string               `json:"session_id"`
	VerificationMethods      []VerificationMethod `json:"verification_methods"`
	CaptchaVerificationToken string               `json:"captcha_verification_token,omitempty"`
}
