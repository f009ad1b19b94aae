package domain

// AccountState is the lifecycle state of a persisted account.
//
// No transition graph is enforced: the coordinator persists whatever target
// state the caller requests and only reacts to the target value (primary
// metadata exists iff the state is Ready).
type AccountState string

const (
	AccountNotReady             AccountState = "NotReady"
	AccountReady                AccountState = "Ready"
	AccountDisabled             AccountState = "Disabled"
	AccountRemoved              AccountState = "Removed"
	AccountTwoPassModeNeeded    AccountState = "TwoPassModeNeeded"
	AccountTwoPassModeSuccess   AccountState = "TwoPassModeSuccess"
	AccountTwoPassModeFailed    AccountState = "TwoPassModeFailed"
	AccountCreateAddressNeeded  AccountState = "CreateAddressNeeded"
	AccountCreateAddressSuccess AccountState = "CreateAddressSuccess"
	AccountCreateAddressFailed  AccountState = "CreateAddressFailed"
	AccountUnlockFailed         AccountState = "UnlockFailed"
	AccountChangePasswordNeeded AccountState = "ChangePasswordNeeded"
)

// Account is a persisted user identity, independent of whether it currently
// has a live session. SessionID and SessionState are both set or both empty.
type Account struct {
	UserID       string         `json:"user_id"`
	Username     string         `json:"username"`
	State        AccountState   `json:"state"`
	SessionID    string         `json:"session_id,omitempty"`
	SessionState SessionState   `json:"session_state,omitempty"`
	Details      AccountDetails `json:"details"`
}

// AccountDetails carries the derived per-session detail records read together
// with the account. Not stored on the account row itself.
type AccountDetails struct {
	Session           *SessionDetails           `json:"session,omitempty"`
	HumanVerification *HumanVerificationDetails `json:"human_verification,omitempty"`
}

// HasSession reports whether the account is currently bound to a session.
func (a Account) HasSession() bool {
	return a.SessionID != ""
}

// Equal compares two account snapshots field by field, including the derived
// detail records. Used for consecutive-duplicate suppression on event streams.
func (a Account) Equal(other Account) bool {
	if a.UserID != other.UserID ||
		a.Username != other.Username ||
		a.State != other.State ||
		a.SessionID != other.SessionID ||
		a.SessionState != other.SessionState {
		return false
	}
	if !sessionDetailsEqual(a.Details.Session, other.Details.Session) {
		return false
	}
	return humanVerificationEqual(a.Details.HumanVerification, other.Details.HumanVerification)
}

func sessionDetailsEqual(a, b *SessionDetails) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func humanVerificationEqual(a, b *HumanVerificationDetails) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.SessionID != b.SessionID || a.CaptchaVerificationToken != b.CaptchaVerificationToken {
		return false
	}
	if len(a.VerificationMethods) != len(b.VerificationMethods) {
		return false
	}
	for i := range a.VerificationMethods {
		if a.VerificationMethods[i] != b.VerificationMethods[i] {
			return false
		}
	}
	return true
}
