package domain

import "time"

// AccountMetadata marks an account as eligible to be the primary account for
// a product. The account with the greatest PrimaryAt among eligible accounts
// for a product is the primary one.
//
// A row exists for (UserID, Product) iff the account's current state is
// Ready; every other state deletes it transactionally as part of the state
// update.
type AccountMetadata struct {
	UserID    string
	Product   string
	PrimaryAt time.Time
}
