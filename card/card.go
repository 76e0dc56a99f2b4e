// Package card provides the digital business card entity and its data access.
//
// The bulk job core consumes cards through two contracts: SyncEligibility
// (re-checked at item-processing time, not just at enqueue time) and
// WalletStatus (so already-synced cards are never double-built).
package card

import (
	"time"
)

// WalletStatus values for a card's pass distribution state
const (
	WalletStatusNone   = "none"   // no pass built yet
	WalletStatusSynced = "synced" // pass built and delivered to the wallet provider
	WalletStatusFailed = "failed" // last build attempt failed
)

// Card represents one employee's digital business card
type Card struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	Code         string    `json:"code"` // short share code embedded in the NFC tag / QR link
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	JobTitle     string    `json:"job_title"`
	WalletStatus string    `json:"wallet_status"`
	IsSyncing    bool      `json:"is_syncing"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Eligibility reports whether a card can be synced to a wallet pass and,
// if not, which fields are missing.
type Eligibility struct {
	Eligible      bool     `json:"eligible"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

// SyncEligibility checks the business rules for wallet pass creation.
// A pass needs at least a holder name and a contact email. Eligibility can
// change between enqueue and processing time, so the bulk processor calls
// this again per item.
func (c *Card) SyncEligibility() Eligibility {
	var missing []string
	if c.FullName == "" {
		missing = append(missing, "full_name")
	}
	if c.Email == "" {
		missing = append(missing, "email")
	}
	return Eligibility{
		Eligible:      len(missing) == 0,
		MissingFields: missing,
	}
}

// IsSynced reports whether the card already has a wallet pass
func (c *Card) IsSynced() bool {
	return c.WalletStatus == WalletStatusSynced
}
