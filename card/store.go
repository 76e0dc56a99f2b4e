package card

import (
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/cardrail/cardrail/errors"
)

const (
	// codeAlphabet deliberately omits ambiguous characters (0/O, 1/I/l)
	codeAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"
	codeLength   = 8

	// maxCodeAttempts bounds the uniqueness retry loop
	maxCodeAttempts = 5
)

// Store handles persistence of cards
type Store struct {
	db *sql.DB
}

// NewStore creates a new card store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// New creates an unsaved card with a generated id and a unique share code
func (s *Store) New(companyID, fullName, email, phone, jobTitle string) (*Card, error) {
	if fullName == "" {
		return nil, errors.New("card full_name cannot be empty")
	}

	code, err := s.generateCode()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Card{
		ID:           uuid.NewString(),
		CompanyID:    companyID,
		Code:         code,
		FullName:     fullName,
		Email:        email,
		Phone:        phone,
		JobTitle:     jobTitle,
		WalletStatus: WalletStatusNone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// generateCode produces a random share code, retrying on the rare collision
func (s *Store) generateCode() (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := randomCode(codeLength)
		if err != nil {
			return "", errors.Wrap(err, "failed to generate card code")
		}

		var exists bool
		err = s.db.QueryRow("SELECT EXISTS(SELECT 1 FROM cards WHERE code = ?)", code).Scan(&exists)
		if err != nil {
			return "", errors.Wrap(err, "failed to check card code uniqueness")
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.Newf("failed to generate unique card code after %d attempts", maxCodeAttempts)
}

func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// Create inserts a new card
func (s *Store) Create(c *Card) error {
	query := `
		INSERT INTO cards (
			id, company_id, code, full_name, email, phone, job_title,
			wallet_status, is_syncing, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		c.ID, c.CompanyID, c.Code, c.FullName, c.Email, c.Phone, c.JobTitle,
		c.WalletStatus, c.IsSyncing, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create card")
	}
	return nil
}

// Get retrieves a card by ID
func (s *Store) Get(id string) (*Card, error) {
	query := `SELECT ` + cardSelectColumns + ` FROM cards WHERE id = ?`

	var c Card
	err := s.db.QueryRow(query, id).Scan(cardScanTargets(&c)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("card %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get card")
	}
	return &c, nil
}

// GetByCode retrieves a card by its share code
func (s *Store) GetByCode(code string) (*Card, error) {
	query := `SELECT ` + cardSelectColumns + ` FROM cards WHERE code = ?`

	var c Card
	err := s.db.QueryRow(query, code).Scan(cardScanTargets(&c)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("card code %s", code)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get card by code")
	}
	return &c, nil
}

// ListByCompany returns all cards for a company ordered by creation time
func (s *Store) ListByCompany(companyID string, limit int) ([]*Card, error) {
	query := `SELECT ` + cardSelectColumns + `
		FROM cards WHERE company_id = ? ORDER BY created_at, id LIMIT ?`

	rows, err := s.db.Query(query, companyID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list cards")
	}
	defer rows.Close()

	return scanCards(rows)
}

// ListEligibleForSync returns the company's cards that currently pass the
// eligibility rules and have no pass yet. Used when enqueuing a company-wide
// bulk wallet job.
func (s *Store) ListEligibleForSync(companyID string) ([]*Card, error) {
	query := `SELECT ` + cardSelectColumns + `
		FROM cards
		WHERE company_id = ?
		  AND wallet_status != ?
		  AND full_name != ''
		  AND email != ''
		ORDER BY created_at, id`

	rows, err := s.db.Query(query, companyID, WalletStatusSynced)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sync-eligible cards")
	}
	defer rows.Close()

	return scanCards(rows)
}

// SetSyncing flips the is_syncing flag only when it changes, reporting whether
// this caller performed the transition. The conditional update keeps two
// workers from both believing they own the card.
func (s *Store) SetSyncing(id string, syncing bool) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE cards SET is_syncing = ?, updated_at = ? WHERE id = ? AND is_syncing = ?`,
		syncing, time.Now(), id, !syncing,
	)
	if err != nil {
		return false, errors.Wrapf(err, "failed to set is_syncing on card %s", id)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}
	return rows == 1, nil
}

// UpdateWalletStatus records the outcome of a pass build
func (s *Store) UpdateWalletStatus(id string, status string) error {
	res, err := s.db.Exec(
		`UPDATE cards SET wallet_status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update wallet status for card %s", id)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.NewNotFoundError("card %s", id)
	}
	return nil
}

const cardSelectColumns = `id, company_id, code, full_name, email, phone, job_title,
	wallet_status, is_syncing, created_at, updated_at`

func cardScanTargets(c *Card) []interface{} {
	return []interface{}{
		&c.ID, &c.CompanyID, &c.Code, &c.FullName, &c.Email, &c.Phone, &c.JobTitle,
		&c.WalletStatus, &c.IsSyncing, &c.CreatedAt, &c.UpdatedAt,
	}
}

func scanCards(rows *sql.Rows) ([]*Card, error) {
	var cards []*Card
	for rows.Next() {
		var c Card
		if err := rows.Scan(cardScanTargets(&c)...); err != nil {
			return nil, errors.Wrap(err, "failed to scan card")
		}
		cards = append(cards, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating cards")
	}
	return cards, nil
}
