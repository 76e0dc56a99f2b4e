// Package company provides the tenant entity the bulk job core is scoped by.
package company

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cardrail/cardrail/errors"
)

// Company is one tenant. Every card and every bulk job belongs to exactly
// one company.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a company with a generated id and a slug derived from the name
func New(name string) (*Company, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("company name cannot be empty")
	}

	now := time.Now()
	return &Company{
		ID:        uuid.NewString(),
		Name:      name,
		Slug:      slugify(name),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Store handles persistence of companies
type Store struct {
	db *sql.DB
}

// NewStore creates a new company store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new company
func (s *Store) Create(c *Company) error {
	query := `
		INSERT INTO companies (id, name, slug, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, c.ID, c.Name, c.Slug, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "failed to create company")
	}
	return nil
}

// Get retrieves a company by ID
func (s *Store) Get(id string) (*Company, error) {
	query := `SELECT id, name, slug, created_at, updated_at FROM companies WHERE id = ?`

	var c Company
	err := s.db.QueryRow(query, id).Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("company %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get company")
	}
	return &c, nil
}

// GetBySlug retrieves a company by its URL slug
func (s *Store) GetBySlug(slug string) (*Company, error) {
	query := `SELECT id, name, slug, created_at, updated_at FROM companies WHERE slug = ?`

	var c Company
	err := s.db.QueryRow(query, slug).Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("company slug %s", slug)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get company by slug")
	}
	return &c, nil
}

// List returns all companies ordered by name
func (s *Store) List(limit int) ([]*Company, error) {
	rows, err := s.db.Query(
		`SELECT id, name, slug, created_at, updated_at FROM companies ORDER BY name LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list companies")
	}
	defer rows.Close()

	var companies []*Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan company")
		}
		companies = append(companies, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating companies")
	}
	return companies, nil
}
