package bulk

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cardrail/cardrail/card"
	"github.com/cardrail/cardrail/company"
)

// seedCompany inserts a company row so job foreign keys resolve
func seedCompany(t *testing.T, db *sql.DB, name string) *company.Company {
	t.Helper()

	c, err := company.New(name)
	if err != nil {
		t.Fatalf("failed to build company: %v", err)
	}
	if err := company.NewStore(db).Create(c); err != nil {
		t.Fatalf("failed to seed company: %v", err)
	}
	return c
}

// seedCard inserts a card for the company and returns it
func seedCard(t *testing.T, db *sql.DB, companyID, fullName, email string) *card.Card {
	t.Helper()

	cards := card.NewStore(db)
	c, err := cards.New(companyID, fullName, email, "", "")
	if err != nil {
		t.Fatalf("failed to build card: %v", err)
	}
	if err := cards.Create(c); err != nil {
		t.Fatalf("failed to seed card: %v", err)
	}
	return c
}

// seedJob creates and persists a pending job with n synthetic card ids
func seedJob(t *testing.T, store *Store, companyID string, kind KindName, n int) *Job {
	t.Helper()

	cardIDs := make([]string, n)
	for i := range cardIDs {
		cardIDs[i] = uuid.NewString()
	}
	job, items, err := NewJob(companyID, kind, cardIDs)
	if err != nil {
		t.Fatalf("failed to build job: %v", err)
	}
	if err := store.CreateJob(job, items); err != nil {
		t.Fatalf("failed to seed job: %v", err)
	}
	return job
}

// seedJobForCards creates and persists a pending job over real cards
func seedJobForCards(t *testing.T, store *Store, companyID string, kind KindName, cards []*card.Card) *Job {
	t.Helper()

	cardIDs := make([]string, len(cards))
	for i, c := range cards {
		cardIDs[i] = c.ID
	}
	job, items, err := NewJob(companyID, kind, cardIDs)
	if err != nil {
		t.Fatalf("failed to build job: %v", err)
	}
	if err := store.CreateJob(job, items); err != nil {
		t.Fatalf("failed to seed job: %v", err)
	}
	return job
}

// testClock is a controllable time source for processor tests
type testClock struct {
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
