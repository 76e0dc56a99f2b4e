package card

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardrail/cardrail/company"
	cardrailtest "github.com/cardrail/cardrail/internal/testing"
)

func seedCompany(t *testing.T, store *company.Store, name string) *company.Company {
	t.Helper()

	co, err := company.New(name)
	require.NoError(t, err)
	require.NoError(t, store.Create(co))
	return co
}

func TestNewCardGeneratesUniqueCode(t *testing.T) {
	db := cardrailtest.CreateTestDB(t)
	co := seedCompany(t, company.NewStore(db), "Code Mill")
	store := NewStore(db)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		c, err := store.New(co.ID, "Holder", "holder@codes.test", "", "")
		require.NoError(t, err)
		require.NoError(t, store.Create(c))

		assert.Len(t, c.Code, codeLength)
		assert.False(t, seen[c.Code], "share codes must be unique")
		seen[c.Code] = true

		// No ambiguous characters in the alphabet
		assert.NotContains(t, c.Code, "0")
		assert.NotContains(t, c.Code, "O")
		assert.NotContains(t, c.Code, "1")
		assert.NotContains(t, c.Code, "l")
		assert.NotContains(t, c.Code, "I")
	}
}

func TestNewCardRequiresFullName(t *testing.T) {
	db := cardrailtest.CreateTestDB(t)
	store := NewStore(db)

	_, err := store.New("co-1", "", "ada@example.test", "", "")
	assert.Error(t, err)
}

func TestGetByCode(t *testing.T) {
	db := cardrailtest.CreateTestDB(t)
	co := seedCompany(t, company.NewStore(db), "Lookup Co")
	store := NewStore(db)

	c, err := store.New(co.ID, "Ada Lovelace", "ada@lookup.test", "", "Analyst")
	require.NoError(t, err)
	require.NoError(t, store.Create(c))

	found, err := store.GetByCode(c.Code)
	require.NoError(t, err)
	assert.Equal(t, c.ID, found.ID)
	assert.Equal(t, "Analyst", found.JobTitle)

	_, err = store.GetByCode("nosuch")
	assert.Error(t, err)
}

func TestListEligibleForSyncExcludesSyncedAndIncomplete(t *testing.T) {
	db := cardrailtest.CreateTestDB(t)
	co := seedCompany(t, company.NewStore(db), "Eligible Co")
	store := NewStore(db)

	mkCard := func(name, email string) *Card {
		c, err := store.New(co.ID, name, email, "", "")
		require.NoError(t, err)
		require.NoError(t, store.Create(c))
		return c
	}

	eligible := mkCard("Ada Lovelace", "ada@elig.test")
	mkCard("No Email", "")
	synced := mkCard("Grace Hopper", "grace@elig.test")
	require.NoError(t, store.UpdateWalletStatus(synced.ID, WalletStatusSynced))
	failed := mkCard("Retry Me", "retry@elig.test")
	require.NoError(t, store.UpdateWalletStatus(failed.ID, WalletStatusFailed))

	cards, err := store.ListEligibleForSync(co.ID)
	require.NoError(t, err)
	require.Len(t, cards, 2)

	ids := []string{cards[0].ID, cards[1].ID}
	assert.Contains(t, ids, eligible.ID)
	assert.Contains(t, ids, failed.ID, "failed builds stay eligible for retry")
}

func TestSetSyncingIsConditional(t *testing.T) {
	db := cardrailtest.CreateTestDB(t)
	co := seedCompany(t, company.NewStore(db), "Flag Co")
	store := NewStore(db)

	c, err := store.New(co.ID, "Ada Lovelace", "ada@flag.test", "", "")
	require.NoError(t, err)
	require.NoError(t, store.Create(c))

	flipped, err := store.SetSyncing(c.ID, true)
	require.NoError(t, err)
	assert.True(t, flipped)

	// A second worker trying the same transition loses
	flipped, err = store.SetSyncing(c.ID, true)
	require.NoError(t, err)
	assert.False(t, flipped)

	flipped, err = store.SetSyncing(c.ID, false)
	require.NoError(t, err)
	assert.True(t, flipped)
}

func TestUpdateWalletStatus(t *testing.T) {
	db := cardrailtest.CreateTestDB(t)
	co := seedCompany(t, company.NewStore(db), "Status Co")
	store := NewStore(db)

	c, err := store.New(co.ID, "Ada Lovelace", "ada@status.test", "", "")
	require.NoError(t, err)
	require.NoError(t, store.Create(c))

	require.NoError(t, store.UpdateWalletStatus(c.ID, WalletStatusSynced))
	loaded, err := store.Get(c.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsSynced())

	err = store.UpdateWalletStatus("no-such-card", WalletStatusSynced)
	assert.Error(t, err)
}

func TestListByCompanyScopesToTenant(t *testing.T) {
	db := cardrailtest.CreateTestDB(t)
	companies := company.NewStore(db)
	first := seedCompany(t, companies, "First Tenant")
	second := seedCompany(t, companies, "Second Tenant")
	store := NewStore(db)

	for i := 0; i < 3; i++ {
		c, err := store.New(first.ID, "Holder "+strings.Repeat("I", i+1), "h@first.test", "", "")
		require.NoError(t, err)
		require.NoError(t, store.Create(c))
	}
	c, err := store.New(second.ID, "Other Holder", "o@second.test", "", "")
	require.NoError(t, err)
	require.NoError(t, store.Create(c))

	cards, err := store.ListByCompany(first.ID, 100)
	require.NoError(t, err)
	assert.Len(t, cards, 3)
	for _, c := range cards {
		assert.Equal(t, first.ID, c.CompanyID)
	}
}
