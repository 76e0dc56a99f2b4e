package bulk

import (
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardrail/cardrail/errors"
)

// These tests drive the store against a mocked connection to cover the
// failure paths an in-memory SQLite database cannot produce.

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestClaimWrapsExecError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE bulk_jobs").
		WillReturnError(errors.New("database is locked"))

	claimed, err := store.Claim("job-1", time.Now(), 10*time.Minute)
	assert.False(t, claimed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to claim job job-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNextEligibleWrapsQueryError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM bulk_jobs").
		WillReturnError(errors.New("disk I/O error"))

	job, err := store.NextEligible(KindEmail, time.Now(), 10*time.Minute)
	assert.Nil(t, job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to select next eligible job")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRollupWrapsCountError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnError(errors.New("disk I/O error"))

	job, err := store.Rollup("job-1", time.Now())
	assert.Nil(t, job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to count terminal items")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateJobRollsBackOnItemFailure(t *testing.T) {
	store, mock := newMockStore(t)

	job, items, err := NewJob("co-1", KindEmail, []string{"card-1", "card-2"})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bulk_jobs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectPrepare("INSERT INTO bulk_job_items").
		ExpectExec().
		WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	err = store.CreateJob(job, items)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create item for card card-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateJobRejectsMismatchedTotals(t *testing.T) {
	store, _ := newMockStore(t)

	job, items, err := NewJob("co-1", KindEmail, []string{"card-1", "card-2"})
	require.NoError(t, err)

	job.TotalItems = 5
	err = store.CreateJob(job, items)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match item count")
}
