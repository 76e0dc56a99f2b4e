package server

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cardrail/cardrail/bulk"
	"github.com/cardrail/cardrail/card"
	"github.com/cardrail/cardrail/company"
	"github.com/cardrail/cardrail/config"
	cardrailtest "github.com/cardrail/cardrail/internal/testing"
	"github.com/cardrail/cardrail/internal/util"
)

func newTestServer(t *testing.T) (*Server, *sql.DB) {
	t.Helper()

	db := cardrailtest.CreateTestDB(t)
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           util.Ptr(0),
			AllowedOrigins: []string{"http://dashboard.test"},
		},
		Bulk: config.BulkConfig{
			WalletBatchSize:     10,
			EmailBatchSize:      50,
			StuckAfterMinutes:   10,
			InactiveAfterMinutes: 30,
		},
	}
	srv := New(cfg, db, bulk.NewEmitter(), nil, zap.NewNop().Sugar())
	t.Cleanup(func() { srv.cancel() })
	return srv, db
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Routes(), http.MethodGet, "/api/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestCompanyAndCardLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Routes()

	rec := doJSON(t, handler, http.MethodPost, "/api/companies", map[string]string{"name": "Acme Print Works"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var co company.Company
	decodeBody(t, rec, &co)
	assert.Equal(t, "acme-print-works", co.Slug)

	rec = doJSON(t, handler, http.MethodPost, "/api/companies/"+co.ID+"/cards", map[string]string{
		"full_name": "Ada Lovelace",
		"email":     "ada@acme.test",
		"job_title": "Analyst",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var c card.Card
	decodeBody(t, rec, &c)
	assert.NotEmpty(t, c.Code)
	assert.Equal(t, card.WalletStatusNone, c.WalletStatus)

	rec = doJSON(t, handler, http.MethodGet, "/api/companies/"+co.ID+"/cards", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &listing)
	assert.Equal(t, 1, listing.Count)

	rec = doJSON(t, handler, http.MethodGet, "/api/cards/code/"+c.Code, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var byCode card.Card
	decodeBody(t, rec, &byCode)
	assert.Equal(t, c.ID, byCode.ID)

	rec = doJSON(t, handler, http.MethodGet, "/api/cards/code/nosuchcode", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCSVImportEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Routes()

	rec := doJSON(t, handler, http.MethodPost, "/api/companies", map[string]string{"name": "Import Co"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var co company.Company
	decodeBody(t, rec, &co)

	csv := "full_name,email,phone\nAda Lovelace,ada@import.test,555-0100\n,missing-name@import.test,\nGrace Hopper,grace@import.test,\n"
	req := httptest.NewRequest(http.MethodPost, "/api/companies/"+co.ID+"/import", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	out := httptest.NewRecorder()
	handler.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code)

	var result card.ImportResult
	decodeBody(t, out, &result)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Len(t, result.CardIDs, 2)
}

func TestEnqueueAndInspectBulkJob(t *testing.T) {
	srv, db := newTestServer(t)
	handler := srv.Routes()

	co, err := company.New("Bulk Ops Co")
	require.NoError(t, err)
	require.NoError(t, company.NewStore(db).Create(co))

	cards := card.NewStore(db)
	var ids []string
	for _, name := range []string{"Ada", "Grace", "Katherine"} {
		c, err := cards.New(co.ID, name, strings.ToLower(name)+"@bulk.test", "", "")
		require.NoError(t, err)
		require.NoError(t, cards.Create(c))
		ids = append(ids, c.ID)
	}

	rec := doJSON(t, handler, http.MethodPost, "/api/bulk/jobs", enqueueRequest{
		CompanyID: co.ID,
		Kind:      bulk.KindWalletSync,
		CardIDs:   ids,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var job bulk.Job
	decodeBody(t, rec, &job)
	assert.Equal(t, bulk.StatusPending, job.Status)
	assert.Equal(t, 3, job.TotalItems)

	rec = doJSON(t, handler, http.MethodGet, "/api/bulk/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Job        bulk.Job `json:"job"`
		Percentage float64  `json:"percentage"`
	}
	decodeBody(t, rec, &detail)
	assert.Equal(t, job.ID, detail.Job.ID)
	assert.Equal(t, float64(0), detail.Percentage)

	rec = doJSON(t, handler, http.MethodGet, "/api/bulk/jobs/"+job.ID+"/items", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var items struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &items)
	assert.Equal(t, 3, items.Count)

	rec = doJSON(t, handler, http.MethodGet, "/api/bulk/jobs?company_id="+co.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var jobList struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &jobList)
	assert.Equal(t, 1, jobList.Count)

	rec = doJSON(t, handler, http.MethodGet, "/api/bulk/wallet/status?company_id="+co.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]bool
	decodeBody(t, rec, &status)
	assert.True(t, status["has_running_job"])

	rec = doJSON(t, handler, http.MethodGet, "/api/bulk/email/status?company_id="+co.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &status)
	assert.False(t, status["has_running_job"])
}

func TestEnqueueCompanyWideWalletUsesEligibleCards(t *testing.T) {
	srv, db := newTestServer(t)
	handler := srv.Routes()

	co, err := company.New("Eligibility Co")
	require.NoError(t, err)
	require.NoError(t, company.NewStore(db).Create(co))

	cards := card.NewStore(db)

	eligible, err := cards.New(co.ID, "Ada Lovelace", "ada@elig.test", "", "")
	require.NoError(t, err)
	require.NoError(t, cards.Create(eligible))

	noEmail, err := cards.New(co.ID, "Alan Turing", "", "", "")
	require.NoError(t, err)
	require.NoError(t, cards.Create(noEmail))

	synced, err := cards.New(co.ID, "Grace Hopper", "grace@elig.test", "", "")
	require.NoError(t, err)
	require.NoError(t, cards.Create(synced))
	require.NoError(t, cards.UpdateWalletStatus(synced.ID, card.WalletStatusSynced))

	rec := doJSON(t, handler, http.MethodPost, "/api/bulk/jobs", enqueueRequest{
		CompanyID: co.ID,
		Kind:      bulk.KindWalletSync,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var job bulk.Job
	decodeBody(t, rec, &job)
	assert.Equal(t, 1, job.TotalItems, "only the eligible unsynced card is enqueued")
}

func TestEnqueueValidation(t *testing.T) {
	srv, db := newTestServer(t)
	handler := srv.Routes()

	rec := doJSON(t, handler, http.MethodPost, "/api/bulk/jobs", map[string]string{"kind": "wallet_sync"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/bulk/jobs", map[string]string{
		"company_id": "nope", "kind": "teleport",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/api/bulk/jobs", map[string]string{
		"company_id": "nope", "kind": "wallet_sync",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// A company with no eligible cards cannot enqueue a company-wide job
	co, err := company.New("Empty Co")
	require.NoError(t, err)
	require.NoError(t, company.NewStore(db).Create(co))

	rec = doJSON(t, handler, http.MethodPost, "/api/bulk/jobs", map[string]string{
		"company_id": co.ID, "kind": "wallet_sync",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnqueueConflictsWithJobInFlight(t *testing.T) {
	srv, db := newTestServer(t)
	handler := srv.Routes()

	co, err := company.New("Conflict Co")
	require.NoError(t, err)
	require.NoError(t, company.NewStore(db).Create(co))

	cards := card.NewStore(db)
	c, err := cards.New(co.ID, "Ada", "ada@conflict.test", "", "")
	require.NoError(t, err)
	require.NoError(t, cards.Create(c))

	rec := doJSON(t, handler, http.MethodPost, "/api/bulk/jobs", enqueueRequest{
		CompanyID: co.ID, Kind: bulk.KindWalletSync, CardIDs: []string{c.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var job bulk.Job
	decodeBody(t, rec, &job)

	// Simulate the processor holding the job with a fresh heartbeat
	claimed, err := srv.jobs.Claim(job.ID, time.Now(), srv.stuckAfter())
	require.NoError(t, err)
	require.True(t, claimed)

	rec = doJSON(t, handler, http.MethodPost, "/api/bulk/jobs", enqueueRequest{
		CompanyID: co.ID, Kind: bulk.KindEmail, CardIDs: []string{c.ID},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestJobNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Routes(), http.MethodGet, "/api/bulk/jobs/no-such-job", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSHeaders(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://dashboard.test")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "http://dashboard.test", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
