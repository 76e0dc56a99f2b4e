package server

import (
	"net/http"
	"time"

	"github.com/cardrail/cardrail/bulk"
	"github.com/cardrail/cardrail/logger"
)

const (
	defaultJobLimit = 50
	maxJobLimit     = 200
)

// handleBulkJobs handles /api/bulk/jobs
// GET: list a company's jobs, POST: enqueue a new job
func (s *Server) handleBulkJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListJobs(w, r)
	case http.MethodPost:
		s.handleEnqueueJob(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("company_id")
	if companyID == "" {
		writeError(w, http.StatusBadRequest, "Missing company_id")
		return
	}

	var kind *bulk.KindName
	if raw := r.URL.Query().Get("kind"); raw != "" {
		if !bulk.IsValidKind(raw) {
			writeError(w, http.StatusBadRequest, "Unknown job kind")
			return
		}
		k := bulk.KindName(raw)
		kind = &k
	}

	limit := parseIntQueryParam(r, "limit", defaultJobLimit, 1, maxJobLimit)

	jobs, err := s.jobs.ListJobs(companyID, kind, limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// enqueueRequest is the POST /api/bulk/jobs body. Empty card_ids means
// "the whole company": eligible cards for wallet jobs, emailable cards
// for email jobs.
type enqueueRequest struct {
	CompanyID string        `json:"company_id"`
	Kind      bulk.KindName `json:"kind"`
	CardIDs   []string      `json:"card_ids,omitempty"`
}

func (s *Server) handleEnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if readJSON(w, r, &req) != nil {
		return
	}
	if req.CompanyID == "" {
		writeError(w, http.StatusBadRequest, "Missing company_id")
		return
	}
	if !bulk.IsValidKind(string(req.Kind)) {
		writeError(w, http.StatusBadRequest, "Unknown job kind")
		return
	}

	if _, err := s.companies.Get(req.CompanyID); err != nil {
		writeStoreError(w, err)
		return
	}

	cardIDs := req.CardIDs
	if len(cardIDs) == 0 {
		var err error
		cardIDs, err = s.companyCardIDs(req.CompanyID, req.Kind)
		if err != nil {
			writeStoreError(w, err)
			return
		}
	}
	if len(cardIDs) == 0 {
		writeError(w, http.StatusBadRequest, "No cards to process")
		return
	}

	job, err := bulk.Enqueue(s.jobs, req.CompanyID, req.Kind, cardIDs,
		time.Now(), s.stuckAfter())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.log.Infow("bulk job enqueued",
		logger.FieldJobID, job.ID,
		logger.FieldCompanyID, job.CompanyID,
		logger.FieldKind, job.Kind,
		logger.FieldTotal, job.TotalItems,
	)
	writeJSON(w, http.StatusCreated, job)
}

// companyCardIDs resolves the default card set for a company-wide job
func (s *Server) companyCardIDs(companyID string, kind bulk.KindName) ([]string, error) {
	if kind == bulk.KindWalletSync {
		cards, err := s.cards.ListEligibleForSync(companyID)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(cards))
		for _, c := range cards {
			ids = append(ids, c.ID)
		}
		return ids, nil
	}

	cards, err := s.cards.ListByCompany(companyID, maxCardLimit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(cards))
	for _, c := range cards {
		if c.Email != "" {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

// handleBulkJob handles /api/bulk/jobs/{id} and /api/bulk/jobs/{id}/items
func (s *Server) handleBulkJob(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	parts := extractPathParts(r.URL.Path, "/api/bulk/jobs/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing job ID")
		return
	}
	jobID := parts[0]

	if len(parts) > 1 && parts[1] == "items" {
		s.handleJobItems(w, jobID)
		return
	}

	job, err := s.jobs.GetJob(jobID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job":        job,
		"percentage": job.Percentage(),
	})
}

func (s *Server) handleJobItems(w http.ResponseWriter, jobID string) {
	if _, err := s.jobs.GetJob(jobID); err != nil {
		writeStoreError(w, err)
		return
	}

	items, err := s.jobs.ListItems(jobID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// handleKindStatus backs the dashboard polling endpoints
// (/api/bulk/wallet/status and /api/bulk/email/status)
func (s *Server) handleKindStatus(kind bulk.KindName) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		companyID := r.URL.Query().Get("company_id")
		if companyID == "" {
			writeError(w, http.StatusBadRequest, "Missing company_id")
			return
		}

		active, err := s.jobs.HasActiveJob(companyID, kind)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"has_running_job": active})
	}
}

func (s *Server) stuckAfter() time.Duration {
	return time.Duration(s.cfg.Bulk.StuckAfterMinutes) * time.Minute
}
