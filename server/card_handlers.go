package server

import (
	"net/http"

	"github.com/cardrail/cardrail/company"
	"github.com/cardrail/cardrail/logger"
)

const (
	defaultCardLimit = 100
	maxCardLimit     = 10000

	defaultCompanyLimit = 100
)

// handleCompanies handles /api/companies
// GET: list companies, POST: create a company
func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		companies, err := s.companies.List(defaultCompanyLimit)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"companies": companies,
			"count":     len(companies),
		})
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if readJSON(w, r, &req) != nil {
			return
		}
		c, err := company.New(req.Name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.companies.Create(c); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleCompany handles /api/companies/{id} and its sub-resources:
// /cards (list and create) and /import (CSV onboarding)
func (s *Server) handleCompany(w http.ResponseWriter, r *http.Request) {
	parts := extractPathParts(r.URL.Path, "/api/companies/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing company ID")
		return
	}
	companyID := parts[0]

	if len(parts) > 1 {
		switch parts[1] {
		case "cards":
			s.handleCompanyCards(w, r, companyID)
		case "import":
			s.handleCompanyImport(w, r, companyID)
		default:
			writeError(w, http.StatusNotFound, "Unknown resource")
		}
		return
	}

	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	c, err := s.companies.Get(companyID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCompanyCards(w http.ResponseWriter, r *http.Request, companyID string) {
	if _, err := s.companies.Get(companyID); err != nil {
		writeStoreError(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		limit := parseIntQueryParam(r, "limit", defaultCardLimit, 1, maxCardLimit)
		cards, err := s.cards.ListByCompany(companyID, limit)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"cards": cards,
			"count": len(cards),
		})
	case http.MethodPost:
		var req struct {
			FullName string `json:"full_name"`
			Email    string `json:"email"`
			Phone    string `json:"phone"`
			JobTitle string `json:"job_title"`
		}
		if readJSON(w, r, &req) != nil {
			return
		}
		c, err := s.cards.New(companyID, req.FullName, req.Email, req.Phone, req.JobTitle)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.cards.Create(c); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleCompanyImport accepts a CSV body and onboards one card per row
func (s *Server) handleCompanyImport(w http.ResponseWriter, r *http.Request, companyID string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if _, err := s.companies.Get(companyID); err != nil {
		writeStoreError(w, err)
		return
	}

	result, err := s.cards.ImportCSV(companyID, r.Body, s.log)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Infow("CSV onboarding finished",
		logger.FieldCompanyID, companyID,
		logger.FieldCount, result.Created,
	)
	writeJSON(w, http.StatusOK, result)
}

// handleCard handles /api/cards/{id} and /api/cards/code/{code}
func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	parts := extractPathParts(r.URL.Path, "/api/cards/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing card ID")
		return
	}

	if parts[0] == "code" {
		if len(parts) < 2 || parts[1] == "" {
			writeError(w, http.StatusBadRequest, "Missing card code")
			return
		}
		c, err := s.cards.GetByCode(parts[1])
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
		return
	}

	c, err := s.cards.Get(parts[0])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
