package card

import (
	"encoding/csv"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/cardrail/cardrail/errors"
)

// ImportResult summarizes a CSV onboarding run
type ImportResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	CardIDs []string `json:"card_ids"`
	Errors  []string `json:"errors,omitempty"`
}

// ImportCSV reads an employee CSV and creates one card per row for the given
// company. Expected header: full_name,email,phone,job_title (phone and
// job_title optional). Rows that fail validation are skipped and reported,
// never aborting the whole import.
func (s *Store) ImportCSV(companyID string, r io.Reader, log *zap.SugaredLogger) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CSV header")
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	line := 1
	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, errors.Wrapf(err, "line %d", line).Error())
			continue
		}

		c, err := s.New(companyID,
			field(record, cols, "full_name"),
			field(record, cols, "email"),
			field(record, cols, "phone"),
			field(record, cols, "job_title"),
		)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, errors.Wrapf(err, "line %d", line).Error())
			continue
		}

		if err := s.Create(c); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, errors.Wrapf(err, "line %d", line).Error())
			continue
		}

		result.Created++
		result.CardIDs = append(result.CardIDs, c.ID)
	}

	if log != nil {
		log.Infow("CSV import complete",
			"company_id", companyID,
			"created", result.Created,
			"skipped", result.Skipped,
		)
	}
	return result, nil
}

// mapColumns resolves header names to indices. full_name and email are
// required columns.
func mapColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"full_name", "email"} {
		if _, ok := cols[required]; !ok {
			return nil, errors.Newf("CSV missing required column %q", required)
		}
	}
	return cols, nil
}

func field(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
