// Package export writes review workbooks for extracted incidents and
// quarantined articles.
package export

import (
	"context"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"blotter/store"
)

const (
	incidentsSheet  = "Incidents"
	quarantineSheet = "Quarantine"
)

var incidentHeader = []string{
	"ID", "Source", "Reported Date", "Incident Date", "Accused Name",
	"Age", "Location", "Charges", "Details", "Legal Actions", "Structured",
}

var quarantineHeader = []string{"ID", "Article ID", "URL", "Quarantined At"}

// Exporter reads from the store and writes review workbooks.
type Exporter struct {
	store *store.Store
}

// New returns an Exporter backed by the given store.
func New(s *store.Store) *Exporter {
	return &Exporter{store: s}
}

// WriteWorkbook writes all incidents and the quarantine set to an XLSX
// file at path, one sheet for each.
func (e *Exporter) WriteWorkbook(ctx context.Context, path string) error {
	incidents, err := e.store.ListIncidents(ctx)
	if err != nil {
		return fmt.Errorf("listing incidents: %w", err)
	}
	quarantined, err := e.store.ListQuarantined(ctx)
	if err != nil {
		return fmt.Errorf("listing quarantined articles: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", incidentsSheet)
	if _, err := f.NewSheet(quarantineSheet); err != nil {
		return fmt.Errorf("creating quarantine sheet: %w", err)
	}

	if err := writeRow(f, incidentsSheet, 1, incidentHeader); err != nil {
		return err
	}
	for i, inc := range incidents {
		row := []string{
			strconv.FormatInt(inc.ID, 10),
			inc.Source,
			inc.ReportedDate,
			inc.IncidentDate,
			inc.Name,
			inc.Age,
			inc.Location,
			inc.Charges,
			inc.Details,
			inc.LegalActions,
			strconv.FormatBool(inc.Structured),
		}
		if err := writeRow(f, incidentsSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := writeRow(f, quarantineSheet, 1, quarantineHeader); err != nil {
		return err
	}
	for i, q := range quarantined {
		row := []string{
			strconv.FormatInt(q.ID, 10),
			strconv.FormatInt(q.ArticleID, 10),
			q.URL,
			q.CreatedAt,
		}
		if err := writeRow(f, quarantineSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}
