// Package report renders a transfer run's outcome as an Excel workbook: a
// Summary sheet with per-type counts and a Records sheet with one row per
// transferred entity.
package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/qbcopy-dev/qbcopy/internal/model"
)

const (
	summarySheet = "Summary"
	recordsSheet = "Records"
)

// Write saves the workbook at path, overwriting any existing file.
func Write(path string, records []model.TransferRecord, summaries []model.Summary, ranAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("renaming summary sheet: %w", err)
	}
	if _, err := f.NewSheet(recordsSheet); err != nil {
		return fmt.Errorf("adding records sheet: %w", err)
	}

	if err := writeSummary(f, summaries, ranAt); err != nil {
		return err
	}
	if err := writeRecords(f, records); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}

func writeSummary(f *excelize.File, summaries []model.Summary, ranAt time.Time) error {
	rows := [][]any{
		{"Run completed", ranAt.Format(time.RFC3339)},
		nil,
		{"Entity", "Created", "Already Exists", "Failed", "Total"},
	}

	var total model.Summary
	for _, s := range summaries {
		rows = append(rows, []any{string(s.EntityType), s.Created, s.AlreadyExists, s.Failed, s.Total()})
		total.Created += s.Created
		total.AlreadyExists += s.AlreadyExists
		total.Failed += s.Failed
	}
	rows = append(rows, []any{"All", total.Created, total.AlreadyExists, total.Failed, total.Total()})

	return writeRows(f, summarySheet, rows)
}

func writeRecords(f *excelize.File, records []model.TransferRecord) error {
	rows := [][]any{
		{"Entity", "Source ID", "Name", "Status", "Target ID", "Error"},
	}
	for _, rec := range records {
		rows = append(rows, []any{
			string(rec.EntityType), rec.SourceID, rec.Name, string(rec.Status), rec.TargetID, rec.Err,
		})
	}
	return writeRows(f, recordsSheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if row == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
