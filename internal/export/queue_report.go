// Package export renders the sync queue as an xlsx workbook for support staff.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"flightbook/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	sheetItems   = "Queue"
	sheetSummary = "Summary"
)

var itemHeaders = []string{"ID", "Type", "Action", "Status", "Retries", "Queued At", "Updated At", "Expires At", "Last Error", "Data"}

// QueueReport builds a workbook with one row per item and a per-status summary.
func QueueReport(items []*models.QueueItem) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", sheetItems); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeItems(f, items); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(sheetSummary); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummary(f, items); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// WriteQueueReport streams the report to w.
func WriteQueueReport(w io.Writer, items []*models.QueueItem) error {
	f, err := QueueReport(items)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// SaveQueueReport writes the report into dir and returns the file path.
func SaveQueueReport(dir string, items []*models.QueueItem, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	f, err := QueueReport(items)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, fmt.Sprintf("sync_queue_%s.xlsx", now.UTC().Format("20060102_150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return path, nil
}

func writeItems(f *excelize.File, items []*models.QueueItem) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	for i, h := range itemHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetItems, cell, h); err != nil {
			return err
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(itemHeaders), 1)
	if err := f.SetCellStyle(sheetItems, "A1", lastHeader, headerStyle); err != nil {
		return err
	}

	for r, it := range items {
		expires := ""
		if it.ExpiresAt != nil {
			expires = formatTime(*it.ExpiresAt)
		}
		row := []interface{}{
			it.ID,
			string(it.Type),
			string(it.Action),
			string(it.Status),
			it.RetryCount,
			formatTime(it.Timestamp),
			formatTime(it.UpdatedAt),
			expires,
			it.LastError,
			string(it.Data),
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheetItems, cell, &row); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(sheetItems, "A", "A", 38)
	_ = f.SetColWidth(sheetItems, "F", "H", 22)
	_ = f.SetColWidth(sheetItems, "I", "J", 40)
	return nil
}

func writeSummary(f *excelize.File, items []*models.QueueItem) error {
	counts := map[models.Status]int{}
	for _, it := range items {
		counts[it.Status]++
	}

	rows := [][]interface{}{
		{"Status", "Items"},
		{string(models.StatusPending), counts[models.StatusPending]},
		{string(models.StatusProcessing), counts[models.StatusProcessing]},
		{string(models.StatusCompleted), counts[models.StatusCompleted]},
		{string(models.StatusFailed), counts[models.StatusFailed]},
		{"total", len(items)},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
