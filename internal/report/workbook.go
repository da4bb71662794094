// Package report renders scans and validation reports as XLSX workbooks.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"taxarchive/internal/archive"
	"taxarchive/internal/filename"
)

// Sheet names.
const (
	ManifestSheet = "Manifest"
	IssuesSheet   = "Issues"
)

var manifestHeaders = []string{
	"Path", "Year", "Category", "Size", "SHA-256", "Modified",
	"Date", "Owner", "Intent", "Doc Category", "Source", "Amount", "Description", "Status",
}

var issueHeaders = []string{"Level", "Path", "Message"}

// Workbook builds the manifest and issues sheets for one scan.
type Workbook struct {
	f *excelize.File
}

// New builds a workbook from a scan's records and its validation report.
// scan may be nil when the records were not persisted.
func New(scan *archive.Scan, records []archive.FileRecord, vr archive.ValidationReport) (*Workbook, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", ManifestSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming manifest sheet: %w", err)
	}
	if _, err := f.NewSheet(IssuesSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("creating issues sheet: %w", err)
	}

	wb := &Workbook{f: f}
	if err := wb.writeManifest(records); err != nil {
		f.Close()
		return nil, err
	}
	if err := wb.writeIssues(vr); err != nil {
		f.Close()
		return nil, err
	}
	if scan != nil {
		err := f.SetDocProps(&excelize.DocProperties{
			Title:       "Tax archive manifest",
			Identifier:  scan.ID,
			Description: fmt.Sprintf("%s, %d files", scan.Root, scan.TotalFiles),
			Created:     scan.StartedAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("setting document properties: %w", err)
		}
	}
	return wb, nil
}

func (wb *Workbook) header(sheet string, headers []string) error {
	style, err := wb.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := wb.f.SetSheetRow(sheet, "A1", &row); err != nil {
		return fmt.Errorf("writing %s header: %w", sheet, err)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := wb.f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("styling %s header: %w", sheet, err)
	}
	return wb.f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func (wb *Workbook) writeManifest(records []archive.FileRecord) error {
	if err := wb.header(ManifestSheet, manifestHeaders); err != nil {
		return err
	}
	for i, r := range records {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := manifestRow(r)
		if err := wb.f.SetSheetRow(ManifestSheet, cell, &row); err != nil {
			return fmt.Errorf("writing manifest row %s: %w", r.Path, err)
		}
	}

	_ = wb.f.SetColWidth(ManifestSheet, "A", "A", 60)
	_ = wb.f.SetColWidth(ManifestSheet, "C", "C", 20)
	_ = wb.f.SetColWidth(ManifestSheet, "E", "E", 66)
	_ = wb.f.SetColWidth(ManifestSheet, "F", "G", 20)
	_ = wb.f.SetColWidth(ManifestSheet, "M", "M", 40)
	return nil
}

// manifestRow lays out one record; the filename columns stay empty for
// names that do not follow the naming schema.
func manifestRow(r archive.FileRecord) []any {
	row := []any{
		r.Path,
		nullable(r.Year.Valid, r.Year.Int32),
		nullable(r.Category.Valid, r.Category.String),
		r.SizeBytes,
		nullable(r.ContentHash.Valid, r.ContentHash.String),
		r.ModTime.UTC().Format(time.RFC3339),
	}

	p, ok := filename.Parse(r.Base())
	if !ok {
		return append(row, "", "", "", "", "", "", "", "")
	}
	amount := ""
	if p.Amount.Valid {
		amount = p.Amount.Decimal.StringFixed(2)
	}
	return append(row,
		p.Date.Format(filename.DateLayout),
		string(p.Owner),
		string(p.Intent),
		p.Category,
		p.Source,
		amount,
		p.Description,
		string(p.Status),
	)
}

func nullable[T any](valid bool, v T) any {
	if !valid {
		return ""
	}
	return v
}

func (wb *Workbook) writeIssues(vr archive.ValidationReport) error {
	if err := wb.header(IssuesSheet, issueHeaders); err != nil {
		return err
	}
	for i, issue := range vr.Issues {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{string(issue.Level), issue.Path, issue.Message}
		if err := wb.f.SetSheetRow(IssuesSheet, cell, &row); err != nil {
			return fmt.Errorf("writing issue row %d: %w", i+1, err)
		}
	}
	_ = wb.f.SetColWidth(IssuesSheet, "B", "B", 60)
	_ = wb.f.SetColWidth(IssuesSheet, "C", "C", 60)
	return nil
}

// WriteTo writes the workbook as XLSX.
func (wb *Workbook) WriteTo(w io.Writer) (int64, error) {
	n, err := wb.f.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("writing workbook: %w", err)
	}
	return n, nil
}

// Save writes the workbook to path, creating parent directories.
func (wb *Workbook) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	if err := wb.f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

// Close releases the workbook's resources.
func (wb *Workbook) Close() error {
	return wb.f.Close()
}
