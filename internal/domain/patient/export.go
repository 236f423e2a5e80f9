package patient

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/relayloop/relayloop/internal/platform/apperr"
	"github.com/relayloop/relayloop/internal/platform/auth"
)

const (
	exportSheet    = "Patients"
	exportPageSize = 100
	// MaxExportRows bounds a single export.
	MaxExportRows = 10000
)

var exportColumns = []struct {
	header string
	width  float64
	value  func(p *Patient) interface{}
}{
	{"MRN", 14, func(p *Patient) interface{} { return p.MRN }},
	{"First Name", 16, func(p *Patient) interface{} { return p.FirstName }},
	{"Last Name", 16, func(p *Patient) interface{} { return p.LastName }},
	{"Date of Birth", 14, func(p *Patient) interface{} { return p.DOB.Format("2006-01-02") }},
	{"Gender", 10, func(p *Patient) interface{} { return p.Gender }},
	{"Department", 18, func(p *Patient) interface{} { return p.Department }},
	{"Attending Doctor", 20, func(p *Patient) interface{} { return p.AttendingDoctor }},
	{"Room", 10, func(p *Patient) interface{} { return deref(p.Room) }},
	{"Status", 12, func(p *Patient) interface{} { return p.Status }},
	{"Phone", 16, func(p *Patient) interface{} { return deref(p.Phone) }},
	{"Email", 26, func(p *Patient) interface{} { return deref(p.Email) }},
	{"Medical Conditions", 30, func(p *Patient) interface{} { return strings.Join(p.MedicalConditions, ", ") }},
	{"Allergies", 24, func(p *Patient) interface{} { return strings.Join(p.Allergies, ", ") }},
	{"Last Admission", 14, func(p *Patient) interface{} { return formatDate(p.LastAdmission) }},
	{"Last Visit", 14, func(p *Patient) interface{} { return formatDate(p.LastVisit) }},
}

// Export renders the patients matching f as an XLSX workbook. Limit and
// offset in f are ignored; every match up to MaxExportRows is included.
func (s *Service) Export(ctx context.Context, scope auth.Scope, f ListFilter) ([]byte, error) {
	var all []*Patient
	f.Offset = 0
	f.Limit = exportPageSize
	for len(all) < MaxExportRows {
		page, total, err := s.List(ctx, scope, f)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) == 0 || len(all) >= total {
			break
		}
		f.Offset += len(page)
	}
	if len(all) > MaxExportRows {
		all = all[:MaxExportRows]
	}

	data, err := renderWorkbook(all)
	if err != nil {
		return nil, apperr.Wrap("export patients", err)
	}
	return data, nil
}

func renderWorkbook(patients []*Patient) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, col := range exportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(exportSheet, cell, col.header); err != nil {
			return nil, fmt.Errorf("set header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(exportSheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("style header %s: %w", cell, err)
		}
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(exportSheet, name, name, col.width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	for r, p := range patients {
		for c, col := range exportColumns {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(exportSheet, cell, col.value(p)); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
