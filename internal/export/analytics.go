// Package export renders analytics as spreadsheet workbooks.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/benefits-cafeteria/internal/service"
)

const (
	UsageSheet = "Usage"
	PollSheet  = "Poll"

	// ContentType is the MIME type of the produced workbooks.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var UsageHeader = []string{"Benefit ID", "Benefit", "Pending", "Approved", "Denied", "Total"}

var PollHeader = []string{"Benefit ID", "Benefit", "Selections"}

// AnalyticsWorkbook writes request usage and the poll summary into an
// xlsx workbook with one sheet each.  Totals and reach follow the
// per-benefit rows on the usage sheet.
func AnalyticsWorkbook(a service.Analytics, poll service.PollSummary, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()

	usageIdx, err := f.NewSheet(UsageSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if _, err := f.NewSheet(PollSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(usageIdx)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeRow(f, UsageSheet, 1, headerStyle, toAny(UsageHeader)...); err != nil {
		f.Close()
		return nil, err
	}
	row := 2
	for _, b := range a.Benefits {
		if err := writeRow(f, UsageSheet, row, 0, b.BenefitID, b.BenefitName, b.Pending, b.Approved, b.Denied, b.Total); err != nil {
			f.Close()
			return nil, err
		}
		row++
	}
	row++
	summary := [][]any{
		{"", "All benefits", a.Pending, a.Approved, a.Denied, a.Total},
		{"", "Employees", a.EmployeeCount},
		{"", "Reach", a.Reach},
		{"", "Usage %", a.UsagePercent},
		{"", "Generated at", generatedAt.UTC().Format("2006-01-02 15:04:05")},
	}
	for _, vals := range summary {
		if err := writeRow(f, UsageSheet, row, 0, vals...); err != nil {
			f.Close()
			return nil, err
		}
		row++
	}

	if err := writeRow(f, PollSheet, 1, headerStyle, toAny(PollHeader)...); err != nil {
		f.Close()
		return nil, err
	}
	row = 2
	for _, b := range poll.Benefits {
		if err := writeRow(f, PollSheet, row, 0, b.BenefitID, b.BenefitName, b.Selections); err != nil {
			f.Close()
			return nil, err
		}
		row++
	}
	row++
	for _, vals := range [][]any{
		{"", "Submissions", poll.Submissions},
		{"", "Average rating", poll.AverageRating},
	} {
		if err := writeRow(f, PollSheet, row, 0, vals...); err != nil {
			f.Close()
			return nil, err
		}
		row++
	}

	for _, sheet := range []string{UsageSheet, PollSheet} {
		if err := f.SetColWidth(sheet, "B", "B", 30); err != nil {
			f.Close()
			return nil, fmt.Errorf("set column width: %w", err)
		}
		if err := f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			f.Close()
			return nil, fmt.Errorf("freeze panes: %w", err)
		}
	}

	// the file must stay open until WriteTo returns
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// writeRow fills row starting at column A.  A style of 0 leaves the
// cells unstyled.
func writeRow(f *excelize.File, sheet string, row, style int, values ...any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set cell %s!%s: %w", sheet, cell, err)
		}
		if style != 0 {
			if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
				return fmt.Errorf("set style %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
