/*
export.go - Monthly stats workbook

PURPOSE:
  Renders one month of schedule.StatsBucket rows as an xlsx sheet for
  payroll. Hours are written from their decimal values so the sheet shows
  exactly what the API returns.

SEE ALSO:
  - schedule/stats.go: Aggregate, AllMonthlyStats
  - api/handlers.go: GET /api/stats/export
*/
package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/schedule"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []string{
	"User ID", "Name", "Days", "Scheduled hours", "Work hours", "Net minutes",
	"Break hours", "Leave", "Absent", "Transport", "Step out", "Meal tickets",
}

// FileName is the download name for a month's workbook.
func FileName(month calendar.Date) string {
	return fmt.Sprintf("shift-stats-%s.xlsx", month.MonthKey())
}

// MonthlyStatsWorkbook writes buckets into a single-sheet workbook. names
// maps user ids to display names; missing names are left blank.
func MonthlyStatsWorkbook(month calendar.Date, buckets []schedule.StatsBucket, names map[string]string) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := month.MonthKey()
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	for i, h := range headers {
		c, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, c, h); err != nil {
			return nil, err
		}
	}
	last, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetCellStyle(sheet, "A1", last+"1", headerStyle); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "A", "B", 18); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "C", last, 14); err != nil {
		return nil, err
	}

	for r, b := range buckets {
		row := []any{
			b.UserID,
			names[b.UserID],
			b.Days,
			b.ScheduledHours.InexactFloat64(),
			b.WorkHours.InexactFloat64(),
			b.Minutes,
			b.BreakHours.InexactFloat64(),
			b.LeaveCount,
			b.AbsentCount,
			b.TransportCount,
			b.StepOutCount,
			b.MealTicketCount,
		}
		start, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheet, start, &row); err != nil {
			return nil, fmt.Errorf("write row for %s: %w", b.UserID, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}
