package reports

import (
	"bytes"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

const (
	sheetName   = "Leave"
	dateLayout  = "2006-01-02"
	calendarID  = "-//ELMS//Leave Calendar//EN"
	calendarUID = "@elms"
)

var leaveHeaders = []string{"Applicant", "Email", "Department", "Leave type", "Start", "End", "Days", "Status", "Level", "Submitted"}

func leaveCells(r LeaveRow) []any {
	return []any{
		r.ApplicantName,
		r.ApplicantEmail,
		r.DepartmentName,
		r.LeaveTypeName,
		r.StartDate.Format(dateLayout),
		r.EndDate.Format(dateLayout),
		r.Days.InexactFloat64(),
		r.Status,
		r.CurrentLevel,
		r.CreatedAt.Format(dateLayout),
	}
}

// RenderXLSX writes rows to a single-sheet workbook with a styled header row.
func RenderXLSX(rows []LeaveRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	f.SetColWidth(sheetName, "A", "D", 22)
	f.SetColWidth(sheetName, "E", "J", 12)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}

	for i, header := range leaveHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}
	last, _ := excelize.CoordinatesToCellName(len(leaveHeaders), 1)
	f.SetCellStyle(sheetName, "A1", last, headerStyle)

	for r, row := range rows {
		for c, value := range leaveCells(row) {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderPDF writes rows as a landscape table.
func RenderPDF(rows []LeaveRow, title string, generatedAt time.Time) ([]byte, error) {
	widths := []float64{40, 55, 35, 30, 22, 22, 14, 22, 12, 22}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, title)
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 9)
	pdf.Cell(0, 6, fmt.Sprintf("Generated %s, %d applications", generatedAt.UTC().Format("2006-01-02 15:04 MST"), len(rows)))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(221, 235, 247)
	for i, header := range leaveHeaders {
		pdf.CellFormat(widths[i], 7, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	for _, row := range rows {
		for i, value := range leaveCells(row) {
			text := fmt.Sprint(value)
			if i == 6 {
				text = row.Days.String()
			}
			pdf.CellFormat(widths[i], 6, text, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := new(bytes.Buffer)
	if err := pdf.Output(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderICS builds a calendar with one all-day event per application.
// DTEND is exclusive, so it falls on the day after the last day of leave.
func RenderICS(rows []LeaveRow, generatedAt time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarID)
	cal.SetXWRCalName("Approved leave")

	for _, row := range rows {
		event := cal.AddEvent(row.ApplicationID + calendarUID)
		event.SetDtStampTime(generatedAt)
		event.SetAllDayStartAt(row.StartDate)
		event.SetAllDayEndAt(row.EndDate.AddDate(0, 0, 1))
		event.SetSummary(fmt.Sprintf("%s: %s", row.ApplicantName, row.LeaveTypeName))
		event.SetDescription(fmt.Sprintf("%s days, %s", row.Days.String(), row.DepartmentName))
	}
	return cal.Serialize()
}
