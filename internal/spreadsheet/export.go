// Package spreadsheet exports a week of jobs to XLSX and imports jobs from
// XLSX or legacy XLS workbooks.
package spreadsheet

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/cleaning-scheduler/internal/application"
	"github.com/example/cleaning-scheduler/internal/calendar"
)

// WeekSheet is the name of the exported worksheet.
const WeekSheet = "Week"

var exportHeader = []any{"Date", "Start", "End", "Employee", "Client", "Job", "Type", "Status", "Price"}

// ExportWeek writes one row per job starting in the week of weekStart and a
// final revenue row. External appointments are left out and cancelled jobs
// do not count towards revenue.
func ExportWeek(w io.Writer, weekStart time.Time, events []calendar.CalendarEvent, employeeNames map[string]string) error {
	from := calendar.StartOfWeek(weekStart)
	to := calendar.AddDays(from, 7)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", WeekSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(WeekSheet, "A1", &exportHeader); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return err
	}

	row := 2
	var revenue int64
	for _, ev := range calendar.SortEvents(events) {
		if ev.Metadata.Bool(calendar.MetaExternal) || ev.Start.Before(from) || !ev.Start.Before(to) {
			continue
		}
		price := priceCents(ev.Metadata[application.MetaPriceCents])
		status := ev.Metadata.String(application.MetaStatus)
		if status != application.StatusCancelled {
			revenue += price
		}

		employee := employeeNames[ev.Label]
		if employee == "" {
			employee = ev.Label
		}
		values := []any{
			ev.Start.Format("2006-01-02"),
			ev.Start.Format("15:04"),
			ev.EffectiveEnd().Format("15:04"),
			employee,
			ev.Metadata.String(application.MetaClientName),
			ev.Title,
			ev.Metadata.String(calendar.MetaEventType),
			status,
			float64(price) / 100,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(WeekSheet, cell, &values); err != nil {
			return err
		}
		row++
	}

	totalLabel, _ := excelize.CoordinatesToCellName(1, row)
	totalCell, _ := excelize.CoordinatesToCellName(len(exportHeader), row)
	if err := f.SetCellValue(WeekSheet, totalLabel, "Total"); err != nil {
		return err
	}
	if err := f.SetCellValue(WeekSheet, totalCell, float64(revenue)/100); err != nil {
		return err
	}

	lastHeader, _ := excelize.CoordinatesToCellName(len(exportHeader), 1)
	if err := f.SetCellStyle(WeekSheet, "A1", lastHeader, bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(WeekSheet, totalLabel, totalLabel, bold); err != nil {
		return err
	}
	firstPrice, _ := excelize.CoordinatesToCellName(len(exportHeader), 2)
	if err := f.SetCellStyle(WeekSheet, firstPrice, totalCell, money); err != nil {
		return err
	}
	if err := f.SetColWidth(WeekSheet, "A", "I", 14); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("spreadsheet: write workbook: %w", err)
	}
	return nil
}

func priceCents(raw any) int64 {
	switch v := raw.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
