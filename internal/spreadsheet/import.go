package spreadsheet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/example/cleaning-scheduler/internal/application"
	"github.com/example/cleaning-scheduler/internal/calendar"
)

const maxImportRows = 5000

var (
	// ErrEmptyWorkbook is returned when the upload has no usable sheet or rows.
	ErrEmptyWorkbook = errors.New("spreadsheet: workbook is empty")
	// ErrMissingColumns is returned when a required header is absent.
	ErrMissingColumns = errors.New("spreadsheet: required columns missing")
)

// Import headers. title, date and start are required.
const (
	ColTitle    = "title"
	ColDate     = "date"
	ColStart    = "start"
	ColEnd      = "end"
	ColEmployee = "employee"
	ColClient   = "client"
	ColAddress  = "address"
	ColType     = "type"
	ColPrice    = "price"
)

// JobCreator is the part of the job service the importer needs.
type JobCreator interface {
	CreateJob(ctx context.Context, input application.JobInput) (application.Job, []application.ConflictWarning, error)
}

// RowError reports why one spreadsheet row was not imported. Row is 1-based
// and counts the header.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Report summarizes an import.
type Report struct {
	Created  []string                      `json:"created"`
	Errors   []RowError                    `json:"errors"`
	Warnings []application.ConflictWarning `json:"-"`
}

// Importer turns workbook rows into jobs.
type Importer struct {
	jobs   JobCreator
	loc    *time.Location
	logger *slog.Logger
}

// NewImporter returns an importer that reads dates and times in loc.
func NewImporter(jobs JobCreator, loc *time.Location, logger *slog.Logger) *Importer {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{jobs: jobs, loc: loc, logger: logger}
}

// Import reads the workbook in r and creates a job per data row. Rows that
// fail to parse or validate are reported and skipped. The file extension of
// filename selects the .xls reader; everything else is read as .xlsx.
func (i *Importer) Import(ctx context.Context, r io.Reader, filename string, employees []application.Employee) (Report, error) {
	rows, err := ReadRows(r, filename)
	if err != nil {
		return Report{}, err
	}

	cols, err := headerIndex(rows[0])
	if err != nil {
		return Report{}, err
	}

	lookup := make(map[string]string, len(employees)*2)
	for _, e := range employees {
		lookup[strings.ToLower(strings.TrimSpace(e.Name))] = e.ID
		lookup[strings.ToLower(e.ID)] = e.ID
	}

	report := Report{Created: []string{}, Errors: []RowError{}}
	for idx, row := range rows[1:] {
		line := idx + 2
		if blank(row) {
			continue
		}
		input, err := i.parseRow(row, cols, lookup)
		if err != nil {
			report.Errors = append(report.Errors, RowError{Row: line, Message: err.Error()})
			continue
		}
		job, warnings, err := i.jobs.CreateJob(ctx, input)
		if err != nil {
			report.Errors = append(report.Errors, RowError{Row: line, Message: application.UserMessage(err)})
			continue
		}
		report.Created = append(report.Created, job.ID)
		report.Warnings = append(report.Warnings, warnings...)
	}

	i.logger.InfoContext(ctx, "jobs imported",
		"file", filename,
		"created", len(report.Created),
		"rejected", len(report.Errors),
	)
	return report, nil
}

func (i *Importer) parseRow(row []string, cols map[string]int, employees map[string]string) (application.JobInput, error) {
	input := application.JobInput{
		Title:      cell(row, cols, ColTitle),
		ClientName: cell(row, cols, ColClient),
		Address:    cell(row, cols, ColAddress),
		EventType:  strings.ToLower(cell(row, cols, ColType)),
	}

	day, err := parseDate(cell(row, cols, ColDate), i.loc)
	if err != nil {
		return input, err
	}
	startMin, err := parseClock(cell(row, cols, ColStart))
	if err != nil {
		return input, fmt.Errorf("start: %w", err)
	}
	input.Start = calendar.AtMinute(day, startMin)

	if raw := cell(row, cols, ColEnd); raw != "" {
		endMin, err := parseClock(raw)
		if err != nil {
			return input, fmt.Errorf("end: %w", err)
		}
		end := calendar.AtMinute(day, endMin)
		input.End = &end
	}

	if name := cell(row, cols, ColEmployee); name != "" {
		id, ok := employees[strings.ToLower(name)]
		if !ok {
			return input, fmt.Errorf("unknown employee %q", name)
		}
		input.EmployeeID = &id
	}

	if raw := cell(row, cols, ColPrice); raw != "" {
		cents, err := parsePrice(raw)
		if err != nil {
			return input, err
		}
		input.PriceCents = cents
	}
	return input, nil
}

// ReadRows returns every row of the first worksheet.
func ReadRows(r io.Reader, filename string) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls":
		workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, fmt.Errorf("spreadsheet: open xls: %w", err)
		}
		if workbook.NumSheets() == 0 {
			return nil, ErrEmptyWorkbook
		}
		rows := workbook.ReadAllCells(maxImportRows)
		if len(rows) == 0 {
			return nil, ErrEmptyWorkbook
		}
		return rows, nil
	default:
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("spreadsheet: open xlsx: %w", err)
		}
		defer func() { _ = file.Close() }()

		sheet := file.GetSheetName(0)
		if sheet == "" {
			return nil, ErrEmptyWorkbook
		}
		rows, err := file.GetRows(sheet)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, ErrEmptyWorkbook
		}
		if len(rows) > maxImportRows {
			rows = rows[:maxImportRows]
		}
		return rows, nil
	}
}

func headerIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for idx, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := cols[name]; name != "" && !dup {
			cols[name] = idx
		}
	}
	var missing []string
	for _, required := range []string{ColTitle, ColDate, ColStart} {
		if _, ok := cols[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return cols, nil
}

func cell(row []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var dateLayouts = []string{"2006-01-02", "1/2/2006", "01/02/2006", "2006/01/02", "Jan 2, 2006", "2 Jan 2006"}

func parseDate(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("date is required")
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		if serial >= 20000 && serial <= 80000 {
			t, err := excelize.ExcelDateToTime(math.Floor(serial), false)
			if err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
			}
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

var clockLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3PM", "3 PM"}

// parseClock returns minutes after midnight for a wall-clock value or an
// Excel day fraction such as 0.375.
func parseClock(value string) (int, error) {
	if value == "" {
		return 0, errors.New("time is required")
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 && f < 1 {
		return int(math.Round(f * 24 * 60)), nil
	}
	upper := strings.ToUpper(value)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, upper); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized time %q", value)
}

func parsePrice(value string) (int64, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(value)
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid price %q", value)
	}
	return int64(math.Round(f * 100)), nil
}
