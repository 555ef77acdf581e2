// Package export renders bookings into an xlsx workbook: a flat list of
// bookings and a schedule grid with one column per date and one row per
// time slot.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"studiobook/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	listSheet     = "Bookings"
	scheduleSheet = "Schedule"

	maxScheduleDays = 92
)

var listHeaders = []string{
	"Reference", "Full Name", "Email", "Contact Number", "Event Type", "Event Location",
	"Package", "Date", "Time", "Payment Method", "Status", "Notes", "Created At",
}

// Range is an inclusive date range for the schedule sheet.
type Range struct {
	From models.LocalDate
	To   models.LocalDate
}

func (r Range) validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return errors.New("export range requires from and to")
	}
	if r.To.Before(r.From) {
		return fmt.Errorf("invalid date range: %s to %s", r.From, r.To)
	}
	if r.From.AddDays(maxScheduleDays).Before(r.To) {
		return fmt.Errorf("date range longer than %d days", maxScheduleDays)
	}
	return nil
}

func (r Range) contains(d models.LocalDate) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

// Workbook builds the export. The caller owns the returned file and must
// close it.
func Workbook(bookings []models.Booking, rng Range, slots []string) (*excelize.File, error) {
	if err := rng.validate(); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", listSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeList(f, bookings, rng); err != nil {
		f.Close()
		return nil, fmt.Errorf("write bookings sheet: %w", err)
	}

	if _, err := f.NewSheet(scheduleSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSchedule(f, bookings, rng, slots); err != nil {
		f.Close()
		return nil, fmt.Errorf("write schedule sheet: %w", err)
	}
	return f, nil
}

// Write streams the workbook to w.
func Write(w io.Writer, bookings []models.Booking, rng Range, slots []string) error {
	f, err := Workbook(bookings, rng, slots)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// SaveToDir writes the workbook under dir and returns the file path.
func SaveToDir(dir string, bookings []models.Booking, rng Range, slots []string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := Workbook(bookings, rng, slots)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, FileName(rng))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return path, nil
}

func FileName(rng Range) string {
	return fmt.Sprintf("bookings_%s_to_%s.xlsx", rng.From, rng.To)
}

func writeList(f *excelize.File, bookings []models.Booking, rng Range) error {
	for i, h := range listHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(listSheet, cell, h); err != nil {
			return err
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err == nil {
		lastCell, _ := excelize.CoordinatesToCellName(len(listHeaders), 1)
		_ = f.SetCellStyle(listSheet, "A1", lastCell, header)
	}

	row := 2
	for _, b := range bookings {
		if !rng.contains(b.SelectedDate) {
			continue
		}
		values := []interface{}{
			b.ID, b.FullName, b.Email, b.ContactNumber, b.EventType, b.EventLocation,
			b.SelectedPackage, b.SelectedDate.String(), b.SelectedTime, b.PaymentMethod,
			b.Status, b.AdditionalNotes, b.CreatedAt.Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(listSheet, cell, &values); err != nil {
			return err
		}
		row++
	}

	_ = f.SetColWidth(listSheet, "A", "M", 18)
	return nil
}

func writeSchedule(f *excelize.File, bookings []models.Booking, rng Range, slots []string) error {
	_ = f.SetCellValue(scheduleSheet, "A1", fmt.Sprintf("Period: %s - %s", rng.From, rng.To))

	cols := make(map[models.LocalDate]int)
	col := 2
	for d := rng.From; !d.After(rng.To); d = d.AddDays(1) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		if err := f.SetCellValue(scheduleSheet, cell, d.String()); err != nil {
			return err
		}
		cols[d] = col
		col++
	}

	rows := make(map[string]int, len(slots))
	for i, slot := range slots {
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		if err := f.SetCellValue(scheduleSheet, cell, slot); err != nil {
			return err
		}
		rows[slot] = i + 3
	}

	styles := statusStyles(f)
	for _, b := range bookings {
		if b.IsCancelled() {
			continue
		}
		c, okCol := cols[b.SelectedDate]
		r, okRow := rows[b.SelectedTime]
		if !okCol || !okRow {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(c, r)
		text := fmt.Sprintf("%s (%s)", b.FullName, b.Status)
		if existing, _ := f.GetCellValue(scheduleSheet, cell); existing != "" {
			text = existing + "\n" + text
		}
		if err := f.SetCellValue(scheduleSheet, cell, text); err != nil {
			return err
		}
		if style, ok := styles[b.Status]; ok {
			_ = f.SetCellStyle(scheduleSheet, cell, cell, style)
		}
	}

	_ = f.SetColWidth(scheduleSheet, "A", "A", 12)
	if lastCol, err := excelize.ColumnNumberToName(col - 1); err == nil && col > 2 {
		_ = f.SetColWidth(scheduleSheet, "B", lastCol, 22)
	}
	return nil
}

func statusStyles(f *excelize.File) map[string]int {
	colors := map[string]string{
		models.StatusPending:   "#FFF2CC",
		models.StatusConfirmed: "#E2EFDA",
	}
	styles := make(map[string]int, len(colors))
	for status, color := range colors {
		id, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		})
		if err == nil {
			styles[status] = id
		}
	}
	return styles
}
