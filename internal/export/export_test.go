package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"studiobook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var june5 = models.LocalDate{Year: 2025, Month: time.June, Day: 5}

func sample() []models.Booking {
	mk := func(id, name string, date models.LocalDate, slot, status string) models.Booking {
		return models.Booking{
			ID: id, FullName: name, Email: "x@example.com",
			SelectedDate: date, SelectedTime: slot, Status: status,
			CreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		}
	}
	return []models.Booking{
		mk("LL-1-AAAAA", "Ana", june5, "9:00 AM", models.StatusPending),
		mk("LL-2-BBBBB", "Ben", june5.AddDays(1), "1:00 PM", models.StatusConfirmed),
		mk("LL-3-CCCCC", "Cid", june5, "10:00 AM", models.StatusCancelled),
		mk("LL-4-DDDDD", "Dee", june5.AddDays(30), "9:00 AM", models.StatusPending),
	}
}

func TestWorkbook(t *testing.T) {
	f, err := Workbook(sample(), Range{From: june5, To: june5.AddDays(2)}, models.DefaultTimeSlots)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{listSheet, scheduleSheet}, f.GetSheetList())

	rows, err := f.GetRows(listSheet)
	require.NoError(t, err)
	// header plus three bookings inside the range, cancelled included
	require.Len(t, rows, 4)
	assert.Equal(t, "Reference", rows[0][0])
	assert.Equal(t, "LL-1-AAAAA", rows[1][0])
	assert.Equal(t, "2025-06-05", rows[1][7])

	v, err := f.GetCellValue(scheduleSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-05", v)

	v, _ = f.GetCellValue(scheduleSheet, "A3")
	assert.Equal(t, "9:00 AM", v)

	v, _ = f.GetCellValue(scheduleSheet, "B3")
	assert.Equal(t, "Ana (pending)", v)

	// cancelled bookings stay off the schedule grid
	v, _ = f.GetCellValue(scheduleSheet, "B4")
	assert.Empty(t, v)

	v, _ = f.GetCellValue(scheduleSheet, "C6")
	assert.Equal(t, "Ben (confirmed)", v)
}

func TestWorkbook_InvalidRange(t *testing.T) {
	_, err := Workbook(nil, Range{From: june5, To: june5.AddDays(-1)}, models.DefaultTimeSlots)
	assert.Error(t, err)

	_, err = Workbook(nil, Range{}, models.DefaultTimeSlots)
	assert.Error(t, err)

	_, err = Workbook(nil, Range{From: june5, To: june5.AddDays(200)}, models.DefaultTimeSlots)
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample(), Range{From: june5, To: june5}, models.DefaultTimeSlots))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(listSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestSaveToDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	rng := Range{From: june5, To: june5.AddDays(6)}

	path, err := SaveToDir(dir, sample(), rng, models.DefaultTimeSlots)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bookings_2025-06-05_to_2025-06-11.xlsx"), path)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
