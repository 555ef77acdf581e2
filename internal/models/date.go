package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LocalDate is a wall-clock calendar date without time of day or zone.
// It is always built from and rendered through year/month/day fields, never
// through an absolute instant.
type LocalDate struct {
	Year  int
	Month time.Month
	Day   int
}

const localDateLayout = "YYYY-MM-DD"

// NewLocalDate validates and builds a date from its fields.
func NewLocalDate(year int, month time.Month, day int) (LocalDate, error) {
	if month < time.January || month > time.December {
		return LocalDate{}, fmt.Errorf("invalid month %d", month)
	}
	if day < 1 || day > daysIn(year, month) {
		return LocalDate{}, fmt.Errorf("invalid day %d for %d-%02d", day, year, month)
	}
	if year < 1 || year > 9999 {
		return LocalDate{}, fmt.Errorf("invalid year %d", year)
	}
	return LocalDate{Year: year, Month: month, Day: day}, nil
}

// LocalDateOf takes the calendar fields of t in t's own location.
func LocalDateOf(t time.Time) LocalDate {
	y, m, d := t.Date()
	return LocalDate{Year: y, Month: m, Day: d}
}

// Today returns the current date in the process' local zone.
func Today() LocalDate {
	return LocalDateOf(time.Now())
}

// ParseLocalDate parses YYYY-MM-DD by splitting on '-' and building the date
// from the three integers.
func ParseLocalDate(s string) (LocalDate, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 || len(parts[0]) != 4 || len(parts[1]) != 2 || len(parts[2]) != 2 {
		return LocalDate{}, fmt.Errorf("invalid date %q: expected %s", s, localDateLayout)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return LocalDate{}, fmt.Errorf("invalid date %q: %w", s, err)
		}
		nums[i] = n
	}
	return NewLocalDate(nums[0], time.Month(nums[1]), nums[2])
}

// FormatLocalDate renders d as zero padded YYYY-MM-DD.
func FormatLocalDate(d LocalDate) string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d LocalDate) String() string {
	return FormatLocalDate(d)
}

func (d LocalDate) IsZero() bool {
	return d == LocalDate{}
}

// In returns local midnight of d in loc.
func (d LocalDate) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays moves the date by n calendar days.
func (d LocalDate) AddDays(n int) LocalDate {
	// noon keeps daylight saving jumps from changing the day
	t := time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.Local)
	return LocalDateOf(t)
}

// Compare returns -1, 0 or +1 by calendar order.
func (d LocalDate) Compare(o LocalDate) int {
	switch {
	case d.Year != o.Year:
		return sign(d.Year - o.Year)
	case d.Month != o.Month:
		return sign(int(d.Month) - int(o.Month))
	default:
		return sign(d.Day - o.Day)
	}
}

func (d LocalDate) Before(o LocalDate) bool { return d.Compare(o) < 0 }
func (d LocalDate) After(o LocalDate) bool  { return d.Compare(o) > 0 }

func (d LocalDate) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(FormatLocalDate(d))
}

func (d *LocalDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("selectedDate must be a string: %w", err)
	}
	if s == "" {
		*d = LocalDate{}
		return nil
	}
	parsed, err := ParseLocalDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores the date as TEXT.
func (d LocalDate) Value() (driver.Value, error) {
	return FormatLocalDate(d), nil
}

func (d *LocalDate) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseLocalDate(v)
		if err != nil {
			return err
		}
		*d = parsed
	case []byte:
		return d.Scan(string(v))
	case time.Time:
		*d = LocalDateOf(v)
	case nil:
		*d = LocalDate{}
	default:
		return fmt.Errorf("cannot scan %T into LocalDate", src)
	}
	return nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 12, 0, 0, 0, time.Local).Day()
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
