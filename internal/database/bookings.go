package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"studiobook/internal/availability"
	"studiobook/internal/models"

	"github.com/mattn/go-sqlite3"
)

const bookingColumns = `id, full_name, email, contact_number, event_type, event_location,
	additional_notes, selected_package, selected_date, selected_time, payment_method,
	status, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID, &b.FullName, &b.Email, &b.ContactNumber, &b.EventType, &b.EventLocation,
		&b.AdditionalNotes, &b.SelectedPackage, &b.SelectedDate, &b.SelectedTime, &b.PaymentMethod,
		&b.Status, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBookingWithLock checks the slot and inserts the booking in one
// transaction. A missing ID is assigned here.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var taken int
	queryCount := `SELECT COUNT(*) FROM bookings WHERE selected_date = ? AND selected_time = ? AND status <> ?`
	err = tx.QueryRowContext(ctx, queryCount, booking.SelectedDate, booking.SelectedTime, models.StatusCancelled).Scan(&taken)
	if err != nil {
		return fmt.Errorf("failed to check slot in tx: %w", err)
	}
	if taken > 0 {
		return ErrSlotTaken
	}

	now := time.Now()
	if booking.ID == "" {
		booking.ID = models.NewReference(now)
	}
	if booking.Status == "" {
		booking.Status = models.StatusPending
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}

	queryInsert := `INSERT INTO bookings (` + bookingColumns + `, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, queryInsert,
		booking.ID,
		booking.FullName,
		booking.Email,
		booking.ContactNumber,
		booking.EventType,
		booking.EventLocation,
		booking.AdditionalNotes,
		booking.SelectedPackage,
		booking.SelectedDate,
		booking.SelectedTime,
		booking.PaymentMethod,
		booking.Status,
		booking.CreatedAt,
		now,
	)
	if err != nil {
		if isUniqueSlotViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueSlotViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to commit booking: %w", err)
	}
	return nil
}

func isUniqueSlotViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// ListBookings returns every booking in creation order, optionally only
// those made with the given email (case-insensitive).
func (db *DB) ListBookings(ctx context.Context, email string) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings`
	var args []any
	if email = strings.TrimSpace(email); email != "" {
		query += ` WHERE lower(email) = lower(?)`
		args = append(args, email)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]models.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// OccupiedDates returns the distinct dates holding a booking whose status is
// in statuses. Cancelled bookings never count.
func (db *DB) OccupiedDates(ctx context.Context, statuses []string) ([]string, error) {
	filter := availability.NewStatusSet(statuses...).Slice()
	if len(filter) == 0 {
		return []string{}, nil
	}

	query := `SELECT DISTINCT selected_date FROM bookings
		WHERE status IN (` + placeholders(len(filter)) + `) AND status <> ?
		ORDER BY selected_date`
	args := append(toArgs(filter), models.StatusCancelled)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get occupied dates: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// OccupiedSlots returns the slot of every matching booking on date, one entry
// per booking.
func (db *DB) OccupiedSlots(ctx context.Context, date models.LocalDate, statuses []string) ([]string, error) {
	filter := availability.NewStatusSet(statuses...).Slice()
	if len(filter) == 0 {
		return []string{}, nil
	}

	query := `SELECT selected_time FROM bookings
		WHERE selected_date = ? AND status IN (` + placeholders(len(filter)) + `) AND status <> ?
		ORDER BY created_at`
	args := append([]any{date}, toArgs(filter)...)
	args = append(args, models.StatusCancelled)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get occupied slots: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// UpdateBookingStatus moves a booking to status. Re-applying the current
// status succeeds without writing.
func (db *DB) UpdateBookingStatus(ctx context.Context, id, status string) (*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	if booking.Status == status {
		return booking, nil
	}
	if !models.CanTransition(booking.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, booking.Status, status)
	}

	_, err = tx.ExecContext(ctx, `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit status update: %w", err)
	}

	booking.Status = status
	return booking, nil
}

func (db *DB) DeleteBooking(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	out := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
