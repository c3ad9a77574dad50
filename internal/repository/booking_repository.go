package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/wellness_booking/internal/model"
	"github.com/Freeeeeet/wellness_booking/internal/repository/base"
	"github.com/Freeeeeet/wellness_booking/internal/timeutil"
	"github.com/jackc/pgx/v5/pgtype"
)

const bookingColumns = `b.id, b.time_slot_id, b.student_id, b.mentor_id, b.category, b.status, b.is_delayed,
	b.manual_start_time, b.actual_end_time, b.completion_reason, b.duration_source, b.rescheduled_to_id,
	b.expected_duration, b.actual_duration, b.price, b.payment_status, b.cancelled_by, b.created_at, b.updated_at`

// slotColumnsJoined колонки слота в запросах с JOIN time_slots s
var slotColumnsJoined = prefixColumns("s.", slotColumns)

type PostgresBookingRepository struct {
	*base.Repository
	now func() time.Time
}

func NewBookingRepository(db base.Querier) *PostgresBookingRepository {
	return &PostgresBookingRepository{Repository: base.NewRepository(db), now: time.Now}
}

// Create создаёт новое бронирование
func (r *PostgresBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (time_slot_id, student_id, mentor_id, category, status, is_delayed,
			manual_start_time, actual_end_time, completion_reason, duration_source, rescheduled_to_id,
			expected_duration, actual_duration, price, payment_status, cancelled_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at
	`

	cols := model.Columns(stateOf(booking))
	err := r.QueryRow(
		ctx, query,
		booking.TimeSlotID,
		booking.StudentID,
		booking.MentorID,
		string(booking.Category),
		string(cols.Status),
		cols.IsDelayed,
		cols.ManualStartTime,
		cols.ActualEndTime,
		cols.CompletionReason,
		cols.DurationSource,
		cols.RescheduledToID,
		booking.ExpectedDuration,
		booking.ActualDuration,
		booking.Price,
		string(booking.PaymentStatus),
		booking.CancelledBy,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)

	if err != nil {
		if base.IsUniqueViolation(err) {
			return ErrDuplicateActiveBooking
		}
		return fmt.Errorf("create booking: %w", err)
	}

	return nil
}

// GetByID получает бронирование вместе со слотом
func (r *PostgresBookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `, ` + slotColumnsJoined + `
		FROM bookings b
		JOIN time_slots s ON s.id = b.time_slot_id
		WHERE b.id = $1
	`

	booking, err := scanBookingWithSlot(r.QueryRow(ctx, query, id), r.now())
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return booking, nil
}

// List получает бронирования по фильтру
func (r *PostgresBookingRepository) List(ctx context.Context, filter BookingFilter) ([]*model.Booking, error) {
	var w whereBuilder
	if filter.MentorID != nil {
		w.add("b.mentor_id = $%d", *filter.MentorID)
	}
	if filter.StudentID != nil {
		w.add("b.student_id = $%d", *filter.StudentID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		w.add("b.status = ANY($%d)", statuses)
	}
	if filter.IsDelayed != nil {
		w.add("b.is_delayed = $%d", *filter.IsDelayed)
	}
	if !filter.From.IsZero() {
		w.add("s.start_time >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		w.add("s.start_time < $%d", filter.To)
	}

	query := `
		SELECT ` + bookingColumns + `, ` + slotColumnsJoined + `
		FROM bookings b
		JOIN time_slots s ON s.id = b.time_slot_id` + w.sql() + `
		ORDER BY s.start_time, b.id` + w.limit(filter.Limit)

	return r.queryBookings(ctx, "list bookings", query, w.args...)
}

// FindMentorOverlaps находит активные бронирования ментора на других слотах, пересекающиеся с [start, end)
func (r *PostgresBookingRepository) FindMentorOverlaps(ctx context.Context, mentorID int64, start, end time.Time, excludeSlotID int64) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `, ` + slotColumnsJoined + `
		FROM bookings b
		JOIN time_slots s ON s.id = b.time_slot_id
		WHERE b.mentor_id = $1
		  AND b.status IN ('SCHEDULED', 'ONGOING')
		  AND b.time_slot_id <> $4
		  AND s.start_time < $3
		  AND s.end_time > $2
		ORDER BY s.start_time
	`
	return r.queryBookings(ctx, "find mentor overlaps", query, mentorID, start, end, excludeSlotID)
}

// HasActiveBooking есть ли у студента активное бронирование на слот
func (r *PostgresBookingRepository) HasActiveBooking(ctx context.Context, slotID, studentID int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE time_slot_id = $1 AND student_id = $2 AND status IN ('SCHEDULED', 'ONGOING')
		)
	`

	var exists bool
	if err := r.QueryRow(ctx, query, slotID, studentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active booking: %w", err)
	}

	return exists, nil
}

// UpdateState записывает состояние с проверкой текущего статуса.
// Время ручного старта, однажды записанное, не перезаписывается.
func (r *PostgresBookingRepository) UpdateState(ctx context.Context, booking *model.Booking, expected model.BookingStatus) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $3,
		    is_delayed = $4,
		    manual_start_time = $5,
		    actual_end_time = $6,
		    completion_reason = $7,
		    duration_source = $8,
		    rescheduled_to_id = $9,
		    actual_duration = $10,
		    payment_status = $11,
		    cancelled_by = $12,
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
		  AND (manual_start_time IS NULL OR manual_start_time = $5)
		RETURNING updated_at
	`

	cols := model.Columns(stateOf(booking))
	err := r.QueryRow(
		ctx, query,
		booking.ID,
		string(expected),
		string(cols.Status),
		cols.IsDelayed,
		cols.ManualStartTime,
		cols.ActualEndTime,
		cols.CompletionReason,
		cols.DurationSource,
		cols.RescheduledToID,
		booking.ActualDuration,
		string(booking.PaymentStatus),
		booking.CancelledBy,
	).Scan(&booking.UpdatedAt)

	if err != nil {
		if base.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("update booking state: %w", err)
	}

	return true, nil
}

// FlagDelayed отмечает SCHEDULED бронирование как опаздывающее
func (r *PostgresBookingRepository) FlagDelayed(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE bookings
		SET is_delayed = true, updated_at = now()
		WHERE id = $1 AND status = 'SCHEDULED' AND is_delayed = false
	`

	affected, err := r.ExecAffected(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("flag booking delayed: %w", err)
	}

	return affected > 0, nil
}

func (r *PostgresBookingRepository) queryBookings(ctx context.Context, op, query string, args ...any) ([]*model.Booking, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	now := r.now()
	var bookings []*model.Booking
	for rows.Next() {
		booking, err := scanBookingWithSlot(rows, now)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, nil
}

func scanBookingWithSlot(row rowScanner, now time.Time) (*model.Booking, error) {
	var (
		booking        model.Booking
		category       string
		status         string
		paymentStatus  string
		cols           model.StateColumns
		manualStart    pgtype.Timestamptz
		actualEnd      pgtype.Timestamptz
		createdAt      pgtype.Timestamptz
		updatedAt      pgtype.Timestamptz
		completion     *string
		durationSource *string
	)

	slotDest, buildSlot := slotScanTarget(now)
	dest := append([]any{
		&booking.ID,
		&booking.TimeSlotID,
		&booking.StudentID,
		&booking.MentorID,
		&category,
		&status,
		&cols.IsDelayed,
		&manualStart,
		&actualEnd,
		&completion,
		&durationSource,
		&cols.RescheduledToID,
		&booking.ExpectedDuration,
		&booking.ActualDuration,
		&booking.Price,
		&paymentStatus,
		&booking.CancelledBy,
		&createdAt,
		&updatedAt,
	}, slotDest...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	cols.Status = model.BookingStatus(status)
	cols.ManualStartTime = optionalInstant(manualStart)
	cols.ActualEndTime = optionalInstant(actualEnd)
	cols.CompletionReason = completion
	cols.DurationSource = durationSource

	state, err := model.StateFromColumns(cols, now)
	if err != nil {
		return nil, err
	}

	booking.State = state
	booking.Category = model.SessionCategory(category)
	booking.PaymentStatus = model.PaymentStatus(paymentStatus)
	booking.CreatedAt = timeutil.OrNow(createdAt, now)
	booking.UpdatedAt = timeutil.OrNow(updatedAt, now)
	booking.Slot = buildSlot()

	return &booking, nil
}

func optionalInstant(v pgtype.Timestamptz) *time.Time {
	if t, ok := timeutil.ToInstant(v); ok {
		return &t
	}
	return nil
}

func stateOf(b *model.Booking) model.SessionState {
	if b.State == nil {
		return model.Scheduled{}
	}
	return b.State
}

func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
