package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/wellness_booking/internal/model"
	"github.com/Freeeeeet/wellness_booking/internal/repository/base"
	"github.com/Freeeeeet/wellness_booking/internal/timeutil"
	"github.com/jackc/pgx/v5/pgtype"
)

const slotColumns = `id, mentor_id, start_time, end_time, category, max_students, current_students,
	is_recurring, recurring_days, template_id, price, session_link, notes,
	is_active, is_booked, booked_by, created_at, updated_at`

type PostgresSlotRepository struct {
	*base.Repository
	now func() time.Time
}

func NewSlotRepository(db base.Querier) *PostgresSlotRepository {
	return &PostgresSlotRepository{Repository: base.NewRepository(db), now: time.Now}
}

// Create создаёт новый слот
func (r *PostgresSlotRepository) Create(ctx context.Context, slot *model.TimeSlot) error {
	query := `
		INSERT INTO time_slots (mentor_id, start_time, end_time, category, max_students, current_students,
			is_recurring, recurring_days, template_id, price, session_link, notes, is_active, is_booked, booked_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(ctx, query, slotInsertArgs(slot)...).Scan(&slot.ID, &slot.CreatedAt, &slot.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create slot: %w", err)
	}

	return nil
}

// CreateIfAbsent создаёт сгенерированный слот, если для шаблона ещё нет слота с таким началом
func (r *PostgresSlotRepository) CreateIfAbsent(ctx context.Context, slot *model.TimeSlot) (bool, error) {
	query := `
		INSERT INTO time_slots (mentor_id, start_time, end_time, category, max_students, current_students,
			is_recurring, recurring_days, template_id, price, session_link, notes, is_active, is_booked, booked_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (template_id, start_time) WHERE template_id IS NOT NULL DO NOTHING
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(ctx, query, slotInsertArgs(slot)...).Scan(&slot.ID, &slot.CreatedAt, &slot.UpdatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("create slot if absent: %w", err)
	}

	return true, nil
}

// GetByID получает слот по ID
func (r *PostgresSlotRepository) GetByID(ctx context.Context, id int64) (*model.TimeSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM time_slots WHERE id = $1`

	slot, err := scanSlot(r.QueryRow(ctx, query, id), r.now())
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// List получает слоты по фильтру, упорядоченные по времени начала
func (r *PostgresSlotRepository) List(ctx context.Context, filter SlotFilter) ([]*model.TimeSlot, error) {
	var w whereBuilder
	if filter.MentorID != nil {
		w.add("mentor_id = $%d", *filter.MentorID)
	}
	if filter.Category != nil {
		w.add("category = $%d", string(*filter.Category))
	}
	if filter.IsRecurring != nil {
		w.add("is_recurring = $%d", *filter.IsRecurring)
	}
	if filter.OnlyActive {
		w.addRaw("is_active = true")
	}
	if filter.OnlyAvailable {
		w.addRaw("is_active = true AND is_recurring = false AND current_students < max_students")
	}
	if !filter.From.IsZero() {
		w.add("start_time >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		w.add("start_time < $%d", filter.To)
	}

	query := `SELECT ` + slotColumns + ` FROM time_slots` + w.sql() + ` ORDER BY start_time, id` + w.limit(filter.Limit)

	return r.querySlots(ctx, "list slots", query, w.args...)
}

// ListActiveTemplates получает все активные recurring шаблоны
func (r *PostgresSlotRepository) ListActiveTemplates(ctx context.Context) ([]*model.TimeSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM time_slots
		WHERE is_recurring = true AND is_active = true
		ORDER BY mentor_id, id
	`
	return r.querySlots(ctx, "list active templates", query)
}

// SlotExists проверяет существование слота у ментора в указанное время
func (r *PostgresSlotRepository) SlotExists(ctx context.Context, mentorID int64, startTime time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM time_slots
			WHERE mentor_id = $1 AND start_time = $2 AND is_recurring = false
		)
	`

	var exists bool
	err := r.QueryRow(ctx, query, mentorID, startTime).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slot exists: %w", err)
	}

	return exists, nil
}

// FindOverlapping находит активные слоты ментора, пересекающиеся с [start, end)
func (r *PostgresSlotRepository) FindOverlapping(ctx context.Context, mentorID int64, start, end time.Time, excludeID int64) ([]*model.TimeSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM time_slots
		WHERE mentor_id = $1
		  AND is_active = true
		  AND is_recurring = false
		  AND id <> $4
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`
	return r.querySlots(ctx, "find overlapping slots", query, mentorID, start, end, excludeID)
}

// ReserveSeat занимает место в слоте одним условным UPDATE.
// Условие current_students < max_students проверяется самой базой,
// поэтому при гонке за последнее место успешен только один запрос.
func (r *PostgresSlotRepository) ReserveSeat(ctx context.Context, slotID, studentID int64, now time.Time) (*model.TimeSlot, error) {
	query := `
		UPDATE time_slots
		SET current_students = current_students + 1,
		    is_booked = current_students + 1 >= max_students,
		    booked_by = CASE WHEN max_students = 1 THEN $2 ELSE booked_by END,
		    updated_at = now()
		WHERE id = $1
		  AND is_active = true
		  AND is_recurring = false
		  AND current_students < max_students
		  AND start_time > $3
		RETURNING ` + slotColumns

	slot, err := scanSlot(r.QueryRow(ctx, query, slotID, studentID, now), r.now())
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reserve seat: %w", err)
	}

	return slot, nil
}

// ReleaseSeat освобождает место в слоте
func (r *PostgresSlotRepository) ReleaseSeat(ctx context.Context, slotID int64) error {
	query := `
		UPDATE time_slots
		SET current_students = current_students - 1,
		    is_booked = false,
		    booked_by = CASE WHEN max_students = 1 THEN NULL ELSE booked_by END,
		    updated_at = now()
		WHERE id = $1 AND current_students > 0
	`

	affected, err := r.ExecAffected(ctx, query, slotID)
	if err != nil {
		return fmt.Errorf("release seat: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("release seat: slot %d not found or empty", slotID)
	}

	return nil
}

// Deactivate деактивирует слот
func (r *PostgresSlotRepository) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE time_slots SET is_active = false, updated_at = now() WHERE id = $1`

	affected, err := r.ExecAffected(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivate slot: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("slot not found")
	}

	return nil
}

// DeactivateExpired деактивирует все прошедшие конкретные слоты, история бронирований сохраняется
func (r *PostgresSlotRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE time_slots
		SET is_active = false, updated_at = now()
		WHERE is_active = true AND is_recurring = false AND end_time < $1
	`

	affected, err := r.ExecAffected(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired slots: %w", err)
	}

	return affected, nil
}

// DeleteExpiredInstances удаляет прошедшие сгенерированные слоты, на которые никто не записывался
func (r *PostgresSlotRepository) DeleteExpiredInstances(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM time_slots s
		WHERE s.template_id IS NOT NULL
		  AND s.end_time < $1
		  AND NOT EXISTS (SELECT 1 FROM bookings b WHERE b.time_slot_id = s.id)
	`

	affected, err := r.ExecAffected(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired instances: %w", err)
	}

	return affected, nil
}

// LockMentor берёт advisory lock ментора до конца транзакции
func (r *PostgresSlotRepository) LockMentor(ctx context.Context, mentorID int64) error {
	if _, err := r.DB().Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, mentorID); err != nil {
		return fmt.Errorf("lock mentor: %w", err)
	}
	return nil
}

func (r *PostgresSlotRepository) querySlots(ctx context.Context, op, query string, args ...any) ([]*model.TimeSlot, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	now := r.now()
	var slots []*model.TimeSlot
	for rows.Next() {
		slot, err := scanSlot(rows, now)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return slots, nil
}

func slotInsertArgs(slot *model.TimeSlot) []any {
	return []any{
		slot.MentorID,
		slot.StartTime,
		slot.EndTime,
		string(slot.Category),
		slot.MaxStudents,
		slot.CurrentStudents,
		slot.IsRecurring,
		timeutil.WeekdayNames(slot.RecurringDays),
		slot.TemplateID,
		slot.Price,
		slot.SessionLink,
		slot.Notes,
		slot.IsActive,
		slot.IsBooked,
		slot.BookedBy,
	}
}

// scanSlot читает слот; повреждённые даты (NULL, infinity) заменяются на now
func scanSlot(row rowScanner, now time.Time) (*model.TimeSlot, error) {
	dest, build := slotScanTarget(now)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return build(), nil
}

// slotScanTarget отдаёт приёмники для колонок слота и функцию сборки слота после Scan
func slotScanTarget(now time.Time) ([]any, func() *model.TimeSlot) {
	var (
		slot      model.TimeSlot
		start     pgtype.Timestamptz
		end       pgtype.Timestamptz
		category  string
		days      []string
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)

	dest := []any{
		&slot.ID, &slot.MentorID, &start, &end, &category, &slot.MaxStudents, &slot.CurrentStudents,
		&slot.IsRecurring, &days, &slot.TemplateID, &slot.Price, &slot.SessionLink, &slot.Notes,
		&slot.IsActive, &slot.IsBooked, &slot.BookedBy, &createdAt, &updatedAt,
	}

	build := func() *model.TimeSlot {
		slot.StartTime = timeutil.OrNow(start, now)
		slot.EndTime = timeutil.OrNow(end, now)
		slot.CreatedAt = timeutil.OrNow(createdAt, now)
		slot.UpdatedAt = timeutil.OrNow(updatedAt, now)
		slot.Category = model.SessionCategory(category)
		for _, name := range days {
			if d, err := timeutil.ParseWeekday(name); err == nil {
				slot.RecurringDays = append(slot.RecurringDays, d)
			}
		}
		return &slot
	}

	return dest, build
}
