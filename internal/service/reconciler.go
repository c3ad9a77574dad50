package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/wellness_booking/internal/model"
	"github.com/Freeeeeet/wellness_booking/internal/notify"
	"github.com/Freeeeeet/wellness_booking/internal/repository"
	"go.uber.org/zap"
)

// Reconciler обход статусов сессий: отметка опозданий и автозавершение идущих сессий.
// Каждая запись условная, поэтому обход можно запускать параллельно с собой и с операциями бронирования.
type Reconciler struct {
	bookingRepo repository.BookingRepository
	tolerance   time.Duration
	dispatch    dispatcher
	now         func() time.Time
	logger      *zap.Logger
}

func NewReconciler(repos repository.Repositories, notifier Notifier, tolerance time.Duration, logger *zap.Logger) *Reconciler {
	if tolerance < 0 {
		tolerance = DefaultOnTimeTolerance
	}
	return &Reconciler{
		bookingRepo: repos.Bookings,
		tolerance:   tolerance,
		dispatch:    dispatcher{users: repos.Users, notifier: notifier, logger: logger},
		now:         systemClock,
		logger:      logger,
	}
}

// Run выполняет один обход и возвращает все сделанные переходы.
// Ошибка отдельного бронирования логируется и не прерывает обход.
func (r *Reconciler) Run(ctx context.Context) ([]model.StatusUpdate, error) {
	now := r.now()
	updates := make([]model.StatusUpdate, 0)

	delayed, errDelay := r.flagDelayed(ctx, now)
	updates = append(updates, delayed...)

	completed, errComplete := r.completeElapsed(ctx, now)
	updates = append(updates, completed...)

	r.logger.Info("Reconciliation finished",
		zap.Int("delayed", len(delayed)),
		zap.Int("completed", len(completed)),
	)

	return updates, errors.Join(errDelay, errComplete)
}

// flagDelayed SCHEDULED сессии с прошедшим плановым началом отмечаются опоздавшими, статус не меняется
func (r *Reconciler) flagDelayed(ctx context.Context, now time.Time) ([]model.StatusUpdate, error) {
	notDelayed := false
	bookings, err := r.bookingRepo.List(ctx, repository.BookingFilter{
		Statuses:  []model.BookingStatus{model.BookingStatusScheduled},
		IsDelayed: &notDelayed,
		To:        now,
	})
	if err != nil {
		return nil, fmt.Errorf("list scheduled bookings: %w", err)
	}

	var updates []model.StatusUpdate
	for _, b := range bookings {
		if b.Slot == nil || b.Slot.StartTime.After(now) {
			continue
		}

		flagged, err := r.bookingRepo.FlagDelayed(ctx, b.ID)
		if err != nil {
			r.logger.Error("Failed to flag delayed session", zap.Int64("booking_id", b.ID), zap.Error(err))
			continue
		}
		if !flagged {
			continue
		}

		b.FlagDelayed()
		update := statusUpdate(b, model.BookingStatusScheduled, now, model.ReasonStartTimePassed)
		updates = append(updates, update)

		r.dispatch.toUsers(ctx, notify.EventSessionDelayed, bookingPayload(b), b.MentorID)
		r.dispatch.status(ctx, update)
	}

	return updates, nil
}

// completeElapsed завершает идущие сессии, у которых вышло время
func (r *Reconciler) completeElapsed(ctx context.Context, now time.Time) ([]model.StatusUpdate, error) {
	bookings, err := r.bookingRepo.List(ctx, repository.BookingFilter{
		Statuses: []model.BookingStatus{model.BookingStatusOngoing},
	})
	if err != nil {
		return nil, fmt.Errorf("list ongoing bookings: %w", err)
	}

	var updates []model.StatusUpdate
	for _, b := range bookings {
		started, ok := b.State.(model.Started)
		if !ok || b.Slot == nil {
			continue
		}

		end, source, reason := DueEnd(b.Slot, started, r.tolerance)
		if now.Before(end) {
			continue
		}

		if err := b.Complete(now, source, reason); err != nil {
			r.logger.Error("Failed to complete session", zap.Int64("booking_id", b.ID), zap.Error(err))
			continue
		}

		saved, err := r.bookingRepo.UpdateState(ctx, b, model.BookingStatusOngoing)
		if err != nil {
			r.logger.Error("Failed to save completed session", zap.Int64("booking_id", b.ID), zap.Error(err))
			continue
		}
		if !saved {
			// статус успели изменить, обработается при следующем обходе
			r.logger.Debug("Session changed concurrently, skipping", zap.Int64("booking_id", b.ID))
			continue
		}

		update := statusUpdate(b, model.BookingStatusOngoing, now, reason)
		updates = append(updates, update)

		r.dispatch.toUsers(ctx, notify.EventSessionCompleted, bookingPayload(b), b.StudentID, b.MentorID)
		r.dispatch.status(ctx, update)
	}

	return updates, nil
}

// DueEnd момент автозавершения идущей сессии.
// Путь выбирается по фактическому времени старта, а не по флагу is_delayed:
// флаг мог поставить обход до того, как ментор начал сессию в пределах tolerance.
// Вовремя начатая сессия заканчивается в плановое время конца слота.
// Опоздавшая длится полную длительность от ручного старта: длительность слота,
// а если её нельзя определить, то длительность категории.
func DueEnd(slot *model.TimeSlot, started model.Started, tolerance time.Duration) (time.Time, model.DurationSource, string) {
	if !model.LateStart(started.At, slot.StartTime, tolerance) {
		if slot.Duration() > 0 {
			return slot.EndTime, model.DurationSourcePlannedEnd, model.ReasonPlannedEndElapsed
		}
		return started.At.Add(slot.Category.DefaultDuration()), model.DurationSourceCategoryDefault, model.ReasonPlannedEndElapsed
	}

	duration, source := EffectiveDuration(slot)
	return started.At.Add(duration), source, model.ReasonDelayedDurationElapsed
}

// EffectiveDuration длительность слота или длительность категории по умолчанию
func EffectiveDuration(slot *model.TimeSlot) (time.Duration, model.DurationSource) {
	if d := slot.Duration(); d > 0 {
		return d, model.DurationSourceSlot
	}
	return slot.Category.DefaultDuration(), model.DurationSourceCategoryDefault
}
