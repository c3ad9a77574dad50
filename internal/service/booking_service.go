package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/wellness_booking/internal/apperror"
	"github.com/Freeeeeet/wellness_booking/internal/model"
	"github.com/Freeeeeet/wellness_booking/internal/notify"
	"github.com/Freeeeeet/wellness_booking/internal/repository"
	"go.uber.org/zap"
)

// DefaultOnTimeTolerance старт позже планового начала на большее время считается опозданием
const DefaultOnTimeTolerance = 5 * time.Minute

type BookingService struct {
	repos     repository.Repositories
	tx        repository.TxManager
	dispatch  dispatcher
	tolerance time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewBookingService(
	repos repository.Repositories,
	tx repository.TxManager,
	notifier Notifier,
	tolerance time.Duration,
	logger *zap.Logger,
) *BookingService {
	if tolerance < 0 {
		tolerance = DefaultOnTimeTolerance
	}
	return &BookingService{
		repos:     repos,
		tx:        tx,
		dispatch:  dispatcher{users: repos.Users, notifier: notifier, logger: logger},
		tolerance: tolerance,
		now:       systemClock,
		logger:    logger,
	}
}

// Book бронирует место в слоте для студента.
// Место занимается условным UPDATE в той же транзакции, что и создание бронирования,
// поэтому успешных бронирований не бывает больше, чем мест.
func (s *BookingService) Book(ctx context.Context, slotID, studentID int64) (*model.Booking, error) {
	if slotID <= 0 || studentID <= 0 {
		return nil, apperror.Validation("slot id and student id must be positive")
	}

	now := s.now()
	var booking *model.Booking

	err := s.tx.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, err := s.book(ctx, repos, slotID, studentID, now)
		booking = b
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Slot booked",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("student_id", studentID),
		zap.Int64("slot_id", slotID),
		zap.Int64("mentor_id", booking.MentorID),
	)

	s.dispatch.toUsers(ctx, notify.EventSessionScheduled, bookingPayload(booking), booking.StudentID, booking.MentorID)

	return booking, nil
}

// book выполняется внутри транзакции
func (s *BookingService) book(ctx context.Context, repos repository.Repositories, slotID, studentID int64, now time.Time) (*model.Booking, error) {
	slot, err := repos.Slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return nil, apperror.ErrSlotNotFound
	}
	if slot.MentorID == studentID {
		return nil, apperror.ErrOwnSlot
	}
	if err := slotUnavailable(slot, now); err != nil {
		return nil, err
	}

	student, err := repos.Users.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if student == nil {
		return nil, apperror.ErrUserNotFound
	}

	holds, err := repos.Bookings.HasActiveBooking(ctx, slotID, studentID)
	if err != nil {
		return nil, err
	}
	if holds {
		return nil, apperror.ErrAlreadyHoldsSeat
	}

	// проверки пересечений ментора сериализуются до конца транзакции
	if err := repos.Slots.LockMentor(ctx, slot.MentorID); err != nil {
		return nil, err
	}
	if err := checkMentorConflict(ctx, repos.Bookings, slot.MentorID, slot.StartTime, slot.EndTime, slot.ID); err != nil {
		return nil, err
	}

	reserved, err := repos.Slots.ReserveSeat(ctx, slotID, studentID, now)
	if err != nil {
		return nil, err
	}
	if reserved == nil {
		// слот изменился между чтением и UPDATE, перечитываем для точной причины
		fresh, err := repos.Slots.GetByID(ctx, slotID)
		if err != nil {
			return nil, fmt.Errorf("get slot: %w", err)
		}
		if fresh == nil {
			return nil, apperror.ErrSlotNotFound
		}
		if err := slotUnavailable(fresh, now); err != nil {
			return nil, err
		}
		return nil, apperror.ErrSlotAlreadyBooked
	}

	booking := model.NewBooking(reserved, studentID)
	if err := repos.Bookings.Create(ctx, booking); err != nil {
		if errors.Is(err, repository.ErrDuplicateActiveBooking) {
			return nil, apperror.ErrAlreadyHoldsSeat.Wrap(err)
		}
		return nil, err
	}

	return booking, nil
}

// slotUnavailable причина, по которой слот нельзя забронировать; nil если можно
func slotUnavailable(slot *model.TimeSlot, now time.Time) error {
	switch {
	case slot.IsRecurring:
		return apperror.ErrSlotIsTemplate
	case !slot.IsActive:
		return apperror.ErrSlotInactive
	case !slot.StartTime.After(now):
		return apperror.ErrSlotStarted
	case !slot.HasCapacity():
		return apperror.ErrSlotAlreadyBooked
	}
	return nil
}

// CheckMentorConflict возвращает ErrMentorOverlap, если у ментора есть активная сессия,
// пересекающаяся с [start, end). Слот excludeSlotID не учитывается.
func (s *BookingService) CheckMentorConflict(ctx context.Context, mentorID int64, start, end time.Time, excludeSlotID int64) error {
	if !start.Before(end) {
		return apperror.Validation("start must be before end")
	}
	return checkMentorConflict(ctx, s.repos.Bookings, mentorID, start, end, excludeSlotID)
}

func checkMentorConflict(ctx context.Context, bookings repository.BookingRepository, mentorID int64, start, end time.Time, excludeSlotID int64) error {
	existing, err := bookings.FindMentorOverlaps(ctx, mentorID, start, end, excludeSlotID)
	if err != nil {
		return err
	}
	for _, b := range existing {
		if b.Slot != nil && model.Overlaps(start, end, b.Slot.StartTime, b.Slot.EndTime) {
			return apperror.ErrMentorOverlap
		}
	}
	return nil
}

// ManualStart ментор начинает сессию
func (s *BookingService) ManualStart(ctx context.Context, bookingID, mentorID int64) (*model.Booking, error) {
	booking, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := rejectTerminal(booking); err != nil {
		return nil, err
	}
	if booking.MentorID != mentorID {
		return nil, apperror.ErrNotSlotOwner
	}

	now := s.now()
	old := booking.Status()
	if err := booking.Start(now, booking.Slot.StartTime, s.tolerance); err != nil {
		return nil, err
	}

	if err := s.saveState(ctx, booking, old); err != nil {
		return nil, err
	}

	s.logger.Info("Session started",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("mentor_id", mentorID),
		zap.Bool("is_delayed", booking.IsDelayed()),
	)

	s.dispatch.toUsers(ctx, notify.EventSessionStarted, bookingPayload(booking), booking.StudentID)
	s.dispatch.status(ctx, statusUpdate(booking, old, now, model.ReasonManualStart))

	return booking, nil
}

// Cancel отменяет запланированную сессию и освобождает место в слоте.
// Отменить может студент, ментор слота или администратор.
func (s *BookingService) Cancel(ctx context.Context, bookingID, actorID int64) (*model.Booking, error) {
	now := s.now()
	var booking *model.Booking
	var old model.BookingStatus

	err := s.tx.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, err := loadBooking(ctx, repos.Bookings, bookingID)
		if err != nil {
			return err
		}
		if err := rejectTerminal(b); err != nil {
			return err
		}
		if err := s.authorizeParticipant(ctx, repos.Users, b, actorID); err != nil {
			return err
		}

		old = b.Status()
		if err := b.Cancel(now); err != nil {
			return err
		}
		b.CancelledBy = &actorID

		if err := saveState(ctx, repos.Bookings, b, old); err != nil {
			return err
		}
		if err := repos.Slots.ReleaseSeat(ctx, b.TimeSlotID); err != nil {
			return err
		}

		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Session cancelled",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("cancelled_by", actorID),
		zap.String("payment_status", string(booking.PaymentStatus)),
	)

	s.dispatch.toUsers(ctx, notify.EventSessionCancelled, bookingPayload(booking), booking.StudentID, booking.MentorID)
	s.dispatch.status(ctx, statusUpdate(booking, old, now, model.ReasonCancelled))

	return booking, nil
}

// MarkNoShow собеседник не подключился к начатой сессии
func (s *BookingService) MarkNoShow(ctx context.Context, bookingID, mentorID int64) (*model.Booking, error) {
	booking, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := rejectTerminal(booking); err != nil {
		return nil, err
	}
	if booking.MentorID != mentorID {
		return nil, apperror.ErrNotSlotOwner
	}

	now := s.now()
	old := booking.Status()
	if err := booking.MarkNoShow(now); err != nil {
		return nil, err
	}

	if err := s.saveState(ctx, booking, old); err != nil {
		return nil, err
	}

	s.logger.Info("Session marked as no-show", zap.Int64("booking_id", booking.ID), zap.Int64("mentor_id", mentorID))

	s.dispatch.toUsers(ctx, notify.EventSessionNoShow, bookingPayload(booking), booking.StudentID)
	s.dispatch.status(ctx, statusUpdate(booking, old, now, model.ReasonNoShow))

	return booking, nil
}

// Reschedule переносит пропущенную сессию на новый слот.
// Старое бронирование становится RESCHEDULED, новое создаётся тем же путём, что и Book.
func (s *BookingService) Reschedule(ctx context.Context, bookingID, newSlotID, actorID int64) (*model.Booking, error) {
	if newSlotID <= 0 {
		return nil, apperror.Validation("new slot id must be positive")
	}

	now := s.now()
	var old, created *model.Booking

	err := s.tx.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, err := loadBooking(ctx, repos.Bookings, bookingID)
		if err != nil {
			return err
		}
		if err := rejectTerminal(b); err != nil {
			return err
		}
		if err := s.authorizeParticipant(ctx, repos.Users, b, actorID); err != nil {
			return err
		}
		if b.Status() != model.BookingStatusNoShow {
			return apperror.InvalidTransition("only a no-show session can be rescheduled, current status %s", b.Status())
		}

		nb, err := s.book(ctx, repos, newSlotID, b.StudentID, now)
		if err != nil {
			return err
		}

		if err := b.MarkRescheduled(now, nb.ID); err != nil {
			return err
		}
		if err := saveState(ctx, repos.Bookings, b, model.BookingStatusNoShow); err != nil {
			return err
		}

		old, created = b, nb
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Session rescheduled",
		zap.Int64("booking_id", old.ID),
		zap.Int64("new_booking_id", created.ID),
		zap.Int64("new_slot_id", newSlotID),
	)

	s.dispatch.toUsers(ctx, notify.EventSessionRescheduled, bookingPayload(created), created.StudentID, created.MentorID)
	s.dispatch.status(ctx, statusUpdate(old, model.BookingStatusNoShow, now, model.ReasonRescheduled))

	return created, nil
}

// GetBooking бронирование вместе со слотом
func (s *BookingService) GetBooking(ctx context.Context, bookingID int64) (*model.Booking, error) {
	return loadBooking(ctx, s.repos.Bookings, bookingID)
}

// ListStudentBookings бронирования студента, по умолчанию все статусы
func (s *BookingService) ListStudentBookings(ctx context.Context, studentID int64, statuses ...model.BookingStatus) ([]*model.Booking, error) {
	return s.repos.Bookings.List(ctx, repository.BookingFilter{StudentID: &studentID, Statuses: statuses})
}

// ListMentorBookings бронирования ментора в диапазоне начала слотов
func (s *BookingService) ListMentorBookings(ctx context.Context, mentorID int64, from, to time.Time, statuses ...model.BookingStatus) ([]*model.Booking, error) {
	return s.repos.Bookings.List(ctx, repository.BookingFilter{MentorID: &mentorID, From: from, To: to, Statuses: statuses})
}

func (s *BookingService) saveState(ctx context.Context, b *model.Booking, expected model.BookingStatus) error {
	return saveState(ctx, s.repos.Bookings, b, expected)
}

// authorizeParticipant студент, ментор сессии или администратор
func (s *BookingService) authorizeParticipant(ctx context.Context, users repository.UserRepository, b *model.Booking, actorID int64) error {
	if actorID == b.StudentID || actorID == b.MentorID {
		return nil
	}
	actor, err := users.GetByID(ctx, actorID)
	if err != nil {
		return fmt.Errorf("get actor: %w", err)
	}
	if actor != nil && actor.IsAdmin() {
		return nil
	}
	return apperror.ErrNotParticipant
}

// rejectTerminal завершённая или отменённая сессия неизменяема для любого актора
func rejectTerminal(b *model.Booking) error {
	if st := b.Status(); st.IsTerminal() {
		return apperror.InvalidTransition("session is already %s, no further transitions are allowed", st)
	}
	return nil
}

func loadBooking(ctx context.Context, bookings repository.BookingRepository, id int64) (*model.Booking, error) {
	if id <= 0 {
		return nil, apperror.Validation("booking id must be positive")
	}
	b, err := bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil || b.Slot == nil {
		return nil, apperror.ErrBookingNotFound
	}
	return b, nil
}

// saveState условная запись: не пройдёт, если статус успели изменить
func saveState(ctx context.Context, bookings repository.BookingRepository, b *model.Booking, expected model.BookingStatus) error {
	ok, err := bookings.UpdateState(ctx, b, expected)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.ErrConcurrentUpdate
	}
	return nil
}
