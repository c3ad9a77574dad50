package model

import (
	"time"

	"github.com/Freeeeeet/wellness_booking/internal/apperror"
)

// Booking бронирование студента на конкретный слот (сессия)
type Booking struct {
	ID               int64           `json:"id"`
	TimeSlotID       int64           `json:"time_slot_id"`
	StudentID        int64           `json:"student_id"`
	MentorID         int64           `json:"mentor_id"`
	Category         SessionCategory `json:"category"`
	State            SessionState    `json:"-"`
	ExpectedDuration int             `json:"expected_duration"` // в минутах
	ActualDuration   *int            `json:"actual_duration"`   // в минутах, после завершения
	Price            int64           `json:"price"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	CancelledBy      *int64          `json:"cancelled_by"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`

	// Дополнительные поля для удобства (не из таблицы bookings)
	Slot *TimeSlot `json:"slot,omitempty"`
}

// NewBooking создаёт бронирование в статусе SCHEDULED по данным слота
func NewBooking(slot *TimeSlot, studentID int64) *Booking {
	return &Booking{
		TimeSlotID:       slot.ID,
		StudentID:        studentID,
		MentorID:         slot.MentorID,
		Category:         slot.Category,
		State:            Scheduled{},
		ExpectedDuration: slot.DurationMinutes(),
		Price:            slot.Price,
		PaymentStatus:    PaymentStatusPending,
		Slot:             slot,
	}
}

func (b *Booking) Status() BookingStatus {
	if b.State == nil {
		return BookingStatusScheduled
	}
	return b.State.Status()
}

func (b *Booking) IsDelayed() bool {
	return Columns(b.state()).IsDelayed
}

func (b *Booking) ManualStartTime() *time.Time {
	return Columns(b.state()).ManualStartTime
}

func (b *Booking) ActualEndTime() *time.Time {
	return Columns(b.state()).ActualEndTime
}

func (b *Booking) CompletionReason() string {
	if r := Columns(b.state()).CompletionReason; r != nil {
		return *r
	}
	return ""
}

func (b *Booking) state() SessionState {
	if b.State == nil {
		return Scheduled{}
	}
	return b.State
}

// FlagDelayed отмечает запланированную сессию как опаздывающую.
// Возвращает false, если отмечать нечего (уже отмечена или не SCHEDULED).
func (b *Booking) FlagDelayed() bool {
	st, ok := b.state().(Scheduled)
	if !ok || st.Delayed {
		return false
	}
	b.State = Scheduled{Delayed: true}
	return true
}

// Start ручной старт сессии ментором.
// Сессия считается опоздавшей, если старт позже планового начала больше чем на tolerance
// или обход уже успел отметить её опоздавшей. Отметку обхода старт не снимает.
func (b *Booking) Start(now, plannedStart time.Time, tolerance time.Duration) error {
	st, ok := b.state().(Scheduled)
	if !ok {
		return apperror.InvalidTransition("session cannot be started from status %s", b.Status())
	}
	b.State = Started{
		At:         now,
		WasDelayed: st.Delayed || LateStart(now, plannedStart, tolerance),
	}
	return nil
}

// LateStart старт позже планового начала больше чем на tolerance
func LateStart(startedAt, plannedStart time.Time, tolerance time.Duration) bool {
	return startedAt.After(plannedStart.Add(tolerance))
}

// Cancel отмена возможна только до начала сессии
func (b *Booking) Cancel(now time.Time) error {
	st, ok := b.state().(Scheduled)
	if !ok {
		return apperror.InvalidTransition("session cannot be cancelled from status %s", b.Status())
	}
	b.State = Cancelled{At: now, WasDelayed: st.Delayed}
	if b.PaymentStatus == PaymentStatusPaid {
		b.PaymentStatus = PaymentStatusRefunded
	}
	return nil
}

// MarkNoShow собеседник так и не подключился к начатой сессии
func (b *Booking) MarkNoShow(now time.Time) error {
	st, ok := b.state().(Started)
	if !ok {
		return apperror.InvalidTransition("no-show can only be recorded for an ongoing session, current status %s", b.Status())
	}
	b.State = NoShow{StartedAt: st.At, At: now, WasDelayed: st.WasDelayed}
	return nil
}

// Complete завершает идущую сессию
func (b *Booking) Complete(now time.Time, source DurationSource, reason string) error {
	st, ok := b.state().(Started)
	if !ok {
		return apperror.InvalidTransition("session cannot be completed from status %s", b.Status())
	}
	b.State = Completed{
		StartedAt:      st.At,
		EndedAt:        now,
		WasDelayed:     st.WasDelayed,
		DurationSource: source,
		Reason:         reason,
	}
	minutes := int(now.Sub(st.At) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	b.ActualDuration = &minutes
	return nil
}

// MarkRescheduled переносит пропущенную сессию в новое бронирование
func (b *Booking) MarkRescheduled(now time.Time, newBookingID int64) error {
	st, ok := b.state().(NoShow)
	if !ok {
		return apperror.InvalidTransition("only a no-show session can be rescheduled, current status %s", b.Status())
	}
	b.State = Rescheduled{StartedAt: st.StartedAt, At: now, WasDelayed: st.WasDelayed, To: newBookingID}
	return nil
}
