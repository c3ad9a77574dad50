package httpapi

import (
	"time"

	"github.com/Freeeeeet/wellness_booking/internal/model"
	"github.com/Freeeeeet/wellness_booking/internal/service"
	"github.com/Freeeeeet/wellness_booking/internal/timeutil"
)

// createSlotBody тело POST /slots. Время принимается в любом формате DateLike.
type createSlotBody struct {
	StartTime     timeutil.DateLike `json:"start_time"`
	EndTime       timeutil.DateLike `json:"end_time"`
	Category      string            `json:"category"`
	MaxStudents   *int              `json:"max_students"`
	IsRecurring   bool              `json:"is_recurring"`
	RecurringDays []string          `json:"recurring_days"`
	Price         int64             `json:"price"`
	SessionLink   string            `json:"session_link"`
	Notes         string            `json:"notes"`
}

func (b createSlotBody) toRequest(mentorID int64) service.CreateSlotRequest {
	maxStudents := 1
	if b.MaxStudents != nil {
		maxStudents = *b.MaxStudents
	}
	return service.CreateSlotRequest{
		MentorID:      mentorID,
		StartTime:     b.StartTime.Time,
		EndTime:       b.EndTime.Time,
		Category:      b.Category,
		MaxStudents:   maxStudents,
		IsRecurring:   b.IsRecurring,
		RecurringDays: b.RecurringDays,
		Price:         b.Price,
		SessionLink:   b.SessionLink,
		Notes:         b.Notes,
	}
}

type rescheduleBody struct {
	NewSlotID int64 `json:"new_slot_id" binding:"required,gt=0"`
}

type slotResponse struct {
	ID              int64             `json:"id"`
	MentorID        int64             `json:"mentor_id"`
	StartTime       timeutil.DateLike `json:"start_time"`
	EndTime         timeutil.DateLike `json:"end_time"`
	DurationMinutes int               `json:"duration_minutes"`
	Category        string            `json:"category"`
	MaxStudents     int               `json:"max_students"`
	CurrentStudents int               `json:"current_students"`
	IsRecurring     bool              `json:"is_recurring"`
	RecurringDays   []string          `json:"recurring_days"`
	TemplateID      *int64            `json:"template_id,omitempty"`
	Price           int64             `json:"price"`
	SessionLink     string            `json:"session_link,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	IsActive        bool              `json:"is_active"`
	IsBooked        bool              `json:"is_booked"`
	BookedBy        *int64            `json:"booked_by,omitempty"`
}

func toSlotResponse(s *model.TimeSlot) *slotResponse {
	if s == nil {
		return nil
	}
	return &slotResponse{
		ID:              s.ID,
		MentorID:        s.MentorID,
		StartTime:       dateLike(&s.StartTime),
		EndTime:         dateLike(&s.EndTime),
		DurationMinutes: s.DurationMinutes(),
		Category:        string(s.Category),
		MaxStudents:     s.MaxStudents,
		CurrentStudents: s.CurrentStudents,
		IsRecurring:     s.IsRecurring,
		RecurringDays:   timeutil.WeekdayNames(s.RecurringDays),
		TemplateID:      s.TemplateID,
		Price:           s.Price,
		SessionLink:     s.SessionLink,
		Notes:           s.Notes,
		IsActive:        s.IsActive,
		IsBooked:        s.IsBooked,
		BookedBy:        s.BookedBy,
	}
}

func toSlotResponses(slots []*model.TimeSlot) []*slotResponse {
	out := make([]*slotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotResponse(s))
	}
	return out
}

// bookingResponse плоское представление бронирования с раскрытым состоянием
type bookingResponse struct {
	ID               int64             `json:"id"`
	TimeSlotID       int64             `json:"time_slot_id"`
	StudentID        int64             `json:"student_id"`
	MentorID         int64             `json:"mentor_id"`
	Category         string            `json:"category"`
	Status           string            `json:"status"`
	IsDelayed        bool              `json:"is_delayed"`
	ManualStartTime  timeutil.DateLike `json:"manual_start_time"`
	ActualEndTime    timeutil.DateLike `json:"actual_end_time"`
	CompletionReason string            `json:"completion_reason,omitempty"`
	ExpectedDuration int               `json:"expected_duration"`
	ActualDuration   *int              `json:"actual_duration"`
	Price            int64             `json:"price"`
	PaymentStatus    string            `json:"payment_status"`
	CancelledBy      *int64            `json:"cancelled_by,omitempty"`
	RescheduledToID  *int64            `json:"rescheduled_to_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	Slot             *slotResponse     `json:"slot,omitempty"`
}

func toBookingResponse(b *model.Booking) *bookingResponse {
	cols := model.Columns(stateOf(b))
	return &bookingResponse{
		ID:               b.ID,
		TimeSlotID:       b.TimeSlotID,
		StudentID:        b.StudentID,
		MentorID:         b.MentorID,
		Category:         string(b.Category),
		Status:           string(cols.Status),
		IsDelayed:        cols.IsDelayed,
		ManualStartTime:  dateLike(cols.ManualStartTime),
		ActualEndTime:    dateLike(cols.ActualEndTime),
		CompletionReason: b.CompletionReason(),
		ExpectedDuration: b.ExpectedDuration,
		ActualDuration:   b.ActualDuration,
		Price:            b.Price,
		PaymentStatus:    string(b.PaymentStatus),
		CancelledBy:      b.CancelledBy,
		RescheduledToID:  cols.RescheduledToID,
		CreatedAt:        b.CreatedAt,
		Slot:             toSlotResponse(b.Slot),
	}
}

func toBookingResponses(bookings []*model.Booking) []*bookingResponse {
	out := make([]*bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResponse(b))
	}
	return out
}

func stateOf(b *model.Booking) model.SessionState {
	if b.State == nil {
		return model.Scheduled{}
	}
	return b.State
}

func dateLike(t *time.Time) timeutil.DateLike {
	if t == nil || t.IsZero() {
		return timeutil.DateLike{}
	}
	return timeutil.DateLike{Time: *t, Valid: true}
}
