package httpapi

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/Freeeeeet/wellness_booking/internal/apperror"
	"github.com/Freeeeeet/wellness_booking/internal/model"
)

// Book POST /api/v1/slots/:id/bookings
func (h *Handler) Book(c *gin.Context) {
	slotID, valid := pathID(c, "id")
	if !valid {
		return
	}
	b, err := h.bookings.Book(c.Request.Context(), slotID, actorID(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	created(c, toBookingResponse(b))
}

// GetBooking GET /api/v1/bookings/:id
// Видят студент, ментор сессии и администратор.
func (h *Handler) GetBooking(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	ctx := c.Request.Context()
	b, err := h.bookings.GetBooking(ctx, id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	if err := h.canSee(ctx, b, actorID(c)); err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, toBookingResponse(b))
}

func (h *Handler) canSee(ctx context.Context, b *model.Booking, actor int64) error {
	if actor == b.StudentID || actor == b.MentorID {
		return nil
	}
	user, err := h.users.GetByID(ctx, actor)
	if err != nil {
		return err
	}
	if user.IsAdmin() {
		return nil
	}
	return apperror.ErrNotParticipant
}

// MyBookings GET /api/v1/me/bookings?status=SCHEDULED&as=mentor&from=&to=
func (h *Handler) MyBookings(c *gin.Context) {
	statuses, valid := queryStatuses(c)
	if !valid {
		return
	}
	ctx := c.Request.Context()

	var (
		list []*model.Booking
		err  error
	)
	switch c.DefaultQuery("as", "student") {
	case "student":
		list, err = h.bookings.ListStudentBookings(ctx, actorID(c), statuses...)
	case "mentor":
		from, to, rangeValid := h.queryRange(c, mentorSpan)
		if !rangeValid {
			return
		}
		list, err = h.bookings.ListMentorBookings(ctx, actorID(c), from, to, statuses...)
	default:
		badRequest(c, "as must be student or mentor")
		return
	}
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, gin.H{"list": toBookingResponses(list)})
}

// StartSession POST /api/v1/bookings/:id/start
func (h *Handler) StartSession(c *gin.Context) {
	h.transition(c, h.bookings.ManualStart)
}

// CancelBooking POST /api/v1/bookings/:id/cancel
func (h *Handler) CancelBooking(c *gin.Context) {
	h.transition(c, h.bookings.Cancel)
}

// MarkNoShow POST /api/v1/bookings/:id/no-show
func (h *Handler) MarkNoShow(c *gin.Context) {
	h.transition(c, h.bookings.MarkNoShow)
}

// Reschedule POST /api/v1/bookings/:id/reschedule
// Отвечает новым бронированием.
func (h *Handler) Reschedule(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var body rescheduleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: new_slot_id is required")
		return
	}
	b, err := h.bookings.Reschedule(c.Request.Context(), id, body.NewSlotID, actorID(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	created(c, toBookingResponse(b))
}

type transitionFunc func(ctx context.Context, bookingID, actorID int64) (*model.Booking, error)

func (h *Handler) transition(c *gin.Context, fn transitionFunc) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	b, err := fn(c.Request.Context(), id, actorID(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, toBookingResponse(b))
}
