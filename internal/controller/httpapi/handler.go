package httpapi

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Freeeeeet/wellness_booking/internal/apperror"
	"github.com/Freeeeeet/wellness_booking/internal/model"
	"github.com/Freeeeeet/wellness_booking/internal/service"
	"github.com/Freeeeeet/wellness_booking/internal/timeutil"
)

type SlotService interface {
	CreateSlot(ctx context.Context, req service.CreateSlotRequest) (*model.TimeSlot, error)
	DeactivateSlot(ctx context.Context, slotID, mentorID int64) error
	GetSlot(ctx context.Context, slotID int64) (*model.TimeSlot, error)
	ListMentorSlots(ctx context.Context, mentorID int64, from, to time.Time) ([]*model.TimeSlot, error)
	ListAvailableSlots(ctx context.Context, category *model.SessionCategory, from, to time.Time, limit int) ([]*model.TimeSlot, error)
	DeactivateExpired(ctx context.Context) (int64, error)
}

type BookingService interface {
	Book(ctx context.Context, slotID, studentID int64) (*model.Booking, error)
	ManualStart(ctx context.Context, bookingID, mentorID int64) (*model.Booking, error)
	Cancel(ctx context.Context, bookingID, actorID int64) (*model.Booking, error)
	MarkNoShow(ctx context.Context, bookingID, mentorID int64) (*model.Booking, error)
	Reschedule(ctx context.Context, bookingID, newSlotID, actorID int64) (*model.Booking, error)
	GetBooking(ctx context.Context, bookingID int64) (*model.Booking, error)
	ListStudentBookings(ctx context.Context, studentID int64, statuses ...model.BookingStatus) ([]*model.Booking, error)
	ListMentorBookings(ctx context.Context, mentorID int64, from, to time.Time, statuses ...model.BookingStatus) ([]*model.Booking, error)
}

type Reconciler interface {
	Run(ctx context.Context) ([]model.StatusUpdate, error)
}

type Generator interface {
	GenerateAll(ctx context.Context) (int, error)
	PruneExpired(ctx context.Context, now time.Time) (service.PruneResult, error)
}

type UserDirectory interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// Handler HTTP обработчики поверх сервисного слоя
type Handler struct {
	slots      SlotService
	bookings   BookingService
	reconciler Reconciler
	generator  Generator
	users      UserDirectory
	now        func() time.Time
	logger     *zap.Logger
}

func NewHandler(
	slots SlotService,
	bookings BookingService,
	reconciler Reconciler,
	generator Generator,
	users UserDirectory,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		slots:      slots,
		bookings:   bookings,
		reconciler: reconciler,
		generator:  generator,
		users:      users,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// Health GET /healthz
func (h *Handler) Health(c *gin.Context) {
	ok(c, gin.H{"status": "ok"})
}

// requireAdmin проверяет, что текущий пользователь администратор
func (h *Handler) requireAdmin(c *gin.Context) bool {
	user, err := h.users.GetByID(c.Request.Context(), actorID(c))
	if err != nil {
		fail(c, h.logger, err)
		return false
	}
	if !user.IsAdmin() {
		fail(c, h.logger, apperror.Forbidden("administrator role required"))
		return false
	}
	return true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryTime разбирает время из query в любом формате, который понимает timeutil.ToInstant
func queryTime(c *gin.Context, name string, fallback time.Time) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	t, valid := timeutil.ToInstant(raw)
	if !valid {
		badRequest(c, "invalid "+name+" time")
		return time.Time{}, false
	}
	return t, true
}

// queryRange окно [from, to) с окном по умолчанию от текущего момента
func (h *Handler) queryRange(c *gin.Context, defaultSpan time.Duration) (time.Time, time.Time, bool) {
	from, valid := queryTime(c, "from", h.now())
	if !valid {
		return time.Time{}, time.Time{}, false
	}
	to, valid := queryTime(c, "to", from.Add(defaultSpan))
	if !valid {
		return time.Time{}, time.Time{}, false
	}
	if !to.After(from) {
		badRequest(c, "to must be after from")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func queryStatuses(c *gin.Context) ([]model.BookingStatus, bool) {
	raw := c.QueryArray("status")
	statuses := make([]model.BookingStatus, 0, len(raw))
	for _, s := range raw {
		st, valid := model.ParseBookingStatus(s)
		if !valid {
			badRequest(c, "invalid status "+s)
			return nil, false
		}
		statuses = append(statuses, st)
	}
	return statuses, true
}
