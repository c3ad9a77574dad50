package service

import (
	"testing"
	"time"

	"github.com/Freeeeeet/wellness_booking/internal/model"
	"go.uber.org/zap"
)

const (
	mentorID     int64 = 1
	otherMentor  int64 = 2
	studentA     int64 = 10
	studentB     int64 = 11
	adminID      int64 = 99
	outsiderUser int64 = 50
)

// понедельник, 2 марта 2026
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(day time.Time, hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type testEnv struct {
	store    *fakeStore
	clock    *fakeClock
	notifier *fakeNotifier

	bookings   *BookingService
	slots      *SlotService
	generator  *Generator
	reconciler *Reconciler
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()

	store := newFakeStore()
	store.addUser(mentorID, model.RoleMentor)
	store.addUser(otherMentor, model.RoleMentor)
	store.addUser(studentA, model.RoleUser)
	store.addUser(studentB, model.RoleUser)
	store.addUser(outsiderUser, model.RoleUser)
	store.addUser(adminID, model.RoleAdmin)

	clock := newFakeClock(now)
	notifier := &fakeNotifier{}
	logger := zap.NewNop()
	repos := store.repos()

	gen := NewGenerator(repos.Slots, time.UTC, 7, logger)
	gen.now = clock.Now

	slots := NewSlotService(repos.Slots, repos.Users, gen, notifier, logger)
	slots.now = clock.Now

	bookings := NewBookingService(repos, &fakeTxManager{store: store}, notifier, DefaultOnTimeTolerance, logger)
	bookings.now = clock.Now

	rec := NewReconciler(repos, notifier, DefaultOnTimeTolerance, logger)
	rec.now = clock.Now

	return &testEnv{
		store:      store,
		clock:      clock,
		notifier:   notifier,
		bookings:   bookings,
		slots:      slots,
		generator:  gen,
		reconciler: rec,
	}
}

// oneOffSlot активный разовый слот ментора
func (e *testEnv) oneOffSlot(mentor int64, start, end time.Time, capacity int) *model.TimeSlot {
	return e.store.addSlot(&model.TimeSlot{
		MentorID:    mentor,
		StartTime:   start,
		EndTime:     end,
		Category:    model.CategoryYoga,
		MaxStudents: capacity,
		Price:       1500,
		IsActive:    true,
	})
}
