package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/wellness_booking/internal/model"
	"github.com/Freeeeeet/wellness_booking/internal/notify"
	"github.com/Freeeeeet/wellness_booking/internal/repository"
)

// fakeStore in-memory замена PostgreSQL для тестов сервисов.
// Хранит копии, чтобы сервис не мог изменить данные в обход репозитория.
type fakeStore struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	slots    map[int64]*model.TimeSlot
	bookings map[int64]*model.Booking
	users    map[int64]*model.User
	nextSlot int64
	nextBook int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		slots:    make(map[int64]*model.TimeSlot),
		bookings: make(map[int64]*model.Booking),
		users:    make(map[int64]*model.User),
	}
}

func (s *fakeStore) repos() repository.Repositories {
	return repository.Repositories{
		Slots:    &fakeSlotRepo{s},
		Bookings: &fakeBookingRepo{s},
		Users:    &fakeUserRepo{s},
	}
}

func (s *fakeStore) addUser(id int64, role model.Role) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &model.User{ID: id, Role: role, FullName: fmt.Sprintf("user %d", id), Email: fmt.Sprintf("u%d@example.com", id)}
	s.users[id] = u
	return u
}

// addSlot кладёт слот напрямую, минуя проверки сервиса
func (s *fakeStore) addSlot(slot *model.TimeSlot) *model.TimeSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSlot++
	slot.ID = s.nextSlot
	s.slots[slot.ID] = copySlot(slot)
	return slot
}

func (s *fakeStore) slot(id int64) *model.TimeSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySlot(s.slots[id])
}

func (s *fakeStore) booking(id int64) *model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readBooking(id)
}

// setBooking перезаписывает бронирование (подготовка состояния в тестах)
func (s *fakeStore) setBooking(b *model.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	cp.Slot = nil
	s.bookings[b.ID] = &cp
}

func (s *fakeStore) slotsOfTemplate(templateID int64) []*model.TimeSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.TimeSlot
	for _, sl := range s.sortedSlots() {
		if sl.TemplateID != nil && *sl.TemplateID == templateID {
			out = append(out, copySlot(sl))
		}
	}
	return out
}

func (s *fakeStore) readBooking(id int64) *model.Booking {
	b, ok := s.bookings[id]
	if !ok {
		return nil
	}
	cp := *b
	cp.Slot = copySlot(s.slots[b.TimeSlotID])
	return &cp
}

func (s *fakeStore) sortedSlots() []*model.TimeSlot {
	out := make([]*model.TimeSlot, 0, len(s.slots))
	for _, sl := range s.slots {
		out = append(out, sl)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *fakeStore) snapshot() (map[int64]*model.TimeSlot, map[int64]*model.Booking, int64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slots := make(map[int64]*model.TimeSlot, len(s.slots))
	for id, sl := range s.slots {
		slots[id] = copySlot(sl)
	}
	bookings := make(map[int64]*model.Booking, len(s.bookings))
	for id, b := range s.bookings {
		cp := *b
		bookings[id] = &cp
	}
	return slots, bookings, s.nextSlot, s.nextBook
}

func (s *fakeStore) restore(slots map[int64]*model.TimeSlot, bookings map[int64]*model.Booking, nextSlot, nextBook int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots, s.bookings, s.nextSlot, s.nextBook = slots, bookings, nextSlot, nextBook
}

func copySlot(sl *model.TimeSlot) *model.TimeSlot {
	if sl == nil {
		return nil
	}
	cp := *sl
	cp.RecurringDays = append([]time.Weekday(nil), sl.RecurringDays...)
	return &cp
}

func isActiveStatus(st model.BookingStatus) bool {
	return st == model.BookingStatusScheduled || st == model.BookingStatusOngoing
}

// fakeTxManager сериализует транзакции и откатывает изменения при ошибке
type fakeTxManager struct {
	store *fakeStore
}

func (m *fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	m.store.txMu.Lock()
	defer m.store.txMu.Unlock()

	slots, bookings, nextSlot, nextBook := m.store.snapshot()
	if err := fn(ctx, m.store.repos()); err != nil {
		m.store.restore(slots, bookings, nextSlot, nextBook)
		return err
	}
	return nil
}

type fakeSlotRepo struct{ s *fakeStore }

func (r *fakeSlotRepo) Create(_ context.Context, slot *model.TimeSlot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextSlot++
	slot.ID = r.s.nextSlot
	r.s.slots[slot.ID] = copySlot(slot)
	return nil
}

func (r *fakeSlotRepo) CreateIfAbsent(ctx context.Context, slot *model.TimeSlot) (bool, error) {
	r.s.mu.Lock()
	for _, sl := range r.s.slots {
		if sl.TemplateID != nil && slot.TemplateID != nil && *sl.TemplateID == *slot.TemplateID && sl.StartTime.Equal(slot.StartTime) {
			r.s.mu.Unlock()
			return false, nil
		}
	}
	r.s.mu.Unlock()
	return true, r.Create(ctx, slot)
}

func (r *fakeSlotRepo) GetByID(_ context.Context, id int64) (*model.TimeSlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return copySlot(r.s.slots[id]), nil
}

func (r *fakeSlotRepo) List(_ context.Context, f repository.SlotFilter) ([]*model.TimeSlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.TimeSlot
	for _, sl := range r.s.sortedSlots() {
		switch {
		case f.MentorID != nil && sl.MentorID != *f.MentorID,
			f.Category != nil && sl.Category != *f.Category,
			f.IsRecurring != nil && sl.IsRecurring != *f.IsRecurring,
			f.OnlyActive && !sl.IsActive,
			f.OnlyAvailable && (!sl.IsActive || sl.IsRecurring || !sl.HasCapacity()),
			!f.From.IsZero() && sl.StartTime.Before(f.From),
			!f.To.IsZero() && !sl.StartTime.Before(f.To):
			continue
		}
		out = append(out, copySlot(sl))
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (r *fakeSlotRepo) ListActiveTemplates(_ context.Context) ([]*model.TimeSlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.TimeSlot
	for _, sl := range r.s.sortedSlots() {
		if sl.IsRecurring && sl.IsActive {
			out = append(out, copySlot(sl))
		}
	}
	return out, nil
}

func (r *fakeSlotRepo) SlotExists(_ context.Context, mentorID int64, start time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sl := range r.s.slots {
		if sl.MentorID == mentorID && !sl.IsRecurring && sl.StartTime.Equal(start) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeSlotRepo) FindOverlapping(_ context.Context, mentorID int64, start, end time.Time, excludeID int64) ([]*model.TimeSlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.TimeSlot
	for _, sl := range r.s.sortedSlots() {
		if sl.MentorID == mentorID && sl.IsActive && !sl.IsRecurring && sl.ID != excludeID &&
			model.Overlaps(start, end, sl.StartTime, sl.EndTime) {
			out = append(out, copySlot(sl))
		}
	}
	return out, nil
}

func (r *fakeSlotRepo) ReserveSeat(_ context.Context, slotID, studentID int64, now time.Time) (*model.TimeSlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sl, ok := r.s.slots[slotID]
	if !ok || !sl.IsActive || sl.IsRecurring || !sl.HasCapacity() || !sl.StartTime.After(now) {
		return nil, nil
	}
	sl.CurrentStudents++
	sl.IsBooked = model.IsBookedFor(sl.CurrentStudents, sl.MaxStudents)
	if sl.MaxStudents == 1 {
		id := studentID
		sl.BookedBy = &id
	}
	return copySlot(sl), nil
}

func (r *fakeSlotRepo) ReleaseSeat(_ context.Context, slotID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sl, ok := r.s.slots[slotID]
	if !ok || sl.CurrentStudents == 0 {
		return fmt.Errorf("release seat: slot %d not found or empty", slotID)
	}
	sl.CurrentStudents--
	sl.IsBooked = false
	if sl.MaxStudents == 1 {
		sl.BookedBy = nil
	}
	return nil
}

func (r *fakeSlotRepo) Deactivate(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sl, ok := r.s.slots[id]; ok {
		sl.IsActive = false
	}
	return nil
}

func (r *fakeSlotRepo) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, sl := range r.s.slots {
		if sl.IsActive && !sl.IsRecurring && sl.EndTime.Before(now) {
			sl.IsActive = false
			n++
		}
	}
	return n, nil
}

func (r *fakeSlotRepo) DeleteExpiredInstances(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	booked := make(map[int64]bool)
	for _, b := range r.s.bookings {
		booked[b.TimeSlotID] = true
	}
	var n int64
	for id, sl := range r.s.slots {
		if sl.TemplateID != nil && sl.EndTime.Before(now) && !booked[id] {
			delete(r.s.slots, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeSlotRepo) LockMentor(context.Context, int64) error {
	return nil
}

type fakeBookingRepo struct{ s *fakeStore }

func (r *fakeBookingRepo) Create(_ context.Context, b *model.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ex := range r.s.bookings {
		if ex.TimeSlotID == b.TimeSlotID && ex.StudentID == b.StudentID && isActiveStatus(ex.Status()) {
			return repository.ErrDuplicateActiveBooking
		}
	}
	r.s.nextBook++
	b.ID = r.s.nextBook
	cp := *b
	cp.Slot = nil
	r.s.bookings[b.ID] = &cp
	return nil
}

func (r *fakeBookingRepo) GetByID(_ context.Context, id int64) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.readBooking(id), nil
}

func (r *fakeBookingRepo) List(_ context.Context, f repository.BookingFilter) ([]*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Booking
	for id := range r.s.bookings {
		b := r.s.readBooking(id)
		switch {
		case f.MentorID != nil && b.MentorID != *f.MentorID,
			f.StudentID != nil && b.StudentID != *f.StudentID,
			len(f.Statuses) > 0 && !containsStatus(f.Statuses, b.Status()),
			f.IsDelayed != nil && b.IsDelayed() != *f.IsDelayed,
			!f.From.IsZero() && b.Slot.StartTime.Before(f.From),
			!f.To.IsZero() && !b.Slot.StartTime.Before(f.To):
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Slot.StartTime.Equal(out[j].Slot.StartTime) {
			return out[i].Slot.StartTime.Before(out[j].Slot.StartTime)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *fakeBookingRepo) FindMentorOverlaps(_ context.Context, mentorID int64, start, end time.Time, excludeSlotID int64) ([]*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Booking
	for id := range r.s.bookings {
		b := r.s.readBooking(id)
		if b.MentorID == mentorID && isActiveStatus(b.Status()) && b.TimeSlotID != excludeSlotID &&
			model.Overlaps(start, end, b.Slot.StartTime, b.Slot.EndTime) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) HasActiveBooking(_ context.Context, slotID, studentID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.bookings {
		if b.TimeSlotID == slotID && b.StudentID == studentID && isActiveStatus(b.Status()) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeBookingRepo) UpdateState(_ context.Context, b *model.Booking, expected model.BookingStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.bookings[b.ID]
	if !ok || cur.Status() != expected {
		return false, nil
	}
	if was := cur.ManualStartTime(); was != nil {
		if now := b.ManualStartTime(); now == nil || !now.Equal(*was) {
			return false, nil
		}
	}
	cp := *b
	cp.Slot = nil
	r.s.bookings[b.ID] = &cp
	return true, nil
}

func (r *fakeBookingRepo) FlagDelayed(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return false, nil
	}
	return b.FlagDelayed(), nil
}

func containsStatus(list []model.BookingStatus, st model.BookingStatus) bool {
	for _, s := range list {
		if s == st {
			return true
		}
	}
	return false
}

type fakeUserRepo struct{ s *fakeStore }

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

type sentNotification struct {
	Event  notify.Event
	UserID int64
}

type fakeNotifier struct {
	mu       sync.Mutex
	sent     []sentNotification
	statuses []model.StatusUpdate
}

func (n *fakeNotifier) Notify(_ context.Context, event notify.Event, recipient notify.Recipient, _ notify.Payload) notify.Outcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Event: event, UserID: recipient.UserID})
	return notify.Outcome{Queued: true}
}

func (n *fakeNotifier) PublishStatus(_ context.Context, update model.StatusUpdate) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, update)
}

func (n *fakeNotifier) events(event notify.Event) []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	var users []int64
	for _, s := range n.sent {
		if s.Event == event {
			users = append(users, s.UserID)
		}
	}
	return users
}

// fakeClock управляемые часы
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}
