package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Freeeeeet/wellness_booking/internal/apperror"
	"github.com/Freeeeeet/wellness_booking/internal/model"
	"github.com/Freeeeeet/wellness_booking/internal/notify"
)

func validSlotRequest() CreateSlotRequest {
	return CreateSlotRequest{
		MentorID:    mentorID,
		StartTime:   at(monday, 10, 0),
		EndTime:     at(monday, 11, 0),
		Category:    "yoga",
		MaxStudents: 1,
		Price:       1500,
		SessionLink: "https://meet.example.com/abc",
	}
}

func TestCreateSlot_OneOff(t *testing.T) {
	e := newTestEnv(t, at(monday, 8, 0))

	slot, err := e.slots.CreateSlot(context.Background(), validSlotRequest())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if slot.ID == 0 || slot.Category != model.CategoryYoga || !slot.IsActive || slot.IsBooked {
		t.Fatalf("неверный слот: %+v", slot)
	}
	if got := e.notifier.events(notify.EventSlotCreated); len(got) != 1 || got[0] != mentorID {
		t.Fatalf("ожидалось уведомление ментору о новом слоте, получили %v", got)
	}
}

func TestCreateSlot_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(r *CreateSlotRequest)
	}{
		{"нет категории", func(r *CreateSlotRequest) { r.Category = "" }},
		{"неизвестная категория", func(r *CreateSlotRequest) { r.Category = "PILATES" }},
		{"конец раньше начала", func(r *CreateSlotRequest) { r.EndTime = r.StartTime.Add(-1) }},
		{"нулевая длительность", func(r *CreateSlotRequest) { r.EndTime = r.StartTime }},
		{"нет мест", func(r *CreateSlotRequest) { r.MaxStudents = 0 }},
		{"отрицательная цена", func(r *CreateSlotRequest) { r.Price = -1 }},
		{"некорректная ссылка", func(r *CreateSlotRequest) { r.SessionLink = "not a url" }},
		{"начало в прошлом", func(r *CreateSlotRequest) {
			r.StartTime = at(monday, 7, 0)
			r.EndTime = at(monday, 7, 30)
		}},
		{"recurring без дней", func(r *CreateSlotRequest) { r.IsRecurring = true }},
		{"дни без recurring", func(r *CreateSlotRequest) { r.RecurringDays = []string{"MONDAY"} }},
		{"неизвестный день", func(r *CreateSlotRequest) {
			r.IsRecurring = true
			r.RecurringDays = []string{"FUNDAY"}
		}},
		{"нет ментора", func(r *CreateSlotRequest) { r.MentorID = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, at(monday, 8, 0))
			req := validSlotRequest()
			tt.modify(&req)

			_, err := e.slots.CreateSlot(context.Background(), req)
			if !apperror.IsKind(err, apperror.KindValidation) {
				t.Fatalf("ожидалась ошибка валидации, получили %v", err)
			}
		})
	}
}

func TestCreateSlot_MentorRules(t *testing.T) {
	e := newTestEnv(t, at(monday, 8, 0))
	ctx := context.Background()

	req := validSlotRequest()
	req.MentorID = studentA
	if _, err := e.slots.CreateSlot(ctx, req); !errors.Is(err, apperror.ErrNotMentor) || !apperror.IsKind(err, apperror.KindNotFound) {
		t.Fatalf("студент не может публиковать слоты, получили %v", err)
	}

	req.MentorID = 777
	if _, err := e.slots.CreateSlot(ctx, req); !errors.Is(err, apperror.ErrUserNotFound) {
		t.Fatalf("ожидалась ErrUserNotFound, получили %v", err)
	}
}

func TestCreateSlot_RejectsOverlap(t *testing.T) {
	e := newTestEnv(t, at(monday, 8, 0))
	ctx := context.Background()

	if _, err := e.slots.CreateSlot(ctx, validSlotRequest()); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	overlapping := validSlotRequest()
	overlapping.StartTime = at(monday, 10, 30)
	overlapping.EndTime = at(monday, 11, 30)
	if _, err := e.slots.CreateSlot(ctx, overlapping); !errors.Is(err, apperror.ErrSlotOverlap) {
		t.Fatalf("ожидалась ErrSlotOverlap, получили %v", err)
	}

	adjacent := validSlotRequest()
	adjacent.StartTime = at(monday, 11, 0)
	adjacent.EndTime = at(monday, 12, 0)
	if _, err := e.slots.CreateSlot(ctx, adjacent); err != nil {
		t.Fatalf("смежный слот допустим: %v", err)
	}

	other := validSlotRequest()
	other.MentorID = otherMentor
	if _, err := e.slots.CreateSlot(ctx, other); err != nil {
		t.Fatalf("слоты разных менторов не пересекаются: %v", err)
	}
}

func TestCreateSlot_RecurringGeneratesWindow(t *testing.T) {
	tuesday := monday.AddDate(0, 0, 1)
	e := newTestEnv(t, at(tuesday, 9, 0))

	req := validSlotRequest()
	// шаблон может описывать прошедшее время, от него берутся только время суток и длительность
	req.IsRecurring = true
	req.RecurringDays = []string{"MONDAY", "wed", "Friday", "MONDAY"}

	tmpl, err := e.slots.CreateSlot(context.Background(), req)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(tmpl.RecurringDays) != 3 {
		t.Fatalf("дни должны быть без повторов, получили %v", tmpl.RecurringDays)
	}

	if got := e.store.slotsOfTemplate(tmpl.ID); len(got) != 3 {
		t.Fatalf("ожидалось 3 сгенерированных слота, получили %d", len(got))
	}

	if _, err := e.bookings.Book(context.Background(), tmpl.ID, studentA); !errors.Is(err, apperror.ErrSlotIsTemplate) {
		t.Fatalf("шаблон не бронируется, получили %v", err)
	}
}

func TestListAvailableSlots(t *testing.T) {
	e := newTestEnv(t, at(monday, 8, 0))
	ctx := context.Background()

	free := e.oneOffSlot(mentorID, at(monday, 10, 0), at(monday, 11, 0), 2)
	full := e.oneOffSlot(mentorID, at(monday, 12, 0), at(monday, 13, 0), 1)
	inactive := e.oneOffSlot(mentorID, at(monday, 14, 0), at(monday, 15, 0), 1)
	e.oneOffSlot(mentorID, at(monday, 7, 0), at(monday, 7, 45), 1)
	monWedFriTemplate(e)

	if _, err := e.bookings.Book(ctx, full.ID, studentA); err != nil {
		t.Fatalf("бронирование: %v", err)
	}
	if err := e.slots.DeactivateSlot(ctx, inactive.ID, mentorID); err != nil {
		t.Fatalf("деактивация: %v", err)
	}

	slots, err := e.slots.ListAvailableSlots(ctx, nil, at(monday, 0, 0), at(monday.AddDate(0, 0, 1), 0, 0), 0)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(slots) != 1 || slots[0].ID != free.ID {
		t.Fatalf("ожидался только свободный будущий слот %d, получили %+v", free.ID, slots)
	}

	meditation := model.CategoryMeditation
	if slots, _ := e.slots.ListAvailableSlots(ctx, &meditation, at(monday, 0, 0), at(monday.AddDate(0, 0, 1), 0, 0), 0); len(slots) != 0 {
		t.Fatalf("фильтр по категории не работает: %+v", slots)
	}
}

func TestDeactivateSlot_OwnerOnly(t *testing.T) {
	e := newTestEnv(t, at(monday, 8, 0))
	slot := e.oneOffSlot(mentorID, at(monday, 10, 0), at(monday, 11, 0), 1)

	err := e.slots.DeactivateSlot(context.Background(), slot.ID, otherMentor)
	if !errors.Is(err, apperror.ErrNotSlotOwner) || apperror.HTTPStatus(err) != http.StatusNotFound {
		t.Fatalf("чужой слот должен выглядеть несуществующим, получили %v", err)
	}
	if err := e.slots.DeactivateSlot(context.Background(), 404, mentorID); !errors.Is(err, apperror.ErrSlotNotFound) {
		t.Fatalf("ожидалась ErrSlotNotFound, получили %v", err)
	}
	if err := e.slots.DeactivateSlot(context.Background(), slot.ID, mentorID); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if e.store.slot(slot.ID).IsActive {
		t.Fatalf("слот должен стать неактивным")
	}
}

func TestDeactivateExpired(t *testing.T) {
	e := newTestEnv(t, at(monday, 8, 0))
	past := e.oneOffSlot(mentorID, at(monday, 6, 0), at(monday, 7, 0), 1)
	future := e.oneOffSlot(mentorID, at(monday, 10, 0), at(monday, 11, 0), 1)

	n, err := e.slots.DeactivateExpired(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("ожидалась деактивация 1 слота, получили %d (%v)", n, err)
	}
	if e.store.slot(past.ID).IsActive || !e.store.slot(future.ID).IsActive {
		t.Fatalf("деактивирован не тот слот")
	}
}
