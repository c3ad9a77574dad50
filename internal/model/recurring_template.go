package model

import (
	"fmt"
	"time"
)

// RecurringTemplate шаблон регулярного расписания, встроенный в recurring слот
type RecurringTemplate struct {
	SlotID      int64
	MentorID    int64
	StartHour   int // 0-23, в часовом поясе генерации
	StartMinute int // 0-59
	Duration    time.Duration
	Days        []time.Weekday
	Category    SessionCategory
	MaxStudents int
	Price       int64
	SessionLink string
	Notes       string
}

// TemplateFromSlot извлекает шаблон из recurring слота.
// Время суток берётся в указанном часовом поясе.
func TemplateFromSlot(slot *TimeSlot, loc *time.Location) (*RecurringTemplate, error) {
	if !slot.IsRecurring {
		return nil, fmt.Errorf("slot %d is not recurring", slot.ID)
	}
	if len(slot.RecurringDays) == 0 {
		return nil, fmt.Errorf("slot %d has no recurring days", slot.ID)
	}

	duration := slot.Duration()
	if duration <= 0 {
		duration = slot.Category.DefaultDuration()
	}

	start := slot.StartTime.In(loc)
	days := make([]time.Weekday, len(slot.RecurringDays))
	copy(days, slot.RecurringDays)

	return &RecurringTemplate{
		SlotID:      slot.ID,
		MentorID:    slot.MentorID,
		StartHour:   start.Hour(),
		StartMinute: start.Minute(),
		Duration:    duration,
		Days:        days,
		Category:    slot.Category,
		MaxStudents: slot.MaxStudents,
		Price:       slot.Price,
		SessionLink: slot.SessionLink,
		Notes:       slot.Notes,
	}, nil
}

// HasDay входит ли день недели в шаблон
func (t *RecurringTemplate) HasDay(day time.Weekday) bool {
	for _, d := range t.Days {
		if d == day {
			return true
		}
	}
	return false
}

// Occurrence вычисляет начало и конец вхождения шаблона в указанную дату
func (t *RecurringTemplate) Occurrence(date time.Time, loc *time.Location) (time.Time, time.Time) {
	d := date.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), t.StartHour, t.StartMinute, 0, 0, loc)
	return start, start.Add(t.Duration)
}

// Instance создаёт конкретный слот шаблона. Слот свободен и никому не назначен.
func (t *RecurringTemplate) Instance(start, end time.Time) *TimeSlot {
	templateID := t.SlotID
	return &TimeSlot{
		MentorID:    t.MentorID,
		StartTime:   start,
		EndTime:     end,
		Category:    t.Category,
		MaxStudents: t.MaxStudents,
		TemplateID:  &templateID,
		Price:       t.Price,
		SessionLink: t.SessionLink,
		Notes:       t.Notes,
		IsActive:    true,
	}
}
