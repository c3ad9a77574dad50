package model

import (
	"time"
)

// TimeSlot опубликованное ментором окно для записи.
// Слот с IsRecurring=true является шаблоном: по нему генерируются конкретные слоты,
// сам шаблон не бронируется.
type TimeSlot struct {
	ID              int64           `json:"id"`
	MentorID        int64           `json:"mentor_id"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time"`
	Category        SessionCategory `json:"category"`
	MaxStudents     int             `json:"max_students"`
	CurrentStudents int             `json:"current_students"`
	IsRecurring     bool            `json:"is_recurring"`
	RecurringDays   []time.Weekday  `json:"recurring_days"`
	TemplateID      *int64          `json:"template_id"` // шаблон, из которого сгенерирован слот
	Price           int64           `json:"price"`       // в копейках/центах
	SessionLink     string          `json:"session_link"`
	Notes           string          `json:"notes"`
	IsActive        bool            `json:"is_active"`
	IsBooked        bool            `json:"is_booked"` // true когда заняты все места
	BookedBy        *int64          `json:"booked_by"` // только для слотов на одного студента
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Duration плановая длительность слота; 0 если границы повреждены
func (s *TimeSlot) Duration() time.Duration {
	d := s.EndTime.Sub(s.StartTime)
	if d <= 0 {
		return 0
	}
	return d
}

// DurationMinutes плановая длительность в минутах
func (s *TimeSlot) DurationMinutes() int {
	return int(s.Duration() / time.Minute)
}

// HasCapacity есть ли свободные места
func (s *TimeSlot) HasCapacity() bool {
	return s.CurrentStudents < s.MaxStudents
}

// IsBookedFor политика занятости: слот занят, когда заняты все места
func IsBookedFor(current, max int) bool {
	return max > 0 && current >= max
}

// Overlaps проверка пересечения полуинтервалов [aStart, aEnd) и [bStart, bEnd).
// Совпадение границ пересечением не считается.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
