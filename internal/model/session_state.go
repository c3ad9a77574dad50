package model

import (
	"fmt"
	"strings"
	"time"
)

type BookingStatus string

const (
	BookingStatusScheduled   BookingStatus = "SCHEDULED"
	BookingStatusOngoing     BookingStatus = "ONGOING"
	BookingStatusCompleted   BookingStatus = "COMPLETED"
	BookingStatusNoShow      BookingStatus = "NO_SHOW"
	BookingStatusCancelled   BookingStatus = "CANCELLED"
	BookingStatusRescheduled BookingStatus = "RESCHEDULED"
)

// ParseBookingStatus разбирает статус без учёта регистра
func ParseBookingStatus(s string) (BookingStatus, bool) {
	st := BookingStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case BookingStatusScheduled, BookingStatusOngoing, BookingStatusCompleted,
		BookingStatusNoShow, BookingStatusCancelled, BookingStatusRescheduled:
		return st, true
	}
	return "", false
}

// IsTerminal статусы без исходящих переходов
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusRescheduled:
		return true
	}
	return false
}

// DurationSource откуда взята длительность при автозавершении
type DurationSource string

const (
	DurationSourcePlannedEnd      DurationSource = "planned_end"
	DurationSourceSlot            DurationSource = "slot_duration"
	DurationSourceCategoryDefault DurationSource = "category_default"
)

// Причины переходов, которые пишутся в аудит
const (
	ReasonStartTimePassed        = "start_time_passed"
	ReasonPlannedEndElapsed      = "planned_end_elapsed"
	ReasonDelayedDurationElapsed = "delayed_duration_elapsed"
	ReasonManualStart            = "manual_start"
	ReasonCancelled              = "cancelled"
	ReasonNoShow                 = "no_show"
	ReasonRescheduled            = "rescheduled"
)

// SessionState состояние сессии. Статус и признак опоздания хранятся вместе,
// поэтому не могут разойтись.
type SessionState interface {
	Status() BookingStatus
	isSessionState()
}

// Scheduled сессия ждёт начала; Delayed - плановое начало прошло, ментор ещё не начал
type Scheduled struct {
	Delayed bool
}

// Started сессия идёт; At - время ручного старта
type Started struct {
	At         time.Time
	WasDelayed bool
}

type Completed struct {
	StartedAt      time.Time
	EndedAt        time.Time
	WasDelayed     bool
	DurationSource DurationSource
	Reason         string
}

type NoShow struct {
	StartedAt  time.Time
	At         time.Time
	WasDelayed bool
}

type Cancelled struct {
	At         time.Time
	WasDelayed bool
}

// Rescheduled пропущенная сессия перенесена в новое бронирование To
type Rescheduled struct {
	StartedAt  time.Time
	At         time.Time
	WasDelayed bool
	To         int64
}

func (Scheduled) Status() BookingStatus   { return BookingStatusScheduled }
func (Started) Status() BookingStatus     { return BookingStatusOngoing }
func (Completed) Status() BookingStatus   { return BookingStatusCompleted }
func (NoShow) Status() BookingStatus      { return BookingStatusNoShow }
func (Cancelled) Status() BookingStatus   { return BookingStatusCancelled }
func (Rescheduled) Status() BookingStatus { return BookingStatusRescheduled }

func (Scheduled) isSessionState()   {}
func (Started) isSessionState()     {}
func (Completed) isSessionState()   {}
func (NoShow) isSessionState()      {}
func (Cancelled) isSessionState()   {}
func (Rescheduled) isSessionState() {}

// StateColumns плоское представление состояния, как оно лежит в таблице bookings
type StateColumns struct {
	Status           BookingStatus
	IsDelayed        bool
	ManualStartTime  *time.Time
	ActualEndTime    *time.Time
	CompletionReason *string
	DurationSource   *string
	RescheduledToID  *int64
}

// Columns раскладывает состояние в колонки
func Columns(state SessionState) StateColumns {
	c := StateColumns{Status: state.Status()}
	switch st := state.(type) {
	case Scheduled:
		c.IsDelayed = st.Delayed
	case Started:
		c.IsDelayed = st.WasDelayed
		c.ManualStartTime = timePtr(st.At)
	case Completed:
		c.IsDelayed = st.WasDelayed
		c.ManualStartTime = timePtr(st.StartedAt)
		c.ActualEndTime = timePtr(st.EndedAt)
		c.CompletionReason = strPtr(st.Reason)
		c.DurationSource = strPtr(string(st.DurationSource))
	case NoShow:
		c.IsDelayed = st.WasDelayed
		c.ManualStartTime = timePtr(st.StartedAt)
		c.ActualEndTime = timePtr(st.At)
		c.CompletionReason = strPtr(ReasonNoShow)
	case Cancelled:
		c.IsDelayed = st.WasDelayed
		c.ActualEndTime = timePtr(st.At)
		c.CompletionReason = strPtr(ReasonCancelled)
	case Rescheduled:
		c.IsDelayed = st.WasDelayed
		c.ManualStartTime = timePtr(st.StartedAt)
		c.ActualEndTime = timePtr(st.At)
		c.CompletionReason = strPtr(ReasonRescheduled)
		to := st.To
		c.RescheduledToID = &to
	}
	return c
}

// StateFromColumns собирает состояние из колонок. Отсутствующие времена заменяются
// на fallback (см. timeutil.OrNow), чтобы одна повреждённая запись не ломала обход.
func StateFromColumns(c StateColumns, fallback time.Time) (SessionState, error) {
	at := func(t *time.Time) time.Time {
		if t == nil || t.IsZero() {
			return fallback
		}
		return *t
	}

	switch c.Status {
	case BookingStatusScheduled:
		return Scheduled{Delayed: c.IsDelayed}, nil
	case BookingStatusOngoing:
		return Started{At: at(c.ManualStartTime), WasDelayed: c.IsDelayed}, nil
	case BookingStatusCompleted:
		st := Completed{
			StartedAt:  at(c.ManualStartTime),
			EndedAt:    at(c.ActualEndTime),
			WasDelayed: c.IsDelayed,
		}
		if c.DurationSource != nil {
			st.DurationSource = DurationSource(*c.DurationSource)
		}
		if c.CompletionReason != nil {
			st.Reason = *c.CompletionReason
		}
		return st, nil
	case BookingStatusNoShow:
		return NoShow{StartedAt: at(c.ManualStartTime), At: at(c.ActualEndTime), WasDelayed: c.IsDelayed}, nil
	case BookingStatusCancelled:
		return Cancelled{At: at(c.ActualEndTime), WasDelayed: c.IsDelayed}, nil
	case BookingStatusRescheduled:
		st := Rescheduled{StartedAt: at(c.ManualStartTime), At: at(c.ActualEndTime), WasDelayed: c.IsDelayed}
		if c.RescheduledToID != nil {
			st.To = *c.RescheduledToID
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown booking status %q", c.Status)
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func strPtr(s string) *string {
	return &s
}
