// Package notify доставляет уведомления о слотах и сессиях.
//
// Доставка никогда не блокирует и не отменяет переход, который её вызвал:
// AsyncDispatcher отправляет в фоне, ошибки только логируются.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/Freeeeeet/wellness_booking/internal/model"
)

type Event string

const (
	EventSlotCreated        Event = "slot_created"
	EventSessionScheduled   Event = "session_scheduled"
	EventSessionStarted     Event = "session_started"
	EventSessionDelayed     Event = "session_delayed"
	EventSessionCompleted   Event = "session_completed"
	EventSessionNoShow      Event = "session_no_show"
	EventSessionCancelled   Event = "session_cancelled"
	EventSessionRescheduled Event = "session_rescheduled"
)

// ErrNoAddress у получателя нет адреса для канала, канал пропускается
var ErrNoAddress = errors.New("recipient has no address for this channel")

// Recipient адресат уведомления
type Recipient struct {
	UserID         int64
	Name           string
	Email          string
	Phone          string
	TelegramChatID *int64
}

// RecipientFromUser собирает адресата из записи справочника пользователей
func RecipientFromUser(u *model.User) Recipient {
	return Recipient{
		UserID:         u.ID,
		Name:           u.FullName,
		Email:          u.Email,
		Phone:          u.Phone,
		TelegramChatID: u.TelegramChatID,
	}
}

// Payload данные для текста уведомления
type Payload struct {
	BookingID   int64
	SlotID      int64
	Category    model.SessionCategory
	StartTime   time.Time
	EndTime     time.Time
	Status      model.BookingStatus
	Reason      string
	SessionLink string
}

// Message готовый текст уведомления
type Message struct {
	Subject string
	Text    string
}

// Channel канал доставки (Telegram, SMS, email)
type Channel interface {
	Name() string
	Send(ctx context.Context, recipient Recipient, msg Message) error
}

// Attempt попытка доставки через канал
type Attempt struct {
	Channel string
	Skipped bool
	Err     error
}

// Outcome результат доставки
type Outcome struct {
	ID        string
	Delivered bool
	Queued    bool
	Channel   string
	Attempts  []Attempt
}

// Notifier notify(event, recipient, payload) -> outcome
type Notifier interface {
	Notify(ctx context.Context, event Event, recipient Recipient, payload Payload) Outcome
}

// StatusPublisher публикует переходы статусов во внешний поток событий
type StatusPublisher interface {
	PublishStatus(ctx context.Context, update model.StatusUpdate) error
}
