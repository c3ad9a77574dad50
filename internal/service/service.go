// Package service содержит бизнес-логику записи на сессии:
// публикацию слотов, генерацию recurring слотов, машину состояний бронирования и обход статусов.
package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/wellness_booking/internal/model"
	"github.com/Freeeeeet/wellness_booking/internal/notify"
	"github.com/Freeeeeet/wellness_booking/internal/repository"
	"go.uber.org/zap"
)

// Notifier доставка уведомлений и событий статусов, реализуется notify.AsyncDispatcher
type Notifier interface {
	Notify(ctx context.Context, event notify.Event, recipient notify.Recipient, payload notify.Payload) notify.Outcome
	PublishStatus(ctx context.Context, update model.StatusUpdate)
}

// systemClock текущее время с точностью PostgreSQL timestamptz,
// чтобы записанное и прочитанное время старта совпадали при сравнении
func systemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// dispatcher рассылает уведомления участникам; ошибки только логируются
type dispatcher struct {
	users    repository.UserRepository
	notifier Notifier
	logger   *zap.Logger
}

func (d dispatcher) toUsers(ctx context.Context, event notify.Event, payload notify.Payload, userIDs ...int64) {
	if d.notifier == nil {
		return
	}

	for _, id := range userIDs {
		user, err := d.users.GetByID(ctx, id)
		if err != nil {
			d.logger.Warn("Failed to load notification recipient", zap.Int64("user_id", id), zap.Error(err))
			continue
		}
		if user == nil {
			d.logger.Warn("Notification recipient not found", zap.Int64("user_id", id))
			continue
		}
		d.notifier.Notify(ctx, event, notify.RecipientFromUser(user), payload)
	}
}

func (d dispatcher) status(ctx context.Context, update model.StatusUpdate) {
	if d.notifier == nil {
		return
	}
	d.notifier.PublishStatus(ctx, update)
}

func bookingPayload(b *model.Booking) notify.Payload {
	p := notify.Payload{
		BookingID: b.ID,
		SlotID:    b.TimeSlotID,
		Category:  b.Category,
		Status:    b.Status(),
		Reason:    b.CompletionReason(),
	}
	if b.Slot != nil {
		p.StartTime = b.Slot.StartTime
		p.EndTime = b.Slot.EndTime
		p.SessionLink = b.Slot.SessionLink
	}
	return p
}

func slotPayload(s *model.TimeSlot) notify.Payload {
	return notify.Payload{
		SlotID:      s.ID,
		Category:    s.Category,
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		SessionLink: s.SessionLink,
	}
}

func statusUpdate(b *model.Booking, old model.BookingStatus, at time.Time, reason string) model.StatusUpdate {
	delayed := b.IsDelayed()
	return model.StatusUpdate{
		SessionID: b.ID,
		OldStatus: old,
		NewStatus: b.Status(),
		Timestamp: at,
		Reason:    reason,
		IsDelayed: &delayed,
	}
}
