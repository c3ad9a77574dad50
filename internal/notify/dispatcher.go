package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Freeeeeet/wellness_booking/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FallbackDispatcher пробует каналы по порядку до первой успешной доставки
type FallbackDispatcher struct {
	channels []Channel
	logger   *zap.Logger
}

func NewFallbackDispatcher(logger *zap.Logger, channels ...Channel) *FallbackDispatcher {
	return &FallbackDispatcher{channels: channels, logger: logger}
}

func (d *FallbackDispatcher) Notify(ctx context.Context, event Event, recipient Recipient, payload Payload) Outcome {
	msg := Render(event, payload)

	outcome := Outcome{ID: uuid.NewString()}
	for _, ch := range d.channels {
		err := ch.Send(ctx, recipient, msg)
		if errors.Is(err, ErrNoAddress) {
			outcome.Attempts = append(outcome.Attempts, Attempt{Channel: ch.Name(), Skipped: true})
			continue
		}
		outcome.Attempts = append(outcome.Attempts, Attempt{Channel: ch.Name(), Err: err})
		if err != nil {
			d.logger.Warn("Notification channel failed, falling back",
				zap.String("notification_id", outcome.ID),
				zap.String("channel", ch.Name()),
				zap.String("event", string(event)),
				zap.Int64("user_id", recipient.UserID),
				zap.Error(err),
			)
			continue
		}

		outcome.Delivered = true
		outcome.Channel = ch.Name()
		return outcome
	}

	d.logger.Error("Notification not delivered by any channel",
		zap.String("notification_id", outcome.ID),
		zap.String("event", string(event)),
		zap.Int64("user_id", recipient.UserID),
		zap.Int("attempts", len(outcome.Attempts)),
	)
	return outcome
}

// AsyncDispatcher отправляет уведомления и события в фоне с таймаутом.
// Ошибки логируются и не возвращаются вызывающему коду.
type AsyncDispatcher struct {
	next      Notifier
	publisher StatusPublisher
	timeout   time.Duration
	logger    *zap.Logger

	// mu защищает closed и wg.Add: после Close новые отправки не начинаются
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncDispatcher publisher может быть nil, тогда события статусов не публикуются
func NewAsyncDispatcher(next Notifier, publisher StatusPublisher, timeout time.Duration, logger *zap.Logger) *AsyncDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AsyncDispatcher{next: next, publisher: publisher, timeout: timeout, logger: logger}
}

func (a *AsyncDispatcher) Notify(ctx context.Context, event Event, recipient Recipient, payload Payload) Outcome {
	if !a.acquire() {
		a.logger.Warn("Dispatcher is closed, notification dropped",
			zap.String("event", string(event)),
			zap.Int64("user_id", recipient.UserID),
		)
		return Outcome{}
	}
	go func() {
		defer a.wg.Done()
		defer a.recoverPanic("notify")

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()

		a.next.Notify(sendCtx, event, recipient, payload)
	}()

	return Outcome{Queued: true}
}

// PublishStatus публикует переход статуса в фоне
func (a *AsyncDispatcher) PublishStatus(ctx context.Context, update model.StatusUpdate) {
	if a.publisher == nil {
		return
	}

	if !a.acquire() {
		a.logger.Warn("Dispatcher is closed, status update dropped",
			zap.Int64("session_id", update.SessionID),
			zap.String("new_status", string(update.NewStatus)),
		)
		return
	}
	go func() {
		defer a.wg.Done()
		defer a.recoverPanic("publish status")

		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()

		if err := a.publisher.PublishStatus(pubCtx, update); err != nil {
			a.logger.Error("Failed to publish status update",
				zap.Int64("session_id", update.SessionID),
				zap.String("new_status", string(update.NewStatus)),
				zap.Error(err),
			)
		}
	}()
}

// Wait дожидается фоновых отправок, не закрывая диспетчер (тесты)
func (a *AsyncDispatcher) Wait() {
	a.wg.Wait()
}

// Close перестаёт принимать отправки и дожидается уже начатых.
// Повторный вызов безопасен.
func (a *AsyncDispatcher) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	a.wg.Wait()
}

func (a *AsyncDispatcher) acquire() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	a.wg.Add(1)
	return true
}

func (a *AsyncDispatcher) recoverPanic(op string) {
	if r := recover(); r != nil {
		a.logger.Error("Panic in background notification", zap.String("op", op), zap.Any("panic", r))
	}
}
