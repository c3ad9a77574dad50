package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/wellness_booking/internal/model"
)

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	err      error
	released []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		l.released = append(l.released, key)
	}, true, nil
}

func newTestScheduler(locker Locker) *Scheduler {
	return NewScheduler(time.UTC, locker, time.Minute, zap.NewNop())
}

func TestSchedulerRunNow(t *testing.T) {
	locker := newFakeLocker()
	s := newTestScheduler(locker)

	runs := 0
	if err := s.Add(Job{Name: "job", Spec: "@every 1h", Run: func(context.Context) error { runs++; return nil }}); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if err := s.RunNow(context.Background(), "job"); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if runs != 1 {
		t.Errorf("ожидался один запуск, получено %d", runs)
	}
	if len(locker.released) != 1 {
		t.Errorf("блокировка должна быть снята после запуска")
	}
}

func TestSchedulerSkipsWhenLockHeld(t *testing.T) {
	locker := newFakeLocker()
	locker.held["job"] = true
	s := newTestScheduler(locker)

	runs := 0
	_ = s.Add(Job{Name: "job", Spec: "@every 1h", Run: func(context.Context) error { runs++; return nil }})

	if err := s.RunNow(context.Background(), "job"); err != nil {
		t.Fatalf("занятая блокировка не ошибка, получено %v", err)
	}
	if runs != 0 {
		t.Error("задача не должна запускаться, пока блокировку держит другой инстанс")
	}
}

func TestSchedulerErrors(t *testing.T) {
	locker := newFakeLocker()
	s := newTestScheduler(locker)

	if err := s.RunNow(context.Background(), "missing"); err == nil {
		t.Error("ожидалась ошибка для неизвестной задачи")
	}

	job := Job{Name: "job", Spec: "@every 1h", Run: func(context.Context) error { return errors.New("boom") }}
	_ = s.Add(job)
	if err := s.Add(job); err == nil {
		t.Error("повторная регистрация задачи должна давать ошибку")
	}
	if err := s.Add(Job{Name: "bad", Spec: "not a spec", Run: job.Run}); err == nil {
		t.Error("неверное cron выражение должно давать ошибку")
	}

	if err := s.RunNow(context.Background(), "job"); err == nil {
		t.Error("ошибка задачи должна возвращаться")
	}
	if len(locker.released) != 1 {
		t.Error("блокировка снимается и при ошибке задачи")
	}

	locker.err = errors.New("redis down")
	if err := s.RunNow(context.Background(), "job"); err == nil {
		t.Error("ошибка блокировки должна возвращаться")
	}
}

func TestLocalLockerAlwaysAcquires(t *testing.T) {
	release, ok, err := LocalLocker{}.TryLock(context.Background(), "any", time.Second)
	if err != nil || !ok {
		t.Fatalf("локальная блокировка всегда доступна: %v %v", ok, err)
	}
	release()
}

func TestSummarize(t *testing.T) {
	got := summarize([]model.StatusUpdate{
		{Reason: model.ReasonStartTimePassed},
		{Reason: model.ReasonPlannedEndElapsed},
		{Reason: model.ReasonStartTimePassed},
	})
	if got[model.ReasonStartTimePassed] != 2 || got[model.ReasonPlannedEndElapsed] != 1 {
		t.Errorf("неверная сводка: %v", got)
	}
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger := NewLogger("test", "verbose")
	if !logger.Core().Enabled(zap.InfoLevel) || logger.Core().Enabled(zap.DebugLevel) {
		t.Error("неизвестный уровень должен заменяться на info")
	}
}
