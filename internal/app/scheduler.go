package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/wellness_booking/internal/model"
	"github.com/Freeeeeet/wellness_booking/internal/service"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job фоновая задача планировщика
type Job struct {
	Name string
	Spec string // cron выражение
	Run  func(ctx context.Context) error
}

// Scheduler запускает фоновые задачи по cron расписанию.
// Каждый запуск берёт блокировку, поэтому при нескольких инстансах задачу выполняет один.
type Scheduler struct {
	cron    *cron.Cron
	locker  Locker
	lockTTL time.Duration
	logger  *zap.Logger
	jobs    map[string]Job
}

func NewScheduler(loc *time.Location, locker Locker, lockTTL time.Duration, logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger: logger.Named("cron")}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		locker:  locker,
		lockTTL: lockTTL,
		logger:  logger,
		jobs:    make(map[string]Job),
	}
}

// Add регистрирует задачу
func (s *Scheduler) Add(job Job) error {
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %s already registered", job.Name)
	}

	_, err := s.cron.AddFunc(job.Spec, func() {
		// время запуска ограничено ttl блокировки, чтобы обход не пережил её
		ctx, cancel := context.WithTimeout(context.Background(), s.lockTTL)
		defer cancel()
		s.runLocked(ctx, job)
	})
	if err != nil {
		return fmt.Errorf("add job %s with spec %q: %w", job.Name, job.Spec, err)
	}

	s.jobs[job.Name] = job
	return nil
}

func (s *Scheduler) Start() {
	s.logger.Info("Starting background scheduler", zap.Int("jobs", len(s.jobs)))
	s.cron.Start()
}

// Stop останавливает планировщик и ждёт завершения запущенных задач
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("Stopping background scheduler")
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Background jobs did not finish before shutdown")
	}
}

// RunNow выполняет задачу немедленно (под той же блокировкой)
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}
	return s.runLocked(ctx, job)
}

func (s *Scheduler) runLocked(ctx context.Context, job Job) error {
	release, ok, err := s.locker.TryLock(ctx, job.Name, s.lockTTL)
	if err != nil {
		s.logger.Error("Failed to acquire job lock", zap.String("job", job.Name), zap.Error(err))
		return err
	}
	if !ok {
		s.logger.Debug("Job is running on another instance, skipping", zap.String("job", job.Name))
		return nil
	}
	defer release()

	started := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("Background job failed",
			zap.String("job", job.Name),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err),
		)
		return err
	}

	s.logger.Debug("Background job finished", zap.String("job", job.Name), zap.Duration("elapsed", time.Since(started)))
	return nil
}

// Названия задач обхода
const (
	JobReconcile = "reconcile"
	JobGenerate  = "generate"
	JobExpire    = "expire"
)

// expireSpec деактивация прошедших разовых слотов
const expireSpec = "@every 1h"

// SweepJobs задачи обхода: статусы сессий, генерация recurring слотов, устаревшие слоты
func SweepJobs(reconcileSpec, generateSpec string, reconciler *service.Reconciler, generator *service.Generator, slots *service.SlotService, logger *zap.Logger) []Job {
	return []Job{
		{
			Name: JobReconcile,
			Spec: reconcileSpec,
			Run: func(ctx context.Context) error {
				updates, err := reconciler.Run(ctx)
				if len(updates) > 0 {
					logger.Info("Session statuses reconciled", zap.Int("updates", len(updates)), zap.Any("summary", summarize(updates)))
				}
				return err
			},
		},
		{
			Name: JobGenerate,
			Spec: generateSpec,
			Run: func(ctx context.Context) error {
				if _, err := generator.GenerateAll(ctx); err != nil {
					return err
				}
				_, err := generator.PruneExpired(ctx, time.Now())
				return err
			},
		},
		{
			Name: JobExpire,
			Spec: expireSpec,
			Run: func(ctx context.Context) error {
				_, err := slots.DeactivateExpired(ctx)
				return err
			},
		},
	}
}

func summarize(updates []model.StatusUpdate) map[string]int {
	out := make(map[string]int)
	for _, u := range updates {
		out[u.Reason]++
	}
	return out
}

// cronLogger адаптер zap для cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().With(zap.Error(err)).Errorw(msg, keysAndValues...)
}
