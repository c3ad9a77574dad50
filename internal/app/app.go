package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Freeeeeet/wellness_booking/internal/config"
	"github.com/Freeeeeet/wellness_booking/internal/model"
	"github.com/Freeeeeet/wellness_booking/internal/notify"
	"github.com/Freeeeeet/wellness_booking/internal/repository"
	"github.com/Freeeeeet/wellness_booking/internal/service"
)

// App собранные зависимости процесса: пул, уведомления, сервисы и планировщик
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Pool      *pgxpool.Pool
	Notifier  *notify.AsyncDispatcher
	Scheduler *Scheduler

	Users      *service.UserService
	Slots      *service.SlotService
	Bookings   *service.BookingService
	Generator  *service.Generator
	Reconciler *service.Reconciler

	locker  Locker
	closers []func() error
}

// New подключается к БД, применяет миграции и собирает сервисы
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	a.Pool = pool
	a.closers = append(a.closers, func() error { pool.Close(); return nil })

	if err := pool.Ping(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("Connected to database")

	migrator, err := NewMigrator(pool, cfg.MigrationsPath, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	err = migrator.Run(ctx)
	_ = migrator.Close()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Notifier = a.buildNotifier()
	a.locker = a.buildLocker(ctx)

	repos := repository.NewRepositories(pool)
	tx := repository.NewPostgresTxManager(pool)
	loc := cfg.Location()

	a.Users = service.NewUserService(repos.Users, logger)
	a.Generator = service.NewGenerator(repos.Slots, loc, cfg.Scheduling.GenerationWindowDays, logger.Named("generator"))
	a.Slots = service.NewSlotService(repos.Slots, repos.Users, a.Generator, a.Notifier, logger)
	a.Bookings = service.NewBookingService(repos, tx, a.Notifier, cfg.Scheduling.OnTimeTolerance, logger)
	a.Reconciler = service.NewReconciler(repos, a.Notifier, cfg.Scheduling.OnTimeTolerance, logger.Named("reconciler"))

	a.Scheduler = NewScheduler(loc, a.locker, cfg.Scheduling.SweepLockTTL, logger)
	jobs := SweepJobs(cfg.Scheduling.ReconcileCron, cfg.Scheduling.GenerateCron, a.Reconciler, a.Generator, a.Slots, logger)
	for _, job := range jobs {
		if err := a.Scheduler.Add(job); err != nil {
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

// buildNotifier включает только настроенные каналы; порядок задаёт приоритет доставки
func (a *App) buildNotifier() *notify.AsyncDispatcher {
	cfg := a.Config.Notify
	var channels []notify.Channel

	if cfg.TelegramToken != "" {
		b, err := bot.New(cfg.TelegramToken)
		if err != nil {
			a.Logger.Warn("Telegram channel disabled", zap.Error(err))
		} else {
			channels = append(channels, notify.NewTelegramChannel(b))
		}
	}
	if cfg.SMSGatewayURL != "" {
		client := &http.Client{Timeout: cfg.Timeout}
		channels = append(channels, notify.NewSMSChannel(cfg.SMSGatewayURL, cfg.SMSGatewayToken, client))
	}
	if cfg.SMTPHost != "" {
		channels = append(channels, notify.NewEmailChannel(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom))
	}
	if len(channels) == 0 {
		a.Logger.Warn("No notification channels configured, notifications will only be logged")
	}

	var publisher notify.StatusPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.closers = append(a.closers, kp.Close)
		publisher = kp
		a.Logger.Info("Status events enabled",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic))
	}

	fallback := notify.NewFallbackDispatcher(a.Logger.Named("notify"), channels...)
	return notify.NewAsyncDispatcher(fallback, publisher, cfg.Timeout, a.Logger.Named("notify"))
}

// buildLocker без redis считаем, что инстанс один
func (a *App) buildLocker(ctx context.Context) Locker {
	if a.Config.Redis.Addr == "" {
		return LocalLocker{}
	}
	rl, err := NewRedisLocker(ctx, a.Config.Redis, a.Logger)
	if err != nil {
		a.Logger.Warn("Redis unavailable, sweep lock is local", zap.Error(err))
		return LocalLocker{}
	}
	a.closers = append(a.closers, rl.Close)
	return rl
}

// SweepOnce один проход всех фоновых задач; возвращает журнал изменений статусов
func (a *App) SweepOnce(ctx context.Context) ([]model.StatusUpdate, error) {
	updates := []model.StatusUpdate{}
	release, ok, err := a.locker.TryLock(ctx, JobReconcile, a.Config.Scheduling.SweepLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		a.Logger.Warn("Reconcile is running on another instance, skipping")
	} else {
		updates, err = a.Reconciler.Run(ctx)
		release()
	}

	errs := []error{err}
	for _, name := range []string{JobGenerate, JobExpire} {
		errs = append(errs, a.Scheduler.RunNow(ctx, name))
	}
	return updates, errors.Join(errs...)
}

// Close закрывает диспетчер уведомлений, дожидается начатых отправок
// и закрывает соединения в обратном порядке
func (a *App) Close() {
	if a.Notifier != nil {
		a.Notifier.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("Failed to close resource", zap.Error(err))
		}
	}
	a.closers = nil
}

// ShutdownTimeout время на остановку HTTP сервера и фоновых задач
const ShutdownTimeout = 15 * time.Second
