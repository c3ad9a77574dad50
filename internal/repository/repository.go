package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/wellness_booking/internal/model"
	"github.com/Freeeeeet/wellness_booking/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SlotFilter фильтр выборки слотов; нулевые поля не ограничивают выборку
type SlotFilter struct {
	MentorID      *int64
	Category      *model.SessionCategory
	IsRecurring   *bool
	OnlyActive    bool
	OnlyAvailable bool // есть свободные места
	From          time.Time
	To            time.Time
	Limit         int
}

// BookingFilter фильтр выборки бронирований
type BookingFilter struct {
	MentorID  *int64
	StudentID *int64
	Statuses  []model.BookingStatus
	IsDelayed *bool
	From      time.Time // по началу слота
	To        time.Time
	Limit     int
}

type SlotRepository interface {
	Create(ctx context.Context, slot *model.TimeSlot) error
	// CreateIfAbsent создаёт сгенерированный слот; false, если такой уже есть
	CreateIfAbsent(ctx context.Context, slot *model.TimeSlot) (bool, error)
	GetByID(ctx context.Context, id int64) (*model.TimeSlot, error)
	List(ctx context.Context, filter SlotFilter) ([]*model.TimeSlot, error)
	ListActiveTemplates(ctx context.Context) ([]*model.TimeSlot, error)
	SlotExists(ctx context.Context, mentorID int64, startTime time.Time) (bool, error)
	FindOverlapping(ctx context.Context, mentorID int64, start, end time.Time, excludeID int64) ([]*model.TimeSlot, error)
	// ReserveSeat атомарно занимает место; nil, если слот недоступен
	ReserveSeat(ctx context.Context, slotID, studentID int64, now time.Time) (*model.TimeSlot, error)
	ReleaseSeat(ctx context.Context, slotID int64) error
	Deactivate(ctx context.Context, id int64) error
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteExpiredInstances(ctx context.Context, now time.Time) (int64, error)
	// LockMentor сериализует проверки пересечений ментора до конца транзакции
	LockMentor(ctx context.Context, mentorID int64) error
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	List(ctx context.Context, filter BookingFilter) ([]*model.Booking, error)
	FindMentorOverlaps(ctx context.Context, mentorID int64, start, end time.Time, excludeSlotID int64) ([]*model.Booking, error)
	HasActiveBooking(ctx context.Context, slotID, studentID int64) (bool, error)
	// UpdateState записывает новое состояние, только если текущий статус равен expected
	UpdateState(ctx context.Context, booking *model.Booking, expected model.BookingStatus) (bool, error)
	// FlagDelayed ставит is_delayed у SCHEDULED бронирования; false, если уже стоит
	FlagDelayed(ctx context.Context, id int64) (bool, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// Repositories набор репозиториев, работающих через один Querier
type Repositories struct {
	Slots    SlotRepository
	Bookings BookingRepository
	Users    UserRepository
}

// NewRepositories создаёт репозитории поверх пула или транзакции
func NewRepositories(db base.Querier) Repositories {
	return Repositories{
		Slots:    NewSlotRepository(db),
		Bookings: NewBookingRepository(db),
		Users:    NewUserRepository(db),
	}
}

// TxManager выполняет fn в транзакции
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

type PostgresTxManager struct {
	pool *pgxpool.Pool
}

func NewPostgresTxManager(pool *pgxpool.Pool) *PostgresTxManager {
	return &PostgresTxManager{pool: pool}
}

func (m *PostgresTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, NewRepositories(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// rowScanner общий интерфейс pgx.Row и pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// whereBuilder собирает условия с позиционными параметрами
type whereBuilder struct {
	conds []string
	args  []any
}

func (w *whereBuilder) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *whereBuilder) addRaw(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	out := " WHERE " + w.conds[0]
	for _, c := range w.conds[1:] {
		out += " AND " + c
	}
	return out
}

func (w *whereBuilder) limit(n int) string {
	if n <= 0 {
		return ""
	}
	w.args = append(w.args, n)
	return fmt.Sprintf(" LIMIT $%d", len(w.args))
}
