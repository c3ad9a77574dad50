package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/wellness_booking/internal/apperror"
	"github.com/Freeeeeet/wellness_booking/internal/model"
	"github.com/Freeeeeet/wellness_booking/internal/notify"
	"github.com/Freeeeeet/wellness_booking/internal/repository"
	"github.com/Freeeeeet/wellness_booking/internal/timeutil"
	"go.uber.org/zap"
)

// CreateSlotRequest данные нового слота
type CreateSlotRequest struct {
	MentorID      int64     `json:"mentor_id" validate:"gt=0"`
	StartTime     time.Time `json:"start_time" validate:"required"`
	EndTime       time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	Category      string    `json:"category" validate:"required,session_category"`
	MaxStudents   int       `json:"max_students" validate:"min=1,max=100"`
	IsRecurring   bool      `json:"is_recurring"`
	RecurringDays []string  `json:"recurring_days" validate:"omitempty,max=7,dive,weekday"`
	Price         int64     `json:"price" validate:"gte=0"`
	SessionLink   string    `json:"session_link" validate:"omitempty,url"`
	Notes         string    `json:"notes" validate:"max=2000"`
}

type SlotService struct {
	slotRepo  repository.SlotRepository
	users     *UserService
	generator *Generator
	dispatch  dispatcher
	now       func() time.Time
	logger    *zap.Logger
}

func NewSlotService(
	slotRepo repository.SlotRepository,
	userRepo repository.UserRepository,
	generator *Generator,
	notifier Notifier,
	logger *zap.Logger,
) *SlotService {
	return &SlotService{
		slotRepo:  slotRepo,
		users:     NewUserService(userRepo, logger),
		generator: generator,
		dispatch:  dispatcher{users: userRepo, notifier: notifier, logger: logger},
		now:       systemClock,
		logger:    logger,
	}
}

// CreateSlot публикует слот ментора. Для recurring слота сразу генерируются
// конкретные слоты на окно вперёд, сам шаблон не бронируется.
func (s *SlotService) CreateSlot(ctx context.Context, req CreateSlotRequest) (*model.TimeSlot, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	category, _ := model.ParseSessionCategory(req.Category)
	days, err := timeutil.ParseWeekdays(req.RecurringDays)
	if err != nil {
		return nil, apperror.Validation("invalid recurring_days: %v", err)
	}
	if req.IsRecurring && len(days) == 0 {
		return nil, apperror.Validation("recurring_days is required for a recurring slot")
	}
	if !req.IsRecurring && len(days) > 0 {
		return nil, apperror.Validation("recurring_days is only allowed for a recurring slot")
	}

	now := s.now()
	if !req.IsRecurring && !req.StartTime.After(now) {
		return nil, apperror.Validation("start_time must be in the future")
	}

	mentor, err := s.users.RequireMentor(ctx, req.MentorID)
	if err != nil {
		return nil, err
	}

	slot := &model.TimeSlot{
		MentorID:      mentor.ID,
		StartTime:     req.StartTime.UTC(),
		EndTime:       req.EndTime.UTC(),
		Category:      category,
		MaxStudents:   req.MaxStudents,
		IsRecurring:   req.IsRecurring,
		RecurringDays: days,
		Price:         req.Price,
		SessionLink:   req.SessionLink,
		Notes:         req.Notes,
		IsActive:      true,
	}

	// шаблон не занимает время сам по себе, пересечения проверяются для каждого сгенерированного слота
	if !slot.IsRecurring {
		overlapping, err := s.slotRepo.FindOverlapping(ctx, slot.MentorID, slot.StartTime, slot.EndTime, 0)
		if err != nil {
			return nil, fmt.Errorf("check overlapping slots: %w", err)
		}
		if len(overlapping) > 0 {
			return nil, apperror.ErrSlotOverlap
		}
	}

	if err := s.slotRepo.Create(ctx, slot); err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}

	s.logger.Info("Time slot created",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("mentor_id", slot.MentorID),
		zap.String("category", string(slot.Category)),
		zap.Bool("is_recurring", slot.IsRecurring),
		zap.Time("start_time", slot.StartTime),
	)

	if slot.IsRecurring && s.generator != nil {
		tmpl, err := model.TemplateFromSlot(slot, s.generator.loc)
		if err != nil {
			return nil, fmt.Errorf("build recurring template: %w", err)
		}
		// сбой генерации не отменяет создание шаблона, окно догенерирует планировщик
		created, err := s.generator.GenerateForTemplate(ctx, tmpl, now)
		if err != nil {
			s.logger.Error("Failed to generate recurring slots", zap.Int64("template_id", slot.ID), zap.Error(err))
		} else {
			s.logger.Info("Recurring slots generated", zap.Int64("template_id", slot.ID), zap.Int("count", len(created)))
		}
	}

	s.dispatch.toUsers(ctx, notify.EventSlotCreated, slotPayload(slot), slot.MentorID)

	return slot, nil
}

// DeactivateSlot снимает слот с публикации. Уже оформленные бронирования не затрагиваются.
func (s *SlotService) DeactivateSlot(ctx context.Context, slotID, mentorID int64) error {
	slot, err := s.GetSlot(ctx, slotID)
	if err != nil {
		return err
	}
	if slot.MentorID != mentorID {
		return apperror.ErrNotSlotOwner
	}
	if !slot.IsActive {
		return nil
	}

	if err := s.slotRepo.Deactivate(ctx, slotID); err != nil {
		return fmt.Errorf("deactivate slot: %w", err)
	}

	s.logger.Info("Time slot deactivated", zap.Int64("slot_id", slotID), zap.Int64("mentor_id", mentorID))
	return nil
}

func (s *SlotService) GetSlot(ctx context.Context, slotID int64) (*model.TimeSlot, error) {
	slot, err := s.slotRepo.GetByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return nil, apperror.ErrSlotNotFound
	}
	return slot, nil
}

// ListMentorSlots слоты ментора в диапазоне, включая шаблоны и неактивные
func (s *SlotService) ListMentorSlots(ctx context.Context, mentorID int64, from, to time.Time) ([]*model.TimeSlot, error) {
	if !to.IsZero() && !from.IsZero() && !to.After(from) {
		return nil, apperror.Validation("'to' must be after 'from'")
	}
	return s.slotRepo.List(ctx, repository.SlotFilter{MentorID: &mentorID, From: from, To: to})
}

// ListAvailableSlots свободные будущие слоты, доступные любому студенту
func (s *SlotService) ListAvailableSlots(ctx context.Context, category *model.SessionCategory, from, to time.Time, limit int) ([]*model.TimeSlot, error) {
	now := s.now()
	if from.Before(now) {
		from = now
	}
	if !to.IsZero() && !to.After(from) {
		return nil, apperror.Validation("'to' must be after 'from'")
	}
	return s.slotRepo.List(ctx, repository.SlotFilter{
		Category:      category,
		OnlyAvailable: true,
		From:          from,
		To:            to,
		Limit:         limit,
	})
}

// DeactivateExpired деактивирует прошедшие разовые слоты, история бронирований сохраняется
func (s *SlotService) DeactivateExpired(ctx context.Context) (int64, error) {
	n, err := s.slotRepo.DeactivateExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("deactivate expired slots: %w", err)
	}
	if n > 0 {
		s.logger.Info("Expired slots deactivated", zap.Int64("count", n))
	}
	return n, nil
}
