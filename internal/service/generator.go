package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/wellness_booking/internal/model"
	"github.com/Freeeeeet/wellness_booking/internal/repository"
	"github.com/Freeeeeet/wellness_booking/internal/timeutil"
	"go.uber.org/zap"
)

// DefaultGenerationWindowDays горизонт генерации recurring слотов
const DefaultGenerationWindowDays = 7

// Generator поддерживает скользящее окно слотов по recurring шаблонам
type Generator struct {
	slotRepo   repository.SlotRepository
	loc        *time.Location
	windowDays int
	now        func() time.Time
	logger     *zap.Logger
}

func NewGenerator(slotRepo repository.SlotRepository, loc *time.Location, windowDays int, logger *zap.Logger) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	if windowDays <= 0 {
		windowDays = DefaultGenerationWindowDays
	}
	return &Generator{
		slotRepo:   slotRepo,
		loc:        loc,
		windowDays: windowDays,
		now:        systemClock,
		logger:     logger,
	}
}

// PruneResult итог очистки прошедших слотов
type PruneResult struct {
	Deleted     int64 `json:"deleted"`
	Deactivated int64 `json:"deactivated"`
}

// GenerateForTemplate создаёт недостающие слоты шаблона на окно, начинающееся с завтрашнего дня.
// Слоты с началом не позже now не создаются. Повторный запуск ничего не дублирует.
func (g *Generator) GenerateForTemplate(ctx context.Context, tmpl *model.RecurringTemplate, now time.Time) ([]*model.TimeSlot, error) {
	windowStart := timeutil.StartOfNextDay(now, g.loc)

	var created []*model.TimeSlot
	for i := 0; i < g.windowDays; i++ {
		day := windowStart.AddDate(0, 0, i)
		if !tmpl.HasDay(day.Weekday()) {
			continue
		}

		start, end := tmpl.Occurrence(day, g.loc)
		if !start.After(now) {
			continue
		}

		exists, err := g.slotRepo.SlotExists(ctx, tmpl.MentorID, start)
		if err != nil {
			return created, fmt.Errorf("check slot existence: %w", err)
		}
		if exists {
			g.logger.Debug("Slot already exists, skipping",
				zap.Int64("template_id", tmpl.SlotID),
				zap.Time("start_time", start),
			)
			continue
		}

		overlapping, err := g.slotRepo.FindOverlapping(ctx, tmpl.MentorID, start, end, 0)
		if err != nil {
			return created, fmt.Errorf("check overlapping slots: %w", err)
		}
		if len(overlapping) > 0 {
			g.logger.Warn("Recurring occurrence overlaps another slot, skipping",
				zap.Int64("template_id", tmpl.SlotID),
				zap.Int64("overlapping_slot_id", overlapping[0].ID),
				zap.Time("start_time", start),
			)
			continue
		}

		slot := tmpl.Instance(start.UTC(), end.UTC())
		ok, err := g.slotRepo.CreateIfAbsent(ctx, slot)
		if err != nil {
			return created, fmt.Errorf("create recurring slot: %w", err)
		}
		if ok {
			created = append(created, slot)
		}
	}

	return created, nil
}

// GenerateAll обходит все активные шаблоны; ошибка одного шаблона не останавливает остальные
func (g *Generator) GenerateAll(ctx context.Context) (int, error) {
	templates, err := g.slotRepo.ListActiveTemplates(ctx)
	if err != nil {
		return 0, fmt.Errorf("list recurring templates: %w", err)
	}

	now := g.now()
	total := 0
	for _, slot := range templates {
		tmpl, err := model.TemplateFromSlot(slot, g.loc)
		if err != nil {
			g.logger.Error("Invalid recurring template", zap.Int64("slot_id", slot.ID), zap.Error(err))
			continue
		}

		created, err := g.GenerateForTemplate(ctx, tmpl, now)
		total += len(created)
		if err != nil {
			g.logger.Error("Failed to generate slots for recurring template",
				zap.Int64("template_id", slot.ID),
				zap.Error(err),
			)
			continue
		}
	}

	g.logger.Info("Generated slots for recurring templates",
		zap.Int("total_templates", len(templates)),
		zap.Int("total_slots_created", total),
		zap.Int("window_days", g.windowDays),
	)

	return total, nil
}

// PruneExpired удаляет прошедшие сгенерированные слоты без бронирований.
// Прошедшие слоты с историей бронирований только деактивируются.
func (g *Generator) PruneExpired(ctx context.Context, now time.Time) (PruneResult, error) {
	var res PruneResult

	deleted, err := g.slotRepo.DeleteExpiredInstances(ctx, now)
	if err != nil {
		return res, fmt.Errorf("delete expired instances: %w", err)
	}
	res.Deleted = deleted

	deactivated, err := g.slotRepo.DeactivateExpired(ctx, now)
	if err != nil {
		return res, fmt.Errorf("deactivate expired slots: %w", err)
	}
	res.Deactivated = deactivated

	if res.Deleted > 0 || res.Deactivated > 0 {
		g.logger.Info("Pruned expired slots",
			zap.Int64("deleted", res.Deleted),
			zap.Int64("deactivated", res.Deactivated),
		)
	}

	return res, nil
}
