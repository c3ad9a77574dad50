package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Freeeeeet/wellness_booking/internal/model"
)

// Reconcile POST /api/v1/maintenance/reconcile
// Внеочередной обход, отдаёт журнал изменений статусов.
func (h *Handler) Reconcile(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}
	updates, err := h.reconciler.Run(c.Request.Context())
	if updates == nil {
		updates = []model.StatusUpdate{}
	}
	if err != nil {
		// частичный результат полезен, ошибки отдельных бронирований уже в логах
		h.logger.Warn("Reconcile finished with errors",
			zap.Int("updates", len(updates)),
			zap.Error(err))
		if len(updates) == 0 {
			fail(c, h.logger, err)
			return
		}
	}
	ok(c, gin.H{"updates": updates})
}

// Generate POST /api/v1/maintenance/generate
// Генерация по шаблонам, чистка прошедших экземпляров и деактивация прошедших слотов.
func (h *Handler) Generate(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}
	ctx := c.Request.Context()

	generated, err := h.generator.GenerateAll(ctx)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	pruned, err := h.generator.PruneExpired(ctx, h.now())
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	deactivated, err := h.slots.DeactivateExpired(ctx)
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	ok(c, gin.H{
		"created":           generated,
		"pruned":            pruned,
		"deactivated_slots": deactivated,
	})
}
