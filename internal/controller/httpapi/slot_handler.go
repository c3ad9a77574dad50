package httpapi

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Freeeeeet/wellness_booking/internal/model"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	availableSpan = 7 * 24 * time.Hour
	mentorSpan    = 30 * 24 * time.Hour
)

// CreateSlot POST /api/v1/slots
func (h *Handler) CreateSlot(c *gin.Context) {
	var body createSlotBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	slot, err := h.slots.CreateSlot(c.Request.Context(), body.toRequest(actorID(c)))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	created(c, toSlotResponse(slot))
}

// GetSlot GET /api/v1/slots/:id
func (h *Handler) GetSlot(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	slot, err := h.slots.GetSlot(c.Request.Context(), id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, toSlotResponse(slot))
}

// DeactivateSlot DELETE /api/v1/slots/:id
func (h *Handler) DeactivateSlot(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := h.slots.DeactivateSlot(c.Request.Context(), id, actorID(c)); err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, gin.H{"id": id, "is_active": false})
}

// ListAvailableSlots GET /api/v1/slots/available?category=YOGA&from=&to=&limit=
func (h *Handler) ListAvailableSlots(c *gin.Context) {
	var category *model.SessionCategory
	if raw := c.Query("category"); raw != "" {
		cat, valid := model.ParseSessionCategory(raw)
		if !valid {
			badRequest(c, "invalid category "+raw)
			return
		}
		category = &cat
	}

	from, to, valid := h.queryRange(c, availableSpan)
	if !valid {
		return
	}

	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "invalid limit")
			return
		}
		limit = min(n, maxListLimit)
	}

	slots, err := h.slots.ListAvailableSlots(c.Request.Context(), category, from, to, limit)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, gin.H{"list": toSlotResponses(slots)})
}

// ListMentorSlots GET /api/v1/mentors/:id/slots?from=&to=
func (h *Handler) ListMentorSlots(c *gin.Context) {
	mentorID, valid := pathID(c, "id")
	if !valid {
		return
	}
	from, to, valid := h.queryRange(c, mentorSpan)
	if !valid {
		return
	}

	slots, err := h.slots.ListMentorSlots(c.Request.Context(), mentorID, from, to)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, gin.H{"list": toSlotResponses(slots)})
}
