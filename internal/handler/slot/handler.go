package slot

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/slotwise/booking-api/internal/handler"
	"github.com/slotwise/booking-api/internal/model"
	slotService "github.com/slotwise/booking-api/internal/service/slot"
	"github.com/slotwise/booking-api/pkg/validator"
)

type Handler struct {
	service   *slotService.Service
	validator *validator.Validator
}

func NewHandler(service *slotService.Service, v *validator.Validator) *Handler {
	return &Handler{service: service, validator: v}
}

func (h *Handler) ReserveTemporary(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid slot ID"))
		return
	}

	var req model.ReserveSlotRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
			return
		}
		if err := h.validator.Validate(&req); err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
			return
		}
	}

	slot, err := h.service.ReserveTemporary(c.Request.Context(), id, time.Duration(req.HoldSeconds)*time.Second)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(model.SlotReservation{
		SlotID:    slot.ID,
		HeldUntil: *slot.HeldUntil,
	}))
}

func (h *Handler) ReleaseReservation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid slot ID"))
		return
	}

	slot, err := h.service.ReleaseReservation(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"slot_id": slot.ID,
		"state":   slot.State,
	}))
}

// ExpireReservations runs an on-demand sweep within the caller's
// tenant. The cross-tenant sweep belongs to the background reaper.
func (h *Handler) ExpireReservations(c *gin.Context) {
	count, err := h.service.ExpireHeld(c.Request.Context(), time.Now())
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"reclaimed_count": count,
	}))
}

func (h *Handler) GetSlot(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid slot ID"))
		return
	}

	slot, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(slot))
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	slots := r.Group("/slots")
	{
		slots.GET("/:id", h.GetSlot)
		slots.POST("/:id/reserve", h.ReserveTemporary)
		slots.POST("/:id/release", h.ReleaseReservation)
		slots.POST("/expire", h.ExpireReservations)
	}
}
