package booking

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slotwise/booking-api/internal/handler"
	"github.com/slotwise/booking-api/internal/model"
	bookingService "github.com/slotwise/booking-api/internal/service/booking"
	"github.com/slotwise/booking-api/pkg/validator"
)

type Handler struct {
	service   *bookingService.Service
	validator *validator.Validator
}

func NewHandler(service *bookingService.Service, v *validator.Validator) *Handler {
	return &Handler{service: service, validator: v}
}

// ConfirmBooking commits a held slot and creates the appointment.
func (h *Handler) ConfirmBooking(c *gin.Context) {
	var req model.ConfirmBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	appt, err := h.service.Confirm(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{
		"appointment_id": appt.ID,
		"state":          appt.Status,
	}))
}

func (h *Handler) WalkIn(c *gin.Context) {
	var req model.WalkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	appt, err := h.service.WalkIn(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(appt))
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	bookings := r.Group("/bookings")
	{
		bookings.POST("", h.ConfirmBooking)
		bookings.POST("/walkin", h.WalkIn)
	}
}
