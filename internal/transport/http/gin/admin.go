package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/ticketcore/internal/domain"
	"github.com/kirinyoku/ticketcore/internal/service"
	"github.com/kirinyoku/ticketcore/internal/service/admin"
)

// @Summary  Create user
// @Param    req body  CreateUserRequest true "payload"
// @Success  201 {object} domain.User
// @Failure  409 {object} ErrorResponse
// @Router   /admin/users [post]
func handleCreateUser(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		u, err := svcs.Admin.CreateUser(c.Request.Context(), req.Email, req.Name)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, u)
	}
}

// @Summary  Create event
// @Param    req body  CreateEventRequest true "payload"
// @Success  201 {object} domain.Event
// @Failure  400 {object} ErrorResponse
// @Router   /admin/events [post]
func handleCreateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		starts, err := parseRFC3339(req.StartsAt)
		if err != nil {
			badRequest(c, "invalid starts_at (RFC3339)")
			return
		}
		ends, err := parseRFC3339(req.EndsAt)
		if err != nil {
			badRequest(c, "invalid ends_at (RFC3339)")
			return
		}

		ctx := c.Request.Context()
		e, err := svcs.Admin.CreateEvent(ctx, admin.CreateEventInput{
			OrganizerID: req.OrganizerID,
			Title:       req.Title,
			StartsAt:    starts,
			EndsAt:      ends,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		if req.Publish {
			if err := svcs.Admin.PublishEvent(ctx, e.ID); err != nil {
				respondErr(c, err)
				return
			}
			e.Status = domain.EventPublished
		}
		c.JSON(http.StatusCreated, e)
	}
}

// @Summary  Publish event
// @Param    id  path  string  true  "Event ID (uuid)"
// @Success  204
// @Failure  404 {object} ErrorResponse
// @Router   /admin/events/{id}/publish [post]
func handlePublishEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		respondErr(c, svcs.Admin.PublishEvent(c.Request.Context(), id))
	}
}

// @Summary  Cancel event
// @Param    id  path  string  true  "Event ID (uuid)"
// @Success  204
// @Failure  404 {object} ErrorResponse
// @Router   /admin/events/{id}/cancel [post]
func handleCancelEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		respondErr(c, svcs.Admin.CancelEvent(c.Request.Context(), id))
	}
}

// @Summary  Create ticket type
// @Param    id  path  string                   true  "Event ID (uuid)"
// @Param    req body  CreateTicketTypeRequest  true  "payload"
// @Success  201 {object} domain.TicketType
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Router   /admin/events/{id}/ticket-types [post]
func handleCreateTicketType(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req CreateTicketTypeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		start, err := parseRFC3339(req.SaleStart)
		if err != nil {
			badRequest(c, "invalid sale_start (RFC3339)")
			return
		}
		end, err := parseRFC3339(req.SaleEnd)
		if err != nil {
			badRequest(c, "invalid sale_end (RFC3339)")
			return
		}

		tt, err := svcs.Admin.CreateTicketType(c.Request.Context(), admin.CreateTicketTypeInput{
			EventID:     eventID,
			Name:        req.Name,
			Price:       req.Price,
			Quantity:    req.Quantity,
			SaleStart:   start,
			SaleEnd:     end,
			MinPerOrder: req.MinPerOrder,
			MaxPerOrder: req.MaxPerOrder,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, tt)
	}
}

// @Summary  Grow ticket type quantity
// @Param    id  path  string               true  "Ticket type ID (uuid)"
// @Param    req body  GrowQuantityRequest  true  "new total quantity"
// @Success  200 {object} domain.TicketType
// @Failure  409 {object} ErrorResponse "quantity cannot shrink"
// @Router   /admin/ticket-types/{id}/quantity [patch]
func handleGrowQuantity(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req GrowQuantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		tt, err := svcs.Admin.GrowQuantity(c.Request.Context(), id, req.Quantity)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, tt)
	}
}
