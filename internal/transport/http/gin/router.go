package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ivankosh/seatwise/internal/domain"
	redisrepo "github.com/ivankosh/seatwise/internal/repository/redis"
	"github.com/ivankosh/seatwise/internal/service"
	"github.com/ivankosh/seatwise/internal/service/admin"
	"github.com/ivankosh/seatwise/internal/service/query"
	"github.com/ivankosh/seatwise/internal/service/reservation"
	"github.com/ivankosh/seatwise/internal/service/seatlock"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	jwtSecret string,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/events", handleListEvents(svcs))
	r.GET("/events/:id", handleGetEvent(svcs))
	r.GET("/events/:id/availability", handleGetAvailability(svcs))
	r.GET("/events/:id/seats", handleListEventSeats(svcs))

	auth := AuthMiddleware(jwtSecret)

	// Seat holds and reservations, attributed to the JWT subject
	authed := r.Group("/", auth)
	{
		authed.POST("/events/:id/seats/:seatID/lock", handleLockSeat(svcs))
		authed.POST("/events/:id/seats/:seatID/unlock", handleUnlockSeat(svcs))

		authed.POST("/events/:id/reservations", handleReserve(svcs, idem))

		authed.GET("/me/reservations", handleMyReservations(svcs))
		authed.GET("/me/reservations/:id", handleGetReservation(svcs))
		authed.POST("/reservations/:id/cancel", handleCancelReservation(svcs))
	}

	// Admin API
	// TODO: enforce an admin role claim once the issuer starts setting one
	adm := r.Group("/admin", auth)
	{
		adm.POST("/events", handleCreateEvent(svcs))
		adm.PATCH("/events/:id", handleUpdateEvent(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  List events with availability counts
// @Success  200  {array}  EventSummaryResponse
// @Router   /events [get]
func handleListEvents(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := svcs.Query.ListEvents(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		cachedJSON(c, http.StatusOK, 15*time.Second, toSummaryResponses(events))
	}
}

// @Summary  Get event
// @Param    id  path  int  true  "Event ID"
// @Success  200  {object}  EventResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{id} [get]
func handleGetEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		e, err := svcs.Query.GetEvent(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		cachedJSON(c, http.StatusOK, time.Minute, toEventResponse(e))
	}
}

// @Summary  Get availability counters
// @Param    id  path  int  true  "Event ID"
// @Success  200  {object}  CountsResponse
// @Router   /events/{id}/availability [get]
func handleGetAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		cnt, err := svcs.Query.CountsByStatus(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		cachedJSON(c, http.StatusOK, 15*time.Second, toCountsResponse(*cnt))
	}
}

// @Summary  List event seats
// @Param    id  path  int  true  "Event ID"
// @Success  200  {array}  SeatResponse
// @Router   /events/{id}/seats [get]
func handleListEventSeats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		seats, err := svcs.Query.ListEventSeats(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		cachedJSON(c, http.StatusOK, 5*time.Second, toSeatResponses(seats))
	}
}

// @Summary  Lock a seat for the caller
// @Param    id      path  int  true  "Event ID"
// @Param    seatID  path  int  true  "Seat ID"
// @Success  200  {object}  SeatResponse
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse "seat held by someone else"
// @Failure  429  {object}  ErrorResponse "rate limited"
// @Router   /events/{id}/seats/{seatID}/lock [post]
func handleLockSeat(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := mustActor(c)
		if !ok {
			return
		}
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		seatID, ok := parseInt64Param(c, "seatID")
		if !ok {
			return
		}

		seat, err := svcs.SeatLock.Acquire(
			c.Request.Context(),
			actor,
			eventID,
			seatID,
			"ip:"+c.ClientIP(),
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toSeatResponse(seat, true))
	}
}

// @Summary  Release the caller's seat lock
// @Param    id      path  int  true  "Event ID"
// @Param    seatID  path  int  true  "Seat ID"
// @Success  200  {object}  map[string]string
// @Failure  403  {object}  ErrorResponse "locked by another actor"
// @Failure  409  {object}  ErrorResponse "seat is not locked"
// @Router   /events/{id}/seats/{seatID}/unlock [post]
func handleUnlockSeat(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := mustActor(c)
		if !ok {
			return
		}
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		seatID, ok := parseInt64Param(c, "seatID")
		if !ok {
			return
		}

		if err := svcs.SeatLock.Release(c.Request.Context(), actor, eventID, seatID); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "released"})
	}
}

// @Summary  Reserve locked seats (idempotent)
// @Param    id  path  int  true  "Event ID"
// @Param    req body  ReserveRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} ReservationResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "seats not locked by caller / idem in progress"
// @Router   /events/{id}/reservations [post]
func handleReserve(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := mustActor(c)
		if !ok {
			return
		}
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req ReserveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemReserve(eventID, idemKey)

			if payload, ok, _ := idem.GetResult(
				c.Request.Context(),
				idemStorageKey,
			); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(
					http.StatusCreated,
					"application/json; charset=utf-8",
					[]byte(payload),
				)
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(
					c.Request.Context(),
					idemStorageKey,
				); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(
						http.StatusCreated,
						"application/json; charset=utf-8",
						[]byte(payload),
					)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Kind: "idempotency_in_progress", Error: "idempotency key in progress"},
				)
				return
			}
		}

		res, err := svcs.Reservation.Reserve(
			c.Request.Context(),
			actor,
			eventID,
			req.SeatIDs,
		)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := toReservationResponse(res)

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  List the caller's reservations
// @Success  200  {array}  ReservationResponse
// @Router   /me/reservations [get]
func handleMyReservations(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := mustActor(c)
		if !ok {
			return
		}
		out, err := svcs.Reservation.ListByActor(c.Request.Context(), actor)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toReservationResponses(out))
	}
}

// @Summary  Get one of the caller's reservations
// @Param    id  path  string  true  "Reservation ID (uuid)"
// @Success  200  {object}  ReservationResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /me/reservations/{id} [get]
func handleGetReservation(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := mustActor(c)
		if !ok {
			return
		}
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "invalid reservation id")
			return
		}
		res, err := svcs.Reservation.Get(c.Request.Context(), actor, id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toReservationResponse(res))
	}
}

// @Summary  Cancel the caller's reservation
// @Param    id  path  string  true  "Reservation ID (uuid)"
// @Success  200  {object}  map[string]string
// @Failure  403  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /reservations/{id}/cancel [post]
func handleCancelReservation(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := mustActor(c)
		if !ok {
			return
		}
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "invalid reservation id")
			return
		}
		if err := svcs.Reservation.Cancel(c.Request.Context(), actor, id); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
	}
}

// @Summary  Create event and init its seat grid
// @Param    req body  CreateEventRequest true "payload"
// @Success  201 {object} CreateEventResponse
// @Failure  409 {object} ErrorResponse
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
		id, err := svcs.Admin.CreateEvent(
			c.Request.Context(),
			domain.Event{
				Name:        req.Name,
				Description: req.Description,
				Location:    req.Location,
				StartsAt:    starts,
			},
			req.Rows,
			req.SeatsPerRow,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateEventResponse{EventID: id})
	}
}

// @Summary  Update event info
// @Param    id  path  int  true  "Event ID"
// @Param    req body  UpdateEventRequest true "payload"
// @Success  200 {object} map[string]string
// @Failure  404 {object} ErrorResponse
// @Router   /admin/events/{id} [patch]
func handleUpdateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req UpdateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := svcs.Admin.UpdateEventInfo(
			c.Request.Context(),
			eventID,
			req.Name,
			req.Description,
			req.Location,
		); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "updated"})
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func mustActor(c *gin.Context) (int64, bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(
			http.StatusUnauthorized,
			ErrorResponse{Kind: "unauthorized", Error: "missing identity"},
		)
		return 0, false
	}
	return actor, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Kind: "bad_request", Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch {
	// seat lock service
	case errors.Is(err, seatlock.ErrSeatNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Kind: "seat_not_found", Error: "seat not found"})
		return
	case errors.Is(err, seatlock.ErrSeatConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Kind: "seat_conflict", Error: "seat held by another actor"})
		return
	case errors.Is(err, seatlock.ErrNotLocked):
		c.JSON(http.StatusConflict, ErrorResponse{Kind: "not_locked", Error: "seat is not locked"})
		return
	case errors.Is(err, seatlock.ErrNotLockHolder):
		c.JSON(http.StatusForbidden, ErrorResponse{Kind: "not_lock_holder", Error: "seat locked by another actor"})
		return
	case errors.Is(err, seatlock.ErrRateLimited):
		c.Header("Retry-After", "60")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Kind: "rate_limited", Error: "rate limited"})
		return
	// reservation service
	case errors.Is(err, reservation.ErrNoSeatsSelected):
		c.JSON(http.StatusBadRequest, ErrorResponse{Kind: "no_seats_selected", Error: "no seats selected"})
		return
	case errors.Is(err, reservation.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Kind: "event_not_found", Error: "event not found"})
		return
	case errors.Is(err, reservation.ErrSeatsNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Kind: "seats_not_found", Error: "one or more seats not found"})
		return
	case errors.Is(err, reservation.ErrSeatsNotLocked):
		c.JSON(http.StatusConflict, ErrorResponse{Kind: "seats_not_locked", Error: "seats not locked by caller"})
		return
	case errors.Is(err, reservation.ErrReservationNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Kind: "reservation_not_found", Error: "reservation not found"})
		return
	case errors.Is(err, reservation.ErrNotOwner):
		c.JSON(http.StatusForbidden, ErrorResponse{Kind: "not_owner", Error: "reservation owned by another actor"})
		return
	// query service
	case errors.Is(err, query.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Kind: "event_not_found", Error: "event not found"})
		return
	// admin service
	case errors.Is(err, admin.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Kind: "event_not_found", Error: "event not found"})
		return
	case errors.Is(err, admin.ErrEventConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Kind: "event_conflict", Error: "event already exists"})
		return
	case errors.Is(err, admin.ErrInvalidLayout):
		c.JSON(http.StatusBadRequest, ErrorResponse{Kind: "invalid_layout", Error: "invalid seat layout"})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Kind: "internal", Error: "internal error"})
}
