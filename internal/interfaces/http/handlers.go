package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bikeshare/station-kiosk/internal/device"
	"github.com/bikeshare/station-kiosk/internal/domain/flow"
	"github.com/bikeshare/station-kiosk/internal/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	kiosk  *Kiosk
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(kiosk *Kiosk, logger Logger) *Handlers {
	return &Handlers{kiosk: kiosk, logger: logger}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// SessionResponse represents a session's state in API responses
type SessionResponse struct {
	SessionID string      `json:"session_id"`
	Workflow  string      `json:"workflow"`
	Step      int         `json:"step,omitempty"`
	State     interface{} `json:"state"`
	Events    []Event     `json:"events"`
}

// StationResponse represents the dock overview
type StationResponse struct {
	Bikes     []BikeResponse `json:"bikes"`
	Available int            `json:"available"`
	Total     int            `json:"total"`
}

// BikeResponse represents one docked bike
type BikeResponse struct {
	ID     int    `json:"id"`
	Number string `json:"number"`
	Status string `json:"status"`
}

// CreateSessionRequest names the workflow to start
type CreateSessionRequest struct {
	Workflow string `json:"workflow" binding:"required"`
}

// OutcomeRequest selects a demo device outcome
type OutcomeRequest struct {
	Outcome string `json:"outcome" binding:"required"`
}

// SelectRequest carries the selection for the current step
type SelectRequest struct {
	CardType string `json:"card_type,omitempty"`
	BikeID   int    `json:"bike_id,omitempty"`
	Amount   int64  `json:"amount,omitempty"`
}

// AmountRequest carries a cash denomination
type AmountRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

// ConfirmRequest carries a yes/no confirmation
type ConfirmRequest struct {
	Confirmed bool `json:"confirmed"`
}

// PromoRequest carries a promo code
type PromoRequest struct {
	Code string `json:"code" binding:"required"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// GetStation handles GET /api/v1/station
func (h *Handlers) GetStation(c *gin.Context) {
	fleet := h.kiosk.Fleet()

	var bikes []BikeResponse
	for _, b := range fleet.Bikes() {
		bikes = append(bikes, BikeResponse{ID: b.ID, Number: b.Number, Status: b.Status.String()})
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: StationResponse{
			Bikes:     bikes,
			Available: fleet.AvailableCount(),
			Total:     fleet.Total(),
		},
	})
}

// CreateSession handles POST /api/v1/sessions
func (h *Handlers) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "workflow is required")
		return
	}

	session, err := h.kiosk.CreateSession(c.Request.Context(), WorkflowKind(req.Workflow))
	if err != nil {
		if errors.Is(err, ErrUnknownWorkflow) {
			h.badRequest(c, err.Error())
			return
		}
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: h.sessionState(session)})
}

// GetSession handles GET /api/v1/sessions/:id
func (h *Handlers) GetSession(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.sessionState(session)})
}

// CloseSession handles DELETE /api/v1/sessions/:id
func (h *Handlers) CloseSession(c *gin.Context) {
	if err := h.kiosk.CloseSession(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// Scan handles POST /api/v1/sessions/:id/scan
func (h *Handlers) Scan(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req OutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "outcome is required")
		return
	}

	ctx := c.Request.Context()
	var err error
	switch session.Kind {
	case WorkflowCardReturn:
		err = session.CardReturn.Scan(ctx, device.ReturnCardOutcome(req.Outcome))
	case WorkflowRental:
		err = session.Rental.Scan(ctx, device.RentalCardOutcome(req.Outcome))
	case WorkflowBikeReturn:
		err = session.BikeReturn.Scan(ctx, device.BikeReturnCardOutcome(req.Outcome))
	default:
		h.badRequest(c, "this workflow has no scan action")
		return
	}
	h.respond(c, session, err)
}

// Select handles POST /api/v1/sessions/:id/select
func (h *Handlers) Select(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid selection")
		return
	}

	var err error
	switch session.Kind {
	case WorkflowPurchase:
		err = session.Purchase.SelectType(workflow.CardTypeKey(req.CardType))
	case WorkflowRental:
		err = session.Rental.SelectBike(req.BikeID)
	case WorkflowTopUp:
		err = session.TopUp.SelectAmount(req.Amount)
	default:
		h.badRequest(c, "this workflow has no select action")
		return
	}
	h.respond(c, session, err)
}

// Advance handles POST /api/v1/sessions/:id/advance
func (h *Handlers) Advance(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var err error
	switch session.Kind {
	case WorkflowCardReturn:
		err = session.CardReturn.Advance(ctx)
	case WorkflowPurchase:
		err = session.Purchase.Advance(ctx)
	case WorkflowRental:
		err = session.Rental.Advance(ctx)
	case WorkflowBikeReturn:
		err = session.BikeReturn.Advance(ctx)
	default:
		h.badRequest(c, "this workflow has no advance action")
		return
	}
	h.respond(c, session, err)
}

// Retreat handles POST /api/v1/sessions/:id/retreat
func (h *Handlers) Retreat(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req ConfirmRequest
	_ = c.ShouldBindJSON(&req)

	ctx := c.Request.Context()
	var err error
	switch session.Kind {
	case WorkflowCardReturn:
		err = session.CardReturn.Retreat(ctx)
	case WorkflowPurchase:
		err = session.Purchase.Retreat(ctx, req.Confirmed)
	case WorkflowRental:
		err = session.Rental.Retreat(ctx)
	case WorkflowBikeReturn:
		err = session.BikeReturn.Retreat(ctx)
	default:
		h.badRequest(c, "this workflow has no retreat action")
		return
	}
	h.respond(c, session, err)
}

// Confirm handles POST /api/v1/sessions/:id/confirm
func (h *Handlers) Confirm(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req ConfirmRequest
	_ = c.ShouldBindJSON(&req)

	if session.Kind != WorkflowCardReturn {
		h.badRequest(c, "this workflow has no confirm action")
		return
	}
	h.respond(c, session, session.CardReturn.SetConfirmed(req.Confirmed))
}

// InsertCash handles POST /api/v1/sessions/:id/cash
func (h *Handlers) InsertCash(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "amount is required")
		return
	}

	if session.Kind != WorkflowPurchase {
		h.badRequest(c, "this workflow has no cash action")
		return
	}
	h.respond(c, session, session.Purchase.InsertCash(c.Request.Context(), req.Amount))
}

// ResetCash handles POST /api/v1/sessions/:id/reset-cash
func (h *Handlers) ResetCash(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if session.Kind != WorkflowPurchase {
		h.badRequest(c, "this workflow has no reset-cash action")
		return
	}
	h.respond(c, session, session.Purchase.ResetCash())
}

// CheckParking handles POST /api/v1/sessions/:id/parking
func (h *Handlers) CheckParking(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req OutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "outcome is required")
		return
	}

	if session.Kind != WorkflowBikeReturn {
		h.badRequest(c, "this workflow has no parking action")
		return
	}

	if req.Outcome == "reset" {
		h.respond(c, session, session.BikeReturn.ResetSensor())
		return
	}
	h.respond(c, session, session.BikeReturn.CheckParking(c.Request.Context(), device.ParkingOutcome(req.Outcome)))
}

// Calculate handles POST /api/v1/sessions/:id/calculate
func (h *Handlers) Calculate(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if session.Kind != WorkflowBikeReturn {
		h.badRequest(c, "this workflow has no calculate action")
		return
	}
	h.respond(c, session, session.BikeReturn.Calculate(c.Request.Context()))
}

// ApplyPromo handles POST /api/v1/sessions/:id/promo
func (h *Handlers) ApplyPromo(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req PromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "code is required")
		return
	}

	var err error
	switch session.Kind {
	case WorkflowTopUp:
		err = session.TopUp.ApplyPromo(req.Code)
	case WorkflowBikeReturn:
		err = session.BikeReturn.ApplyPromo(req.Code)
	default:
		h.badRequest(c, "this workflow has no promo action")
		return
	}
	h.respond(c, session, err)
}

// Submit handles POST /api/v1/sessions/:id/submit
func (h *Handlers) Submit(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var err error
	switch session.Kind {
	case WorkflowCardReturn:
		err = session.CardReturn.Submit(ctx)
	case WorkflowPurchase:
		err = session.Purchase.Submit(ctx)
	case WorkflowRental:
		err = session.Rental.ConfirmRent(ctx)
	case WorkflowTopUp:
		err = session.TopUp.Submit(ctx)
	case WorkflowBikeReturn:
		err = session.BikeReturn.Pay(ctx)
	}
	h.respond(c, session, err)
}

// ConfirmTaken handles POST /api/v1/sessions/:id/confirm-taken
func (h *Handlers) ConfirmTaken(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if session.Kind != WorkflowRental {
		h.badRequest(c, "this workflow has no confirm-taken action")
		return
	}
	h.respond(c, session, session.Rental.ConfirmTaken())
}

// Cancel handles POST /api/v1/sessions/:id/cancel
func (h *Handlers) Cancel(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req ConfirmRequest
	_ = c.ShouldBindJSON(&req)

	ctx := c.Request.Context()
	var err error
	switch session.Kind {
	case WorkflowCardReturn:
		err = session.CardReturn.Cancel(ctx, req.Confirmed)
	case WorkflowPurchase:
		err = session.Purchase.Cancel(ctx, req.Confirmed)
	case WorkflowRental:
		err = session.Rental.Cancel(ctx, req.Confirmed)
	case WorkflowTopUp:
		err = session.TopUp.Cancel(ctx, req.Confirmed)
	case WorkflowBikeReturn:
		err = session.BikeReturn.Cancel(ctx, req.Confirmed)
	}
	h.respond(c, session, err)
}

func (h *Handlers) session(c *gin.Context) (*Session, bool) {
	session, err := h.kiosk.Session(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "session not found"})
		return nil, false
	}
	return session, true
}

func (h *Handlers) sessionState(session *Session) SessionResponse {
	resp := SessionResponse{
		SessionID: session.ID,
		Workflow:  string(session.Kind),
		Events:    session.Events.Drain(),
	}

	switch session.Kind {
	case WorkflowCardReturn:
		resp.Step = session.CardReturn.Step()
		resp.State = session.CardReturn.Session()
	case WorkflowPurchase:
		resp.Step = session.Purchase.Step()
		resp.State = session.Purchase.Session()
	case WorkflowRental:
		resp.Step = session.Rental.Step()
		resp.State = session.Rental.Session()
	case WorkflowTopUp:
		resp.State = session.TopUp.Session()
	case WorkflowBikeReturn:
		resp.Step = session.BikeReturn.Step()
		resp.State = session.BikeReturn.Session()
	}
	return resp
}

// respond maps a workflow outcome to a JSON reply. Handled failures (the
// workflow rendered an alert and returned nil) look like success here; the
// queued events carry the story.
func (h *Handlers) respond(c *gin.Context, session *Session, err error) {
	if err != nil {
		h.workflowError(c, session, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.sessionState(session)})
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

func (h *Handlers) fail(c *gin.Context, err error) {
	h.logger.Error("Request failed", "error", err)
	c.JSON(http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
}

func (h *Handlers) workflowError(c *gin.Context, session *Session, err error) {
	// Rejected user actions are 4xx; only infrastructure trouble is a 500.
	status := http.StatusUnprocessableEntity
	switch {
	case errors.Is(err, workflow.ErrBusy),
		errors.Is(err, workflow.ErrCancelNotConfirmed),
		errors.Is(err, workflow.ErrSessionComplete),
		errors.Is(err, flow.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, workflow.ErrSessionBlocked),
		errors.Is(err, workflow.ErrCardLocked):
		status = http.StatusLocked
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		status = http.StatusInternalServerError
		h.logger.Error("Workflow action aborted",
			"session_id", session.ID,
			"workflow", string(session.Kind),
			"error", err)
	}

	c.JSON(status, Response{
		Success: false,
		Error:   err.Error(),
		Data:    h.sessionState(session),
	})
}
