// Package api is the HTTP front door: it accepts batches and runs them on
// the single automation lane.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"kakao-autopilot/src/journal"
	"kakao-autopilot/src/worker"
	"kakao-autopilot/src/workflow"
)

// Automation runs one batch to completion.
type Automation interface {
	AddFriends(ctx context.Context, contacts []workflow.Contact) []workflow.Result
	SendMessages(ctx context.Context, groups []workflow.MessageGroup) []workflow.Result
}

// Lane admits one batch at a time.
type Lane interface {
	Run(ctx context.Context, name string, fn worker.Job) error
	Busy() bool
}

// Journal is optional; nil disables persistence and the lookup routes.
type Journal interface {
	Record(ctx context.Context, b journal.Batch, results []workflow.Result) error
	Batch(ctx context.Context, id string) (*journal.Batch, error)
	Results(ctx context.Context, batchID string) ([]workflow.Result, error)
	FriendStatus(ctx context.Context, phone string) (workflow.Status, bool, error)
}

type Handler struct {
	auto      Automation
	lane      Lane
	journal   Journal
	imageRoot string
	now       func() time.Time
}

func NewHandler(auto Automation, lane Lane, j Journal, imageRoot string) *Handler {
	return &Handler{auto: auto, lane: lane, journal: j, imageRoot: imageRoot, now: time.Now}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	g := e.Group("/kakao")
	g.POST("/add-friends", h.AddFriends)
	g.POST("/send-messages", h.SendMessages)
	g.GET("/batches/:batch_id", h.GetBatch)
	g.GET("/friends/:phone/status", h.FriendStatus)
}

// BatchResponse is returned by both batch endpoints.
type BatchResponse struct {
	BatchID string            `json:"batch_id"`
	Results []workflow.Result `json:"results"`
}

// Health reports liveness and whether a batch is running.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
		"busy":   h.lane.Busy(),
	})
}

// runBatch executes fn on the lane, journals the outcome and writes the response.
func (h *Handler) runBatch(c echo.Context, kind string, fn func(ctx context.Context) []workflow.Result) error {
	ctx := c.Request().Context()
	batchID := uuid.NewString()
	started := h.now()

	var results []workflow.Result
	err := h.lane.Run(ctx, kind+" "+batchID, func(ctx context.Context) {
		results = fn(ctx)
	})
	if errors.Is(err, worker.ErrBusy) {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	if err != nil {
		log.Printf("ERROR: batch %s: %v", batchID, err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	}
	if results == nil {
		results = []workflow.Result{}
	}

	if h.journal != nil {
		b := journal.Batch{ID: batchID, Kind: kind, StartedAt: started, FinishedAt: h.now()}
		if err := h.journal.Record(context.WithoutCancel(ctx), b, results); err != nil {
			log.Printf("ERROR: failed to journal batch %s: %v", batchID, err)
		}
	}
	return c.JSON(http.StatusOK, BatchResponse{BatchID: batchID, Results: results})
}

// GetBatch returns a journaled batch.
// GET /kakao/batches/:batch_id
func (h *Handler) GetBatch(c echo.Context) error {
	if h.journal == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "journal disabled"})
	}
	ctx := c.Request().Context()
	id := c.Param("batch_id")
	b, err := h.journal.Batch(ctx, id)
	if err != nil {
		log.Printf("ERROR: failed to get batch: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get batch"})
	}
	if b == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "batch not found"})
	}
	results, err := h.journal.Results(ctx, id)
	if err != nil {
		log.Printf("ERROR: failed to get batch results: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get batch results"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"batch":   b,
		"results": results,
	})
}

// FriendStatus returns the last recorded friend-add status for a phone number.
// GET /kakao/friends/:phone/status
func (h *Handler) FriendStatus(c echo.Context) error {
	if h.journal == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "journal disabled"})
	}
	phone := c.Param("phone")
	st, ok, err := h.journal.FriendStatus(c.Request().Context(), phone)
	if err != nil {
		log.Printf("ERROR: failed to get friend status: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get friend status"})
	}
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no record for phone"})
	}
	return c.JSON(http.StatusOK, map[string]string{"phone": phone, "status": string(st)})
}
