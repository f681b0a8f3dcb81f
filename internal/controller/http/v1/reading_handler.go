package v1

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"shotlocator/internal/domain/entity"
	"shotlocator/internal/domain/usecase"
	"shotlocator/pkg/middleware"
)

type EventUseCase interface {
	SubmitReading(ctx context.Context, r entity.SensorReading) (entity.EventKey, bool, error)
	ListEvents(ctx context.Context, since time.Duration) ([]entity.Event, error)
	GetStatus(ctx context.Context, key entity.EventKey) (entity.EventState, error)
	GetEventStatus(ctx context.Context, id string) (entity.EventState, error)
}

type ReadingHandler struct {
	UseCase EventUseCase
}

func NewReadingHandler(u EventUseCase) *ReadingHandler {
	return &ReadingHandler{UseCase: u}
}

func (h *ReadingHandler) Register(readings, events *gin.RouterGroup) {
	readings.POST("/readings", h.SubmitReading)
	events.GET("/events", h.ListEvents)
	events.GET("/events/:event_key/status", h.GetStatus)
}

func (h *ReadingHandler) SubmitReading(c *gin.Context) {
	var reading entity.SensorReading
	if err := c.ShouldBindJSON(&reading); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reading: " + err.Error()})
		return
	}
	if id := c.GetString(middleware.SensorIDKey); id != "" && id != reading.SensorID {
		c.JSON(http.StatusForbidden, gin.H{"error": "sensor_id does not match the authenticated sensor"})
		return
	}

	key, ready, err := h.UseCase.SubmitReading(c.Request.Context(), reading)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"event_key": key.String(), "ready": ready})
	case errors.Is(err, entity.ErrMalformedReading):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrLateReading), errors.Is(err, usecase.ErrSpreadConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "event_key": key.String()})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	}
}

func (h *ReadingHandler) ListEvents(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
		return
	}

	events, err := h.UseCase.ListEvents(c.Request.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if events == nil {
		events = []entity.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// GetStatus accepts either a bucket key or the ID of a stored event.
func (h *ReadingHandler) GetStatus(c *gin.Context) {
	param := c.Param("event_key")
	if id, err := uuid.Parse(param); err == nil {
		state, err := h.UseCase.GetEventStatus(c.Request.Context(), id.String())
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"event_id": id.String(), "status": state})
		return
	}

	key, err := entity.ParseEventKey(param)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event key"})
		return
	}

	state, err := h.UseCase.GetStatus(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"event_key": key.String(), "status": state})
}
