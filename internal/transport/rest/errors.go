package rest

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"slotbook/backend/internal/service"
	"slotbook/backend/internal/service/bookings"
	"slotbook/backend/internal/store"
)

// writeError maps service and store errors to a JSON response. Anything it
// does not recognise is logged and reported as a bare 500.
func (s *Server) writeError(c *gin.Context, op string, err error) {
	log := s.log.With(slog.String("op", op))

	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		log.Warn("invalid request", slog.Any("err", err))
		body := gin.H{"error": vErr.Message()}
		if vErr.Field != "" {
			body["field"] = vErr.Field
		}
		c.JSON(http.StatusBadRequest, body)
		return
	}
	if errors.Is(err, bookings.ErrUnauthorized) {
		log.Info("manage token rejected")
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid booking link"})
		return
	}
	if reason, ok := bookings.ConflictReason(err); ok {
		log.Info("booking rejected", slog.String("reason", reason))
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "reason": reason})
		return
	}
	if errors.Is(err, store.ErrConflict) {
		log.Info("booking rejected", slog.String("reason", "SlotTaken"))
		c.JSON(http.StatusConflict, gin.H{"error": bookings.ErrSlotTaken.Error(), "reason": "SlotTaken"})
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	log.Error("request failed", slog.Any("err", err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func badRequest(c *gin.Context, field, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "field": field})
}
