package rest

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/service/availability"
	"slotbook/backend/internal/service/bookings"
	"slotbook/backend/internal/service/catalog"
	"slotbook/backend/internal/service/notifications"
	"slotbook/backend/internal/service/slots"
)

// GET /v1/services/:id/slots?date=YYYY-MM-DD[&tz=][&duration=][&lead=][&provider_id=]
func (s *Server) listSlots(c *gin.Context) {
	serviceID, ok := pathID(c, "id")
	if !ok {
		return
	}
	date := strings.TrimSpace(c.Query("date"))
	if date == "" {
		badRequest(c, "date", "is required")
		return
	}

	p := slots.Params{
		ServiceID: serviceID,
		TimeZone:  strings.TrimSpace(c.Query("tz")),
		Date:      date,
	}
	if raw := c.Query("provider_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "provider_id", "must be a uuid")
			return
		}
		p.ProviderID = id
	}
	if raw := c.Query("duration"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "duration", "must be an integer")
			return
		}
		p.DurationMins = n
	}
	if raw := c.Query("lead"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "lead", "must be a non-negative integer")
			return
		}
		p.LeadMinutes = &n
	}

	out, err := s.slots.Generate(c.Request.Context(), p)
	if err != nil {
		s.writeError(c, "slots.generate", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": out})
}

// POST /v1/services/:id/bookings
func (s *Server) createBooking(c *gin.Context) {
	serviceID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	startAt, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(req.StartAt))
	if err != nil {
		badRequest(c, "start_at", "must be an RFC 3339 timestamp")
		return
	}

	b, err := s.bookings.AttemptBooking(c.Request.Context(), bookings.BookingInput{
		ServiceID:     serviceID,
		StartAt:       startAt,
		DurationMins:  req.DurationMins,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		Notes:         req.Notes,

		IdempotencyKey: idempotencyKey(c),
	})
	if err != nil {
		s.writeError(c, "bookings.create", err)
		return
	}

	c.JSON(http.StatusCreated, createdBookingResponse{
		Booking:     toBookingResponse(b),
		ManageToken: b.ManageToken,
		ManageURL:   notifications.ManageURL(s.opts.AppURL, b),
	})
}

// GET /v1/bookings/:id?token=
func (s *Server) getBooking(c *gin.Context) {
	bookingID, ok := pathID(c, "id")
	if !ok {
		return
	}
	m, err := s.bookings.GetManaged(c.Request.Context(), bookingID, manageToken(c))
	if err != nil {
		s.writeError(c, "bookings.get", err)
		return
	}
	c.JSON(http.StatusOK, managedBookingResponse{
		Booking: toBookingResponse(m.Booking),
		Service: toServiceResponse(m.Service),
		Provider: providerSummary{
			ID:       m.Provider.ID.String(),
			Name:     m.Provider.Name,
			Timezone: m.Provider.Timezone,
		},
	})
}

// POST /v1/bookings/:id/reschedule
func (s *Server) rescheduleBooking(c *gin.Context) {
	bookingID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := s.bookings.AttemptReschedule(c.Request.Context(), bookingID, req.Token, bookings.RescheduleInput{
		Date:       req.Date,
		StartLocal: req.Start,
	})
	if err != nil {
		s.writeError(c, "bookings.reschedule", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": toBookingResponse(b)})
}

// POST /v1/bookings/:id/cancel
func (s *Server) cancelBooking(c *gin.Context) {
	bookingID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := s.bookings.AttemptCancel(c.Request.Context(), bookingID, req.Token, req.Reason)
	if err != nil {
		s.writeError(c, "bookings.cancel", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": toBookingResponse(b)})
}

// GET /v1/provider/rules
func (s *Server) listRules(c *gin.Context) {
	rules, err := s.availability.ListRules(c.Request.Context(), providerID(c))
	if err != nil {
		s.writeError(c, "rules.list", err)
		return
	}
	out := make([]ruleResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, toRuleResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"rules": out})
}

// POST /v1/provider/rules
func (s *Server) createRule(c *gin.Context) {
	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.availability.CreateOrMergeRule(c.Request.Context(), providerID(c), availability.RuleInput{
		Weekday:    *req.Weekday,
		StartLocal: req.Start,
		EndLocal:   req.End,
		SlotMins:   req.SlotMins,
	})
	if err != nil {
		s.writeError(c, "rules.create", err)
		return
	}
	if res.Outcome == availability.OutcomeDropped {
		c.JSON(http.StatusOK, gin.H{"outcome": res.Outcome})
		return
	}

	replaced := make([]string, 0, len(res.Replaced))
	for _, id := range res.Replaced {
		replaced = append(replaced, id.String())
	}
	s.log.Info("rule saved",
		slog.String("provider_id", providerID(c).String()),
		slog.String("outcome", string(res.Outcome)),
		slog.Int("replaced", len(replaced)),
	)
	c.JSON(http.StatusCreated, gin.H{
		"outcome":  res.Outcome,
		"rule":     toRuleResponse(res.Rule),
		"replaced": replaced,
	})
}

// DELETE /v1/provider/rules/:id
func (s *Server) deleteRule(c *gin.Context) {
	ruleID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.availability.DeleteRule(c.Request.Context(), providerID(c), ruleID); err != nil {
		s.writeError(c, "rules.delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /v1/provider/time-off?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *Server) listTimeOff(c *gin.Context) {
	offs, err := s.availability.ListTimeOff(c.Request.Context(), providerID(c), c.Query("from"), c.Query("to"))
	if err != nil {
		s.writeError(c, "timeoff.list", err)
		return
	}
	out := make([]timeOffResponse, 0, len(offs))
	for _, t := range offs {
		out = append(out, toTimeOffResponse(t))
	}
	c.JSON(http.StatusOK, gin.H{"time_off": out})
}

// POST /v1/provider/time-off
func (s *Server) addTimeOff(c *gin.Context) {
	var req addTimeOffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	off, ok, err := s.availability.AddTimeOff(c.Request.Context(), providerID(c), availability.TimeOffInput{
		Date:       req.Date,
		StartLocal: req.Start,
		EndLocal:   req.End,
		Reason:     req.Reason,
	})
	if err != nil {
		s.writeError(c, "timeoff.add", err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"outcome": availability.OutcomeDropped})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"outcome": availability.OutcomeInserted, "time_off": toTimeOffResponse(off)})
}

// DELETE /v1/provider/time-off/:id
func (s *Server) deleteTimeOff(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.availability.DeleteTimeOff(c.Request.Context(), providerID(c), id); err != nil {
		s.writeError(c, "timeoff.delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PATCH /v1/provider/bookings/:id/status
func (s *Server) setBookingStatus(c *gin.Context) {
	bookingID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := domain.ParseBookingStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if err != nil {
		badRequest(c, "status", err.Error())
		return
	}
	b, err := s.bookings.SetStatus(c.Request.Context(), providerID(c), bookingID, status)
	if err != nil {
		s.writeError(c, "bookings.status", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": toBookingResponse(b)})
}

// GET /v1/provider/bookings[?from=YYYY-MM-DD][&to=YYYY-MM-DD]
func (s *Server) listProviderBookings(c *gin.Context) {
	rows, err := s.bookings.ListProviderBookings(c.Request.Context(), providerID(c), c.Query("from"), c.Query("to"))
	if err != nil {
		s.writeError(c, "bookings.list", err)
		return
	}
	out := make([]bookingResponse, 0, len(rows))
	for _, b := range rows {
		out = append(out, toBookingResponse(b))
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out})
}

// GET /v1/provider/services
func (s *Server) listServices(c *gin.Context) {
	rows, err := s.catalog.ListServices(c.Request.Context(), providerID(c))
	if err != nil {
		s.writeError(c, "services.list", err)
		return
	}
	out := make([]serviceResponse, 0, len(rows))
	for _, svc := range rows {
		out = append(out, toServiceResponse(svc))
	}
	c.JSON(http.StatusOK, gin.H{"services": out})
}

// POST /v1/provider/services
func (s *Server) createService(c *gin.Context) {
	var req createServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	svc, err := s.catalog.CreateService(c.Request.Context(), providerID(c), catalog.ServiceInput{
		Title:                   req.Title,
		PriceCents:              req.PriceCents,
		DefaultDurationMins:     req.DefaultDurationMins,
		CancellationPolicyHours: req.CancellationPolicyHours,
	})
	if err != nil {
		s.writeError(c, "services.create", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"service": toServiceResponse(svc)})
}

// PATCH /v1/provider/services/:id
func (s *Server) updateService(c *gin.Context) {
	serviceID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	svc, err := s.catalog.UpdateService(c.Request.Context(), providerID(c), serviceID, catalog.ServiceUpdate{
		Title:                   req.Title,
		PriceCents:              req.PriceCents,
		DefaultDurationMins:     req.DefaultDurationMins,
		CancellationPolicyHours: req.CancellationPolicyHours,
	})
	if err != nil {
		s.writeError(c, "services.update", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"service": toServiceResponse(svc)})
}

// DELETE /v1/provider/services/:id
func (s *Server) deleteService(c *gin.Context) {
	serviceID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.catalog.DeleteService(c.Request.Context(), providerID(c), serviceID); err != nil {
		s.writeError(c, "services.delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /v1/internal/notifications/dispatch
func (s *Server) dispatchNotifications(c *gin.Context) {
	res, err := s.dispatcher.RunOnce(c.Request.Context())
	if err != nil {
		s.writeError(c, "notifications.dispatch", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, name, "must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

func idempotencyKey(c *gin.Context) string {
	if k := strings.TrimSpace(c.GetHeader("Idempotency-Key")); k != "" {
		return k
	}
	return strings.TrimSpace(c.GetHeader("X-Idempotency-Key"))
}

func manageToken(c *gin.Context) string {
	if t := c.GetHeader("X-Manage-Token"); t != "" {
		return t
	}
	return c.Query("token")
}
