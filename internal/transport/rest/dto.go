package rest

import (
	"time"

	"slotbook/backend/internal/domain"
)

type bookingResponse struct {
	ID                 string     `json:"id"`
	ServiceID          string     `json:"service_id"`
	StartAt            time.Time  `json:"start_at"`
	EndAt              *time.Time `json:"end_at,omitempty"`
	Status             string     `json:"status"`
	CustomerName       string     `json:"customer_name"`
	CustomerEmail      string     `json:"customer_email"`
	CustomerPhone      *string    `json:"customer_phone,omitempty"`
	Notes              *string    `json:"notes,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
}

func toBookingResponse(b domain.Booking) bookingResponse {
	out := bookingResponse{
		ID:                 b.ID.String(),
		ServiceID:          b.ServiceID.String(),
		StartAt:            b.StartAt.UTC(),
		Status:             string(b.Status),
		CustomerName:       b.CustomerName,
		CustomerEmail:      b.CustomerEmail,
		CustomerPhone:      b.CustomerPhone,
		Notes:              b.Notes,
		CancelledAt:        b.CancelledAt,
		CancellationReason: b.CancellationReason,
	}
	if !b.EndAt.IsZero() {
		end := b.EndAt.UTC()
		out.EndAt = &end
	}
	return out
}

type createdBookingResponse struct {
	Booking     bookingResponse `json:"booking"`
	ManageToken string          `json:"manage_token"`
	ManageURL   string          `json:"manage_url"`
}

type managedBookingResponse struct {
	Booking  bookingResponse `json:"booking"`
	Service  serviceResponse `json:"service"`
	Provider providerSummary `json:"provider"`
}

type serviceResponse struct {
	ID                      string `json:"id"`
	Title                   string `json:"title"`
	PriceCents              int64  `json:"price_cents"`
	DefaultDurationMins     int    `json:"default_duration_mins"`
	CancellationPolicyHours int    `json:"cancellation_policy_hours"`
}

func toServiceResponse(s domain.Service) serviceResponse {
	return serviceResponse{
		ID:                      s.ID.String(),
		Title:                   s.Title,
		PriceCents:              s.PriceCents,
		DefaultDurationMins:     s.DefaultDurationMins,
		CancellationPolicyHours: s.CancellationPolicyHours,
	}
}

type providerSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

type ruleResponse struct {
	ID         string `json:"id"`
	Weekday    int    `json:"weekday"`
	StartLocal string `json:"start"`
	EndLocal   string `json:"end"`
	SlotMins   int    `json:"slot_mins"`
}

func toRuleResponse(r domain.AvailabilityRule) ruleResponse {
	return ruleResponse{
		ID:         r.ID.String(),
		Weekday:    r.Weekday,
		StartLocal: r.StartLocal,
		EndLocal:   r.EndLocal,
		SlotMins:   r.SlotMins,
	}
}

type timeOffResponse struct {
	ID      string    `json:"id"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
	Reason  *string   `json:"reason,omitempty"`
}

func toTimeOffResponse(t domain.TimeOff) timeOffResponse {
	return timeOffResponse{
		ID:      t.ID.String(),
		StartAt: t.StartTimeUTC.UTC(),
		EndAt:   t.EndTimeUTC.UTC(),
		Reason:  t.Reason,
	}
}

type createBookingRequest struct {
	StartAt       string `json:"start_at" binding:"required"`
	DurationMins  int    `json:"duration_mins"`
	CustomerName  string `json:"customer_name" binding:"required"`
	CustomerEmail string `json:"customer_email" binding:"required,email"`
	CustomerPhone string `json:"customer_phone"`
	Notes         string `json:"notes"`
}

type rescheduleRequest struct {
	Token string `json:"token" binding:"required"`
	Date  string `json:"date" binding:"required"`
	Start string `json:"start" binding:"required"`
}

type cancelRequest struct {
	Token  string `json:"token" binding:"required"`
	Reason string `json:"reason"`
}

type createRuleRequest struct {
	Weekday  *int   `json:"weekday" binding:"required"`
	Start    string `json:"start" binding:"required"`
	End      string `json:"end" binding:"required"`
	SlotMins int    `json:"slot_mins" binding:"required"`
}

type addTimeOffRequest struct {
	Date   string `json:"date" binding:"required"`
	Start  string `json:"start" binding:"required"`
	End    string `json:"end" binding:"required"`
	Reason string `json:"reason"`
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type createServiceRequest struct {
	Title                   string `json:"title" binding:"required"`
	PriceCents              int64  `json:"price_cents" binding:"required"`
	DefaultDurationMins     int    `json:"default_duration_mins" binding:"required"`
	CancellationPolicyHours int    `json:"cancellation_policy_hours"`
}

// updateServiceRequest leaves absent fields unchanged.
type updateServiceRequest struct {
	Title                   *string `json:"title"`
	PriceCents              *int64  `json:"price_cents"`
	DefaultDurationMins     *int    `json:"default_duration_mins"`
	CancellationPolicyHours *int    `json:"cancellation_policy_hours"`
}
