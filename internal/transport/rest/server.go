package rest

import (
	"context"
	"log/slog"
	"net/http"
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

type slotsService interface {
	Generate(ctx context.Context, p slots.Params) ([]string, error)
}

type availabilityService interface {
	CreateOrMergeRule(ctx context.Context, providerID uuid.UUID, in availability.RuleInput) (availability.RuleResult, error)
	ListRules(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityRule, error)
	DeleteRule(ctx context.Context, providerID, ruleID uuid.UUID) error
	AddTimeOff(ctx context.Context, providerID uuid.UUID, in availability.TimeOffInput) (domain.TimeOff, bool, error)
	ListTimeOff(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd string) ([]domain.TimeOff, error)
	DeleteTimeOff(ctx context.Context, providerID, timeOffID uuid.UUID) error
}

type bookingsService interface {
	AttemptBooking(ctx context.Context, in bookings.BookingInput) (domain.Booking, error)
	AttemptReschedule(ctx context.Context, bookingID uuid.UUID, token string, in bookings.RescheduleInput) (domain.Booking, error)
	AttemptCancel(ctx context.Context, bookingID uuid.UUID, token, reason string) (domain.Booking, error)
	SetStatus(ctx context.Context, providerID, bookingID uuid.UUID, status domain.BookingStatus) (domain.Booking, error)
	GetManaged(ctx context.Context, bookingID uuid.UUID, token string) (bookings.ManagedBooking, error)
	ListProviderBookings(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd string) ([]domain.Booking, error)
}

type catalogService interface {
	ListServices(ctx context.Context, providerID uuid.UUID) ([]domain.Service, error)
	CreateService(ctx context.Context, providerID uuid.UUID, in catalog.ServiceInput) (domain.Service, error)
	UpdateService(ctx context.Context, providerID, serviceID uuid.UUID, in catalog.ServiceUpdate) (domain.Service, error)
	DeleteService(ctx context.Context, providerID, serviceID uuid.UUID) error
}

type dispatcher interface {
	RunOnce(ctx context.Context) (notifications.Result, error)
}

type Options struct {
	// AppURL prefixes the manage link returned to customers.
	AppURL     string
	JWTSecret  string
	CronSecret string
	// RequestTimeout bounds each request's context. Zero means 10s.
	RequestTimeout time.Duration
}

type Server struct {
	slots        slotsService
	availability availabilityService
	bookings     bookingsService
	catalog      catalogService
	dispatcher   dispatcher
	opts         Options
	log          *slog.Logger
}

func NewServer(sl slotsService, av availabilityService, bk bookingsService, cat catalogService, d dispatcher, opts Options, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	opts.AppURL = strings.TrimRight(opts.AppURL, "/")
	return &Server{
		slots:        sl,
		availability: av,
		bookings:     bk,
		catalog:      cat,
		dispatcher:   d,
		opts:         opts,
		log:          log.With(slog.String("component", "http")),
	}
}

// Router builds the gin engine with every route mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestTimeout(s.opts.RequestTimeout), s.accessLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	v1.GET("/services/:id/slots", s.listSlots)
	v1.POST("/services/:id/bookings", s.createBooking)

	manage := v1.Group("/bookings/:id")
	manage.GET("", s.getBooking)
	manage.POST("/reschedule", s.rescheduleBooking)
	manage.POST("/cancel", s.cancelBooking)

	provider := v1.Group("/provider", ProviderAuth(s.opts.JWTSecret))
	provider.GET("/rules", s.listRules)
	provider.POST("/rules", s.createRule)
	provider.DELETE("/rules/:id", s.deleteRule)
	provider.GET("/time-off", s.listTimeOff)
	provider.POST("/time-off", s.addTimeOff)
	provider.DELETE("/time-off/:id", s.deleteTimeOff)
	provider.GET("/bookings", s.listProviderBookings)
	provider.PATCH("/bookings/:id/status", s.setBookingStatus)
	provider.GET("/services", s.listServices)
	provider.POST("/services", s.createService)
	provider.PATCH("/services/:id", s.updateService)
	provider.DELETE("/services/:id", s.deleteService)

	internal := v1.Group("/internal", CronAuth(s.opts.CronSecret))
	internal.POST("/notifications/dispatch", s.dispatchNotifications)

	return r
}

func requestTimeout(timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return func(c *gin.Context) {
		if _, ok := c.Request.Context().Deadline(); ok {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			slog.String("method", c.Request.Method),
			slog.String("route", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}
