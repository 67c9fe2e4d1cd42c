package rest

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/service/availability"
	"slotbook/backend/internal/service/bookings"
	"slotbook/backend/internal/service/catalog"
	"slotbook/backend/internal/service/notifications"
	"slotbook/backend/internal/service/slots"
	"slotbook/backend/internal/store/storetest"
)

type apiFixture struct {
	env      storetest.Env
	provider domain.Provider
	service  domain.Service
	router   *gin.Engine
}

func newAPIFixture(t *testing.T) apiFixture {
	t.Helper()
	env := storetest.NewSQLite(t)
	p := env.SeedProvider(t, "America/Edmonton")
	svc := env.SeedService(t, p, 60, 24)
	env.SeedRule(t, domain.AvailabilityRule{
		ProviderID: p.ID,
		Weekday:    int(time.Monday),
		StartLocal: "09:00",
		EndLocal:   "17:00",
		SlotMins:   60,
	})

	now := func() time.Time { return time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC) }
	log := slog.Default()
	scheduler := notifications.NewScheduler(env.Repo, notifications.WithClock(now), notifications.WithLogger(log))
	dispatcher := notifications.NewDispatcher(env.Repo, notifications.LogSender{Log: log},
		notifications.WithClock(now), notifications.WithLogger(log))

	srv := NewServer(
		slots.NewService(env.Repo, slots.WithClock(now), slots.WithLogger(log)),
		availability.NewService(env.Repo, log),
		bookings.NewService(env.Repo, scheduler, bookings.WithClock(now), bookings.WithLogger(log)),
		catalog.NewService(env.Repo, log),
		dispatcher,
		Options{AppURL: "https://book.example.com", JWTSecret: testSecret},
		log,
	)
	return apiFixture{env: env, provider: p, service: svc, router: srv.Router()}
}

func TestAPI_BookAndManage(t *testing.T) {
	f := newAPIFixture(t)
	base := "/v1/services/" + f.service.ID.String()

	w := do(t, f.router, http.MethodGet, base+"/slots?date=2026-01-05", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("slots: status = %d body %s", w.Code, w.Body.String())
	}
	before, _ := decode(t, w)["slots"].([]any)
	if len(before) != 8 || before[0] != "2026-01-05T16:00:00.000Z" {
		t.Fatalf("slots = %v", before)
	}

	booking := map[string]any{
		"start_at":       "2026-01-05T16:00:00.000Z",
		"customer_name":  "Ann Lee",
		"customer_email": "ann@example.com",
	}
	w = do(t, f.router, http.MethodPost, base+"/bookings", booking, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d body %s", w.Code, w.Body.String())
	}
	created := decode(t, w)
	token, _ := created["manage_token"].(string)
	bookingID, _ := created["booking"].(map[string]any)["id"].(string)
	if token == "" || bookingID == "" {
		t.Fatalf("created = %v", created)
	}

	w = do(t, f.router, http.MethodPost, base+"/bookings", booking, nil)
	if w.Code != http.StatusConflict || decode(t, w)["reason"] != "SlotTaken" {
		t.Fatalf("second create: status = %d body %s", w.Code, w.Body.String())
	}

	w = do(t, f.router, http.MethodGet, base+"/slots?date=2026-01-05", nil, nil)
	after, _ := decode(t, w)["slots"].([]any)
	if len(after) != 7 {
		t.Fatalf("slots after booking = %v", after)
	}

	w = do(t, f.router, http.MethodPost, "/v1/bookings/"+bookingID+"/reschedule",
		map[string]any{"token": token, "date": "2026-01-05", "start": "11:00"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reschedule: status = %d body %s", w.Code, w.Body.String())
	}
	moved, _ := decode(t, w)["booking"].(map[string]any)
	if moved["start_at"] != "2026-01-05T18:00:00Z" {
		t.Fatalf("rescheduled start = %v", moved["start_at"])
	}

	w = do(t, f.router, http.MethodPost, "/v1/bookings/"+bookingID+"/cancel",
		map[string]any{"token": "wrong"}, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("cancel wrong token: status = %d", w.Code)
	}
	w = do(t, f.router, http.MethodPost, "/v1/bookings/"+bookingID+"/cancel",
		map[string]any{"token": token, "reason": "sick"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: status = %d body %s", w.Code, w.Body.String())
	}
	cancelled, _ := decode(t, w)["booking"].(map[string]any)
	if cancelled["status"] != "CANCELLED" || cancelled["cancellation_reason"] != "sick" {
		t.Fatalf("cancelled = %v", cancelled)
	}

	w = do(t, f.router, http.MethodGet, base+"/slots?date=2026-01-05", nil, nil)
	if again, _ := decode(t, w)["slots"].([]any); len(again) != 8 {
		t.Fatalf("slots after cancel = %v", again)
	}
}

func TestAPI_ProviderRulesMerge(t *testing.T) {
	f := newAPIFixture(t)
	auth := providerToken(t, f.provider.ID.String(), RoleProvider)

	w := do(t, f.router, http.MethodPost, "/v1/provider/rules",
		map[string]any{"weekday": 1, "start": "16:00", "end": "19:00", "slot_mins": 30}, auth)
	if w.Code != http.StatusCreated {
		t.Fatalf("create rule: status = %d body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["outcome"] != "merged" {
		t.Fatalf("outcome = %v", body["outcome"])
	}
	rule, _ := body["rule"].(map[string]any)
	if rule["start"] != "09:00" || rule["end"] != "19:00" || rule["slot_mins"] != float64(30) {
		t.Fatalf("rule = %v", rule)
	}

	w = do(t, f.router, http.MethodGet, "/v1/provider/rules", nil, auth)
	rules, _ := decode(t, w)["rules"].([]any)
	if len(rules) != 1 {
		t.Fatalf("rules = %v", rules)
	}
}

func TestAPI_DispatchSendsConfirmation(t *testing.T) {
	f := newAPIFixture(t)

	w := do(t, f.router, http.MethodPost, "/v1/services/"+f.service.ID.String()+"/bookings", map[string]any{
		"start_at":       "2026-01-05T17:00:00Z",
		"customer_name":  "Ann Lee",
		"customer_email": "ann@example.com",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d body %s", w.Code, w.Body.String())
	}

	w = do(t, f.router, http.MethodPost, "/v1/internal/notifications/dispatch", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("dispatch: status = %d body %s", w.Code, w.Body.String())
	}
	// only the confirmation is due; both reminders run days later
	if sent := decode(t, w)["sent"]; sent != float64(1) {
		t.Fatalf("sent = %v, want 1", sent)
	}
}

func TestAPI_IdempotentCreate(t *testing.T) {
	f := newAPIFixture(t)
	path := "/v1/services/" + f.service.ID.String() + "/bookings"
	key := http.Header{"Idempotency-Key": {"checkout-7"}}
	booking := map[string]any{
		"start_at":       "2026-01-05T16:00:00.000Z",
		"customer_name":  "Ann Lee",
		"customer_email": "ann@example.com",
	}

	w := do(t, f.router, http.MethodPost, path, booking, key)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d body %s", w.Code, w.Body.String())
	}
	first := decode(t, w)

	w = do(t, f.router, http.MethodPost, path, booking, key)
	if w.Code != http.StatusCreated {
		t.Fatalf("retry: status = %d body %s", w.Code, w.Body.String())
	}
	retry := decode(t, w)
	if retry["manage_token"] != first["manage_token"] {
		t.Fatalf("retry = %v, want %v", retry, first)
	}

	booking["start_at"] = "2026-01-05T18:00:00.000Z"
	w = do(t, f.router, http.MethodPost, path, booking, key)
	if w.Code != http.StatusConflict || decode(t, w)["reason"] != "IdempotencyConflict" {
		t.Fatalf("reused key: status = %d body %s", w.Code, w.Body.String())
	}
}

func TestAPI_ProviderServicesAndBookings(t *testing.T) {
	f := newAPIFixture(t)
	auth := providerToken(t, f.provider.ID.String(), RoleProvider)

	w := do(t, f.router, http.MethodPost, "/v1/provider/services", map[string]any{
		"title":                 "Colour",
		"price_cents":           12000,
		"default_duration_mins": 120,
	}, auth)
	if w.Code != http.StatusCreated {
		t.Fatalf("create service: status = %d body %s", w.Code, w.Body.String())
	}
	created, _ := decode(t, w)["service"].(map[string]any)
	serviceID, _ := created["id"].(string)

	w = do(t, f.router, http.MethodGet, "/v1/services/"+serviceID+"/slots?date=2026-01-05", nil, nil)
	slotsOut, _ := decode(t, w)["slots"].([]any)
	if w.Code != http.StatusOK || len(slotsOut) != 7 {
		t.Fatalf("slots of new service: status = %d slots %v", w.Code, slotsOut)
	}

	w = do(t, f.router, http.MethodPost, "/v1/services/"+serviceID+"/bookings", map[string]any{
		"start_at":       "2026-01-05T16:00:00.000Z",
		"customer_name":  "Ann Lee",
		"customer_email": "ann@example.com",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create booking: status = %d body %s", w.Code, w.Body.String())
	}

	w = do(t, f.router, http.MethodGet, "/v1/provider/bookings?from=2026-01-05&to=2026-01-05", nil, auth)
	if w.Code != http.StatusOK {
		t.Fatalf("list bookings: status = %d body %s", w.Code, w.Body.String())
	}
	rows, _ := decode(t, w)["bookings"].([]any)
	if len(rows) != 1 || rows[0].(map[string]any)["end_at"] != "2026-01-05T18:00:00Z" {
		t.Fatalf("bookings = %v", rows)
	}

	w = do(t, f.router, http.MethodDelete, "/v1/provider/services/"+serviceID, nil,
		providerToken(t, f.env.SeedProvider(t, "UTC").ID.String(), RoleProvider))
	if w.Code != http.StatusNotFound {
		t.Fatalf("delete by other provider: status = %d", w.Code)
	}
	if w = do(t, f.router, http.MethodDelete, "/v1/provider/services/"+serviceID, nil, auth); w.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d body %s", w.Code, w.Body.String())
	}
	w = do(t, f.router, http.MethodGet, "/v1/provider/bookings", nil, auth)
	if rows, _ := decode(t, w)["bookings"].([]any); len(rows) != 0 {
		t.Fatalf("bookings after delete = %v", rows)
	}
}
