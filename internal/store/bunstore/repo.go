package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/store"
)

type Repo struct {
	// reads outside a transaction go straight to the pool
	schedulingTx
	db *bun.DB
}

func NewRepo(db *bun.DB) *Repo {
	return &Repo{schedulingTx: schedulingTx{db: db}, db: db}
}

type schedulingTx struct {
	db bun.IDB
}

func (r *Repo) InProviderTransaction(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx store.Tx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := r.lockProvider(ctx, tx, providerID); err != nil {
			return err
		}
		return fn(ctx, schedulingTx{db: tx})
	})
}

func (r *Repo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, schedulingTx{db: tx})
	})
}

// lockProvider serializes provider transactions on postgres. SQLite has a
// single connection, so transactions never interleave there.
func (r *Repo) lockProvider(ctx context.Context, tx bun.Tx, providerID uuid.UUID) error {
	if r.db.Dialect().Name() != dialect.PG {
		return nil
	}
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", providerID.String()).Exec(ctx)
	return err
}

func (r schedulingTx) GetProvider(ctx context.Context, providerID uuid.UUID) (domain.Provider, error) {
	var m domain.Provider
	err := r.db.NewSelect().Model(&m).Where("id = ?", providerID).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Provider{}, notFound(err)
	}
	return m, nil
}

func (r schedulingTx) GetService(ctx context.Context, serviceID uuid.UUID) (domain.Service, error) {
	var m domain.Service
	err := r.db.NewSelect().Model(&m).Where("id = ?", serviceID).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Service{}, notFound(err)
	}
	return m, nil
}

func (r schedulingTx) GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	var m domain.Booking
	err := r.db.NewSelect().Model(&m).Where("id = ?", bookingID).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Booking{}, notFound(err)
	}
	return m, nil
}

func (r schedulingTx) ListServices(ctx context.Context, providerID uuid.UUID) ([]domain.Service, error) {
	var rows []domain.Service
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		OrderExpr("title ASC, created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r schedulingTx) ListRules(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityRule, error) {
	var rows []domain.AvailabilityRule
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		OrderExpr("weekday ASC, start_local ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r schedulingTx) ListRulesForWeekday(ctx context.Context, providerID uuid.UUID, weekday int) ([]domain.AvailabilityRule, error) {
	var rows []domain.AvailabilityRule
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("weekday = ?", weekday).
		OrderExpr("start_local ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r schedulingTx) ListTimeOff(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.TimeOff, error) {
	var rows []domain.TimeOff
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("start_time_utc < ?", windowEnd.UTC()).
		Where("end_time_utc > ?", windowStart.UTC()).
		OrderExpr("start_time_utc ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListActiveBookings also returns rows without an end time that start before
// windowEnd; callers resolve their effective end from the service duration.
func (r schedulingTx) ListActiveBookings(ctx context.Context, serviceID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.db.NewSelect().
		Model(&rows).
		Where("service_id = ?", serviceID).
		Where("status IN (?)", bun.In(domain.ActiveBookingStatuses)).
		Where("start_at < ?", windowEnd.UTC()).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("end_at > ?", windowStart.UTC()).WhereOr("end_at IS NULL")
		}).
		OrderExpr("start_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r schedulingTx) ListBookings(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]domain.Booking, error) {
	var rows []domain.Booking
	q := r.db.NewSelect().
		Model(&rows).
		Where("service_id IN (?)", r.providerServices(providerID))
	if !from.IsZero() {
		q = q.Where("start_at >= ?", from.UTC())
	}
	if !to.IsZero() {
		q = q.Where("start_at < ?", to.UTC())
	}
	if err := q.OrderExpr("start_at ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r schedulingTx) providerServices(providerID uuid.UUID) *bun.SelectQuery {
	return r.db.NewSelect().Table("services").Column("id").Where("provider_id = ?", providerID)
}

func (r schedulingTx) ListNotifications(ctx context.Context, bookingID uuid.UUID) ([]domain.Notification, error) {
	var rows []domain.Notification
	err := r.db.NewSelect().
		Model(&rows).
		Where("booking_id = ?", bookingID).
		OrderExpr("run_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r schedulingTx) ListDueNotifications(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	var rows []domain.Notification
	err := r.db.NewSelect().
		Model(&rows).
		Where("status = ?", domain.NotificationPending).
		Where("run_at <= ?", now.UTC()).
		OrderExpr("run_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r schedulingTx) InsertService(ctx context.Context, svc domain.Service) (domain.Service, error) {
	m := svc
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Service{}, err
	}
	return m, nil
}

func (r schedulingTx) UpdateService(ctx context.Context, svc domain.Service) error {
	res, err := r.db.NewUpdate().
		Table("services").
		Set("title = ?", svc.Title).
		Set("price_cents = ?", svc.PriceCents).
		Set("default_duration_mins = ?", svc.DefaultDurationMins).
		Set("cancellation_policy_hours = ?", svc.CancellationPolicyHours).
		Set("updated_at = ?", time.Now().UTC()).
		Where("provider_id = ?", svc.ProviderID).
		Where("id = ?", svc.ID).
		Exec(ctx)
	return affectedOne(res, err)
}

// DeleteService deletes children explicitly; SQLite does not enforce the
// cascading foreign keys postgres has.
func (r schedulingTx) DeleteService(ctx context.Context, providerID uuid.UUID, serviceID uuid.UUID) error {
	res, err := r.db.NewDelete().
		Table("services").
		Where("provider_id = ?", providerID).
		Where("id = ?", serviceID).
		Exec(ctx)
	if err := affectedOne(res, err); err != nil {
		return err
	}
	bookingIDs := r.db.NewSelect().Table("bookings").Column("id").Where("service_id = ?", serviceID)
	if _, err := r.db.NewDelete().Table("notifications").Where("booking_id IN (?)", bookingIDs).Exec(ctx); err != nil {
		return err
	}
	_, err = r.db.NewDelete().Table("bookings").Where("service_id = ?", serviceID).Exec(ctx)
	return err
}

func (r schedulingTx) InsertRule(ctx context.Context, rule domain.AvailabilityRule) (domain.AvailabilityRule, error) {
	m := rule
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.AvailabilityRule{}, err
	}
	return m, nil
}

func (r schedulingTx) DeleteRules(ctx context.Context, providerID uuid.UUID, ruleIDs []uuid.UUID) error {
	if len(ruleIDs) == 0 {
		return nil
	}
	_, err := r.db.NewDelete().
		Table("availability_rules").
		Where("provider_id = ?", providerID).
		Where("id IN (?)", bun.In(ruleIDs)).
		Exec(ctx)
	return err
}

func (r schedulingTx) DeleteRule(ctx context.Context, providerID uuid.UUID, ruleID uuid.UUID) error {
	res, err := r.db.NewDelete().
		Table("availability_rules").
		Where("provider_id = ?", providerID).
		Where("id = ?", ruleID).
		Exec(ctx)
	return affectedOne(res, err)
}

func (r schedulingTx) InsertTimeOff(ctx context.Context, off domain.TimeOff) (domain.TimeOff, error) {
	m := off
	m.StartTimeUTC = off.StartTimeUTC.UTC()
	m.EndTimeUTC = off.EndTimeUTC.UTC()
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.TimeOff{}, err
	}
	return m, nil
}

func (r schedulingTx) DeleteTimeOff(ctx context.Context, providerID uuid.UUID, timeOffID uuid.UUID) error {
	res, err := r.db.NewDelete().
		Table("time_off").
		Where("provider_id = ?", providerID).
		Where("id = ?", timeOffID).
		Exec(ctx)
	return affectedOne(res, err)
}

func (r schedulingTx) CreateBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	m := booking
	m.StartAt = booking.StartAt.UTC()
	if !booking.EndAt.IsZero() {
		m.EndAt = booking.EndAt.UTC()
	}
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Booking{}, overlapConflict(err)
	}
	return m, nil
}

func (r schedulingTx) UpdateBookingTimes(ctx context.Context, bookingID uuid.UUID, startAt, endAt time.Time) error {
	res, err := r.db.NewUpdate().
		Table("bookings").
		Set("start_at = ?", startAt.UTC()).
		Set("end_at = ?", endAt.UTC()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", bookingID).
		Exec(ctx)
	return affectedOne(res, overlapConflict(err))
}

func (r schedulingTx) UpdateBookingStatus(ctx context.Context, bookingID uuid.UUID, status domain.BookingStatus, cancelledAt *time.Time, reason *string) error {
	q := r.db.NewUpdate().
		Table("bookings").
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", bookingID)
	if cancelledAt != nil {
		q = q.Set("cancelled_at = ?", cancelledAt.UTC()).Set("cancellation_reason = ?", reason)
	}
	res, err := q.Exec(ctx)
	return affectedOne(res, overlapConflict(err))
}

func (r schedulingTx) DeletePendingNotifications(ctx context.Context, bookingID uuid.UUID) error {
	_, err := r.db.NewDelete().
		Table("notifications").
		Where("booking_id = ?", bookingID).
		Where("status = ?", domain.NotificationPending).
		Exec(ctx)
	return err
}

func (r schedulingTx) UpsertNotification(ctx context.Context, n domain.Notification) error {
	m := n
	m.RunAt = n.RunAt.UTC()
	if m.Status == "" {
		m.Status = domain.NotificationPending
	}
	_, err := r.db.NewInsert().
		Model(&m).
		On("CONFLICT (booking_id, channel, kind) DO UPDATE").
		Set("run_at = EXCLUDED.run_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (r schedulingTx) MarkNotificationSent(ctx context.Context, notificationID uuid.UUID, sentAt time.Time) error {
	res, err := r.db.NewUpdate().
		Table("notifications").
		Set("status = ?", domain.NotificationSent).
		Set("sent_at = ?", sentAt.UTC()).
		Set("attempts = attempts + 1").
		Set("last_error = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", notificationID).
		Exec(ctx)
	return affectedOne(res, err)
}

func (r schedulingTx) MarkNotificationFailed(ctx context.Context, notificationID uuid.UUID, lastError string) error {
	res, err := r.db.NewUpdate().
		Table("notifications").
		Set("status = ?", domain.NotificationFailed).
		Set("attempts = attempts + 1").
		Set("last_error = ?", lastError).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", notificationID).
		Exec(ctx)
	return affectedOne(res, err)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// overlapConflict maps the bookings_no_overlap exclusion constraint to
// store.ErrConflict.
func overlapConflict(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23P01" && pgErr.ConstraintName == "bookings_no_overlap" {
		return store.ErrConflict
	}
	return err
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

var _ store.Repository = (*Repo)(nil)
var _ store.Tx = schedulingTx{}
