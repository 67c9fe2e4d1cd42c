package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"slotbook/backend/internal/service"
	"slotbook/backend/internal/store"
	"slotbook/backend/internal/store/storetest"
)

func TestCreateOrMergeRule_InsertThenMerge(t *testing.T) {
	env := storetest.NewSQLite(t)
	ctx := context.Background()
	p := env.SeedProvider(t, "America/Edmonton")
	svc := NewService(env.Repo, nil)

	first, err := svc.CreateOrMergeRule(ctx, p.ID, RuleInput{Weekday: 1, StartLocal: "09:00", EndLocal: "12:00", SlotMins: 60})
	if err != nil {
		t.Fatalf("CreateOrMergeRule error: %v", err)
	}
	if first.Outcome != OutcomeInserted {
		t.Fatalf("outcome = %s, want %s", first.Outcome, OutcomeInserted)
	}

	merged, err := svc.CreateOrMergeRule(ctx, p.ID, RuleInput{Weekday: 1, StartLocal: "11:00", EndLocal: "15:00", SlotMins: 30})
	if err != nil {
		t.Fatalf("CreateOrMergeRule error: %v", err)
	}
	if merged.Outcome != OutcomeMerged {
		t.Fatalf("outcome = %s, want %s", merged.Outcome, OutcomeMerged)
	}
	if len(merged.Replaced) != 1 || merged.Replaced[0] != first.Rule.ID {
		t.Fatalf("replaced = %v, want [%s]", merged.Replaced, first.Rule.ID)
	}

	rules, err := svc.ListRules(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListRules error: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("len(rules) = %d, want 1", len(rules))
	}
	r := rules[0]
	if r.StartLocal != "09:00" || r.EndLocal != "15:00" || r.SlotMins != 30 {
		t.Fatalf("rule = %s-%s every %d, want 09:00-15:00 every 30", r.StartLocal, r.EndLocal, r.SlotMins)
	}
}

func TestCreateOrMergeRule_NormalizesLooseTimes(t *testing.T) {
	env := storetest.NewSQLite(t)
	p := env.SeedProvider(t, "UTC")
	svc := NewService(env.Repo, nil)

	res, err := svc.CreateOrMergeRule(context.Background(), p.ID, RuleInput{Weekday: 0, StartLocal: "9:5", EndLocal: "17:00", SlotMins: 15})
	if err != nil {
		t.Fatalf("CreateOrMergeRule error: %v", err)
	}
	if res.Rule.StartLocal != "09:05" {
		t.Fatalf("StartLocal = %q, want 09:05", res.Rule.StartLocal)
	}
}

func TestCreateOrMergeRule_EmptyRangeIsDropped(t *testing.T) {
	env := storetest.NewSQLite(t)
	ctx := context.Background()
	p := env.SeedProvider(t, "UTC")
	svc := NewService(env.Repo, nil)

	for _, in := range []RuleInput{
		{Weekday: 2, StartLocal: "12:00", EndLocal: "09:00", SlotMins: 30},
		{Weekday: 2, StartLocal: "10:00", EndLocal: "10:00", SlotMins: 30},
	} {
		res, err := svc.CreateOrMergeRule(ctx, p.ID, in)
		if err != nil {
			t.Fatalf("CreateOrMergeRule error: %v", err)
		}
		if res.Outcome != OutcomeDropped {
			t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeDropped)
		}
	}

	rules, err := svc.ListRules(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListRules error: %v", err)
	}
	if len(rules) != 0 {
		t.Fatalf("rules = %+v, want none", rules)
	}
}

func TestCreateOrMergeRule_ValidationErrors(t *testing.T) {
	env := storetest.NewSQLite(t)
	p := env.SeedProvider(t, "UTC")
	svc := NewService(env.Repo, nil)

	tests := []struct {
		name  string
		in    RuleInput
		field string
	}{
		{name: "weekday", in: RuleInput{Weekday: 7, StartLocal: "09:00", EndLocal: "10:00", SlotMins: 30}, field: "weekday"},
		{name: "start", in: RuleInput{Weekday: 1, StartLocal: "0900", EndLocal: "10:00", SlotMins: 30}, field: "start_local"},
		{name: "end", in: RuleInput{Weekday: 1, StartLocal: "09:00", EndLocal: "ten", SlotMins: 30}, field: "end_local"},
		{name: "slot", in: RuleInput{Weekday: 1, StartLocal: "09:00", EndLocal: "10:00", SlotMins: 0}, field: "slot_mins"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrMergeRule(context.Background(), p.ID, tt.in)
			var ve *service.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error = %T %v, want *ValidationError", err, err)
			}
			if ve.Field != tt.field {
				t.Fatalf("field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestDeleteRule_OwnerOnly(t *testing.T) {
	env := storetest.NewSQLite(t)
	ctx := context.Background()
	owner := env.SeedProvider(t, "UTC")
	intruder := env.SeedProvider(t, "UTC")
	svc := NewService(env.Repo, nil)

	res, err := svc.CreateOrMergeRule(ctx, owner.ID, RuleInput{Weekday: 1, StartLocal: "09:00", EndLocal: "10:00", SlotMins: 30})
	if err != nil {
		t.Fatalf("CreateOrMergeRule error: %v", err)
	}

	if err := svc.DeleteRule(ctx, intruder.ID, res.Rule.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("intruder delete err = %v, want %v", err, store.ErrNotFound)
	}
	if err := svc.DeleteRule(ctx, owner.ID, res.Rule.ID); err != nil {
		t.Fatalf("owner delete error: %v", err)
	}
}

func TestAddTimeOff_ConvertsWithProviderZone(t *testing.T) {
	env := storetest.NewSQLite(t)
	ctx := context.Background()
	p := env.SeedProvider(t, "America/Edmonton")
	svc := NewService(env.Repo, nil)

	off, ok, err := svc.AddTimeOff(ctx, p.ID, TimeOffInput{Date: "2026-01-05", StartLocal: "12:00", EndLocal: "13:30", Reason: "  lunch "})
	if err != nil {
		t.Fatalf("AddTimeOff error: %v", err)
	}
	if !ok {
		t.Fatalf("expected time off to be stored")
	}
	wantStart := time.Date(2026, 1, 5, 19, 0, 0, 0, time.UTC)
	if !off.StartTimeUTC.Equal(wantStart) || !off.EndTimeUTC.Equal(wantStart.Add(90*time.Minute)) {
		t.Fatalf("time off = %v..%v", off.StartTimeUTC, off.EndTimeUTC)
	}
	if off.Reason == nil || *off.Reason != "lunch" {
		t.Fatalf("reason = %v, want lunch", off.Reason)
	}

	rows, err := svc.ListTimeOff(ctx, p.ID, "2026-01-05", "2026-01-05")
	if err != nil {
		t.Fatalf("ListTimeOff error: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != off.ID {
		t.Fatalf("rows = %+v, want the stored block", rows)
	}

	_, ok, err = svc.AddTimeOff(ctx, p.ID, TimeOffInput{Date: "2026-01-05", StartLocal: "13:00", EndLocal: "12:00"})
	if err != nil || ok {
		t.Fatalf("inverted range: ok=%v err=%v, want dropped", ok, err)
	}

	if err := svc.DeleteTimeOff(ctx, p.ID, off.ID); err != nil {
		t.Fatalf("DeleteTimeOff error: %v", err)
	}
	rows, err = svc.ListTimeOff(ctx, p.ID, "2026-01-05", "2026-01-05")
	if err != nil {
		t.Fatalf("ListTimeOff error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows = %+v, want none after delete", rows)
	}
}

func TestAddTimeOff_UnknownProvider(t *testing.T) {
	env := storetest.NewSQLite(t)
	svc := NewService(env.Repo, nil)
	in := TimeOffInput{Date: "2026-01-05", StartLocal: "09:00", EndLocal: "10:00"}

	if _, _, err := svc.AddTimeOff(context.Background(), uuid.Nil, in); !service.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if _, _, err := svc.AddTimeOff(context.Background(), uuid.New(), in); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, store.ErrNotFound)
	}
}
