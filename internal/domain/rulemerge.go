package domain

import "github.com/google/uuid"

// RuleMerge is the write plan for inserting a weekly rule: delete every row in
// Delete and insert Insert, in one transaction.
type RuleMerge struct {
	Insert AvailabilityRule
	Delete []uuid.UUID
}

func (m RuleMerge) Merged() bool {
	return len(m.Delete) > 0
}

// PlanRuleMerge folds candidate into the rules already stored for the same
// provider and weekday. Ranges are compared on minute of day with inclusive
// bounds, so touching ranges merge. The merged rule spans the min start and
// max end and takes the smallest slot granularity.
//
// ok is false when the candidate range is empty (end <= start); nothing should
// be written in that case.
func PlanRuleMerge(existing []AvailabilityRule, candidate AvailabilityRule) (plan RuleMerge, ok bool) {
	start := ParseHM(candidate.StartLocal).Minutes()
	end := ParseHM(candidate.EndLocal).Minutes()
	if end <= start {
		return RuleMerge{}, false
	}

	mergedStart, mergedEnd, slotMins := start, end, candidate.SlotMins
	var remove []uuid.UUID

	for _, r := range existing {
		if r.ProviderID != candidate.ProviderID || r.Weekday != candidate.Weekday {
			continue
		}
		rs := ParseHM(r.StartLocal).Minutes()
		re := ParseHM(r.EndLocal).Minutes()
		if !(start <= re && end >= rs) {
			continue
		}
		remove = append(remove, r.ID)
		if rs < mergedStart {
			mergedStart = rs
		}
		if re > mergedEnd {
			mergedEnd = re
		}
		if r.SlotMins < slotMins {
			slotMins = r.SlotMins
		}
	}

	return RuleMerge{
		Insert: AvailabilityRule{
			ProviderID: candidate.ProviderID,
			Weekday:    candidate.Weekday,
			StartLocal: HMFromMinutes(mergedStart).String(),
			EndLocal:   HMFromMinutes(mergedEnd).String(),
			SlotMins:   slotMins,
		},
		Delete: remove,
	}, true
}
