// processor.go — the Run Orchestrator.
// ProcessDate sequences the whole pipeline for one date: resolve windows,
// snapshot members, allocate, persist bookings, finalize entries, update
// fairness — all inside one locked transaction. It is the only entry point
// collaborators call; everything else in this package is internal machinery.
package lottery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fairwaygreens/club-api/internal/models"
)

// RunSummary reports what one invocation did. A re-run of an already processed
// date legitimately returns all zeros except TotalEntries — that is the
// idempotence contract, not an error.
type RunSummary struct {
	ProcessedCount  int `json:"processed_count"`  // Entries and groups settled this invocation
	TotalEntries    int `json:"total_entries"`    // Pending submissions found at run start
	BookingsCreated int `json:"bookings_created"` // How many of those were placed in a slot
}

// Processor owns the run pipeline. It holds no per-run state — everything a
// run needs is loaded fresh inside its transaction.
type Processor struct {
	store Store
	log   *logrus.Logger
	now   func() time.Time // Injectable clock; only stamps ProcessedAt, never influences allocation
}

// NewProcessor wires the orchestrator to its persistence and logger.
func NewProcessor(store Store, log *logrus.Logger) *Processor {
	return &Processor{store: store, log: log, now: time.Now}
}

// ProcessDate runs the lottery for one calendar date.
//
// Safe to invoke more than once: a second call finds zero unprocessed pending
// entries and returns a no-op summary instead of re-scoring or double-booking.
// Safe under concurrency: a simultaneous run for the same date hits the
// per-date lock and fails with ErrConcurrentRun without mutating anything.
// Atomic: any failure after mutation began rolls the whole run back and
// surfaces as a *RunFailedError wrapping the cause — partial success is never
// visible to callers or to the database.
func (p *Processor) ProcessDate(ctx context.Context, date time.Time) (RunSummary, error) {
	date = dateOnly(date)
	var summary RunSummary

	err := p.store.WithRunLock(ctx, date, func(rs RunStore) error {
		snap, err := rs.LoadSnapshot(date)
		if err != nil {
			return err
		}

		summary.TotalEntries = len(snap.Entries) + len(snap.Groups)
		if summary.TotalEntries == 0 {
			p.log.WithField("date", date.Format("2006-01-02")).
				Info("lottery run found no pending entries; nothing to do")
			return nil
		}

		windows, err := ResolveWindows(snap.Config, p.log)
		if err != nil {
			return err
		}

		results := Allocate(buildCandidates(snap), windows, snap.Members)

		processedAt := p.now()
		for i := range results {
			res := &results[i]
			if res.Assigned {
				if err := rs.CreateBooking(bookingFor(date, res)); err != nil {
					return err
				}
				summary.BookingsCreated++
			}
			finalize := rs.FinalizeEntry
			if res.Candidate.IsGroup {
				finalize = rs.FinalizeGroup
			}
			if err := finalize(res.Candidate.ID, res.Assigned, reasonPtr(res.Reason), processedAt); err != nil {
				return err
			}
			summary.ProcessedCount++
		}

		return rs.SaveFairness(fairnessUpdates(results, snap.Fairness, MonthKey(date)))
	})

	if err != nil {
		// Configuration and concurrency failures happen before any mutation and
		// keep their own identity; anything else rolled back mid-run and is
		// reported as a run failure wrapping the cause.
		if errors.Is(err, ErrBadConfiguration) || errors.Is(err, ErrConcurrentRun) {
			return RunSummary{}, err
		}
		return RunSummary{}, &RunFailedError{Date: date.Format("2006-01-02"), Cause: err}
	}

	p.log.WithFields(logrus.Fields{
		"date":      date.Format("2006-01-02"),
		"processed": summary.ProcessedCount,
		"bookings":  summary.BookingsCreated,
		"total":     summary.TotalEntries,
	}).Info("lottery run complete")

	return summary, nil
}

// ResetAdminAdjustments is the operational bulk reset of every profile's
// manual priority override, exposed so accumulated hand-tuning can be cleared
// in one action.
func (p *Processor) ResetAdminAdjustments(ctx context.Context) (int64, error) {
	count, err := p.store.ResetAdminAdjustments(ctx)
	if err != nil {
		return 0, err
	}
	p.log.WithField("updated", count).Info("admin priority adjustments reset")
	return count, nil
}

// dateOnly normalizes an incoming timestamp to midnight UTC so lock keys,
// queries, and month keys all agree on which day is meant.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// buildCandidates flattens the snapshot's entries and groups into the
// allocator's uniform candidate form. Individuals are a party of one; groups
// carry their full ordered membership and are scored by their leader.
func buildCandidates(snap *RunSnapshot) []*Candidate {
	candidates := make([]*Candidate, 0, len(snap.Entries)+len(snap.Groups))
	for _, e := range snap.Entries {
		candidates = append(candidates, &Candidate{
			ID:          e.ID,
			LeaderID:    e.MemberID,
			Members:     []uuid.UUID{e.MemberID},
			Preferred:   e.Preferred,
			Backup:      e.Backup,
			SubmittedAt: e.SubmittedAt,
		})
	}
	for _, g := range snap.Groups {
		members := make([]uuid.UUID, 0, len(g.Members))
		for _, m := range sortedByPosition(g.Members) {
			members = append(members, m.MemberID)
		}
		candidates = append(candidates, &Candidate{
			ID:          g.ID,
			IsGroup:     true,
			LeaderID:    g.LeaderID,
			Members:     members,
			Preferred:   g.Preferred,
			Backup:      g.Backup,
			SubmittedAt: g.SubmittedAt,
		})
	}
	return candidates
}

// sortedByPosition returns group members in the order the leader listed them.
func sortedByPosition(members []models.LotteryGroupMember) []models.LotteryGroupMember {
	out := make([]models.LotteryGroupMember, len(members))
	copy(out, members)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Position < out[j-1].Position; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// bookingFor turns a successful allocation into the durable booking row,
// players in tee-off order.
func bookingFor(date time.Time, res *AllocationResult) *models.TeeTimeBooking {
	booking := &models.TeeTimeBooking{
		BookingDate: date,
		SlotTime:    res.Slot.Label,
		Window:      res.Slot.Window,
		PartySize:   res.Candidate.PartySize(),
	}
	id := res.Candidate.ID
	if res.Candidate.IsGroup {
		booking.GroupID = &id
	} else {
		booking.EntryID = &id
	}
	for i, memberID := range res.Candidate.Members {
		booking.Players = append(booking.Players, models.TeeTimeBookingPlayer{
			MemberID: memberID,
			Position: i,
		})
	}
	return booking
}

// reasonPtr converts an empty reason to nil so assigned entries store NULL.
func reasonPtr(reason string) *string {
	if reason == "" {
		return nil
	}
	return &reason
}
