package petition

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/events"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
	"github.com/archon-governance/three-fates/pkg/statemachine"
	"github.com/archon-governance/three-fates/pkg/store"
)

// DefaultOrphanThreshold is the default staleness window for petitions
// stuck in RECEIVED (spec.md §4.13).
const DefaultOrphanThreshold = 24 * time.Hour

// OrphanDetectionResult summarizes a detect() pass.
type OrphanDetectionResult struct {
	Count     int
	IDs       []uuid.UUID
	OldestAge time.Duration
	Threshold time.Duration
}

// ReprocessResult partitions a manual reprocess call's targets.
type ReprocessResult struct {
	Success []uuid.UUID
	Failed  []uuid.UUID
}

// OrphanMonitor is the Orphan Monitor (C13): a periodic scan for petitions
// stuck in RECEIVED beyond a staleness threshold.
type OrphanMonitor struct {
	Store         store.PetitionStore
	Events        events.Writer
	Orchestrator  DeliberationOrchestrator
	Threshold     time.Duration
	Logger        *log.Logger
	Now           Clock
}

// NewOrphanMonitor constructs an OrphanMonitor. logger may be nil.
func NewOrphanMonitor(st store.PetitionStore, ev events.Writer, orchestrator DeliberationOrchestrator, threshold time.Duration, logger *log.Logger) *OrphanMonitor {
	if logger == nil {
		logger = log.New(log.Writer(), "[OrphanMonitor] ", log.LstdFlags)
	}
	if threshold <= 0 {
		threshold = DefaultOrphanThreshold
	}
	return &OrphanMonitor{
		Store: st, Events: ev, Orchestrator: orchestrator, Threshold: threshold, Logger: logger,
		Now: func() time.Time { return time.Now().UTC() },
	}
}

// Detect implements spec.md §4.13's detect pass. No event is emitted when
// no orphans are found — silence is meaningful only when something is
// stuck.
func (m *OrphanMonitor) Detect(ctx context.Context) (*OrphanDetectionResult, error) {
	cutoff := m.Now().Add(-m.Threshold)
	orphans, err := m.Store.FindByState(ctx, statemachine.StateReceived, &cutoff)
	if err != nil {
		return nil, err
	}

	result := &OrphanDetectionResult{Threshold: m.Threshold}
	if len(orphans) == 0 {
		return result, nil
	}

	result.Count = len(orphans)
	result.IDs = make([]uuid.UUID, len(orphans))
	oldest := orphans[0].CreatedAt
	for i, p := range orphans {
		result.IDs[i] = p.ID
		if p.CreatedAt.Before(oldest) {
			oldest = p.CreatedAt
		}
	}
	result.OldestAge = m.Now().Sub(oldest)

	if m.Events != nil {
		idStrs := make([]string, len(result.IDs))
		for i, id := range result.IDs {
			idStrs[i] = id.String()
		}
		if _, err := m.Events.Write(ctx, domain.EventOrphansDetected, map[string]any{
			"count":            result.Count,
			"petition_ids":     idStrs,
			"oldest_age_secs":  int(result.OldestAge.Seconds()),
			"threshold_secs":   int(m.Threshold.Seconds()),
		}); err != nil {
			m.Logger.Printf("failed to emit petition.monitoring.orphans_detected: %v", err)
		}
	}

	return result, nil
}

// Reprocess implements spec.md §4.13's manual reprocess(ids, triggered_by,
// reason).
func (m *OrphanMonitor) Reprocess(ctx context.Context, ids []uuid.UUID, triggeredBy, reason string) (*ReprocessResult, error) {
	if len(ids) == 0 {
		return nil, petitionerr.New(petitionerr.KindValidation, "reprocess requires at least one petition id")
	}

	var valid, invalid []uuid.UUID
	for _, id := range ids {
		p, err := m.Store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil || p.State != statemachine.StateReceived {
			invalid = append(invalid, id)
			continue
		}
		valid = append(valid, id)
	}

	if m.Events != nil && len(valid) > 0 {
		idStrs := make([]string, len(valid))
		for i, id := range valid {
			idStrs[i] = id.String()
		}
		if _, err := m.Events.Write(ctx, domain.EventReprocessingTriggered, map[string]any{
			"petition_ids": idStrs,
			"triggered_by": triggeredBy,
			"reason":       reason,
		}); err != nil {
			m.Logger.Printf("failed to emit petition.monitoring.reprocessing_triggered: %v", err)
		}
	}

	result := &ReprocessResult{Failed: invalid}
	for _, id := range valid {
		if m.Orchestrator == nil {
			result.Failed = append(result.Failed, id)
			continue
		}
		if err := m.Orchestrator.InitiateDeliberation(ctx, id); err != nil {
			m.Logger.Printf("failed to initiate deliberation for petition %s: %v", id, err)
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Success = append(result.Success, id)
	}
	return result, nil
}
